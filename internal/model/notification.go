package model

// DeveloperNotification is the real-time developer notification payload Google
// Play delivers over Cloud Pub/Sub when a subscription changes state. The
// payload only signals that something happened; the current truth is always
// re-fetched from the Play API.
type DeveloperNotification struct {
	Version                  string                    `json:"version"`
	PackageName              string                    `json:"packageName"`
	EventTimeMillis          string                    `json:"eventTimeMillis"`
	SubscriptionNotification *SubscriptionNotification `json:"subscriptionNotification,omitempty"`
}

// SubscriptionNotification carries the purchase token the notification is about.
type SubscriptionNotification struct {
	Version          string `json:"version"`
	NotificationType int    `json:"notificationType"`
	PurchaseToken    string `json:"purchaseToken"`
	SubscriptionID   string `json:"subscriptionId"`
}

// PurchaseToken returns the token referenced by the notification, or "" when
// the notification carries none (e.g. test or voided-purchase notifications).
func (n *DeveloperNotification) PurchaseToken() string {
	if n == nil || n.SubscriptionNotification == nil {
		return ""
	}
	return n.SubscriptionNotification.PurchaseToken
}
