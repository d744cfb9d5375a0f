package dto

// PushEnvelope is the Cloud Pub/Sub push wrapper around a developer
// notification: message.data is the base64-encoded notification JSON.
type PushEnvelope struct {
	Message      PushMessage `json:"message" validate:"required"`
	Subscription string      `json:"subscription,omitempty"`
}

// PushMessage carries the base64 payload of one push delivery.
type PushMessage struct {
	Data      string `json:"data" validate:"required"`
	MessageID string `json:"messageId,omitempty"`
}

// RTDNAckResponse acknowledges a notification push. Ignored names the no-op
// reason when the notification was recognized but not applied.
type RTDNAckResponse struct {
	OK      bool   `json:"ok"`
	Ignored string `json:"ignored,omitempty"`
}
