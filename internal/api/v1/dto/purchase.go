package dto

import "app/internal/model"

// VerifyPurchaseRequest is the body of a client-initiated verification.
type VerifyPurchaseRequest struct {
	UserID        string `json:"userId" validate:"required"`
	PackageName   string `json:"packageName" validate:"required"`
	ProductID     string `json:"productId" validate:"required"`
	PurchaseToken string `json:"purchaseToken" validate:"required"`
}

// PurchaseDTO is the verified purchase summary returned to the client.
type PurchaseDTO struct {
	ProductID        string  `json:"productId"`
	PurchaseToken    string  `json:"purchaseToken"`
	BasePlanID       *string `json:"basePlanId"`
	Acknowledged     bool    `json:"acknowledged"`
	AutoRenewEnabled bool    `json:"autoRenewEnabled"`
}

// VerifyPurchaseResponse is returned by POST /v1/purchases/verify.
type VerifyPurchaseResponse struct {
	Purchase          PurchaseDTO               `json:"purchase"`
	Entitlements      model.EntitlementSnapshot `json:"entitlements"`
	ServerTimeEpochMs int64                     `json:"serverTimeEpochMs"`
}

// SubscriptionDTO is one stored purchase in the entitlements listing.
type SubscriptionDTO struct {
	ProductID        string            `json:"productId"`
	BasePlanID       *string           `json:"basePlanId"`
	AccessState      model.AccessState `json:"accessState"`
	ExpiryEpochMs    *int64            `json:"expiryEpochMs"`
	IsTrial          bool              `json:"isTrial"`
	AutoRenewEnabled bool              `json:"autoRenewEnabled"`
}

// EntitlementsResponse is returned by GET /v1/entitlements. The subscription
// list carries every stored purchase for the user, not just the active ones.
type EntitlementsResponse struct {
	Entitlements        model.EntitlementSnapshot `json:"entitlements"`
	ActiveSubscriptions []SubscriptionDTO         `json:"activeSubscriptions"`
	ServerTimeEpochMs   int64                     `json:"serverTimeEpochMs"`
}
