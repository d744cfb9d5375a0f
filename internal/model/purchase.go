package model

import (
	"encoding/json"
	"time"
)

// AccessState is the internal lifecycle state of a Play subscription purchase.
// Transitions are driven exclusively by re-verification against Google Play;
// there are no locally derived transitions.
type AccessState string

const (
	AccessStateActive      AccessState = "ACTIVE"
	AccessStateGracePeriod AccessState = "GRACE_PERIOD"
	AccessStateOnHold      AccessState = "ON_HOLD"
	AccessStatePaused      AccessState = "PAUSED"
	AccessStateExpired     AccessState = "EXPIRED"
	AccessStateRevoked     AccessState = "REVOKED"
)

// Purchase is the latest known state of one Play purchase token. The token is
// the primary key; every re-verification fully replaces the row.
type Purchase struct {
	PurchaseToken    string          `db:"purchase_token" json:"purchase_token"`
	UserID           string          `db:"user_id" json:"user_id"`
	PackageName      string          `db:"package_name" json:"package_name"`
	ProductID        string          `db:"product_id" json:"product_id"`
	BasePlanID       *string         `db:"base_plan_id" json:"base_plan_id,omitempty"`
	AccessState      AccessState     `db:"access_state" json:"access_state"`
	ExpiryEpochMs    *int64          `db:"expiry_epoch_ms" json:"expiry_epoch_ms,omitempty"`
	IsTrial          bool            `db:"is_trial" json:"is_trial"`
	AutoRenewEnabled bool            `db:"auto_renew_enabled" json:"auto_renew_enabled"`
	Acknowledged     bool            `db:"acknowledged" json:"acknowledged"`
	RawPayload       json.RawMessage `db:"raw_payload" json:"raw_payload,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// VerifiedSubscription is the normalized result of one subscriptionsv2 lookup
// against Google Play.
type VerifiedSubscription struct {
	AccessState      AccessState
	ProductID        string
	BasePlanID       *string
	ExpiryEpochMs    *int64
	IsTrial          bool
	AutoRenewEnabled bool
	Acknowledged     bool
	RawPayload       json.RawMessage
}
