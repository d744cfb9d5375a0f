package model

// Tier is an ordered monetization level. Ordering is FREE < PLUS < PRO.
type Tier string

const (
	TierFree Tier = "FREE"
	TierPlus Tier = "PLUS"
	TierPro  Tier = "PRO"
)

// Rank returns the ordering position of the tier for max-tier comparisons.
func (t Tier) Rank() int {
	switch t {
	case TierPlus:
		return 1
	case TierPro:
		return 2
	default:
		return 0
	}
}

// EntitlementSource says whether the snapshot came from verified purchase
// state or is the default for a user with no active purchase.
type EntitlementSource string

const (
	EntitlementSourceLocalDefault    EntitlementSource = "LOCAL_DEFAULT"
	EntitlementSourceBackendVerified EntitlementSource = "BACKEND_VERIFIED"
)

// Capability is a feature flag unlocked by a tier.
type Capability string

const (
	CapabilityOCRSearchableText Capability = "OCR_SEARCHABLE_TEXT"
	CapabilityTTSReadAloud      Capability = "TTS_READ_ALOUD"
)

// EntitlementSnapshot is a point-in-time projection of a user's feature
// access, recomputed on demand from their stored purchases. Never persisted.
type EntitlementSnapshot struct {
	Tier              Tier              `json:"tier"`
	AdsEnabled        bool              `json:"adsEnabled"`
	ProToolsEnabled   bool              `json:"proToolsEnabled"`
	Capabilities      []Capability      `json:"capabilities"`
	ValidUntilEpochMs *int64            `json:"validUntilEpochMs"`
	Source            EntitlementSource `json:"source"`
}
