package entitlement

import (
	"time"

	"app/internal/model"
)

// TierTable maps a Play product ID to the tier it unlocks. The mapping is
// deployment configuration, not resolver logic; a product ID with no entry
// resolves to FREE.
type TierTable map[string]model.Tier

// NewTierTable builds the table from the configured yearly product IDs.
func NewTierTable(plusProductID, proProductID string) TierTable {
	return TierTable{
		plusProductID: model.TierPlus,
		proProductID:  model.TierPro,
	}
}

// TierFor returns the tier a product ID unlocks, FREE when unmapped.
func (t TierTable) TierFor(productID string) model.Tier {
	if tier, ok := t[productID]; ok {
		return tier
	}
	return model.TierFree
}

// Resolver derives entitlement snapshots from a user's stored purchases.
// Resolution is pure and deterministic; it performs no I/O.
type Resolver struct {
	tiers TierTable
}

func NewResolver(tiers TierTable) *Resolver {
	return &Resolver{tiers: tiers}
}

// Resolve computes the snapshot for the given purchase set at the given
// instant. A purchase counts as active when its state is ACTIVE or
// GRACE_PERIOD and its expiry is either unknown or strictly in the future.
// The stored access state can lag behind reality between verifications, so
// the expiry check here is the safety net against stale ACTIVE rows.
func (r *Resolver) Resolve(purchases []model.Purchase, now time.Time) model.EntitlementSnapshot {
	nowMs := now.UnixMilli()

	var active []model.Purchase
	for _, p := range purchases {
		if !isActiveState(p.AccessState) {
			continue
		}
		if p.ExpiryEpochMs != nil && *p.ExpiryEpochMs <= nowMs {
			continue
		}
		active = append(active, p)
	}

	if len(active) == 0 {
		return model.EntitlementSnapshot{
			Tier:            model.TierFree,
			AdsEnabled:      true,
			ProToolsEnabled: false,
			Capabilities:    capabilitiesForTier(model.TierFree),
			Source:          model.EntitlementSourceLocalDefault,
		}
	}

	tier := model.TierFree
	for _, p := range active {
		if t := r.tiers.TierFor(p.ProductID); t.Rank() > tier.Rank() {
			tier = t
		}
	}

	// validUntil is the latest known expiry among active purchases at the
	// winning tier; all-unknown expiries mean indefinite validity (nil).
	var validUntil *int64
	for _, p := range active {
		if r.tiers.TierFor(p.ProductID) != tier || p.ExpiryEpochMs == nil {
			continue
		}
		if validUntil == nil || *p.ExpiryEpochMs > *validUntil {
			expiry := *p.ExpiryEpochMs
			validUntil = &expiry
		}
	}

	return model.EntitlementSnapshot{
		Tier:              tier,
		AdsEnabled:        tier == model.TierFree,
		ProToolsEnabled:   tier == model.TierPro,
		Capabilities:      capabilitiesForTier(tier),
		ValidUntilEpochMs: validUntil,
		Source:            model.EntitlementSourceBackendVerified,
	}
}

func isActiveState(state model.AccessState) bool {
	return state == model.AccessStateActive || state == model.AccessStateGracePeriod
}

func capabilitiesForTier(tier model.Tier) []model.Capability {
	if tier != model.TierPro {
		return []model.Capability{}
	}
	return []model.Capability{
		model.CapabilityOCRSearchableText,
		model.CapabilityTTSReadAloud,
	}
}
