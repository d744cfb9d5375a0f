package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/audit"
	"app/internal/entitlement"
	"app/internal/model"
	"app/internal/playstore"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// ErrVerification marks failures of the Play verification step: the token
// could not be confirmed, so no stored state is touched.
var ErrVerification = errors.New("purchase verification failed")

// Ignored-notification reasons. These are recognized no-op outcomes, not
// errors; Play's own redelivery handles the retry story for real failures.
const (
	IgnoredMissingToken = "missing_purchase_token"
	IgnoredUnknownToken = "unknown_purchase_token"
)

// VerifyResult is the outcome of a client-initiated verification.
type VerifyResult struct {
	Verified     *model.VerifiedSubscription
	Entitlements model.EntitlementSnapshot
	Purchases    []model.Purchase
}

// EntitlementResult is a user's snapshot plus every stored purchase.
type EntitlementResult struct {
	Entitlements model.EntitlementSnapshot
	Purchases    []model.Purchase
}

// NotificationOutcome reports how a developer notification was handled.
// Ignored is empty when the purchase was re-verified and persisted.
type NotificationOutcome struct {
	Ignored string
}

// PurchaseService coordinates verify, persist and resolve for both
// client-initiated verification and Play developer notifications.
type PurchaseService interface {
	VerifyPurchase(ctx context.Context, userID, packageName, productID, purchaseToken string) (*VerifyResult, error)
	ProcessNotification(ctx context.Context, notification *model.DeveloperNotification) (*NotificationOutcome, error)
	GetEntitlements(ctx context.Context, userID string) (*EntitlementResult, error)
}

type purchaseService struct {
	repo     repository.PurchaseRepository
	verifier playstore.Verifier
	resolver *entitlement.Resolver
	archiver audit.Archiver
	logger   zerolog.Logger
}

// NewPurchaseService creates a PurchaseService with a scoped logger. The
// archiver may be nil when raw payload archiving is disabled.
func NewPurchaseService(
	repo repository.PurchaseRepository,
	verifier playstore.Verifier,
	resolver *entitlement.Resolver,
	archiver audit.Archiver,
	logger zerolog.Logger,
) PurchaseService {
	return &purchaseService{
		repo:     repo,
		verifier: verifier,
		resolver: resolver,
		archiver: archiver,
		logger:   logger.With().Str("service", "PurchaseService").Logger(),
	}
}

// VerifyPurchase asks Play for the current truth of the token, persists it
// attributed to the user and returns the recomputed snapshot. On verification
// failure nothing is written, preserving prior known-good state.
func (s *purchaseService) VerifyPurchase(ctx context.Context, userID, packageName, productID, purchaseToken string) (*VerifyResult, error) {
	verified, err := s.verifier.Verify(ctx, packageName, purchaseToken, productID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("Failed to verify purchase token")
		return nil, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	if err := s.persist(ctx, userID, packageName, purchaseToken, verified); err != nil {
		return nil, err
	}

	purchases, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list purchases after verification")
		return nil, err
	}

	return &VerifyResult{
		Verified:     verified,
		Entitlements: s.resolver.Resolve(purchases, time.Now()),
		Purchases:    purchases,
	}, nil
}

// ProcessNotification handles one Play developer notification. A token that
// was never linked to a user is ignored rather than attributed blindly; the
// client-initiated verify is what links tokens to users.
func (s *purchaseService) ProcessNotification(ctx context.Context, notification *model.DeveloperNotification) (*NotificationOutcome, error) {
	purchaseToken := notification.PurchaseToken()
	if purchaseToken == "" {
		return &NotificationOutcome{Ignored: IgnoredMissingToken}, nil
	}

	existing, err := s.repo.GetByToken(ctx, purchaseToken)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to look up purchase for notification")
		return nil, err
	}
	if existing == nil {
		s.logger.Warn().Str("purchase_token", purchaseToken).Msg("Notification token not linked to a user yet, skipping upsert")
		return &NotificationOutcome{Ignored: IgnoredUnknownToken}, nil
	}

	verified, err := s.verifier.Verify(ctx, existing.PackageName, purchaseToken, existing.ProductID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", existing.UserID).Msg("Failed to re-verify purchase from notification")
		return nil, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	if err := s.persist(ctx, existing.UserID, existing.PackageName, purchaseToken, verified); err != nil {
		return nil, err
	}
	return &NotificationOutcome{}, nil
}

// GetEntitlements resolves the snapshot from everything currently stored for
// the user. The purchase list is intentionally unfiltered; the resolver does
// its own active-set filtering.
func (s *purchaseService) GetEntitlements(ctx context.Context, userID string) (*EntitlementResult, error) {
	purchases, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list purchases")
		return nil, err
	}
	return &EntitlementResult{
		Entitlements: s.resolver.Resolve(purchases, time.Now()),
		Purchases:    purchases,
	}, nil
}

func (s *purchaseService) persist(ctx context.Context, userID, packageName, purchaseToken string, verified *model.VerifiedSubscription) error {
	err := s.repo.Upsert(ctx, &model.Purchase{
		PurchaseToken:    purchaseToken,
		UserID:           userID,
		PackageName:      packageName,
		ProductID:        verified.ProductID,
		BasePlanID:       verified.BasePlanID,
		AccessState:      verified.AccessState,
		ExpiryEpochMs:    verified.ExpiryEpochMs,
		IsTrial:          verified.IsTrial,
		AutoRenewEnabled: verified.AutoRenewEnabled,
		Acknowledged:     verified.Acknowledged,
		RawPayload:       verified.RawPayload,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to upsert purchase")
		return err
	}

	// Best-effort audit trail; the row keeps latest state only.
	if s.archiver != nil {
		if err := s.archiver.ArchiveRawPayload(ctx, purchaseToken, verified.RawPayload); err != nil {
			s.logger.Warn().Err(err).Str("purchase_token", purchaseToken).Msg("Failed to archive raw verification payload")
		}
	}
	return nil
}
