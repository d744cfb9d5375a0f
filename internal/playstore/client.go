package playstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"app/internal/config"
	"app/internal/model"

	"github.com/rs/zerolog"
	androidpublisher "google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var (
	// ErrNoLineItems is returned when Play reports a subscription with zero
	// line items; nothing can be attributed to a product in that case.
	ErrNoLineItems = errors.New("no line items in subscription response")
	// ErrSubscriptionNotFound is returned when Play does not know the token.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Verifier fetches the authoritative current state of a purchase token.
type Verifier interface {
	Verify(ctx context.Context, packageName, purchaseToken, expectedProductID string) (*model.VerifiedSubscription, error)
}

// subscriptionStates maps the Play subscriptionsv2 state vocabulary to the
// internal access states. Anything outside the table resolves to REVOKED so
// that an unknown or absent state never grants access. CANCELED maps to
// EXPIRED: cancellation alone does not end access, the trailing window is
// tracked through expiry and auto-renew instead.
var subscriptionStates = map[string]model.AccessState{
	"SUBSCRIPTION_STATE_ACTIVE":          model.AccessStateActive,
	"SUBSCRIPTION_STATE_IN_GRACE_PERIOD": model.AccessStateGracePeriod,
	"SUBSCRIPTION_STATE_ON_HOLD":         model.AccessStateOnHold,
	"SUBSCRIPTION_STATE_PAUSED":          model.AccessStatePaused,
	"SUBSCRIPTION_STATE_EXPIRED":         model.AccessStateExpired,
	"SUBSCRIPTION_STATE_CANCELED":        model.AccessStateExpired,
}

func mapSubscriptionState(state string) model.AccessState {
	if mapped, ok := subscriptionStates[state]; ok {
		return mapped
	}
	return model.AccessStateRevoked
}

// Client is the androidpublisher-backed Verifier. It is constructed once at
// startup with explicit credentials so tests can swap in a double.
type Client struct {
	service *androidpublisher.Service
	timeout time.Duration
	logger  zerolog.Logger
}

// NewClient builds the Play Developer API client from the service account
// JSON in config.
func NewClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	if cfg.GoogleServiceAccountJSON == "" {
		return nil, errors.New("google service account JSON is not configured")
	}
	service, err := androidpublisher.NewService(ctx,
		option.WithCredentialsJSON([]byte(cfg.GoogleServiceAccountJSON)),
		option.WithScopes(androidpublisher.AndroidpublisherScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create androidpublisher service: %w", err)
	}
	return &Client{
		service: service,
		timeout: time.Duration(cfg.VerifyTimeoutSec) * time.Second,
		logger:  logger.With().Str("service", "PlaystoreClient").Logger(),
	}, nil
}

// Verify fetches the subscription state for the token via
// purchases.subscriptionsv2.get and normalizes it. The call carries a bounded
// timeout so a slow Play API degrades only the single request.
func (c *Client) Verify(ctx context.Context, packageName, purchaseToken, expectedProductID string) (*model.VerifiedSubscription, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sub, err := c.service.Purchases.Subscriptionsv2.Get(packageName, purchaseToken).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 404 {
			c.logger.Warn().Str("package_name", packageName).Msg("Play does not know the purchase token")
			return nil, fmt.Errorf("token %s: %w", purchaseToken, ErrSubscriptionNotFound)
		}
		c.logger.Error().Err(err).Str("package_name", packageName).Msg("Failed to fetch subscription from Play")
		return nil, fmt.Errorf("fetch subscription for token %s: %w", purchaseToken, err)
	}
	return fromSubscription(sub, expectedProductID)
}

// fromSubscription normalizes a subscriptionsv2 response into the internal
// shape. When multiple line items are bundled under one token it picks the
// item matching expectedProductID, else the first one. That fallback can
// misattribute tier and expiry for bundles where the expected product is
// absent; kept as-is until bundled products are actually sold.
func fromSubscription(sub *androidpublisher.SubscriptionPurchaseV2, expectedProductID string) (*model.VerifiedSubscription, error) {
	if len(sub.LineItems) == 0 {
		return nil, ErrNoLineItems
	}

	matching := sub.LineItems[0]
	for _, item := range sub.LineItems {
		if expectedProductID != "" && item.ProductId == expectedProductID {
			matching = item
			break
		}
	}

	// An unparseable expiry means "no known expiry", not a failure.
	var expiryEpochMs *int64
	if matching.ExpiryTime != "" {
		if expiry, err := time.Parse(time.RFC3339, matching.ExpiryTime); err == nil {
			ms := expiry.UnixMilli()
			expiryEpochMs = &ms
		}
	}

	productID := matching.ProductId
	if productID == "" {
		productID = expectedProductID
	}
	if productID == "" {
		productID = "unknown_product"
	}

	var basePlanID *string
	if matching.OfferDetails != nil && matching.OfferDetails.BasePlanId != "" {
		basePlanID = &matching.OfferDetails.BasePlanId
	}

	raw, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("marshal raw subscription payload: %w", err)
	}

	return &model.VerifiedSubscription{
		AccessState:      mapSubscriptionState(sub.SubscriptionState),
		ProductID:        productID,
		BasePlanID:       basePlanID,
		ExpiryEpochMs:    expiryEpochMs,
		IsTrial:          false,
		AutoRenewEnabled: matching.AutoRenewingPlan != nil,
		Acknowledged:     sub.AcknowledgementState == "ACKNOWLEDGEMENT_STATE_ACKNOWLEDGED",
		RawPayload:       raw,
	}, nil
}
