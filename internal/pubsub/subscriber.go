package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"app/internal/config"
	"app/internal/model"
	"app/internal/service"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// Subscriber consumes Play real-time developer notifications from a Cloud
// Pub/Sub subscription. It is the pull counterpart of the RTDN push endpoint:
// both hand the decoded notification to PurchaseService.
type Subscriber struct {
	client         *pubsub.Client
	subscriptionID string
	svc            service.PurchaseService
	logger         zerolog.Logger
}

// NewSubscriber creates a Subscriber on the configured GCP project and
// subscription.
func NewSubscriber(ctx context.Context, cfg *config.Config, svc service.PurchaseService, logger zerolog.Logger) (*Subscriber, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is required for the RTDN subscriber")
	}
	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &Subscriber{
		client:         client,
		subscriptionID: cfg.RTDNSubscriptionID,
		svc:            svc,
		logger:         logger.With().Str("service", "RTDNSubscriber").Logger(),
	}, nil
}

// Run blocks receiving notifications until the context is canceled. Messages
// are acked on success and on recognized no-op outcomes; processing errors
// nack so Pub/Sub redelivers, which is the only retry mechanism.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.client.Subscription(s.subscriptionID)
	s.logger.Info().Str("subscription", s.subscriptionID).Msg("RTDN subscriber started")

	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var notification model.DeveloperNotification
		if err := json.Unmarshal(msg.Data, &notification); err != nil {
			s.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Dropping undecodable RTDN message")
			msg.Ack()
			return
		}

		outcome, err := s.svc.ProcessNotification(ctx, &notification)
		if err != nil {
			s.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to process RTDN message")
			msg.Nack()
			return
		}
		if outcome.Ignored != "" {
			s.logger.Info().Str("message_id", msg.ID).Str("ignored", outcome.Ignored).Msg("RTDN message ignored")
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("receive on subscription %s: %w", s.subscriptionID, err)
	}
	return nil
}

// Close releases the underlying Pub/Sub client.
func (s *Subscriber) Close() error {
	return s.client.Close()
}
