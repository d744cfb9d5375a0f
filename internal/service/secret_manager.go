package service

import (
	"context"
	"fmt"
	"strings"

	"app/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/rs/zerolog"
)

// SecretManagerService reads secret values from GCP Secret Manager.
type SecretManagerService interface {
	AccessSecret(ctx context.Context, name string) (string, error)
	Close() error
}

type secretManagerService struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerService(ctx context.Context, cfg *config.Config) (SecretManagerService, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is not set")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:    client,
		projectID: cfg.GCPProjectID,
	}, nil
}

// AccessSecret returns the latest version of the named secret. The name may
// be a bare secret ID or a full projects/.../secrets/... resource path.
func (s *secretManagerService) AccessSecret(ctx context.Context, name string) (string, error) {
	resourceName := name
	if !strings.Contains(name, "/") {
		resourceName = fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	} else if !strings.Contains(name, "/versions/") {
		resourceName = name + "/versions/latest"
	}

	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %s: %w", resourceName, err)
	}
	return string(result.Payload.Data), nil
}

func (s *secretManagerService) Close() error {
	return s.client.Close()
}

// LoadConfigSecrets fills the sensitive config values from their Secret
// Manager counterparts when a secret name is configured and the raw env value
// is empty. A non-empty env value always wins; it is never overwritten.
func LoadConfigSecrets(ctx context.Context, cfg *config.Config, sm SecretManagerService, logger zerolog.Logger) error {
	if cfg.GoogleServiceAccountSecretName != "" && cfg.GoogleServiceAccountJSON == "" {
		value, err := sm.AccessSecret(ctx, cfg.GoogleServiceAccountSecretName)
		if err != nil {
			return fmt.Errorf("load service account secret: %w", err)
		}
		cfg.GoogleServiceAccountJSON = value
		logger.Info().Str("secret", cfg.GoogleServiceAccountSecretName).Msg("Loaded Google service account JSON from Secret Manager")
	}
	if cfg.RTDNSharedSecretName != "" && cfg.RTDNSharedSecret == "" {
		value, err := sm.AccessSecret(ctx, cfg.RTDNSharedSecretName)
		if err != nil {
			return fmt.Errorf("load RTDN shared secret: %w", err)
		}
		cfg.RTDNSharedSecret = value
		logger.Info().Str("secret", cfg.RTDNSharedSecretName).Msg("Loaded RTDN shared secret from Secret Manager")
	}
	return nil
}
