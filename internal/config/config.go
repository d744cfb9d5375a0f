package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Google Play settings. PackageName is reserved for server-side package
	// pinning; requests currently carry their own packageName.
	PackageName              string `envconfig:"GOOGLE_PLAY_PACKAGE_NAME" required:"true"`
	GoogleServiceAccountJSON string `envconfig:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	PlusYearlyProductID      string `envconfig:"PLUS_YEARLY_PRODUCT_ID" default:"plus_yearly"`
	ProYearlyProductID       string `envconfig:"PRO_YEARLY_PRODUCT_ID" default:"pro_yearly"`
	VerifyTimeoutSec         int    `envconfig:"VERIFY_TIMEOUT_SEC" default:"15"`

	// RTDN settings. The shared secret gates the HTTP push endpoint; the
	// subscription ID enables the optional Pub/Sub pull consumer.
	RTDNSharedSecret   string `envconfig:"RTDN_SHARED_SECRET"`
	RTDNSubscriptionID string `envconfig:"RTDN_SUBSCRIPTION_ID"`
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`

	// Secret Manager settings: when set, the named secrets fill the raw env
	// values above at startup if those are empty. A non-empty env value wins.
	GoogleServiceAccountSecretName string `envconfig:"GOOGLE_SERVICE_ACCOUNT_SECRET_NAME"`
	RTDNSharedSecretName           string `envconfig:"RTDN_SHARED_SECRET_NAME"`

	// Raw payload audit archive (S3-compatible storage). Disabled when the
	// bucket is empty.
	AuditS3URL       string `envconfig:"AUDIT_S3_URL"`
	AuditS3Bucket    string `envconfig:"AUDIT_S3_BUCKET"`
	AuditS3Region    string `envconfig:"AUDIT_S3_REGION" default:"us-east-1"`
	AuditS3AccessKey string `envconfig:"AUDIT_S3_ACCESS_KEY"`
	AuditS3SecretKey string `envconfig:"AUDIT_S3_SECRET_KEY"`

	// Optional bearer auth for the client-facing endpoints. Routes are open
	// when unset.
	APIJWTSecret string `envconfig:"API_JWT_SECRET"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
