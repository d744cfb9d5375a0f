package router

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"app/internal/api/v1/handler"
	"app/internal/audit"
	"app/internal/config"
	"app/internal/entitlement"
	"app/internal/middleware"
	"app/internal/playstore"
	"app/internal/repository"
	"app/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the full request path: database pool, Play client, audit sink,
// repositories, services, handlers and middleware. It also returns the
// purchase service so main can hand it to the pull subscriber.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, service.PurchaseService, error) {
	// 1. Open DB pool and make sure the schema exists.
	dsn := cfg.DatabaseURL
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DB pool")
		return nil, nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		pool.Close()
		return nil, nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		logger.Error().Err(err).Msg("Failed to bootstrap schema")
		pool.Close()
		return nil, nil, nil, err
	}

	// 2. Play Developer API client.
	verifier, err := playstore.NewClient(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create Play client")
		pool.Close()
		return nil, nil, nil, err
	}

	// 3. Optional raw payload archive.
	var archiver audit.Archiver
	if cfg.AuditS3Bucket != "" {
		s3Client, err := newS3Client(ctx, cfg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create audit S3 client")
			pool.Close()
			return nil, nil, nil, err
		}
		archiver = audit.NewS3Archiver(s3Client, cfg.AuditS3Bucket)
		logger.Info().Str("bucket", cfg.AuditS3Bucket).Msg("Raw payload audit archive enabled")
	}

	// 4. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 5. Repositories, services, handlers.
	purchaseRepo := repository.NewPurchaseRepo(pool)
	resolver := entitlement.NewResolver(entitlement.NewTierTable(cfg.PlusYearlyProductID, cfg.ProYearlyProductID))
	purchaseSvc := service.NewPurchaseService(purchaseRepo, verifier, resolver, archiver, logger)

	purchaseHandler := handler.NewPurchaseHandler(purchaseSvc, validate, logger)
	rtdnHandler := handler.NewRTDNHandler(purchaseSvc, validate, logger)

	// 6. Middleware.
	authMiddleware := middleware.AuthMiddleware(cfg.APIJWTSecret)
	secretMiddleware := middleware.RTDNSecretMiddleware(cfg.RTDNSharedSecret, logger)

	// 7. Route table under /v1.
	apiV1Mux := http.NewServeMux()
	purchaseHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	rtdnHandler.RegisterRoutes(apiV1Mux, secretMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "service": "play-billing-backend"})
	})

	// 8. CORS for the mobile clients' webviews and local tooling.
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), pool, purchaseSvc, nil
}

// newS3Client builds the archive client. Path-style addressing and the gzip
// middleware removal keep it compatible with S3-compatible stores like
// Supabase storage.
func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AuditS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AuditS3AccessKey, cfg.AuditS3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(s3Config, func(o *s3.Options) {
		if cfg.AuditS3URL != "" {
			o.BaseEndpoint = aws.String(cfg.AuditS3URL)
		}
		o.UsePathStyle = true
	}), nil
}

// removeDisableGzip is a workaround for S3 signature errors with some
// S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
