package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PurchaseRepository persists the latest known state of Play purchases, one
// row per purchase token.
type PurchaseRepository interface {
	// Upsert fully replaces the row for the purchase token. It never fails
	// because the token already exists; Postgres' ON CONFLICT is the
	// serialization point for concurrent writers on the same token.
	Upsert(ctx context.Context, purchase *model.Purchase) error
	// GetByToken returns the purchase for the token, or nil when unknown.
	GetByToken(ctx context.Context, purchaseToken string) (*model.Purchase, error)
	// ListByUser returns every stored purchase for the user, most recently
	// updated first.
	ListByUser(ctx context.Context, userID string) ([]model.Purchase, error)
}

type purchaseRepo struct {
	pool *pgxpool.Pool
}

// NewPurchaseRepo creates a new PurchaseRepository.
func NewPurchaseRepo(pool *pgxpool.Pool) PurchaseRepository {
	return &purchaseRepo{pool: pool}
}

// EnsureSchema creates the purchases table and its indexes if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `
        CREATE TABLE IF NOT EXISTS play_purchases (
            purchase_token TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            package_name TEXT NOT NULL,
            product_id TEXT NOT NULL,
            base_plan_id TEXT,
            access_state TEXT NOT NULL,
            expiry_epoch_ms BIGINT,
            is_trial BOOLEAN NOT NULL DEFAULT FALSE,
            auto_renew_enabled BOOLEAN NOT NULL DEFAULT FALSE,
            acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
            raw_payload JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_play_purchases_user_id ON play_purchases(user_id);
        CREATE INDEX IF NOT EXISTS idx_play_purchases_access_state ON play_purchases(access_state);
    `
	if _, err := pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("ensure play_purchases schema: %w", err)
	}
	return nil
}

func (r *purchaseRepo) Upsert(ctx context.Context, purchase *model.Purchase) error {
	const q = `
        INSERT INTO play_purchases (
            purchase_token, user_id, package_name, product_id, base_plan_id,
            access_state, expiry_epoch_ms, is_trial, auto_renew_enabled,
            acknowledged, raw_payload, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
        ON CONFLICT (purchase_token) DO UPDATE SET
            user_id = EXCLUDED.user_id,
            package_name = EXCLUDED.package_name,
            product_id = EXCLUDED.product_id,
            base_plan_id = EXCLUDED.base_plan_id,
            access_state = EXCLUDED.access_state,
            expiry_epoch_ms = EXCLUDED.expiry_epoch_ms,
            is_trial = EXCLUDED.is_trial,
            auto_renew_enabled = EXCLUDED.auto_renew_enabled,
            acknowledged = EXCLUDED.acknowledged,
            raw_payload = EXCLUDED.raw_payload,
            updated_at = NOW()
    `
	_, err := r.pool.Exec(ctx, q,
		purchase.PurchaseToken,
		purchase.UserID,
		purchase.PackageName,
		purchase.ProductID,
		purchase.BasePlanID,
		purchase.AccessState,
		purchase.ExpiryEpochMs,
		purchase.IsTrial,
		purchase.AutoRenewEnabled,
		purchase.Acknowledged,
		purchase.RawPayload,
	)
	if err != nil {
		return fmt.Errorf("upsert purchase %s: %w", purchase.PurchaseToken, err)
	}
	return nil
}

func (r *purchaseRepo) GetByToken(ctx context.Context, purchaseToken string) (*model.Purchase, error) {
	const q = `
        SELECT purchase_token, user_id, package_name, product_id, base_plan_id,
               access_state, expiry_epoch_ms, is_trial, auto_renew_enabled,
               acknowledged, raw_payload, created_at, updated_at
        FROM play_purchases
        WHERE purchase_token = $1
    `
	var p model.Purchase
	err := r.pool.QueryRow(ctx, q, purchaseToken).Scan(
		&p.PurchaseToken,
		&p.UserID,
		&p.PackageName,
		&p.ProductID,
		&p.BasePlanID,
		&p.AccessState,
		&p.ExpiryEpochMs,
		&p.IsTrial,
		&p.AutoRenewEnabled,
		&p.Acknowledged,
		&p.RawPayload,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch purchase by token %s: %w", purchaseToken, err)
	}
	return &p, nil
}

func (r *purchaseRepo) ListByUser(ctx context.Context, userID string) ([]model.Purchase, error) {
	const q = `
        SELECT purchase_token, user_id, package_name, product_id, base_plan_id,
               access_state, expiry_epoch_ms, is_trial, auto_renew_enabled,
               acknowledged, raw_payload, created_at, updated_at
        FROM play_purchases
        WHERE user_id = $1
        ORDER BY updated_at DESC
    `
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases for user %s: %w", userID, err)
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		var p model.Purchase
		if err := rows.Scan(
			&p.PurchaseToken,
			&p.UserID,
			&p.PackageName,
			&p.ProductID,
			&p.BasePlanID,
			&p.AccessState,
			&p.ExpiryEpochMs,
			&p.IsTrial,
			&p.AutoRenewEnabled,
			&p.Acknowledged,
			&p.RawPayload,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan purchase row for user %s: %w", userID, err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases for user %s: %w", userID, err)
	}
	return purchases, nil
}
