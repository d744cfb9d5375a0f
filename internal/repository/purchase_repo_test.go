package repository

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// testPool connects to the database named by TEST_DATABASE_URL, skipping the
// test when it is not set.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skip database integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE play_purchases"); err != nil {
		t.Fatalf("failed to truncate play_purchases: %v", err)
	}
	return pool
}

func testPurchase(token, userID, productID string, state model.AccessState) *model.Purchase {
	expiry := time.Now().Add(time.Hour).UnixMilli()
	basePlan := "annual"
	return &model.Purchase{
		PurchaseToken:    token,
		UserID:           userID,
		PackageName:      "com.example.app",
		ProductID:        productID,
		BasePlanID:       &basePlan,
		AccessState:      state,
		ExpiryEpochMs:    &expiry,
		AutoRenewEnabled: true,
		Acknowledged:     true,
		RawPayload:       json.RawMessage(`{"subscriptionState":"SUBSCRIPTION_STATE_ACTIVE"}`),
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	pool := testPool(t)
	repo := NewPurchaseRepo(pool)
	ctx := context.Background()

	p := testPurchase("token-idem", "user-1", "pro_yearly", model.AccessStateActive)
	if err := repo.Upsert(ctx, p); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := repo.Upsert(ctx, p); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	stored, err := repo.GetByToken(ctx, "token-idem")
	if err != nil {
		t.Fatalf("get by token failed: %v", err)
	}
	if stored == nil {
		t.Fatal("expected purchase to exist")
	}
	if stored.ProductID != "pro_yearly" || stored.AccessState != model.AccessStateActive {
		t.Fatalf("unexpected stored state: %+v", stored)
	}

	purchases, err := repo.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list by user failed: %v", err)
	}
	if len(purchases) != 1 {
		t.Fatalf("expected exactly one row after repeated upserts, got %d", len(purchases))
	}
}

func TestUpsertFullyReplacesRow(t *testing.T) {
	pool := testPool(t)
	repo := NewPurchaseRepo(pool)
	ctx := context.Background()

	first := testPurchase("token-replace", "user-1", "pro_yearly", model.AccessStateActive)
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	second := testPurchase("token-replace", "user-1", "pro_yearly", model.AccessStateExpired)
	second.BasePlanID = nil
	second.ExpiryEpochMs = nil
	second.AutoRenewEnabled = false
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("replacing upsert failed: %v", err)
	}

	stored, err := repo.GetByToken(ctx, "token-replace")
	if err != nil {
		t.Fatalf("get by token failed: %v", err)
	}
	if stored.AccessState != model.AccessStateExpired {
		t.Fatalf("expected EXPIRED after replacement, got %s", stored.AccessState)
	}
	if stored.BasePlanID != nil || stored.ExpiryEpochMs != nil || stored.AutoRenewEnabled {
		t.Fatalf("expected full replacement without field merge, got %+v", stored)
	}
}

func TestGetByTokenUnknownReturnsNil(t *testing.T) {
	pool := testPool(t)
	repo := NewPurchaseRepo(pool)

	stored, err := repo.GetByToken(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("get by token failed: %v", err)
	}
	if stored != nil {
		t.Fatalf("expected nil for unknown token, got %+v", stored)
	}
}

func TestListByUserOrdersByMostRecentUpdate(t *testing.T) {
	pool := testPool(t)
	repo := NewPurchaseRepo(pool)
	ctx := context.Background()

	older := testPurchase("token-old", "user-2", "plus_yearly", model.AccessStateExpired)
	newer := testPurchase("token-new", "user-2", "pro_yearly", model.AccessStateActive)
	if err := repo.Upsert(ctx, older); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := repo.Upsert(ctx, newer); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	// Touch the older row so it becomes the most recently updated.
	if err := repo.Upsert(ctx, older); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	purchases, err := repo.ListByUser(ctx, "user-2")
	if err != nil {
		t.Fatalf("list by user failed: %v", err)
	}
	if len(purchases) != 2 {
		t.Fatalf("expected 2 purchases, got %d", len(purchases))
	}
	if purchases[0].PurchaseToken != "token-old" {
		t.Fatalf("expected most recently updated first, got %s", purchases[0].PurchaseToken)
	}
}
