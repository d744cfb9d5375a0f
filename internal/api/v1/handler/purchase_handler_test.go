package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type fakePurchaseService struct {
	verifyResult *service.VerifyResult
	verifyErr    error

	entitlements    *service.EntitlementResult
	entitlementsErr error

	outcome    *service.NotificationOutcome
	outcomeErr error

	gotNotification *model.DeveloperNotification
}

func (f *fakePurchaseService) VerifyPurchase(context.Context, string, string, string, string) (*service.VerifyResult, error) {
	return f.verifyResult, f.verifyErr
}

func (f *fakePurchaseService) ProcessNotification(_ context.Context, n *model.DeveloperNotification) (*service.NotificationOutcome, error) {
	f.gotNotification = n
	return f.outcome, f.outcomeErr
}

func (f *fakePurchaseService) GetEntitlements(context.Context, string) (*service.EntitlementResult, error) {
	return f.entitlements, f.entitlementsErr
}

func newPurchaseHandler(svc service.PurchaseService) *PurchaseHandler {
	return NewPurchaseHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
}

func TestVerifyPurchaseRejectsMissingFields(t *testing.T) {
	h := newPurchaseHandler(&fakePurchaseService{})

	body := `{"userId":"user-1","packageName":"com.example.app"}`
	req := httptest.NewRequest(http.MethodPost, "/purchases/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.VerifyPurchase(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if resp["error"] != "invalid_request" {
		t.Fatalf("expected invalid_request, got %q", resp["error"])
	}
}

func TestVerifyPurchaseRejectsMalformedJSON(t *testing.T) {
	h := newPurchaseHandler(&fakePurchaseService{})

	req := httptest.NewRequest(http.MethodPost, "/purchases/verify", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.VerifyPurchase(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestVerifyPurchaseUpstreamFailureIs502(t *testing.T) {
	h := newPurchaseHandler(&fakePurchaseService{
		verifyErr: service.ErrVerification,
	})

	body := `{"userId":"user-1","packageName":"com.example.app","productId":"pro_yearly","purchaseToken":"tok"}`
	req := httptest.NewRequest(http.MethodPost, "/purchases/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.VerifyPurchase(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["error"] != "verification_failed" {
		t.Fatalf("expected verification_failed, got %q", resp["error"])
	}
}

func TestVerifyPurchaseStorageFailureIs500(t *testing.T) {
	h := newPurchaseHandler(&fakePurchaseService{
		verifyErr: errors.New("db unavailable"),
	})

	body := `{"userId":"user-1","packageName":"com.example.app","productId":"pro_yearly","purchaseToken":"tok"}`
	req := httptest.NewRequest(http.MethodPost, "/purchases/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.VerifyPurchase(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestVerifyPurchaseReturnsSnapshotAndSummary(t *testing.T) {
	expiry := int64(1700000000000)
	basePlan := "annual"
	h := newPurchaseHandler(&fakePurchaseService{
		verifyResult: &service.VerifyResult{
			Verified: &model.VerifiedSubscription{
				AccessState:      model.AccessStateActive,
				ProductID:        "pro_yearly",
				BasePlanID:       &basePlan,
				ExpiryEpochMs:    &expiry,
				AutoRenewEnabled: true,
				Acknowledged:     true,
			},
			Entitlements: model.EntitlementSnapshot{
				Tier:              model.TierPro,
				ProToolsEnabled:   true,
				Capabilities:      []model.Capability{model.CapabilityOCRSearchableText, model.CapabilityTTSReadAloud},
				ValidUntilEpochMs: &expiry,
				Source:            model.EntitlementSourceBackendVerified,
			},
		},
	})

	body := `{"userId":"user-1","packageName":"com.example.app","productId":"pro_yearly","purchaseToken":"tok-1"}`
	req := httptest.NewRequest(http.MethodPost, "/purchases/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.VerifyPurchase(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Purchase struct {
			ProductID        string  `json:"productId"`
			PurchaseToken    string  `json:"purchaseToken"`
			BasePlanID       *string `json:"basePlanId"`
			Acknowledged     bool    `json:"acknowledged"`
			AutoRenewEnabled bool    `json:"autoRenewEnabled"`
		} `json:"purchase"`
		Entitlements struct {
			Tier string `json:"tier"`
		} `json:"entitlements"`
		ServerTimeEpochMs int64 `json:"serverTimeEpochMs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Purchase.ProductID != "pro_yearly" || resp.Purchase.PurchaseToken != "tok-1" {
		t.Fatalf("unexpected purchase summary: %+v", resp.Purchase)
	}
	if resp.Purchase.BasePlanID == nil || *resp.Purchase.BasePlanID != "annual" {
		t.Fatalf("expected basePlanId annual, got %v", resp.Purchase.BasePlanID)
	}
	if resp.Entitlements.Tier != "PRO" {
		t.Fatalf("expected PRO tier, got %s", resp.Entitlements.Tier)
	}
	if resp.ServerTimeEpochMs == 0 {
		t.Fatal("expected serverTimeEpochMs to be set")
	}
}

func TestGetEntitlementsRequiresUserID(t *testing.T) {
	h := newPurchaseHandler(&fakePurchaseService{})

	req := httptest.NewRequest(http.MethodGet, "/entitlements", nil)
	rec := httptest.NewRecorder()
	h.GetEntitlements(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetEntitlementsListsAllStoredPurchases(t *testing.T) {
	expiry := int64(1700000000000)
	h := newPurchaseHandler(&fakePurchaseService{
		entitlements: &service.EntitlementResult{
			Entitlements: model.EntitlementSnapshot{
				Tier:         model.TierFree,
				AdsEnabled:   true,
				Capabilities: []model.Capability{},
				Source:       model.EntitlementSourceLocalDefault,
			},
			Purchases: []model.Purchase{
				{ProductID: "pro_yearly", AccessState: model.AccessStateExpired, ExpiryEpochMs: &expiry},
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/entitlements?userId=user-1", nil)
	rec := httptest.NewRecorder()
	h.GetEntitlements(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		ActiveSubscriptions []struct {
			ProductID   string `json:"productId"`
			AccessState string `json:"accessState"`
		} `json:"activeSubscriptions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	// Expired purchases are listed too; only the snapshot filters by activity.
	if len(resp.ActiveSubscriptions) != 1 || resp.ActiveSubscriptions[0].AccessState != "EXPIRED" {
		t.Fatalf("expected the expired purchase to be listed, got %+v", resp.ActiveSubscriptions)
	}
}
