package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// PurchaseHandler handles the client-facing purchase endpoints.
type PurchaseHandler struct {
	purchaseSvc service.PurchaseService
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewPurchaseHandler creates a new PurchaseHandler.
func NewPurchaseHandler(purchaseSvc service.PurchaseService, v *validator.Validate, logger zerolog.Logger) *PurchaseHandler {
	return &PurchaseHandler{purchaseSvc: purchaseSvc, validate: v, logger: logger}
}

// RegisterRoutes mounts the purchase endpoints.
func (h *PurchaseHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/purchases/verify", authMiddleware(http.HandlerFunc(h.VerifyPurchase)))
	mux.Handle("/entitlements", authMiddleware(http.HandlerFunc(h.GetEntitlements)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// VerifyPurchase godoc
// @Summary Verify a Play purchase token and refresh entitlements
// @Description Verifies the token against the Play Developer API, stores the result and returns the user's entitlement snapshot.
// @Tags purchases
// @Accept json
// @Produce json
// @Param purchase body dto.VerifyPurchaseRequest true "Purchase verification request"
// @Success 200 {object} dto.VerifyPurchaseResponse
// @Failure 400 {object} map[string]string "invalid request"
// @Failure 502 {object} map[string]string "verification failed"
// @Router /purchases/verify [post]
func (h *PurchaseHandler) VerifyPurchase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req dto.VerifyPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "details": err.Error()})
		return
	}

	result, err := h.purchaseSvc.VerifyPurchase(r.Context(), req.UserID, req.PackageName, req.ProductID, req.PurchaseToken)
	if err != nil {
		if errors.Is(err, service.ErrVerification) {
			h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to verify purchase token")
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "verification_failed"})
			return
		}
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to persist verified purchase")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}

	writeJSON(w, http.StatusOK, dto.VerifyPurchaseResponse{
		Purchase: dto.PurchaseDTO{
			ProductID:        result.Verified.ProductID,
			PurchaseToken:    req.PurchaseToken,
			BasePlanID:       result.Verified.BasePlanID,
			Acknowledged:     result.Verified.Acknowledged,
			AutoRenewEnabled: result.Verified.AutoRenewEnabled,
		},
		Entitlements:      result.Entitlements,
		ServerTimeEpochMs: time.Now().UnixMilli(),
	})
}

// GetEntitlements godoc
// @Summary Get a user's entitlement snapshot
// @Description Resolves the snapshot from all stored purchases and lists them.
// @Tags purchases
// @Produce json
// @Param userId query string true "User ID"
// @Success 200 {object} dto.EntitlementsResponse
// @Failure 400 {object} map[string]string "missing userId"
// @Router /entitlements [get]
func (h *PurchaseHandler) GetEntitlements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}

	result, err := h.purchaseSvc.GetEntitlements(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve entitlements")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}

	subscriptions := make([]dto.SubscriptionDTO, 0, len(result.Purchases))
	for _, p := range result.Purchases {
		subscriptions = append(subscriptions, dto.SubscriptionDTO{
			ProductID:        p.ProductID,
			BasePlanID:       p.BasePlanID,
			AccessState:      p.AccessState,
			ExpiryEpochMs:    p.ExpiryEpochMs,
			IsTrial:          p.IsTrial,
			AutoRenewEnabled: p.AutoRenewEnabled,
		})
	}

	writeJSON(w, http.StatusOK, dto.EntitlementsResponse{
		Entitlements:        result.Entitlements,
		ActiveSubscriptions: subscriptions,
		ServerTimeEpochMs:   time.Now().UnixMilli(),
	})
}
