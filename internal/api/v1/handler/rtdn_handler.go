package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// RTDNHandler receives Play real-time developer notifications pushed over
// Cloud Pub/Sub.
type RTDNHandler struct {
	purchaseSvc service.PurchaseService
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewRTDNHandler creates a new RTDNHandler.
func NewRTDNHandler(purchaseSvc service.PurchaseService, v *validator.Validate, logger zerolog.Logger) *RTDNHandler {
	return &RTDNHandler{purchaseSvc: purchaseSvc, validate: v, logger: logger}
}

// RegisterRoutes mounts the RTDN push endpoint behind the shared-secret gate.
func (h *RTDNHandler) RegisterRoutes(mux *http.ServeMux, secretMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/rtdn/google-play", secretMiddleware(http.HandlerFunc(h.HandlePush)))
}

// HandlePush godoc
// @Summary Process a pushed Play developer notification
// @Description Decodes the Pub/Sub push envelope and reconciles the referenced purchase. Unknown tokens are acknowledged and ignored.
// @Tags rtdn
// @Accept json
// @Produce json
// @Success 202 {object} dto.RTDNAckResponse
// @Failure 400 {object} map[string]string "invalid envelope"
// @Failure 401 {object} map[string]string "unauthorized"
// @Router /rtdn/google-play [post]
func (h *RTDNHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var envelope dto.PushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_rtdn_payload"})
		return
	}
	if err := h.validate.Struct(&envelope); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_rtdn_payload"})
		return
	}

	raw, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		h.logger.Error().Err(err).Str("message_id", envelope.Message.MessageID).Msg("Failed to decode RTDN message data")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "rtdn_processing_failed"})
		return
	}
	var notification model.DeveloperNotification
	if err := json.Unmarshal(raw, &notification); err != nil {
		h.logger.Error().Err(err).Str("message_id", envelope.Message.MessageID).Msg("Failed to parse developer notification")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "rtdn_processing_failed"})
		return
	}

	outcome, err := h.purchaseSvc.ProcessNotification(r.Context(), &notification)
	if err != nil {
		h.logger.Error().Err(err).Str("message_id", envelope.Message.MessageID).Msg("Failed to process RTDN")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "rtdn_processing_failed"})
		return
	}

	writeJSON(w, http.StatusAccepted, dto.RTDNAckResponse{OK: true, Ignored: outcome.Ignored})
}
