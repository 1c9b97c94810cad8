package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/wahans/throttl/internal/metrics"
	"github.com/wahans/throttl/internal/models"
	"github.com/wahans/throttl/internal/usage"
	"github.com/wahans/throttl/internal/utils"
)

// ValidateHandler serves the validation endpoint, the service's hot path
type ValidateHandler struct {
	engine  *usage.Engine
	metrics metrics.Metrics
	logger  *utils.Logger
}

// NewValidateHandler creates a new validate handler
func NewValidateHandler(engine *usage.Engine, m metrics.Metrics) *ValidateHandler {
	return &ValidateHandler{
		engine:  engine,
		metrics: m,
		logger:  utils.NewLogger("validate-handler"),
	}
}

// ValidateRequest is the POST body carrying the secret
type ValidateRequest struct {
	Key string `json:"key"`
}

// Handle routes the validate endpoint by method
func (h *ValidateHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.validate(w, r)
	case http.MethodGet:
		h.peek(w, r)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// validate handles POST /api/validate - check the key and count one request
func (h *ValidateHandler) validate(w http.ResponseWriter, r *http.Request) {
	secret := h.extractSecret(r)
	if secret == "" {
		utils.RespondWithJSON(w, http.StatusBadRequest, models.Verdict{
			Valid: false,
			Error: "key required",
		})
		return
	}

	verdict, err := h.engine.Validate(r.Context(), secret)
	if err != nil {
		// Counter or gate state is unknown; refusing is the only safe answer.
		h.metrics.RecordValidation("error")
		h.logger.Error("validation failed", "error", err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Validation temporarily unavailable")
		return
	}

	h.metrics.RecordValidation(verdictOutcome(verdict))
	utils.RespondWithJSON(w, verdictStatus(verdict), verdict)
}

// peek handles GET /api/validate - read-only usage view, no side effects
func (h *ValidateHandler) peek(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-API-Key")
	if secret == "" {
		secret = r.URL.Query().Get("key")
	}
	if secret == "" {
		utils.RespondWithJSON(w, http.StatusBadRequest, models.Verdict{
			Valid: false,
			Error: "key required",
		})
		return
	}

	result, err := h.engine.Peek(r.Context(), secret)
	if err != nil {
		h.logger.Error("peek failed", "error", err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Validation temporarily unavailable")
		return
	}

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnauthorized
	}
	utils.RespondWithJSON(w, status, result)
}

// extractSecret pulls the secret from the JSON body, falling back to the
// X-API-Key header.
func (h *ValidateHandler) extractSecret(r *http.Request) string {
	var req ValidateRequest
	if r.Body != nil {
		// A malformed or empty body is fine when the header carries the key.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Key != "" {
		return req.Key
	}
	return r.Header.Get("X-API-Key")
}

func verdictOutcome(v *models.Verdict) string {
	if v.Valid {
		return "valid"
	}
	return v.Error
}

func verdictStatus(v *models.Verdict) int {
	if v.Valid {
		return http.StatusOK
	}
	switch v.Error {
	case models.ErrCodeQuotaExceeded, models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusUnauthorized
	}
}
