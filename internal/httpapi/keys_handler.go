package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/wahans/throttl/internal/models"
	"github.com/wahans/throttl/internal/store"
	"github.com/wahans/throttl/internal/usage"
	"github.com/wahans/throttl/internal/utils"
)

const secretMessage = "Store this secret securely - it will not be shown again"

// KeysHandler handles key management endpoints
type KeysHandler struct {
	keys   store.KeyStore
	plans  store.PlanStore
	engine *usage.Engine
	logger *utils.Logger
}

// NewKeysHandler creates a new keys handler
func NewKeysHandler(keys store.KeyStore, plans store.PlanStore, engine *usage.Engine) *KeysHandler {
	return &KeysHandler{
		keys:   keys,
		plans:  plans,
		engine: engine,
		logger: utils.NewLogger("keys-handler"),
	}
}

// CreateKeyRequest is the request to issue a new key
type CreateKeyRequest struct {
	Name    string `json:"name"`
	PlanID  string `json:"planId"`
	OwnerID string `json:"ownerId"`
}

// KeyCreatedResponse carries the plaintext secret, returned exactly once
type KeyCreatedResponse struct {
	ID      string `json:"id"`
	Secret  string `json:"secret"`
	Name    string `json:"name"`
	PlanID  string `json:"planId"`
	OwnerID string `json:"ownerId"`
	Message string `json:"message"`
}

// UsageBlock summarizes a key's current-period consumption
type UsageBlock struct {
	Current   int64 `json:"current"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

// KeyDetailResponse is key metadata plus its usage block, secret redacted
type KeyDetailResponse struct {
	*models.Key
	Usage UsageBlock `json:"usage"`
}

// Collection handles /api/keys
func (h *KeysHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Item handles /api/keys/{id} and /api/keys/{id}/regenerate
func (h *KeysHandler) Item(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/keys/"), "/")

	id, err := uuid.Parse(parts[0])
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Key not found")
		return
	}

	if len(parts) == 2 && parts[1] == "regenerate" {
		if r.Method != http.MethodPost {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.regenerate(w, r, id)
		return
	}
	if len(parts) != 1 {
		utils.RespondWithError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.revoke(w, r, id)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *KeysHandler) list(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "ownerId required")
		return
	}

	keys, err := h.keys.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list keys", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list keys")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, keys)
}

func (h *KeysHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if req.Name == "" || req.PlanID == "" || req.OwnerID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "name, planId and ownerId required")
		return
	}

	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid planId")
		return
	}

	if _, err := h.plans.GetByID(r.Context(), planID); err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid planId")
			return
		}
		h.logger.Error("failed to resolve plan", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create key")
		return
	}

	key, secret, err := h.keys.Create(r.Context(), req.Name, planID, req.OwnerID)
	if err != nil {
		h.logger.Error("failed to create key", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create key")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, KeyCreatedResponse{
		ID:      key.ID.String(),
		Secret:  secret,
		Name:    key.Name,
		PlanID:  key.PlanID.String(),
		OwnerID: key.OwnerID,
		Message: secretMessage,
	})
}

func (h *KeysHandler) get(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	key, err := h.keys.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Key not found")
			return
		}
		h.logger.Error("failed to get key", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get key")
		return
	}

	current, err := h.engine.CurrentUsage(r.Context(), key.ID)
	if err != nil {
		h.logger.Error("failed to read usage", "key_id", key.ID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get key")
		return
	}

	var limit int64
	if plan, err := h.plans.GetByID(r.Context(), key.PlanID); err == nil {
		limit = plan.MonthlyQuota
	}

	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}

	utils.RespondWithJSON(w, http.StatusOK, KeyDetailResponse{
		Key: key,
		Usage: UsageBlock{
			Current:   current,
			Limit:     limit,
			Remaining: remaining,
		},
	})
}

func (h *KeysHandler) revoke(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.keys.Revoke(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Key not found")
			return
		}
		h.logger.Error("failed to revoke key", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to revoke key")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Key revoked",
	})
}

func (h *KeysHandler) regenerate(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	secret, err := h.keys.Regenerate(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Key not found")
			return
		}
		h.logger.Error("failed to regenerate key", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to regenerate key")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"secret":  secret,
		"message": secretMessage,
	})
}
