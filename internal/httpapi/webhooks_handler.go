package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/wahans/throttl/internal/models"
	"github.com/wahans/throttl/internal/store"
	"github.com/wahans/throttl/internal/utils"
)

// WebhooksHandler handles webhook subscription management endpoints
type WebhooksHandler struct {
	webhooks store.WebhookStore
	logger   *utils.Logger
}

// NewWebhooksHandler creates a new webhooks handler
func NewWebhooksHandler(webhooks store.WebhookStore) *WebhooksHandler {
	return &WebhooksHandler{
		webhooks: webhooks,
		logger:   utils.NewLogger("webhooks-handler"),
	}
}

// CreateWebhookRequest is the request to register a subscription
type CreateWebhookRequest struct {
	OwnerID string   `json:"ownerId"`
	URL     string   `json:"url"`
	Events  []string `json:"events"`
}

// Collection handles /api/webhooks
func (h *WebhooksHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Item handles /api/webhooks/{id}
func (h *WebhooksHandler) Item(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/api/webhooks/"))
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Webhook not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPatch:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *WebhooksHandler) list(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "ownerId required")
		return
	}

	webhooks, err := h.webhooks.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list webhooks", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list webhooks")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, webhooks)
}

func (h *WebhooksHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if req.OwnerID == "" || req.URL == "" || req.Events == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "ownerId, url, and events required")
		return
	}

	if msg := validateWebhookURL(req.URL); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validateWebhookEvents(req.Events); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	webhook, err := h.webhooks.Create(r.Context(), req.OwnerID, req.URL, req.Events)
	if err != nil {
		h.logger.Error("failed to create webhook", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create webhook")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, webhook)
}

func (h *WebhooksHandler) get(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	webhook, err := h.webhooks.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrWebhookNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Webhook not found")
			return
		}
		h.logger.Error("failed to get webhook", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get webhook")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, webhook)
}

func (h *WebhooksHandler) update(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var update models.WebhookUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if update.URL != nil {
		if msg := validateWebhookURL(*update.URL); msg != "" {
			utils.RespondWithError(w, http.StatusBadRequest, msg)
			return
		}
	}
	if update.Events != nil {
		if msg := validateWebhookEvents(update.Events); msg != "" {
			utils.RespondWithError(w, http.StatusBadRequest, msg)
			return
		}
	}

	webhook, err := h.webhooks.Update(r.Context(), id, update)
	if err != nil {
		if errors.Is(err, store.ErrWebhookNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Webhook not found")
			return
		}
		h.logger.Error("failed to update webhook", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update webhook")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, webhook)
}

func (h *WebhooksHandler) delete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.webhooks.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrWebhookNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Webhook not found")
			return
		}
		h.logger.Error("failed to delete webhook", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete webhook")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Webhook deleted",
	})
}

func validateWebhookURL(raw string) string {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "Invalid URL"
	}
	return ""
}

func validateWebhookEvents(events []string) string {
	if len(events) == 0 {
		return "events must be a non-empty array"
	}

	for _, event := range events {
		if !models.IsValidEvent(event) {
			valid := make([]string, 0, len(models.ValidEvents))
			for _, e := range models.ValidEvents {
				valid = append(valid, string(e))
			}
			return fmt.Sprintf("Invalid event: %s. Valid events: %s", event, strings.Join(valid, ", "))
		}
	}
	return ""
}
