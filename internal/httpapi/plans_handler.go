package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/wahans/throttl/internal/models"
	"github.com/wahans/throttl/internal/store"
	"github.com/wahans/throttl/internal/utils"
)

// defaultRateLimit applies when a plan is created without one.
const defaultRateLimit = 60

// PlansHandler handles plan management endpoints
type PlansHandler struct {
	plans  store.PlanStore
	logger *utils.Logger
}

// NewPlansHandler creates a new plans handler
func NewPlansHandler(plans store.PlanStore) *PlansHandler {
	return &PlansHandler{
		plans:  plans,
		logger: utils.NewLogger("plans-handler"),
	}
}

// CreatePlanRequest is the request to create a new plan
type CreatePlanRequest struct {
	Name         string `json:"name"`
	MonthlyQuota int64  `json:"monthlyQuota"`
	RateLimit    int    `json:"rateLimit"`
}

// Collection handles /api/plans
func (h *PlansHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Item handles /api/plans/{id}
func (h *PlansHandler) Item(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/api/plans/"))
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Plan not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *PlansHandler) list(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list plans", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list plans")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, plans)
}

func (h *PlansHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if req.Name == "" || req.MonthlyQuota <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "name and monthlyQuota required")
		return
	}
	if req.RateLimit == 0 {
		req.RateLimit = defaultRateLimit
	}

	plan, err := h.plans.Create(r.Context(), req.Name, req.MonthlyQuota, req.RateLimit)
	if err != nil {
		if errors.Is(err, store.ErrDuplicatePlan) {
			utils.RespondWithError(w, http.StatusConflict, "Plan name already exists")
			return
		}
		h.logger.Error("failed to create plan", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create plan")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, plan)
}

func (h *PlansHandler) get(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	plan, err := h.plans.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Plan not found")
			return
		}
		h.logger.Error("failed to get plan", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get plan")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, plan)
}

func (h *PlansHandler) update(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var update models.PlanUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	plan, err := h.plans.Update(r.Context(), id, update)
	if err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Plan not found")
			return
		}
		h.logger.Error("failed to update plan", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update plan")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, plan)
}
