package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wahans/throttl/internal/models"
)

func TestPlansHandler_Create(t *testing.T) {
	f := newAPIFixture(t)
	h := NewPlansHandler(f.plans)

	t.Run("creates with explicit rate limit", func(t *testing.T) {
		rec := postJSON(t, h.Collection, "/api/plans", CreatePlanRequest{
			Name:         "pro",
			MonthlyQuota: 50000,
			RateLimit:    100,
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var plan models.Plan
		decodeBody(t, rec, &plan)
		assert.Equal(t, "pro", plan.Name)
		assert.Equal(t, int64(50000), plan.MonthlyQuota)
		assert.Equal(t, 100, plan.RateLimit)
	})

	t.Run("rate limit defaults", func(t *testing.T) {
		rec := postJSON(t, h.Collection, "/api/plans", CreatePlanRequest{
			Name:         "basic",
			MonthlyQuota: 1000,
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var plan models.Plan
		decodeBody(t, rec, &plan)
		assert.Equal(t, defaultRateLimit, plan.RateLimit)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		rec := postJSON(t, h.Collection, "/api/plans", CreatePlanRequest{
			Name:         "pro",
			MonthlyQuota: 99,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := postJSON(t, h.Collection, "/api/plans", CreatePlanRequest{Name: "incomplete"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "name and monthlyQuota required")
	})
}

func TestPlansHandler_GetAndList(t *testing.T) {
	f := newAPIFixture(t)
	plan := f.plan(t, "pro", 50000)
	f.plan(t, "free", 1000)
	h := NewPlansHandler(f.plans)

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
		rec := httptest.NewRecorder()
		h.Collection(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var plans []*models.Plan
		decodeBody(t, rec, &plans)
		assert.Len(t, plans, 2)
	})

	t.Run("get", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/plans/"+plan.ID.String(), nil)
		rec := httptest.NewRecorder()
		h.Item(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/plans/7a0a3f5e-93a1-4a12-9267-9a7655b0d4a7", nil)
		rec := httptest.NewRecorder()
		h.Item(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Plan not found")
	})
}

func TestPlansHandler_Update(t *testing.T) {
	f := newAPIFixture(t)
	plan := f.plan(t, "pro", 50000)
	h := NewPlansHandler(f.plans)

	quota := int64(75000)
	payload, err := json.Marshal(models.PlanUpdate{MonthlyQuota: &quota})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/api/plans/"+plan.ID.String(), bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Item(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Plan
	decodeBody(t, rec, &updated)
	assert.Equal(t, int64(75000), updated.MonthlyQuota)
	// Untouched field survives a partial update.
	assert.Equal(t, plan.RateLimit, updated.RateLimit)
}
