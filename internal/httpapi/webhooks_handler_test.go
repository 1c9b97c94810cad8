package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wahans/throttl/internal/models"
)

func TestWebhooksHandler_Create(t *testing.T) {
	f := newAPIFixture(t)
	h := NewWebhooksHandler(f.webhooks)

	t.Run("registers subscription", func(t *testing.T) {
		rec := postJSON(t, h.Collection, "/api/webhooks", CreateWebhookRequest{
			OwnerID: "acme",
			URL:     "https://hooks.acme.example/quota",
			Events:  []string{"quota.90_percent", "quota.exceeded"},
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var webhook models.Webhook
		decodeBody(t, rec, &webhook)
		assert.Equal(t, "acme", webhook.OwnerID)
		assert.True(t, webhook.Active)
		assert.Len(t, webhook.Events, 2)
	})

	t.Run("rejects unknown event", func(t *testing.T) {
		rec := postJSON(t, h.Collection, "/api/webhooks", CreateWebhookRequest{
			OwnerID: "acme",
			URL:     "https://hooks.acme.example/quota",
			Events:  []string{"quota.50_percent"},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid event: quota.50_percent. Valid events: quota.90_percent, quota.exceeded")
	})

	t.Run("rejects empty events", func(t *testing.T) {
		rec := postJSON(t, h.Collection, "/api/webhooks", CreateWebhookRequest{
			OwnerID: "acme",
			URL:     "https://hooks.acme.example/quota",
			Events:  []string{},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects bad URL", func(t *testing.T) {
		rec := postJSON(t, h.Collection, "/api/webhooks", CreateWebhookRequest{
			OwnerID: "acme",
			URL:     "ftp://hooks.acme.example/quota",
			Events:  []string{"quota.exceeded"},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid URL")
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := postJSON(t, h.Collection, "/api/webhooks", CreateWebhookRequest{OwnerID: "acme"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWebhooksHandler_List(t *testing.T) {
	f := newAPIFixture(t)
	h := NewWebhooksHandler(f.webhooks)

	_, err := f.webhooks.Create(context.Background(), "acme", "https://a.example/h", []string{"quota.exceeded"})
	require.NoError(t, err)
	_, err = f.webhooks.Create(context.Background(), "globex", "https://b.example/h", []string{"quota.exceeded"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/webhooks?ownerId=acme", nil)
	rec := httptest.NewRecorder()
	h.Collection(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var webhooks []*models.Webhook
	decodeBody(t, rec, &webhooks)
	assert.Len(t, webhooks, 1)

	t.Run("ownerId required", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/webhooks", nil)
		rec := httptest.NewRecorder()
		h.Collection(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWebhooksHandler_Update(t *testing.T) {
	f := newAPIFixture(t)
	h := NewWebhooksHandler(f.webhooks)

	webhook, err := f.webhooks.Create(context.Background(), "acme", "https://a.example/h", []string{"quota.exceeded"})
	require.NoError(t, err)

	t.Run("disable", func(t *testing.T) {
		active := false
		payload, err := json.Marshal(models.WebhookUpdate{Active: &active})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPatch, "/api/webhooks/"+webhook.ID.String(), bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		h.Item(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var updated models.Webhook
		decodeBody(t, rec, &updated)
		assert.False(t, updated.Active)
		assert.Equal(t, webhook.URL, updated.URL)
	})

	t.Run("invalid replacement events rejected", func(t *testing.T) {
		payload, err := json.Marshal(models.WebhookUpdate{Events: []string{"nope"}})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPatch, "/api/webhooks/"+webhook.ID.String(), bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		h.Item(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		payload, err := json.Marshal(models.WebhookUpdate{})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPatch, "/api/webhooks/7a0a3f5e-93a1-4a12-9267-9a7655b0d4a7", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		h.Item(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestWebhooksHandler_Delete(t *testing.T) {
	f := newAPIFixture(t)
	h := NewWebhooksHandler(f.webhooks)

	webhook, err := f.webhooks.Create(context.Background(), "acme", "https://a.example/h", []string{"quota.exceeded"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/webhooks/"+webhook.ID.String(), nil)
	rec := httptest.NewRecorder()
	h.Item(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Webhook deleted")

	req = httptest.NewRequest(http.MethodGet, "/api/webhooks/"+webhook.ID.String(), nil)
	rec = httptest.NewRecorder()
	h.Item(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
