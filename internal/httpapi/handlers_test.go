package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wahans/throttl/internal/models"
	"github.com/wahans/throttl/internal/store"
	"github.com/wahans/throttl/internal/usage"
)

// apiFixture wires the handlers against in-memory state, the same shape the
// router builds when no external services are configured.
type apiFixture struct {
	keys     *store.MemoryKeyStore
	plans    *store.MemoryPlanStore
	webhooks *store.MemoryWebhookStore
	counter  *usage.MemoryCounter
	engine   *usage.Engine
	reporter *usage.Reporter
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{
		keys:     store.NewMemoryKeyStore(),
		plans:    store.NewMemoryPlanStore(),
		webhooks: store.NewMemoryWebhookStore(),
		counter:  usage.NewMemoryCounter(),
	}
	f.engine = usage.NewEngine(usage.EngineConfig{
		Keys:    f.keys,
		Plans:   f.plans,
		Counter: f.counter,
		Gate:    usage.NewMemoryGate(),
	})
	f.reporter = usage.NewReporter(f.keys, f.plans, f.counter, nil)
	return f
}

func (f *apiFixture) plan(t *testing.T, name string, quota int64) *models.Plan {
	t.Helper()
	plan, err := f.plans.Create(context.Background(), name, quota, 100)
	require.NoError(t, err)
	return plan
}

func (f *apiFixture) key(t *testing.T, name string, plan *models.Plan, owner string) (*models.Key, string) {
	t.Helper()
	key, secret, err := f.keys.Create(context.Background(), name, plan.ID, owner)
	require.NoError(t, err)
	return key, secret
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}
