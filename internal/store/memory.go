package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wahans/throttl/internal/models"
)

// MemoryKeyStore keeps key records in mutex-guarded maps. The secret index
// (hash -> id) is mutated under the same lock as the primary map, so index
// swaps on revoke/regenerate are atomic to every observer.
type MemoryKeyStore struct {
	mu     sync.RWMutex
	keys   map[uuid.UUID]*models.Key
	byHash map[string]uuid.UUID
	now    func() time.Time
}

// NewMemoryKeyStore creates an empty in-memory key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		keys:   make(map[uuid.UUID]*models.Key),
		byHash: make(map[string]uuid.UUID),
		now:    time.Now,
	}
}

func (s *MemoryKeyStore) Create(ctx context.Context, name string, planID uuid.UUID, ownerID string) (*models.Key, string, error) {
	secret, err := NewSecret()
	if err != nil {
		return nil, "", err
	}

	key := &models.Key{
		ID:         uuid.New(),
		Name:       name,
		SecretHash: HashSecret(secret),
		PlanID:     planID,
		OwnerID:    ownerID,
		Active:     true,
		CreatedAt:  s.now().UTC(),
	}

	s.mu.Lock()
	s.keys[key.ID] = key
	s.byHash[key.SecretHash] = key.ID
	s.mu.Unlock()

	cp := *key
	return &cp, secret, nil
}

func (s *MemoryKeyStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *key
	return &cp, nil
}

func (s *MemoryKeyStore) GetBySecret(ctx context.Context, secret string) (*models.Key, error) {
	hash := HashSecret(secret)

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *s.keys[id]
	return &cp, nil
}

func (s *MemoryKeyStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]*models.Key, 0)
	for _, key := range s.keys {
		if key.OwnerID == ownerID {
			cp := *key
			keys = append(keys, &cp)
		}
	}
	return keys, nil
}

func (s *MemoryKeyStore) Revoke(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[id]
	if !ok {
		return ErrKeyNotFound
	}

	key.Active = false
	delete(s.byHash, key.SecretHash)
	return nil
}

func (s *MemoryKeyStore) Regenerate(ctx context.Context, id uuid.UUID) (string, error) {
	secret, err := NewSecret()
	if err != nil {
		return "", err
	}
	newHash := HashSecret(secret)

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[id]
	if !ok {
		return "", ErrKeyNotFound
	}

	// Old and new index entries swap under the same lock: no observable
	// instant where both or neither secret resolves.
	delete(s.byHash, key.SecretHash)
	key.SecretHash = newHash
	s.byHash[newHash] = key.ID

	return secret, nil
}

// MemoryPlanStore keeps plans in mutex-guarded maps.
type MemoryPlanStore struct {
	mu    sync.RWMutex
	plans map[uuid.UUID]*models.Plan
}

// NewMemoryPlanStore creates an empty in-memory plan store.
func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{plans: make(map[uuid.UUID]*models.Plan)}
}

func (s *MemoryPlanStore) Create(ctx context.Context, name string, monthlyQuota int64, rateLimit int) (*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.plans {
		if p.Name == name {
			return nil, ErrDuplicatePlan
		}
	}

	plan := &models.Plan{
		ID:           uuid.New(),
		Name:         name,
		MonthlyQuota: monthlyQuota,
		RateLimit:    rateLimit,
	}
	s.plans[plan.ID] = plan

	cp := *plan
	return &cp, nil
}

func (s *MemoryPlanStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	cp := *plan
	return &cp, nil
}

func (s *MemoryPlanStore) GetByName(ctx context.Context, name string) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, plan := range s.plans {
		if plan.Name == name {
			cp := *plan
			return &cp, nil
		}
	}
	return nil, ErrPlanNotFound
}

func (s *MemoryPlanStore) List(ctx context.Context) ([]*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plans := make([]*models.Plan, 0, len(s.plans))
	for _, plan := range s.plans {
		cp := *plan
		plans = append(plans, &cp)
	}
	return plans, nil
}

func (s *MemoryPlanStore) Update(ctx context.Context, id uuid.UUID, update models.PlanUpdate) (*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}

	if update.MonthlyQuota != nil {
		plan.MonthlyQuota = *update.MonthlyQuota
	}
	if update.RateLimit != nil {
		plan.RateLimit = *update.RateLimit
	}

	cp := *plan
	return &cp, nil
}

// MemoryWebhookStore keeps webhook subscriptions in mutex-guarded maps.
type MemoryWebhookStore struct {
	mu       sync.RWMutex
	webhooks map[uuid.UUID]*models.Webhook
	now      func() time.Time
}

// NewMemoryWebhookStore creates an empty in-memory webhook store.
func NewMemoryWebhookStore() *MemoryWebhookStore {
	return &MemoryWebhookStore{
		webhooks: make(map[uuid.UUID]*models.Webhook),
		now:      time.Now,
	}
}

func (s *MemoryWebhookStore) Create(ctx context.Context, ownerID, url string, events []string) (*models.Webhook, error) {
	webhook := &models.Webhook{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		URL:       url,
		Events:    pq.StringArray(events),
		Active:    true,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.webhooks[webhook.ID] = webhook
	s.mu.Unlock()

	cp := *webhook
	return &cp, nil
}

func (s *MemoryWebhookStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	webhook, ok := s.webhooks[id]
	if !ok {
		return nil, ErrWebhookNotFound
	}
	cp := *webhook
	return &cp, nil
}

func (s *MemoryWebhookStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	webhooks := make([]*models.Webhook, 0)
	for _, webhook := range s.webhooks {
		if webhook.OwnerID == ownerID {
			cp := *webhook
			webhooks = append(webhooks, &cp)
		}
	}
	return webhooks, nil
}

func (s *MemoryWebhookStore) Update(ctx context.Context, id uuid.UUID, update models.WebhookUpdate) (*models.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	webhook, ok := s.webhooks[id]
	if !ok {
		return nil, ErrWebhookNotFound
	}

	if update.URL != nil {
		webhook.URL = *update.URL
	}
	if update.Events != nil {
		webhook.Events = pq.StringArray(update.Events)
	}
	if update.Active != nil {
		webhook.Active = *update.Active
	}

	cp := *webhook
	return &cp, nil
}

func (s *MemoryWebhookStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[id]; !ok {
		return ErrWebhookNotFound
	}
	delete(s.webhooks, id)
	return nil
}
