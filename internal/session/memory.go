package session

import (
	"context"
	"sync"
	"time"

	"github.com/walkmapper/walkmapper_core/internal/models"
)

// MemoryRegistry keeps sessions in process memory until restart
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[string]models.SessionRecord
	order   []string
	now     func() time.Time
}

// NewMemory creates an empty in-process registry
func NewMemory() *MemoryRegistry {
	return &MemoryRegistry{
		records: make(map[string]models.SessionRecord),
		now:     time.Now,
	}
}

func (r *MemoryRegistry) Create(_ context.Context, payload models.SessionPayload) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := r.now()
	base := NewID(created)
	id := base
	for attempt := 2; ; attempt++ {
		if _, taken := r.records[id]; !taken {
			break
		}
		id = candidateID(base, attempt)
	}

	r.records[id] = models.SessionRecord{
		SessionID: id,
		CreatedAt: created,
		Payload:   clonePayload(payload),
	}
	r.order = append(r.order, id)
	return id, nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (models.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return models.SessionRecord{}, ErrNotFound
	}
	rec.Payload = clonePayload(rec.Payload)
	return rec, nil
}

func (r *MemoryRegistry) List(_ context.Context) ([]models.SessionSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]models.SessionSummary, 0, len(r.order))
	for _, id := range r.order {
		summaries = append(summaries, summarize(r.records[id]))
	}
	return summaries, nil
}

func (r *MemoryRegistry) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[string]models.SessionRecord)
	r.order = nil
	return nil
}

// Len returns the number of stored sessions
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
