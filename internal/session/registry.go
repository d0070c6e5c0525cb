package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/walkmapper/walkmapper_core/internal/models"
)

// ErrNotFound is returned for unknown session ids
var ErrNotFound = errors.New("session not found")

// Registry stores finished-route payloads under generated session ids
type Registry interface {
	// Create stores payload and returns the id it was filed under
	Create(ctx context.Context, payload models.SessionPayload) (string, error)
	Get(ctx context.Context, id string) (models.SessionRecord, error)
	// List returns summaries oldest first
	List(ctx context.Context) ([]models.SessionSummary, error)
	Clear(ctx context.Context) error
}

// NewID builds the base session id for a timestamp
func NewID(t time.Time) string {
	return "session_" + t.Format("20060102_150405")
}

// candidateID returns the n-th id tried for base; the first attempt is base itself
func candidateID(base string, attempt int) string {
	if attempt <= 1 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, attempt)
}

func summarize(rec models.SessionRecord) models.SessionSummary {
	return models.SessionSummary{
		SessionID:  rec.SessionID,
		CreatedAt:  rec.CreatedAt,
		RouteCount: len(rec.Payload.Vectors),
	}
}

// clonePayload copies payload so callers cannot alias stored state
func clonePayload(p models.SessionPayload) models.SessionPayload {
	out := models.SessionPayload{}
	if p.Raw != nil {
		out.Raw = append(p.Raw[:0:0], p.Raw...)
	}
	if p.UserData != nil {
		profile := *p.UserData
		out.UserData = &profile
	}
	if p.Vectors != nil {
		out.Vectors = make([]models.Route, len(p.Vectors))
		for i, r := range p.Vectors {
			out.Vectors[i] = r
			if r.Segments != nil {
				out.Vectors[i].Segments = append([]models.Segment(nil), r.Segments...)
			}
		}
	}
	return out
}
