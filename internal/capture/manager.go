package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/walkmapper/walkmapper_core/internal/models"
	"go.uber.org/zap"
)

// Persister receives every finished route
type Persister interface {
	Persist(ctx context.Context, route models.Route) models.PersistReport
}

// AddPointResult tells the caller whether a segment now awaits annotation
type AddPointResult struct {
	SegmentPending bool            `json:"segmentPending"`
	Pending        *PendingSegment `json:"pending,omitempty"`
}

// FinishResult is returned once a route has been finished and handed to persistence
type FinishResult struct {
	RouteID int64                 `json:"routeId"`
	Route   models.Route          `json:"route"`
	Report  *models.PersistReport `json:"report,omitempty"`
}

type captureSession struct {
	assembler *Assembler
	routes    []models.Route
}

// Manager owns every open capture session and the process-wide route counter.
// It is the boundary the HTTP layer calls into.
type Manager struct {
	mu        sync.RWMutex
	variant   Variant
	captures  map[string]*captureSession
	counter   *Counter
	persister Persister
	logger    *zap.Logger
	newHandle func() string
}

// NewManager creates a manager. persister may be nil, in which case finished
// routes are only kept in memory.
func NewManager(variant Variant, counter *Counter, persister Persister, logger *zap.Logger) *Manager {
	if counter == nil {
		counter = &Counter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		variant:   variant,
		captures:  make(map[string]*captureSession),
		counter:   counter,
		persister: persister,
		logger:    logger,
		newHandle: uuid.NewString,
	}
}

// Variant returns the variant routes are captured under
func (m *Manager) Variant() Variant {
	return m.variant
}

// Counter returns the route id counter
func (m *Manager) Counter() *Counter {
	return m.counter
}

func (m *Manager) lookup(handle string) (*captureSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.captures[handle]
	if !ok {
		return nil, ErrUnknownHandle
	}
	return cs, nil
}

// StartDrawing begins a route. An empty handle opens a new capture session;
// an existing handle starts the next route in that session.
func (m *Manager) StartDrawing(handle string) (string, error) {
	if handle == "" {
		handle = m.newHandle()
		m.mu.Lock()
		m.captures[handle] = &captureSession{assembler: NewAssembler(m.variant)}
		m.mu.Unlock()
	}

	cs, err := m.lookup(handle)
	if err != nil {
		return "", err
	}
	if err := cs.assembler.Start(); err != nil {
		return "", err
	}
	return handle, nil
}

// SetProfile validates and stores the profile for routes finished in this session
func (m *Manager) SetProfile(handle string, profile models.UserProfile) error {
	cs, err := m.lookup(handle)
	if err != nil {
		return err
	}
	if err := ValidateProfile(profile, m.variant.Policy); err != nil {
		return err
	}
	cs.assembler.SetProfile(profile)
	return nil
}

// AddPoint appends a point to the active route
func (m *Manager) AddPoint(handle string, p models.Point) (AddPointResult, error) {
	cs, err := m.lookup(handle)
	if err != nil {
		return AddPointResult{}, err
	}

	pending, err := cs.assembler.AddPoint(p)
	if err != nil {
		return AddPointResult{SegmentPending: pending}, err
	}

	result := AddPointResult{SegmentPending: pending}
	if candidate, ok := cs.assembler.Pending(); ok {
		result.Pending = &candidate
	}
	return result, nil
}

// ConfirmSegment annotates the pending segment
func (m *Manager) ConfirmSegment(handle string, mode models.TransportMode, durationSeconds, rating int) (models.Segment, error) {
	cs, err := m.lookup(handle)
	if err != nil {
		return models.Segment{}, err
	}
	return cs.assembler.Confirm(mode, durationSeconds, rating)
}

// CancelRoute discards the route in progress; nothing is persisted
func (m *Manager) CancelRoute(handle string) error {
	cs, err := m.lookup(handle)
	if err != nil {
		return err
	}
	return cs.assembler.Cancel()
}

// FinishRoute completes the active route, assigns its id and hands it to the persister
func (m *Manager) FinishRoute(ctx context.Context, handle string) (FinishResult, error) {
	cs, err := m.lookup(handle)
	if err != nil {
		return FinishResult{}, err
	}

	route, err := cs.assembler.Finish(m.counter.Next)
	if err != nil {
		return FinishResult{}, err
	}

	m.mu.Lock()
	cs.routes = append(cs.routes, route)
	m.mu.Unlock()

	m.logger.Info("route finished",
		zap.String("handle", handle),
		zap.Int64("route_id", route.ID),
		zap.Int("segments", len(route.Segments)))

	result := FinishResult{RouteID: route.ID, Route: route}
	if m.persister != nil {
		report := m.persister.Persist(ctx, route)
		result.Report = &report
	}
	return result, nil
}

// Routes lists the finished routes of a capture session in finish order
func (m *Manager) Routes(handle string) ([]models.Route, error) {
	cs, err := m.lookup(handle)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Route(nil), cs.routes...), nil
}

// DeleteRoute removes a finished route from the session view. Its id is not
// reused and persisted records are untouched.
func (m *Manager) DeleteRoute(handle string, routeID int64) error {
	cs, err := m.lookup(handle)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range cs.routes {
		if r.ID == routeID {
			cs.routes = append(cs.routes[:i], cs.routes[i+1:]...)
			return nil
		}
	}
	return ErrUnknownRoute
}

// Snapshot returns the state of the session's assembler
func (m *Manager) Snapshot(handle string) (Snapshot, error) {
	cs, err := m.lookup(handle)
	if err != nil {
		return Snapshot{}, err
	}
	return cs.assembler.Snapshot(), nil
}

// Close forgets a capture session along with any route still being drawn
func (m *Manager) Close(handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.captures[handle]; !ok {
		return ErrUnknownHandle
	}
	delete(m.captures, handle)
	return nil
}

// Open returns the number of live capture sessions
func (m *Manager) Open() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.captures)
}

// SubmitRoute persists a route assembled on the client. Segments go through
// the same checks as interactive capture before an id is drawn.
func (m *Manager) SubmitRoute(ctx context.Context, profile models.UserProfile, segments []models.Segment) (FinishResult, error) {
	if err := ValidateProfile(profile, m.variant.Policy); err != nil {
		return FinishResult{}, err
	}
	if len(segments) == 0 {
		return FinishResult{}, ErrEmptyRoute
	}

	checked := make([]models.Segment, len(segments))
	for i, seg := range segments {
		if i > 0 && seg.Start != checked[i-1].End {
			return FinishResult{}, fmt.Errorf("%w (segment %d)", ErrNotContiguous, i+1)
		}
		valid, err := Validate(seg, m.variant.Policy)
		if err != nil {
			return FinishResult{}, fmt.Errorf("segment %d: %w", i+1, err)
		}
		checked[i] = valid
	}

	route := models.Route{
		ID:         m.counter.Next(),
		Segments:   checked,
		Profile:    profile,
		FinishedAt: time.Now().UTC(),
	}

	m.logger.Info("route submitted",
		zap.Int64("route_id", route.ID),
		zap.Int("segments", len(route.Segments)))

	result := FinishResult{RouteID: route.ID, Route: route}
	if m.persister != nil {
		report := m.persister.Persist(ctx, route)
		result.Report = &report
	}
	return result, nil
}
