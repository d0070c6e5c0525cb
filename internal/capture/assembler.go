package capture

import (
	"sync"
	"time"

	"github.com/walkmapper/walkmapper_core/internal/geo"
	"github.com/walkmapper/walkmapper_core/internal/models"
)

// State is a position in the route capture lifecycle
type State string

const (
	StateIdle           State = "idle"
	StateDrawing        State = "drawing"
	StateSegmentPending State = "segment_pending"
	StateFinished       State = "finished"
)

// PendingSegment is a candidate whose endpoints are fixed but whose
// annotation has not been confirmed
type PendingSegment struct {
	Start    models.Point `json:"start"`
	End      models.Point `json:"end"`
	Distance float64      `json:"distance"`
}

// Snapshot is a read-only view of an assembler
type Snapshot struct {
	State    State              `json:"state"`
	Points   []models.Point     `json:"points"`
	Segments []models.Segment   `json:"segments"`
	Pending  *PendingSegment    `json:"pending,omitempty"`
	Profile  models.UserProfile `json:"profile"`
}

// Assembler accumulates points into segments and segments into one route.
// Only one route is in progress per assembler; at most one segment is pending.
type Assembler struct {
	mu       sync.Mutex
	variant  Variant
	state    State
	points   []models.Point
	segments []models.Segment
	pending  *models.Segment
	profile  models.UserProfile
	now      func() time.Time
}

// NewAssembler creates an idle assembler for the variant
func NewAssembler(variant Variant) *Assembler {
	return &Assembler{
		variant: variant,
		state:   StateIdle,
		now:     time.Now,
	}
}

// State returns the current lifecycle state
func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SetProfile replaces the profile copied into routes finished from now on
func (a *Assembler) SetProfile(profile models.UserProfile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profile = profile
}

// Start begins a new route with empty point and segment lists
func (a *Assembler) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateDrawing || a.state == StateSegmentPending {
		return ErrAlreadyDrawing
	}
	a.reset()
	a.state = StateDrawing
	return nil
}

// AddPoint appends p to the route. From the second point on, the last two
// points form a candidate segment and the assembler waits for its annotation.
func (a *Assembler) AddPoint(p models.Point) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateSegmentPending:
		return true, ErrPendingSegmentUnresolved
	case StateDrawing:
	default:
		return false, ErrNotDrawing
	}

	a.points = append(a.points, p)
	if len(a.points) < 2 {
		return false, nil
	}

	a.pending = &models.Segment{
		Start: a.points[len(a.points)-2],
		End:   a.points[len(a.points)-1],
	}
	a.state = StateSegmentPending
	return true, nil
}

// Pending returns the candidate segment, if any, with its derived distance
func (a *Assembler) Pending() (PendingSegment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingView()
}

func (a *Assembler) pendingView() (PendingSegment, bool) {
	if a.pending == nil {
		return PendingSegment{}, false
	}
	return PendingSegment{
		Start:    a.pending.Start,
		End:      a.pending.End,
		Distance: geo.Distance(a.pending.Start, a.pending.End, a.variant.System),
	}, true
}

// Confirm annotates the pending segment and commits it to the route.
// On validation failure the candidate stays pending.
func (a *Assembler) Confirm(mode models.TransportMode, durationSeconds, rating int) (models.Segment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateSegmentPending || a.pending == nil {
		return models.Segment{}, ErrNoPendingSegment
	}

	candidate := *a.pending
	candidate.TransportMode = mode
	candidate.DurationSeconds = durationSeconds
	candidate.ExperienceRating = rating

	segment, err := Validate(candidate, a.variant.Policy)
	if err != nil {
		return models.Segment{}, err
	}

	a.segments = append(a.segments, segment)
	a.pending = nil
	a.state = StateDrawing
	return segment, nil
}

// checkFinishable reports why the current route cannot finish, if it cannot
func (a *Assembler) checkFinishable() error {
	switch a.state {
	case StateSegmentPending:
		return ErrPendingSegmentUnresolved
	case StateDrawing:
	default:
		return ErrNotDrawing
	}
	if len(a.segments) == 0 {
		return ErrEmptyRoute
	}
	return nil
}

// Finish completes the route. nextID is called only once the route is known
// to be finishable, so rejected attempts never consume an id.
func (a *Assembler) Finish(nextID func() int64) (models.Route, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkFinishable(); err != nil {
		return models.Route{}, err
	}

	segments := make([]models.Segment, len(a.segments))
	copy(segments, a.segments)

	route := models.Route{
		ID:         nextID(),
		Segments:   segments,
		Profile:    a.profile,
		FinishedAt: a.now().UTC(),
	}
	a.state = StateFinished
	return route, nil
}

// Cancel discards in-progress points and segments and returns to Idle
func (a *Assembler) Cancel() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateFinished {
		return ErrRouteFinished
	}
	a.reset()
	a.state = StateIdle
	return nil
}

// Snapshot returns a copy of the assembler's current state
func (a *Assembler) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		State:    a.state,
		Points:   append([]models.Point(nil), a.points...),
		Segments: append([]models.Segment(nil), a.segments...),
		Profile:  a.profile,
	}
	if pending, ok := a.pendingView(); ok {
		snap.Pending = &pending
	}
	return snap
}

func (a *Assembler) reset() {
	a.points = nil
	a.segments = nil
	a.pending = nil
}
