package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// TransportMode represents how a traced segment was travelled
type TransportMode string

const (
	ModeWalking TransportMode = "walking"
	ModeBiking  TransportMode = "biking"
	ModeDriving TransportMode = "driving"
	ModeTransit TransportMode = "transit"
	ModeOther   TransportMode = "other"
)

// AllTransportModes lists the accepted modes in display order
var AllTransportModes = []TransportMode{ModeWalking, ModeBiking, ModeDriving, ModeTransit, ModeOther}

// Valid reports whether m is one of the known transport modes
func (m TransportMode) Valid() bool {
	for _, known := range AllTransportModes {
		if m == known {
			return true
		}
	}
	return false
}

// UserType represents the kind of person tracing routes
type UserType string

const (
	UserStudent UserType = "student"
	UserFaculty UserType = "faculty"
	UserStaff   UserType = "staff"
	UserVisitor UserType = "visitor"
	UserOther   UserType = "other"
)

// SegmentType classifies a segment from its annotation
type SegmentType string

const (
	SegmentStopping SegmentType = "stopping"
	SegmentPassing  SegmentType = "passing"
)

// Segment represents one annotated leg between two consecutive points
// Distance is derived from Start/End and never stored here
type Segment struct {
	Start            Point         `json:"start"`
	End              Point         `json:"end"`
	TransportMode    TransportMode `json:"transportMode"`
	DurationSeconds  int           `json:"durationSeconds"`
	ExperienceRating int           `json:"experienceRating,omitempty"`
}

// Type derives the stopping/passing classification of the segment
func (s Segment) Type() SegmentType {
	if s.DurationSeconds > 0 || s.ExperienceRating > 0 {
		return SegmentStopping
	}
	return SegmentPassing
}

// UserProfile is captured once per capture session and copied into each route
type UserProfile struct {
	FullName   string   `json:"fullName,omitempty" validate:"omitempty,max=200"`
	UserType   UserType `json:"userType" validate:"required,oneof=student faculty staff visitor other"`
	GradeLevel string   `json:"gradeLevel,omitempty" validate:"required_if=UserType student,max=100"`
	Department string   `json:"department,omitempty" validate:"omitempty,max=200"`
}

// Route is an ordered sequence of segments captured in one drawing session
type Route struct {
	ID         int64       `json:"id"`
	Segments   []Segment   `json:"segments"`
	Profile    UserProfile `json:"userData"`
	FinishedAt time.Time   `json:"finishedAt,omitempty"`
}

// MarshalJSON leaves finishedAt out when it was never set
func (r Route) MarshalJSON() ([]byte, error) {
	type plain Route
	out := struct {
		plain
		FinishedAt *time.Time `json:"finishedAt,omitempty"`
	}{plain: plain(r)}
	if !r.FinishedAt.IsZero() {
		out.FinishedAt = &r.FinishedAt
	}
	return json.Marshal(out)
}

// SessionPayload is the caller-shaped document kept by the session registry.
// Raw holds the document exactly as decoded; when set it is what gets encoded
// again, so fields outside the typed view survive a save and load.
type SessionPayload struct {
	UserData *UserProfile    `json:"userData,omitempty"`
	Vectors  []Route         `json:"vectors"`
	Raw      json.RawMessage `json:"-"`
}

// UnmarshalJSON fills the typed view and keeps a copy of data in Raw
func (p *SessionPayload) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	type plain SessionPayload
	var typed plain
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	*p = SessionPayload(typed)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns Raw when present, the typed view otherwise
func (p SessionPayload) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	type plain SessionPayload
	return json.Marshal(plain(p))
}

// SessionRecord is one entry of the session registry
type SessionRecord struct {
	SessionID string         `json:"session_id"`
	CreatedAt time.Time      `json:"timestamp"`
	Payload   SessionPayload `json:"data"`
}

// SessionSummary is the listing view of a session record
type SessionSummary struct {
	SessionID  string    `json:"session_id"`
	CreatedAt  time.Time `json:"timestamp"`
	RouteCount int       `json:"route_count"`
}

// SegmentRow is the derived per-segment record written by the ledger,
// the relational store and the exports
type SegmentRow struct {
	Timestamp       time.Time
	FullName        string
	RouteID         int64
	SegmentIndex    int // 1-based
	Start           Point
	End             Point
	TransportMode   TransportMode
	Distance        float64 // native coordinate system, rounded
	DistanceKm      float64
	DurationSeconds int
	DurationMinutes float64
	Rating          int // 0 means blank
	SegmentType     SegmentType
	UserType        UserType
	GradeLevel      string
	Department      string
}

// SinkStatus is the outcome of one persistence sink
type SinkStatus string

const (
	SinkOK      SinkStatus = "ok"
	SinkFailed  SinkStatus = "failed"
	SinkSkipped SinkStatus = "skipped"
)

// SinkResult records what happened in one sink during a persist call
type SinkResult struct {
	Sink   string     `json:"sink"`
	Status SinkStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// PersistReport records per-sink outcomes of persisting one route
// Success mirrors the ledger outcome, the source of truth
type PersistReport struct {
	RouteID   int64        `json:"route_id"`
	Success   bool         `json:"success"`
	SessionID string       `json:"session_id,omitempty"`
	Sinks     []SinkResult `json:"sinks"`
}

// Sink returns the result recorded for the named sink
func (r PersistReport) Sink(name string) (SinkResult, bool) {
	for _, s := range r.Sinks {
		if s.Sink == name {
			return s, true
		}
	}
	return SinkResult{}, false
}
