package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportModeValid(t *testing.T) {
	for _, m := range AllTransportModes {
		assert.True(t, m.Valid(), string(m))
	}
	assert.False(t, TransportMode("teleport").Valid())
	assert.False(t, TransportMode("").Valid())
}

func TestSegmentType(t *testing.T) {
	tests := []struct {
		name     string
		segment  Segment
		expected SegmentType
	}{
		{"duration only", Segment{DurationSeconds: 30}, SegmentStopping},
		{"rating only", Segment{ExperienceRating: 3}, SegmentStopping},
		{"neither", Segment{}, SegmentPassing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.segment.Type())
		})
	}
}

func TestPointUnmarshalForms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Point
	}{
		{"pixel object", `{"y": 10, "x": 20}`, Point{Y: 10, X: 20}},
		{"latlng object", `{"lat": 44.5, "lng": -73.2}`, Point{Y: 44.5, X: -73.2}},
		{"array", `[3, 4]`, Point{Y: 3, X: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Point
			require.NoError(t, json.Unmarshal([]byte(tt.input), &p))
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestPointUnmarshalRejectsIncomplete(t *testing.T) {
	var p Point
	assert.Error(t, json.Unmarshal([]byte(`{"y": 1}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`[1, 2, 3]`), &p))
}

func TestPersistReportSink(t *testing.T) {
	report := PersistReport{Sinks: []SinkResult{{Sink: "ledger", Status: SinkOK}}}

	got, ok := report.Sink("ledger")
	assert.True(t, ok)
	assert.Equal(t, SinkOK, got.Status)

	_, ok = report.Sink("database")
	assert.False(t, ok)
}

func TestRouteOmitsUnsetFinishedAt(t *testing.T) {
	data, err := json.Marshal(Route{ID: 1})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "finishedAt")
	assert.Contains(t, string(data), `"id":1`)

	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	data, err = json.Marshal(Route{ID: 1, FinishedAt: at})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"finishedAt":"2026-10-15T09:00:00Z"`)

	var back Route
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, at, back.FinishedAt)
}

func TestSessionPayloadKeepsUnknownFields(t *testing.T) {
	doc := `{"vectors":[{"id":2,"segments":[],"color":"blue"}],"note":"x"}`

	var p SessionPayload
	require.NoError(t, json.Unmarshal([]byte(doc), &p))
	require.Len(t, p.Vectors, 1)
	assert.Equal(t, int64(2), p.Vectors[0].ID)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(out))

	// without a decoded document the typed view is encoded
	p.Raw = nil
	out, err = json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "color")
	assert.NotContains(t, string(out), "finishedAt")
}
