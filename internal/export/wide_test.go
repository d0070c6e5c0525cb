package export

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walkmapper/walkmapper_core/internal/geo"
	"github.com/walkmapper/walkmapper_core/internal/models"
)

func routeRows(routeID int64, segments int, name string) []models.SegmentRow {
	rows := make([]models.SegmentRow, 0, segments)
	for i := 1; i <= segments; i++ {
		rows = append(rows, models.SegmentRow{
			FullName:        name,
			RouteID:         routeID,
			SegmentIndex:    i,
			Start:           models.Point{Y: float64(i - 1), X: 0},
			End:             models.Point{Y: float64(i), X: 0},
			TransportMode:   models.ModeWalking,
			Distance:        1,
			DurationSeconds: 10 * i,
			Rating:          2,
			SegmentType:     models.SegmentStopping,
			UserType:        models.UserFaculty,
			Department:      "Math",
		})
	}
	return rows
}

func cellAt(header, row []string, column string) string {
	for i, c := range header {
		if c == column {
			if i < len(row) {
				return row[i]
			}
			return ""
		}
	}
	return ""
}

func TestWideAppendUnionsColumns(t *testing.T) {
	w := NewWide(filepath.Join(t.TempDir(), "routes.xlsx"), geo.Pixel, nil)

	require.NoError(t, w.Append(routeRows(1, 2, "a")))
	require.NoError(t, w.Append(routeRows(2, 5, "b")))
	require.NoError(t, w.Append(routeRows(3, 1, "c")))

	header, rows, err := w.Read()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 5, GroupCount(header))
	assert.Len(t, header, len(Prefix)+5*len(GroupFields))
	assert.Equal(t, Prefix, header[:len(Prefix)])
	assert.Equal(t, []string{"Vector 1", "Mode 1", "Start 1", "End 1", "Time 1", "Rating 1"}, header[4:10])
	assert.Equal(t, "Rating 5", header[len(header)-1])

	segmentsPerRow := []int{2, 5, 1}
	for r, n := range segmentsPerRow {
		for i := 1; i <= 5; i++ {
			for _, field := range GroupFields {
				value := cellAt(header, rows[r], groupColumn(field, i))
				if i <= n {
					assert.NotEmpty(t, value, "row %d %s %d", r, field, i)
				} else {
					assert.Empty(t, value, "row %d %s %d", r, field, i)
				}
			}
		}
	}

	assert.Equal(t, "a", cellAt(header, rows[0], "Full_Name"))
	assert.Equal(t, "walking", cellAt(header, rows[1], "Mode 5"))
	assert.Equal(t, "50", cellAt(header, rows[1], "Time 5"))
}

func TestWideRebuild(t *testing.T) {
	w := NewWide(filepath.Join(t.TempDir(), "routes.xlsx"), geo.Pixel, nil)
	require.NoError(t, w.Append(routeRows(1, 4, "old")))

	require.NoError(t, w.Rebuild([][]models.SegmentRow{routeRows(7, 1, "x"), routeRows(8, 2, "y")}))

	header, rows, err := w.Read()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, GroupCount(header))
	assert.Equal(t, "x", cellAt(header, rows[0], "Full_Name"))
}

func TestWideRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.xlsx")
	w := NewWide(path, geo.Pixel, nil)
	require.NoError(t, w.Append(routeRows(1, 1, "a")))
	assert.FileExists(t, path)

	require.NoError(t, w.Remove())
	assert.NoFileExists(t, path)
	assert.NoError(t, w.Remove())
}

func TestWideConcurrentAppends(t *testing.T) {
	w := NewWide(filepath.Join(t.TempDir(), "routes.xlsx"), geo.Pixel, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, w.Append(routeRows(int64(n), n, "r")))
		}(i)
	}
	wg.Wait()

	header, rows, err := w.Read()
	require.NoError(t, err)
	assert.Len(t, rows, 8)
	assert.Equal(t, 8, GroupCount(header))
}

func TestUnionColumnsKeepsUnknownColumns(t *testing.T) {
	previous := []string{"Full_Name", "Notes", "Vector 2", "User_Type", "Vector 1"}
	cols := UnionColumns(previous, []map[string]string{{"Mode 1": "walking"}})

	assert.Equal(t, []string{
		"Full_Name", "User_Type", "Department", "Grade_Level",
		"Vector 1", "Mode 1", "Vector 2",
		"Notes",
	}, cols)
}
