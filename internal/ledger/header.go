package ledger

import (
	"strconv"
	"time"

	"github.com/walkmapper/walkmapper_core/internal/geo"
	"github.com/walkmapper/walkmapper_core/internal/models"
)

// obsoleteFields are column names older ledgers used that the current
// schema no longer writes
var obsoleteFields = map[string]bool{
	"Distance": true,
	"Rating":   true,
}

// Header returns the canonical ledger header for a coordinate system
func Header(sys geo.System) []string {
	yName, xName := "Y", "X"
	if sys == geo.Geographic {
		yName, xName = "Lat", "Lng"
	}
	return []string{
		"Timestamp",
		"Full_Name",
		"Route_ID",
		"Segment_ID",
		"Start_" + yName,
		"Start_" + xName,
		"End_" + yName,
		"End_" + xName,
		"Transport_Mode",
		"Distance_" + sys.Unit(),
		"Duration_Seconds",
		"Duration_Minutes",
		"Experience_Rating",
		"Segment_Type",
		"User_Type",
		"Grade_Level",
		"Department",
	}
}

// FormatRow renders a segment row in header order
func FormatRow(row models.SegmentRow, sys geo.System) []string {
	rating := ""
	if row.Rating > 0 {
		rating = strconv.Itoa(row.Rating)
	}
	return []string{
		row.Timestamp.UTC().Format(time.RFC3339),
		row.FullName,
		strconv.FormatInt(row.RouteID, 10),
		strconv.Itoa(row.SegmentIndex),
		formatCoord(row.Start.Y),
		formatCoord(row.Start.X),
		formatCoord(row.End.Y),
		formatCoord(row.End.X),
		string(row.TransportMode),
		strconv.FormatFloat(row.Distance, 'f', sys.Precision(), 64),
		strconv.Itoa(row.DurationSeconds),
		strconv.FormatFloat(row.DurationMinutes, 'f', -1, 64),
		rating,
		string(row.SegmentType),
		string(row.UserType),
		row.GradeLevel,
		row.Department,
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
