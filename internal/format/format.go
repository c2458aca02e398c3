package format

import (
	"fmt"
	"sort"
	"time"

	"github.com/estpark/parking-lot/internal/models"
)

// DateKey derives the calendar-date key (YYYY-MM-DD, local time) used to
// group history records by day.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatDuration renders a duration as "HHh MMmin", truncating to whole
// minutes. Negative durations render as zero.
func FormatDuration(d time.Duration) string {
	totalMinutes := int64(d / time.Minute)
	if totalMinutes < 0 {
		totalMinutes = 0
	}
	return fmt.Sprintf("%02dh %02dmin", totalMinutes/60, totalMinutes%60)
}

// FormatClock renders the time-of-day part of a timestamp as "HH:MM".
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

// VehicleLabel returns the display label for a vehicle class.
func VehicleLabel(vc models.VehicleClass) string {
	switch vc {
	case models.VehicleCar:
		return "Car"
	case models.VehicleTruck:
		return "Truck"
	case models.VehicleMotorcycle:
		return "Motorcycle"
	default:
		return "-"
	}
}

// SortByStartTime orders history records by start time ascending, in place.
// Store query results carry no ordering guarantee, so callers sort before
// rendering.
func SortByStartTime(records []models.HistoryRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartTime.Before(records[j].StartTime)
	})
}
