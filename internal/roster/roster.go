package roster

import (
	"context"
	"time"

	"github.com/jupiterbjy/gotigris/internal/tigris"
)

// Source provides calendar events for a date range.
type Source interface {
	// Events returns all events overlapping [from, to].
	Events(ctx context.Context, from, to time.Time) ([]*tigris.Event, error)
}

// Absence represents one person's leave entry on the board.
type Absence struct {
	Person   string
	Org      string
	Position string
	Leave    string
	WorkType string
	Status   string
	Agent    string
	AllDay   bool
	Start    time.Time
	End      time.Time
}

// DayBoard represents everyone who is out on a specific day.
type DayBoard struct {
	Date     time.Time
	Holidays []string // organization-wide entries (global events)
	Absences []Absence
}

// MonthBoard represents the absence board for a whole month.
type MonthBoard struct {
	Year  int
	Month time.Month
	Days  []DayBoard

	// Totals count events, not event-days.
	TotalAbsences int
	TotalHolidays int
}
