package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/jupiterbjy/gotigris/internal/tigris"
	"github.com/jupiterbjy/gotigris/pkg/dateutil"
	"go.uber.org/zap"
)

// Builder turns raw portal events into day and month absence boards.
type Builder struct {
	source Source
	loc    *time.Location
	logger *zap.Logger
}

// NewBuilder creates a board builder. A nil location defaults to time.Local.
func NewBuilder(source Source, loc *time.Location, logger *zap.Logger) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{
		source: source,
		loc:    loc,
		logger: logger,
	}
}

// MonthBoard builds the absence board for an entire month.
func (b *Builder) MonthBoard(ctx context.Context, year int, month time.Month) (*MonthBoard, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, b.loc)
	last := dateutil.EndOfMonth(first)

	events, err := b.source.Events(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events for %04d-%02d: %w", year, month, err)
	}

	daysInMonth := last.Day()
	board := &MonthBoard{
		Year:  year,
		Month: month,
		Days:  make([]DayBoard, daysInMonth),
	}
	for i := range board.Days {
		board.Days[i].Date = first.AddDate(0, 0, i)
	}

	for _, ev := range events {
		if err := b.placeEvent(board, first, last, ev); err != nil {
			// A single malformed row must not sink the whole board.
			b.logger.Warn("Skipping malformed event",
				zap.String("event", ev.String()),
				zap.Error(err))
		}
	}

	b.logger.Info("Month board built",
		zap.Int("year", year),
		zap.Int("month", int(month)),
		zap.Int("absences", board.TotalAbsences),
		zap.Int("holidays", board.TotalHolidays))

	return board, nil
}

// DayBoard builds the absence board for a single day.
func (b *Builder) DayBoard(ctx context.Context, date time.Time) (*DayBoard, error) {
	monthBoard, err := b.MonthBoard(ctx, date.Year(), date.Month())
	if err != nil {
		return nil, err
	}

	day := monthBoard.Days[date.Day()-1]
	return &day, nil
}

// placeEvent expands an event over every day it covers within [first, last].
func (b *Builder) placeEvent(board *MonthBoard, first, last time.Time, ev *tigris.Event) error {
	start, err := ev.Start()
	if err != nil {
		return err
	}
	end, err := ev.End()
	if err != nil {
		return err
	}

	// A source may hand back a wider range than requested (the snapshot
	// fallback does); events entirely outside the month are not this
	// board's business.
	if dateutil.StartOfDay(start).After(last) || end.Before(first) {
		return nil
	}

	data := ev.Data()

	if ev.IsGlobal() {
		board.TotalHolidays++
	} else {
		board.TotalAbsences++
	}

	// Clamp the event span to the board's month.
	cur := dateutil.StartOfDay(start)
	if cur.Before(first) {
		cur = first
	}
	lastDay := dateutil.StartOfDay(end)
	if lastDay.After(last) {
		lastDay = dateutil.StartOfDay(last)
	}

	for !cur.After(lastDay) {
		day := &board.Days[cur.Day()-1]

		if ev.IsGlobal() {
			name := data.Title
			if name == "" {
				name = data.LeaveName
			}
			day.Holidays = append(day.Holidays, name)
		} else {
			day.Absences = append(day.Absences, Absence{
				Person:   data.PersonInfo,
				Org:      data.OrgName,
				Position: data.PosName,
				Leave:    data.LeaveName,
				WorkType: data.WorkTypeName,
				Status:   data.ReqStatusCd,
				Agent:    data.AgentName,
				AllDay:   data.AllDay,
				Start:    start,
				End:      end,
			})
		}

		cur = cur.AddDate(0, 0, 1)
	}

	return nil
}
