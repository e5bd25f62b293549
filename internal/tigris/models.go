package tigris

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FlexibleCode handles code fields the portal returns inconsistently:
// sometimes as a number (1010), sometimes as a string ("1010").
// This type automatically converts both formats to string.
type FlexibleCode string

// UnmarshalJSON implements json.Unmarshaler for FlexibleCode
func (f *FlexibleCode) UnmarshalJSON(b []byte) error {
	// Try to unmarshal as string first
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexibleCode(s)
		return nil
	}

	// Try as number
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = FlexibleCode(strconv.FormatInt(n, 10))
		return nil
	}

	return fmt.Errorf("FlexibleCode: cannot unmarshal %s", string(b))
}

// MarshalJSON implements json.Marshaler for FlexibleCode
func (f FlexibleCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}

// String returns string representation
func (f FlexibleCode) String() string {
	return string(f)
}

// EventData is the raw calendar row exactly as the portal returns it.
// Field names follow the portal's own (non-idiomatic) naming on purpose so
// the payload survives a marshal/unmarshal round trip unchanged.
type EventData struct {
	Kind         string       `json:"kind,omitempty"`
	Title        string       `json:"title,omitempty"`
	LeaveName    string       `json:"leavNm,omitempty"`
	LeaveCode    FlexibleCode `json:"leavCd,omitempty"` // Can be string or number from the portal
	PersonInfo   string       `json:"personInfo,omitempty"`
	OrgCode      string       `json:"orgCd,omitempty"`
	OrgName      string       `json:"orgNm,omitempty"`
	PosCode      string       `json:"posCd,omitempty"`
	PosName      string       `json:"posNm,omitempty"`
	ResCode      string       `json:"resCd,omitempty"`
	ResName      string       `json:"resNm,omitempty"`
	WorkTypeCode string       `json:"wktypeCd,omitempty"`
	WorkTypeName string       `json:"wktypeNm,omitempty"`
	StartYMD     string       `json:"staYmd,omitempty"` // YYYY-MM-DD, or YYYYMMDD for global events
	EndYMD       string       `json:"endYmd,omitempty"`
	EndYMDAdd    string       `json:"endYmdAdd,omitempty"` // Day after endYmd; purpose unknown
	AgentName    string       `json:"agentName,omitempty"`
	AllDay       bool         `json:"allDay,omitempty"`
	StartHM      string       `json:"staHm,omitempty"` // "T09:00:00" including the leading T
	EndHM        string       `json:"endHm,omitempty"`
	ReqStatusCd  string       `json:"reqStatusCd,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	Note         string       `json:"note,omitempty"`
}

// Event wraps a raw calendar row with timezone-aware date arithmetic.
// Never mutated after construction, so sharing one instance between
// goroutines is safe.
type Event struct {
	data EventData
	loc  *time.Location

	start *time.Time
	end   *time.Time
}

// NewEvent creates an Event interpreting its dates in the given location.
// A nil location defaults to time.Local. Dates are parsed eagerly; rows the
// portal filled in badly surface their parse error from Start/End instead.
func NewEvent(data EventData, loc *time.Location) *Event {
	if loc == nil {
		loc = time.Local
	}

	e := &Event{data: data, loc: loc}

	if t, err := parseEventTime(data.StartYMD, data.StartHM, e.IsGlobal(), loc); err == nil {
		e.start = &t
	}
	if t, err := parseEventTime(data.EndYMD, data.EndHM, e.IsGlobal(), loc); err == nil {
		e.end = &t
	}

	return e
}

// Data returns the raw row. NewEvent(d, loc).Data() is always identical
// to d - the event never rewrites the payload it was built from.
func (e *Event) Data() EventData {
	return e.data
}

// IsGlobal reports whether the event is organization-wide (i.e. a holiday).
// Global events carry compact YYYYMMDD dates while personal entries are
// hyphenated; the length of the date string is the only distinguishing mark.
func (e *Event) IsGlobal() bool {
	return len(e.data.StartYMD) == 8
}

// Start returns the event's start as a timezone-aware time.
func (e *Event) Start() (time.Time, error) {
	if e.start != nil {
		return *e.start, nil
	}

	t, err := parseEventTime(e.data.StartYMD, e.data.StartHM, e.IsGlobal(), e.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse event start: %w", err)
	}
	return t, nil
}

// End returns the event's end as a timezone-aware time.
func (e *Event) End() (time.Time, error) {
	if e.end != nil {
		return *e.end, nil
	}

	t, err := parseEventTime(e.data.EndYMD, e.data.EndHM, e.IsGlobal(), e.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse event end: %w", err)
	}
	return t, nil
}

// String returns a short human-readable representation.
func (e *Event) String() string {
	return fmt.Sprintf("Event(title=%q, start=%q, end=%q)",
		e.data.Title, e.data.StartYMD, e.data.EndYMD)
}

// parseEventTime parses the portal's two date variants, optionally combined
// with a "T15:04:05" time-of-day string.
func parseEventTime(ymd, hm string, global bool, loc *time.Location) (time.Time, error) {
	if ymd == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	layout := "2006-01-02"
	if global {
		layout = "20060102"
	}

	if hm != "" {
		return time.ParseInLocation(layout+" T15:04:05", ymd+" "+hm, loc)
	}

	return time.ParseInLocation(layout, ymd, loc)
}
