package domain

import "time"

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusToday    Status = "today"
	StatusOngoing  Status = "ongoing"
	StatusEnded    Status = "ended"
	StatusPast     Status = "past"
)

// Statuses lists every derivable status.
var Statuses = []Status{StatusUpcoming, StatusToday, StatusOngoing, StatusEnded, StatusPast}

// EventDuration is the fixed window an event is considered running for.
const EventDuration = 2 * time.Hour

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var timeLayouts = []string{TimeLayout, "15:04:05"}

type Clock interface{ Now() time.Time }

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ParseStart combines a calendar date and a time of day into one instant in loc.
func ParseStart(date, clock string, loc *time.Location) (time.Time, error) {
	var (
		t   time.Time
		err error
	)
	for _, layout := range timeLayouts {
		t, err = time.ParseInLocation(DateLayout+"T"+layout, date+"T"+clock, loc)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// DeriveStatus classifies an event relative to now. Same-day events are always
// one of today/ongoing/ended. Input that does not parse resolves to upcoming.
func DeriveStatus(date, clock string, now time.Time) Status {
	start, err := ParseStart(date, clock, now.Location())
	if err != nil {
		return StatusUpcoming
	}

	if sameDay(start, now) {
		end := start.Add(EventDuration)
		if !now.Before(start) && !now.After(end) {
			return StatusOngoing
		}
		if start.Before(now) {
			return StatusEnded
		}
		return StatusToday
	}

	if start.Before(now) {
		return StatusPast
	}
	return StatusUpcoming
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
