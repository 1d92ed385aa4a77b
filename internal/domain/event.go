package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Category string

const (
	CategoryTechnology Category = "Technology"
	CategoryMusic      Category = "Music"
	CategoryBusiness   Category = "Business"
	CategorySports     Category = "Sports"
)

// Categories lists the selectable categories in display order.
var Categories = []Category{CategoryTechnology, CategoryMusic, CategoryBusiness, CategorySports}

// EventID is the server-assigned identifier. The server may send it as a
// string or a number; both decode to the same textual form.
type EventID string

func (id *EventID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = EventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("event id: %w", err)
	}
	*id = EventID(n.String())
	return nil
}

func (id EventID) String() string { return string(id) }

// Price is a non-negative amount. It decodes from a JSON number or a numeric
// string ("500"), which is how form input reaches the server.
type Price float64

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*p = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("price %q: %w", s, err)
		}
		*p = Price(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = Price(v)
	return nil
}

// ParsePrice converts form input into a price.
func ParsePrice(s string) (Price, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return Price(v), nil
}

func PriceOf(v float64) *Price {
	p := Price(v)
	return &p
}

type Event struct {
	ID           EventID  `json:"_id" validate:"required"`
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description"`
	Date         string   `json:"date" validate:"required,calendar_date"`
	Time         string   `json:"time" validate:"required,clock_time"`
	Location     string   `json:"location"`
	Category     Category `json:"category"`
	Attendees    int      `json:"attendees" validate:"gte=0"`
	MaxAttendees int      `json:"maxAttendees,omitempty" validate:"gte=0"`
	IsFree       bool     `json:"isFree"`
	Price        *Price   `json:"price"`
	CreatedBy    string   `json:"createdBy,omitempty"`
	Attending    []string `json:"attending,omitempty"`
}

// Normalize enforces the price invariant and trims a full timestamp date
// ("2025-03-10T00:00:00.000Z") to its calendar date.
func (e *Event) Normalize() {
	if e.IsFree {
		e.Price = nil
	}
	if len(e.Date) > len(DateLayout) && e.Date[len(DateLayout)] == 'T' {
		if _, err := time.Parse(DateLayout, e.Date[:len(DateLayout)]); err == nil {
			e.Date = e.Date[:len(DateLayout)]
		}
	}
	if e.Attendees < 0 {
		e.Attendees = 0
	}
}

// Clone returns a deep copy so snapshots never alias store state.
func (e Event) Clone() Event {
	if e.Price != nil {
		p := *e.Price
		e.Price = &p
	}
	if e.Attending != nil {
		e.Attending = append([]string(nil), e.Attending...)
	}
	return e
}

// IsAttendedBy reports whether userID is in the event's own attending list.
func (e Event) IsAttendedBy(userID string) bool {
	for _, id := range e.Attending {
		if id == userID {
			return true
		}
	}
	return false
}

// EventList is the bundled fetch response: the collection plus the caller's
// attendance membership.
type EventList struct {
	Events     []Event   `json:"events" validate:"required,dive"`
	UserEvents []EventID `json:"userEvents"`
}

// AttendeeCount is the part of an event an attendance change may overwrite.
type AttendeeCount struct {
	ID        EventID `json:"_id" validate:"required"`
	Attendees int     `json:"attendees" validate:"gte=0"`
}

// AttendanceUpdate is carried by both the toggle response and the realtime
// "attendence" notification.
type AttendanceUpdate struct {
	Event      AttendeeCount `json:"event"`
	UserEvents []EventID     `json:"userEvents"`
}

// Contains reports whether the update's membership list includes id.
func (u AttendanceUpdate) Contains(id EventID) bool {
	for _, v := range u.UserEvents {
		if v == id {
			return true
		}
	}
	return false
}
