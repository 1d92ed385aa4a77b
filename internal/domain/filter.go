package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	CategoryAll = "all"
	TimeAny     = "any"
	StatusAll   = "all"
)

type PriceFilter string

const (
	PriceAll  PriceFilter = "all"
	PriceFree PriceFilter = "free"
	PricePaid PriceFilter = "paid"
)

// ParsePriceFilter accepts all|free|paid, plus "isFree" as an alias of free.
func ParsePriceFilter(s string) (PriceFilter, error) {
	switch strings.TrimSpace(s) {
	case "", string(PriceAll):
		return PriceAll, nil
	case string(PriceFree), "isFree":
		return PriceFree, nil
	case string(PricePaid):
		return PricePaid, nil
	default:
		return "", fmt.Errorf("unknown price filter %q", s)
	}
}

// FilterState is pure projection state. It is never sent to the server.
type FilterState struct {
	Search   string
	Category string      // "all" or a Category
	Date     string      // "" or yyyy-mm-dd
	Time     string      // "any" or HH:mm
	Status   string      // "all" or a Status
	Price    PriceFilter // all|free|paid
}

func DefaultFilter() FilterState {
	return FilterState{
		Category: CategoryAll,
		Time:     TimeAny,
		Status:   StatusAll,
		Price:    PriceAll,
	}
}

// Matches applies every predicate conjunctively; evaluation order does not
// matter since none of them has side effects.
func (f FilterState) Matches(e Event, now time.Time) bool {
	if !strings.Contains(strings.ToLower(e.Title), strings.ToLower(f.Search)) {
		return false
	}
	if f.Category != "" && f.Category != CategoryAll && string(e.Category) != f.Category {
		return false
	}
	if f.Date != "" && e.Date != f.Date {
		return false
	}
	if f.Time != "" && f.Time != TimeAny && e.Time != f.Time {
		return false
	}
	if f.Status != "" && f.Status != StatusAll && string(DeriveStatus(e.Date, e.Time, now)) != f.Status {
		return false
	}
	switch f.Price {
	case PriceFree:
		return e.IsFree
	case PricePaid:
		return !e.IsFree
	}
	return true
}

// ApplyFilter returns the matching events in collection order.
func ApplyFilter(events []Event, f FilterState, now time.Time) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if f.Matches(e, now) {
			out = append(out, e.Clone())
		}
	}
	return out
}
