package events

import "github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"

// Filter setters replace one field at a time and never touch the network.

func (s *Store) setFilter(fn func(f *domain.FilterState)) {
	s.mu.Lock()
	fn(&s.filter)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) SetSearch(q string) {
	s.setFilter(func(f *domain.FilterState) { f.Search = q })
}

func (s *Store) SetCategory(c string) {
	if c == "" {
		c = domain.CategoryAll
	}
	s.setFilter(func(f *domain.FilterState) { f.Category = c })
}

// SetDate selects one calendar date (yyyy-mm-dd).
func (s *Store) SetDate(d string) {
	s.setFilter(func(f *domain.FilterState) { f.Date = d })
}

func (s *Store) ClearDate() {
	s.SetDate("")
}

func (s *Store) SetTime(t string) {
	if t == "" {
		t = domain.TimeAny
	}
	s.setFilter(func(f *domain.FilterState) { f.Time = t })
}

func (s *Store) SetStatus(st string) {
	if st == "" {
		st = domain.StatusAll
	}
	s.setFilter(func(f *domain.FilterState) { f.Status = st })
}

func (s *Store) SetPriceFilter(p domain.PriceFilter) {
	if p == "" {
		p = domain.PriceAll
	}
	s.setFilter(func(f *domain.FilterState) { f.Price = p })
}

func (s *Store) ResetFilters() {
	s.setFilter(func(f *domain.FilterState) { *f = domain.DefaultFilter() })
}
