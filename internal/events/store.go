// Package events owns the event collection, the filter state and the
// caller's attendance set. The server is authoritative: create, update and
// delete only touch local state after the server confirms them.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/logger"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/tracing"
)

// ErrToggleInFlight is returned when a toggle for the same event is already
// waiting on the server. The intent is dropped, not queued.
var ErrToggleInFlight = errors.New("attendance toggle already in flight")

// API is the part of the events endpoint the store needs.
type API interface {
	List(ctx context.Context) (domain.EventList, error)
	Create(ctx context.Context, p domain.EventPayload) (domain.Event, error)
	Update(ctx context.Context, e domain.Event) (domain.Event, error)
	Delete(ctx context.Context, id domain.EventID) (domain.EventID, error)
	MarkAttendance(ctx context.Context, id domain.EventID, inc bool) (domain.AttendanceUpdate, error)
}

type Store struct {
	api   API
	clock domain.Clock

	mu         sync.RWMutex
	events     []domain.Event
	userEvents []domain.EventID
	filter     domain.FilterState
	pending    int
	err        string
	user       domain.CurrentUser
	inFlight   map[domain.EventID]struct{}

	subs   map[int]func()
	nextID int
}

type Option func(*Store)

// WithClock injects the time source used for status filtering.
func WithClock(c domain.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func NewStore(api API, opts ...Option) *Store {
	s := &Store{
		api:      api,
		clock:    domain.SystemClock{},
		filter:   domain.DefaultFilter(),
		user:     domain.AnonymousUser(),
		inFlight: make(map[domain.EventID]struct{}),
		subs:     make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to run after every state change. The returned func
// removes it.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// notify must be called without s.mu held.
func (s *Store) notify() {
	s.mu.RLock()
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn()
	}
}

// begin marks a request as pending and clears the last error.
func (s *Store) begin() {
	s.mu.Lock()
	s.pending++
	s.err = ""
	s.mu.Unlock()
	s.notify()
}

// finish settles a request: on failure the error is stored, on success
// apply runs under the lock.
func (s *Store) finish(op string, err error, apply func()) error {
	return s.settle(op, err, nil, apply)
}

// settle is finish with a release step that runs in the same critical
// section as apply, whether or not the request failed.
func (s *Store) settle(op string, err error, release, apply func()) error {
	s.mu.Lock()
	s.pending--
	if release != nil {
		release()
	}
	if err != nil {
		s.err = domain.Message(err)
	} else if apply != nil {
		apply()
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		logger.Log.Warn().Err(err).Str("op", op).Msg("event_store_operation_failed")
	}
	return err
}

// reject stores an error raised before any request was sent.
func (s *Store) reject(op string, err error) error {
	s.mu.Lock()
	s.err = domain.Message(err)
	s.mu.Unlock()
	s.notify()

	logger.Log.Warn().Err(err).Str("op", op).Msg("event_store_operation_rejected")
	return err
}

// FetchAll replaces the collection and the attendance set wholesale.
func (s *Store) FetchAll(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "events.FetchAll")
	s.begin()
	list, err := s.api.List(ctx)
	tracing.Finish(span, err)
	return s.finish("fetch_all", err, func() {
		s.events = list.Events
		s.userEvents = dedupe(list.UserEvents)
	})
}

// Create submits a draft and prepends the server's canonical object.
func (s *Store) Create(ctx context.Context, d domain.Draft) (domain.Event, error) {
	if err := domain.AuthorizeManage(s.CurrentUser(), domain.ActionCreate); err != nil {
		return domain.Event{}, s.reject("create", err)
	}
	p, err := d.Payload()
	if err != nil {
		return domain.Event{}, s.reject("create", err)
	}

	ctx, span := tracing.StartSpan(ctx, "events.Create")
	s.begin()
	created, err := s.api.Create(ctx, p)
	tracing.Finish(span, err)
	if err := s.finish("create", err, func() {
		s.events = append([]domain.Event{created}, s.events...)
	}); err != nil {
		return domain.Event{}, err
	}
	return created.Clone(), nil
}

// Update submits a full replacement. The response replaces the matching entry
// in place; when two updates race, the last response wins.
func (s *Store) Update(ctx context.Context, e domain.Event) (domain.Event, error) {
	if err := domain.AuthorizeManage(s.CurrentUser(), domain.ActionEdit); err != nil {
		return domain.Event{}, s.reject("update", err)
	}
	e.Normalize()
	if err := domain.ValidateEdit(e); err != nil {
		return domain.Event{}, s.reject("update", err)
	}

	ctx, span := tracing.StartSpan(ctx, "events.Update", tracing.EventID(e.ID.String()))
	s.begin()
	updated, err := s.api.Update(ctx, e)
	tracing.Finish(span, err)
	if err := s.finish("update", err, func() {
		if i := s.indexLocked(updated.ID); i >= 0 {
			s.events[i] = updated
		}
	}); err != nil {
		return domain.Event{}, err
	}
	return updated.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, id domain.EventID) error {
	if err := domain.AuthorizeManage(s.CurrentUser(), domain.ActionDelete); err != nil {
		return s.reject("delete", err)
	}

	ctx, span := tracing.StartSpan(ctx, "events.Delete", tracing.EventID(id.String()))
	s.begin()
	deleted, err := s.api.Delete(ctx, id)
	tracing.Finish(span, err)
	return s.finish("delete", err, func() {
		if i := s.indexLocked(deleted); i >= 0 {
			s.events = append(s.events[:i:i], s.events[i+1:]...)
		}
		s.userEvents = remove(s.userEvents, deleted)
	})
}

// MarkAttendance is the server-confirmed toggle. It asks the server to flip
// the caller's RSVP and only then applies the authoritative count and
// membership. While a toggle for id is pending, further toggles for id
// return ErrToggleInFlight. It reports whether the caller now attends.
func (s *Store) MarkAttendance(ctx context.Context, id domain.EventID) (bool, error) {
	s.mu.Lock()
	if err := domain.AuthorizeAttendance(s.user); err != nil {
		s.mu.Unlock()
		return false, s.reject("mark_attendance", err)
	}
	if _, busy := s.inFlight[id]; busy {
		s.mu.Unlock()
		metrics.ToggleDropped()
		logger.Log.Debug().Str("event_id", id.String()).Msg("attendance_toggle_dropped")
		return false, ErrToggleInFlight
	}
	s.inFlight[id] = struct{}{}
	inc := !contains(s.userEvents, id)
	s.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "events.MarkAttendance",
		tracing.EventID(id.String()),
		tracing.AttrIncrement.Bool(inc),
	)
	s.begin()
	u, err := s.api.MarkAttendance(ctx, id, inc)
	tracing.Finish(span, err)

	// the guard drops together with the membership change, so the next
	// toggle for id computes inc from the confirmed state
	release := func() { delete(s.inFlight, id) }
	if err := s.settle("mark_attendance", err, release, func() { s.applyLocked(u) }); err != nil {
		return false, err
	}
	return u.Contains(id), nil
}

// ToggleAttendance is the local-only toggle: it flips the current user's
// membership and moves the counter by one without asking the server.
func (s *Store) ToggleAttendance(id domain.EventID) error {
	s.mu.Lock()
	if err := domain.AuthorizeAttendance(s.user); err != nil {
		s.mu.Unlock()
		return s.reject("toggle_attendance", err)
	}
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}

	e := &s.events[i]
	uid := s.user.ID
	// the fetch may carry membership only in userEvents, without an
	// attending list on the event
	if contains(s.userEvents, id) || e.IsAttendedBy(uid) {
		e.Attending = without(e.Attending, uid)
		e.Attendees--
		if e.Attendees < 0 {
			e.Attendees = 0
		}
		s.userEvents = remove(s.userEvents, id)
	} else {
		e.Attending = append(e.Attending, uid)
		e.Attendees++
		s.userEvents = add(s.userEvents, id)
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// ApplyAttendance reconciles an attendance change pushed by the server: the
// count is overwritten and membership follows the update's list, whatever
// the local optimistic state says.
func (s *Store) ApplyAttendance(u domain.AttendanceUpdate) {
	s.mu.Lock()
	s.applyLocked(u)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) applyLocked(u domain.AttendanceUpdate) {
	id := u.Event.ID
	attending := u.Contains(id)

	if attending {
		s.userEvents = add(s.userEvents, id)
	} else {
		s.userEvents = remove(s.userEvents, id)
	}

	i := s.indexLocked(id)
	if i < 0 {
		return
	}
	e := &s.events[i]
	e.Attendees = u.Event.Attendees
	if !s.user.Authenticated() {
		return
	}
	if attending && !e.IsAttendedBy(s.user.ID) {
		e.Attending = append(e.Attending, s.user.ID)
	} else if !attending {
		e.Attending = without(e.Attending, s.user.ID)
	}
}

func (s *Store) indexLocked(id domain.EventID) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

// SetCurrentUser changes who attendance checks run as. Logout passes
// domain.AnonymousUser so toggles fail closed.
func (s *Store) SetCurrentUser(u domain.CurrentUser) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	s.notify()
}

func (s *Store) CurrentUser() domain.CurrentUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// ----------------------
// Reads
// ----------------------

// Filtered applies the current filter to the full collection. It is
// recomputed on every call.
func (s *Store) Filtered() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ApplyFilter(s.events, s.filter, s.clock.Now())
}

func (s *Store) Events() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Clone())
	}
	return out
}

func (s *Store) Event(id domain.EventID) (domain.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.events[i].Clone(), true
	}
	return domain.Event{}, false
}

// Status derives the event's status against the store's clock.
func (s *Store) Status(e domain.Event) domain.Status {
	return domain.DeriveStatus(e.Date, e.Time, s.clock.Now())
}

func (s *Store) UserEvents() []domain.EventID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.EventID(nil), s.userEvents...)
}

func (s *Store) IsAttending(id domain.EventID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return contains(s.userEvents, id)
}

func (s *Store) Filter() domain.FilterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending > 0
}

// Err is the last stored error message, "" when the last operation succeeded.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
