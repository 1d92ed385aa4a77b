package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"
)

const (
	pathEvents     = "/events"
	pathNewEvent   = "/events/new-event"
	pathAttendance = "/events/attendence"
)

type EventsClient struct {
	c *Client
}

func NewEventsClient(c *Client) *EventsClient {
	return &EventsClient{c: c}
}

// List fetches the collection together with the caller's membership list.
// The caller is identified by the attached token, so the body is empty.
func (e *EventsClient) List(ctx context.Context) (domain.EventList, error) {
	var env Envelope[domain.EventList]
	if err := e.c.Post(ctx, pathEvents, nil, &env); err != nil {
		return domain.EventList{}, err
	}
	if env.failed() {
		return domain.EventList{}, domain.ErrRequest(0, env.Message, nil)
	}

	list := env.Data
	for i := range list.Events {
		list.Events[i].Normalize()
	}
	if err := domain.ValidateSchema(list, "events"); err != nil {
		return domain.EventList{}, err
	}
	return list, nil
}

func (e *EventsClient) Create(ctx context.Context, p domain.EventPayload) (domain.Event, error) {
	return writeEvent(func(out any) error { return e.c.Post(ctx, pathNewEvent, p, out) })
}

// Update sends the full replacement, id included.
func (e *EventsClient) Update(ctx context.Context, ev domain.Event) (domain.Event, error) {
	return writeEvent(func(out any) error { return e.c.Patch(ctx, pathEvents, ev, out) })
}

func writeEvent(send func(out any) error) (domain.Event, error) {
	var env Envelope[domain.Event]
	if err := send(&env); err != nil {
		return domain.Event{}, err
	}
	if env.failed() {
		return domain.Event{}, domain.ErrRequest(0, env.Message, nil)
	}
	ev := env.Data
	ev.Normalize()
	if err := domain.ValidateSchema(ev, "event"); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

// Delete removes an event and returns the id the server reports as deleted.
// The server may answer with the bare id, the deleted object or nothing;
// the requested id is used when it names none.
func (e *EventsClient) Delete(ctx context.Context, id domain.EventID) (domain.EventID, error) {
	var env Envelope[json.RawMessage]
	if err := e.c.Delete(ctx, pathEvents+"?id="+url.QueryEscape(id.String()), &env); err != nil {
		return "", err
	}
	if env.failed() {
		return "", domain.ErrRequest(0, env.Message, nil)
	}

	raw := bytes.TrimSpace(env.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return id, nil
	}
	if raw[0] == '{' {
		var obj struct {
			ID domain.EventID `json:"_id"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", domain.ErrSchema("malformed delete payload", err)
		}
		if obj.ID == "" {
			return id, nil
		}
		return obj.ID, nil
	}
	var deleted domain.EventID
	if err := json.Unmarshal(raw, &deleted); err != nil {
		return "", domain.ErrSchema("malformed delete payload", err)
	}
	if deleted == "" {
		return id, nil
	}
	return deleted, nil
}

type attendanceBody struct {
	ID  domain.EventID `json:"id"`
	Inc bool           `json:"inc"`
}

// MarkAttendance asks the server to add (inc) or remove the caller's RSVP.
func (e *EventsClient) MarkAttendance(ctx context.Context, id domain.EventID, inc bool) (domain.AttendanceUpdate, error) {
	var env Envelope[domain.AttendanceUpdate]
	if err := e.c.Post(ctx, pathAttendance, attendanceBody{ID: id, Inc: inc}, &env); err != nil {
		return domain.AttendanceUpdate{}, err
	}
	if env.failed() {
		return domain.AttendanceUpdate{}, domain.ErrRequest(0, env.Message, nil)
	}
	if err := domain.ValidateSchema(env.Data, "attendance"); err != nil {
		return domain.AttendanceUpdate{}, err
	}
	return env.Data, nil
}
