package downstream

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthClient_Login(t *testing.T) {
	var body map[string]string
	r := chi.NewRouter()
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret1" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"token": "t1", "name": "Asha", "email": "asha@example.com", "role": "admin", "events": []any{1, "2"}},
		})
	})
	a := NewAuthClient(newTestClient(t, r, nil))

	id, err := a.Login(context.Background(), domain.Credentials{Email: "asha@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "t1", id.Token)
	assert.Equal(t, domain.RoleAdmin, id.Role)
	assert.Equal(t, []domain.EventID{"1", "2"}, id.Events)
	assert.Equal(t, "asha@example.com", body["email"])

	_, err = a.Login(context.Background(), domain.Credentials{Email: "asha@example.com", Password: "wrong00"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAuth))
	assert.Equal(t, "Invalid email or password", domain.Message(err))
}

func TestAuthClient_LoginRequiresSuccessFlag(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"token": "t1"}})
	})
	a := NewAuthClient(newTestClient(t, r, nil))

	_, err := a.Login(context.Background(), domain.Credentials{Email: "a@b.co", Password: "secret1"})
	assert.True(t, domain.IsKind(err, domain.KindAuth))
	assert.Equal(t, "Failed to login", domain.Message(err))
}

func TestAuthClient_Verify(t *testing.T) {
	withToken := true
	r := chi.NewRouter()
	r.Get("/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{"name": "Asha", "email": "asha@example.com", "role": "superuser"}
		if withToken {
			data["token"] = "t2"
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
	})
	a := NewAuthClient(newTestClient(t, r, nil))

	id, err := a.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t2", id.Token)
	assert.Equal(t, domain.RoleUser, id.Role, "unknown roles are treated as user")

	withToken = false
	_, err = a.Verify(context.Background())
	assert.True(t, domain.IsKind(err, domain.KindAuth))
}

func TestAuthClient_VerifyMalformedIdentity(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"token": "t", "email": "not-an-email"}})
	})
	a := NewAuthClient(newTestClient(t, r, nil))

	_, err := a.Verify(context.Background())
	assert.True(t, domain.IsKind(err, domain.KindSchema))
}

func TestAuthClient_RegisterOmitsConfirmation(t *testing.T) {
	var body map[string]any
	r := chi.NewRouter()
	r.Post("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Account created"})
	})
	a := NewAuthClient(newTestClient(t, r, nil))

	msg, err := a.Register(context.Background(), domain.Registration{
		Name: "Asha", Email: "asha@example.com", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Account created", msg)
	assert.Equal(t, "Asha", body["name"])
	assert.NotContains(t, body, "confirmPassword")
}

func TestEventsClient_List(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"events": []any{
					map[string]any{"_id": 1, "title": "Jazz", "date": "2025-12-25T00:00:00.000Z", "time": "11:00", "attendees": 3, "isFree": false, "price": 500},
					map[string]any{"_id": "2", "title": "Meetup", "date": "2025-12-26", "time": "18:00", "isFree": true, "price": ""},
				},
				"userEvents": []any{1},
			},
		})
	})
	e := NewEventsClient(newTestClient(t, r, nil))

	list, err := e.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Events, 2)
	assert.Equal(t, "2025-12-25", list.Events[0].Date)
	assert.Equal(t, domain.Price(500), *list.Events[0].Price)
	assert.Nil(t, list.Events[1].Price)
	assert.Equal(t, []domain.EventID{"1"}, list.UserEvents)
}

func TestEventsClient_ListRejectsMalformed(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"events": []any{map[string]any{"title": "no id", "date": "2025-12-25", "time": "11:00"}}},
		})
	})
	e := NewEventsClient(newTestClient(t, r, nil))

	_, err := e.List(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindSchema))
	assert.Equal(t, "required", err.(*domain.Error).Meta["events[0]._id"])
}

func TestEventsClient_CreateSendsNumericPrice(t *testing.T) {
	var body map[string]any
	r := chi.NewRouter()
	r.Post("/events/new-event", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["_id"] = "new-1"
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": body})
	})
	e := NewEventsClient(newTestClient(t, r, nil))

	p := domain.EventPayload{
		Title: "Jazz", Description: "Live", Date: "2025-12-25", Time: "11:00",
		Location: "Mumbai", Category: domain.CategoryMusic, MaxAttendees: 10, Price: domain.PriceOf(500),
	}
	ev, err := e.Create(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, float64(500), body["price"])
	assert.Equal(t, domain.EventID("new-1"), ev.ID)
	assert.Equal(t, domain.Price(500), *ev.Price)
}

func TestEventsClient_Delete(t *testing.T) {
	reply := map[string]any{}
	var gotID string
	r := chi.NewRouter()
	r.Delete("/events", func(w http.ResponseWriter, r *http.Request) {
		gotID = r.URL.Query().Get("id")
		writeJSON(w, http.StatusOK, reply)
	})
	e := NewEventsClient(newTestClient(t, r, nil))

	cases := []struct {
		name string
		data any
		want domain.EventID
	}{
		{"bare_id", "42", "42"},
		{"numeric_id", 42, "42"},
		{"object", map[string]any{"_id": "42", "title": "x"}, "42"},
		{"nothing", nil, "a&b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reply = map[string]any{"success": true, "data": tc.data}
			id := domain.EventID("42")
			if tc.data == nil {
				id = "a&b"
			}
			got, err := e.Delete(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, string(id), gotID)
		})
	}
}

func TestEventsClient_MarkAttendance(t *testing.T) {
	var body map[string]any
	r := chi.NewRouter()
	r.Post("/events/attendence", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"event": map[string]any{"_id": "7", "attendees": 4}, "userEvents": []any{"7"}},
		})
	})
	e := NewEventsClient(newTestClient(t, r, nil))

	u, err := e.MarkAttendance(context.Background(), "7", true)
	require.NoError(t, err)
	assert.Equal(t, "7", body["id"])
	assert.Equal(t, true, body["inc"])
	assert.Equal(t, 4, u.Event.Attendees)
	assert.True(t, u.Contains("7"))
}

func TestEventsClient_MarkAttendanceNegativeCount(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/events/attendence", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"event": map[string]any{"_id": "7", "attendees": -1}},
		})
	})
	e := NewEventsClient(newTestClient(t, r, nil))

	_, err := e.MarkAttendance(context.Background(), "7", false)
	assert.True(t, domain.IsKind(err, domain.KindSchema))
}
