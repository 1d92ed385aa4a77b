package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() Draft {
	return Draft{
		Title:        "Go Meetup",
		Description:  "Monthly meetup",
		Date:         "2025-12-26",
		Time:         "18:00",
		Location:     "Pune",
		Category:     CategoryTechnology,
		MaxAttendees: 50,
		IsFree:       true,
	}
}

func TestDraft_Payload(t *testing.T) {
	t.Run("free_draft_has_null_price", func(t *testing.T) {
		d := validDraft()
		d.Price = "500"

		p, err := d.Payload()
		require.NoError(t, err)
		assert.Nil(t, p.Price)

		raw, err := json.Marshal(p)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"price":null`)
	})

	t.Run("paid_draft_price_string_becomes_number", func(t *testing.T) {
		d := validDraft()
		d.IsFree = false
		d.Price = "500"

		p, err := d.Payload()
		require.NoError(t, err)
		require.NotNil(t, p.Price)
		assert.Equal(t, Price(500), *p.Price)

		raw, err := json.Marshal(p)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"price":500`)
	})

	t.Run("paid_draft_requires_positive_price", func(t *testing.T) {
		d := validDraft()
		d.IsFree = false

		d.Price = "abc"
		_, err := d.Payload()
		assert.True(t, IsKind(err, KindValidation))

		d.Price = "0"
		_, err = d.Payload()
		assert.True(t, IsKind(err, KindValidation))
		assert.Equal(t, "gt=0", err.(*Error).Meta["price"])
	})

	t.Run("missing_fields_are_reported_by_json_name", func(t *testing.T) {
		d := validDraft()
		d.Title = "   "
		d.Category = "Cooking"
		d.MaxAttendees = 0

		_, err := d.Payload()
		require.Error(t, err)
		de := err.(*Error)
		assert.Equal(t, KindValidation, de.Kind)
		assert.Equal(t, "required", de.Meta["title"])
		assert.Equal(t, "oneof", de.Meta["category"])
		assert.Equal(t, "gte", de.Meta["maxAttendees"])
	})

	t.Run("bad_date_and_time", func(t *testing.T) {
		d := validDraft()
		d.Date = "26/12/2025"
		d.Time = "6pm"

		_, err := d.Payload()
		require.Error(t, err)
		de := err.(*Error)
		assert.Equal(t, "calendar_date", de.Meta["date"])
		assert.Equal(t, "clock_time", de.Meta["time"])
	})
}

func TestValidateEdit(t *testing.T) {
	e := Event{
		ID: "1", Title: "Jazz", Description: "Live", Date: "2025-12-25", Time: "11:00",
		Location: "Mumbai", Category: CategoryMusic, IsFree: false, Price: PriceOf(200),
	}
	assert.NoError(t, ValidateEdit(e))

	e.Price = nil
	assert.True(t, IsKind(ValidateEdit(e), KindValidation))

	e.IsFree = true
	assert.NoError(t, ValidateEdit(e))

	e.ID = ""
	assert.Equal(t, "required", ValidateEdit(e).(*Error).Meta["_id"])
}

func TestRegistration_Validate(t *testing.T) {
	r := Registration{Name: "Asha", Email: "asha@example.com", Password: "secret1", ConfirmPassword: "secret1"}
	assert.NoError(t, r.Validate())

	r.ConfirmPassword = "secret2"
	err := r.Validate()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
	assert.Equal(t, "Passwords don't match", Message(err))

	r = Registration{Name: "A", Email: "nope", Password: "123", ConfirmPassword: "123"}
	de := r.Validate().(*Error)
	assert.Equal(t, "min", de.Meta["name"])
	assert.Equal(t, "email", de.Meta["email"])
	assert.Equal(t, "min", de.Meta["password"])
}

func TestCredentials_Validate(t *testing.T) {
	assert.NoError(t, Credentials{Email: "a@b.co", Password: "secret1"}.Validate())
	assert.True(t, IsKind(Credentials{Email: "a@b.co", Password: "123"}.Validate(), KindValidation))
}

func TestValidateSchema(t *testing.T) {
	var list EventList
	require.NoError(t, json.Unmarshal([]byte(`{"events":[{"_id":"1","title":"","date":"2025-12-25","time":"09:00"}]}`), &list))

	err := ValidateSchema(list, "events")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSchema))
	assert.Equal(t, "required", err.(*Error).Meta["events[0].title"])

	var missing EventList
	require.NoError(t, json.Unmarshal([]byte(`{"userEvents":[]}`), &missing))
	assert.True(t, IsKind(ValidateSchema(missing, "events"), KindSchema))
}
