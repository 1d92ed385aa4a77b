package domain

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report json names so field errors line up with the wire format.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("calendar_date", validateCalendarDate)
	_ = v.RegisterValidation("clock_time", validateClockTime)
	return v
}

func validateCalendarDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}

func validateClockTime(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	for _, layout := range timeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// fieldErrors flattens validator output into json field -> failed rule.
func fieldErrors(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fieldPath(fe)] = fe.Tag()
	}
	return out
}

// fieldPath drops the root struct name: "EventList.events[0]._id" -> "events[0]._id".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func summarize(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return "invalid " + strings.Join(names, ", ")
}

// Validate checks client input; failures are ValidationErrors.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		fields := fieldErrors(err)
		if fields == nil {
			return err
		}
		return ErrValidation(summarize(fields), fields)
	}
	return nil
}

// ValidateSchema checks a decoded server payload; failures are SchemaErrors.
func ValidateSchema(v any, what string) error {
	if err := validate.Struct(v); err != nil {
		e := ErrSchema(fmt.Sprintf("malformed %s payload", what), err)
		e.Meta = fieldErrors(err)
		return e
	}
	return nil
}

// ----------------------
// Client input
// ----------------------

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (c Credentials) Validate() error { return Validate(c) }

type Registration struct {
	Name            string `json:"name" validate:"required,min=2"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

func (r Registration) Validate() error {
	err := Validate(r)
	var de *Error
	if errors.As(err, &de) && de.Meta["confirmPassword"] == "eqfield" {
		de.Message = "Passwords don't match"
	}
	return err
}

// Draft is the creation form. Price is the raw form input and is only
// meaningful when IsFree is false.
type Draft struct {
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description" validate:"required"`
	Date         string   `json:"date" validate:"required,calendar_date"`
	Time         string   `json:"time" validate:"required,clock_time"`
	Location     string   `json:"location" validate:"required"`
	Category     Category `json:"category" validate:"required,oneof=Technology Music Business Sports"`
	MaxAttendees int      `json:"maxAttendees" validate:"gte=1"`
	IsFree       bool     `json:"isFree"`
	Price        string   `json:"price"`
}

// EventPayload is the wire body of a creation request.
type EventPayload struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	Location     string   `json:"location"`
	Category     Category `json:"category"`
	MaxAttendees int      `json:"maxAttendees"`
	IsFree       bool     `json:"isFree"`
	Price        *Price   `json:"price"`
}

// Payload validates the draft and converts it to its wire form: a null price
// when free, a positive number otherwise.
func (d Draft) Payload() (EventPayload, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Location = strings.TrimSpace(d.Location)

	if err := Validate(d); err != nil {
		return EventPayload{}, err
	}

	var price *Price
	if !d.IsFree {
		p, err := ParsePrice(d.Price)
		if err != nil {
			return EventPayload{}, ErrInvalidField("price", "numeric")
		}
		if err := checkPrice(&p); err != nil {
			return EventPayload{}, err
		}
		price = &p
	}

	return EventPayload{
		Title:        d.Title,
		Description:  d.Description,
		Date:         d.Date,
		Time:         d.Time,
		Location:     d.Location,
		Category:     d.Category,
		MaxAttendees: d.MaxAttendees,
		IsFree:       d.IsFree,
		Price:        price,
	}, nil
}

type editRules struct {
	ID          EventID  `json:"_id" validate:"required"`
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Date        string   `json:"date" validate:"required,calendar_date"`
	Time        string   `json:"time" validate:"required,clock_time"`
	Location    string   `json:"location" validate:"required"`
	Category    Category `json:"category" validate:"required,oneof=Technology Music Business Sports"`
	Attendees   int      `json:"attendees" validate:"gte=0"`
}

// ValidateEdit checks a full replacement submitted by the edit form.
func ValidateEdit(e Event) error {
	if err := Validate(editRules{
		ID:          e.ID,
		Title:       strings.TrimSpace(e.Title),
		Description: strings.TrimSpace(e.Description),
		Date:        e.Date,
		Time:        e.Time,
		Location:    strings.TrimSpace(e.Location),
		Category:    e.Category,
		Attendees:   e.Attendees,
	}); err != nil {
		return err
	}
	if e.IsFree {
		return nil
	}
	return checkPrice(e.Price)
}

func checkPrice(p *Price) error {
	if p == nil {
		return ErrInvalidField("price", "required")
	}
	if *p <= 0 {
		return ErrInvalidField("price", "gt=0")
	}
	return nil
}
