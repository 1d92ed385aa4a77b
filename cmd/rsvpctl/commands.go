package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/bootstrap"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/events"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/realtime"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/session"
)

type appFactory func(ctx context.Context) (*bootstrap.App, error)

type command struct {
	usage string
	run   func(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error
}

var commands = map[string]command{
	"list":     {"list [-search q] [-category c] [-date yyyy-mm-dd] [-time HH:mm] [-status s] [-price all|free|paid]", cmdList},
	"show":     {"show -id ID", cmdShow},
	"whoami":   {"whoami", cmdWhoami},
	"login":    {"login -email E -password P", cmdLogin},
	"logout":   {"logout", cmdLogout},
	"register": {"register -name N -email E -password P -confirm P", cmdRegister},
	"attend":   {"attend -id ID", cmdAttend},
	"create":   {"create -title T -description D -date yyyy-mm-dd -time HH:mm -location L -category C -max N [-free | -price P]", cmdCreate},
	"update":   {"update -id ID [-title T] [-description D] [-date d] [-time t] [-location L] [-category C] [-free | -price P]", cmdUpdate},
	"delete":   {"delete -id ID", cmdDelete},
	"watch":    {"watch", cmdWatch},
	"ping":     {"ping [-message M]", cmdPing},
}

var errUsage = errors.New("usage")

// describe is the one-line failure shown to the user. Auth failures point
// back to login.
func describe(err error) string {
	msg := domain.Message(err)
	if session.IsAuthError(err) {
		return msg + " (run: rsvpctl login -email E -password P)"
	}
	return msg
}

func usage(out io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "usage: rsvpctl <command> [flags]")
	for _, name := range names {
		fmt.Fprintln(out, "  "+commands[name].usage)
	}
}

func run(ctx context.Context, args []string, out io.Writer, newApp appFactory) error {
	if len(args) == 0 {
		usage(out)
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	if err := app.Start(ctx); err != nil {
		return err
	}
	return cmd.run(ctx, app, args[1:], out)
}

func newFlags(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// choices renders flag help such as "all|Technology|Music"; lead values
// come first.
func choices[T ~string](values []T, lead ...string) string {
	parts := append(make([]string, 0, len(lead)+len(values)), lead...)
	for _, v := range values {
		parts = append(parts, string(v))
	}
	return strings.Join(parts, "|")
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.ErrInvalidField("id", "required")
	}
	return nil
}

func cmdList(_ context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlags("list", out)
	search := fs.String("search", "", "title substring")
	category := fs.String("category", domain.CategoryAll, choices(domain.Categories, domain.CategoryAll))
	date := fs.String("date", "", "calendar date")
	clock := fs.String("time", domain.TimeAny, "time of day")
	status := fs.String("status", domain.StatusAll, choices(domain.Statuses, domain.StatusAll))
	price := fs.String("price", string(domain.PriceAll), "all|free|paid")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pf, err := domain.ParsePriceFilter(*price)
	if err != nil {
		return domain.ErrInvalidField("price", "oneof")
	}
	s := app.Events
	s.SetSearch(*search)
	s.SetCategory(*category)
	s.SetDate(*date)
	s.SetTime(*clock)
	s.SetStatus(*status)
	s.SetPriceFilter(pf)

	renderEvents(out, s, s.Filtered())
	return nil
}

func cmdShow(_ context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlags("show", out)
	id := fs.String("id", "", "event id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}

	e, ok := app.Events.Event(domain.EventID(*id))
	if !ok {
		return fmt.Errorf("event %s not found", *id)
	}
	renderEvent(out, app.Events, e)
	return nil
}

func cmdWhoami(_ context.Context, app *bootstrap.App, _ []string, out io.Writer) error {
	snap := app.Session.Snapshot()
	if snap.Name == "" {
		fmt.Fprintln(out, "not logged in")
		return nil
	}
	fmt.Fprintf(out, "%s <%s> role=%s events=%d\n", snap.Name, snap.Email, snap.Role, len(snap.Events))
	return nil
}

func cmdLogin(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlags("login", out)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := app.Login(ctx, *email, *password); err != nil {
		return err
	}
	fmt.Fprintf(out, "logged in as %s\n", app.Session.Snapshot().Name)
	return nil
}

func cmdLogout(ctx context.Context, app *bootstrap.App, _ []string, out io.Writer) error {
	if err := app.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "logged out")
	return nil
}

func cmdRegister(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlags("register", out)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password")
	confirm := fs.String("confirm", "", "password again")
	if err := fs.Parse(args); err != nil {
		return err
	}
	msg, err := app.Session.Register(ctx, *name, *email, *password, *confirm)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "account created"
	}
	fmt.Fprintln(out, msg+"; log in to continue")
	return nil
}

func cmdAttend(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlags("attend", out)
	id := fs.String("id", "", "event id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}

	attending, err := app.Events.MarkAttendance(ctx, domain.EventID(*id))
	if errors.Is(err, events.ErrToggleInFlight) {
		fmt.Fprintln(out, "a change for this event is already pending")
		return nil
	}
	if err != nil {
		return err
	}
	if attending {
		fmt.Fprintln(out, "You are now marked as attending this event.")
	} else {
		fmt.Fprintln(out, "You are no longer marked as attending this event.")
	}
	return nil
}

func cmdCreate(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlags("create", out)
	var d domain.Draft
	var category string
	fs.StringVar(&d.Title, "title", "", "title")
	fs.StringVar(&d.Description, "description", "", "description")
	fs.StringVar(&d.Date, "date", "", "calendar date")
	fs.StringVar(&d.Time, "time", "", "time of day")
	fs.StringVar(&d.Location, "location", "", "location")
	fs.StringVar(&category, "category", "", choices(domain.Categories))
	fs.IntVar(&d.MaxAttendees, "max", 0, "capacity")
	fs.BoolVar(&d.IsFree, "free", false, "free event")
	fs.StringVar(&d.Price, "price", "", "ticket price when not free")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d.Category = domain.Category(category)

	created, err := app.CreateEvent(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created event %s\n", created.ID)
	return nil
}

func cmdUpdate(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlags("update", out)
	id := fs.String("id", "", "event id")
	title := fs.String("title", "", "title")
	description := fs.String("description", "", "description")
	date := fs.String("date", "", "calendar date")
	clock := fs.String("time", "", "time of day")
	location := fs.String("location", "", "location")
	category := fs.String("category", "", choices(domain.Categories))
	free := fs.Bool("free", false, "make the event free")
	price := fs.String("price", "", "ticket price")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}

	e, ok := app.Events.Event(domain.EventID(*id))
	if !ok {
		return fmt.Errorf("event %s not found", *id)
	}
	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&e.Title, *title)
	setIf(&e.Description, *description)
	setIf(&e.Date, *date)
	setIf(&e.Time, *clock)
	setIf(&e.Location, *location)
	if *category != "" {
		e.Category = domain.Category(*category)
	}
	switch {
	case *free:
		e.IsFree = true
		e.Price = nil
	case *price != "":
		p, err := domain.ParsePrice(*price)
		if err != nil {
			return domain.ErrInvalidField("price", "numeric")
		}
		e.IsFree = false
		e.Price = &p
	}

	updated, err := app.Events.Update(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "updated event %s\n", updated.ID)
	return nil
}

func cmdDelete(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlags("delete", out)
	id := fs.String("id", "", "event id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}
	if err := app.DeleteEvent(ctx, domain.EventID(*id)); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted event %s\n", *id)
	return nil
}

// cmdWatch prints the collection on every store change until interrupted.
func cmdWatch(ctx context.Context, app *bootstrap.App, _ []string, out io.Writer) error {
	if app.Realtime == nil || app.Realtime.State() != realtime.StateConnected {
		return errors.New("realtime channel is not connected")
	}

	changed := make(chan struct{}, 1)
	unsubscribe := app.Events.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	dropped := make(chan struct{})
	var once sync.Once
	app.Realtime.OnStateChange(func(s realtime.State) {
		if s == realtime.StateDisconnected {
			once.Do(func() { close(dropped) })
		}
	})

	renderEvents(out, app.Events, app.Events.Filtered())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-dropped:
			return errors.New("realtime channel disconnected")
		case <-changed:
			fmt.Fprintln(out)
			renderEvents(out, app.Events, app.Events.Filtered())
		}
	}
}

func cmdPing(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlags("ping", out)
	msg := fs.String("message", "Hello from rsvpctl", "diagnostic text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if app.Realtime == nil {
		return realtime.ErrNotConnected
	}
	if err := app.Realtime.Emit(ctx, realtime.EventMessage, *msg); err != nil {
		return err
	}
	fmt.Fprintln(out, "sent")
	return nil
}

// ----------------------
// Rendering
// ----------------------

func priceLabel(e domain.Event) string {
	if e.IsFree || e.Price == nil {
		return "free"
	}
	return fmt.Sprintf("%.2f", float64(*e.Price))
}

func renderEvents(out io.Writer, s *events.Store, list []domain.Event) {
	if len(list) == 0 {
		fmt.Fprintln(out, "no events match")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDATE\tTIME\tCATEGORY\tSTATUS\tPRICE\tATTENDEES\tGOING")
	for _, e := range list {
		going := ""
		if s.IsAttending(e.ID) {
			going = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID, e.Title, e.Date, e.Time, e.Category, s.Status(e), priceLabel(e), e.Attendees, going)
	}
	_ = tw.Flush()
}

func renderEvent(out io.Writer, s *events.Store, e domain.Event) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", e.ID)
	fmt.Fprintf(tw, "title\t%s\n", e.Title)
	fmt.Fprintf(tw, "description\t%s\n", e.Description)
	fmt.Fprintf(tw, "when\t%s %s (%s)\n", e.Date, e.Time, s.Status(e))
	fmt.Fprintf(tw, "where\t%s\n", e.Location)
	fmt.Fprintf(tw, "category\t%s\n", e.Category)
	fmt.Fprintf(tw, "price\t%s\n", priceLabel(e))
	fmt.Fprintf(tw, "attendees\t%d\n", e.Attendees)
	if e.MaxAttendees > 0 {
		fmt.Fprintf(tw, "capacity\t%d\n", e.MaxAttendees)
	}
	fmt.Fprintf(tw, "attending\t%t\n", s.IsAttending(e.ID))
	_ = tw.Flush()
}
