package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/config"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/downstream"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/events"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/logger"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/realtime"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/session"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/tokenstore"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/tracing"
)

/*
========================
 Public entry
========================
*/

// New builds the application from the environment.
func New(ctx context.Context) (*App, error) {
	return newApp(ctx, defaultDeps())
}

// NewWithDeps allows injecting dependencies for testing
func NewWithDeps(ctx context.Context, deps Deps) (*App, error) {
	return newApp(ctx, deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	// NewTokenStore returns the store and a cleanup func.
	NewTokenStore func(ctx context.Context, cfg *config.Config) (tokenstore.Store, func(), error)

	ClientOptions []downstream.Option

	// ConfigureLogger applies the loaded log settings. Nil keeps the
	// current logger.
	ConfigureLogger func(cfg *config.Config)
}

func defaultDeps() Deps {
	return Deps{
		LoadConfig:    config.Load,
		NewTokenStore: newTokenStore,
		ConfigureLogger: func(cfg *config.Config) {
			logger.Configure(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		},
	}
}

func newTokenStore(ctx context.Context, cfg *config.Config) (tokenstore.Store, func(), error) {
	switch cfg.TokenStore {
	case config.TokenStoreMemory:
		return tokenstore.NewMemory(), func() {}, nil
	case config.TokenStoreRedis:
		r, err := tokenstore.DialRedis(ctx, cfg.RedisURL, cfg.TokenKey)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: redis token store: %w", err)
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return tokenstore.NewFile(cfg.TokenFile), func() {}, nil
	}
}

/*
========================
 App
========================
*/

// App owns the stores and the realtime connection. Stores are plain
// values injected here; nothing is a package-level singleton.
type App struct {
	Config   *config.Config
	Tokens   tokenstore.Store
	Client   *downstream.Client
	Events   *events.Store
	Session  *session.Store
	Realtime *realtime.Channel

	tracer  *tracing.TracerProvider
	cleanup []func()
}

func newApp(ctx context.Context, deps Deps) (*App, error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, err
	}
	// .env is only read by LoadConfig, so levels set there apply from here on
	if deps.ConfigureLogger != nil {
		deps.ConfigureLogger(cfg)
	}

	// 1) tracing
	tp, err := tracing.InitTracing(ctx, tracing.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.AppEnv,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: tracing: %w", err)
	}

	// 2) token slot
	tokens, closeTokens, err := deps.NewTokenStore(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	// 3) api client
	client := downstream.NewClient(downstream.ClientConfig{
		BaseURL:      cfg.APIBaseURL,
		AuthHeader:   cfg.AuthHeader,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}, tokens, deps.ClientOptions...)

	// 4) stores; the session store tells the event store who is acting
	eventStore := events.NewStore(downstream.NewEventsClient(client))
	sessionStore := session.NewStore(downstream.NewAuthClient(client), tokens, eventStore)

	// 5) realtime relay into the event store
	var channel *realtime.Channel
	if cfg.RealtimeEnabled {
		channel = realtime.NewChannel(realtime.Config{
			URL:        cfg.SocketURL,
			AuthHeader: cfg.AuthHeader,
		}, tokens, eventStore)
	}

	return &App{
		Config:   cfg,
		Tokens:   tokens,
		Client:   client,
		Events:   eventStore,
		Session:  sessionStore,
		Realtime: channel,
		tracer:   tp,
		cleanup:  []func(){closeTokens},
	}, nil
}

// Start acquires the realtime connection, resumes a persisted session and
// loads the collection. A realtime or verify failure is logged and left in
// the stores; only a failed fetch is returned.
func (a *App) Start(ctx context.Context) error {
	if a.Realtime != nil {
		if err := a.Realtime.Start(ctx); err != nil {
			logger.Log.Warn().Err(err).Msg("realtime unavailable; continuing without live updates")
		}
	}

	if a.Session.Snapshot().Name == "" {
		if err := a.Session.VerifySession(ctx); err != nil {
			logger.Log.Info().Str("reason", domain.Message(err)).Msg("no active session")
		}
	}

	return a.Events.FetchAll(ctx)
}

// Login authenticates and reloads the collection, since membership depends
// on who is asking.
func (a *App) Login(ctx context.Context, email, password string) error {
	if err := a.Session.Login(ctx, email, password); err != nil {
		return err
	}
	return a.Events.FetchAll(ctx)
}

func (a *App) Logout(ctx context.Context) error {
	return a.Session.Logout(ctx)
}

// CreateEvent submits the draft, records it as owned and reloads the
// collection.
func (a *App) CreateEvent(ctx context.Context, d domain.Draft) (domain.Event, error) {
	created, err := a.Events.Create(ctx, d)
	if err != nil {
		return domain.Event{}, err
	}
	a.Session.TrackEvent(created.ID)
	if err := a.Events.FetchAll(ctx); err != nil {
		return created, err
	}
	return created, nil
}

func (a *App) DeleteEvent(ctx context.Context, id domain.EventID) error {
	if err := a.Events.Delete(ctx, id); err != nil {
		return err
	}
	a.Session.ForgetEvent(id)
	return nil
}

// Close releases the realtime connection, then the token store and tracer.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Realtime != nil {
		if err := a.Realtime.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
