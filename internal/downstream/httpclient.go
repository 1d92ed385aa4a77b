package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/logger"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/metrics"
	pkgctx "github.com/baechuer/real-time-ressys/services/rsvp-client/internal/pkg/context"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/tokenstore"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	HeaderRequestID   = "X-Request-ID"
	DefaultAuthHeader = "Authorization"
)

// ClientConfig holds configuration for the HTTP client wrapper
type ClientConfig struct {
	BaseURL string
	// AuthHeader is the header the persisted token travels under.
	AuthHeader string
	// ReadTimeout is used for GET requests, 0 means none
	ReadTimeout time.Duration
	// WriteTimeout is used for POST, PUT, PATCH, DELETE requests, 0 means none
	WriteTimeout time.Duration
}

// RequestInterceptor runs on every outgoing request before it is sent.
type RequestInterceptor func(req *http.Request) error

// Client is the API client every store talks through. It:
// 1. Injects X-Request-ID from context (or a fresh one)
// 2. Attaches the persisted token through an interceptor
// 3. Maps failures to RequestErrors and malformed bodies to SchemaErrors
// It never retries; a failed request fails exactly once.
type Client struct {
	baseClient   *http.Client
	config       ClientConfig
	interceptors []RequestInterceptor
}

type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.baseClient = hc }
}

// WithInterceptor appends an interceptor after the defaults.
func WithInterceptor(i RequestInterceptor) Option {
	return func(c *Client) { c.interceptors = append(c.interceptors, i) }
}

func NewClient(config ClientConfig, tokens tokenstore.Store, opts ...Option) *Client {
	if config.AuthHeader == "" {
		config.AuthHeader = DefaultAuthHeader
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	c := &Client{
		baseClient: &http.Client{
			// No global timeout - per-request timeouts only when configured
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		config: config,
		interceptors: []RequestInterceptor{
			requestIDInterceptor,
			TokenInterceptor(tokens, config.AuthHeader),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func requestIDInterceptor(req *http.Request) error {
	if id := pkgctx.GetRequestID(req.Context()); id != "" {
		req.Header.Set(HeaderRequestID, id)
	}
	return nil
}

// TokenInterceptor attaches the raw token under header when one is stored.
func TokenInterceptor(tokens tokenstore.Store, header string) RequestInterceptor {
	return func(req *http.Request) error {
		if tokens == nil {
			return nil
		}
		token, err := tokens.Get(req.Context())
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		if token != "" {
			req.Header.Set(header, token)
		}
		return nil
	}
}

func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPost, endpoint, body, out)
}

func (c *Client) Put(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPut, endpoint, body, out)
}

func (c *Client) Patch(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, endpoint, body, out)
}

func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, out)
}

// Do sends one request and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any) error {
	if pkgctx.GetRequestID(ctx) == "" {
		ctx = pkgctx.WithRequestID(ctx, uuid.NewString())
	}

	timeout := c.config.ReadTimeout
	if isWriteMethod(method) {
		timeout = c.config.WriteTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return domain.Wrap(domain.KindValidation, "encode_failed", "could not encode request", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+endpoint, reader)
	if err != nil {
		return domain.ErrRequest(0, "", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, intercept := range c.interceptors {
		if err := intercept(req); err != nil {
			return domain.ErrRequest(0, "", err)
		}
	}

	log := logger.Ctx(ctx).With().
		Str("method", method).
		Str("url", req.URL.String()).
		Logger()

	start := time.Now()
	resp, err := c.baseClient.Do(req)
	duration := time.Since(start)
	label := endpointLabel(endpoint)

	if err != nil {
		metrics.ObserveRequest(method, label, 0, duration)
		log.Warn().
			Err(err).
			Dur("duration", duration).
			Msg("downstream_request_failed")
		return mapError(err)
	}
	defer resp.Body.Close()

	metrics.ObserveRequest(method, label, resp.StatusCode, duration)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rerr := decodeError(resp)
		log.Warn().
			Int("status", resp.StatusCode).
			Dur("duration", duration).
			Str("error", domain.Message(rerr)).
			Msg("downstream_request_failed")
		return rerr
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("downstream_request_completed")

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrSchema("empty response body", err)
		}
		return domain.ErrSchema("response is not valid JSON", err)
	}
	return nil
}

// endpointLabel strips the query so metric cardinality stays bounded.
func endpointLabel(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

// isWriteMethod returns true for HTTP methods that modify state
func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
