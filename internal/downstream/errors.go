package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"
)

var (
	ErrTimeout      = errors.New("downstream_timeout")
	ErrUnavailable  = errors.New("downstream_unavailable")
	ErrNotFound     = errors.New("resource_not_found")
	ErrUnauthorized = errors.New("unauthorized")
)

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// errorBody covers the shapes the backend uses for failures:
// {"message": "..."}, {"error": "..."} and {"error": {"code": "...", "message": "..."}}.
type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	if len(b.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Error, &s); err == nil {
		return s
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b.Error, &nested); err == nil {
		return nested.Message
	}
	return ""
}

// decodeError turns a non-2xx response into a RequestError carrying the
// server's message, or the generic fallback when there is none.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := ""
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		msg = body.text()
	} else if s := strings.TrimSpace(string(raw)); s != "" && !bytes.HasPrefix(raw, []byte("<")) {
		// plain-text error bodies are passed through, html error pages are not
		msg = s
	}

	return domain.ErrRequest(resp.StatusCode, msg, statusCause(resp.StatusCode))
}

func statusCause(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusGatewayTimeout:
		return ErrTimeout
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return ErrUnavailable
	default:
		return nil
	}
}

// mapError converts transport failures into RequestErrors with a sentinel cause.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.ErrRequest(0, "", errors.Join(ErrTimeout, err))
	}
	// connection refused, DNS errors, etc.
	return domain.ErrRequest(0, "", errors.Join(ErrUnavailable, err))
}

// IsUnauthorized reports whether err is a request rejected for its credential.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
