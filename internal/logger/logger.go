package logger

import (
	"context"
	"io"
	"os"
	"time"

	pkgctx "github.com/baechuer/real-time-ressys/services/rsvp-client/internal/pkg/context"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var Log = zerolog.Nop()

func Init() {
	InitWithWriter(os.Stderr)
}

// InitWithWriter builds the process logger from LOG_LEVEL and LOG_FORMAT.
// Output goes to stderr by default so CLI output on stdout stays clean.
func InitWithWriter(w io.Writer) {
	Configure(w, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// Configure replaces the process logger. An empty or unknown level means
// info; format is "json" or "console" (default).
func Configure(w io.Writer, logLevel, format string) {
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var l zerolog.Logger
	if format == "json" {
		l = zerolog.New(w).With().Timestamp().Logger().Level(level)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger().Level(level)
	}

	Log = l
	zlog.Logger = l
}

// Ctx returns a logger with Request-ID context if available
func Ctx(ctx context.Context) *zerolog.Logger {
	reqID := pkgctx.GetRequestID(ctx)
	if reqID != "" {
		l := Log.With().Str("request_id", reqID).Logger()
		return &l
	}
	return &Log
}
