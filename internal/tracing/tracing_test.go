package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans routes the global provider into an in-memory recorder for
// the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), Config{ServiceName: "rsvp-client"})
	require.NoError(t, err)
	require.NotNil(t, tp.Tracer())

	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewResource_Environment(t *testing.T) {
	res, err := newResource(Config{ServiceName: "rsvp-client", ServiceVersion: "1.2.0", Environment: "staging"})
	require.NoError(t, err)

	env, ok := res.Set().Value(attrDeployment)
	require.True(t, ok)
	assert.Equal(t, "staging", env.AsString())
}

func TestStartSpan_NoopProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "events.FetchAll")
	defer span.End()

	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsSampled())
}

func TestStartSpan_TagsOperationAndEvent(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartSpan(context.Background(), "events.MarkAttendance", EventID("7"), AttrIncrement.Bool(true))
	Finish(span, nil)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	got := attrs(spans[0])
	assert.Equal(t, "events.MarkAttendance", got[AttrOperation].AsString())
	assert.Equal(t, "7", got[AttrEventID].AsString())
	assert.True(t, got[AttrIncrement].AsBool())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestFinish_RecordsDomainKind(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartSpan(context.Background(), "events.Delete", EventID("1"))
	Finish(span, domain.ErrPermission(domain.ActionDelete))

	_, plain := StartSpan(context.Background(), "session.Login")
	Finish(plain, errors.New("boom"))

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "Only administrators can delete events.", spans[0].Status().Description)
	assert.Equal(t, "permission", attrs(spans[0])[AttrErrorKind].AsString())
	assert.Len(t, spans[0].Events(), 1, "the error is recorded as a span event")

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	_, tagged := attrs(spans[1])[AttrErrorKind]
	assert.False(t, tagged)
}
