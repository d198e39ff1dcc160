package xmetrics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartNilSafety(t *testing.T) {
	t.Run("nil observer", func(t *testing.T) {
		ctx, span := Start(context.Background(), nil, SpanOptions{})
		require.NotNil(t, ctx)
		require.NotNil(t, span)
		span.End(Result{})
	})

	t.Run("nil ctx", func(t *testing.T) {
		ctx, span := Start(nil, NoopObserver{}, SpanOptions{}) //nolint:staticcheck // 验证 nil ctx 兜底
		require.NotNil(t, ctx)
		require.NotNil(t, span)
	})

	t.Run("observer returning nil span", func(t *testing.T) {
		ctx, span := Start(context.Background(), nilSpanObserver{}, SpanOptions{})
		require.NotNil(t, ctx)
		require.NotNil(t, span)
	})
}

type nilSpanObserver struct{}

func (nilSpanObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	return ctx, nil
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Internal", KindInternal.String())
	assert.Equal(t, "Server", KindServer.String())
	assert.Equal(t, "Producer", KindProducer.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestResolveStatus(t *testing.T) {
	assert.Equal(t, StatusOK, resolveStatus(Result{}))
	assert.Equal(t, StatusError, resolveStatus(Result{Err: errors.New("boom")}))
	assert.Equal(t, StatusOK, resolveStatus(Result{Status: StatusOK, Err: errors.New("boom")}))
	assert.Equal(t, StatusError, resolveStatus(Result{Status: StatusError}))
}

func newTestObserver(t *testing.T) (Observer, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	obs, err := NewOTelObserver(
		WithTracerProvider(tp),
		WithMeterProvider(mp),
		WithInstrumentationName("xmetrics-test"),
	)
	require.NoError(t, err)
	return obs, recorder
}

func TestOTelObserverRecordsSpan(t *testing.T) {
	obs, recorder := newTestObserver(t)

	ctx, span := Start(context.Background(), obs, SpanOptions{
		Component: "xlimit",
		Operation: "check",
		Kind:      KindInternal,
		Attrs:     []Attr{String("rule", "login"), Int("cost", 1)},
	})
	require.NotNil(t, ctx)
	span.End(Result{Attrs: []Attr{Bool("allowed", true)}})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "check", spans[0].Name())
}

func TestOTelSpanEndIdempotent(t *testing.T) {
	obs, recorder := newTestObserver(t)

	_, span := Start(context.Background(), obs, SpanOptions{Operation: "check"})
	span.End(Result{})
	span.End(Result{Err: errors.New("second end ignored")})

	assert.Len(t, recorder.Ended(), 1)
}

func TestOTelObserverErrorResult(t *testing.T) {
	obs, recorder := newTestObserver(t)

	_, span := Start(context.Background(), obs, SpanOptions{Operation: "evaluate"})
	span.End(Result{Err: errors.New("store unavailable")})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events(), 1, "error should be recorded as span event")
}
