package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_Stdout(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := InitTracing(TracingConfig{
		ServiceName:  "penfeed-test",
		Environment:  "test",
		Enabled:      true,
		Exporter:     "stdout",
		SamplerRatio: 1,
		Attributes:   []attribute.KeyValue{attribute.Int("penfeed.page_size", 10)},
		Writer:       &out,
	})
	require.NoError(t, err)

	ctx, span := StartFeedSpan(context.Background(), "index", 2)
	assert.True(t, span.SpanContext().IsValid())
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "feed.index")
	assert.Contains(t, out.String(), "penfeed.page_size")
	assert.Contains(t, out.String(), "boom")
}

func TestInitTracing_BadExporter(t *testing.T) {
	_, err := InitTracing(TracingConfig{Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, `unknown exporter "zipkin"`)

	_, err = InitTracing(TracingConfig{Enabled: true, Exporter: "otlp"})
	assert.ErrorContains(t, err, "OTLP_ENDPOINT")
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "root:AlwaysOnSampler")
	assert.Contains(t, samplerFor(5).Description(), "root:AlwaysOnSampler")
	assert.Contains(t, samplerFor(0).Description(), "root:AlwaysOffSampler")
	assert.Contains(t, samplerFor(-1).Description(), "root:AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "root:TraceIDRatioBased{0.25}")
}

func TestFeedSpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := Tracer
	Tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")
	t.Cleanup(func() { Tracer = previous })

	before := testutil.ToFloat64(FeedCacheRequests.WithLabelValues("group", "miss"))

	_, span := StartFeedSpan(context.Background(), "group", 3, AttrGroup.String("birds"))
	RecordCacheOutcome(span, "group", "miss")
	EndSpan(span, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "feed.group", spans[0].Name())

	got := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		got[kv.Key] = kv.Value
	}
	assert.Equal(t, "group", got[AttrFeed].AsString())
	assert.Equal(t, int64(3), got[AttrPage].AsInt64())
	assert.Equal(t, "birds", got[AttrGroup].AsString())
	assert.Equal(t, "miss", got[AttrCache].AsString())
	assert.Equal(t, before+1, testutil.ToFloat64(FeedCacheRequests.WithLabelValues("group", "miss")))
}

func TestDatabaseMetrics_TrackQuery(t *testing.T) {
	m := NewDatabaseMetrics("posts_test")

	done := m.TrackQuery("list")
	done()

	assert.GreaterOrEqual(t, testutil.CollectAndCount(DatabaseQueryLatency), 1)
}

func TestFeedCacheRequestsCounter(t *testing.T) {
	before := testutil.ToFloat64(FeedCacheRequests.WithLabelValues("index_test", "hit"))
	FeedCacheRequests.WithLabelValues("index_test", "hit").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FeedCacheRequests.WithLabelValues("index_test", "hit")))
}
