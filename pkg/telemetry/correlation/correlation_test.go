package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "01HZZZ")
	ctx, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "01HZZZ", cid)
	assert.Equal(t, "01HZZZ", ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDGenerates(t *testing.T) {
	_, cid := EnsureCorrelationID(context.Background())
	assert.Len(t, cid, 26)
}

func TestRemoteSpanRoundTrip(t *testing.T) {
	ctx := ContextWithRemoteSpan(context.Background(), "4bf92f3577b34da6a3ce929d0e0e4736", "00f067aa0ba902b7")
	assert.True(t, trace.SpanContextFromContext(ctx).IsRemote())

	meta := TraceMetadata(ctx)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", meta["trace_id"])
	assert.Nil(t, TraceMetadata(context.Background()))
}
