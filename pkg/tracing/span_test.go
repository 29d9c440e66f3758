package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpans_NestAndLogAsOneRecord(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-1")
	_, child := StartChildSpan(ctx, "provenance")
	child.SetAttr("documents", 3)
	child.End()
	root.End()

	require.Len(t, root.Children(), 1)
	assert.Equal(t, "req-1", child.TraceID())

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "req-1", rec["trace_id"])
	search, ok := rec["search"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, search, "ms")
	prov, ok := search["provenance"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3.0, prov["documents"])
}

func TestEnd_IsIdempotent(t *testing.T) {
	_, s := StartSpan(context.Background(), "search", "")
	s.End()
	d := s.Duration()
	time.Sleep(2 * time.Millisecond)
	s.End()
	assert.Equal(t, d, s.Duration())
}

func TestStartChildSpan_WithoutParent(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, span.TraceID())
	assert.Same(t, span, FromContext(ctx))
	assert.Empty(t, span.Children())
}
