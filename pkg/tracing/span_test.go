package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := Start(context.Background(), "search", "req-1")
	childCtx, match := Start(ctx, "match", "ignored")
	match.SetAttr("ranked", 3)
	match.End()
	_, filter := Start(ctx, "filter", "")
	filter.End()
	root.End()

	assert.Same(t, match, FromContext(childCtx))
	assert.Equal(t, "req-1", match.TraceID)
	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "filter", children[1].Name)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	root.Log(context.Background(), logger)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "span=search")
	assert.Contains(t, lines[1], "span=match")
	assert.Contains(t, lines[1], "ranked=3")
	assert.Contains(t, lines[1], "depth=1")
}

func TestLogSkippedAboveDebug(t *testing.T) {
	_, root := Start(context.Background(), "search", "req-1")
	root.End()
	var buf bytes.Buffer
	root.Log(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))
	assert.Empty(t, buf.String())
}

func TestNilSpanSafe(t *testing.T) {
	var s *Span
	s.End()
	s.SetAttr("k", 1)
	s.Log(context.Background(), slog.Default())
	assert.Nil(t, FromContext(context.Background()))

	ctx, child := Child(context.Background(), "match")
	assert.Nil(t, child)
	assert.Nil(t, FromContext(ctx))
}
