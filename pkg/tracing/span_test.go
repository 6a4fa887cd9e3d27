package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartBuildsTree(t *testing.T) {
	ctx, root := Start(context.Background(), "index.build")
	require.NotEmpty(t, root.TraceID)

	_, tf := Start(ctx, "index.tf")
	tf.SetAttr("documents", 3)
	tf.End()
	_, idf := Start(ctx, "index.idf")
	idf.End()
	root.End()

	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "index.tf", children[0].Name)
	assert.Equal(t, root.TraceID, children[1].TraceID)

	v, ok := children[0].Attr("documents")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestEndIsIdempotent(t *testing.T) {
	_, s := StartSpan(context.Background(), "x", "trace")
	s.End()
	d := s.Duration
	s.End()
	assert.Equal(t, d, s.Duration)
}

func TestLogWritesEverySpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := StartSpan(context.Background(), "root", "t1")
	_, child := StartChildSpan(ctx, "child")
	child.End()
	root.End()
	root.Log(logger)

	out := buf.String()
	assert.Contains(t, out, "span=root")
	assert.Contains(t, out, "span=child")
	assert.Contains(t, out, "depth=1")
}
