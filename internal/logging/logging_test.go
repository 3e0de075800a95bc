package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown", "room_id", "r1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "r1", record["room_id"])

	buf.Reset()
	text, err := New(&buf, slog.LevelDebug, "text")
	require.NoError(t, err)
	text.Debug("plain")
	assert.Contains(t, buf.String(), "msg=plain")

	_, err = New(&buf, slog.LevelInfo, "xml")
	assert.Error(t, err)
}

func TestContextLogger(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	logger := slog.Default()
	ctx := ContextWithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))

	assert.Equal(t, context.Background(), ContextWithLogger(context.Background(), nil))
}
