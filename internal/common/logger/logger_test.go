package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garaad/community/internal/common/constants"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "community", "warning")

	log.Info("hidden")
	log.Warnf("visible %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARNING] [community]")
	assert.Contains(t, out, "visible 1")
	assert.Equal(t, WARNING, log.Level())
}

func TestLogger_FieldsAndTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "community", "debug")
	ctx := context.WithValue(context.Background(), constants.TraceIDKey, "trace-1")

	log.WithFields(ctx, Fields{"user_id": "42", "action": "ws_connected"}).Info("connected")

	assert.Contains(t, buf.String(), "[trace_id=trace-1 action=ws_connected user_id=42]")
}

func TestLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, INFO, parseLevel("verbose"))
	assert.Equal(t, WARNING, parseLevel(" warn "))
}

func TestNew_WritesRotatedFile(t *testing.T) {
	dir := t.TempDir()

	log, err := New(dir, "community", "info")
	require.NoError(t, err)
	log.Info("to file")

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestEntry_WithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "", "info")

	base := log.WithFields(context.Background(), Fields{"conn_id": "c1"})
	base.With("reason", "slow_consumer").Warn("closed")
	base.Info("still open")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "[conn_id=c1 reason=slow_consumer]")
	assert.Contains(t, string(lines[1]), "[conn_id=c1]")
	assert.NotContains(t, string(lines[1]), "reason")
}

func TestLogger_ReportsCallerFile(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "", "debug")

	log.Debugf("n=%d", 3)
	log.WithFields(context.TODO(), nil).Error("boom")

	out := buf.String()
	assert.Contains(t, out, "[DEBUG] logger_test.go:")
	assert.Contains(t, out, "[ERROR] logger_test.go:")
}
