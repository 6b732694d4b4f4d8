package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogger returns a debug-level JSON logger and a function that
// decodes every record written so far.
func captureLogger(t *testing.T) (*slog.Logger, func() []map[string]any) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() []map[string]any {
		var records []map[string]any
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if line == "" {
				continue
			}
			var rec map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &rec))
			records = append(records, rec)
		}
		return records
	}
}

func TestEnrichLogger(t *testing.T) {
	assert.Nil(t, EnrichLogger(nil, "wf", "run"))

	logger, records := captureLogger(t)
	EnrichLogger(logger, "research", "run-1").Info("hello")

	recs := records()
	require.Len(t, recs, 1)
	assert.Equal(t, "research", recs[0]["workflow"])
	assert.Equal(t, "run-1", recs[0]["run_id"])
}

func TestLogHelpers(t *testing.T) {
	logger, records := captureLogger(t)
	boom := errors.New("boom")

	LogRunStart(logger, []string{"input"}, false)
	LogNodeStart(logger, "draft", "agent")
	LogNodeComplete(logger, "draft", 12.5)
	LogNodeError(logger, "review", boom)
	LogNodeSkipped(logger, "publish", "review")
	LogConditionError(logger, "review", "publish", boom)
	LogDisconnected(logger, []string{"orphan"})
	LogCheckpoint(logger, "cp", "/tmp/cp.json", 128)
	LogUnserializable(logger, "cp", []string{"callback"})
	LogUnserializable(logger, "cp", nil)
	LogCheckpointError(logger, "cp", "save", boom)
	LogRunError(logger, boom, 40, "review")
	LogRunComplete(logger, 50, 4)

	recs := records()
	require.Len(t, recs, 12, "empty unserializable list logs nothing")

	byMsg := map[string]map[string]any{}
	for _, r := range recs {
		byMsg[r["msg"].(string)] = r
	}

	assert.Equal(t, "agent", byMsg["node starting"]["node_type"])
	assert.Equal(t, "WARN", byMsg["edge condition failed, treating as false"]["level"])
	assert.Equal(t, "publish", byMsg["edge condition failed, treating as false"]["target"])
	assert.Equal(t, []any{"orphan"}, byMsg["graph has disconnected components"]["unreachable"])
	assert.Equal(t, float64(128), byMsg["checkpoint saved"]["size_bytes"])
	assert.Equal(t, "review", byMsg["workflow run failed"]["last_node"])
	assert.Equal(t, float64(4), byMsg["workflow run completed"]["iterations"])
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogRunStart(nil, nil, true)
		LogRunComplete(nil, 1, 1)
		LogRunError(nil, errors.New("x"), 1, "")
		LogNodeStart(nil, "n", "agent")
		LogNodeComplete(nil, "n", 1)
		LogNodeError(nil, "n", errors.New("x"))
		LogNodeSkipped(nil, "n", "m")
		LogConditionError(nil, "a", "b", errors.New("x"))
		LogDisconnected(nil, nil)
		LogCheckpoint(nil, "cp", "", 0)
		LogUnserializable(nil, "cp", []string{"x"})
		LogCheckpointError(nil, "cp", "save", errors.New("x"))
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), 5.0)
}
