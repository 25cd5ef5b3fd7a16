package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLogger(buf *bytes.Buffer, format Format) *Logger {
	l := New(Options{Output: buf, Level: LevelInfo, Format: format})
	l.now = func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }
	return l
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, FormatJSON).With(InstitutionID("inst-1"))

	l.Debug("hidden")
	l.Info("report built", Fingerprint("abc"), Err(errors.New("boom")))

	var e Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "report built", e.Message)
	assert.Equal(t, "2025-03-10T08:00:00Z", e.Timestamp)
	assert.Equal(t, "inst-1", e.Fields["institution_id"])
	assert.Equal(t, "abc", e.Fields["fingerprint"])
	assert.Equal(t, "boom", e.Fields["error"])
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	fixedLogger(&buf, FormatText).Warn("slow", ClassID("A"), Int("n", 2))

	assert.Equal(t, "2025-03-10T08:00:00Z WARN  slow class_id=A n=2\n", buf.String())
}

func TestLogger_WithDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := fixedLogger(&buf, FormatText)
	_ = base.With(RunID("r1"))

	base.Info("plain")
	assert.NotContains(t, buf.String(), "run_id")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestContext(t *testing.T) {
	l := Nop()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
	assert.NotNil(t, FromContext(context.Background()))
}
