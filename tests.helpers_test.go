package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// stepClock moves forward by one millisecond at each call.
type stepClock struct {
	now time.Time
}

func (sc *stepClock) Now() time.Time {
	sc.now = sc.now.Add(time.Millisecond)
	return sc.now
}

func TestRSyncWrite_Rotation(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "logs")
	config := &Config{LogFolder: folder, LogMaxSize: 1, IsProduction: true}
	w := NewRSyncWriter(config, &stepClock{now: NewMockClocker().Now()})
	defer w.Close()

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 3; i++ {
		n, err := w.Write(chunk)
		require.NoError(t, err)
		assert.Equal(t, len(chunk), n)
	}
	require.NoError(t, w.Sync())

	files, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Len(t, files, 3)
	for _, f := range files {
		assert.True(t, strings.HasSuffix(f.Name(), ".prod.log"), f.Name())
	}

	_, err = w.Write(bytes.Repeat([]byte("x"), 2*megabyte))
	assert.Error(t, err)
}

func TestRSyncWrite_CloseWithoutWrite(t *testing.T) {
	w := NewRSyncWriter(&Config{LogFolder: t.TempDir(), LogMaxSize: 1}, NewMockClocker())
	assert.NoError(t, w.Sync())
	assert.NoError(t, w.Close())
}

func TestCreateLogFilePath(t *testing.T) {
	at := time.Date(2023, 7, 2, 13, 4, 5, 6, time.UTC)
	assert.Equal(t, filepath.Join("logs", "20230702.130405.000000006.prod.log"), CreateLogFilePath("logs", true, at))
	assert.Equal(t, filepath.Join("logs", "20230702.130405.000000006.dev.log"), CreateLogFilePath("logs", false, at))
}

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{IsProduction: true, LogLevel: zapcore.InfoLevel, GitCommit: "abc123", GitTag: "v1.0.0"}
	logger, flush := SetupLogging(config, zapcore.AddSync(&buf), NewTickClock(NewMockClocker()))

	logger.Debug("hidden")
	logger.Info("hello", zap.Int64("book.id", 7))
	require.NoError(t, flush())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"book.id":7`)
	assert.Contains(t, out, `"app.commit":"abc123"`)
	assert.Contains(t, out, `"app.tag":"v1.0.0"`)
	assert.Contains(t, out, `"ts":"2023-07-02T00:00:00.000Z"`)
}

func TestNewCommandLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCommandLogger(&buf)
	logger.Info("quiet")
	logger.Warn("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestParseBookID(t *testing.T) {
	id, err := ParseBookID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-1", "a1", "9223372036854775808"} {
		_, err := ParseBookID(raw)
		assert.ErrorIs(t, err, ErrInvalidBookID, raw)
	}
}

func TestTimestamp(t *testing.T) {
	at := time.Date(2023, 7, 2, 1, 0, 0, 500, time.FixedZone("X", 3600))
	assert.Equal(t, "2023-07-02T00:00:00.0000005Z", Timestamp(at))
}

func TestClock(t *testing.T) {
	assert.Equal(t, time.UTC, NewClock(true).Now().Location())
	assert.Equal(t, time.Local, NewClock(false).Now().Location())
}
