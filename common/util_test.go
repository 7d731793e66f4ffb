package common

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecToFileExtension(t *testing.T) {
	assert.Equal(t, ".avi", CodecToFileExtension("MJPG"))
	assert.Equal(t, ".mp4", CodecToFileExtension("mp4v"))
	assert.Equal(t, ".avi", CodecToFileExtension("????"))
}

func TestVideoFormatToMimeType(t *testing.T) {
	assert.Equal(t, "video/mp4", VideoFormatToMimeType("mp4"))
	assert.Equal(t, "video/x-msvideo", VideoFormatToMimeType(".AVI"))
	assert.Equal(t, "video/mp4", VideoFormatToMimeType("unknown"))
}

func TestClipFileName(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	assert.Equal(t, "output_2025-03-04_05-06-07.mp4", ClipFileName("output", ts, "mp4"))
	assert.Equal(t, "2025-03-04_05-06-07.avi", ClipFileName("", ts, ".avi"))
}

func TestDailyRotatingWriter_RotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	w := NewDailyRotatingWriter(dir, "motion")
	defer w.Close()

	day := time.Date(2025, 1, 1, 23, 59, 0, 0, time.Local)
	w.now = func() time.Time { return day }
	_, err := w.Write([]byte("first\n"))
	require.NoError(t, err)

	day = day.Add(2 * time.Minute)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(dir, "motion-2025-01-01.log"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "motion-2025-01-02.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(first))
	assert.Equal(t, "second\n", string(second))
}

func TestNewWriterLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LogLevelWarn)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}
