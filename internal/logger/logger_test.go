package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivaspavlo/staff-management-system/internal/config"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "log_2024-03-09.log", FileName(time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)))
}

func TestNew_WritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	log, closeFn, err := New(config.LogConfig{Level: "info", Dir: dir})
	require.NoError(t, err)

	log.Info("hello")
	closeFn()

	data, err := os.ReadFile(filepath.Join(dir, FileName(time.Now())))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
