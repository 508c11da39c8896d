package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "level %q", tt.input)
	}
}

func TestInit_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camper.log")

	require.NoError(t, Init(Config{Level: "warn", Output: "file", File: path}))
	zlog.Info().Msg("below the configured level")
	zlog.Warn().Msg("written to the log file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to the log file")
	assert.NotContains(t, string(data), "below the configured level")
}

func TestInit_LevelFromConfig(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug", Output: "stdout"}))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	require.NoError(t, Init(Config{Level: "error", Output: "stdout"}))
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}
