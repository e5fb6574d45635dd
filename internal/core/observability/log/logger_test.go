package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"", LevelInfo, false},
		{"WARN", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoggerWritesJSONFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger := NewWithOptions(Options{Level: LevelInfo, OutputPaths: []string{path}})

	logger.Named("engine").With(Entity("red")).Info("illegal move",
		Tick(7), Int("penalty", -2), Error(errors.New("blocked")))
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, `"msg":"illegal move"`)
	assert.Contains(t, out, `"entity":"red"`)
	assert.Contains(t, out, `"tick":7`)
	assert.Contains(t, out, `"logger":"engine"`)
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestSetLevel(t *testing.T) {
	logger := NewNop()
	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, logger.GetLevel())
	assert.NotNil(t, Provide())
}
