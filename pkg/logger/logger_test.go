package logger

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level    string
		enabled  zapcore.Level
		disabled zapcore.Level
	}{
		{"debug", zap.DebugLevel, zap.DebugLevel - 1},
		{"info", zap.InfoLevel, zap.DebugLevel},
		{"", zap.InfoLevel, zap.DebugLevel},
		{"warn", zap.WarnLevel, zap.InfoLevel},
		{"error", zap.ErrorLevel, zap.WarnLevel},
	}

	for _, test := range tests {
		log, err := New(test.level)
		require.NoError(t, err)

		assert.True(t, log.Core().Enabled(test.enabled), "level %q should enable %v", test.level, test.enabled)
		assert.False(t, log.Core().Enabled(test.disabled), "level %q should not enable %v", test.level, test.disabled)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("verbose")

	assert.True(t, errors.Is(err, werr.ErrConfig))
}
