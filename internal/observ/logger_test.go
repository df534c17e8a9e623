package observ

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zapcore.Level
	}{
		{"production", "debug", zapcore.DebugLevel},
		{"production", "warn", zapcore.WarnLevel},
		{"development", "info", zapcore.InfoLevel},
		{"development", "not-a-level", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			logger, err := NewLogger(tt.env, tt.level)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !logger.Core().Enabled(tt.want) {
				t.Errorf("level %s should be enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
				t.Errorf("level %s should be disabled", tt.want-1)
			}
		})
	}
}
