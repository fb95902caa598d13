package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		override string
		want     zapcore.Level
		wantErr  bool
	}{
		{name: "default", want: zapcore.InfoLevel},
		{name: "configured", cfg: Config{Level: "warn"}, want: zapcore.WarnLevel},
		{name: "override wins", cfg: Config{Level: "error"}, override: "debug", want: zapcore.DebugLevel},
		{name: "console", cfg: Config{Format: "console", Level: "warning"}, want: zapcore.WarnLevel},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg, tt.override)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !logger.Core().Enabled(tt.want) {
				t.Errorf("expected level %s to be enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
				t.Errorf("expected level %s to be disabled", tt.want-1)
			}
		})
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "circle.log")

	logger, err := New(Config{OutputFile: path}, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("resolved", zap.String("op", "logging.TestNewWritesToFile"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"op":"logging.TestNewWritesToFile"`) {
		t.Fatalf("expected json log line with op field, got %s", data)
	}
}
