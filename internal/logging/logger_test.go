package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		wantLvl  slog.Level
		logFunc  func(*slog.Logger)
		shouldLog bool
	}{
		{
			name:      "debug level logs debug",
			level:     "debug",
			wantLvl:   slog.LevelDebug,
			logFunc:   func(l *slog.Logger) { l.Debug("test message") },
			shouldLog: true,
		},
		{
			name:      "info level skips debug",
			level:     "info",
			wantLvl:   slog.LevelInfo,
			logFunc:   func(l *slog.Logger) { l.Debug("test message") },
			shouldLog: false,
		},
		{
			name:      "info level logs info",
			level:     "info",
			wantLvl:   slog.LevelInfo,
			logFunc:   func(l *slog.Logger) { l.Info("test message") },
			shouldLog: true,
		},
		{
			name:      "warn level logs warnings",
			level:     "warn",
			wantLvl:   slog.LevelWarn,
			logFunc:   func(l *slog.Logger) { l.Warn("test message") },
			shouldLog: true,
		},
		{
			name:      "error level logs errors",
			level:     "error",
			wantLvl:   slog.LevelError,
			logFunc:   func(l *slog.Logger) { l.Error("test message") },
			shouldLog: true,
		},
		{
			name:      "invalid level defaults to info",
			level:     "invalid",
			wantLvl:   slog.LevelInfo,
			logFunc:   func(l *slog.Logger) { l.Info("test message") },
			shouldLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.level)
			tt.logFunc(logger)

			output := buf.String()
			if tt.shouldLog && output == "" {
				t.Error("expected log output, got none")
			}
			if !tt.shouldLog && output != "" {
				t.Errorf("expected no log output, got: %s", output)
			}
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name          string
		key           string
		value         string
		shouldRedact  bool
	}{
		{
			name:         "redact API_TOKEN",
			key:          "API_TOKEN",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact api_token (lowercase)",
			key:          "api_token",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact DB_SECRET",
			key:          "DB_SECRET",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact PASSWORD",
			key:          "PASSWORD",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact USER_PASSWORD",
			key:          "USER_PASSWORD",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact password_hash",
			key:          "password_hash",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "don't redact normal field",
			key:          "user_id",
			value:        "12345",
			shouldRedact: false,
		},
		{
			name:         "don't redact job_id",
			key:          "job_id",
			value:        "job-123",
			shouldRedact: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, "info")

			logger.Info("test", tt.key, tt.value)

			output := buf.String()
			if output == "" {
				t.Fatal("expected log output")
			}

			// Parse JSON output
			var logEntry map[string]any
			if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
				t.Fatalf("failed to parse log output: %v", err)
			}

			actualValue, ok := logEntry[tt.key]
			if !ok {
				t.Fatalf("expected field %s in log output", tt.key)
			}

			if tt.shouldRedact {
				if actualValue != "***REDACTED***" {
					t.Errorf("expected redacted value, got: %v", actualValue)
				}
			} else {
				if actualValue != tt.value {
					t.Errorf("expected value %s, got: %v", tt.value, actualValue)
				}
			}
		})
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.Info("test message", "key1", "value1", "key2", 42)

	output := buf.String()
	if output == "" {
		t.Fatal("expected log output")
	}

	// Parse JSON to verify it's valid
	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	// Check standard slog fields
	if _, ok := logEntry["time"]; !ok {
		t.Error("expected 'time' field in JSON output")
	}
	if _, ok := logEntry["level"]; !ok {
		t.Error("expected 'level' field in JSON output")
	}
	if _, ok := logEntry["msg"]; !ok {
		t.Error("expected 'msg' field in JSON output")
	}

	// Check custom fields
	if logEntry["key1"] != "value1" {
		t.Errorf("expected key1=value1, got %v", logEntry["key1"])
	}
	if logEntry["key2"] != float64(42) {
		t.Errorf("expected key2=42, got %v", logEntry["key2"])
	}
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   string
		output  string
		wantErr bool
	}{
		{name: "json to stderr", format: "json", level: "info", output: "stderr"},
		{name: "text to stdout", format: "text", level: "debug", output: "stdout"},
		{name: "defaults", format: "", level: "", output: ""},
		{name: "discard", format: "json", level: "warn", output: "discard"},
		{name: "unwritable file", format: "json", level: "info", output: "/nonexistent-dir/log.txt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewFromConfig(tt.format, tt.level, tt.output)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewFromConfig() should have failed")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFromConfig() error: %v", err)
			}
			if logger == nil {
				t.Fatal("NewFromConfig() returned nil logger")
			}
		})
	}
}

func TestNewFromConfig_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "litani.log")

	logger, err := NewFromConfig("text", "info", path)
	if err != nil {
		t.Fatalf("NewFromConfig() error: %v", err)
	}
	logger.Info("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file contents = %q, want the logged message", data)
	}
}
