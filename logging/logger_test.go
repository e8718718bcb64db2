package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("BOOTH_HOME", home)
	t.Setenv("BOOTH_CONFIG", "")
	Reset()
	t.Cleanup(Reset)
	return home
}

func TestNewLogger(t *testing.T) {
	isolate(t)
	logger := NewLogger("test-component")
	if logger == nil {
		t.Fatal("Expected logger to be created")
	}

	if logger.Data["component"] != "test-component" {
		t.Errorf("Expected component to be 'test-component', got %v", logger.Data["component"])
	}

	if again := NewLogger("test-component"); again != logger {
		t.Error("Expected the cached logger to be returned")
	}
}

func TestNewLoggerWritesDefaultFile(t *testing.T) {
	isolate(t)
	t.Setenv("BOOTH_LOG_LEVEL", "info")

	NewLogger("file-test").Info("hello file")

	data, err := os.ReadFile(LogFilePath("file-test", time.Now()))
	if err != nil {
		t.Fatalf("Expected default log file to exist: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("Expected log file to contain message, got: %s", data)
	}
}

func TestLogFilePath(t *testing.T) {
	home := isolate(t)
	day := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	got := LogFilePath("boothd", day)
	if !strings.HasPrefix(got, home) {
		t.Errorf("Expected path under %s, got %s", home, got)
	}
	if filepath.Base(got) != "boothd-2026-10-16.log" {
		t.Errorf("Unexpected file name %s", filepath.Base(got))
	}
}

func TestJSONFileSink(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "json.log")

	entry := build("json-test", Config{
		Level:  "info",
		File:   FileSinkConfig{Path: path, Format: "json"},
		Format: FormatConfig{StructuredToStderr: "never"},
	})
	entry.WithField("session_id", "abc").Info("captured")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &line); err != nil {
		t.Fatalf("Expected a JSON line, got %q: %v", data, err)
	}
	if line["msg"] != "captured" || line["session_id"] != "abc" || line["component"] != "json-test" {
		t.Errorf("Unexpected JSON fields: %v", line)
	}
}

func TestDisabledFileSink(t *testing.T) {
	isolate(t)
	entry := build("quiet", Config{
		File:   FileSinkConfig{Disabled: true},
		Format: FormatConfig{StructuredToStderr: "never"},
	})
	entry.Info("nothing")

	if _, err := os.Stat(LogFilePath("quiet", time.Now())); !os.IsNotExist(err) {
		t.Errorf("Expected no log file, got err=%v", err)
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "test")
	entry.Info("Test message")

	output := buf.String()

	if !strings.Contains(output, "[INFO]") {
		t.Errorf("Expected output to contain [INFO], got: %s", output)
	}
	if !strings.Contains(output, "[test]") {
		t.Errorf("Expected output to contain [test], got: %s", output)
	}
	if !strings.Contains(output, "Test message") {
		t.Errorf("Expected output to contain 'Test message', got: %s", output)
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "test message",
				Data: logrus.Fields{
					"component": "test-component",
					"key1":      "value1",
				},
			},
			want: []string{"[INFO]", "[test-component]", "test message", "key1=value1"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "warning message",
				Data: logrus.Fields{
					"component": "test-component",
				},
			},
			want:    []string{"[WARN]", "warning message"},
			notWant: []string{"[test-component]"},
		},
		{
			name:   "fields are sorted",
			config: FormatConfig{DisableTimestamp: true},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "upload",
				Data: logrus.Fields{
					"component":  "coordinator",
					"session_id": "s1",
					"path":       "/pics/a.jpg",
				},
			},
			want: []string{"upload path=/pics/a.jpg session_id=s1"},
		},
		{
			name:   "caller information with function name",
			config: FormatConfig{},
			entry: func() *logrus.Entry {
				logger := logrus.New()
				logger.SetReportCaller(true)
				return &logrus.Entry{
					Logger:  logger,
					Level:   logrus.InfoLevel,
					Message: "test message with caller",
					Data: logrus.Fields{
						"component": "test-component",
					},
					Caller: &runtime.Frame{
						File:     "/path/to/file.go",
						Line:     42,
						Function: "github.com/example/package.TestFunction",
					},
				}
			}(),
			want: []string{"[INFO]", "[test-component]", "test message with caller", "[file.go:42 package.TestFunction]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{Config: tt.config}
			tt.entry.Time = tt.entry.Time.UTC()

			output, err := formatter.Format(tt.entry)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			outputStr := string(output)

			for _, want := range tt.want {
				if !strings.Contains(outputStr, want) {
					t.Errorf("Expected output to contain '%s', got: %s", want, outputStr)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(outputStr, notWant) {
					t.Errorf("Expected output NOT to contain '%s', got: %s", notWant, outputStr)
				}
			}
		})
	}
}

func TestEnvironmentVariables(t *testing.T) {
	isolate(t)
	t.Setenv("BOOTH_LOG_LEVEL", "debug")
	t.Setenv("BOOTH_LOG_CALLER", "true")

	logger := NewLogger("env-test")

	if logger.Logger.Level != logrus.DebugLevel {
		t.Errorf("Expected debug level from env var, got %v", logger.Logger.Level)
	}
	if !logger.Logger.ReportCaller {
		t.Error("Expected caller reporting to be enabled from env var")
	}
}

func TestLoggingSectionFromConfigFile(t *testing.T) {
	isolate(t)
	t.Setenv("BOOTH_LOG_LEVEL", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "booth.yml")
	content := "logging:\n  level: warn\n  format:\n    preset: json\n    structured_to_stderr: never\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOOTH_CONFIG", path)

	logger := NewLogger("configured")
	if logger.Logger.Level != logrus.WarnLevel {
		t.Errorf("Expected warn level from config, got %v", logger.Logger.Level)
	}
	if _, ok := logger.Logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("Expected JSON formatter, got %T", logger.Logger.Formatter)
	}
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	if err != nil {
		t.Fatalf("GenerateSchema() error = %v", err)
	}
	var doc struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	for _, key := range []string{"level", "report_caller", "file", "format"} {
		if _, ok := doc.Properties[key]; !ok {
			t.Errorf("schema missing property %q", key)
		}
	}
	if len(doc.Required) != 0 {
		t.Errorf("expected no required fields, got %v", doc.Required)
	}
}
