package command

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"absolute path", "/home/pi/pictures/selfie_20261016_101500.jpg", false},
		{"relative path", "pictures/a.jpg", false},
		{"empty", "", true},
		{"traversal", "../../etc/passwd", true},
		{"command injection", "a.jpg; rm -rf /", true},
		{"variable", "$HOME/a.jpg", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFileName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateHostName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"ipv4", "8.8.8.8", false},
		{"hostname", "dns.google", false},
		{"ipv6", "2001:4860:4860::8888", false},
		{"empty", "", true},
		{"flag", "-f", true},
		{"spaces", "8.8.8.8 -c 1000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHostName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateHostName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestExpand(t *testing.T) {
	argv := []string{"libcamera-still", "--width", "{width}", "-o", "{output}", "--x={unknown}"}
	got := Expand(argv, map[string]string{"width": "1920", "output": "/tmp/a.jpg"})
	want := []string{"libcamera-still", "--width", "1920", "-o", "/tmp/a.jpg", "--x={unknown}"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
	if argv[2] != "{width}" {
		t.Error("Expand must not modify its input")
	}
}

func TestSafeBuilder_Build(t *testing.T) {
	sb := NewSafeBuilder()
	ctx := context.Background()

	t.Run("valid command", func(t *testing.T) {
		cmd, err := sb.Build(ctx, "echo", "hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cmd.name != "echo" {
			t.Errorf("expected command name 'echo', got %q", cmd.name)
		}
		if len(cmd.args) != 1 || cmd.args[0] != "hello" {
			t.Errorf("expected args ['hello'], got %v", cmd.args)
		}
		if cmd.String() != "echo hello" {
			t.Errorf("unexpected String(): %q", cmd.String())
		}
	})

	t.Run("empty command name", func(t *testing.T) {
		_, err := sb.Build(ctx, "")
		if err == nil {
			t.Error("expected error for empty command name")
		}
	})

	t.Run("unexpanded placeholder", func(t *testing.T) {
		_, err := sb.BuildTemplate(ctx, []string{"raspistill", "-o", "{output}"}, nil)
		if err == nil || !strings.Contains(err.Error(), "{output}") {
			t.Errorf("expected placeholder error, got %v", err)
		}
	})
}

func TestSafeBuilder_Validate(t *testing.T) {
	sb := NewSafeBuilder()

	if err := sb.Validate("hostName", "8.8.8.8"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := sb.Validate("fileName", "a;b"); err == nil {
		t.Error("expected error for invalid file name")
	}
	if err := sb.Validate("unknownType", "value"); err == nil {
		t.Error("expected error for unknown validator type")
	}
}

func TestCommand_WithTimeout(t *testing.T) {
	sb := NewSafeBuilder()

	cmd, err := sb.Build(context.Background(), "sleep", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cmd = cmd.WithTimeout(time.Second)
	if cmd.timeout != time.Second {
		t.Errorf("expected timeout %v, got %v", time.Second, cmd.timeout)
	}

	cmd = cmd.WithTimeout(20 * time.Minute)
	if cmd.timeout != MaxTimeout {
		t.Errorf("expected timeout to be capped at %v, got %v", MaxTimeout, cmd.timeout)
	}
}

func TestCommandTimeout(t *testing.T) {
	sb := NewSafeBuilder()

	cmd, err := sb.Build(context.Background(), "sleep", "10")
	if err != nil {
		t.Fatal(err)
	}
	cmd = cmd.WithTimeout(100 * time.Millisecond)

	start := time.Now()
	_, err = cmd.Run()
	duration := time.Since(start)

	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error, got %v", err)
	}
	if duration > 2*time.Second {
		t.Errorf("command took too long to timeout: %v", duration)
	}
}

func TestCommandOutput(t *testing.T) {
	sb := NewSafeBuilder()
	cmd, err := sb.Build(context.Background(), "echo", "booth-wifi")
	if err != nil {
		t.Fatal(err)
	}
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(out)) != "booth-wifi" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRealExecutorEnv(t *testing.T) {
	t.Setenv("BOOTH_INHERITED", "kept")
	sb := NewSafeBuilderWithExecutor(&RealExecutor{Env: []string{"BOOTH_EXTRA=added", "BOOTH_INHERITED=overridden"}})
	cmd, err := sb.Build(context.Background(), "sh", "-c", "echo $BOOTH_EXTRA $BOOTH_INHERITED")
	if err != nil {
		t.Fatal(err)
	}
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "added overridden" {
		t.Errorf("unexpected env output %q", got)
	}
}

func TestDefaultBuilderUsesCLocale(t *testing.T) {
	cmd, err := NewSafeBuilder().Build(context.Background(), "sh", "-c", "echo $LC_ALL")
	if err != nil {
		t.Fatal(err)
	}
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "C" {
		t.Errorf("LC_ALL = %q, want C", got)
	}
}
