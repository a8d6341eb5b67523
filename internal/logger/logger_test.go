package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestLevelString(t *testing.T) {
	names := map[Level]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
		Level(42):  "UNKNOWN",
	}
	for level, want := range names {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", int(level), got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// emitAll は全レベルで1行ずつ出力する
func emitAll(l *Logger, scope string) {
	l.Debug(scope, "d")
	l.Info(scope, "i")
	l.Warn(scope, "w")
	l.Error(scope, "e")
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		min  Level
		want []string
	}{
		{LevelDebug, []string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]"}},
		{LevelInfo, []string{"[INFO]", "[WARN]", "[ERROR]"}},
		{LevelWarn, []string{"[WARN]", "[ERROR]"}},
		{LevelError, []string{"[ERROR]"}},
	}

	for _, tt := range tests {
		t.Run(tt.min.String(), func(t *testing.T) {
			buf := &bytes.Buffer{}
			emitAll(New(buf, tt.min), "")

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if len(lines) != len(tt.want) {
				t.Fatalf("expected %d lines, got %d: %q", len(tt.want), len(lines), buf.String())
			}
			for i, want := range tt.want {
				if !strings.Contains(lines[i], want) {
					t.Errorf("line %d = %q, want %s", i, lines[i], want)
				}
			}
		})
	}
}

func TestSetLevelAtRuntime(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, LevelError)

	l.Warn("", "hidden")
	l.SetLevel(LevelDebug)
	l.Debug("", "visible")
	l.SetLevel(LevelError)
	l.Info("", "hidden again")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("filtered messages leaked: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("expected debug message after lowering level, got: %s", out)
	}
}

func TestScopeFormatting(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, LevelInfo)

	l.Info("planning", "created %d entries for %s", 3, "term-1")
	l.Info("", "run-wide")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "[planning] created 3 entries for term-1") {
		t.Errorf("unexpected scoped line: %q", lines[0])
	}
	if strings.Contains(lines[1], "[]") {
		t.Errorf("empty scope should not render brackets: %q", lines[1])
	}
	if !strings.HasSuffix(lines[1], "run-wide") {
		t.Errorf("unexpected unscoped line: %q", lines[1])
	}
}

func TestZapSharesCoreAndLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, LevelWarn)

	z := l.Zap()
	z.Info("dropped")
	z.Named("http").Warn("slow response", zap.Int("status", 503))

	if err := l.Sync(); err != nil {
		t.Errorf("Sync() returned %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("zap logger should honour the wrapper level: %s", out)
	}
	for _, want := range []string{"[WARN]", "[http]", "slow response", `"status": 503`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output, got: %s", want, out)
		}
	}
}

func TestConcurrentWrites(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, LevelInfo)

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				l.Info("vu", "writer %d line %d", id, j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != writers*perWriter {
		t.Errorf("expected %d lines, got %d", writers*perWriter, len(lines))
	}
}
