package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"crowdfunding/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"error":   ERROR,
		"fatal":   FATAL,
		"bogus":   INFO,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFileOutputWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	prev := defaultLogger
	t.Cleanup(func() { defaultLogger = prev })

	if err := Init(config.LogConfig{Level: "warn", Output: "file", File: path}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	Info("[Test] 不应写入 %d", 1)
	Warn("[Test] 资金池对账异常 pot=%s", "charlie")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "不应写入") {
		t.Fatal("info line must be filtered at warn level")
	}
	if !strings.Contains(out, `"message":"[Test] 资金池对账异常 pot=charlie"`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}
