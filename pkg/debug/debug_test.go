package debug

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "transport", map[string]bool{"transport": true}},
		{"multiple", "transport,headers", map[string]bool{"transport": true, "headers": true}},
		{"all", "all", map[string]bool{"all": true}},
		{"with spaces", " transport , headers ", map[string]bool{"transport": true, "headers": true}},
		{"uppercase normalized", "TRANSPORT,Headers", map[string]bool{"transport": true, "headers": true}},
		{"empty segments", "transport,,headers", map[string]bool{"transport": true, "headers": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %v, want %v", k, got[k], v)
				}
			}
			if len(got) != len(tt.want) {
				t.Errorf("len(got) = %d, want %d", len(got), len(tt.want))
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	// Save and restore.
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("transport,headers")

	if !Enabled("transport") {
		t.Error("transport should be enabled")
	}
	if !Enabled("headers") {
		t.Error("headers should be enabled")
	}
	if Enabled("proxy") {
		t.Error("proxy should not be enabled")
	}
	if Enabled("all") {
		t.Error("all should not be enabled (not in categories)")
	}
}

func TestEnabled_All(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("all")

	if !Enabled("transport") {
		t.Error("transport should be enabled via 'all'")
	}
	if !Enabled("headers") {
		t.Error("headers should be enabled via 'all'")
	}
	if !Enabled("anything") {
		t.Error("anything should be enabled via 'all'")
	}
}

func TestEnabled_Empty(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("")

	if Enabled("transport") {
		t.Error("nothing should be enabled when no categories set")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q, want %q", got, "short")
	}
	if got := Truncate("this is a long string", 10); got != "this is a ..." {
		t.Errorf("Truncate long = %q, want %q", got, "this is a ...")
	}
}

func TestLog_DisabledCategory(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("")

	// Should not panic or produce output.
	Log("transport", "test message", "key", "value")
	Trace("transport", "trace message", "key", "value")
}

func TestNewHandlerFormats(t *testing.T) {
	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{FormatJSON, func(t *testing.T, out string) {
			var m map[string]any
			if err := json.Unmarshal([]byte(out), &m); err != nil {
				t.Fatalf("json output not decodable: %v: %q", err, out)
			}
			if m["msg"] != "hello" || m["k"] != "v" {
				t.Errorf("json output = %v", m)
			}
		}},
		{FormatText, func(t *testing.T, out string) {
			if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "k=v") {
				t.Errorf("text output = %q", out)
			}
		}},
		{FormatPretty, func(t *testing.T, out string) {
			if !strings.Contains(out, "hello") || !strings.Contains(out, "INF") {
				t.Errorf("pretty output = %q", out)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(NewHandler(&buf, tt.format, slog.LevelInfo))
			logger.Info("hello", "k", "v")
			tt.check(t, strings.TrimSpace(buf.String()))
		})
	}
}

func TestNewHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, FormatText, slog.LevelWarn))
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info message written at warn level: %q", buf.String())
	}

	buf.Reset()
	logger = slog.New(NewHandler(&buf, FormatText, LevelTrace))
	logger.Log(context.Background(), LevelTrace, "kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("trace message missing at trace level: %q", buf.String())
	}
}
