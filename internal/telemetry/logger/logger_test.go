package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("save committed", "tick", 42)

	out := buf.String()
	if !strings.Contains(out, `"msg":"save committed"`) {
		t.Fatalf("output missing message: %s", out)
	}
	if !strings.Contains(out, `"tick":42`) {
		t.Fatalf("output missing attribute: %s", out)
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "text", Output: &buf})

	log.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("text output = %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info("hidden")
	log.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record leaked at warn level: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn record suppressed: %s", out)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	SetLevel("debug")
	defer SetLevel("info")

	if got := GetLevel(); got != "debug" {
		t.Fatalf("GetLevel = %q, want debug", got)
	}
	log.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("debug record suppressed after SetLevel")
	}
}

func TestParseLevel_Unknown(t *testing.T) {
	if parseLevel("nonsense") != parseLevel("info") {
		t.Fatalf("unknown level should default to info")
	}
}
