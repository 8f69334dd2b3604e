package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestInitWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, false, "json")

	Info("fetched topic", "topic", "union")

	out := buf.String()
	if !strings.HasPrefix(out, "{") {
		t.Fatalf("expected JSON output, got %q", out)
	}
	if !strings.Contains(out, `"topic":"union"`) {
		t.Errorf("missing attribute in %q", out)
	}
}

func TestInitWriterLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, false, "text")
	Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug message written at info level: %q", buf.String())
	}

	buf.Reset()
	InitWriter(&buf, true, "text")
	Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug message missing at debug level: %q", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, false, "text")

	With("aggregator").Warn("variant failed")
	if !strings.Contains(buf.String(), "component=aggregator") {
		t.Errorf("component attribute missing: %q", buf.String())
	}
}
