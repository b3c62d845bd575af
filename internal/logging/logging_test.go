package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("capture")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("strategy selected", "strategy", "deswizzle")

	out := buf.String()
	if !strings.Contains(out, "msg=\"strategy selected\"") {
		t.Fatalf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=capture") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "strategy=deswizzle") {
		t.Fatalf("expected strategy field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("capture")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "info", &buf)
	t.Cleanup(func() { Init("text", "info", nil) })

	L("drm").Info("device opened", "device", "/dev/dri/card1")

	out := buf.String()
	if !strings.Contains(out, `"component":"drm"`) {
		t.Fatalf("expected JSON component field, got: %s", out)
	}
	if !strings.Contains(out, `"device":"/dev/dri/card1"`) {
		t.Fatalf("expected JSON device field, got: %s", out)
	}
}
