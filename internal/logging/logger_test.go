package logging

import (
	"bytes"
	"testing"
)

func TestComponentLoggerFormatsMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	Configure(Config{Level: "debug", Format: FormatText, Output: buf})
	t.Cleanup(func() { Configure(Config{Level: "info", Format: FormatText, Output: nil}) })

	logger := NewComponentLogger("test")
	logger.Info("hello %s", "world")

	if got := buf.String(); got == "" {
		t.Fatalf("expected log output")
	}
	if !bytes.Contains(buf.Bytes(), []byte("hello world")) {
		t.Fatalf("expected message in output, got %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Configure(Config{Level: "warn", Format: FormatText, Output: buf})
	t.Cleanup(func() { Configure(Config{Level: "info", Format: FormatText, Output: nil}) })

	logger := NewComponentLogger("test")
	logger.Debug("should not appear")
	logger.Info("should not appear either")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below configured level, got %q", buf.String())
	}
	logger.Warn("visible")
	if !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Fatalf("expected warn output")
	}
}

func TestOrNopHandlesNil(t *testing.T) {
	var l Logger
	safe := OrNop(l)
	if IsNil(safe) {
		t.Fatalf("expected OrNop to return a usable logger")
	}
	safe.Info("no panic")
}

func TestJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	Configure(Config{Level: "info", Format: FormatJSON, Output: buf})
	t.Cleanup(func() { Configure(Config{Level: "info", Format: FormatText, Output: nil}) })

	NewComponentLogger("json-test").Info("value=%d", 42)
	if !bytes.Contains(buf.Bytes(), []byte(`"component":"json-test"`)) {
		t.Fatalf("expected json-encoded component field, got %q", buf.String())
	}
}
