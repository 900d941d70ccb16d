package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func resetLogger(t *testing.T) *bytes.Buffer {
	t.Helper()

	buf := &bytes.Buffer{}
	InitWithWriter(buf, "DEBUG", "text", false)

	t.Cleanup(func() {
		InitWithWriter(&bytes.Buffer{}, "INFO", "text", false)
	})

	return buf
}

func TestStructuredFields(t *testing.T) {
	buf := resetLogger(t)

	Info("switch applied", KeyFsUID, uint32(1000), KeyFsGID, uint32(1000))

	out := buf.String()
	if !strings.Contains(out, "switch applied") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "fsuid=1000") {
		t.Errorf("expected fsuid field in output, got %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := resetLogger(t)
	SetLevel("WARN")

	Debug("should not appear")
	Info("should not appear either")
	Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("expected debug/info suppressed, got %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("expected warn message, got %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	buf := resetLogger(t)
	SetFormat("json")

	Info("hello", KeyShare, "/export")

	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
	if !strings.Contains(out, `"share":"/export"`) {
		t.Errorf("expected share field in JSON output, got %q", out)
	}
}

func TestContextFields(t *testing.T) {
	buf := resetLogger(t)

	lc := NewLogContext("10.0.0.7")
	lc = lc.WithProcedure("WRITE").WithShare("/export").WithPrincipal("alice", 1000, 1000)
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "operation complete")

	out := buf.String()
	for _, want := range []string{"procedure=WRITE", "share=/export", "client_ip=10.0.0.7", "username=alice", "uid=1000"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got %q", want, out)
		}
	}
}

func TestContextFieldsAbsent(t *testing.T) {
	buf := resetLogger(t)

	InfoCtx(context.Background(), "no context")

	out := buf.String()
	if !strings.Contains(out, "no context") {
		t.Errorf("expected message in output, got %q", out)
	}
	if strings.Contains(out, "client_ip") {
		t.Errorf("expected no context fields, got %q", out)
	}
}

func TestInvalidLevelIgnored(t *testing.T) {
	buf := resetLogger(t)
	SetLevel("VERBOSE") // not a level; should keep DEBUG

	Debug("still debugging")

	if !strings.Contains(buf.String(), "still debugging") {
		t.Errorf("expected invalid level to be ignored, got %q", buf.String())
	}
}
