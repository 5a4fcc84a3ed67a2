package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerUnknownFormat(t *testing.T) {
	if err := Init(WithFormat("xml")); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat("json"), WithOutput(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Named("ledger").Info(context.Background(), "demand updated", String("opportunity_id", "o1"), Float64("d", 1.5))

	out := buf.String()
	if !strings.HasPrefix(out, "{") {
		t.Fatalf("expected json output, got %q", out)
	}
	for _, want := range []string{`"msg":"demand updated"`, `"ledger":{`, `"opportunity_id":"o1"`, `"source":`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q is missing %s", out, want)
		}
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithOutput(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	ctx := context.Background()

	Get().Debug(ctx, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info level, got %q", buf.String())
	}

	if err := SetLevelString("debug"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Get().Debug(ctx, "visible", Error(errors.New("boom")))
	if !strings.Contains(buf.String(), "visible") || !strings.Contains(buf.String(), "boom") {
		t.Fatalf("debug line missing, got %q", buf.String())
	}

	if err := SetLevelString("verbose"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error(context.Background(), "dropped", Int("n", 1), Any("v", []int{1}))
	if l.Named("x") == nil {
		t.Fatal("named nop logger is nil")
	}
}
