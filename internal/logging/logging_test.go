package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContext(t *testing.T) {
	t.Parallel()

	if got := FromContext(context.Background()); got != slog.Default() {
		t.Fatal("expected default logger without an attached one")
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	if got, ok := Lookup(ctx); !ok || got != logger {
		t.Fatal("expected attached logger")
	}

	FromContext(With(ctx, "request_id", "abc")).Info("hello")
	if !strings.Contains(buf.String(), "request_id=abc") {
		t.Fatalf("expected derived attrs in output, got %q", buf.String())
	}
}
