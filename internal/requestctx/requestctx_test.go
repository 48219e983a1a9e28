package requestctx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestValuesRoundTrip(t *testing.T) {
	ctx := WithClientIP(WithRequestID(context.Background(), "req-1"), "10.0.0.7")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := GetClientIP(ctx); got != "10.0.0.7" {
		t.Fatalf("expected 10.0.0.7, got %q", got)
	}
	if GetRequestID(context.Background()) != "" {
		t.Fatal("expected empty request id on bare context")
	}
}

func TestLogAttrTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("ranked", LogAttr(WithRequestID(context.Background(), "req-9")))
	if !strings.Contains(buf.String(), "request.id=req-9") {
		t.Fatalf("expected request id in log line, got %q", buf.String())
	}

	buf.Reset()
	logger.Info("ranked", LogAttr(context.Background()))
	if strings.Contains(buf.String(), "request") {
		t.Fatalf("expected empty group to be dropped, got %q", buf.String())
	}
}
