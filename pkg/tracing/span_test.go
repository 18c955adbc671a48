package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-1")
	cctx, cacheSpan := StartChildSpan(ctx, "cache")
	_, evalSpan := StartChildSpan(cctx, "evaluate")
	evalSpan.SetAttr("results", 3)
	evalSpan.End()
	cacheSpan.End()
	root.End()

	if SpanFromContext(ctx) != root {
		t.Fatal("root span not stored in context")
	}
	children := root.Children()
	if len(children) != 1 || children[0].Name != "cache" {
		t.Fatalf("root children = %v", children)
	}
	nested := children[0].Children()
	if len(nested) != 1 || nested[0].TraceID != "req-1" {
		t.Fatalf("nested span = %+v", nested)
	}
}

func TestChildWithoutParent(t *testing.T) {
	ctx := context.Background()
	got, span := StartChildSpan(ctx, "evaluate")
	if span != nil || got != ctx {
		t.Fatal("expected no span outside a traced request")
	}
	span.SetAttr("k", "v")
	span.End()
	span.Log(ctx, slog.Default())
	if span.Children() != nil {
		t.Error("nil span should have no children")
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	debug := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := StartSpan(context.Background(), "search", "req-2")
	_, child := StartChildSpan(ctx, "evaluate")
	child.SetAttr("terms", 2)
	child.End()
	root.End()
	root.Log(ctx, debug)

	out := buf.String()
	if strings.Count(out, "msg=span") != 2 {
		t.Fatalf("expected two span records:\n%s", out)
	}
	if !strings.Contains(out, "span=evaluate depth=1") || !strings.Contains(out, "terms=2") {
		t.Errorf("child record missing fields:\n%s", out)
	}

	buf.Reset()
	info := slog.New(slog.NewTextHandler(&buf, nil))
	root.Log(ctx, info)
	if buf.Len() != 0 {
		t.Errorf("spans logged above debug level:\n%s", buf.String())
	}
}
