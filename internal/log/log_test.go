package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestFieldsToSliceIsOrdered(t *testing.T) {
	got := NewFields().
		WithUser("alice").
		WithOperation(OpCreate).
		WithError(errors.New("boom"), "internal_error").
		ToSlice()

	want := []any{
		FieldError, "boom",
		FieldErrorCode, "internal_error",
		FieldOperation, OpCreate,
		FieldUserID, "alice",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("at %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestFieldsSkipEmpty(t *testing.T) {
	f := NewFields().WithUser("").WithRequestID("").WithError(nil, "")
	if len(f) != 0 {
		t.Fatalf("expected no fields, got %v", f)
	}
	f = NewFields().WithHTTPRequest("GET", "/x", "", "")
	if _, ok := f[FieldQuery]; ok {
		t.Fatal("empty query should be omitted")
	}
}

func TestNewTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentApp, Output: &buf})
	l.Debug("hello")
	if !strings.Contains(buf.String(), "component=app") {
		t.Fatalf("unexpected line: %q", buf.String())
	}

	buf.Reset()
	sub := l.WithComponent(ComponentHTTP)
	sub.Info("hello")
	if sub.Component() != ComponentHTTP || !strings.Contains(buf.String(), "component=http") {
		t.Fatalf("unexpected line: %q", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentHTTP, Output: &buf}).With(FieldRequestID, "req_1")

	seen := FromContext(NewContext(context.Background(), l))
	seen.Info("inside")

	if seen.Component() != ComponentHTTP {
		t.Fatalf("unexpected component: %q", seen.Component())
	}
	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("request id missing: %q", buf.String())
	}
}

func TestFromContextDefault(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected default logger: %+v", l)
	}
}
