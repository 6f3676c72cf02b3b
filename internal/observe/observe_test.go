package observe

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestObserver_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf, "json", true)

	o.Log().Info().Str("user_id", "alice").Msg("face registered")

	out := buf.String()
	if !strings.Contains(out, "face registered") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "alice") {
		t.Errorf("expected field in output, got %q", out)
	}
}

func TestObserver_QuietSuppressesInfo(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf, "json", false)

	o.Log().Info().Msg("hidden")
	o.Log().Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be suppressed when not verbose, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn should be emitted, got %q", out)
	}
}

func TestObserver_StartSpan(t *testing.T) {
	o := Discard()
	ctx, span := o.StartSpan(context.Background(), "test")
	defer span.End()

	if ctx == nil {
		t.Fatal("expected context")
	}
}
