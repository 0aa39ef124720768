package obj

import (
	"strings"
	"testing"

	"pdfemit/sink"
)

func TestFrameEnvelope(t *testing.T) {
	buf := sink.New()
	buf.PutBytes([]byte("%PDF-1.4\n"))

	f := NewFrame(ObjectRef{Num: 7}, &Settings{}, Integer(99))
	off, err := f.Output(buf)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	if off != 9 {
		t.Fatalf("start offset = %d, want 9", off)
	}
	got := string(buf.Output())
	if !strings.HasSuffix(got, "7 0 obj\n99\nendobj\n") {
		t.Fatalf("envelope = %q", got)
	}
}

func TestFrameReference(t *testing.T) {
	f := NewFrame(ObjectRef{Num: 4, Gen: 2}, &Settings{}, Null)
	if f.Reference().Ref() != (ObjectRef{Num: 4, Gen: 2}) {
		t.Fatalf("reference identity mismatch")
	}
}

func TestFrameVerbosePlaceholder(t *testing.T) {
	buf := sink.New()
	f := NewFrame(ObjectRef{Num: 1}, &Settings{Verbose: true}, Integer(5))
	f.AddDebug("payload is a number")
	off, err := f.Output(buf)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	// The placeholder block precedes the object, so the recorded start
	// offset skips it.
	if off != defaultDebugReserve+debugSlack {
		t.Fatalf("start offset = %d, want %d", off, defaultDebugReserve+debugSlack)
	}
	out := buf.Output()
	if out[0] != '%' {
		t.Fatalf("placeholder must stay a comment, first byte %q", out[0])
	}
	head := string(out[:off])
	if !strings.Contains(head, "payload is a number") {
		t.Fatalf("queued diagnostics were not flushed into the placeholder: %q", head)
	}
	if !strings.Contains(head, "1 0 obj:") {
		t.Fatalf("timing line missing from placeholder: %q", head)
	}
	if !strings.Contains(string(out[off:]), "1 0 obj\n5\nendobj\n") {
		t.Fatalf("object body corrupted: %q", out[off:])
	}
}

func TestFrameVerboseOverflowTruncated(t *testing.T) {
	buf := sink.New()
	f := NewFrame(ObjectRef{Num: 1}, &Settings{Verbose: true}, Null)
	f.DebugReserve = 16
	f.AddDebug(strings.Repeat("x", 200))
	off, err := f.Output(buf)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	if off != 16+debugSlack {
		t.Fatalf("reserve override ignored, offset = %d", off)
	}
	if got := string(buf.Output()[off:]); !strings.HasPrefix(got, "1 0 obj\n") {
		t.Fatalf("overflowing diagnostics leaked into the object: %q", got)
	}
}

func TestFrameDebugReserveDisabled(t *testing.T) {
	buf := sink.New()
	f := NewFrame(ObjectRef{Num: 2}, &Settings{Verbose: true}, Null)
	f.DebugReserve = -1
	off, err := f.Output(buf)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	if off != 0 {
		t.Fatalf("disabled placeholder must start at the cursor, offset = %d", off)
	}
}
