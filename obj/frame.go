package obj

import (
	"fmt"
	"time"

	"pdfemit/observability"
	"pdfemit/sink"
)

const (
	// defaultDebugReserve is the size of the comment block reserved in
	// front of each object in verbose mode.
	defaultDebugReserve = 300
	// debugSlack is how far past the reservation a flushed diagnostic may
	// run before it is truncated.
	debugSlack = 2
)

// Frame wraps a value with an indirect object identity and writes the
// "obj … endobj" envelope around it. A frame is written exactly once
// (twice for signed objects, via Signature); it is never mutated after
// creation except for diagnostic bookkeeping.
type Frame struct {
	ref      ObjectRef
	settings *Settings
	Value    Object

	// DebugReserve overrides the reserved diagnostic block size; zero
	// means the default, negative disables the block even in verbose
	// mode (the cross-reference stream does this so its recorded offset
	// matches the sink cursor).
	DebugReserve int

	debug []string
}

func NewFrame(ref ObjectRef, settings *Settings, value Object) *Frame {
	return &Frame{ref: ref, settings: settings, Value: value}
}

func (f *Frame) Ref() ObjectRef       { return f.ref }
func (f *Frame) Settings() *Settings  { return f.settings }
func (f *Frame) Reference() RefObj    { return RefObj{R: f.ref} }

// AddDebug queues a diagnostic line for the reserved comment block.
func (f *Frame) AddDebug(line string) { f.debug = append(f.debug, line) }

// Output writes the framed object into buf and returns the offset where
// the "<serial> <generation> obj" line begins.
func (f *Frame) Output(buf *sink.Buffer) (int64, error) {
	verbose := f.settings != nil && f.settings.Verbose && f.DebugReserve >= 0

	var reserveOff int64
	var reserved int
	var started time.Time
	if verbose {
		reserved = f.DebugReserve
		if reserved == 0 {
			reserved = defaultDebugReserve
		}
		reserveOff = buf.Offset()
		block := make([]byte, reserved+debugSlack)
		block[0] = '%'
		for i := 1; i < len(block)-1; i++ {
			block[i] = ' '
		}
		block[len(block)-1] = '\n'
		buf.PutBytes(block)
		started = time.Now()
	}

	startOffset := buf.Offset()
	if err := buf.PutString(fmt.Sprintf("%d %d obj\n", f.ref.Num, f.ref.Gen)); err != nil {
		return 0, err
	}
	indent := -1
	if verbose {
		indent = 0
	}
	if err := f.Value.Write(f, buf, indent); err != nil {
		return 0, err
	}
	buf.PutByte('\n')
	if err := buf.PutString("endobj\n"); err != nil {
		return 0, err
	}

	if verbose {
		elapsed := time.Since(started)
		f.AddDebug(fmt.Sprintf("%d %d obj: %s, %d bytes", f.ref.Num, f.ref.Gen, elapsed, buf.Offset()-startOffset))
		if err := f.flushDebug(buf, reserveOff, reserved); err != nil {
			return 0, err
		}
		f.settings.logger().Debug("object written",
			observability.Int("serial", f.ref.Num),
			observability.Int64("offset", startOffset),
			observability.Duration("elapsed", elapsed),
		)
	}
	return startOffset, nil
}

// flushDebug rewrites the reserved placeholder with the queued lines,
// truncating to the reservation plus slack; growing is off the table
// because every offset after the block is already recorded.
func (f *Frame) flushDebug(buf *sink.Buffer, offset int64, reserved int) error {
	scratch := sink.New()
	for _, line := range f.debug {
		if err := scratch.PutComment(line); err != nil {
			return err
		}
	}
	content := scratch.Output()
	if len(content) > reserved+debugSlack {
		content = content[:reserved+debugSlack]
		content[len(content)-1] = '\n'
	}
	return buf.SetBytes(offset, content)
}
