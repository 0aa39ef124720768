// Package sink implements the append-only output buffer every
// serialization pass writes into. A Buffer is exclusively owned by one
// pass: offsets recorded against it stay valid because appends never move
// earlier bytes and in-place patches never grow the buffer.
package sink

import (
	"strings"

	"pdfemit/pdferrors"
)

// growthChunk is added on top of the requested size whenever the buffer
// reallocates, so growth is amortized instead of tracking each append.
const growthChunk = 64 * 1024

// Buffer is a growable byte buffer with a monotonically increasing write
// cursor and bounded in-place overwrite.
type Buffer struct {
	buf []byte
	off int
}

func New() *Buffer { return &Buffer{} }

// Offset returns the current write cursor, which equals the number of
// bytes appended so far.
func (b *Buffer) Offset() int64 { return int64(b.off) }

func (b *Buffer) ensure(n int) {
	if b.off+n <= len(b.buf) {
		return
	}
	grown := make([]byte, b.off+n+growthChunk)
	copy(grown, b.buf[:b.off])
	b.buf = grown
}

// PutByte appends a single byte.
func (b *Buffer) PutByte(c byte) {
	b.ensure(1)
	b.buf[b.off] = c
	b.off++
}

// PutBytes appends p verbatim.
func (b *Buffer) PutBytes(p []byte) {
	b.ensure(len(p))
	copy(b.buf[b.off:], p)
	b.off += len(p)
}

// PutString appends s, which must be pure ASCII. The buffer carries
// binary and 7-bit syntax only; general text goes through the string
// object encoders.
func (b *Buffer) PutString(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return pdferrors.Validation("non-ASCII byte 0x%02X at index %d in text write", s[i], i)
		}
	}
	b.ensure(len(s))
	copy(b.buf[b.off:], s)
	b.off += len(s)
	return nil
}

// PutComment appends s as comment lines. Each non-empty line becomes
// "% <line>\n"; an empty input emits a single newline.
func (b *Buffer) PutComment(s string) error {
	if s == "" {
		b.PutByte('\n')
		return nil
	}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		if err := b.PutString("% " + line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// SetBytes overwrites previously written bytes in place. The patched range
// must lie entirely inside [0, Offset()); the cursor does not move.
func (b *Buffer) SetBytes(offset int64, p []byte) error {
	if offset < 0 || offset >= int64(b.off) {
		return pdferrors.Validation("patch offset %d outside written range [0,%d)", offset, b.off)
	}
	if offset+int64(len(p)) > int64(b.off) {
		return pdferrors.Validation("patch of %d bytes at %d exceeds written length %d", len(p), offset, b.off)
	}
	copy(b.buf[offset:], p)
	return nil
}

// Output returns an exact-length copy of everything written so far.
func (b *Buffer) Output() []byte {
	out := make([]byte, b.off)
	copy(out, b.buf[:b.off])
	return out
}
