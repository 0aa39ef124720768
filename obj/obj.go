// Package obj implements the serializable object model: the output
// contract every value implements, the primitive variants, the indirect
// object envelope and the per-stream filter pipeline.
package obj

import (
	"fmt"

	"pdfemit/observability"
	"pdfemit/sink"
)

// Version selects the file format revision, which in turn selects the
// cross-reference encoding.
type Version int

const (
	// PDF14 writes the classic plain-text xref table.
	PDF14 Version = iota
	// PDF15 writes a binary cross-reference stream.
	PDF15
)

func (v Version) String() string {
	if v == PDF15 {
		return "1.5"
	}
	return "1.4"
}

// UseXrefStream reports whether this revision encodes the cross-reference
// index as a stream object.
func (v Version) UseXrefStream() bool { return v == PDF15 }

// ObjectRef identifies an indirect object by serial and generation.
// Two refs are equal iff both fields match.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Settings is the immutable per-document configuration shared by
// reference across all objects of one serialization pass.
type Settings struct {
	// Compress, when set, is applied to stream data flagged for
	// compression. The result is only adopted if strictly smaller.
	Compress func(data []byte) ([]byte, error)

	// Encrypt, when set, enciphers stream and string bytes with key
	// material bound to the owning object. It is always the last
	// transform applied.
	Encrypt func(data []byte, owner ObjectRef) ([]byte, error)

	// Verbose reserves an in-file comment block per object and fills it
	// with timing diagnostics.
	Verbose bool

	Version Version

	// Logger receives per-object diagnostics when Verbose is set.
	Logger observability.Logger
}

func (s *Settings) logger() observability.Logger {
	if s == nil || s.Logger == nil {
		return observability.NopLogger{}
	}
	return s.Logger
}

// Object is the contract every serializable value implements. ctx is the
// indirect object being written (giving access to Settings and the owning
// identity); indent < 0 disables pretty-printing.
type Object interface {
	Write(ctx *Frame, buf *sink.Buffer, indent int) error
}

// IndirectObject is anything the cross-reference table can register and
// emit: a plain Frame or a Signature wrapping one.
type IndirectObject interface {
	Ref() ObjectRef
	Reference() RefObj
	Output(buf *sink.Buffer) (int64, error)
}
