package obj

import (
	"pdfemit/filters"
	"pdfemit/pdferrors"
	"pdfemit/sink"
)

// StreamObj is a dictionary that carries raw stream data. The filter
// pipeline runs on every Write: transforms may depend on write-time
// document state (encryption key material in particular), so results are
// never cached.
type StreamObj struct {
	Dict *DictObj
	Data []byte

	// IsBinary selects ASCII85 text-safe encoding when no compression
	// was applied.
	IsBinary bool
	// Compress opts the data into the settings' compression transform.
	Compress bool
	// Encrypt opts the data into the settings' encryption transform,
	// which always runs last.
	Encrypt bool
}

func NewStream(dict *DictObj, data []byte) *StreamObj {
	if dict == nil {
		dict = NewDict()
	}
	return &StreamObj{Dict: dict, Data: data}
}

func (s *StreamObj) Write(ctx *Frame, buf *sink.Buffer, indent int) error {
	dict := s.Dict
	if dict == nil {
		dict = NewDict()
	}
	dict = dict.Clone()
	settings := ctx.Settings()

	data := s.Data
	filtered := dict.Has("Filter") // caller pre-filtered the bytes
	if !filtered && s.Compress && settings != nil && settings.Compress != nil {
		comp, err := settings.Compress(data)
		if err != nil {
			return pdferrors.Transform("compress stream", err)
		}
		// Only adopt compression when it actually wins.
		if len(comp) < len(data) {
			data = comp
			dict.Set("Filter", NameLiteral(filters.NameFlate))
			filtered = true
		}
	}
	if !filtered && s.IsBinary {
		data = Ascii85Encode(data)
		dict.Set("Filter", NameLiteral(filters.NameASCII85))
	}
	if s.Encrypt && settings != nil && settings.Encrypt != nil {
		enc, err := settings.Encrypt(data, ctx.Ref())
		if err != nil {
			return pdferrors.Transform("encrypt stream", err)
		}
		data = enc
	}

	dict.Set("Length", Integer(int64(len(data))))
	if err := dict.Write(ctx, buf, indent); err != nil {
		return err
	}
	if err := buf.PutString("stream\n"); err != nil {
		return err
	}
	buf.PutBytes(data)
	return buf.PutString("\nendstream")
}
