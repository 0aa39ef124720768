// Package document is the driver tying the pieces together: serial
// allocation, object registration, the single synchronous save pass and
// the deferred signing phase that follows it.
package document

import (
	"crypto/rand"
	"crypto/sha256"

	"pdfemit/filters"
	"pdfemit/obj"
	"pdfemit/observability"
	"pdfemit/pdferrors"
	"pdfemit/security"
	"pdfemit/sink"
	"pdfemit/xref"
)

// Config configures one document. The zero value writes an unencrypted,
// uncompressed 1.4 file with a random identifier.
type Config struct {
	Version obj.Version
	Verbose bool
	Logger  observability.Logger

	// Compress enables Flate for streams that opt in.
	Compress bool

	// Encrypt enables the Standard security handler.
	Encrypt       bool
	UserPassword  string
	OwnerPassword string
	Permissions   security.Permissions
	Algorithm     security.Algorithm

	// Deterministic derives the file identifier purely from IDSeed and
	// the version, for reproducible output.
	Deterministic bool
	IDSeed        []byte
}

// Document owns the serial counter, the cross-reference table and the
// signatures awaiting their second phase.
type Document struct {
	settings   *obj.Settings
	table      *xref.Table
	handler    *security.Handler
	id         [2][]byte
	next       int
	signatures []*obj.Signature
}

func New(cfg Config) (*Document, error) {
	settings := &obj.Settings{
		Verbose: cfg.Verbose,
		Version: cfg.Version,
		Logger:  cfg.Logger,
	}
	if cfg.Compress {
		settings.Compress = filters.Flate
	}

	d := &Document{
		settings: settings,
		table:    xref.NewTable(),
		id:       fileID(cfg),
	}
	if cfg.Encrypt {
		handler, err := security.NewStandardHandler(
			cfg.UserPassword, cfg.OwnerPassword, cfg.Permissions, d.id[0], cfg.Algorithm)
		if err != nil {
			return nil, err
		}
		d.handler = handler
		settings.Encrypt = handler.Encrypt
	}
	return d, nil
}

// Settings exposes the shared serialization settings.
func (d *Document) Settings() *obj.Settings { return d.settings }

// Trailer exposes the trailer dictionary for extra entries such as /Info.
func (d *Document) Trailer() *obj.DictObj { return d.table.Trailer() }

// NextRef allocates the next object serial.
func (d *Document) NextRef() obj.ObjectRef {
	d.next++
	return obj.ObjectRef{Num: d.next}
}

// Add registers v as the next indirect object and returns its frame.
func (d *Document) Add(v obj.Object) *obj.Frame {
	f := obj.NewFrame(d.NextRef(), d.settings, v)
	d.table.Add(f)
	return f
}

// AddStream registers a stream object that participates in the filter
// pipeline: compression when the document enables it, encryption when the
// document is encrypted.
func (d *Document) AddStream(dict *obj.DictObj, data []byte) *obj.Frame {
	s := obj.NewStream(dict, data)
	s.Compress = true
	s.Encrypt = d.handler != nil
	return d.Add(s)
}

// AddSignature registers a signature dictionary driven by signer. The
// signature completes during Save, after the whole file exists.
func (d *Document) AddSignature(signer obj.Signer, dict *obj.DictObj) *obj.Signature {
	sig := obj.NewSignature(d.NextRef(), d.settings, signer, dict)
	d.table.Add(sig)
	d.signatures = append(d.signatures, sig)
	return sig
}

// Save runs the whole pass: header, objects, cross-reference section,
// epilogue, then the deferred signature phase over the finished bytes.
// root is the document catalog.
func (d *Document) Save(root *obj.Frame) ([]byte, error) {
	if root == nil {
		return nil, pdferrors.Validation("document has no catalog")
	}
	d.table.Add(root)

	trailer := d.table.Trailer()
	trailer.Set("ID", obj.NewArray(obj.HexStr(d.id[0]), obj.HexStr(d.id[1])))
	if d.handler != nil {
		// The encryption dictionary itself is written in the clear; a
		// reader needs it before any key material exists.
		plain := *d.settings
		plain.Encrypt = nil
		enc := obj.NewFrame(d.NextRef(), &plain, d.handler.EncryptDict())
		d.table.Add(enc)
		trailer.Set("Encrypt", enc.Reference())
	}

	buf := sink.New()
	if err := d.table.Output(root, buf); err != nil {
		return nil, err
	}
	for _, sig := range d.signatures {
		if err := sig.WriteSignature(buf); err != nil {
			return nil, err
		}
	}
	return buf.Output(), nil
}

// fileID derives the two-element file identifier. The first element seeds
// encryption key derivation, so it exists even for fresh documents.
func fileID(cfg Config) [2][]byte {
	h := sha256.New()
	h.Write([]byte(cfg.Version.String()))
	h.Write(cfg.IDSeed)
	seed := h.Sum(nil)[:16]
	if cfg.Deterministic {
		return [2][]byte{seed, seed}
	}
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		id = seed
	}
	idB := make([]byte, len(id))
	copy(idB, id)
	return [2][]byte{id, idB}
}
