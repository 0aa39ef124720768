package obj

import (
	"fmt"

	"pdfemit/pdferrors"
	"pdfemit/sink"
)

// Signer is the external collaborator that fills and later completes a
// signature dictionary. PreSign runs before the dictionary is written and
// populates its non-cryptographic fields, including fixed-size
// placeholders. Sign runs once the whole file exists and patches those
// placeholders in place.
type Signer interface {
	PreSign(ctx *Frame, dict *DictObj) error
	Sign(ctx *Frame, buf *sink.Buffer, dict *DictObj, start, end int64) error
}

// Signature layers the two-phase byte-range reservation protocol over one
// frame whose payload is a signature dictionary. Phase 1 happens during
// the normal document pass; phase 2 must wait until every byte of the
// file, trailer included, has been written, because the signed range
// covers the finished file.
type Signature struct {
	frame  *Frame
	signer Signer
	dict   *DictObj

	start, end int64
	placed     bool
}

func NewSignature(ref ObjectRef, settings *Settings, signer Signer, dict *DictObj) *Signature {
	if dict == nil {
		dict = NewDict()
	}
	return &Signature{
		frame:  NewFrame(ref, settings, dict),
		signer: signer,
		dict:   dict,
	}
}

func (s *Signature) Ref() ObjectRef    { return s.frame.Ref() }
func (s *Signature) Reference() RefObj { return s.frame.Reference() }
func (s *Signature) Dict() *DictObj    { return s.dict }

// ByteRange returns the recorded [start, end) window once phase 1 ran.
func (s *Signature) ByteRange() (start, end int64, ok bool) {
	return s.start, s.end, s.placed
}

// Output runs phase 1: the signer's PreSign hook, the normal frame
// output, then the byte-range bookkeeping.
func (s *Signature) Output(buf *sink.Buffer) (int64, error) {
	if err := s.signer.PreSign(s.frame, s.dict); err != nil {
		return 0, pdferrors.Transform("pre-sign", err)
	}
	off, err := s.frame.Output(buf)
	if err != nil {
		return 0, err
	}
	ref := s.frame.Ref()
	s.start = off + int64(len(fmt.Sprintf("%d %d obj\n", ref.Num, ref.Gen)))
	s.end = buf.Offset()
	s.placed = true
	return off, nil
}

// WriteSignature runs phase 2: the signer digests every byte outside
// [start, end) and patches its reserved placeholders through
// buf.SetBytes.
func (s *Signature) WriteSignature(buf *sink.Buffer) error {
	if !s.placed {
		return pdferrors.State("signature for object %d written before its byte range was reserved", s.frame.Ref().Num)
	}
	if err := s.signer.Sign(s.frame, buf, s.dict, s.start, s.end); err != nil {
		return pdferrors.Transform("sign", err)
	}
	return nil
}
