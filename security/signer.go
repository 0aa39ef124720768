package security

import (
	"bytes"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"time"

	"pdfemit/obj"
	"pdfemit/sink"
)

// defaultReserve is the signature hole size in raw bytes; the hex form in
// the file is twice that.
const defaultReserve = 8192

// PKCS7Signer fills a signature dictionary with an adbe.pkcs7.detached
// signature. Phase 1 reserves fixed-size placeholders for /ByteRange and
// /Contents; phase 2 digests the finished file outside the dictionary
// window and patches both in place.
type PKCS7Signer struct {
	Key   *rsa.PrivateKey
	Chain []*x509.Certificate

	Reason      string
	Location    string
	ContactInfo string

	// Reserve is the /Contents capacity in raw signature bytes. Zero
	// means defaultReserve.
	Reserve int

	// LTV carries revocation material to embed in the CMS structure.
	LTV *LTVData

	// Now overrides the signing-time source.
	Now func() time.Time
}

func (s *PKCS7Signer) reserve() int {
	if s.Reserve > 0 {
		return s.Reserve
	}
	return defaultReserve
}

func (s *PKCS7Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *PKCS7Signer) PreSign(ctx *obj.Frame, dict *obj.DictObj) error {
	if len(s.Chain) == 0 {
		return fmt.Errorf("signer certificate chain is empty")
	}
	dict.Set("Type", obj.NameLiteral("Sig"))
	dict.Set("Filter", obj.NameLiteral("Adobe.PPKLite"))
	dict.Set("SubFilter", obj.NameLiteral("adbe.pkcs7.detached"))
	dict.Set("M", obj.Str([]byte(formatDate(s.now()))))
	if s.Reason != "" {
		dict.Set("Reason", obj.Str([]byte(s.Reason)))
	}
	if s.Location != "" {
		dict.Set("Location", obj.Str([]byte(s.Location)))
	}
	if s.ContactInfo != "" {
		dict.Set("ContactInfo", obj.Str([]byte(s.ContactInfo)))
	}
	// Fixed-width placeholders keep the dictionary length stable so the
	// phase 2 patches never shift bytes.
	dict.Set("ByteRange", obj.NewArray(
		fixedInt{width: 10}, fixedInt{width: 10}, fixedInt{width: 10}, fixedInt{width: 10},
	))
	dict.Set("Contents", hexHole{size: s.reserve()})
	return nil
}

func (s *PKCS7Signer) Sign(ctx *obj.Frame, buf *sink.Buffer, dict *obj.DictObj, start, end int64) error {
	data := buf.Output()
	total := int64(len(data))
	window := data[start:end]

	holeOff, holeCap, err := findHexHole(window, "/Contents")
	if err != nil {
		return err
	}
	brOff, err := findArrayOpen(window, "/ByteRange")
	if err != nil {
		return err
	}

	// [0, start) and [end, total) are the signed ranges; the dictionary
	// window between them is excluded as a whole.
	brText := fmt.Sprintf("%010d %010d %010d %010d", 0, start, end, total-end)
	if err := buf.SetBytes(start+brOff, []byte(brText)); err != nil {
		return err
	}

	digest := sha256.New()
	digest.Write(data[:start])
	digest.Write(data[end:])

	var crls [][]byte
	if s.LTV != nil {
		crls = s.LTV.CRLs
	}
	signature, err := buildDetachedPKCS7(s.Key, s.Chain[0], s.Chain, digest.Sum(nil), s.now(), crls)
	if err != nil {
		return err
	}

	sigHex := make([]byte, hex.EncodedLen(len(signature)))
	hex.Encode(sigHex, signature)
	if len(sigHex) > holeCap {
		return fmt.Errorf("signature needs %d hex bytes, reserved %d", len(sigHex), holeCap)
	}
	// The remainder of the hole keeps its zero padding.
	return buf.SetBytes(start+holeOff, sigHex)
}

// findHexHole locates the hex string value of key within the dictionary
// window and returns its content offset and capacity.
func findHexHole(window []byte, key string) (int64, int, error) {
	k := bytes.Index(window, []byte(key))
	if k < 0 {
		return 0, 0, fmt.Errorf("%s placeholder missing from signature dictionary", key)
	}
	open := bytes.IndexByte(window[k:], '<')
	if open < 0 {
		return 0, 0, fmt.Errorf("%s placeholder is not a hex string", key)
	}
	holeStart := k + open + 1
	closing := bytes.IndexByte(window[holeStart:], '>')
	if closing < 0 {
		return 0, 0, fmt.Errorf("%s placeholder is unterminated", key)
	}
	return int64(holeStart), closing, nil
}

func findArrayOpen(window []byte, key string) (int64, error) {
	k := bytes.Index(window, []byte(key))
	if k < 0 {
		return 0, fmt.Errorf("%s placeholder missing from signature dictionary", key)
	}
	open := bytes.IndexByte(window[k:], '[')
	if open < 0 {
		return 0, fmt.Errorf("%s placeholder is not an array", key)
	}
	return int64(k + open + 1), nil
}

// fixedInt writes a zero-padded decimal of constant width, so a later
// in-place patch of the real value cannot change the file length.
type fixedInt struct {
	v     int64
	width int
}

func (f fixedInt) Write(ctx *obj.Frame, buf *sink.Buffer, indent int) error {
	return buf.PutString(fmt.Sprintf("%0*d", f.width, f.v))
}

// hexHole writes an all-zero hex string of fixed capacity.
type hexHole struct {
	size int
}

func (h hexHole) Write(ctx *obj.Frame, buf *sink.Buffer, indent int) error {
	buf.PutByte('<')
	buf.PutBytes(bytes.Repeat([]byte{'0'}, h.size*2))
	buf.PutByte('>')
	return nil
}

// formatDate renders t in the D:YYYYMMDDHHmmSSOHH'mm' date format.
func formatDate(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	h := offset / 3600
	m := (offset % 3600) / 60
	return fmt.Sprintf("D:%04d%02d%02d%02d%02d%02d%c%02d'%02d'",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), sign, h, m)
}
