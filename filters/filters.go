// Package filters implements the encode side of the standard stream
// filters. Each encoder is a plain bytes-to-bytes transform; the decision
// of which filters to apply belongs to the stream serializer.
package filters

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"

	"pdfemit/pdferrors"
)

// Filter names as they appear in stream dictionaries.
const (
	NameFlate     = "FlateDecode"
	NameASCII85   = "ASCII85Decode"
	NameASCIIHex  = "ASCIIHexDecode"
	NameRunLength = "RunLengthDecode"
)

// Flate compresses data with the zlib framing FlateDecode expects.
func Flate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, pdferrors.Transform("flate encode", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, pdferrors.Transform("flate encode", err)
	}
	if err := w.Close(); err != nil {
		return nil, pdferrors.Transform("flate encode", err)
	}
	return buf.Bytes(), nil
}

// ASCIIHex encodes data as hex digits followed by the > terminator.
func ASCIIHex(data []byte) []byte {
	dst := make([]byte, hex.EncodedLen(len(data))+1)
	n := hex.Encode(dst, data)
	dst[n] = '>'
	return dst[:n+1]
}

// RunLength encodes data with the RunLengthDecode scheme: a length byte
// 0..127 prefixes that many+1 literal bytes, 129..255 repeats the next
// byte 257-length times, 128 ends the stream.
func RunLength(data []byte) []byte {
	var buf bytes.Buffer
	for i := 0; i < len(data); {
		run := 1
		for i+run < len(data) && run < 128 && data[i+run] == data[i] {
			run++
		}
		if run > 1 {
			buf.WriteByte(byte(257 - run))
			buf.WriteByte(data[i])
			i += run
			continue
		}
		lit := 1
		for i+lit < len(data) && lit < 128 && (i+lit+1 >= len(data) || data[i+lit] != data[i+lit+1]) {
			lit++
		}
		buf.WriteByte(byte(lit - 1))
		buf.Write(data[i : i+lit])
		i += lit
	}
	buf.WriteByte(128)
	return buf.Bytes()
}
