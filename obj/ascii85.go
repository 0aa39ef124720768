package obj

import "encoding/binary"

// Ascii85Encode converts binary data to the base-85 text form used by the
// ASCII85Decode filter. Full all-zero groups collapse to a single 'z'; a
// short final group of k bytes emits k+1 digits. The output always ends
// with the ~> terminator. The digit loop is pure integer arithmetic so
// the full 32-bit range survives.
func Ascii85Encode(data []byte) []byte {
	out := make([]byte, 0, (len(data)+3)/4*5+2)
	i := 0
	for ; i+4 <= len(data); i += 4 {
		v := binary.BigEndian.Uint32(data[i:])
		if v == 0 {
			out = append(out, 'z')
			continue
		}
		digits := encodeGroup(v)
		out = append(out, digits[:]...)
	}
	if rem := len(data) - i; rem > 0 {
		var tail [4]byte
		copy(tail[:], data[i:])
		digits := encodeGroup(binary.BigEndian.Uint32(tail[:]))
		out = append(out, digits[:rem+1]...)
	}
	return append(out, '~', '>')
}

func encodeGroup(v uint32) [5]byte {
	var digits [5]byte
	for j := 4; j >= 0; j-- {
		digits[j] = byte(v%85) + 33
		v /= 85
	}
	return digits
}
