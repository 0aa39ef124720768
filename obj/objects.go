package obj

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"pdfemit/pdferrors"
	"pdfemit/sink"
)

// Name object. The stored value includes the leading slash.
type NameObj struct{ val string }

// NewName validates and wraps a name, which must begin with a slash and
// contain only character codes in 0x01..0xFE.
func NewName(v string) (NameObj, error) {
	if len(v) == 0 || v[0] != '/' {
		return NameObj{}, pdferrors.Validation("name %q must start with /", v)
	}
	for i := 0; i < len(v); i++ {
		if v[i] < 0x01 || v[i] > 0xFE {
			return NameObj{}, pdferrors.Validation("name %q has character code 0x%02X at index %d", v, v[i], i)
		}
	}
	return NameObj{val: v}, nil
}

// NameLiteral wraps a trusted name, adding the slash prefix if absent.
// Untrusted input goes through NewName.
func NameLiteral(v string) NameObj {
	if !strings.HasPrefix(v, "/") {
		v = "/" + v
	}
	return NameObj{val: v}
}

func (n NameObj) Value() string { return n.val }

func (n NameObj) Write(ctx *Frame, buf *sink.Buffer, indent int) error {
	return writeName(buf, n.val)
}

// writeName copies each character verbatim unless it falls outside the
// printable range 0x21..0x7E or is a delimiter, in which case it becomes
// # plus two uppercase hex digits. The leading slash is exempt.
func writeName(buf *sink.Buffer, name string) error {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if i == 0 && c == '/' {
			buf.PutByte(c)
			continue
		}
		if c < 0x21 || c > 0x7E || strings.IndexByte("#/[](<>", c) >= 0 {
			if err := buf.PutString(fmt.Sprintf("#%02X", c)); err != nil {
				return err
			}
			continue
		}
		buf.PutByte(c)
	}
	return nil
}

// Null object. It is a value, not an identity: any two instances compare
// equal, and the shared Null constant is the one to use.
type NullObj struct{}

var Null = NullObj{}

func (NullObj) Write(ctx *Frame, buf *sink.Buffer, indent int) error {
	return buf.PutString("null")
}

// Boolean object.
type BoolObj struct{ V bool }

func Bool(v bool) BoolObj { return BoolObj{V: v} }

func (b BoolObj) Write(ctx *Frame, buf *sink.Buffer, indent int) error {
	if b.V {
		return buf.PutString("true")
	}
	return buf.PutString("false")
}

// Number object, integer or real.
type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func Integer(i int64) NumberObj { return NumberObj{I: i, IsInt: true} }
func Real(f float64) NumberObj  { return NumberObj{F: f} }

func (n NumberObj) Write(ctx *Frame, buf *sink.Buffer, indent int) error {
	if n.IsInt {
		return buf.PutString(strconv.FormatInt(n.I, 10))
	}
	return buf.PutString(strconv.FormatFloat(n.F, 'f', -1, 64))
}

// String object, literal or hex form.
type StringObj struct {
	val []byte
	hex bool
}

func Str(b []byte) StringObj    { return StringObj{val: b} }
func HexStr(b []byte) StringObj { return StringObj{val: b, hex: true} }

// TextStr encodes a text string: pure ASCII stays literal, anything else
// becomes UTF-16BE with a byte order mark, in hex form.
func TextStr(s string) (StringObj, error) {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			ascii = false
			break
		}
	}
	if ascii {
		return Str([]byte(s)), nil
	}
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return StringObj{}, pdferrors.Transform("utf-16 encode text string", err)
	}
	return HexStr(out), nil
}

func (s StringObj) Value() []byte { return s.val }
func (s StringObj) IsHex() bool   { return s.hex }

func (s StringObj) Write(ctx *Frame, buf *sink.Buffer, indent int) error {
	data := s.val
	if ctx != nil && ctx.settings != nil && ctx.settings.Encrypt != nil {
		enc, err := ctx.settings.Encrypt(data, ctx.Ref())
		if err != nil {
			return pdferrors.Transform("encrypt string", err)
		}
		data = enc
	}
	if s.hex {
		return writeHexString(buf, data)
	}
	return writeLiteralString(buf, data)
}

const hexDigits = "0123456789ABCDEF"

func writeHexString(buf *sink.Buffer, data []byte) error {
	buf.PutByte('<')
	for _, c := range data {
		buf.PutByte(hexDigits[c>>4])
		buf.PutByte(hexDigits[c&0x0F])
	}
	buf.PutByte('>')
	return nil
}

func writeLiteralString(buf *sink.Buffer, data []byte) error {
	buf.PutByte('(')
	for _, c := range data {
		switch c {
		case '\\', '(', ')':
			buf.PutByte('\\')
			buf.PutByte(c)
		case '\n':
			buf.PutBytes([]byte("\\n"))
		case '\r':
			buf.PutBytes([]byte("\\r"))
		case '\t':
			buf.PutBytes([]byte("\\t"))
		case '\b':
			buf.PutBytes([]byte("\\b"))
		case '\f':
			buf.PutBytes([]byte("\\f"))
		default:
			if c < 0x20 || c >= 0x80 {
				if err := buf.PutString(fmt.Sprintf("\\%03o", c)); err != nil {
					return err
				}
			} else {
				buf.PutByte(c)
			}
		}
	}
	buf.PutByte(')')
	return nil
}

// Array object.
type ArrayObj struct{ Items []Object }

func NewArray(items ...Object) *ArrayObj { return &ArrayObj{Items: items} }

func (a *ArrayObj) Append(o Object) { a.Items = append(a.Items, o) }
func (a *ArrayObj) Len() int        { return len(a.Items) }

func (a *ArrayObj) Write(ctx *Frame, buf *sink.Buffer, indent int) error {
	buf.PutByte('[')
	for i, it := range a.Items {
		if i > 0 {
			buf.PutByte(' ')
		}
		if err := it.Write(ctx, buf, indent); err != nil {
			return err
		}
	}
	buf.PutByte(']')
	return nil
}

// Dictionary object. Keys are stored without the leading slash and
// emitted in sorted order so output is deterministic.
type DictObj struct{ KV map[string]Object }

func NewDict() *DictObj { return &DictObj{KV: make(map[string]Object)} }

func (d *DictObj) Set(key string, v Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = v
}

func (d *DictObj) Get(key string) (Object, bool) {
	v, ok := d.KV[key]
	return v, ok
}

func (d *DictObj) Has(key string) bool {
	_, ok := d.KV[key]
	return ok
}

func (d *DictObj) Len() int { return len(d.KV) }

// Clone returns a shallow copy. Stream serialization works on a clone so
// per-call filter results never stick to the caller's dictionary.
func (d *DictObj) Clone() *DictObj {
	out := NewDict()
	for k, v := range d.KV {
		out.KV[k] = v
	}
	return out
}

// Merge copies entries from other that this dictionary does not already
// have.
func (d *DictObj) Merge(other *DictObj) {
	if other == nil {
		return
	}
	for k, v := range other.KV {
		if !d.Has(k) {
			d.Set(k, v)
		}
	}
}

func (d *DictObj) sortedKeys() []string {
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *DictObj) Write(ctx *Frame, buf *sink.Buffer, indent int) error {
	if indent >= 0 {
		return d.writeIndented(ctx, buf, indent)
	}
	if err := buf.PutString("<<"); err != nil {
		return err
	}
	for _, k := range d.sortedKeys() {
		if err := writeName(buf, "/"+k); err != nil {
			return err
		}
		buf.PutByte(' ')
		if err := d.KV[k].Write(ctx, buf, indent); err != nil {
			return err
		}
	}
	return buf.PutString(">>")
}

func (d *DictObj) writeIndented(ctx *Frame, buf *sink.Buffer, indent int) error {
	if err := buf.PutString("<<\n"); err != nil {
		return err
	}
	pad := strings.Repeat(" ", indent+2)
	for _, k := range d.sortedKeys() {
		if err := buf.PutString(pad); err != nil {
			return err
		}
		if err := writeName(buf, "/"+k); err != nil {
			return err
		}
		buf.PutByte(' ')
		if err := d.KV[k].Write(ctx, buf, indent+2); err != nil {
			return err
		}
		buf.PutByte('\n')
	}
	if err := buf.PutString(strings.Repeat(" ", indent)); err != nil {
		return err
	}
	return buf.PutString(">>")
}

// Indirect reference object.
type RefObj struct{ R ObjectRef }

func Ref(num, gen int) RefObj { return RefObj{R: ObjectRef{Num: num, Gen: gen}} }

func (r RefObj) Ref() ObjectRef { return r.R }

func (r RefObj) Write(ctx *Frame, buf *sink.Buffer, indent int) error {
	return buf.PutString(fmt.Sprintf("%d %d R", r.R.Num, r.R.Gen))
}
