package security

import (
	"bytes"
	"testing"

	"pdfemit/obj"
)

func TestPermissionsValue(t *testing.T) {
	all := Permissions{
		Print: true, Modify: true, Copy: true, ModifyAnnotations: true,
		FillForms: true, ExtractAccessible: true, Assemble: true, PrintHighQuality: true,
	}
	if got := PermissionsValue(all); got != -4 {
		t.Fatalf("all permissions = %d, want -4", got)
	}
	none := PermissionsValue(Permissions{})
	for _, bit := range []uint{2, 3, 4, 5, 8, 9, 10, 11} {
		if none&(1<<bit) != 0 {
			t.Fatalf("bit %d must be cleared, value %d", bit, none)
		}
	}
	printOnly := PermissionsValue(Permissions{Print: true})
	if printOnly&(1<<2) == 0 {
		t.Fatalf("print bit must be set, value %d", printOnly)
	}
	if printOnly&(1<<3) != 0 {
		t.Fatalf("modify bit must stay cleared, value %d", printOnly)
	}
}

func TestRC4RoundTrip(t *testing.T) {
	h, err := NewStandardHandler("user", "owner", Permissions{Print: true}, []byte("file-id-0123456"), RC4)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	plain := []byte("q 0 0 612 792 re f Q")
	ref := obj.ObjectRef{Num: 5}

	ct, err := h.Encrypt(plain, ref)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(ct, plain) {
		t.Fatalf("ciphertext equals plaintext")
	}
	back, err := h.Decrypt(ct, ref)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(back, plain) {
		t.Fatalf("round trip = %q, want %q", back, plain)
	}

	// A different object identity keys a different stream.
	other, err := h.Encrypt(plain, obj.ObjectRef{Num: 6})
	if err != nil {
		t.Fatalf("encrypt other: %v", err)
	}
	if bytes.Equal(other, ct) {
		t.Fatalf("distinct objects must not share ciphertext")
	}
}

func TestAESRoundTrip(t *testing.T) {
	h, err := NewStandardHandler("user", "owner", Permissions{}, []byte("file-id-0123456"), AES128)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	plain := []byte("BT /F1 12 Tf (hello) Tj ET")
	ref := obj.ObjectRef{Num: 9, Gen: 1}

	ct, err := h.Encrypt(plain, ref)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	// Leading IV plus padded payload.
	if len(ct)%16 != 0 || len(ct) < len(plain)+16 {
		t.Fatalf("ciphertext length %d not CBC shaped for %d plaintext bytes", len(ct), len(plain))
	}
	back, err := h.Decrypt(ct, ref)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(back, plain) {
		t.Fatalf("round trip = %q, want %q", back, plain)
	}
}

func TestEncryptDictRC4(t *testing.T) {
	h, err := NewStandardHandler("u", "o", Permissions{Print: true}, []byte("id"), RC4)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	d := h.EncryptDict()
	for key, want := range map[string]int64{"V": 1, "R": 2, "Length": 40} {
		v, ok := d.Get(key)
		if !ok {
			t.Fatalf("missing %s", key)
		}
		if n, ok := v.(obj.NumberObj); !ok || !n.IsInt || n.I != want {
			t.Fatalf("%s = %v, want %d", key, v, want)
		}
	}
	for _, key := range []string{"Filter", "O", "U", "P"} {
		if !d.Has(key) {
			t.Fatalf("missing %s", key)
		}
	}
}

func TestEncryptDictAES(t *testing.T) {
	h, err := NewStandardHandler("u", "o", Permissions{}, []byte("id"), AES128)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	d := h.EncryptDict()
	if v, _ := d.Get("V"); v.(obj.NumberObj).I != 4 {
		t.Fatalf("V = %v, want 4", v)
	}
	if r, _ := d.Get("R"); r.(obj.NumberObj).I != 4 {
		t.Fatalf("R = %v, want 4", r)
	}
	cf, ok := d.Get("CF")
	if !ok {
		t.Fatalf("missing CF")
	}
	std, ok := cf.(*obj.DictObj).Get("StdCF")
	if !ok {
		t.Fatalf("missing StdCF")
	}
	if m, _ := std.(*obj.DictObj).Get("CFM"); m.(obj.NameObj).Value() != "/AESV2" {
		t.Fatalf("CFM = %v, want /AESV2", m)
	}
}

func TestObjectKey(t *testing.T) {
	fileKey := []byte{1, 2, 3, 4, 5}
	k := objectKey(fileKey, 7, 0, false)
	if len(k) != 10 {
		t.Fatalf("rc4 object key length = %d, want file key + 5", len(k))
	}
	long := objectKey(bytes.Repeat([]byte{9}, 16), 7, 0, true)
	if len(long) != 16 {
		t.Fatalf("object key must cap at 16 bytes, got %d", len(long))
	}
	if bytes.Equal(objectKey(fileKey, 7, 0, false), objectKey(fileKey, 7, 0, true)) {
		t.Fatalf("aes salt must change the derived key")
	}
	if bytes.Equal(objectKey(fileKey, 7, 0, false), objectKey(fileKey, 8, 0, false)) {
		t.Fatalf("object number must change the derived key")
	}
}
