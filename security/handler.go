// Package security provides the encryption side of the Standard security
// handler plus PKCS#7 detached signing for signature dictionaries.
package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"encoding/binary"
	"errors"

	"pdfemit/obj"
)

// Permissions lists the user-access flags recorded in the encryption
// dictionary's P entry.
type Permissions struct {
	Print             bool
	Modify            bool
	Copy              bool
	ModifyAnnotations bool
	FillForms         bool
	ExtractAccessible bool
	Assemble          bool
	PrintHighQuality  bool
}

// PermissionsValue builds the Standard security P flags for a document.
func PermissionsValue(p Permissions) int32 {
	val := int32(-4) // bits 1-2 must be 0
	if !p.Print {
		val &^= 1 << 2
	}
	if !p.Modify {
		val &^= 1 << 3
	}
	if !p.Copy {
		val &^= 1 << 4
	}
	if !p.ModifyAnnotations {
		val &^= 1 << 5
	}
	if !p.FillForms {
		val &^= 1 << 8
	}
	if !p.ExtractAccessible {
		val &^= 1 << 9
	}
	if !p.Assemble {
		val &^= 1 << 10
	}
	if !p.PrintHighQuality {
		val &^= 1 << 11
	}
	return val
}

// Algorithm selects the cipher the Standard handler applies per object.
type Algorithm int

const (
	// RC4 is the 40-bit V1/R2 scheme.
	RC4 Algorithm = iota
	// AES128 is the 128-bit AES-CBC V4/R4 scheme with the AESV2 crypt
	// filter.
	AES128
)

// Handler holds the derived file key and the parameters needed to build
// the encryption dictionary and to encrypt per-object payloads.
type Handler struct {
	key  []byte
	algo Algorithm
	r    int
	dict *obj.DictObj
}

// NewStandardHandler derives the file key and the O/U entries for the
// Standard security handler. An empty owner password falls back to the
// user password.
func NewStandardHandler(userPwd, ownerPwd string, perms Permissions, fileID []byte, algo Algorithm) (*Handler, error) {
	if ownerPwd == "" {
		if userPwd != "" {
			ownerPwd = userPwd
		} else {
			ownerPwd = "owner"
		}
	}

	keyLen := 5
	r := 2
	if algo == AES128 {
		keyLen = 16
		r = 4
	}

	userPad := padPassword([]byte(userPwd))
	ownerPad := padPassword([]byte(ownerPwd))

	oVal := ownerEntry(ownerPad, userPad, keyLen, r)
	pVal := PermissionsValue(perms)
	fileKey, err := deriveKey([]byte(userPwd), oVal, pVal, fileID, keyLen, r)
	if err != nil {
		return nil, err
	}
	uVal := userEntry(fileKey, fileID, r)

	dict := obj.NewDict()
	dict.Set("Filter", obj.NameLiteral("Standard"))
	dict.Set("O", obj.Str(oVal))
	dict.Set("U", obj.Str(uVal))
	dict.Set("P", obj.Integer(int64(pVal)))
	if algo == AES128 {
		dict.Set("V", obj.Integer(4))
		dict.Set("R", obj.Integer(4))
		dict.Set("Length", obj.Integer(128))
		std := obj.NewDict()
		std.Set("CFM", obj.NameLiteral("AESV2"))
		std.Set("Length", obj.Integer(16))
		cf := obj.NewDict()
		cf.Set("StdCF", std)
		dict.Set("CF", cf)
		dict.Set("StmF", obj.NameLiteral("StdCF"))
		dict.Set("StrF", obj.NameLiteral("StdCF"))
	} else {
		dict.Set("V", obj.Integer(1))
		dict.Set("R", obj.Integer(2))
		dict.Set("Length", obj.Integer(40))
	}

	return &Handler{key: fileKey, algo: algo, r: r, dict: dict}, nil
}

// EncryptDict returns the encryption dictionary. The caller must write it
// as an indirect object outside the encrypted set and reference it from
// the trailer /Encrypt entry.
func (h *Handler) EncryptDict() *obj.DictObj { return h.dict }

// Encrypt transforms one object's payload under the key derived for its
// identity. The signature matches the serialization settings' encryption
// hook.
func (h *Handler) Encrypt(data []byte, owner obj.ObjectRef) ([]byte, error) {
	key := objectKey(h.key, owner.Num, owner.Gen, h.algo == AES128)
	if h.algo == AES128 {
		return aesCrypt(key, data, true)
	}
	return rc4Crypt(key, data)
}

// Decrypt reverses Encrypt for the same object identity.
func (h *Handler) Decrypt(data []byte, owner obj.ObjectRef) ([]byte, error) {
	key := objectKey(h.key, owner.Num, owner.Gen, h.algo == AES128)
	if h.algo == AES128 {
		return aesCrypt(key, data, false)
	}
	return rc4Crypt(key, data)
}

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pwd []byte) []byte {
	padded := make([]byte, 32)
	copy(padded, pwd)
	if len(pwd) < 32 {
		copy(padded[len(pwd):], passwordPadding[:32-len(pwd)])
	}
	return padded
}

// ownerEntry computes the O value from the padded passwords.
func ownerEntry(ownerPad, userPad []byte, keyLen, r int) []byte {
	digest := md5.Sum(ownerPad)
	key := digest[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			digest = md5.Sum(key[:keyLen])
			key = digest[:]
		}
	}
	rc4Key := key[:keyLen]
	out := rc4Simple(rc4Key, userPad)
	if r >= 3 {
		for i := 1; i <= 19; i++ {
			out = rc4Simple(xorKey(rc4Key, byte(i)), out)
		}
	}
	return out
}

// userEntry computes the U value from the derived file key.
func userEntry(fileKey, fileID []byte, r int) []byte {
	if r <= 2 {
		return rc4Simple(fileKey, passwordPadding)
	}
	digest := md5.Sum(append(append([]byte{}, passwordPadding...), fileID...))
	out := rc4Simple(fileKey, digest[:])
	for i := 1; i <= 19; i++ {
		out = rc4Simple(xorKey(fileKey, byte(i)), out)
	}
	// The entry is 32 bytes; the tail past the 16 significant bytes is
	// arbitrary.
	padded := make([]byte, 32)
	copy(padded, out)
	return padded
}

func xorKey(key []byte, x byte) []byte {
	out := make([]byte, len(key))
	for i := range key {
		out[i] = key[i] ^ x
	}
	return out
}

func deriveKey(pwd, owner []byte, pVal int32, fileID []byte, keyLenBytes int, r int) ([]byte, error) {
	if keyLenBytes <= 0 {
		keyLenBytes = 5
	}
	if keyLenBytes > 32 {
		keyLenBytes = 32
	}
	data := make([]byte, 0, 32+len(owner)+4+len(fileID))
	data = append(data, padPassword(pwd)...)
	data = append(data, owner...)
	var pBuf [4]byte
	binary.LittleEndian.PutUint32(pBuf[:], uint32(pVal))
	data = append(data, pBuf[:]...)
	data = append(data, fileID...)

	sum := md5.Sum(data)
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:keyLenBytes])
			key = sum[:]
		}
	}
	return key[:keyLenBytes], nil
}

// objectKey extends the file key with the low bytes of the object
// identity, plus the AES salt when applicable, and hashes it down to the
// per-object key.
func objectKey(fileKey []byte, num, gen int, useAES bool) []byte {
	key := append([]byte{}, fileKey...)
	key = append(key, byte(num), byte(num>>8), byte(num>>16))
	key = append(key, byte(gen), byte(gen>>8))
	if useAES {
		key = append(key, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	hash := md5.Sum(key)
	n := len(fileKey) + 5
	if n > 16 {
		n = 16
	}
	return hash[:n]
}

func rc4Simple(key, data []byte) []byte {
	out := make([]byte, len(data))
	c, _ := rc4.NewCipher(key)
	c.XORKeyStream(out, data)
	return out
}

func rc4Crypt(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// aesCrypt applies AES-CBC with a random leading IV and PKCS#7 padding
// when encrypting, and reverses both when decrypting.
func aesCrypt(key, data []byte, encrypt bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if encrypt {
		iv := make([]byte, aes.BlockSize)
		if _, err := rand.Read(iv); err != nil {
			return nil, err
		}
		padLen := aes.BlockSize - (len(data) % aes.BlockSize)
		if padLen == 0 {
			padLen = aes.BlockSize
		}
		plain := append(append([]byte{}, data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
		out := make([]byte, aes.BlockSize+len(plain))
		copy(out, iv)
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], plain)
		return out, nil
	}
	if len(data) < aes.BlockSize {
		return nil, errors.New("aes ciphertext too short")
	}
	iv := data[:aes.BlockSize]
	ct := data[aes.BlockSize:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, errors.New("aes ciphertext not multiple of blocksize")
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	if len(out) == 0 {
		return out, nil
	}
	pad := int(out[len(out)-1])
	if pad <= 0 || pad > aes.BlockSize || pad > len(out) {
		return nil, errors.New("invalid aes padding")
	}
	return out[:len(out)-pad], nil
}
