package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"
)

var (
	oidData                   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidSignedData             = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidDigestAlgorithmSHA256  = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidEncryptionAlgorithmRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidAttributeContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidAttributeMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidAttributeSigningTime   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
)

type contentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,tag:0"`
}

type signedData struct {
	Version          int
	DigestAlgorithms []pkix.AlgorithmIdentifier
	EncapContentInfo encapsulatedContentInfo
	Certificates     []asn1.RawValue `asn1:"optional,tag:0,set"`
	CRLs             []asn1.RawValue `asn1:"optional,tag:1,set"`
	SignerInfos      []signerInfo
}

type encapsulatedContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

type signerInfo struct {
	Version                   int
	IssuerAndSerialNumber     issuerAndSerialNumber
	DigestAlgorithm           pkix.AlgorithmIdentifier
	AuthenticatedAttributes   []attribute `asn1:"optional,tag:0"`
	DigestEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedDigest           []byte
	UnauthenticatedAttributes []attribute `asn1:"optional,tag:1"`
}

type issuerAndSerialNumber struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

type attribute struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue `asn1:"set"`
}

// buildDetachedPKCS7 creates a detached PKCS#7/CMS SignedData structure
// over the given content digest. CRLs, if any, travel in the SignedData
// so validators can check revocation long after the responders are gone.
func buildDetachedPKCS7(priv *rsa.PrivateKey, cert *x509.Certificate, chain []*x509.Certificate, contentDigest []byte, signingTime time.Time, crls [][]byte) ([]byte, error) {
	if cert == nil {
		return nil, fmt.Errorf("signer certificate is required")
	}

	attrs := []attribute{
		{
			Type: oidAttributeContentType,
			Value: asn1.RawValue{
				Tag:   asn1.TagOID,
				Bytes: oidContentBytes(oidData),
			},
		},
		{
			Type: oidAttributeSigningTime,
			Value: asn1.RawValue{
				Tag:   asn1.TagUTCTime,
				Bytes: []byte(signingTime.UTC().Format("060102150405Z")),
			},
		},
		{
			Type: oidAttributeMessageDigest,
			Value: asn1.RawValue{
				Tag:   asn1.TagOctetString,
				Bytes: contentDigest,
			},
		},
	}

	// The signature covers the DER of the attributes as SET OF (tag 17),
	// not the [0] IMPLICIT form they take inside signerInfo.
	attrBytes, err := marshalAttributeSet(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal attributes: %w", err)
	}
	attrDigest := sha256.Sum256(attrBytes)

	signature, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, attrDigest[:])
	if err != nil {
		return nil, fmt.Errorf("sign attributes: %w", err)
	}

	si := signerInfo{
		Version: 1,
		IssuerAndSerialNumber: issuerAndSerialNumber{
			// RawIssuer keeps the exact bytes the certificate carries.
			Issuer:       asn1.RawValue{FullBytes: cert.RawIssuer},
			SerialNumber: cert.SerialNumber,
		},
		DigestAlgorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oidDigestAlgorithmSHA256,
			Parameters: asn1.RawValue{Tag: asn1.TagNull},
		},
		AuthenticatedAttributes: attrs,
		DigestEncryptionAlgorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oidEncryptionAlgorithmRSA,
			Parameters: asn1.RawValue{Tag: asn1.TagNull},
		},
		EncryptedDigest: signature,
	}

	certs := []asn1.RawValue{{FullBytes: cert.Raw}}
	for _, c := range chain {
		if !c.Equal(cert) {
			certs = append(certs, asn1.RawValue{FullBytes: c.Raw})
		}
	}

	var rawCRLs []asn1.RawValue
	for _, crl := range crls {
		rawCRLs = append(rawCRLs, asn1.RawValue{FullBytes: crl})
	}

	sd := signedData{
		Version: 1,
		DigestAlgorithms: []pkix.AlgorithmIdentifier{{
			Algorithm:  oidDigestAlgorithmSHA256,
			Parameters: asn1.RawValue{Tag: asn1.TagNull},
		}},
		EncapContentInfo: encapsulatedContentInfo{
			EContentType: oidData, // detached: no EContent
		},
		Certificates: certs,
		CRLs:         rawCRLs,
		SignerInfos:  []signerInfo{si},
	}

	sdBytes, err := asn1.Marshal(sd)
	if err != nil {
		return nil, fmt.Errorf("marshal signed data: %w", err)
	}

	return asn1.Marshal(contentInfo{
		ContentType: oidSignedData,
		Content: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      sdBytes,
		},
	})
}

// oidContentBytes returns the content octets of an encoded OID, without
// tag and length.
func oidContentBytes(oid asn1.ObjectIdentifier) []byte {
	b, _ := asn1.Marshal(oid)
	var raw asn1.RawValue
	asn1.Unmarshal(b, &raw)
	return raw.Bytes
}

// marshalAttributeSet encodes attrs as SET OF Attribute. A wrapper struct
// gets the SET tag emitted, then the outer SEQUENCE is stripped.
func marshalAttributeSet(attrs []attribute) ([]byte, error) {
	wrapper := struct {
		Attrs []attribute `asn1:"set"`
	}{Attrs: attrs}

	b, err := asn1.Marshal(wrapper)
	if err != nil {
		return nil, err
	}
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return raw.Bytes, nil
}
