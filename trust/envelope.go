package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"crypto/x509"
	"errors"
	"math/big"
)

// SigSHA512ECDSAP1363 is the only sig_type this module speaks (spec
// §4.9, §6): SHA-512 digest, ECDSA over P-256, signature encoded as
// fixed 64-byte P1363 (raw r||s, each 32 bytes big-endian) rather than
// Go's native ASN.1 DER. P-256 is what makes the fixed 64-byte length
// exact: r and s are each at most 32 bytes for that curve.
const SigSHA512ECDSAP1363 uint8 = 0

const p1363FieldWidth = 32

// Envelope is an authenticated, signed container around an arbitrary
// payload (spec §4.9).
type Envelope struct {
	Payload   []byte
	SigType   uint8
	Signature []byte
	Signer    *x509.Certificate
}

// Seal signs payload under signerKey and returns the resulting
// Envelope, carrying signerCert so a recipient can verify without an
// out-of-band certificate lookup.
func Seal(payload []byte, signerCert *x509.Certificate, signerKey *ecdsa.PrivateKey) (*Envelope, error) {
	digest := sha512.Sum512(payload)
	r, s, err := ecdsa.Sign(rand.Reader, signerKey, digest[:])
	if err != nil {
		return nil, err
	}
	sig, err := encodeP1363(r, s, signerKey.Curve)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Payload:   append([]byte(nil), payload...),
		SigType:   SigSHA512ECDSAP1363,
		Signature: sig,
		Signer:    signerCert,
	}, nil
}

// Verify recomputes the digest over e.Payload and checks e.Signature
// against e.Signer's public key. It fails with *BreakageError on any
// mismatch, on an unrecognized SigType, or on a non-ECDSA signer key
// (spec §4.9 "verify(): recompute and check; fail with BreakageError
// on mismatch or on an unknown algorithm id").
func (e *Envelope) Verify() error {
	if e.SigType != SigSHA512ECDSAP1363 {
		return &BreakageError{Reason: "unrecognized sig_type"}
	}
	pub, ok := e.Signer.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return &BreakageError{Reason: "signer certificate does not carry an ECDSA public key"}
	}
	r, s, err := decodeP1363(e.Signature, pub.Curve)
	if err != nil {
		return &BreakageError{Reason: err.Error()}
	}
	digest := sha512.Sum512(e.Payload)
	if !ecdsa.Verify(pub, digest[:], r, s) {
		return &BreakageError{Reason: "signature does not match payload"}
	}
	return nil
}

// encodeP1363 packs r and s into the fixed-width raw format: each
// field element padded to the curve's byte length, concatenated r||s.
// ecdsa.Sign returns r and s as big.Ints, so no ASN.1 DER step is
// involved; the packing is narrow enough (two big.Int, one curve) that no
// pack dependency covers it.
func encodeP1363(r, s *big.Int, curve elliptic.Curve) ([]byte, error) {
	width := (curve.Params().BitSize + 7) / 8
	out := make([]byte, 2*width)
	r.FillBytes(out[:width])
	s.FillBytes(out[width:])
	return out, nil
}

func decodeP1363(sig []byte, curve elliptic.Curve) (r, s *big.Int, err error) {
	width := (curve.Params().BitSize + 7) / 8
	if len(sig) != 2*width {
		return nil, nil, errShortSignature
	}
	r = new(big.Int).SetBytes(sig[:width])
	s = new(big.Int).SetBytes(sig[width:])
	return r, s, nil
}

var errShortSignature = errors.New("signature length does not match P1363 encoding for this curve")
