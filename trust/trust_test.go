package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

func genKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key
}

func selfSignedCA(t *testing.T, cn string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key := genKey(t)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Unix(0, 0),
		NotAfter:              time.Unix(0, 0).AddDate(50, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate(CA): %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate(CA): %v", err)
	}
	return cert, key
}

func issueLeaf(t *testing.T, serial int64, ca *x509.Certificate, caKey *ecdsa.PrivateKey) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key := genKey(t)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: "leaf"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).AddDate(50, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca, &key.PublicKey, caKey)
	if err != nil {
		t.Fatalf("CreateCertificate(leaf): %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate(leaf): %v", err)
	}
	return cert, key
}

func TestEnvelopeSealVerifyRoundTrip(t *testing.T) {
	ca, caKey := selfSignedCA(t, "root")
	leaf, leafKey := issueLeaf(t, 2, ca, caKey)

	env, err := Seal([]byte("hello pipe"), leaf, leafKey)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := env.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(env.Signature) != 64 {
		t.Fatalf("expected a 64-byte P1363 signature, got %d", len(env.Signature))
	}

	mutatedPayload := *env
	mutatedPayload.Payload = append([]byte(nil), env.Payload...)
	mutatedPayload.Payload[0] ^= 0xFF
	if err := mutatedPayload.Verify(); err == nil {
		t.Fatal("expected Verify to fail after mutating the payload")
	}

	mutatedSig := *env
	mutatedSig.Signature = append([]byte(nil), env.Signature...)
	mutatedSig.Signature[0] ^= 0xFF
	if err := mutatedSig.Verify(); err == nil {
		t.Fatal("expected Verify to fail after mutating the signature")
	}
}

func TestEnvelopeVerifyRejectsUnknownSigType(t *testing.T) {
	ca, caKey := selfSignedCA(t, "root")
	leaf, leafKey := issueLeaf(t, 2, ca, caKey)
	env, err := Seal([]byte("x"), leaf, leafKey)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	env.SigType = 9
	if err := env.Verify(); err == nil {
		t.Fatal("expected Verify to reject an unrecognized sig_type")
	}
}

func TestTrustContextVerifyAcceptsChainedLeaf(t *testing.T) {
	ca, caKey := selfSignedCA(t, "root")
	leaf, _ := issueLeaf(t, 2, ca, caKey)

	tc := NewTrustContext()
	tc.AddCA(&TrustedCA{Chain: []*x509.Certificate{ca}})

	if err := tc.Verify([]*x509.Certificate{leaf}, time.Unix(0, 0).AddDate(1, 0, 0)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestTrustContextVerifyRejectsUnknownCA(t *testing.T) {
	ca, caKey := selfSignedCA(t, "root")
	leaf, _ := issueLeaf(t, 2, ca, caKey)

	otherCA, _ := selfSignedCA(t, "other-root")
	tc := NewTrustContext()
	tc.AddCA(&TrustedCA{Chain: []*x509.Certificate{otherCA}})

	err := tc.Verify([]*x509.Certificate{leaf}, time.Unix(0, 0).AddDate(1, 0, 0))
	if _, ok := err.(*CertificateError); !ok {
		t.Fatalf("expected *CertificateError, got %v", err)
	}
}

func TestTrustContextVerifyRejectsBlocked(t *testing.T) {
	ca, caKey := selfSignedCA(t, "root")
	leaf, _ := issueLeaf(t, 2, ca, caKey)

	tc := NewTrustContext()
	tc.AddCA(&TrustedCA{Chain: []*x509.Certificate{ca}})
	tc.Block(leaf)

	err := tc.Verify([]*x509.Certificate{leaf}, time.Unix(0, 0).AddDate(1, 0, 0))
	ce, ok := err.(*CertificateError)
	if !ok || ce.Reason != "certificate is locally blocked" {
		t.Fatalf("expected a blocked-certificate error, got %v", err)
	}
}

func TestTrustContextVerifyRejectsRevoked(t *testing.T) {
	ca, caKey := selfSignedCA(t, "root")
	leaf, _ := issueLeaf(t, 2, ca, caKey)

	crlTmpl := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Unix(0, 0),
		NextUpdate: time.Unix(0, 0).AddDate(1, 0, 0),
		RevokedCertificateEntries: []x509.RevocationListEntry{
			{SerialNumber: leaf.SerialNumber, RevocationTime: time.Unix(0, 0)},
		},
	}
	der, err := x509.CreateRevocationList(rand.Reader, crlTmpl, ca, caKey)
	if err != nil {
		t.Fatalf("CreateRevocationList: %v", err)
	}
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		t.Fatalf("ParseRevocationList: %v", err)
	}

	tc := NewTrustContext()
	tc.AddCA(&TrustedCA{Chain: []*x509.Certificate{ca}, CRLs: []*x509.RevocationList{crl}})

	err = tc.Verify([]*x509.Certificate{leaf}, time.Unix(0, 0).AddDate(1, 0, 0))
	ce, ok := err.(*CertificateError)
	if !ok || ce.Serial == "" {
		t.Fatalf("expected a revocation error with a serial, got %v", err)
	}
}
