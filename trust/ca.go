package trust

import (
	"crypto/x509"
	"time"
)

// TrustedCA is a certificate authority's chain (leaf-first, per spec
// §3) plus whatever CRLs it has published. Expiry is derived rather
// than stored: the anchor's NotBefore schedules when this CA's
// material should be refreshed (spec §3 "derived expiry = notBefore of
// the anchor").
type TrustedCA struct {
	Chain []*x509.Certificate // leaf-first; Chain[len-1] is the anchor
	CRLs  []*x509.RevocationList
}

// Anchor is the self-signed (or externally trusted) root of this CA's
// chain.
func (ca *TrustedCA) Anchor() *x509.Certificate {
	return ca.Chain[len(ca.Chain)-1]
}

// Expiry is the refresh-scheduling timestamp derived from the anchor's
// NotBefore (spec §3).
func (ca *TrustedCA) Expiry() time.Time {
	return ca.Anchor().NotBefore
}

// ChainsTo reports whether leaf is signed, directly or transitively,
// by this CA's chain, and that every certificate involved is currently
// within its validity window (spec §4.9 step 1).
func (ca *TrustedCA) ChainsTo(leaf *x509.Certificate, now time.Time) bool {
	pool := x509.NewCertPool()
	for _, c := range ca.Chain {
		pool.AddCert(c)
	}
	_, err := leaf.Verify(x509.VerifyOptions{Roots: pool, CurrentTime: now, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny}})
	return err == nil
}

// Revoked reports whether cert's serial number appears on any of this
// CA's CRLs (spec §4.9 step 3).
func (ca *TrustedCA) Revoked(cert *x509.Certificate) (revoked bool, serial string, at time.Time) {
	for _, crl := range ca.CRLs {
		for _, entry := range crl.RevokedCertificateEntries {
			if entry.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				return true, cert.SerialNumber.String(), entry.RevocationTime
			}
		}
	}
	return false, "", time.Time{}
}

// subjectKey is the fingerprint used to compare a chain certificate
// against the local blocked-set: the raw DER bytes, not a parsed name,
// since two distinct certs may share a subject (spec §4.9 step 4).
func subjectKey(cert *x509.Certificate) string {
	return string(cert.Raw)
}
