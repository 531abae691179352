// Package trust implements the signed Envelope container and the
// TrustContext chain/CRL/blocklist verifier described in spec §4.9.
// Grounded on security/principal.go's ECDSA P-256 key-generation shape
// (newKey), lifted from that package's SHA-256-default signing to the
// spec's fixed sig_type=0 (SHA-512 + ECDSA + P1363).
package trust

import "fmt"

// CertificateError reports a TrustContext.Verify failure (spec §4.9,
// §7): the chain didn't validate, the leaf didn't chain to any
// TrustedCA, a cert was revoked, or a cert was locally blocked.
type CertificateError struct {
	Subject string
	Issuer  string
	Reason  string
	Serial  string // non-empty only for a revocation failure
	Revoked string // RFC3339 revocation date, non-empty only for a revocation failure
}

func (e *CertificateError) Error() string {
	msg := fmt.Sprintf("certificate error: subject=%q issuer=%q reason=%q", e.Subject, e.Issuer, e.Reason)
	if e.Serial != "" {
		msg += fmt.Sprintf(" serial=%s revoked=%s", e.Serial, e.Revoked)
	}
	return msg
}

// BreakageError reports an Envelope.Verify signature mismatch or an
// unrecognized sig_type (spec §4.9, §7 "BreakageError ... Caller
// decides").
type BreakageError struct {
	Reason string
}

func (e *BreakageError) Error() string { return "envelope verification failed: " + e.Reason }
