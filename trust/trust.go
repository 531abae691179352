package trust

import (
	"crypto/x509"
	"sync"
	"time"
)

// TrustContext holds the registered TrustedCA set and the local
// block-list, and verifies peer certificate chains against both (spec
// §4.9). Verify takes mu only long enough to copy cas and blocked, and
// runs its checks on that copy without holding the lock (the periodic
// re-verification cache itself is left to the TLS-stack adapter, an
// external collaborator per §4.9's closing sentence).
type TrustContext struct {
	mu      sync.Mutex
	cas     []*TrustedCA
	blocked map[string]struct{}
}

// NewTrustContext returns an empty TrustContext.
func NewTrustContext() *TrustContext {
	return &TrustContext{blocked: make(map[string]struct{})}
}

// AddCA registers ca as a trust anchor.
func (tc *TrustContext) AddCA(ca *TrustedCA) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.cas = append(tc.cas, ca)
}

// Block adds cert to the local blocked-set, overriding any CA chain
// that would otherwise accept it (spec §4.9 step 4).
func (tc *TrustContext) Block(cert *x509.Certificate) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.blocked[subjectKey(cert)] = struct{}{}
}

func (tc *TrustContext) snapshot() ([]*TrustedCA, map[string]struct{}) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	cas := append([]*TrustedCA(nil), tc.cas...)
	blocked := make(map[string]struct{}, len(tc.blocked))
	for k := range tc.blocked {
		blocked[k] = struct{}{}
	}
	return cas, blocked
}

// Verify runs the four-step check in spec §4.9 against chain
// (leaf-first): internal chain structure, membership under some
// registered TrustedCA, no CRL entry, no local block. now lets tests
// pin the validity-window check; production callers pass time.Now().
func (tc *TrustContext) Verify(chain []*x509.Certificate, now time.Time) error {
	if len(chain) == 0 {
		return &CertificateError{Reason: "empty certificate chain"}
	}
	leaf := chain[0]
	cas, blocked := tc.snapshot()

	for _, cert := range chain {
		if _, isBlocked := blocked[subjectKey(cert)]; isBlocked {
			return &CertificateError{
				Subject: cert.Subject.String(),
				Issuer:  cert.Issuer.String(),
				Reason:  "certificate is locally blocked",
			}
		}
	}

	var matched *TrustedCA
	for _, ca := range cas {
		if ca.ChainsTo(leaf, now) {
			matched = ca
			break
		}
	}
	if matched == nil {
		return &CertificateError{
			Subject: leaf.Subject.String(),
			Issuer:  leaf.Issuer.String(),
			Reason:  "leaf does not chain to any registered trusted CA",
		}
	}

	for _, cert := range chain {
		if revoked, serial, at := matched.Revoked(cert); revoked {
			return &CertificateError{
				Subject: cert.Subject.String(),
				Issuer:  cert.Issuer.String(),
				Reason:  "certificate is present in a trusted CA's CRL",
				Serial:  serial,
				Revoked: at.Format(time.RFC3339),
			}
		}
	}
	return nil
}
