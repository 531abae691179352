// Command asterisqued is a minimal daemon that wires a Dispatcher to a
// WebSocket listener: every inbound connection is upgraded, handshaked
// via Dispatcher.Bind, and left to route Opens against the configured
// service registry until the peer disconnects. Grounded on
// services/proxy/proxyd/main.go's flag-vars-plus-vlog.Fatal shape and
// services/build/buildd/main.go's http.Server-as-transport-listener
// pattern; signal-driven shutdown is plain os/signal since no signals
// helper package was retrieved alongside those commands in this pack.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/torao/asterisque-go/dispatch"
	"github.com/torao/asterisque-go/internal/config"
	"github.com/torao/asterisque-go/pipe"
	"github.com/torao/asterisque-go/transport/wswire"
	"github.com/torao/asterisque-go/value"
	"v.io/x/lib/vlog"
)

var opts config.Options

func init() {
	opts.RegisterFlags(flag.CommandLine)
}

func main() {
	flag.Parse()

	tlsConfig, err := loadTLSConfig(opts.Listen.CertFile, opts.Listen.KeyFile)
	if err != nil {
		vlog.Fatalf("asterisqued: loading TLS config: %v", err)
	}

	d := dispatch.New(uuid.New(), nil)
	if opts.Service.ServiceID != "" {
		d.Registry().Set(opts.Service.ServiceID, echoService)
	}
	vlog.Infof("asterisqued: node-id %v, advertising service %q", d.NodeID(), opts.Service.ServiceID)

	upgrader := wswire.NewUpgrader()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		wire, err := upgrader.Accept(w, r)
		if err != nil {
			vlog.Errorf("asterisqued: upgrade from %s failed: %v", r.RemoteAddr, err)
			return
		}
		go bind(d, wire)
	})

	server := &http.Server{
		Addr:      opts.Listen.Address,
		Handler:   mux,
		TLSConfig: tlsConfig,
	}
	go func() {
		var err error
		if tlsConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			vlog.Fatalf("asterisqued: serve failed: %v", err)
		}
	}()
	vlog.Infof("asterisqued: listening on %s", opts.Listen.Address)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	vlog.Info("asterisqued: shutting down")
	server.Shutdown(context.Background())
}

// loadTLSConfig returns nil, nil if certFile is empty: asterisqued then
// listens in the clear, which is fine for loopback development but not
// for a real deployment (spec §1 leaves the transport binding, and
// whether to require TLS, to the embedder).
func loadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

func bind(d *dispatch.Dispatcher, w *wswire.Wire) {
	ctx := context.Background()
	result, err := d.Bind(ctx, w, opts.Service.ServiceID, int32(opts.Session.PingSeconds), int32(opts.Session.TimeoutSeconds), nil)
	if err != nil {
		vlog.Errorf("asterisqued: handshake failed: %v", err)
		return
	}
	vlog.Infof("asterisqued: session %v bound to peer node %v advertising service %q", result.Session, result.RemoteNodeID, result.RemoteServiceID)
}

// echoService is the built-in smoke-test service registered under
// --service.id: function 10 echoes its first argument back, everything
// else fails FunctionUndefined. A real deployment registers its own
// session.Service implementations against d.Registry() instead.
func echoService(ctx context.Context, p *pipe.Pipe) (value.Value, *pipe.Abort) {
	switch p.FunctionID() {
	case 10:
		if len(p.Params()) == 0 {
			return value.Value{}, &pipe.Abort{Code: pipe.FunctionFailed, Message: "missing arg"}
		}
		return p.Params()[0], nil
	default:
		return value.Value{}, &pipe.Abort{Code: pipe.FunctionUndefined, Message: "function not found"}
	}
}
