package dispatch

import (
	"sync"

	"github.com/torao/asterisque-go/session"
)

// Registry is the node-wide service_id -> session.Service table (spec
// §4.8). It is read far more often than written (every inbound Open
// looks a service up, registration happens rarely), so it is backed by
// sync.Map rather than a mutex-guarded map, matching the "concurrent
// reads without locking" shared-mutable-state guidance the spec calls
// out for the Dispatcher's registry.
type Registry struct {
	services sync.Map // string -> session.Service
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Set installs svc under serviceID, replacing any previous registration.
func (r *Registry) Set(serviceID string, svc session.Service) {
	r.services.Store(serviceID, svc)
}

// Get looks up the Service registered under serviceID.
func (r *Registry) Get(serviceID string) (session.Service, bool) {
	v, ok := r.services.Load(serviceID)
	if !ok {
		return nil, false
	}
	return v.(session.Service), true
}

// Remove unregisters serviceID, if present.
func (r *Registry) Remove(serviceID string) {
	r.services.Delete(serviceID)
}
