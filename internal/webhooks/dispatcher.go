// Package webhooks routes inbound ESP webhook traffic to family handlers.
//
// A family is one kind of webhook surface (delivery events, list changes)
// that a provider may support. The dispatcher owns the (provider, family)
// table; families own parsing and side effects.
package webhooks

import (
	"context"
	"net/http"
	"sort"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// FamilyHandler handles one webhook family for its supported providers.
type FamilyHandler interface {
	// Family names the handler, e.g. "email-stats".
	Family() string

	// SupportsProvider reports whether this family accepts traffic for the
	// provider.
	SupportsProvider(provider domain.Provider) bool

	// Get answers verification and health probes from the provider.
	Get(ctx context.Context, provider domain.Provider, query map[string]string) (int, any)

	// Post ingests one event delivery.
	Post(r *http.Request, provider domain.Provider) (int, any)
}

// Dispatcher routes (provider, family) pairs to registered handlers.
// Built once at startup and never mutated afterwards.
type Dispatcher struct {
	families map[string]FamilyHandler
}

// NewDispatcher creates a dispatcher over the given family handlers. Later
// handlers for the same family name replace earlier ones.
func NewDispatcher(handlers ...FamilyHandler) *Dispatcher {
	d := &Dispatcher{families: make(map[string]FamilyHandler, len(handlers))}
	for _, h := range handlers {
		d.families[h.Family()] = h
	}
	return d
}

// Families returns registered family names, sorted.
func (d *Dispatcher) Families() []string {
	out := make([]string, 0, len(d.families))
	for name := range d.families {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether the (provider, family) pair is routable.
func (d *Dispatcher) Supports(provider domain.Provider, family string) bool {
	h, ok := d.families[family]
	return ok && h.SupportsProvider(provider)
}

// EndpointsForProvider lists the families accepting traffic for a provider.
func (d *Dispatcher) EndpointsForProvider(provider domain.Provider) []string {
	var out []string
	for _, name := range d.Families() {
		if d.families[name].SupportsProvider(provider) {
			out = append(out, name)
		}
	}
	return out
}

// Handler resolves the family handler for a routable pair.
func (d *Dispatcher) Handler(provider domain.Provider, family string) (FamilyHandler, bool) {
	h, ok := d.families[family]
	if !ok || !h.SupportsProvider(provider) {
		return nil, false
	}
	return h, true
}
