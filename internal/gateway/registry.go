package gateway

import (
	"net/http"
	"time"

	"checkout-service/internal/models"
)

// Options are shared by every adapter built by a Registry
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Registry holds the adapters of one checkout session, built from the
// enabled settings rows at the start of that session.
type Registry struct {
	gateways map[string]Gateway
	invalid  map[string]error
}

// NewRegistry builds adapters for every enabled provider. A provider whose
// row is enabled but unusable is remembered so Get can report why.
func NewRegistry(settings []models.GatewaySettings, opts Options) *Registry {
	r := &Registry{
		gateways: make(map[string]Gateway),
		invalid:  make(map[string]error),
	}

	var client httpDoer
	if opts.HTTPClient != nil {
		client = opts.HTTPClient
	}

	for _, s := range settings {
		if !s.Enabled {
			continue
		}

		var (
			gw  Gateway
			err error
		)
		switch s.ProviderID {
		case models.ProviderSSLCommerz:
			gw, err = NewSSLCommerz(s, client, opts.Timeout)
		case models.ProviderBkash:
			gw, err = NewBkash(s, client, opts.Timeout)
		default:
			continue
		}

		if err != nil {
			r.invalid[s.ProviderID] = err
			continue
		}
		r.gateways[s.ProviderID] = gw
	}
	return r
}

// Get returns the adapter for providerID, or a configuration error if the
// provider is unknown, disabled, or missing credentials.
func (r *Registry) Get(providerID string) (Gateway, error) {
	if gw, ok := r.gateways[providerID]; ok {
		return gw, nil
	}
	if err, ok := r.invalid[providerID]; ok {
		return nil, err
	}
	return nil, configError(providerID, providerID+" is not enabled")
}

// Providers lists the usable provider ids
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.gateways))
	for id := range r.gateways {
		out = append(out, id)
	}
	return out
}
