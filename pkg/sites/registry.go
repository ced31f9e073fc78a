package sites

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/httpclient"
)

// adapterRegistry implements AdapterRegistry.
type adapterRegistry struct {
	adaptersByID   map[string]Adapter
	adaptersByType map[string]Adapter
	mu             sync.RWMutex
}

// NewAdapterRegistry builds a registry for the provided adapter implementations keyed by site id.
func NewAdapterRegistry(adapters ...Adapter) AdapterRegistry {
	return NewTypeAdapterRegistry(nil, adapters...)
}

// NewTypeAdapterRegistry builds a registry with optional type-based adapters and site-specific adapters.
func NewTypeAdapterRegistry(typeAdapters map[string]Adapter, adapters ...Adapter) AdapterRegistry {
	reg := &adapterRegistry{
		adaptersByID:   make(map[string]Adapter),
		adaptersByType: make(map[string]Adapter),
	}

	for _, a := range adapters {
		reg.registerIDAdapter(a)
	}
	for typ, a := range typeAdapters {
		reg.registerTypeAdapter(typ, a)
	}

	return reg
}

func (r *adapterRegistry) registerIDAdapter(a Adapter) {
	if a == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(a.ID()))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.adaptersByID[key] = a
	r.mu.Unlock()
}

func (r *adapterRegistry) registerTypeAdapter(typ string, a Adapter) {
	if a == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.adaptersByType[key] = a
	r.mu.Unlock()
}

// AdapterFor selects the adapter for the given site based on its id or pagination type.
func (r *adapterRegistry) AdapterFor(site Site) (Adapter, error) {
	if r == nil {
		return nil, fmt.Errorf("adapter registry is nil")
	}
	if strings.TrimSpace(site.ID) == "" {
		return nil, fmt.Errorf("site id is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	idKey := strings.ToLower(strings.TrimSpace(site.ID))
	if a, ok := r.adaptersByID[idKey]; ok {
		return a, nil
	}

	typeKey := strings.ToLower(strings.TrimSpace(site.Type))
	if typeKey != "" {
		if a, ok := r.adaptersByType[typeKey]; ok {
			return a, nil
		}
	}

	return nil, fmt.Errorf("no adapter registered for site %q (type %q)", site.ID, site.Type)
}

// DefaultHTTPClient returns a tuned http client for site adapters.
func DefaultHTTPClient() HTTPClient {
	return httpclient.NewRestyClient(defaultTimeoutSeconds * time.Second)
}

// DefaultAdapterRegistry wires up the known job-board adapters.
func DefaultAdapterRegistry(client HTTPClient) AdapterRegistry {
	if client == nil {
		client = DefaultHTTPClient()
	}

	emploiSenegal := NewEmploiSenegalAdapter(client)
	emploiDakar := NewEmploiDakarAdapter(client)
	senjob := NewSenjobAdapter(client)
	offreEmploi := NewOffreEmploiAdapter(client)

	// Type fallbacks let a newly configured board reuse an adapter whose
	// pagination style matches.
	return NewTypeAdapterRegistry(map[string]Adapter{
		TypeSequentialPage:  emploiSenegal,
		TypeAjaxEnvelope:    emploiDakar,
		TypeDiscoveredToken: offreEmploi,
	}, emploiSenegal, emploiDakar, senjob, offreEmploi)
}
