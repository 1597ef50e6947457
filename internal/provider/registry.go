package provider

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/translatd/translatd/internal/config"
	log "github.com/translatd/translatd/internal/logging"
	"github.com/translatd/translatd/internal/resilience"
)

// Vendor is one configured provider with its ordered credential list.
type Vendor struct {
	cfg  config.Provider
	name string
	keys []string

	factory Factory

	mu      sync.Mutex
	clients []Client

	breaker *resilience.CircuitBreaker
	limiter *rate.Limiter
}

func newVendor(cfg config.Provider, factory Factory) *Vendor {
	keys := cfg.GetAPIKeys()
	v := &Vendor{
		cfg:     cfg,
		name:    cfg.GetDisplayName(),
		keys:    keys,
		factory: factory,
		clients: make([]Client, len(keys)),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultBreakerConfig(cfg.GetDisplayName())),
	}
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.RequestsPerMinute / 4
		if burst < 1 {
			burst = 1
		}
		v.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	return v
}

func (v *Vendor) Name() string { return v.name }

func (v *Vendor) Type() config.ProviderType { return v.cfg.Type }

func (v *Vendor) Credentials() int { return len(v.keys) }

func (v *Vendor) FallbackModels() []string { return slices.Clone(v.cfg.FallbackModels) }

// clientAt lazily builds and caches the client for credential i, so keys the
// failover never reaches cost nothing.
func (v *Vendor) clientAt(ctx context.Context, i int) (Client, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.clients[i] != nil {
		return v.clients[i], nil
	}
	client, err := v.factory(ctx, v.cfg, v.keys[i])
	if err != nil {
		return nil, err
	}
	v.clients[i] = client
	return client, nil
}

// forEachCredential walks the credential list in configured order. Credential
// rejections move on to the next key; any other failure aborts the walk, since
// it would repeat identically for every key.
func (v *Vendor) forEachCredential(ctx context.Context, op string, fn func(Client) error) error {
	if len(v.keys) == 0 {
		return NewError(CodeProviderAuth, fmt.Sprintf("provider %q has no credentials configured", v.name), statusFor(CodeProviderAuth))
	}

	var lastErr *Error
	for i := range v.keys {
		client, errBuild := v.clientAt(ctx, i)
		if errBuild != nil {
			log.WithError(errBuild).Warnf("provider %s: building client for credential %d/%d failed", v.name, i+1, len(v.keys))
			lastErr = Classify(errBuild)
			continue
		}

		errCall := fn(client)
		if errCall == nil {
			return nil
		}

		relayErr := Classify(errCall)
		log.WithError(errCall).Warnf("provider %s: %s with credential %d/%d failed: %s",
			v.name, op, i+1, len(v.keys), ErrorDetail(errCall))
		if relayErr.Code != CodeProviderAuth {
			return relayErr
		}
		lastErr = relayErr
	}
	return lastErr
}

func (v *Vendor) translate(ctx context.Context, req TranslateRequest) (TranslateResult, error) {
	if v.limiter != nil && !v.limiter.Allow() {
		return TranslateResult{}, NewError(CodeProviderRateLimited,
			fmt.Sprintf("request pacing for provider %q exceeded", v.name), statusFor(CodeProviderRateLimited))
	}

	var result TranslateResult
	err := v.forEachCredential(ctx, "translate", func(client Client) error {
		r, errCall := client.Translate(ctx, req)
		if errCall != nil {
			return errCall
		}
		result = r
		return nil
	})
	if err != nil {
		return TranslateResult{}, err
	}
	return result, nil
}

func (v *Vendor) listModels(ctx context.Context) ([]Model, error) {
	if v.breaker.State() == gobreaker.StateOpen {
		return nil, Classify(gobreaker.ErrOpenState)
	}

	out, err := v.breaker.Execute(func() (any, error) {
		var models []Model
		errWalk := v.forEachCredential(ctx, "list models", func(client Client) error {
			m, errCall := client.ListModels(ctx)
			if errCall != nil {
				return errCall
			}
			models = m
			return nil
		})
		return models, errWalk
	})
	if err != nil {
		return nil, Classify(err)
	}
	return out.([]Model), nil
}

// VendorInfo is the provider metadata served by the management surface.
type VendorInfo struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Credentials    int      `json:"credentials"`
	FallbackModels []string `json:"fallback_models,omitempty"`
	CatalogueState string   `json:"catalogue_state"`
}

// Registry holds the configured vendors in file order and routes calls by
// provider name.
type Registry struct {
	vendors map[string]*Vendor
	order   []string
	sf      singleflight.Group
}

// NewRegistry builds vendors in configuration order. A nil factory uses the
// real SDK clients.
func NewRegistry(providers []config.Provider, factory Factory) *Registry {
	if factory == nil {
		factory = NewClient
	}
	r := &Registry{vendors: make(map[string]*Vendor, len(providers))}
	for _, cfg := range providers {
		v := newVendor(cfg, factory)
		if _, dup := r.vendors[v.name]; dup {
			log.Warnf("provider %q configured twice, keeping the first entry", v.name)
			continue
		}
		r.vendors[v.name] = v
		r.order = append(r.order, v.name)
	}
	return r
}

// Names returns the vendor display names in configuration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

func (r *Registry) Vendor(name string) (*Vendor, bool) {
	v, ok := r.vendors[name]
	return v, ok
}

// Vendors returns display metadata in configuration order.
func (r *Registry) Vendors() []VendorInfo {
	infos := make([]VendorInfo, 0, len(r.order))
	for _, name := range r.order {
		v := r.vendors[name]
		infos = append(infos, VendorInfo{
			Name:           v.name,
			Type:           string(v.cfg.Type),
			Credentials:    len(v.keys),
			FallbackModels: slices.Clone(v.cfg.FallbackModels),
			CatalogueState: v.breaker.State().String(),
		})
	}
	return infos
}

// Translate routes one translation to the named vendor, walking its
// credentials in order. There is no automatic retry.
func (r *Registry) Translate(ctx context.Context, name string, req TranslateRequest) (TranslateResult, error) {
	v, ok := r.vendors[name]
	if !ok {
		return TranslateResult{}, NewError(CodeInvalidRequest, fmt.Sprintf("unknown provider %q", name), statusFor(CodeInvalidRequest))
	}
	return v.translate(ctx, req)
}

// ListModels fetches the vendor catalogue. Concurrent fetches for the same
// vendor share one upstream call.
func (r *Registry) ListModels(ctx context.Context, name string) ([]Model, error) {
	v, ok := r.vendors[name]
	if !ok {
		return nil, NewError(CodeInvalidRequest, fmt.Sprintf("unknown provider %q", name), statusFor(CodeInvalidRequest))
	}
	out, err, _ := r.sf.Do(v.name, func() (any, error) {
		return v.listModels(ctx)
	})
	if err != nil {
		return nil, Classify(err)
	}
	return out.([]Model), nil
}
