package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Router manages reply providers and routing
type Router struct {
	providers       map[string]Provider
	defaultProvider string
	mu              sync.RWMutex
}

// NewRouter creates a router with the echo provider registered
func NewRouter(defaultProvider string) *Router {
	if defaultProvider == "" {
		defaultProvider = EchoName
	}
	r := &Router{
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
	r.RegisterProvider(Echo{})
	return r
}

// RegisterProvider registers a reply provider
func (r *Router) RegisterProvider(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a provider by name
func (r *Router) GetProvider(name string) (Provider, error) {
	if name == "" {
		name = r.defaultProvider
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}

	if !p.IsConfigured() {
		return nil, fmt.Errorf("provider not configured: %s", name)
	}

	return p, nil
}

// ListProviders returns the sorted names of configured providers
func (r *Router) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var providers []string
	for name, p := range r.providers {
		if p.IsConfigured() {
			providers = append(providers, name)
		}
	}
	sort.Strings(providers)
	return providers
}

// DefaultProvider returns the default provider name
func (r *Router) DefaultProvider() string {
	return r.defaultProvider
}

// Reply generates a reply with the default provider. When that provider is
// missing, unconfigured or fails, the echo provider answers instead and the
// original error is returned alongside the reply.
func (r *Router) Reply(ctx context.Context, req Request, model string) (*Response, error) {
	p, err := r.GetProvider("")
	if err == nil {
		var resp *Response
		resp, err = p.Reply(ctx, req, model)
		if err == nil {
			resp.Text = CleanReply(req.BotName, resp.Text)
			if resp.Text != "" {
				return resp, nil
			}
			err = fmt.Errorf("%s returned an empty reply", p.Name())
		}
	}

	fallback, _ := Echo{}.Reply(ctx, req, "")
	return fallback, err
}
