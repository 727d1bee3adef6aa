// Package provider defines the translation provider contract and the
// closed registry of provider implementations.
package provider

import (
	"context"

	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/i18n"
	"github.com/minios-linux/glosa/provider/builtin"
	"github.com/minios-linux/glosa/provider/ollama"
	"github.com/minios-linux/glosa/translate"
)

// Provider is one translation backend.
type Provider interface {
	// Initialize reads the provider's settings slice. It never panics; on
	// bad settings it installs safe defaults and returns the diagnostic.
	Initialize(cfg *config.Configuration) error
	Translate(ctx context.Context, req translate.Request) (translate.Output, error)
	// CheckStatus makes one round-trip to the live dependency.
	CheckStatus(ctx context.Context) translate.Status
}

// ModelStatusChecker is implemented by multi-model providers.
type ModelStatusChecker interface {
	CheckModelStatus(ctx context.Context, modelID string) translate.Status
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Kind enumerates the compiled-in providers.
type Kind int

const (
	KindOllama Kind = iota
	KindChromeAPI

	numKinds
)

// Deps are shared collaborators handed to every new provider.
type Deps struct {
	Engine *translate.Engine
}

// Factory builds an uninitialized provider.
type Factory func(Deps) Provider

var kinds = [numKinds]struct {
	id  string
	new Factory
}{
	KindOllama:    {config.BackendOllama, func(d Deps) Provider { return ollama.New(d.Engine) }},
	KindChromeAPI: {config.BackendChromeAPI, func(Deps) Provider { return builtin.New() }},
}

var byID = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		m[kinds[k].id] = k
	}
	return m
}()

var (
	_ Provider           = (*ollama.Provider)(nil)
	_ ModelStatusChecker = (*ollama.Provider)(nil)
	_ Provider           = (*builtin.Provider)(nil)
)

// String returns the backend identifier of k.
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "unknown"
	}
	return kinds[k].id
}

// Lookup maps a backend identifier to its Kind.
func Lookup(id string) (Kind, error) {
	k, ok := byID[id]
	if !ok {
		return 0, translate.NewError(translate.KindProviderNotRegistered,
			i18n.Tf("Backend %q is not available", id), nil)
	}
	return k, nil
}

// IDs returns every registered backend identifier in Kind order.
func IDs() []string {
	out := make([]string, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		out = append(out, kinds[k].id)
	}
	return out
}

// New builds a fresh, uninitialized provider of kind k.
func New(k Kind, deps Deps) Provider {
	return kinds[k].new(deps)
}

// Open looks up id, builds a fresh provider and initializes it with cfg.
// When Initialize fails the provider is still returned, usable but failing
// every request, together with the diagnostic.
func Open(id string, cfg *config.Configuration, deps Deps) (Provider, error) {
	k, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	p := New(k, deps)
	return p, p.Initialize(cfg)
}
