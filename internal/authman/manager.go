// Package authman coordinates identity providers behind a single façade.
// It owns the persisted active-provider pointer and re-derives everything
// else from the store on each call; the process may be restarted between
// any two operations.
package authman

import (
	"context"
	"fmt"
	"sync"

	"github.com/recipeclip/agent/internal/provider"
	"github.com/recipeclip/agent/internal/store"
	log "github.com/sirupsen/logrus"
)

// DefaultProvider is the provider assumed when no pointer is persisted or
// the persisted one is stale.
const DefaultProvider = "google"

// ProviderInfo describes a registered provider for UI listings.
type ProviderInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// Status is the answer to a CheckAuthStatus call.
type Status struct {
	Authenticated bool
	Provider      string
	Profile       *provider.UserProfile
	Error         string
}

// Manager is the auth façade. A single mutex serializes the public
// operations; concurrent sign-in and refresh triggers would otherwise race
// on the store with last-write-wins semantics.
type Manager struct {
	mu       sync.Mutex
	store    store.Store
	registry *provider.Registry

	// current caches the active provider name between calls. It is a hint
	// only; every operation re-reads the persisted pointer.
	current string

	unsubscribe func()
}

// New constructs a manager and registers the given providers.
func New(st store.Store, providers ...provider.Provider) *Manager {
	m := &Manager{store: st, registry: provider.NewRegistry()}
	for _, p := range providers {
		m.registry.Register(p)
	}
	return m
}

// Providers lists the registered providers in registration order.
func (m *Manager) Providers() []ProviderInfo {
	names := m.registry.Names()
	infos := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		p, _ := m.registry.Lookup(name)
		infos = append(infos, ProviderInfo{Name: p.Name(), DisplayName: p.DisplayName()})
	}
	return infos
}

// SignIn delegates to the named provider and persists it as active on
// success. An unknown provider is rejected before any storage write.
func (m *Manager) SignIn(ctx context.Context, providerName string, creds *provider.Credentials) (*provider.SignInResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.registry.Lookup(providerName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", provider.ErrUnknownProvider, providerName)
	}

	result, err := p.SignIn(ctx, creds)
	if err != nil {
		return nil, err
	}

	if err = m.store.Set(ctx, map[string]string{store.KeyActiveProvider: providerName}); err != nil {
		return nil, err
	}
	m.current = providerName
	return result, nil
}

// SignOut delegates to the active provider and clears the active-provider
// pointer regardless of how the delegation went; the provider itself
// guarantees local-state clearing.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, _, err := m.activeProvider(ctx)
	if err != nil {
		return err
	}
	if p == nil {
		return provider.ErrNoActiveAuthentication
	}

	errSignOut := p.SignOut(ctx)
	if errRemove := m.store.Remove(ctx, store.KeyActiveProvider); errRemove != nil {
		log.Errorf("failed to clear active provider record: %v", errRemove)
	}
	m.current = ""
	return errSignOut
}

// CheckAuthStatus reports the current authentication state. Missing core
// identity fields report unauthenticated without error; a session the
// provider no longer vouches for is purged and reported as expired.
func (m *Manager) CheckAuthStatus(ctx context.Context) (*Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	values, err := m.store.Get(ctx, store.KeyUserID, store.KeyEmail, store.KeyIdentityToken, store.KeyActiveProvider)
	if err != nil {
		return nil, err
	}
	if values[store.KeyUserID] == "" || values[store.KeyEmail] == "" || values[store.KeyIdentityToken] == "" {
		return &Status{Authenticated: false}, nil
	}

	name := values[store.KeyActiveProvider]
	p, ok := m.registry.Lookup(name)
	if !ok {
		name = DefaultProvider
		if p, ok = m.registry.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: default provider %q not registered", provider.ErrUnknownProvider, DefaultProvider)
		}
	}

	profile, err := p.CurrentUser(ctx)
	if err != nil || profile == nil {
		if err != nil {
			log.Warnf("provider %s no longer reports a live user: %v", name, err)
		}
		m.purge(ctx)
		m.current = ""
		return &Status{Authenticated: false, Error: "Authentication expired"}, nil
	}

	m.current = name
	return &Status{Authenticated: true, Provider: name, Profile: profile}, nil
}

// CurrentUser returns the active provider's persisted profile, or nil when
// there is no active session.
func (m *Manager) CurrentUser(ctx context.Context) (*provider.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, _, err := m.activeProvider(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return p.CurrentUser(ctx)
}

// IDToken returns an identity token from the active provider.
func (m *Manager) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, _, err := m.activeProvider(ctx)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", provider.ErrNotAuthenticated
	}
	return p.IDToken(ctx, forceRefresh)
}

// SetupAuthStateListener resolves the persisted active provider (falling
// back to the default) and subscribes cb, first unsubscribing any prior
// listener so callbacks are never duplicated.
func (m *Manager) SetupAuthStateListener(ctx context.Context, cb func(*provider.UserProfile)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, _, err := m.activeProvider(ctx)
	if err != nil {
		return err
	}
	if p == nil {
		var ok bool
		if p, ok = m.registry.Lookup(DefaultProvider); !ok {
			return fmt.Errorf("%w: default provider %q not registered", provider.ErrUnknownProvider, DefaultProvider)
		}
	}

	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.unsubscribe = p.OnAuthStateChanged(cb)
	return nil
}

// activeProvider re-reads the persisted pointer and resolves it against the
// registry. A missing or unresolvable pointer yields (nil, "", nil).
func (m *Manager) activeProvider(ctx context.Context) (provider.Provider, string, error) {
	values, err := m.store.Get(ctx, store.KeyActiveProvider)
	if err != nil {
		return nil, "", err
	}
	name := values[store.KeyActiveProvider]
	if name == "" {
		return nil, "", nil
	}
	p, ok := m.registry.Lookup(name)
	if !ok {
		log.Warnf("persisted active provider %q is not registered", name)
		return nil, "", nil
	}
	return p, name, nil
}

func (m *Manager) purge(ctx context.Context) {
	keys := append([]string{}, store.IdentityKeys...)
	keys = append(keys, store.KeyActiveProvider)
	if err := m.store.Remove(ctx, keys...); err != nil {
		log.Errorf("failed to purge auth state: %v", err)
	}
}
