// Package bridge hosts the Firebase identity client behind an asynchronous
// message channel. The agent's resident process never runs identity
// operations inline; it sends typed requests to a lazily created worker
// and waits for replies, so identity state lives in exactly one place.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/recipeclip/agent/internal/config"
	"github.com/recipeclip/agent/internal/provider"
	log "github.com/sirupsen/logrus"
)

// ErrUnavailable indicates the bridge context does not exist or has been
// torn down. Callers treat it as fatal during sign-in/refresh and as a
// skippable condition during sign-out.
var ErrUnavailable = errors.New("bridge: unavailable")

const (
	readyPollInitial = 50 * time.Millisecond
	readyPollMax     = 800 * time.Millisecond
	readyTimeout     = 5 * time.Second
)

// Bridge manages the worker context lifecycle and exposes the RPC surface
// providers use. A single Bridge serves the whole process.
type Bridge struct {
	cfg *config.Config

	mu     sync.Mutex
	worker *worker
}

// New constructs a bridge. No worker is created until first use.
func New(cfg *config.Config) *Bridge {
	return &Bridge{cfg: cfg}
}

// Ensure lazily creates the worker context and waits for its readiness
// signal, polling with exponential backoff under an overall deadline.
// Calling Ensure on an already-live bridge just re-observes readiness.
func (b *Bridge) Ensure(ctx context.Context) error {
	b.mu.Lock()
	if b.worker == nil {
		log.Debug("creating headless auth context")
		b.worker = startWorker(b.cfg)
	}
	w := b.worker
	b.mu.Unlock()

	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	interval := readyPollInitial
	for {
		resp, err := w.call(readyCtx, &Request{ID: uuid.NewString(), Kind: KindCheckReady})
		if err == nil && resp.Ready {
			return nil
		}
		select {
		case <-readyCtx.Done():
			return fmt.Errorf("bridge: context not ready within %s: %w", readyTimeout, ErrUnavailable)
		case <-time.After(interval):
		}
		interval *= 2
		if interval > readyPollMax {
			interval = readyPollMax
		}
	}
}

// Call sends one RPC to the worker context.
func (b *Bridge) Call(ctx context.Context, req *Request) (*Response, error) {
	b.mu.Lock()
	w := b.worker
	b.mu.Unlock()
	if w == nil {
		return nil, ErrUnavailable
	}
	return w.call(ctx, req)
}

// Close tears down the worker context. Closing an absent bridge is a no-op;
// teardown failures are not a thing callers need to handle.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.worker == nil {
		return
	}
	b.worker.stop()
	b.worker = nil
}

// SignInWithCredential implements provider.Bridge.
func (b *Bridge) SignInWithCredential(ctx context.Context, accessToken string) (*provider.SignInResult, error) {
	if err := b.Ensure(ctx); err != nil {
		return nil, err
	}
	resp, err := b.Call(ctx, &Request{ID: uuid.NewString(), Kind: KindSignInWithCredential, AccessToken: accessToken})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, responseError(resp)
	}
	return signInResult(resp), nil
}

// SignInWithEmail implements provider.Bridge.
func (b *Bridge) SignInWithEmail(ctx context.Context, email, password string) (*provider.SignInResult, error) {
	if err := b.Ensure(ctx); err != nil {
		return nil, err
	}
	resp, err := b.Call(ctx, &Request{ID: uuid.NewString(), Kind: KindSignInWithEmail, Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, responseError(resp)
	}
	return signInResult(resp), nil
}

// RefreshIDToken implements provider.Bridge.
func (b *Bridge) RefreshIDToken(ctx context.Context) (string, error) {
	if err := b.Ensure(ctx); err != nil {
		return "", err
	}
	resp, err := b.Call(ctx, &Request{ID: uuid.NewString(), Kind: KindRefreshToken})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", responseError(resp)
	}
	return resp.IdentityToken, nil
}

// SignOut implements provider.Bridge. Unlike sign-in, no worker is created
// when none exists; there is nothing to sign out of.
func (b *Bridge) SignOut(ctx context.Context) error {
	resp, err := b.Call(ctx, &Request{ID: uuid.NewString(), Kind: KindSignOut})
	if err != nil {
		return err
	}
	if !resp.Success {
		return responseError(resp)
	}
	return nil
}

// responseError reconstructs the typed error a worker reply carries.
func responseError(resp *Response) error {
	if resp.Reason != "" {
		return &provider.AuthError{Reason: provider.Reason(resp.Reason), Detail: resp.Error}
	}
	return errors.New(resp.Error)
}

func signInResult(resp *Response) *provider.SignInResult {
	return &provider.SignInResult{
		UserID:        resp.UserID,
		Email:         resp.Email,
		DisplayName:   resp.DisplayName,
		PhotoURL:      resp.PhotoURL,
		IdentityToken: resp.IdentityToken,
	}
}
