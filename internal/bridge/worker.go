package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/recipeclip/agent/internal/config"
	"github.com/recipeclip/agent/internal/provider"
)

// rpc pairs a request with its reply channel. The caller's context rides
// along so network calls the worker makes on its behalf stay cancellable.
type rpc struct {
	ctx    context.Context
	req    *Request
	respCh chan *Response
}

// worker is the headless auth context: the only place the identity client
// runs. It owns the identity session between calls; that session lives and
// dies with the worker.
type worker struct {
	requests chan *rpc
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func startWorker(cfg *config.Config) *worker {
	w := &worker{
		requests: make(chan *rpc),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run(cfg)
	return w
}

func (w *worker) run(cfg *config.Config) {
	defer close(w.done)

	client := newIdentityClient(cfg)
	var session *sessionInfo

	for {
		select {
		case <-w.quit:
			return
		case call := <-w.requests:
			call.respCh <- handleRequest(call.ctx, client, &session, call.req)
		}
	}
}

// handleRequest serves one RPC. Every failure is reported in the Response;
// nothing escapes the worker as a panic.
func handleRequest(ctx context.Context, client *identityClient, session **sessionInfo, req *Request) *Response {
	resp := &Response{ID: req.ID}

	switch req.Kind {
	case KindCheckReady:
		resp.Success = true
		resp.Ready = true

	case KindSignInWithCredential:
		info, err := client.signInWithCredential(ctx, req.AccessToken)
		if err != nil {
			fillError(resp, err)
			return resp
		}
		*session = info
		fillSession(resp, info)

	case KindSignInWithEmail:
		info, err := client.signInWithPassword(ctx, req.Email, req.Password)
		if err != nil {
			fillError(resp, err)
			return resp
		}
		*session = info
		fillSession(resp, info)

	case KindSignOut:
		*session = nil
		resp.Success = true

	case KindRefreshToken:
		if *session == nil || (*session).RefreshToken == "" {
			resp.Error = "no identity session to refresh"
			resp.Reason = string(provider.ReasonInvalidCredential)
			return resp
		}
		info, err := client.refreshIDToken(ctx, (*session).RefreshToken)
		if err != nil {
			fillError(resp, err)
			return resp
		}
		(*session).IdentityToken = info.IdentityToken
		if info.RefreshToken != "" {
			(*session).RefreshToken = info.RefreshToken
		}
		fillSession(resp, *session)

	default:
		resp.Error = "unhandled bridge request kind"
	}

	return resp
}

func fillSession(resp *Response, info *sessionInfo) {
	resp.Success = true
	resp.UserID = info.UserID
	resp.Email = info.Email
	resp.DisplayName = info.DisplayName
	resp.PhotoURL = info.PhotoURL
	resp.IdentityToken = info.IdentityToken
	resp.RefreshToken = info.RefreshToken
	resp.ExpiresIn = info.ExpiresIn
}

func fillError(resp *Response, err error) {
	var authErr *provider.AuthError
	if errors.As(err, &authErr) {
		resp.Reason = string(authErr.Reason)
		resp.Error = authErr.Detail
		return
	}
	resp.Error = err.Error()
}

// call sends one request and waits for its reply or the caller's context.
func (w *worker) call(ctx context.Context, req *Request) (*Response, error) {
	r := &rpc{ctx: ctx, req: req, respCh: make(chan *Response, 1)}
	select {
	case w.requests <- r:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.done:
		return nil, ErrUnavailable
	}
	select {
	case resp := <-r.respCh:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.done:
		return nil, ErrUnavailable
	}
}

func (w *worker) stop() {
	w.stopOnce.Do(func() {
		close(w.quit)
	})
}
