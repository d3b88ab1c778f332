package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/recipeclip/agent/internal/browser"
	"github.com/recipeclip/agent/internal/config"
	"github.com/recipeclip/agent/internal/misc"
	"github.com/recipeclip/agent/internal/provider"
	"github.com/recipeclip/agent/internal/util"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// oauthScopes is the fixed scope set: Drive file access plus basic profile.
var oauthScopes = []string{
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

const flowTimeout = 5 * time.Minute

// OAuthFlow obtains a platform OAuth access token. The default is a
// web-based flow with a local callback server; tests substitute stubs.
type OAuthFlow interface {
	// AcquireToken runs the flow. When interactive, the user's browser is
	// opened on the authorization page; otherwise the URL is only logged.
	AcquireToken(ctx context.Context, interactive bool) (*oauth2.Token, error)
}

// webFlow is the production flow: local callback server, browser launch,
// code-for-token exchange.
type webFlow struct {
	cfg *config.Config
}

func newWebFlow(cfg *config.Config) *webFlow {
	return &webFlow{cfg: cfg}
}

func (f *webFlow) AcquireToken(ctx context.Context, interactive bool) (*oauth2.Token, error) {
	proxyClient := util.SetProxy(f.cfg, &http.Client{})
	ctx = context.WithValue(ctx, oauth2.HTTPClient, proxyClient)

	conf := &oauth2.Config{
		ClientID:     f.cfg.GoogleOAuth.ClientID,
		ClientSecret: f.cfg.GoogleOAuth.ClientSecret,
		RedirectURL:  fmt.Sprintf("http://localhost:%d/oauth2callback", f.cfg.GoogleOAuth.CallbackPort),
		Scopes:       oauthScopes,
		Endpoint:     googleoauth.Endpoint,
	}

	state, err := misc.GenerateRandomState()
	if err != nil {
		return nil, err
	}

	codeChan := make(chan string)
	errChan := make(chan error)

	mux := http.NewServeMux()
	server := &http.Server{Addr: fmt.Sprintf(":%d", f.cfg.GoogleOAuth.CallbackPort), Handler: mux}

	mux.HandleFunc("/oauth2callback", func(w http.ResponseWriter, r *http.Request) {
		if errParam := r.URL.Query().Get("error"); errParam != "" {
			_, _ = fmt.Fprintf(w, "Authentication failed: %s", errParam)
			errChan <- &provider.AuthError{Reason: provider.ReasonCancelled, Detail: errParam}
			return
		}
		if r.URL.Query().Get("state") != state {
			_, _ = fmt.Fprint(w, "Authentication failed: state mismatch.")
			errChan <- &provider.AuthError{Reason: provider.ReasonInvalidCredential, Detail: "state mismatch in callback"}
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			_, _ = fmt.Fprint(w, "Authentication failed: code not found.")
			errChan <- &provider.AuthError{Reason: provider.ReasonCancelled, Detail: "code not found in callback"}
			return
		}
		_, _ = fmt.Fprint(w, "<html><body><h1>Authentication successful!</h1><p>You can close this window.</p></body></html>")
		codeChan <- code
	})

	go func() {
		if errServe := server.ListenAndServe(); !errors.Is(errServe, http.ErrServerClosed) {
			log.Errorf("OAuth callback server failed: %v", errServe)
		}
	}()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	if interactive {
		if errOpen := browser.OpenURL(authURL); errOpen != nil {
			log.Errorf("Failed to open browser: %v. Please open the URL manually.", errOpen)
		}
	}
	log.Debugf("Sign-in required. If the browser did not open, navigate to:\n\n%s\n", authURL)

	var authCode string
	select {
	case code := <-codeChan:
		authCode = code
	case err = <-errChan:
		_ = server.Shutdown(ctx)
		return nil, err
	case <-ctx.Done():
		_ = server.Shutdown(context.Background())
		return nil, &provider.AuthError{Reason: provider.ReasonCancelled, Detail: ctx.Err().Error()}
	case <-time.After(flowTimeout):
		_ = server.Shutdown(ctx)
		return nil, &provider.AuthError{Reason: provider.ReasonCancelled, Detail: "oauth flow timed out"}
	}

	if err = server.Shutdown(ctx); err != nil {
		log.Errorf("Failed to shut down callback server: %v", err)
	}

	token, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return nil, &provider.AuthError{Reason: provider.ReasonNetwork, Detail: fmt.Sprintf("failed to exchange token: %v", err)}
	}

	return token, nil
}
