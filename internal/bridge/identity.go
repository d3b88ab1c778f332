package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/recipeclip/agent/internal/config"
	"github.com/recipeclip/agent/internal/provider"
	"github.com/recipeclip/agent/internal/util"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	defaultIdentityEndpoint    = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenEndpoint = "https://securetoken.googleapis.com/v1"
)

// identityClient talks to the Firebase Identity Toolkit and secure token
// REST services. It is only ever used from the bridge worker goroutine.
type identityClient struct {
	httpClient    *http.Client
	apiKey        string
	endpoint      string
	tokenEndpoint string
}

// sessionInfo is the identity session held by the worker between calls.
type sessionInfo struct {
	UserID        string
	Email         string
	DisplayName   string
	PhotoURL      string
	IdentityToken string
	RefreshToken  string
	ExpiresIn     int64
}

func newIdentityClient(cfg *config.Config) *identityClient {
	client := &identityClient{
		httpClient:    util.SetProxy(cfg, &http.Client{}),
		apiKey:        cfg.Firebase.APIKey,
		endpoint:      strings.TrimRight(cfg.Firebase.Endpoint, "/"),
		tokenEndpoint: strings.TrimRight(cfg.Firebase.TokenEndpoint, "/"),
	}
	if client.endpoint == "" {
		client.endpoint = defaultIdentityEndpoint
	}
	if client.tokenEndpoint == "" {
		client.tokenEndpoint = defaultSecureTokenEndpoint
	}
	return client
}

// signInWithCredential exchanges a Google OAuth access token for an identity
// session via accounts:signInWithIdp.
func (c *identityClient) signInWithCredential(ctx context.Context, accessToken string) (*sessionInfo, error) {
	body, _ := sjson.Set("", "postBody", fmt.Sprintf("access_token=%s&providerId=google.com", accessToken))
	body, _ = sjson.Set(body, "requestUri", "http://localhost")
	body, _ = sjson.Set(body, "returnSecureToken", true)
	body, _ = sjson.Set(body, "returnIdpCredential", true)

	raw, err := c.postJSON(ctx, c.endpoint+"/accounts:signInWithIdp", body)
	if err != nil {
		return nil, err
	}
	return parseSignInResponse(raw), nil
}

// signInWithPassword signs in directly via accounts:signInWithPassword.
func (c *identityClient) signInWithPassword(ctx context.Context, email, password string) (*sessionInfo, error) {
	body, _ := sjson.Set("", "email", email)
	body, _ = sjson.Set(body, "password", password)
	body, _ = sjson.Set(body, "returnSecureToken", true)

	raw, err := c.postJSON(ctx, c.endpoint+"/accounts:signInWithPassword", body)
	if err != nil {
		return nil, err
	}
	return parseSignInResponse(raw), nil
}

// refreshIDToken trades a refresh token for a fresh identity token via the
// secure token service.
func (c *identityClient) refreshIDToken(ctx context.Context, refreshToken string) (*sessionInfo, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint+"/token?key="+url.QueryEscape(c.apiKey), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return &sessionInfo{
		UserID:        gjson.GetBytes(raw, "user_id").String(),
		IdentityToken: gjson.GetBytes(raw, "id_token").String(),
		RefreshToken:  gjson.GetBytes(raw, "refresh_token").String(),
		ExpiresIn:     gjson.GetBytes(raw, "expires_in").Int(),
	}, nil
}

func (c *identityClient) postJSON(ctx context.Context, endpoint, body string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(c.apiKey), strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create identity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *identityClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &provider.AuthError{Reason: provider.ReasonNetwork, Detail: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.AuthError{Reason: provider.ReasonNetwork, Detail: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapIdentityError(resp.StatusCode, raw)
	}
	return raw, nil
}

func parseSignInResponse(raw []byte) *sessionInfo {
	return &sessionInfo{
		UserID:        gjson.GetBytes(raw, "localId").String(),
		Email:         gjson.GetBytes(raw, "email").String(),
		DisplayName:   gjson.GetBytes(raw, "displayName").String(),
		PhotoURL:      gjson.GetBytes(raw, "photoUrl").String(),
		IdentityToken: gjson.GetBytes(raw, "idToken").String(),
		RefreshToken:  gjson.GetBytes(raw, "refreshToken").String(),
		ExpiresIn:     gjson.GetBytes(raw, "expiresIn").Int(),
	}
}

// mapIdentityError translates Identity Toolkit error codes onto the
// provider error taxonomy.
func mapIdentityError(status int, raw []byte) error {
	code := gjson.GetBytes(raw, "error.message").String()
	switch {
	case strings.HasPrefix(code, "INVALID_PASSWORD"),
		strings.HasPrefix(code, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(code, "INVALID_LOGIN_CREDENTIALS"),
		strings.HasPrefix(code, "INVALID_IDP_RESPONSE"),
		strings.HasPrefix(code, "USER_DISABLED"),
		strings.HasPrefix(code, "TOKEN_EXPIRED"),
		strings.HasPrefix(code, "INVALID_REFRESH_TOKEN"):
		return &provider.AuthError{Reason: provider.ReasonInvalidCredential, Detail: code}
	case strings.HasPrefix(code, "TOO_MANY_ATTEMPTS_TRY_LATER"),
		strings.HasPrefix(code, "QUOTA_EXCEEDED"):
		return &provider.AuthError{Reason: provider.ReasonRateLimited, Detail: code}
	case strings.HasPrefix(code, "OPERATION_NOT_ALLOWED"),
		strings.HasPrefix(code, "UNAUTHORIZED_DOMAIN"):
		return &provider.AuthError{Reason: provider.ReasonUnauthorizedDomain, Detail: code}
	case code != "":
		return &provider.AuthError{Reason: provider.ReasonNetwork, Detail: code}
	default:
		return &provider.AuthError{Reason: provider.ReasonNetwork, Detail: fmt.Sprintf("identity request failed with status %d", status)}
	}
}
