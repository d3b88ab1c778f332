// Package backend is the agent's client for the RecipeClip API. Only the
// identity-adjacent endpoints live here; the recipe upload path has its own
// client elsewhere.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/recipeclip/agent/internal/config"
	"github.com/recipeclip/agent/internal/util"
	"github.com/tidwall/gjson"
)

// Client calls the RecipeClip backend with the user's identity token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a backend client using the configured base URL and proxy.
func New(cfg *config.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.Backend.BaseURL, "/"),
		httpClient: util.SetProxy(cfg, &http.Client{}),
	}
}

// StoreOAuthTokens forwards the user's OAuth token pair to the backend so it
// can perform Drive operations on the user's behalf later. Callers treat
// failure as non-fatal.
func (c *Client) StoreOAuthTokens(ctx context.Context, identityToken, accessToken, refreshToken string, expiresIn int64) error {
	payload := map[string]any{
		"accessToken": accessToken,
		"expiresIn":   expiresIn,
	}
	if refreshToken != "" {
		payload["refreshToken"] = refreshToken
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal token payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/user/oauth-tokens", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("failed to create token storage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+identityToken)

	return c.expectOK(req, "oauth token storage")
}

// EnsureProfile fetches the user profile, which creates it server-side on
// first sight. Callers treat failure as non-fatal.
func (c *Client) EnsureProfile(ctx context.Context, identityToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/user/profile", nil)
	if err != nil {
		return fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+identityToken)

	return c.expectOK(req, "profile verification")
}

func (c *Client) expectOK(req *http.Request, what string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", what, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(resp.Body)
	if message := gjson.GetBytes(raw, "error").String(); message != "" {
		return fmt.Errorf("%s failed with status %d: %s", what, resp.StatusCode, message)
	}
	return fmt.Errorf("%s failed with status %d", what, resp.StatusCode)
}
