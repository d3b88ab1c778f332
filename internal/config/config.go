// Package config provides configuration management for the RecipeClip agent.
// It handles loading and parsing YAML configuration files, and provides structured
// access to application settings including the local API port, authentication
// storage directory, proxy configuration, and identity endpoints.
package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the agent's configuration, loaded from a YAML file.
type Config struct {
	// Port is the loopback port on which the local message API listens.
	Port int `yaml:"port"`

	// AuthDir is the directory where the authentication store is kept.
	AuthDir string `yaml:"auth-dir"`

	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug"`

	// LoggingToFile switches log output from stdout to rotating files.
	LoggingToFile bool `yaml:"logging-to-file"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url"`

	// AccessKey is the bcrypt hash of the key UI callers must present.
	// When empty, only loopback callers are accepted.
	AccessKey string `yaml:"access-key"`

	// AllowRemote permits non-loopback callers (still subject to AccessKey).
	AllowRemote bool `yaml:"allow-remote"`

	// Backend describes the RecipeClip API the agent uploads to.
	Backend Backend `yaml:"backend"`

	// Firebase holds the identity backend settings used by the auth bridge.
	Firebase Firebase `yaml:"firebase"`

	// GoogleOAuth holds the platform OAuth client used by the Google provider.
	GoogleOAuth GoogleOAuth `yaml:"google-oauth"`
}

// Backend describes the RecipeClip backend service endpoints.
type Backend struct {
	// BaseURL is the backend origin, e.g. "https://api.recipeclip.app".
	BaseURL string `yaml:"base-url"`
}

// Firebase holds Firebase Identity Toolkit settings.
type Firebase struct {
	// APIKey is the Firebase web API key.
	APIKey string `yaml:"api-key"`

	// Endpoint overrides the Identity Toolkit base URL. Empty means the
	// public Google endpoint; tests point this at a local fake.
	Endpoint string `yaml:"endpoint"`

	// TokenEndpoint overrides the secure token service base URL.
	TokenEndpoint string `yaml:"token-endpoint"`
}

// GoogleOAuth holds the OAuth client used to obtain platform access tokens.
type GoogleOAuth struct {
	// ClientID is the OAuth client identifier.
	ClientID string `yaml:"client-id"`

	// ClientSecret is the OAuth client secret.
	ClientSecret string `yaml:"client-secret"`

	// CallbackPort is the local port the authorization redirect lands on.
	CallbackPort int `yaml:"callback-port"`
}

// LoadConfig reads a YAML configuration file from the given path,
// unmarshals it into a Config struct, and returns it.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.GoogleOAuth.CallbackPort == 0 {
		config.GoogleOAuth.CallbackPort = 8786
	}

	return &config, nil
}

// ExpandAuthDir resolves a leading "~" in AuthDir against the user's home
// directory.
func (c *Config) ExpandAuthDir() error {
	if !strings.HasPrefix(c.AuthDir, "~") {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	parts := strings.Split(c.AuthDir, string(os.PathSeparator))
	if len(parts) > 1 {
		parts[0] = home
		c.AuthDir = path.Join(parts...)
	} else {
		c.AuthDir = home
	}
	return nil
}
