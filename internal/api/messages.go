package api

import "github.com/recipeclip/agent/internal/provider"

// MessageType is the closed set of messages UI callers may send. Handling
// is an exhaustive switch; new types must be added there or they are
// rejected, never silently dropped.
type MessageType string

const (
	MessageSignIn          MessageType = "SignInRequest"
	MessageCheckAuthStatus MessageType = "CheckAuthStatus"
	MessageSignOut         MessageType = "SignOut"
	MessageGetIDToken      MessageType = "GetIdToken"
	MessageGetCurrentUser  MessageType = "GetCurrentUser"
	MessageListProviders   MessageType = "ListProviders"
)

// Message is the request envelope from UI callers.
type Message struct {
	Type         MessageType           `json:"type"`
	Provider     string                `json:"provider,omitempty"`
	Credentials  *provider.Credentials `json:"credentials,omitempty"`
	ForceRefresh bool                  `json:"forceRefresh,omitempty"`
}
