package bridge

// Kind enumerates the RPCs the bridge worker understands. The worker
// dispatches on Kind with an exhaustive switch; an unknown kind comes back
// as a failed Response, never a dropped message.
type Kind int

const (
	KindCheckReady Kind = iota
	KindSignInWithCredential
	KindSignInWithEmail
	KindSignOut
	KindRefreshToken
)

func (k Kind) String() string {
	switch k {
	case KindCheckReady:
		return "check-ready"
	case KindSignInWithCredential:
		return "sign-in-with-credential"
	case KindSignInWithEmail:
		return "sign-in-with-email"
	case KindSignOut:
		return "sign-out"
	case KindRefreshToken:
		return "refresh-token"
	default:
		return "unknown"
	}
}

// Request is one message to the bridge worker. ID correlates the reply.
type Request struct {
	ID   string
	Kind Kind

	// AccessToken is set for KindSignInWithCredential.
	AccessToken string

	// Email and Password are set for KindSignInWithEmail.
	Email    string
	Password string
}

// Response is the worker's reply. Failures are carried in Error/Reason;
// nothing ever panics or throws across the channel boundary.
type Response struct {
	ID      string
	Success bool
	Error   string
	Reason  string

	// Ready answers KindCheckReady.
	Ready bool

	// Session payload for sign-in and refresh replies.
	UserID        string
	Email         string
	DisplayName   string
	PhotoURL      string
	IdentityToken string
	RefreshToken  string
	ExpiresIn     int64
}
