package types

// LoadModuleRequest represents a request to load module source
type LoadModuleRequest struct {
	Name   string `json:"name"`
	Source string `json:"source" binding:"required"`
}

// CookieRequest represents a cookie jar write
type CookieRequest struct {
	Origin string `json:"origin" binding:"required"`
	Value  string `json:"value" binding:"required"`
}

// ChallengeMessage is exchanged with a challenge solver over WebSocket.
// The host sends Type "challenge" with a Ticket and URL; the solver replies
// with Type "solved" and Headers, or Type "failed" and Error.
type ChallengeMessage struct {
	Type    string            `json:"type"`
	Ticket  string            `json:"ticket,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Challenge message types
const (
	ChallengeRequested = "challenge"
	ChallengeSolved    = "solved"
	ChallengeFailed    = "failed"
)
