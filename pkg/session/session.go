package session

import (
	"github.com/google/uuid"
)

// Mode tells whether a session belongs to a signed-in user.
type Mode string

const (
	Guest         Mode = "guest"
	Authenticated Mode = "authenticated"
)

// Session is the identity every cart, favorites and dashboard operation acts
// for. It is passed explicitly; nothing looks the token up behind the caller's
// back.
type Session struct {
	Mode    Mode   `json:"mode"`
	Token   string `json:"token,omitempty"`
	UserID  string `json:"userId,omitempty"`
	UniID   string `json:"uniId,omitempty"`
	GuestID string `json:"guestId,omitempty"`
}

// NewGuest starts a signed-out session with a fresh guest id.
func NewGuest() Session {
	return Session{Mode: Guest, GuestID: uuid.New().String()}
}

// NewAuthenticated builds a signed-in session.
func NewAuthenticated(token, userID string) Session {
	return Session{Mode: Authenticated, Token: token, UserID: userID}
}

// IsAuthenticated reports whether the session carries a token and a user id.
func (s Session) IsAuthenticated() bool {
	return s.Mode == Authenticated && s.Token != "" && s.UserID != ""
}

// Subject identifies the session owner in logs and storage keys.
func (s Session) Subject() string {
	if s.IsAuthenticated() {
		return "user:" + s.UserID
	}
	return "guest:" + s.GuestID
}
