package models

import "time"

// User is an authenticated identity
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// Session is a stored auth session
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// ExpiredAt reports whether the access token is past its expiry at t.
// A zero expiry never expires.
func (s *Session) ExpiredAt(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && !t.Before(s.ExpiresAt)
}

// AuthEventType names an auth state change
type AuthEventType string

const (
	AuthSignedIn       AuthEventType = "SIGNED_IN"
	AuthSignedOut      AuthEventType = "SIGNED_OUT"
	AuthTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
	AuthUserUpdated    AuthEventType = "USER_UPDATED"
)

// AuthEvent is delivered to auth-change subscribers
type AuthEvent struct {
	Type    AuthEventType `json:"type"`
	Session *Session      `json:"session,omitempty"`
	At      time.Time     `json:"at"`
}

// EventUser returns the session user carried by the event, or nil
func (e AuthEvent) EventUser() *User {
	if e.Type == AuthSignedOut || e.Session == nil {
		return nil
	}
	return e.Session.User
}
