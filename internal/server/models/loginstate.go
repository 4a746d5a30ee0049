package models

import "time"

// LoginState is the ephemeral server half of one login attempt. At most one
// live row exists per (username, email); it is deleted at login-finish or
// reaped after its TTL.
type LoginState struct {
	ID        string
	Username  string
	Email     string
	State     []byte
	CreatedAt time.Time
}

// ExpiredAt reports whether the state is past its TTL at the given instant.
// An expired state must behave exactly as if it were absent.
func (s *LoginState) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}
