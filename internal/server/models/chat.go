package models

import "time"

// Chat links exactly two distinct users. The pair is stored normalised
// (UserLo < UserHi lexicographically) so uniqueness is order-independent.
type Chat struct {
	ID        string
	UserLo    string
	UserHi    string
	CreatedAt time.Time
}

// HasParticipant reports whether userID is one of the two chat members.
func (c *Chat) HasParticipant(userID string) bool {
	return c.UserLo == userID || c.UserHi == userID
}

// OtherParticipant returns the peer of userID, or "" if userID is not a
// participant.
func (c *Chat) OtherParticipant(userID string) string {
	switch userID {
	case c.UserLo:
		return c.UserHi
	case c.UserHi:
		return c.UserLo
	}
	return ""
}

// NormalizePair orders two user ids into the canonical (lo, hi) form.
func NormalizePair(a, b string) (lo, hi string) {
	if a < b {
		return a, b
	}
	return b, a
}
