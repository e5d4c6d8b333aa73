package models

import "time"

type SessionCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Session is a saved login for a portal or check-in account. Cookies hold
// whatever the remote host set, OpenID is only used by check-in sessions.
type Session struct {
	StudentID string          `json:"student_id"`
	Cookies   []SessionCookie `json:"cookies"`
	OpenID    string          `json:"open_id,omitempty"`
	UserName  string          `json:"user_name,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
