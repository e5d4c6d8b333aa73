package checkin

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SopSession is the identity the check-in portal packs into the
// _sop_session_ JWT. OpenID and UserName live in the extra claim,
// which is a JSON document stored as a string inside the payload.
type SopSession struct {
	UID      string
	Ticket   string
	OpenID   string
	UserName string
}

// DecodeSopSession reads the claims out of a _sop_session_ token. The
// signing key is server-side only, so the signature is not checked,
// the token is trusted because it arrived over TLS from the portal.
func DecodeSopSession(token string) (*SopSession, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse _sop_session_ token: %w", err)
	}

	sess := &SopSession{}
	if uid, ok := claims["uid"].(string); ok {
		sess.UID = uid
	}
	if ticket, ok := claims["ticket"].(string); ok {
		sess.Ticket = ticket
	}
	if sess.UID == "" {
		return nil, fmt.Errorf("_sop_session_ token has no uid claim")
	}

	if extra, ok := claims["extra"].(string); ok && extra != "" {
		var inner struct {
			OpenID   string `json:"openId"`
			UserName string `json:"userName"`
		}
		if err := json.Unmarshal([]byte(extra), &inner); err == nil {
			sess.OpenID = inner.OpenID
			sess.UserName = inner.UserName
		}
	}
	return sess, nil
}
