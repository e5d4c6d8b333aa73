package portal

import "errors"

var (
	// ErrSessionExpired means the portal answered with its login page
	// (or a redirect to it) instead of data.
	ErrSessionExpired = errors.New("session expired")

	ErrBadCredentials = errors.New("bad credentials")
	ErrAccountLocked  = errors.New("account locked")
	ErrCaptcha        = errors.New("captcha rejected")
	ErrLoginFailed    = errors.New("login failed")
)

// LoginError carries the user-facing message scraped from the portal's
// login page alongside a sentinel kind for errors.Is dispatch.
type LoginError struct {
	Kind    error
	Message string
}

func (e *LoginError) Error() string {
	return e.Message
}

func (e *LoginError) Unwrap() error {
	return e.Kind
}
