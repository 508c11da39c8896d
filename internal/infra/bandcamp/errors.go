package bandcamp

import "github.com/cockroachdb/errors"

// Error taxonomy for content-layer failures. Callers distinguish these with
// errors.Is: AuthExpired means re-login, Network means retry, Parse means the
// upstream payload was unusable, NotFound means the entity does not exist.
var (
	ErrAuthExpired = errors.New("authentication expired")
	ErrNetwork     = errors.New("network error")
	ErrParse       = errors.New("parse error")
	ErrNotFound    = errors.New("not found")
)
