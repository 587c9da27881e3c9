// internal/auth/state.go
package auth

// State is the authentication state of one session.
//
// Valid transitions:
//
//	Unauthenticated -> Authenticating -> Authenticated | Failed
//	Authenticated   -> Expired | LoggedOut
//	Expired         -> Authenticating (re-login)
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
	Expired
	Failed
	LoggedOut
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	case Failed:
		return "failed"
	case LoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// Usable reports whether the session may start new crawl work.
func (s State) Usable() bool {
	return s == Authenticated
}
