package session

// StateKind enumerates the session states published by the Controller.
type StateKind int

const (
	Unauthenticated StateKind = iota
	Authenticating
	Authenticated
	Failed
)

func (k StateKind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reasons that describe normal conditions rather than errors.
const (
	ReasonNotSignedIn   = "User not signed in"
	ReasonSignedOut     = "User signed out"
	ReasonNoProfileData = "User data not found"
)

// State is a snapshot of the process session. Profile is set only for
// Authenticated; Reason is set for Failed and optionally for Unauthenticated.
type State struct {
	Kind    StateKind
	Profile *Profile
	Reason  string
}

// Informational reports whether the reason is a normal condition that
// presentation code should not display as an error.
func (s State) Informational() bool {
	return s.Reason == ReasonNotSignedIn || s.Reason == ReasonSignedOut
}

func stateUnauthenticated(reason string) State {
	return State{Kind: Unauthenticated, Reason: reason}
}

func stateAuthenticated(p Profile) State {
	return State{Kind: Authenticated, Profile: &p}
}

func stateFailed(reason string) State {
	return State{Kind: Failed, Reason: reason}
}
