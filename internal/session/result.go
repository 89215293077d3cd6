package session

// ErrorKind classifies a failed operation.
type ErrorKind int

const (
	// ProviderError covers credential and network failures from the identity provider.
	ProviderError ErrorKind = iota + 1
	// ProfileNotFound means the account is authenticated but has no profile document.
	ProfileNotFound
	// ProfileWriteError means the profile write failed after the account was created.
	ProfileWriteError
)

func (k ErrorKind) String() string {
	switch k {
	case ProviderError:
		return "provider_error"
	case ProfileNotFound:
		return "profile_not_found"
	case ProfileWriteError:
		return "profile_write_error"
	default:
		return "unknown"
	}
}

// Messages reported by the manager when the provider gives none of its own.
const (
	MsgProfileNotFound    = "User data not found in Firestore"
	MsgUserCreationFailed = "User creation failed"
	MsgAuthFailed         = "Authentication failed"
	MsgUnknownSignUp      = "Unknown signup error"
	MsgUnknownSignIn      = "Login error"
)

// Result is the outcome of SignUp and SignIn. It is either Success or *Failure.
type Result interface {
	isResult()
}

// Success carries the signed-in profile.
type Success struct {
	Profile Profile
}

// Failure carries a human readable message and its classification.
type Failure struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (Success) isResult()  {}
func (*Failure) isResult() {}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

func failure(kind ErrorKind, err error, fallback string) *Failure {
	msg := fallback
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &Failure{Kind: kind, Message: msg, Err: err}
}
