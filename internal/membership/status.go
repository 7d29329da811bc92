package membership

import "errors"

// CreateStatus reports why CreateUser did or did not insert a record.
type CreateStatus int

const (
	StatusSuccess CreateStatus = iota
	StatusInvalidPassword
	StatusDuplicateEmail
	StatusDuplicateUserName
	StatusInvalidKey
	StatusProviderError
)

func (s CreateStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidPassword:
		return "invalid password"
	case StatusDuplicateEmail:
		return "duplicate email"
	case StatusDuplicateUserName:
		return "duplicate username"
	case StatusInvalidKey:
		return "invalid provider user key"
	case StatusProviderError:
		return "provider error"
	default:
		return "unknown"
	}
}

// Named failures per operation. Callers branch on these with errors.Is; store
// I/O errors pass through unwrapped alongside them.
var (
	ErrUserNotFound       = errors.New("membership: user not found")
	ErrUserLockedOut      = errors.New("membership: user is locked out")
	ErrRetrievalDisabled  = errors.New("membership: password retrieval not enabled")
	ErrResetDisabled      = errors.New("membership: password reset not enabled")
	ErrAnswerRequired     = errors.New("membership: password answer required")
	ErrBadAnswer          = errors.New("membership: incorrect password answer")
	ErrPasswordRejected   = errors.New("membership: password rejected by validation")
	ErrIrreversibleFormat = errors.New("membership: hashed passwords cannot be decoded")
)
