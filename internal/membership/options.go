package membership

import "time"

// Options is the provider policy, fixed at construction.
type Options struct {
	ApplicationName string

	EnablePasswordReset       bool
	EnablePasswordRetrieval   bool
	RequiresQuestionAndAnswer bool
	RequiresUniqueEmail       bool

	MaxInvalidPasswordAttempts int
	PasswordAttemptWindow      time.Duration

	MinRequiredPasswordLength            int
	MinRequiredNonAlphanumericCharacters int
	PasswordStrengthRegularExpression    string

	// NewPasswordLength sizes passwords generated by ResetPassword.
	NewPasswordLength int

	// OnlineUserWindow bounds NumberOfUsersOnline: users whose last activity
	// falls inside it count as online.
	OnlineUserWindow time.Duration
}

// DefaultOptions mirrors the documented configuration defaults.
func DefaultOptions() Options {
	return Options{
		EnablePasswordReset:        true,
		EnablePasswordRetrieval:    false,
		RequiresQuestionAndAnswer:  false,
		RequiresUniqueEmail:        true,
		MaxInvalidPasswordAttempts: 5,
		PasswordAttemptWindow:      10 * time.Minute,
		MinRequiredPasswordLength:  6,
		NewPasswordLength:          8,
		OnlineUserWindow:           15 * time.Minute,
	}
}
