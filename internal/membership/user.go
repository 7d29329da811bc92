package membership

import (
	"context"
	"time"
)

// DefaultCollection is the collection/table name user records live in unless
// the host registers something else.
const DefaultCollection = "users"

// User is the persisted credential record. Password and PasswordAnswer hold
// the encoded form per the provider's password format, never plaintext
// (except under the Clear format).
type User struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	UserName         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	PasswordQuestion string `json:"password_question,omitempty"`
	PasswordAnswer   string `json:"password_answer,omitempty"`
	Comment          string `json:"comment,omitempty"`

	IsApproved  bool `json:"is_approved"`
	IsLockedOut bool `json:"is_locked_out"`

	CreationDate            time.Time `json:"creation_date"`
	LastActivityDate        time.Time `json:"last_activity_date"`
	LastLoginDate           time.Time `json:"last_login_date"`
	LastPasswordChangedDate time.Time `json:"last_password_changed_date"`
	LastLockoutDate         time.Time `json:"last_lockout_date"`

	FailedPasswordAttemptCount             int       `json:"failed_password_attempt_count"`
	FailedPasswordAttemptWindowStart       time.Time `json:"failed_password_attempt_window_start"`
	FailedPasswordAnswerAttemptCount       int       `json:"failed_password_answer_attempt_count"`
	FailedPasswordAnswerAttemptWindowStart time.Time `json:"failed_password_answer_attempt_window_start"`
}

func (u *User) GetID() string             { return u.ID }
func (u *User) SetID(id string)           { u.ID = id }
func (u *User) GetTimestamp() time.Time   { return u.Timestamp }
func (u *User) SetTimestamp(ts time.Time) { u.Timestamp = ts }

// UserStore is the slice of the repository contract the provider needs. Any
// backend collection registered for User satisfies it.
type UserStore interface {
	Search(ctx context.Context) ([]*User, error)
	Save(ctx context.Context, u *User) (*User, error)
	Delete(ctx context.Context, u *User) error
}

// RoleCleanup is what DeleteUser needs from a role provider for cascade
// deletes. The roles package satisfies it.
type RoleCleanup interface {
	GetRolesForUser(ctx context.Context, username string) ([]string, error)
	RemoveUsersFromRoles(ctx context.Context, usernames, roleNames []string) error
}

// ProfileDeleter removes ancillary per-user profile data during cascade
// deletes. Optional; failures are logged and swallowed.
type ProfileDeleter interface {
	DeleteProfile(ctx context.Context, username string) error
}
