// Package membership implements the credential provider: user lifecycle,
// password policy, and failed-attempt lockout bookkeeping over any
// repository backend.
package membership

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joshrizzo/MyLib/internal/metrics"
	"github.com/joshrizzo/MyLib/internal/security/password"
	"github.com/joshrizzo/MyLib/internal/util"
)

// ValidatePassword is the injectable validation hook run before any password
// is accepted. A non-nil return rejects the candidate.
type ValidatePassword func(username, candidate string) error

// Provider is the credential provider. All dependencies come in through the
// constructor; it holds no ambient state.
type Provider struct {
	users    UserStore
	codec    *Codec
	opts     Options
	validate ValidatePassword
	roles    RoleCleanup
	profiles ProfileDeleter
	log      *zap.Logger
	now      func() time.Time
}

// ProviderOption customizes optional collaborators.
type ProviderOption func(*Provider)

// WithRoleCleanup enables cascade role removal in DeleteUser.
func WithRoleCleanup(rc RoleCleanup) ProviderOption {
	return func(p *Provider) { p.roles = rc }
}

// WithProfileDeleter enables cascade profile removal in DeleteUser.
func WithProfileDeleter(pd ProfileDeleter) ProviderOption {
	return func(p *Provider) { p.profiles = pd }
}

// WithValidationHook replaces the built-in policy check.
func WithValidationHook(v ValidatePassword) ProviderOption {
	return func(p *Provider) { p.validate = v }
}

// WithClock replaces the time source, for window and lockout tests.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *Provider) { p.now = now }
}

// NewProvider wires a provider over the given store and codec. A malformed
// strength expression is a configuration error and fails here, not at first
// use. log may be nil.
func NewProvider(users UserStore, codec *Codec, opts Options, log *zap.Logger, popts ...ProviderOption) (*Provider, error) {
	if users == nil {
		return nil, fmt.Errorf("membership: user store is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("membership: codec is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	pol := password.Policy{
		MinLength:          opts.MinRequiredPasswordLength,
		MinNonAlphanumeric: opts.MinRequiredNonAlphanumericCharacters,
	}
	if opts.PasswordStrengthRegularExpression != "" {
		re, err := regexp.Compile(opts.PasswordStrengthRegularExpression)
		if err != nil {
			return nil, fmt.Errorf("membership: bad password strength expression: %w", err)
		}
		pol.StrengthPattern = re
	}

	p := &Provider{
		users: users,
		codec: codec,
		opts:  opts,
		log:   log,
		now:   time.Now,
		validate: func(_, candidate string) error {
			return pol.Validate(candidate)
		},
	}
	for _, o := range popts {
		o(p)
	}
	return p, nil
}

// Options returns the policy the provider was built with.
func (p *Provider) Options() Options { return p.opts }

// findByUserName does an exact, case-sensitive scan. Returns nil, nil when
// absent.
func (p *Provider) findByUserName(ctx context.Context, username string) (*User, error) {
	all, err := p.users.Search(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range all {
		if u.UserName == username {
			return u, nil
		}
	}
	return nil, nil
}

func (p *Provider) findByEmail(ctx context.Context, email string) (*User, error) {
	all, err := p.users.Search(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range all {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

// save persists u, treating an optimistic conflict as a store error: provider
// writes always start from a fresh read, so a conflict means someone else won
// the race and the caller should retry the whole operation.
func (p *Provider) save(ctx context.Context, u *User) error {
	conflict, err := p.users.Save(ctx, u)
	if err != nil {
		return err
	}
	if conflict != nil {
		return fmt.Errorf("membership: concurrent update of user %q", u.UserName)
	}
	return nil
}

// CreateUser registers a new user. The returned status explains a nil user;
// err carries store failures only.
func (p *Provider) CreateUser(ctx context.Context, username, pass, email, question, answer string, isApproved bool, requestedKey string) (*User, CreateStatus, error) {
	if err := p.validate(username, pass); err != nil {
		p.log.Debug("create user: password rejected", zap.String("username", username), zap.Error(err))
		return nil, StatusInvalidPassword, nil
	}

	if p.opts.RequiresUniqueEmail {
		existing, err := p.findByEmail(ctx, email)
		if err != nil {
			return nil, StatusProviderError, err
		}
		if existing != nil {
			return nil, StatusDuplicateEmail, nil
		}
	}

	existing, err := p.findByUserName(ctx, username)
	if err != nil {
		return nil, StatusProviderError, err
	}
	if existing != nil {
		return nil, StatusDuplicateUserName, nil
	}

	if requestedKey != "" {
		if _, err := uuid.Parse(requestedKey); err != nil {
			return nil, StatusInvalidKey, nil
		}
	}

	encodedPass, err := p.codec.Encode(pass)
	if err != nil {
		return nil, StatusProviderError, err
	}
	encodedAnswer := ""
	if answer != "" {
		if encodedAnswer, err = p.codec.Encode(answer); err != nil {
			return nil, StatusProviderError, err
		}
	}

	now := p.now()
	u := &User{
		ID:                                     requestedKey,
		UserName:                               username,
		Email:                                  email,
		Password:                               encodedPass,
		PasswordQuestion:                       question,
		PasswordAnswer:                         encodedAnswer,
		IsApproved:                             isApproved,
		CreationDate:                           now,
		LastActivityDate:                       now,
		LastPasswordChangedDate:                now,
		LastLockoutDate:                        now,
		FailedPasswordAttemptWindowStart:       now,
		FailedPasswordAnswerAttemptWindowStart: now,
	}
	if err := p.save(ctx, u); err != nil {
		return nil, StatusProviderError, err
	}
	p.log.Info("user created", zap.String("username", username), zap.String("email", util.MaskEmail(email)))
	return u, StatusSuccess, nil
}

// ValidateUser reports whether the credentials authenticate an approved,
// unlocked user. A wrong password charges the failure counter; success
// stamps LastLoginDate.
func (p *Provider) ValidateUser(ctx context.Context, username, pass string) (bool, error) {
	u, err := p.findByUserName(ctx, username)
	if err != nil {
		return false, err
	}
	if u == nil || !u.IsApproved || u.IsLockedOut {
		return false, nil
	}

	if !p.codec.Verify(pass, u.Password) {
		metrics.LoginFailures.Inc()
		if err := p.registerFailure(ctx, u, failurePassword); err != nil {
			return false, err
		}
		return false, nil
	}

	u.LastLoginDate = p.now()
	if err := p.save(ctx, u); err != nil {
		return false, err
	}
	return true, nil
}

// ChangePassword swaps the password after re-authenticating the old one. The
// new password must pass the validation hook.
func (p *Provider) ChangePassword(ctx context.Context, username, oldPass, newPass string) (bool, error) {
	ok, err := p.ValidateUser(ctx, username, oldPass)
	if err != nil || !ok {
		return false, err
	}

	if err := p.validate(username, newPass); err != nil {
		return false, fmt.Errorf("%w: %v", ErrPasswordRejected, err)
	}

	u, err := p.findByUserName(ctx, username)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, ErrUserNotFound
	}

	if u.Password, err = p.codec.Encode(newPass); err != nil {
		return false, err
	}
	u.LastPasswordChangedDate = p.now()
	if err := p.save(ctx, u); err != nil {
		return false, err
	}
	p.log.Info("password changed", zap.String("username", username))
	return true, nil
}

// ChangePasswordQuestionAndAnswer swaps the recovery question after
// re-authenticating. The answer is stored encoded like the password.
func (p *Provider) ChangePasswordQuestionAndAnswer(ctx context.Context, username, pass, newQuestion, newAnswer string) (bool, error) {
	ok, err := p.ValidateUser(ctx, username, pass)
	if err != nil || !ok {
		return false, err
	}

	u, err := p.findByUserName(ctx, username)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, ErrUserNotFound
	}

	u.PasswordQuestion = newQuestion
	if u.PasswordAnswer, err = p.codec.Encode(newAnswer); err != nil {
		return false, err
	}
	return true, p.save(ctx, u)
}

// GetPassword recovers the stored password. Fails distinctly when retrieval
// is disabled, the format is irreversible, the user is missing or locked
// out, or the answer is wrong (which also charges the answer counter).
func (p *Provider) GetPassword(ctx context.Context, username, answer string) (string, error) {
	if !p.opts.EnablePasswordRetrieval {
		return "", ErrRetrievalDisabled
	}
	if p.codec.Format() == FormatHashed {
		return "", ErrIrreversibleFormat
	}

	u, err := p.findByUserName(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUserNotFound
	}
	if u.IsLockedOut {
		return "", ErrUserLockedOut
	}
	if p.opts.RequiresQuestionAndAnswer && !p.codec.Verify(answer, u.PasswordAnswer) {
		if err := p.registerFailure(ctx, u, failureAnswer); err != nil {
			return "", err
		}
		return "", ErrBadAnswer
	}

	return p.codec.Decode(u.Password)
}

// ResetPassword generates, validates, stores and returns a fresh random
// password.
func (p *Provider) ResetPassword(ctx context.Context, username, answer string) (string, error) {
	if !p.opts.EnablePasswordReset {
		return "", ErrResetDisabled
	}

	u, err := p.findByUserName(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUserNotFound
	}
	if u.IsLockedOut {
		return "", ErrUserLockedOut
	}

	if p.opts.RequiresQuestionAndAnswer {
		if answer == "" {
			if err := p.registerFailure(ctx, u, failureAnswer); err != nil {
				return "", err
			}
			return "", ErrAnswerRequired
		}
		if !p.codec.Verify(answer, u.PasswordAnswer) {
			if err := p.registerFailure(ctx, u, failureAnswer); err != nil {
				return "", err
			}
			return "", ErrBadAnswer
		}
	}

	newPass, err := password.Generate(p.opts.NewPasswordLength, p.opts.MinRequiredNonAlphanumericCharacters)
	if err != nil {
		return "", err
	}
	if err := p.validate(username, newPass); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPasswordRejected, err)
	}

	if u.Password, err = p.codec.Encode(newPass); err != nil {
		return "", err
	}
	u.LastPasswordChangedDate = p.now()
	if err := p.save(ctx, u); err != nil {
		return "", err
	}
	p.log.Info("password reset", zap.String("username", username))
	return newPass, nil
}

// UnlockUser clears the lockout flag unconditionally.
func (p *Provider) UnlockUser(ctx context.Context, username string) (bool, error) {
	u, err := p.findByUserName(ctx, username)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, ErrUserNotFound
	}
	u.IsLockedOut = false
	if err := p.save(ctx, u); err != nil {
		return false, err
	}
	p.log.Info("user unlocked", zap.String("username", username))
	return true, nil
}

// DeleteUser removes the record. With cascade, role memberships and profile
// data go too, best effort: their failures are logged and swallowed, the
// delete still reports success.
func (p *Provider) DeleteUser(ctx context.Context, username string, cascade bool) (bool, error) {
	u, err := p.findByUserName(ctx, username)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, nil
	}

	if err := p.users.Delete(ctx, u); err != nil {
		return false, err
	}

	if cascade {
		if p.roles != nil {
			if err := p.cascadeRoles(ctx, username); err != nil {
				p.log.Warn("role cleanup failed during user delete", zap.String("username", username), zap.Error(err))
			}
		}
		if p.profiles != nil {
			if err := p.profiles.DeleteProfile(ctx, username); err != nil {
				p.log.Warn("profile cleanup failed during user delete", zap.String("username", username), zap.Error(err))
			}
		}
	}

	p.log.Info("user deleted", zap.String("username", username), zap.Bool("cascade", cascade))
	return true, nil
}

func (p *Provider) cascadeRoles(ctx context.Context, username string) error {
	roleNames, err := p.roles.GetRolesForUser(ctx, username)
	if err != nil {
		return err
	}
	if len(roleNames) == 0 {
		return nil
	}
	return p.roles.RemoveUsersFromRoles(ctx, []string{username}, roleNames)
}

// GetUser looks up by username. userIsOnline additionally stamps
// LastActivityDate.
func (p *Provider) GetUser(ctx context.Context, username string, userIsOnline bool) (*User, error) {
	u, err := p.findByUserName(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if userIsOnline {
		u.LastActivityDate = p.now()
		if err := p.save(ctx, u); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// GetUserByKey looks up by record id.
func (p *Provider) GetUserByKey(ctx context.Context, key string, userIsOnline bool) (*User, error) {
	if _, err := uuid.Parse(key); err != nil {
		return nil, fmt.Errorf("membership: invalid provider user key %q", key)
	}
	all, err := p.users.Search(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range all {
		if u.ID == key {
			if userIsOnline {
				u.LastActivityDate = p.now()
				if err := p.save(ctx, u); err != nil {
					return nil, err
				}
			}
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

// GetUserNameByEmail returns the username bound to email, empty when none.
func (p *Provider) GetUserNameByEmail(ctx context.Context, email string) (string, error) {
	u, err := p.findByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", nil
	}
	return u.UserName, nil
}

// UpdateUser copies the mutable profile fields onto the stored record.
// Password, answer and failure counters are not touched; those move through
// their dedicated operations.
func (p *Provider) UpdateUser(ctx context.Context, user *User) error {
	all, err := p.users.Search(ctx)
	if err != nil {
		return err
	}
	for _, stored := range all {
		if stored.ID != user.ID {
			continue
		}
		stored.UserName = user.UserName
		stored.Email = user.Email
		stored.Comment = user.Comment
		stored.IsApproved = user.IsApproved
		stored.CreationDate = user.CreationDate
		stored.LastActivityDate = user.LastActivityDate
		stored.LastLoginDate = user.LastLoginDate
		stored.LastLockoutDate = user.LastLockoutDate
		stored.LastPasswordChangedDate = user.LastPasswordChangedDate
		return p.save(ctx, stored)
	}
	return ErrUserNotFound
}

// NumberOfUsersOnline counts users active inside the online window.
func (p *Provider) NumberOfUsersOnline(ctx context.Context) (int, error) {
	all, err := p.users.Search(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := p.now().Add(-p.opts.OnlineUserWindow)
	count := 0
	for _, u := range all {
		if u.LastActivityDate.After(cutoff) {
			count++
		}
	}
	return count, nil
}

// GetAllUsers returns one page of the full scan. totalRecords reports the
// count placed on the requested page, not the total match count; longstanding
// documented behavior that callers depend on.
func (p *Provider) GetAllUsers(ctx context.Context, pageIndex, pageSize int) ([]*User, int, error) {
	all, err := p.users.Search(ctx)
	if err != nil {
		return nil, 0, err
	}
	page := paginate(all, pageIndex, pageSize)
	return page, len(page), nil
}

// FindUsersByName pages users whose username matches exactly.
func (p *Provider) FindUsersByName(ctx context.Context, username string, pageIndex, pageSize int) ([]*User, int, error) {
	return p.findUsers(ctx, pageIndex, pageSize, func(u *User) bool { return u.UserName == username })
}

// FindUsersByEmail pages users whose email matches exactly.
func (p *Provider) FindUsersByEmail(ctx context.Context, email string, pageIndex, pageSize int) ([]*User, int, error) {
	return p.findUsers(ctx, pageIndex, pageSize, func(u *User) bool { return u.Email == email })
}

func (p *Provider) findUsers(ctx context.Context, pageIndex, pageSize int, match func(*User) bool) ([]*User, int, error) {
	all, err := p.users.Search(ctx)
	if err != nil {
		return nil, 0, err
	}
	var hits []*User
	for _, u := range all {
		if match(u) {
			hits = append(hits, u)
		}
	}
	page := paginate(hits, pageIndex, pageSize)
	return page, len(page), nil
}

func paginate(users []*User, pageIndex, pageSize int) []*User {
	if pageIndex < 0 {
		pageIndex = 0
	}
	if pageSize <= 0 {
		pageSize = len(users)
	}
	start := pageIndex * pageSize
	if start >= len(users) {
		return nil
	}
	end := start + pageSize
	if end > len(users) {
		end = len(users)
	}
	return users[start:end]
}

type failureKind int

const (
	failurePassword failureKind = iota
	failureAnswer
)

// registerFailure runs the sliding-window failure counter for one track.
// Outside the window (or from zero) the count restarts at 1. At the
// threshold the user locks out; the persisted count is deliberately left
// where it was in that branch, only the lockout flag and date move.
func (p *Provider) registerFailure(ctx context.Context, u *User, kind failureKind) error {
	now := p.now()

	count := u.FailedPasswordAttemptCount
	windowStart := u.FailedPasswordAttemptWindowStart
	if kind == failureAnswer {
		count = u.FailedPasswordAnswerAttemptCount
		windowStart = u.FailedPasswordAnswerAttemptWindowStart
	}

	switch {
	case count == 0 || now.After(windowStart.Add(p.opts.PasswordAttemptWindow)):
		if kind == failureAnswer {
			u.FailedPasswordAnswerAttemptCount = 1
			u.FailedPasswordAnswerAttemptWindowStart = now
		} else {
			u.FailedPasswordAttemptCount = 1
			u.FailedPasswordAttemptWindowStart = now
		}
	case count >= p.opts.MaxInvalidPasswordAttempts:
		u.IsLockedOut = true
		u.LastLockoutDate = now
		metrics.Lockouts.Inc()
		p.log.Warn("user locked out", zap.String("username", u.UserName))
	default:
		if kind == failureAnswer {
			u.FailedPasswordAnswerAttemptCount++
		} else {
			u.FailedPasswordAttemptCount++
		}
	}

	return p.save(ctx, u)
}

// IsApprovedAndUnlocked is a convenience for hosts gating access beyond
// ValidateUser.
func (p *Provider) IsApprovedAndUnlocked(ctx context.Context, username string) (bool, error) {
	u, err := p.findByUserName(ctx, username)
	if err != nil {
		return false, err
	}
	return u != nil && u.IsApproved && !u.IsLockedOut, nil
}
