// Package roles implements the role provider: role lifecycle and user-role
// membership over any repository backend. Permission records hold one user's
// role set and disappear when the set empties.
package roles

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultRoleCollection and DefaultPermissionCollection name the stored
	// collections unless the host registers others.
	DefaultRoleCollection       = "roles"
	DefaultPermissionCollection = "permissions"
)

var (
	ErrRoleExists    = errors.New("roles: role already exists")
	ErrRoleNotFound  = errors.New("roles: role does not exist")
	ErrRolePopulated = errors.New("roles: role still has members")
)

// Role is a persisted role definition.
type Role struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
}

func (r *Role) GetID() string             { return r.ID }
func (r *Role) SetID(id string)           { r.ID = id }
func (r *Role) GetTimestamp() time.Time   { return r.Timestamp }
func (r *Role) SetTimestamp(ts time.Time) { r.Timestamp = ts }

// Permission is one user's role set.
type Permission struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserName  string    `json:"username"`
	Roles     []string  `json:"roles"`
}

func (p *Permission) GetID() string             { return p.ID }
func (p *Permission) SetID(id string)           { p.ID = id }
func (p *Permission) GetTimestamp() time.Time   { return p.Timestamp }
func (p *Permission) SetTimestamp(ts time.Time) { p.Timestamp = ts }

func (p *Permission) has(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleStore and PermissionStore are the repository slices the provider
// needs; any backend collection satisfies them.
type RoleStore interface {
	Search(ctx context.Context) ([]*Role, error)
	Save(ctx context.Context, r *Role) (*Role, error)
	Delete(ctx context.Context, r *Role) error
}

type PermissionStore interface {
	Search(ctx context.Context) ([]*Permission, error)
	Save(ctx context.Context, p *Permission) (*Permission, error)
	Delete(ctx context.Context, p *Permission) error
}

// Provider manages roles and memberships. Names match case-sensitively.
type Provider struct {
	roles       RoleStore
	permissions PermissionStore
	log         *zap.Logger
}

// NewProvider wires the provider. log may be nil.
func NewProvider(roles RoleStore, permissions PermissionStore, log *zap.Logger) (*Provider, error) {
	if roles == nil || permissions == nil {
		return nil, fmt.Errorf("roles: role and permission stores are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{roles: roles, permissions: permissions, log: log}, nil
}

func (p *Provider) findRole(ctx context.Context, name string) (*Role, error) {
	all, err := p.roles.Search(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, nil
}

func (p *Provider) findPermission(ctx context.Context, username string) (*Permission, error) {
	all, err := p.permissions.Search(ctx)
	if err != nil {
		return nil, err
	}
	for _, perm := range all {
		if perm.UserName == username {
			return perm, nil
		}
	}
	return nil, nil
}

// checkRolesExist fails fast before any mutation when a named role is
// missing.
func (p *Provider) checkRolesExist(ctx context.Context, roleNames []string) error {
	for _, name := range roleNames {
		r, err := p.findRole(ctx, name)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("%w: %q", ErrRoleNotFound, name)
		}
	}
	return nil
}

func (p *Provider) savePermission(ctx context.Context, perm *Permission) error {
	conflict, err := p.permissions.Save(ctx, perm)
	if err != nil {
		return err
	}
	if conflict != nil {
		return fmt.Errorf("roles: concurrent update of permissions for %q", perm.UserName)
	}
	return nil
}

// CreateRole registers a new role name.
func (p *Provider) CreateRole(ctx context.Context, name string) error {
	existing, err := p.findRole(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %q", ErrRoleExists, name)
	}
	if conflict, err := p.roles.Save(ctx, &Role{Name: name}); err != nil {
		return err
	} else if conflict != nil {
		return fmt.Errorf("roles: concurrent creation of role %q", name)
	}
	p.log.Info("role created", zap.String("role", name))
	return nil
}

// DeleteRole removes a role. With failIfPopulated it refuses while any
// membership still references the role.
func (p *Provider) DeleteRole(ctx context.Context, name string, failIfPopulated bool) error {
	role, err := p.findRole(ctx, name)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("%w: %q", ErrRoleNotFound, name)
	}

	if failIfPopulated {
		perms, err := p.permissions.Search(ctx)
		if err != nil {
			return err
		}
		for _, perm := range perms {
			if perm.has(name) {
				return fmt.Errorf("%w: %q", ErrRolePopulated, name)
			}
		}
	}

	if err := p.roles.Delete(ctx, role); err != nil {
		return err
	}
	p.log.Info("role deleted", zap.String("role", name))
	return nil
}

// AddUsersToRoles grants every role to every user. Grants are idempotent:
// the role set holds no duplicates.
func (p *Provider) AddUsersToRoles(ctx context.Context, usernames, roleNames []string) error {
	if err := p.checkRolesExist(ctx, roleNames); err != nil {
		return err
	}

	for _, username := range usernames {
		perm, err := p.findPermission(ctx, username)
		if err != nil {
			return err
		}
		if perm == nil {
			perm = &Permission{UserName: username}
		}
		for _, role := range roleNames {
			if !perm.has(role) {
				perm.Roles = append(perm.Roles, role)
			}
		}
		if err := p.savePermission(ctx, perm); err != nil {
			return err
		}
	}
	return nil
}

// RemoveUsersFromRoles revokes every role from every user. A membership
// record whose role set empties is deleted outright.
func (p *Provider) RemoveUsersFromRoles(ctx context.Context, usernames, roleNames []string) error {
	if err := p.checkRolesExist(ctx, roleNames); err != nil {
		return err
	}

	drop := make(map[string]bool, len(roleNames))
	for _, role := range roleNames {
		drop[role] = true
	}

	for _, username := range usernames {
		perm, err := p.findPermission(ctx, username)
		if err != nil {
			return err
		}
		if perm == nil {
			continue
		}

		kept := perm.Roles[:0]
		for _, role := range perm.Roles {
			if !drop[role] {
				kept = append(kept, role)
			}
		}
		perm.Roles = kept

		if len(perm.Roles) == 0 {
			if err := p.permissions.Delete(ctx, perm); err != nil {
				return err
			}
			continue
		}
		if err := p.savePermission(ctx, perm); err != nil {
			return err
		}
	}
	return nil
}

// IsUserInRole reports membership. The role must exist.
func (p *Provider) IsUserInRole(ctx context.Context, username, roleName string) (bool, error) {
	if err := p.checkRolesExist(ctx, []string{roleName}); err != nil {
		return false, err
	}
	perm, err := p.findPermission(ctx, username)
	if err != nil {
		return false, err
	}
	return perm != nil && perm.has(roleName), nil
}

// GetRolesForUser returns the user's role set, empty when the user holds
// none.
func (p *Provider) GetRolesForUser(ctx context.Context, username string) ([]string, error) {
	perm, err := p.findPermission(ctx, username)
	if err != nil {
		return nil, err
	}
	if perm == nil {
		return nil, nil
	}
	out := make([]string, len(perm.Roles))
	copy(out, perm.Roles)
	return out, nil
}

// GetUsersInRole returns every username holding the role.
func (p *Provider) GetUsersInRole(ctx context.Context, roleName string) ([]string, error) {
	if err := p.checkRolesExist(ctx, []string{roleName}); err != nil {
		return nil, err
	}
	perms, err := p.permissions.Search(ctx)
	if err != nil {
		return nil, err
	}
	var users []string
	for _, perm := range perms {
		if perm.has(roleName) {
			users = append(users, perm.UserName)
		}
	}
	return users, nil
}

// FindUsersInRole returns usernames in the role matching the pattern, a
// regular expression applied to the whole username.
func (p *Provider) FindUsersInRole(ctx context.Context, roleName, usernamePattern string) ([]string, error) {
	if err := p.checkRolesExist(ctx, []string{roleName}); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(usernamePattern)
	if err != nil {
		return nil, fmt.Errorf("roles: bad username pattern: %w", err)
	}
	perms, err := p.permissions.Search(ctx)
	if err != nil {
		return nil, err
	}
	var users []string
	for _, perm := range perms {
		if perm.has(roleName) && re.MatchString(perm.UserName) {
			users = append(users, perm.UserName)
		}
	}
	return users, nil
}

// GetAllRoles lists every role name.
func (p *Provider) GetAllRoles(ctx context.Context) ([]string, error) {
	all, err := p.roles.Search(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for _, r := range all {
		names = append(names, r.Name)
	}
	return names, nil
}

// RoleExists reports whether the role is registered.
func (p *Provider) RoleExists(ctx context.Context, roleName string) (bool, error) {
	r, err := p.findRole(ctx, roleName)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}
