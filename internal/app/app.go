// Package app assembles providers from configuration: picks the storage
// driver, registers the collections, and wires the membership and role
// providers together. Both binaries build through here.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/joshrizzo/MyLib/internal/config"
	"github.com/joshrizzo/MyLib/internal/docstore"
	fsclient "github.com/joshrizzo/MyLib/internal/docstore/fs"
	redisclient "github.com/joshrizzo/MyLib/internal/docstore/redis"
	"github.com/joshrizzo/MyLib/internal/membership"
	"github.com/joshrizzo/MyLib/internal/repo/doc"
	"github.com/joshrizzo/MyLib/internal/repo/memory"
	"github.com/joshrizzo/MyLib/internal/repo/pg"
	"github.com/joshrizzo/MyLib/internal/roles"
	"github.com/joshrizzo/MyLib/internal/security/secretbox"
)

// App carries the wired providers and whatever must be released on exit.
type App struct {
	Membership *membership.Provider
	Roles      *roles.Provider

	closers []func()
}

// Close releases storage clients. Safe to call once at shutdown.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
}

// Build wires everything from cfg. log may be nil.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var box *secretbox.Box
	if cfg.PasswordFormat() == membership.FormatEncrypted {
		var err error
		if box, err = secretbox.New(cfg.Membership.EncryptionKey); err != nil {
			return nil, err
		}
	}
	codec, err := membership.NewCodec(cfg.PasswordFormat(), box)
	if err != nil {
		return nil, err
	}

	a := &App{}
	users, roleStore, permStore, err := a.buildStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	roleProvider, err := roles.NewProvider(roleStore, permStore, log)
	if err != nil {
		return nil, err
	}
	memberProvider, err := membership.NewProvider(users, codec, cfg.MembershipOptions(), log,
		membership.WithRoleCleanup(roleProvider))
	if err != nil {
		return nil, err
	}

	a.Membership = memberProvider
	a.Roles = roleProvider
	return a, nil
}

func (a *App) buildStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (membership.UserStore, roles.RoleStore, roles.PermissionStore, error) {
	switch cfg.Storage.Driver {
	case "memory":
		svc := memory.NewService()
		return memory.NewCollection[membership.User](svc, membership.DefaultCollection),
			memory.NewCollection[roles.Role](svc, roles.DefaultRoleCollection),
			memory.NewCollection[roles.Permission](svc, roles.DefaultPermissionCollection),
			nil

	case "fs":
		client, err := fsclient.New(cfg.Storage.ConnectionString)
		if err != nil {
			return nil, nil, nil, err
		}
		return a.docStores(ctx, client, log)

	case "redis":
		client := redisclient.New(cfg.Storage.ConnectionString, cfg.Storage.Redis.DB, cfg.Storage.Redis.Prefix)
		if err := client.Ping(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("app: redis unreachable: %w", err)
		}
		return a.docStores(ctx, client, log)

	case "postgres":
		svc, err := pg.NewService(ctx, cfg.Storage.ConnectionString, log)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := svc.Ping(ctx); err != nil {
			svc.Close()
			return nil, nil, nil, fmt.Errorf("app: postgres unreachable: %w", err)
		}
		a.closers = append(a.closers, svc.Close)
		return pg.NewCollection[membership.User](svc, membership.DefaultCollection),
			pg.NewCollection[roles.Role](svc, roles.DefaultRoleCollection),
			pg.NewCollection[roles.Permission](svc, roles.DefaultPermissionCollection),
			nil

	default:
		return nil, nil, nil, fmt.Errorf("app: unknown storage driver %q", cfg.Storage.Driver)
	}
}

func (a *App) docStores(ctx context.Context, client docstore.Client, log *zap.Logger) (membership.UserStore, roles.RoleStore, roles.PermissionStore, error) {
	a.closers = append(a.closers, func() { _ = client.Close() })
	svc := doc.NewService(client, log)
	return doc.NewCollection[membership.User](svc, membership.DefaultCollection),
		doc.NewCollection[roles.Role](svc, roles.DefaultRoleCollection),
		doc.NewCollection[roles.Permission](svc, roles.DefaultPermissionCollection),
		nil
}
