package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joshrizzo/MyLib/internal/app"
	"github.com/joshrizzo/MyLib/internal/config"
	"github.com/joshrizzo/MyLib/internal/membership"
	"github.com/joshrizzo/MyLib/internal/observability/logger"
	"github.com/joshrizzo/MyLib/internal/repo/pg"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "memberctl",
		Short:         "Admin CLI for the membership store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the YAML config file")

	root.AddCommand(
		createUserCmd(&cfgPath),
		createRoleCmd(&cfgPath),
		grantCmd(&cfgPath),
		revokeCmd(&cfgPath),
		listUsersCmd(&cfgPath),
		listRolesCmd(&cfgPath),
		unlockCmd(&cfgPath),
		migrateCmd(&cfgPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// build wires providers from config with logging suppressed; the CLI
// reports through its own output.
func build(ctx context.Context, cfgPath string) (*app.App, error) {
	_ = godotenv.Load()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.Build(ctx, cfg, logger.Nop())
}

func createUserCmd(cfgPath *string) *cobra.Command {
	var email, question, answer string
	var approved bool
	cmd := &cobra.Command{
		Use:   "create-user <username> <password>",
		Short: "Create a user record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			user, status, err := a.Membership.CreateUser(cmd.Context(), args[0], args[1], email, question, answer, approved, "")
			if status != membership.StatusSuccess {
				if err != nil {
					return fmt.Errorf("%s: %w", status, err)
				}
				return fmt.Errorf("create rejected: %s", status)
			}
			fmt.Printf("created %s (key %s)\n", user.UserName, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&question, "question", "", "password recovery question")
	cmd.Flags().StringVar(&answer, "answer", "", "password recovery answer")
	cmd.Flags().BoolVar(&approved, "approved", true, "create the user pre-approved")
	return cmd
}

func createRoleCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create-role <name>",
		Short: "Create a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Roles.CreateRole(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("created role %s\n", args[0])
			return nil
		},
	}
}

func grantCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <username> <role>[,<role>...]",
		Short: "Add a user to one or more roles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			roleNames := strings.Split(args[1], ",")
			if err := a.Roles.AddUsersToRoles(cmd.Context(), []string{args[0]}, roleNames); err != nil {
				return err
			}
			fmt.Printf("granted %s to %s\n", args[1], args[0])
			return nil
		},
	}
}

func revokeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <username> <role>[,<role>...]",
		Short: "Remove a user from one or more roles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			roleNames := strings.Split(args[1], ",")
			if err := a.Roles.RemoveUsersFromRoles(cmd.Context(), []string{args[0]}, roleNames); err != nil {
				return err
			}
			fmt.Printf("revoked %s from %s\n", args[1], args[0])
			return nil
		},
	}
}

func listUsersCmd(cfgPath *string) *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:   "list-users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			users, total, err := a.Membership.GetAllUsers(cmd.Context(), page, size)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tEMAIL\tAPPROVED\tLOCKED\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n",
					u.UserName, u.Email, u.IsApproved, u.IsLockedOut,
					u.CreationDate.Format("2006-01-02 15:04"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("%d on page\n", total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page index")
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	return cmd
}

func listRolesCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list-roles",
		Short: "List roles and their member counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			names, err := a.Roles.GetAllRoles(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				users, err := a.Roles.GetUsersInRole(cmd.Context(), name)
				if err != nil {
					return err
				}
				fmt.Printf("%s (%d members)\n", name, len(users))
			}
			return nil
		},
	}
}

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres schema (no-op for other drivers)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Storage.Driver != "postgres" {
				fmt.Printf("driver %q needs no migrations\n", cfg.Storage.Driver)
				return nil
			}
			svc, err := pg.NewService(cmd.Context(), cfg.Storage.ConnectionString, logger.Nop())
			if err != nil {
				return err
			}
			defer svc.Close()
			if err := svc.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("schema up to date")
			return nil
		},
	}
}

func unlockCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <username>",
		Short: "Clear a user's lockout flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.Membership.UnlockUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("user %q not found", args[0])
			}
			fmt.Printf("unlocked %s\n", args[0])
			return nil
		},
	}
}
