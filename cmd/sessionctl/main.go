// sessionctl administers users and sessions directly against the database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sessionkeeper/backend/internal/app"
	sessiondomain "sessionkeeper/backend/internal/session/domain"
	userdomain "sessionkeeper/backend/internal/user/domain"
)

// opener builds the wired services for one command run.
type opener func(ctx context.Context) (*app.App, error)

func main() {
	if err := newRootCommand(openApp, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, log, err := app.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, log)
}

func newRootCommand(open opener, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Administer sessionkeeper users and sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.AddCommand(newUsersCommand(open))
	cmd.AddCommand(newSessionsCommand(open))
	return cmd
}

// withApp opens the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, open opener, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}

func newUsersCommand(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "User operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newUsersCreateCommand(open))
	return cmd
}

func newUsersCreateCommand(open opener) *cobra.Command {
	var username, password, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				u, err := a.Auth.CreateUser(ctx, username, password, role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s) role %s\n", u.Username, u.ID, u.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Username (4-20 letters, digits or underscores)")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	cmd.Flags().StringVar(&role, "role", userdomain.RoleUser, "Role: user or admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSessionsCommand(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newSessionsListCommand(open))
	cmd.AddCommand(newSessionsRevokeCommand(open))
	cmd.AddCommand(newSessionsRevokeAllCommand(open))
	cmd.AddCommand(newSessionsPurgeCommand(open))
	return cmd
}

func newSessionsListCommand(open opener) *cobra.Command {
	var (
		userID  string
		revoked bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's active or revoked sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				sessions, err := a.Sessions.ListSessions(ctx, userID, revoked)
				if err != nil {
					return err
				}
				return printSessions(cmd.OutOrStdout(), sessions)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().BoolVar(&revoked, "revoked", false, "List revoked sessions instead of active ones")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSessionsRevokeCommand(open opener) *cobra.Command {
	var userID, sessionID, reason string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke one session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				changed, err := a.Sessions.RevokeByID(ctx, userID, sessionID, reason)
				if err != nil {
					return err
				}
				if !changed {
					fmt.Fprintf(cmd.OutOrStdout(), "session %s not found or already revoked\n", sessionID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked session %s\n", sessionID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID owning the session")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID")
	cmd.Flags().StringVar(&reason, "reason", sessiondomain.ReasonAdmin, "Revocation reason")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newSessionsRevokeAllCommand(open opener) *cobra.Command {
	var userID, reason string
	cmd := &cobra.Command{
		Use:   "revoke-all",
		Short: "Revoke every active session of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				n, err := a.Sessions.RevokeAllForUser(ctx, userID, reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %d sessions\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&reason, "reason", sessiondomain.ReasonAdmin, "Revocation reason")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSessionsPurgeCommand(open opener) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete sessions whose hard ceiling passed more than --grace ago",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				n, err := a.Sessions.PurgeExpired(ctx, grace)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d sessions\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 7*24*time.Hour, "Keep expired sessions this long past their ceiling")
	return cmd
}

func printSessions(out io.Writer, sessions []*sessiondomain.Session) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tVERSION\tDEVICE\tBROWSER\tIP\tCREATED\tEXPIRES\tREASON")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Version, s.DeviceName, s.BrowserVersion, s.IPAddress,
			unix(s.CreatedAt), unix(s.ExpiresAt), s.Reason)
	}
	return tw.Flush()
}

func unix(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
