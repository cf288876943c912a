package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tradesmatepro/portal-identity/internal/app"
	"github.com/tradesmatepro/portal-identity/internal/config"
	"github.com/tradesmatepro/portal-identity/internal/jobs"
	"github.com/tradesmatepro/portal-identity/internal/model"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operate the customer portal identity service",
		Long:          "portalctl runs maintenance and support tasks against the portal identity database. Configuration comes from the same environment variables as the server.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.WarnLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newMigrateCmd(),
		newProvisionCmd(),
		newStatusCmd(),
		newMagicLinkCmd(),
		newCompleteSetupCmd(),
		newDeactivateCmd(),
		newRevokeSessionsCmd(),
		newCleanupSessionsCmd(),
	)
	return root
}

// withApp loads config, connects and hands the wired services to fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.DB.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
				return nil
			})
		},
	}
}

type provisionOptions struct {
	contact   model.Contact
	companyID string
	addedBy   string
}

func newProvisionCmd() *cobra.Command {
	var opts provisionOptions

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Add a customer to a company and provision their portal account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Portal.AddCustomerWithPortalAccount(ctx, opts.contact, opts.companyID, opts.addedBy)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.contact.Name, "name", "", "customer name")
	f.StringVar(&opts.contact.Email, "email", "", "customer email")
	f.StringVar(&opts.contact.Phone, "phone", "", "customer phone")
	f.StringVar(&opts.contact.StreetAddress, "street", "", "street address")
	f.StringVar(&opts.contact.City, "city", "", "city")
	f.StringVar(&opts.contact.State, "state", "", "state")
	f.StringVar(&opts.contact.ZipCode, "zip", "", "zip code")
	f.StringVar(&opts.companyID, "company", "", "company id")
	f.StringVar(&opts.addedBy, "added-by", "portalctl", "who added the customer")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("company")

	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <customer-id>",
		Short: "Show whether a customer has a portal account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return printJSON(cmd.OutOrStdout(), a.Portal.CheckPortalStatus(ctx, args[0]))
			})
		},
	}
}

func newMagicLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "magic-link <email>",
		Short: "Email a sign-in link to a portal account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Sessions.GenerateMagicLink(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "magic link sent to account %s, expires %s\n",
					result.Account.ID, result.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
				return nil
			})
		},
	}
}

func newCompleteSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete-setup <account-id>",
		Short: "Mark a portal account's password setup as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				account, err := a.Portal.CompletePasswordSetup(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), account)
			})
		},
	}
}

func newDeactivateCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "deactivate <account-id>",
		Short: "Deactivate a portal account and revoke its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				account, err := a.Portal.Deactivate(ctx, args[0], reason)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), account)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit log")

	return cmd
}

func newRevokeSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-sessions <account-id>",
		Short: "Sign a portal account out everywhere without deactivating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Sessions.RevokeAll(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %d sessions\n", n)
				return nil
			})
		},
	}
}

func newCleanupSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-sessions",
		Short: "Delete session rows past the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				job := jobs.NewCleanupJob(a.SessionRepo, a.Config.SessionRetention(), config.CleanupJobInterval)
				n, err := job.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d sessions\n", n)
				return nil
			})
		},
	}
}
