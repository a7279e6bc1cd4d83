package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tillcore/internal/app"
	"tillcore/internal/config"
	"tillcore/internal/core/numerator"
	"tillcore/internal/domain"
	"tillcore/internal/domain/auth"
	"tillcore/internal/domain/heldsale"
	"tillcore/migrations"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	JSON bool
}

// appFactory builds the wired application. Tests replace it.
type appFactory func(ctx context.Context) (*app.App, error)

func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := app.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, log)
}

func newRootCommand() *cobra.Command {
	return buildRoot(loadApp, config.Load)
}

func buildRoot(load appFactory, loadConfig func() (config.Config, error)) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "tillctl",
		Short:         "tillctl operates a tillcore deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print results as JSON")

	cmd.AddCommand(newMigrateCommand(opts, load))
	cmd.AddCommand(newSweepCommand(opts, load))
	cmd.AddCommand(newTokenCommand(opts, loadConfig))
	cmd.AddCommand(newSessionCommand(opts, load))
	cmd.AddCommand(newHoldsCommand(opts, load))
	cmd.AddCommand(newSequenceCommand(opts, load))
	return cmd
}

func newMigrateCommand(opts *rootOptions, load appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := migrations.Apply(cmd.Context(), a.Pool.Pool)
			if err != nil {
				return err
			}
			if applied == nil {
				applied = []string{}
			}
			return output(cmd.OutOrStdout(), opts, map[string]any{"applied": applied},
				fmt.Sprintf("applied %d migration(s) %s", len(applied), strings.Join(applied, " ")))
		},
	}
}

func newSweepCommand(opts *rootOptions, load appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire held sales whose expiry has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Holds.ExpireSweep(cmd.Context(), a.Clock.Now())
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), opts, map[string]any{"expired": n},
				fmt.Sprintf("expired %d held sale(s)", n))
		},
	}
}

func newTokenCommand(opts *rootOptions, loadConfig func() (config.Config, error)) *cobra.Command {
	var (
		name    string
		roles   []string
		admin   bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <actor-id>",
		Short: "Issue an access token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
			jwtCfg.Issuer = cfg.JWTIssuer
			if timeout > 0 {
				jwtCfg.AccessTokenTTL = timeout
			}

			token, expiresAt, err := auth.NewJWTService(jwtCfg).GenerateAccessToken(args[0], name, roles, admin)
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), opts, map[string]any{"token": token, "expiresAt": expiresAt}, token)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name used for bill number prefixes")
	cmd.Flags().StringSliceVar(&roles, "role", []string{auth.RoleCashier}, "roles to grant")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant every role")
	cmd.Flags().DurationVar(&timeout, "ttl", 0, "token lifetime (default from config)")
	return cmd
}

func newSessionCommand(opts *rootOptions, load appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Open or close a cash register session",
	}

	run := func(action string) *cobra.Command {
		return &cobra.Command{
			Use:   action + " <actor-id>",
			Short: strings.ToUpper(action[:1]) + action[1:] + " the register of an actor",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := load(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()

				actor := &domain.Actor{ID: args[0]}
				open := a.Register.Open
				if action == "close" {
					open = a.Register.Close
				}
				s, err := open(cmd.Context(), actor)
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), opts, s,
					fmt.Sprintf("session %s %s", s.ID, s.Status))
			},
		}
	}

	cmd.AddCommand(run("open"), run("close"))
	return cmd
}

func newHoldsCommand(opts *rootOptions, load appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holds",
		Short: "Inspect held sales",
	}

	var limit int
	history := &cobra.Command{
		Use:   "history <hold-id>",
		Short: "Show the archived entries of a held sale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Audit.History(cmd.Context(), heldsale.EntityType, args[0], limit)
			if err != nil {
				return err
			}
			if opts.JSON {
				return output(cmd.OutOrStdout(), opts, entries, "")
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format(time.RFC3339), e.Action, e.UserID, e.Changes)
			}
			return nil
		},
	}
	history.Flags().IntVar(&limit, "limit", 20, "maximum entries")

	cmd.AddCommand(history)
	return cmd
}

func newSequenceCommand(opts *rootOptions, load appFactory) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "sequence <actor-id>",
		Short: "Show the bill counter of an actor's numbering scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			scope := numerator.NewScope(args[0], name)
			current, err := a.Sequences.Current(cmd.Context(), scope.Key())
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), opts, sequenceView(scope, current), fmt.Sprintf("%s current=%d", scope.Key(), current))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name the scope prefix is derived from")
	return cmd
}

// sequenceView is the JSON shape of the sequence command.
func sequenceView(scope numerator.Scope, current int64) map[string]any {
	return map[string]any{
		"scope":   scope.Key(),
		"current": current,
		"next":    scope.Format(current + 1),
	}
}

func output(w io.Writer, opts *rootOptions, v any, text string) error {
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
