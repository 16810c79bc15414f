// Command catalogctl installs, uninstalls and maintains the catalog service.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"catalog/internal/app"
	"catalog/internal/auth"
	"catalog/internal/config"
	"catalog/internal/logger"
	"catalog/internal/services/fakestore"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand(buildApp).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.New(cfg, logger.New(cfg.LogLevel))
}

// withApp runs fn against a freshly built application context and closes it.
func withApp(build func() (*app.App, error), fn func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := build()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

func newRootCommand(build func() (*app.App, error)) *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Manage the product catalog service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Create the schema and default settings",
			Args:  cobra.NoArgs,
			RunE: withApp(build, func(cmd *cobra.Command, a *app.App, _ []string) error {
				if err := a.Install(cmd.Context()); err != nil {
					return err
				}
				cmd.Println("Installed.")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Remove settings, content records, media and cached products",
			Args:  cobra.NoArgs,
			RunE: withApp(build, func(cmd *cobra.Command, a *app.App, _ []string) error {
				report, err := a.Uninstall(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Printf("Removed %d records and %d cached products.\n", report.Records, report.CacheKeys)
				return nil
			}),
		},
		newCacheCommand(build),
		newAdminTokenCommand(build),
	)

	return root
}

func newCacheCommand(build func() (*app.App, error)) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the product cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear [product-id]",
		Short: "Clear one cached product, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(build, func(cmd *cobra.Command, a *app.App, args []string) error {
			if len(args) == 0 {
				if err := a.Products.ClearCache(cmd.Context(), nil); err != nil {
					return err
				}
				cmd.Println("Cleared all cached products.")
				return nil
			}

			id, err := strconv.Atoi(args[0])
			if err != nil || !fakestore.ValidProductID(id) {
				return fmt.Errorf("product id must be between %d and %d", fakestore.MinProductID, fakestore.MaxProductID)
			}
			if err := a.Products.ClearCache(cmd.Context(), &id); err != nil {
				return err
			}
			cmd.Printf("Cleared cached product %d.\n", id)
			return nil
		}),
	})

	return cacheCmd
}

func newAdminTokenCommand(build func() (*app.App, error)) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Print a bearer token for the settings and cache endpoints",
		Args:  cobra.NoArgs,
		RunE: withApp(build, func(cmd *cobra.Command, a *app.App, _ []string) error {
			token, err := auth.IssueAdminToken(a.Config.JWTSecret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		}),
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "who the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")

	return cmd
}
