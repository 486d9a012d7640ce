package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/weiwangfds/melodia/internal/auth"
	"github.com/weiwangfds/melodia/internal/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var (
		username     string
		email        string
		password     string
		demo         bool
		demoPassword string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the admin account and optional demo data",
		Long:  "Create the admin account and optional demo data. The admin password may also come from MELODIA_ADMIN_PASSWORD.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv("MELODIA_ADMIN_PASSWORD")
			}
			if password == "" {
				return errors.New("admin password is required (--admin-password or MELODIA_ADMIN_PASSWORD)")
			}
			if len(password) < 8 {
				return errors.New("admin password must be at least 8 characters")
			}
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}

			adminHash, err := auth.HashPassword(password, cfg.Auth.BcryptCost)
			if err != nil {
				return err
			}
			opts := database.SeedOptions{
				AdminUsername:     username,
				AdminEmail:        email,
				AdminPasswordHash: adminHash,
				Demo:              demo,
			}
			if demo {
				if opts.DemoPasswordHash, err = auth.HashPassword(demoPassword, cfg.Auth.BcryptCost); err != nil {
					return err
				}
			}

			db, err := ctx.openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.Migrate(db); err != nil {
				return err
			}
			res, err := database.Seed(db, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.AdminCreated {
				fmt.Fprintf(out, "admin %q created\n", username)
			} else {
				fmt.Fprintf(out, "admin %q already exists\n", username)
			}
			if demo {
				fmt.Fprintf(out, "demo songs created: %d\n", res.DemoSongs)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "admin-username", "admin", "Admin username")
	cmd.Flags().StringVar(&email, "admin-email", "admin@melodia.local", "Admin email")
	cmd.Flags().StringVar(&password, "admin-password", "", "Admin password")
	cmd.Flags().BoolVar(&demo, "demo", false, "Also create a demo artist with songs")
	cmd.Flags().StringVar(&demoPassword, "demo-password", "demo-password", "Password of the demo artist account")
	return cmd
}
