package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/yourusername/blog-api/internal/auth"
	"github.com/yourusername/blog-api/internal/config"
	"github.com/yourusername/blog-api/internal/database"
)

type dbFlags struct {
	driver string
	dsn    string
}

func newRootCmd() *cobra.Command {
	flags := &dbFlags{}
	rootCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Blog API schema migration tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.driver, "driver", "", "database driver (sqlite or postgres); defaults to DATABASE_DRIVER")
	rootCmd.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "database DSN; defaults to DATABASE_URL")

	rootCmd.AddCommand(
		upCmd(flags),
		downCmd(flags),
		statusCmd(flags),
		seedCmd(flags),
	)
	return rootCmd
}

// withDB は設定とフラグから接続を開き、fn の終了後に閉じます。
func withDB(flags *dbFlags, fn func(db *gorm.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	driver, dsn := cfg.DatabaseDriver, cfg.DatabaseURL
	if flags.driver != "" {
		driver = flags.driver
	}
	if flags.dsn != "" {
		dsn = flags.dsn
	}

	db, err := database.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer database.Close(db)
	return fn(db)
}

func upCmd(flags *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(flags, func(db *gorm.DB) error {
				applied, err := database.NewMigrator(db).Up()
				if err != nil {
					return err
				}
				if applied == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", applied)
				return nil
			})
		},
	}
}

func downCmd(flags *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recently applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(flags, func(db *gorm.DB) error {
				record, err := database.NewMigrator(db).Down()
				if err != nil {
					return err
				}
				if record == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No migrations to roll back.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s (%s).\n", record.Version, record.Name)
				return nil
			})
		},
	}
}

func statusCmd(flags *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show status of all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(flags, func(db *gorm.DB) error {
				statuses, err := database.NewMigrator(db).Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-16s  %-20s  %-8s\n", "Version", "Name", "Status")
				for _, st := range statuses {
					status := "Pending"
					if st.Applied {
						status = "Applied"
					}
					fmt.Fprintf(out, "%-16s  %-20s  %-8s\n", st.Version, st.Name, status)
				}
				return nil
			})
		},
	}
}

func seedCmd(flags *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Apply migrations and insert demo users, posts and comments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(flags, func(db *gorm.DB) error {
				if err := database.Migrate(db); err != nil {
					return err
				}
				result, err := database.Seed(cmd.Context(), db, auth.HashPassword)
				if err != nil {
					return err
				}
				if result.Users == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Database already has users; skipping seed.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users, %d posts, %d comments (password: %q).\n",
					result.Users, result.Posts, result.Comments, database.SeedPassword)
				return nil
			})
		},
	}
}
