package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/campadventure/signup/internal/config"
	"github.com/campadventure/signup/internal/platform/auth"
	"github.com/campadventure/signup/internal/platform/db"
	"github.com/campadventure/signup/internal/tui"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "camp-server",
		Short: "Camp Adventure sign-up server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(wizardCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the sign-up API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, newLogger(cfg, os.Stdout))
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(dir string, fn func(context.Context, *db.Migrator) error) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.UsesPostgres() {
			return errors.New("DATABASE_URL is required for migrations")
		}
		ctx := context.Background()
		pool, err := db.NewPool(ctx, poolConfig(cfg), newLogger(cfg, os.Stderr))
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, db.NewMigrator(pool, dir))
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func wizardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Register a camper from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			accessible, _ := cmd.Flags().GetBool("accessible")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Keep the log out of the way of the forms.
			logger := newLogger(cfg, os.Stderr).Level(levelOrWarn(cfg.LogLevel))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, err := buildDeps(ctx, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer deps.Close()

			w := tui.New(deps.Service, tui.NewHuhPrompter(cmd.InOrStdin(), cmd.OutOrStdout(), accessible), cmd.OutOrStdout())
			if _, err := w.Run(ctx); err != nil {
				if errors.Is(err, tui.ErrQuit) {
					fmt.Fprintln(cmd.OutOrStdout(), "Registration cancelled.")
					return nil
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().Bool("accessible", false, "Use plain line prompts instead of interactive forms")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			roles, _ := cmd.Flags().GetStringSlice("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if err := auth.ValidateRoles(roles); err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(adminJWTConfig(cfg), subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("subject", "camp-staff", "Token subject")
	cmd.Flags().StringSlice("role", []string{auth.RoleStaff}, "Roles to grant (admin, staff)")
	cmd.Flags().Duration("ttl", 8*time.Hour, "Token lifetime")
	return cmd
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns}
}

func adminJWTConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AdminJWTIssuer,
		Audience:   "camp-admin",
		SigningKey: []byte(strings.TrimSpace(cfg.AdminJWTSecret)),
	}
}
