package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/hospital-core/internal/migration"
	"github.com/jwalitptl/hospital-core/internal/migration/steps"
	"github.com/jwalitptl/hospital-core/internal/schema"
)

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetString("to")
			return a.withMigrator(cmd, func(m *migration.Migrator) error {
				count, err := m.UpTo(cmd.Context(), target)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s).\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("to", "", "Stop after this migration key")
	cmd.AddCommand(upCmd)

	downCmd := &cobra.Command{
		Use:   "down [n]",
		Short: "Revert the n most recent migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			n := 1
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil || v <= 0 {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				n = v
			}
			return a.withMigrator(cmd, func(m *migration.Migrator) error {
				var (
					count int
					err   error
				)
				if all {
					count, err = m.DownAll(cmd.Context())
				} else {
					count, err = m.Down(cmd.Context(), n)
				}
				if err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				fmt.Printf("Reverted %d migration(s).\n", count)
				return nil
			})
		},
	}
	downCmd.Flags().Bool("all", false, "Revert every applied migration")
	cmd.AddCommand(downCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMigrator(cmd, func(m *migration.Migrator) error {
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(statuses)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Compare the live schema with the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMigrator(cmd, func(m *migration.Migrator) error {
				if err := m.Verify(cmd.Context()); err != nil {
					return err
				}
				fmt.Println("Schema matches registry.")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <key>",
		Short: "Mark migrations up to key as applied and clear dirty rows",
		Long:  "Rewrites the ledger only. Use after repairing a failed migration by hand; an empty key clears the ledger.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMigrator(cmd, func(m *migration.Migrator) error {
				if err := m.Force(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("Ledger forced to %q.\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Replay every migration up and down against an in-memory schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.check(cmd)
		},
	})

	return cmd
}

func (a *app) newMigrator(d migration.Driver) (*migration.Migrator, error) {
	return migration.New(d, steps.All(), migration.Options{
		Registry:   schema.Current(),
		Logger:     a.log,
		Metrics:    a.metrics,
		MaxRetries: a.cfg.Migration.MaxRetries,
		Backoff:    a.cfg.Migration.Backoff,
	})
}

func (a *app) withMigrator(cmd *cobra.Command, fn func(*migration.Migrator) error) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	m, err := a.newMigrator(migration.NewPostgresDriver(store.DB(), a.cfg.Migration.LockID))
	if err != nil {
		return err
	}
	return fn(m)
}

// check needs no database: it applies every step to a memory driver,
// verifies the result against the registry and reverts it all again.
func (a *app) check(cmd *cobra.Command) error {
	ctx := cmd.Context()
	driver := migration.NewMemoryDriver()
	m, err := a.newMigrator(driver)
	if err != nil {
		return err
	}
	applied, err := m.Up(ctx)
	if err != nil {
		return fmt.Errorf("replay up failed: %w", err)
	}
	if err := m.Verify(ctx); err != nil {
		return err
	}
	reverted, err := m.DownAll(ctx)
	if err != nil {
		return fmt.Errorf("replay down failed: %w", err)
	}
	if snap := driver.Snapshot(); !snap.IsEmpty() {
		return fmt.Errorf("schema not empty after reverting every migration:\n%s", snap)
	}
	fmt.Printf("Replayed %d migration(s) up and %d down.\n", applied, reverted)
	return nil
}

func printStatus(statuses []migration.StepStatus) {
	fmt.Printf("%-8s %-40s %-10s %s\n", "KEY", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status := "pending"
		switch {
		case s.Dirty:
			status = "dirty"
		case s.Unknown:
			status = "unknown"
		case s.Applied:
			status = "applied"
		}
		appliedAt := ""
		if s.AppliedAt != nil {
			appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-8s %-40s %-10s %s\n", s.Key, s.Name, status, appliedAt)
		if s.Error != "" {
			fmt.Printf("         error: %s\n", s.Error)
		}
	}
}
