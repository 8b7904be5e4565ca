package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/hospital-core/internal/repository/cache"
	"github.com/jwalitptl/hospital-core/internal/repository/postgres"
	"github.com/jwalitptl/hospital-core/internal/seed"
	"github.com/jwalitptl/hospital-core/pkg/security"
)

func seedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo reference data",
		Long:  "Writes departments, demo accounts, lab templates, medications and stock. Rows that already exist are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			repos := postgres.NewRepositories(store)
			ttl := a.cfg.Seed.CacheTTL
			seeder := seed.New(seed.Repositories{
				Users:            repos.Users,
				Departments:      cache.Departments(repos.Departments, ttl),
				Doctors:          repos.Doctors,
				Patients:         repos.Patients,
				LabTestTemplates: cache.LabTestTemplates(repos.LabTestTemplates, ttl),
				Medications:      repos.Medications,
				Inventory:        repos.Inventory,
			}, security.NewBcryptHasher(bcrypt.DefaultCost), a.cfg.Seed.DemoPassword, a.log)

			report, err := seeder.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d row(s), %d already present.\n", report.Created, report.Skipped)
			return nil
		},
	}
}
