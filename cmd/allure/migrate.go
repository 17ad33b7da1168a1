package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/allureimpex/allure-impex-api/internal/config"
	"github.com/allureimpex/allure-impex-api/internal/database"
)

func migrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) the MySQL schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if e.cfg.StoreDriver != config.DriverMySQL {
				return fmt.Errorf("migrate needs STORE_DRIVER=mysql, got %q", e.cfg.StoreDriver)
			}
			db, err := database.OpenMySQL(e.cfg.MySQL)
			if err != nil {
				return err
			}
			defer db.Close()

			m, err := database.NewMigrator(db)
			if err != nil {
				return err
			}
			if down {
				err = m.Steps(-1)
			} else {
				err = m.Up()
			}
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return err
			}
			v, dirty, verr := m.Version()
			if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
				return verr
			}
			e.log.Info().Uint("version", v).Bool("dirty", dirty).Msg("migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back one migration")
	return cmd
}
