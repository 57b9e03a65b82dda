package cli

import (
	"GDALedger/internal/persistence"
	"GDALedger/internal/projection"
	"GDALedger/migrations"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the Postgres schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := persistence.NewMigrator(db, migrations.FS, log).Up(cmd.Context())
		if err != nil {
			return err
		}
		log.Info().Int("applied", n).Msg("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := persistence.NewMigrator(db, migrations.FS, log).Down(cmd.Context()); err != nil {
			return err
		}
		log.Info().Msg("last migration rolled back")
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild-projections",
	Short: "Rebuild projected balances from the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		return projection.RebuildProjections(cmd.Context(), db, log)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd, rebuildCmd)
}
