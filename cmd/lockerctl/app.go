package main

import (
	"database/sql"
	"locker-reservation-service/internal/adapters/audit"
	"locker-reservation-service/internal/adapters/geocode"
	"locker-reservation-service/internal/adapters/notify"
	"locker-reservation-service/internal/adapters/repositories"
	"locker-reservation-service/internal/config"
	"locker-reservation-service/internal/platform/db"
	"locker-reservation-service/internal/ports"
	"locker-reservation-service/internal/services"
	"os"

	"github.com/spf13/cobra"
)

// app holds the store and services shared by every subcommand.
type app struct {
	cfg     config.Config
	db      *sql.DB
	dialect repositories.Dialect
	store   *repositories.SQLLockerStore
	locker  *services.Locker
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sqlDB, err := db.OpenFor(cfg.DBDriver, cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		return err
	}
	dialect, err := repositories.DialectFor(cfg.DBDriver)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}

	a.cfg = cfg
	a.db = sqlDB
	a.dialect = dialect
	a.store = repositories.NewSQLLockerStore(sqlDB, dialect)
	a.locker = services.New(services.Deps{
		Store:    a.store,
		Auditor:  audit.NewLogAuditor(os.Stderr),
		Notifier: notify.LogNotifier{},
	}, cfg.Policy())
	return nil
}

// geocoder returns nil when no ORS key is configured.
func (a *app) geocoder() ports.Geocoder {
	if a.cfg.ORSAPIKey == "" {
		return nil
	}
	g, err := geocode.NewORSGeocoder(a.cfg.ORSAPIKey, a.cfg.ORSBaseURL, repositories.NewSQLGeocodeCache(a.db, a.dialect))
	if err != nil {
		return nil
	}
	return g
}

func (a *app) close(*cobra.Command, []string) error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:                "lockerctl",
		Short:              "Operate the locker reservation database",
		SilenceUsage:       true,
		PersistentPreRunE:  a.open,
		PersistentPostRunE: a.close,
	}
	cmd.AddCommand(
		newMigrateCommand(a),
		newSeedCommand(a),
		newReclaimCommand(a),
		newStatusCommand(a),
		newMaintenanceCommand(a),
		newRegisterCommand(a),
	)
	return cmd
}
