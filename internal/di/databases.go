package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/dreamengine/internal/config"
	"github.com/aristath/dreamengine/internal/database"
	"github.com/rs/zerolog"
)

type databaseDef struct {
	name    string
	profile database.DatabaseProfile
}

// databaseDefs lists the engine's databases in initialization order
var databaseDefs = []databaseDef{
	{name: database.NameDreams, profile: database.ProfileStandard},
	{name: database.NameLedger, profile: database.ProfileLedger}, // Maximum safety for the audit trail
	{name: database.NameConfig, profile: database.ProfileStandard},
}

// InitializeDatabases opens the engine's databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{log: log}

	for _, def := range databaseDefs {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, def.name+".db"),
			Profile: def.profile,
			Name:    def.name,
			Driver:  cfg.DBDriver,
		})
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", def.name, err)
		}

		switch def.name {
		case database.NameDreams:
			container.DreamsDB = db
		case database.NameLedger:
			container.LedgerDB = db
		case database.NameConfig:
			container.ConfigDB = db
		}

		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", def.name, err)
		}

		log.Debug().Str("database", def.name).Str("path", db.Path()).Msg("Database initialized")
	}

	return container, nil
}
