package di

import (
	"fmt"

	"github.com/aristath/dreamengine/internal/modules/dreams"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
	"github.com/aristath/dreamengine/internal/modules/settings"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.DreamRepo = dreams.NewRepository(container.DreamsDB.Conn(), log)
	container.EvaluationRepo = evaluation.NewRepository(container.LedgerDB.Conn(), log)
	container.SettingsRepo = settings.NewRepository(container.ConfigDB.Conn(), log)

	return nil
}
