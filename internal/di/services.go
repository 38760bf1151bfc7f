package di

import (
	"context"
	"fmt"

	"github.com/aristath/dreamengine/internal/clients/anthropic"
	"github.com/aristath/dreamengine/internal/clients/openai"
	"github.com/aristath/dreamengine/internal/config"
	"github.com/aristath/dreamengine/internal/events"
	"github.com/aristath/dreamengine/internal/llm"
	"github.com/aristath/dreamengine/internal/modules/analytics"
	"github.com/aristath/dreamengine/internal/modules/costs"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
	"github.com/aristath/dreamengine/internal/modules/settings"
	"github.com/aristath/dreamengine/internal/reliability"
	"github.com/aristath/dreamengine/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeServices creates all services and stores them in the container.
// Repositories must already be initialized.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.EventBus = events.NewBus(log)

	container.Providers = buildProviders(cfg, log)
	container.EvaluationService = evaluation.NewService(
		container.EvaluationRepo,
		container.Providers,
		cfg.Job.CostPerRequest,
		cfg.ProviderTimeout,
		log,
	)
	container.CostTracker = costs.NewTracker(container.EvaluationRepo, log)
	container.AnalyticsService = analytics.NewService(container.DreamRepo, container.EvaluationRepo, container.CostTracker, log)
	container.SettingsService = settings.NewService(container.SettingsRepo, log)

	// Settings DB takes precedence over environment variables
	container.BaseJobConfig = cfg.Job
	if err := cfg.UpdateFromSettings(container.SettingsRepo); err != nil {
		log.Warn().Err(err).Msg("Failed to apply settings overrides, using environment configuration")
	}

	container.RetestScheduler = scheduler.NewRetestScheduler(
		container.DreamRepo,
		container.EvaluationRepo,
		container.EvaluationService,
		container.CostTracker,
		container.EventBus,
		cfg.Job,
		log,
	)

	container.BackupService = reliability.NewBackupService(container.Databases(), log)
	if cfg.Backup != nil && cfg.Backup.Enabled {
		store, err := reliability.NewS3Store(context.Background(), cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup object store: %w", err)
		}
		container.S3BackupService = reliability.NewS3BackupService(store, container.BackupService, cfg.DataDir, log)
	}

	return nil
}

// buildProviders registers an adapter for every provider with credentials.
// Providers without a key are left out and skipped by the orchestrator.
func buildProviders(cfg *config.Config, log zerolog.Logger) *llm.Registry {
	registry := llm.NewRegistry()

	if cfg.OpenAIAPIKey != "" {
		registry.Register(openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ProviderTimeout, cfg.ProviderRequestsPerMinute, log))
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, openai models disabled")
	}

	if cfg.AnthropicAPIKey != "" {
		registry.Register(anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.ProviderTimeout, cfg.ProviderRequestsPerMinute, log))
	} else {
		log.Warn().Msg("ANTHROPIC_API_KEY not set, anthropic models disabled")
	}

	return registry
}

// ReloadJobConfig rebuilds the retest job configuration from the environment
// baseline plus the current settings overrides and hands it to the scheduler.
func (c *Container) ReloadJobConfig() error {
	cfg := config.Config{Job: c.BaseJobConfig}
	if err := cfg.UpdateFromSettings(c.SettingsRepo); err != nil {
		return err
	}
	if err := c.RetestScheduler.UpdateConfig(cfg.Job); err != nil {
		return err
	}

	c.log.Info().
		Int("retest_interval_days", cfg.Job.RetestIntervalDays).
		Float64("max_cost_per_day", cfg.Job.MaxCostPerDay).
		Msg("Retest configuration reloaded")
	return nil
}
