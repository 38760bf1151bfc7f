package settings

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Service validates and resolves settings against their defaults
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new settings service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "settings").Logger(),
	}
}

// Repository exposes the underlying store for config reloads
func (s *Service) Repository() *Repository {
	return s.repo
}

// Get returns the effective value of key
func (s *Service) Get(key string) (Setting, error) {
	def, ok := SettingDefaults[key]
	if !ok {
		return Setting{}, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	raw, err := s.repo.Get(key)
	if err != nil {
		return Setting{}, err
	}

	setting := Setting{Key: key, Value: def, Default: def, Description: SettingDescriptions[key]}
	if raw != nil && *raw != "" {
		if f, err := strconv.ParseFloat(*raw, 64); err == nil {
			setting.Value = f
			setting.Overridden = true
		}
	}
	return setting, nil
}

// GetAll returns every known setting, sorted by key
func (s *Service) GetAll() ([]Setting, error) {
	keys := make([]string, 0, len(SettingDefaults))
	for key := range SettingDefaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]Setting, 0, len(keys))
	for _, key := range keys {
		setting, err := s.Get(key)
		if err != nil {
			return nil, err
		}
		out = append(out, setting)
	}
	return out, nil
}

// Set validates and stores value for key. Numbers and numeric strings are
// accepted; negative or non-finite values are rejected.
func (s *Service) Set(key string, value interface{}) (Setting, error) {
	if _, ok := SettingDefaults[key]; !ok {
		return Setting{}, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	f, err := toFloat(value)
	if err != nil {
		return Setting{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return Setting{}, fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidValue, key)
	}

	if integerSettings[key] {
		if f != math.Trunc(f) {
			return Setting{}, fmt.Errorf("%w: %s must be a whole number", ErrInvalidValue, key)
		}
		err = s.repo.SetInt(key, int(f))
	} else {
		err = s.repo.SetFloat(key, f)
	}
	if err != nil {
		return Setting{}, err
	}

	s.log.Info().Str("key", key).Float64("value", f).Msg("Setting updated")
	return s.Get(key)
}

// Reset removes the override for key so the default applies again
func (s *Service) Reset(key string) (Setting, error) {
	if _, ok := SettingDefaults[key]; !ok {
		return Setting{}, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if err := s.repo.Delete(key); err != nil {
		return Setting{}, err
	}
	s.log.Info().Str("key", key).Msg("Setting reset to default")
	return s.Get(key)
}

// Restore puts back a raw value captured with Repository.Get; nil deletes
func (s *Service) Restore(key string, raw *string) error {
	if raw == nil {
		return s.repo.Delete(key)
	}
	return s.repo.Set(key, *raw, nil)
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case nil:
		return 0, fmt.Errorf("value is required")
	}
	return 0, fmt.Errorf("unsupported value type %T", value)
}
