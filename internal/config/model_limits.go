package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// modelLimitsFile is the on-disk shape of MODEL_LIMITS_FILE:
//
//	models:
//	  gpt-4o:
//	    max_requests_per_day: 20
//	    cost_per_request: 0.15
type modelLimitsFile struct {
	Models map[string]ModelLimit `yaml:"models"`
}

// LoadModelLimits reads per-model limits from a YAML file
func LoadModelLimits(path string) (map[string]ModelLimit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model limits file: %w", err)
	}

	var file modelLimitsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model limits file %s: %w", path, err)
	}

	if len(file.Models) == 0 {
		return nil, fmt.Errorf("model limits file %s defines no models", path)
	}

	return file.Models, nil
}
