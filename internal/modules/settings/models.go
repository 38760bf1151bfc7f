package settings

import "errors"

// ErrUnknownSetting is returned for keys outside SettingDefaults
var ErrUnknownSetting = errors.New("unknown setting")

// ErrInvalidValue is returned when a value cannot be stored for a key
var ErrInvalidValue = errors.New("invalid setting value")

// SettingDefaults holds the default of every runtime-overridable setting.
// Values mirror the environment defaults of the retest job.
var SettingDefaults = map[string]float64{
	"retest_interval_days":      30,
	"max_cost_per_day":          10.00,
	"priority_threshold_high":   75,
	"priority_threshold_medium": 50,
	"retest_candidate_limit":    200,
}

// integerSettings are stored without a fractional part
var integerSettings = map[string]bool{
	"retest_interval_days":   true,
	"retest_candidate_limit": true,
}

// SettingDescriptions holds human-readable descriptions for all settings
var SettingDescriptions = map[string]string{
	"retest_interval_days":      "Days after a completed evaluation before a dream is due for an automatic retest",
	"max_cost_per_day":          "Daily spend ceiling in USD across all evaluations (direct and scheduled)",
	"priority_threshold_high":   "Impossibility score at or above which a dream is retested with two premium models",
	"priority_threshold_medium": "Impossibility score at or above which a dream is retested with one premium model",
	"retest_candidate_limit":    "Maximum number of dreams considered by one retest pass",
}

// Setting is one key with its effective value
type Setting struct {
	Key         string  `json:"key"`
	Value       float64 `json:"value"`
	Default     float64 `json:"default"`
	Description string  `json:"description"`
	Overridden  bool    `json:"overridden"`
}

// SettingUpdate represents a setting value update request
type SettingUpdate struct {
	Value interface{} `json:"value"`
}
