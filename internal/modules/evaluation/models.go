// Package evaluation scores dreams with generative AI providers, combines
// per-model results into a consensus, and analyses how scores move over time.
package evaluation

import (
	"time"
)

// Status of a persisted evaluation record
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ConsensusProvider is the provider name carried by consensus results
const ConsensusProvider = "consensus"

// DimensionScores are the four rubric scores, each in [0,100]
type DimensionScores struct {
	Comprehension float64 `json:"comprehension_score"`
	Quality       float64 `json:"quality_score"`
	Innovation    float64 `json:"innovation_score"`
	Feasibility   float64 `json:"feasibility_score"`
}

// Mean returns the arithmetic mean of the four scores
func (d DimensionScores) Mean() float64 {
	return (d.Comprehension + d.Quality + d.Innovation + d.Feasibility) / 4
}

// Metadata describes how a result was produced
type Metadata struct {
	Provider    string                 `json:"provider"`
	Model       string                 `json:"model"`
	TokensUsed  int                    `json:"tokens_used"`
	DurationMs  int64                  `json:"duration_ms"`
	Parameters  map[string]interface{} `json:"parameters"`
	ContentHash string                 `json:"content_hash,omitempty"`
}

// Result is one scored evaluation of a dream.
// OverallScore and ImpossibilityScore are derived from Scores; use NewResult.
type Result struct {
	ID                 string          `json:"id,omitempty"`
	DreamID            string          `json:"dream_id"`
	Scores             DimensionScores `json:"scores"`
	OverallScore       float64         `json:"overall_score"`
	ImpossibilityScore float64         `json:"impossibility_score"`
	Confidence         float64         `json:"confidence"`
	Reasoning          string          `json:"reasoning"`
	Metadata           Metadata        `json:"metadata"`
	Cost               float64         `json:"cost"`
	CreatedAt          time.Time       `json:"created_at"`
}

// NewResult builds a Result, deriving the overall and impossibility scores
func NewResult(dreamID string, scores DimensionScores, confidence float64, reasoning string, meta Metadata) Result {
	overall := scores.Mean()
	return Result{
		DreamID:            dreamID,
		Scores:             scores,
		OverallScore:       overall,
		ImpossibilityScore: 100 - overall,
		Confidence:         confidence,
		Reasoning:          reasoning,
		Metadata:           meta,
	}
}

// ModelConfig is one (provider, model) pair with its sampling parameters
type ModelConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Key returns "provider/model"
func (m ModelConfig) Key() string {
	return m.Provider + "/" + m.Model
}

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 2000
	evaluationVersion  = "1.0"
)

// Model catalogue
var (
	ModelGPT4o        = ModelConfig{Provider: "openai", Model: "gpt-4o", Temperature: defaultTemperature, MaxTokens: defaultMaxTokens}
	ModelGPT4oMini    = ModelConfig{Provider: "openai", Model: "gpt-4o-mini", Temperature: defaultTemperature, MaxTokens: defaultMaxTokens}
	ModelClaudeSonnet = ModelConfig{Provider: "anthropic", Model: "claude-3-5-sonnet-20241022", Temperature: defaultTemperature, MaxTokens: defaultMaxTokens}
	ModelClaudeHaiku  = ModelConfig{Provider: "anthropic", Model: "claude-3-5-haiku-20241022", Temperature: defaultTemperature, MaxTokens: defaultMaxTokens}
)

// DefaultConsensusModels are the pairs used when a request names providers
// rather than explicit models. Order matters when multi-model is disabled.
func DefaultConsensusModels() []ModelConfig {
	return []ModelConfig{ModelGPT4o, ModelClaudeSonnet}
}

// DefaultProviders is used when a request names no providers
var DefaultProviders = []string{"openai", "anthropic"}

// Request asks for one dream to be evaluated
type Request struct {
	DreamID          string        `json:"dream_id"`
	UserID           string        `json:"user_id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	OriginalPrompt   string        `json:"original_prompt"`
	Category         string        `json:"category"`
	Providers        []string      `json:"providers"`
	EnableMultiModel bool          `json:"enable_multi_model"`
	Models           []ModelConfig `json:"models,omitempty"` // Explicit pairs; take precedence over Providers
}

// Record is a persisted evaluation attempt, successful or not
type Record struct {
	ID                 string
	DreamID            string
	UserID             string
	Provider           string
	Model              string
	Status             Status
	Scores             DimensionScores
	OverallScore       float64
	ImpossibilityScore float64
	Confidence         float64
	Reasoning          string
	TokensUsed         int
	DurationMs         int64
	Cost               float64
	Parameters         map[string]interface{}
	PromptHash         string
	ErrorMessage       string
	RawResponse        string
	CreatedAt          time.Time
}

// Result converts a completed record back into a Result
func (r Record) Result() Result {
	return Result{
		ID:                 r.ID,
		DreamID:            r.DreamID,
		Scores:             r.Scores,
		OverallScore:       r.OverallScore,
		ImpossibilityScore: r.ImpossibilityScore,
		Confidence:         r.Confidence,
		Reasoning:          r.Reasoning,
		Metadata: Metadata{
			Provider:    r.Provider,
			Model:       r.Model,
			TokensUsed:  r.TokensUsed,
			DurationMs:  r.DurationMs,
			Parameters:  r.Parameters,
			ContentHash: r.PromptHash,
		},
		Cost:      r.Cost,
		CreatedAt: r.CreatedAt,
	}
}

// Filter selects evaluation records. Zero values mean "no constraint".
type Filter struct {
	Start    time.Time // inclusive
	End      time.Time // exclusive
	UserID   string
	DreamID  string
	Provider string
	Status   Status
	Limit    int
}

// TrendDirection classifies a change in impossibility
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendWorsening TrendDirection = "worsening"
	TrendStable    TrendDirection = "stable"
)

// Sample is one point of a dream's score history
type Sample struct {
	ImpossibilityScore float64   `json:"impossibility_score"`
	Confidence         float64   `json:"confidence"`
	CreatedAt          time.Time `json:"created_at"`
}

// DecayAnalysis compares the two most recent evaluations of a dream
type DecayAnalysis struct {
	DreamID        string         `json:"dream_id,omitempty"`
	CurrentScore   float64        `json:"current_score"`
	PreviousScore  *float64       `json:"previous_score"`
	DecayRate      float64        `json:"decay_rate"`
	TrendDirection TrendDirection `json:"trend_direction"`
	Confidence     float64        `json:"confidence"`
	SampleCount    int            `json:"sample_count"`
}
