// Package analytics builds per-user reports over the evaluation ledger:
// activity, model behaviour, impossibility decay and spend.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/dreamengine/internal/modules/costs"
	"github.com/aristath/dreamengine/internal/modules/dreams"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
	"github.com/aristath/dreamengine/pkg/formulas"
	"github.com/rs/zerolog"
)

// DefaultDays is the report window when none is given
const DefaultDays = 30

// DreamStore is the read side of the dream store
type DreamStore interface {
	ListByUser(userID string) ([]dreams.Dream, error)
	GetByID(id string) (*dreams.Dream, error)
}

// RecordLister lists evaluation records
type RecordLister interface {
	List(f evaluation.Filter) ([]evaluation.Record, error)
}

// Service computes analytics reports
type Service struct {
	dreams  DreamStore
	records RecordLister
	tracker *costs.Tracker
	now     func() time.Time
	log     zerolog.Logger
}

// NewService creates a new analytics service
func NewService(dreamStore DreamStore, records RecordLister, tracker *costs.Tracker, log zerolog.Logger) *Service {
	return &Service{
		dreams:  dreamStore,
		records: records,
		tracker: tracker,
		now:     time.Now,
		log:     log.With().Str("service", "analytics").Logger(),
	}
}

// ForUser reports on a user's active dreams over the last days days
func (s *Service) ForUser(userID string, days int) (*Report, error) {
	return s.Report(userID, Options{Days: days, Metric: MetricAll})
}

// Report builds the sections selected by opts
func (s *Service) Report(userID string, opts Options) (*Report, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if opts.Days <= 0 {
		opts.Days = DefaultDays
	}
	if opts.Metric == "" {
		opts.Metric = MetricAll
	}
	if !opts.Metric.Valid() {
		return nil, fmt.Errorf("unknown metric %q", opts.Metric)
	}

	end := s.now()
	start := end.AddDate(0, 0, -opts.Days)
	report := &Report{
		UserID:    userID,
		DateRange: DateRange{Start: start, End: end, Days: opts.Days},
	}

	owned, err := s.dreams.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dreams: %w", err)
	}
	active := make([]dreams.Dream, 0, len(owned))
	for _, d := range owned {
		if d.Status == dreams.StatusActive {
			active = append(active, d)
		}
	}

	// End is exclusive in the ledger filter; include the current instant
	window := evaluation.Filter{Start: start, End: end.Add(time.Millisecond), Status: evaluation.StatusCompleted}

	userFilter := window
	userFilter.UserID = userID
	userRecords, err := s.records.List(userFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}

	perDream := make(map[string][]evaluation.Record, len(active))
	if opts.Metric.includes(MetricTrends) || opts.Metric.includes(MetricDreams) {
		for _, d := range active {
			f := window
			f.DreamID = d.ID
			recs, err := s.records.List(f)
			if err != nil {
				return nil, fmt.Errorf("failed to list evaluations for dream %s: %w", d.ID, err)
			}
			perDream[d.ID] = recs
		}
	}

	if opts.Metric.includes(MetricOverview) {
		report.Overview = &Overview{
			TotalDreams:          len(active),
			TotalEvaluations:     len(userRecords),
			AverageImpossibility: averageImpossibility(userRecords),
			ImprovedDreams:       improvedDreams(userRecords),
		}
	}

	if opts.Metric.includes(MetricTrends) {
		report.Trends = &Trends{
			ImpossibilityDecay:  decayTrends(active, perDream),
			EvaluationFrequency: evaluationsByDay(userRecords),
			ModelPerformance:    modelPerformance(userRecords),
		}
	}

	if opts.Metric.includes(MetricCosts) {
		summary, err := s.tracker.Summarize(start, end, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize costs: %w", err)
		}
		report.Costs = summary
	}

	if opts.Metric.includes(MetricDreams) {
		report.Dreams = make([]DreamSummary, 0, len(active))
		for _, d := range active {
			report.Dreams = append(report.Dreams, summarizeDream(d, perDream[d.ID]))
		}
	}

	if opts.IncludeGlobal {
		benchmarks, err := s.benchmarks(window)
		if err != nil {
			return nil, err
		}
		report.Benchmarks = benchmarks
	}

	s.log.Debug().
		Str("user_id", userID).
		Int("days", opts.Days).
		Str("metric", string(opts.Metric)).
		Int("evaluations", len(userRecords)).
		Msg("Analytics report built")

	return report, nil
}

// benchmarks aggregates every user's completed evaluations in the window.
// Nil when there are none.
func (s *Service) benchmarks(window evaluation.Filter) (*Benchmarks, error) {
	records, err := s.records.List(window)
	if err != nil {
		return nil, fmt.Errorf("failed to list global evaluations: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	categories := make(map[string]string)
	byCategory := make(map[string][]evaluation.Record)
	for _, rec := range records {
		category, ok := categories[rec.DreamID]
		if !ok {
			d, err := s.dreams.GetByID(rec.DreamID)
			if err != nil {
				s.log.Debug().Err(err).Str("dream_id", rec.DreamID).Msg("Dream missing for benchmark record")
			} else {
				category = d.Category
			}
			categories[rec.DreamID] = category
		}
		byCategory[category] = append(byCategory[category], rec)
	}

	out := &Benchmarks{
		Overall:    stats(records),
		ByCategory: make(map[string]ModelStats, len(byCategory)),
		ByModel:    modelPerformance(records),
	}
	for category, recs := range byCategory {
		out.ByCategory[category] = stats(recs)
	}
	return out, nil
}

func averageImpossibility(records []evaluation.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	scores := make([]float64, len(records))
	for i, r := range records {
		scores[i] = r.ImpossibilityScore
	}
	return formulas.Mean(scores)
}

// improvedDreams counts dreams whose oldest score in records exceeds the newest
func improvedDreams(records []evaluation.Record) int {
	byDream := groupOldestFirst(records)
	improved := 0
	for _, recs := range byDream {
		if len(recs) > 1 && recs[0].ImpossibilityScore-recs[len(recs)-1].ImpossibilityScore > 0 {
			improved++
		}
	}
	return improved
}

func evaluationsByDay(records []evaluation.Record) map[string]int {
	out := make(map[string]int)
	for _, r := range records {
		out[r.CreatedAt.UTC().Format("2006-01-02")]++
	}
	return out
}

func modelPerformance(records []evaluation.Record) map[string]ModelStats {
	grouped := make(map[string][]evaluation.Record)
	for _, r := range records {
		key := r.Provider + "/" + r.Model
		grouped[key] = append(grouped[key], r)
	}
	out := make(map[string]ModelStats, len(grouped))
	for key, recs := range grouped {
		out[key] = stats(recs)
	}
	return out
}

func stats(records []evaluation.Record) ModelStats {
	scores := make([]float64, len(records))
	confidences := make([]float64, len(records))
	for i, r := range records {
		scores[i] = r.ImpossibilityScore
		confidences[i] = r.Confidence
	}
	return ModelStats{
		Count:                len(records),
		AverageImpossibility: formulas.Mean(scores),
		AverageConfidence:    formulas.Mean(confidences),
	}
}

// decayTrends fits a trend for every dream with two or more evaluations,
// most improved first
func decayTrends(active []dreams.Dream, perDream map[string][]evaluation.Record) []evaluation.Trend {
	trends := make([]evaluation.Trend, 0)
	for _, d := range active {
		recs := oldestFirst(perDream[d.ID])
		samples := make([]evaluation.Sample, len(recs))
		for i, r := range recs {
			samples[i] = evaluation.Sample{ImpossibilityScore: r.ImpossibilityScore, Confidence: r.Confidence, CreatedAt: r.CreatedAt}
		}
		trend, ok := evaluation.ComputeTrend(d.ID, samples)
		if !ok {
			continue
		}
		trend.Title = d.Title
		trends = append(trends, trend)
	}
	evaluation.RankByImprovement(trends)
	return trends
}

func summarizeDream(d dreams.Dream, records []evaluation.Record) DreamSummary {
	summary := DreamSummary{
		ID:               d.ID,
		Title:            d.Title,
		Category:         d.Category,
		TotalEvaluations: len(records),
	}
	if len(records) == 0 {
		return summary
	}

	recs := oldestFirst(records)
	first, latest := recs[0], recs[len(recs)-1]
	firstScore, latestScore, lastTested := first.ImpossibilityScore, latest.ImpossibilityScore, latest.CreatedAt
	summary.FirstScore = &firstScore
	summary.LatestScore = &latestScore
	summary.LastTested = &lastTested
	if len(recs) > 1 {
		improvement := firstScore - latestScore
		summary.Improvement = &improvement
	}
	return summary
}

func groupOldestFirst(records []evaluation.Record) map[string][]evaluation.Record {
	grouped := make(map[string][]evaluation.Record)
	for _, r := range records {
		grouped[r.DreamID] = append(grouped[r.DreamID], r)
	}
	for id, recs := range grouped {
		grouped[id] = oldestFirst(recs)
	}
	return grouped
}

// oldestFirst expects newest-first input, as listed by the ledger
func oldestFirst(records []evaluation.Record) []evaluation.Record {
	out := make([]evaluation.Record, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
