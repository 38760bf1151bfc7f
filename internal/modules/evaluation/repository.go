package evaluation

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const recordColumns = `id, dream_id, user_id, provider, model, status,
	comprehension, quality, innovation, feasibility,
	overall_score, impossibility_score, confidence, reasoning,
	tokens_used, duration_ms, cost, parameters, prompt_hash,
	error_message, raw_response, created_at`

// Repository persists evaluation records in the append-only ledger (ledger.db).
// Records are inserted once and never updated or deleted.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new evaluation repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "evaluation").Logger(),
	}
}

// Create inserts a record. ID and CreatedAt are filled in when empty.
func (r *Repository) Create(rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Parameters == nil {
		rec.Parameters = map[string]interface{}{}
	}

	params, err := json.Marshal(rec.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO ai_evaluations (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.DreamID, rec.UserID, rec.Provider, rec.Model, string(rec.Status),
		rec.Scores.Comprehension, rec.Scores.Quality, rec.Scores.Innovation, rec.Scores.Feasibility,
		rec.OverallScore, rec.ImpossibilityScore, rec.Confidence, rec.Reasoning,
		int64(rec.TokensUsed), rec.DurationMs, rec.Cost, string(params), rec.PromptHash,
		rec.ErrorMessage, rec.RawResponse, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation record: %w", err)
	}

	r.log.Debug().
		Str("id", rec.ID).
		Str("dream_id", rec.DreamID).
		Str("model", rec.Model).
		Str("status", string(rec.Status)).
		Msg("Evaluation record stored")

	return nil
}

// History returns up to limit completed records for a dream, newest first
func (r *Repository) History(dreamID string, limit int) ([]Record, error) {
	return r.List(Filter{DreamID: dreamID, Status: StatusCompleted, Limit: limit})
}

// LatestCompleted returns the most recent completed record for each of the
// given dreams. Dreams never evaluated successfully are absent from the map.
func (r *Repository) LatestCompleted(dreamIDs []string) (map[string]Record, error) {
	latest := make(map[string]Record, len(dreamIDs))
	if len(dreamIDs) == 0 {
		return latest, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(dreamIDs)), ",")
	args := make([]interface{}, len(dreamIDs))
	for i, id := range dreamIDs {
		args[i] = id
	}

	query := `
		SELECT ` + recordColumns + ` FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY dream_id ORDER BY created_at DESC, rowid DESC
			) AS rn
			FROM ai_evaluations
			WHERE status = 'completed' AND dream_id IN (` + placeholders + `)
		) WHERE rn = 1`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest evaluations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		latest[rec.DreamID] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating latest evaluations: %w", err)
	}

	return latest, nil
}

// List returns records matching the filter, newest first
func (r *Repository) List(f Filter) ([]Record, error) {
	where, args := f.clauses()
	query := "SELECT " + recordColumns + " FROM ai_evaluations"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evaluations: %w", err)
	}

	return records, nil
}

// CountSince counts a user's records (any status) created at or after since
func (r *Repository) CountSince(userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM ai_evaluations WHERE user_id = ? AND created_at >= ?",
		userID, since.UnixMilli(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count evaluations for user %s: %w", userID, err)
	}
	return count, nil
}

func (f Filter) clauses() ([]string, []interface{}) {
	where := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)

	if !f.Start.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Start.UnixMilli())
	}
	if !f.End.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, f.End.UnixMilli())
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.DreamID != "" {
		where = append(where, "dream_id = ?")
		args = append(args, f.DreamID)
	}
	if f.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, f.Provider)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	return where, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec        Record
		status     string
		tokensUsed int64
		params     string
		createdAt  int64
	)

	err := row.Scan(
		&rec.ID, &rec.DreamID, &rec.UserID, &rec.Provider, &rec.Model, &status,
		&rec.Scores.Comprehension, &rec.Scores.Quality, &rec.Scores.Innovation, &rec.Scores.Feasibility,
		&rec.OverallScore, &rec.ImpossibilityScore, &rec.Confidence, &rec.Reasoning,
		&tokensUsed, &rec.DurationMs, &rec.Cost, &params, &rec.PromptHash,
		&rec.ErrorMessage, &rec.RawResponse, &createdAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("failed to scan evaluation record: %w", err)
	}

	rec.Status = Status(status)
	rec.TokensUsed = int(tokensUsed)
	rec.CreatedAt = time.UnixMilli(createdAt)
	if params != "" {
		if err := json.Unmarshal([]byte(params), &rec.Parameters); err != nil {
			return Record{}, fmt.Errorf("failed to unmarshal parameters for %s: %w", rec.ID, err)
		}
	}

	return rec, nil
}
