package dreams

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const dreamColumns = "id, user_id, title, description, original_prompt, category, status, created_at, updated_at"

// Repository handles dream persistence in dreams.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new dreams repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "dreams").Logger(),
	}
}

// Create inserts a new dream, assigning its ID and timestamps
func (r *Repository) Create(d *Dream) error {
	if strings.TrimSpace(d.UserID) == "" || strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: user_id and title are required", ErrInvalid)
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = StatusActive
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, d.Status)
	}
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO dreams (`+dreamColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.UserID, d.Title, d.Description, d.OriginalPrompt, d.Category, string(d.Status),
		d.CreatedAt.Unix(), d.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert dream: %w", err)
	}

	r.log.Debug().Str("dream_id", d.ID).Str("user_id", d.UserID).Msg("Dream created")
	return nil
}

// GetByID returns a dream or ErrNotFound
func (r *Repository) GetByID(id string) (*Dream, error) {
	row := r.db.QueryRow("SELECT "+dreamColumns+" FROM dreams WHERE id = ?", id)
	d, err := scanDream(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dream %s: %w", id, err)
	}
	return d, nil
}

// ListActive returns active dreams, oldest first. limit <= 0 means no limit.
func (r *Repository) ListActive(limit int) ([]Dream, error) {
	query := "SELECT " + dreamColumns + " FROM dreams WHERE status = ? ORDER BY created_at ASC, id ASC"
	args := []interface{}{string(StatusActive)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(query, args...)
}

// ListByUser returns a user's dreams, newest first
func (r *Repository) ListByUser(userID string) ([]Dream, error) {
	return r.query("SELECT "+dreamColumns+" FROM dreams WHERE user_id = ? ORDER BY created_at DESC, id ASC", userID)
}

// UpdateStatus changes a dream's status
func (r *Repository) UpdateStatus(id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}

	result, err := r.db.Exec("UPDATE dreams SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update dream %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) query(query string, args ...interface{}) ([]Dream, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dreams: %w", err)
	}
	defer rows.Close()

	dreams := make([]Dream, 0)
	for rows.Next() {
		d, err := scanDream(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dream: %w", err)
		}
		dreams = append(dreams, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dreams: %w", err)
	}

	return dreams, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDream(row rowScanner) (*Dream, error) {
	var (
		d                    Dream
		status               string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Title, &d.Description, &d.OriginalPrompt,
		&d.Category, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.Status = Status(status)
	d.CreatedAt = time.Unix(createdAt, 0)
	d.UpdatedAt = time.Unix(updatedAt, 0)
	return &d, nil
}
