// Package reliability snapshots the engine's databases and ships them to
// S3-compatible object storage.
package reliability

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aristath/dreamengine/internal/database"
	"github.com/rs/zerolog"
)

// BackupService produces consistent single-file copies of live databases
type BackupService struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(databases map[string]*database.DB, log zerolog.Logger) *BackupService {
	return &BackupService{
		databases: databases,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// DatabaseNames returns the names of the databases covered by backups, sorted
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name, db := range s.databases {
		if db != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// BackupDatabase writes a snapshot of the named database to destPath using
// VACUUM INTO, which is safe against concurrent writers. An existing file at
// destPath is replaced.
func (s *BackupService) BackupDatabase(name, destPath string) error {
	db, ok := s.databases[name]
	if !ok || db == nil {
		return fmt.Errorf("unknown database: %s", name)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale backup %s: %w", destPath, err)
	}

	quoted := strings.ReplaceAll(destPath, "'", "''")
	if _, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return fmt.Errorf("failed to vacuum %s into %s: %w", name, destPath, err)
	}

	s.log.Debug().Str("database", name).Str("dest", destPath).Msg("Database snapshot written")
	return nil
}
