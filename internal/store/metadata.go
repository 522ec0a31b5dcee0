package store

import (
	"context"
	"database/sql"
	"errors"
)

// SetImportedFileHash records the checksum of an imported bank file.
func (s *Store) SetImportedFileHash(ctx context.Context, path, hash string) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO imported_files (path, sha256) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET sha256 = ?`),
		path, hash, hash,
	)
	return err
}

// GetImportedFileHash returns the stored checksum for a bank file.
// Returns empty string and nil error if the file was never imported.
func (s *Store) GetImportedFileHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT sha256 FROM imported_files WHERE path = ?`), path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}
