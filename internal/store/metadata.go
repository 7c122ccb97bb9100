package store

import (
	"database/sql"
)

const importedFilePrefix = "imported_file:"

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(s.rebind(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`),
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(s.rebind(`SELECT value FROM metadata WHERE key = ?`), key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// GetImportedFileHash returns the fingerprint recorded for a definitions file,
// or an empty string if the file was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	return s.GetMetadata(importedFilePrefix + path)
}

// SetImportedFileHash records the fingerprint of an imported definitions file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	return s.SetMetadata(importedFilePrefix+path, hash)
}
