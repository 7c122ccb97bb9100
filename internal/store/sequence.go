package store

import "context"

// NextSequence atomically increments the named counter and returns the new
// value. The first call for a name returns 1. A single upsert statement keeps
// concurrent writers from ever receiving the same value.
func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO sequences (name, value) VALUES (?, 1)
		 ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		 RETURNING value`), name,
	).Scan(&value)
	return value, err
}
