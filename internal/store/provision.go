package store

import (
	"fmt"
	"os"

	"tdcache/internal/schema"
)

// Provision destroys any store at dbPath and creates a fresh one from the
// registry's definitions, then records the schema version. This is the only
// code path that drops tables. If anything fails before the version is
// written, the new store is not marked current and the next detection pass
// will rebuild again.
func Provision(dbPath string) (*Store, error) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return nil, &ProvisionError{Path: dbPath, Err: err}
		}
	}

	s, err := Open(dbPath)
	if err != nil {
		return nil, &ProvisionError{Path: dbPath, Err: err}
	}

	if err := s.createSchema(); err != nil {
		s.Close()
		os.Remove(dbPath)
		return nil, &ProvisionError{Path: dbPath, Err: err}
	}

	if err := s.SetSchemaVersion(schema.CurrentVersion); err != nil {
		s.Close()
		os.Remove(dbPath)
		return nil, &ProvisionError{Path: dbPath, Err: err}
	}

	return s, nil
}

// createSchema executes every registry definition in order inside one
// transaction, so a partially created schema never survives.
func (s *Store) createSchema() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, def := range schema.Definitions() {
		if _, err := tx.Exec(def.SQL); err != nil {
			return fmt.Errorf("create %s: %w", def.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
