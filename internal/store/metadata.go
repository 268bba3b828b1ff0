package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Metadata keys. Source fingerprints are stored under fingerprintKeyPrefix
// followed by the source identifier (a table name or "prices").
const (
	metaSchemaVersion    = "schema_version"
	fingerprintKeyPrefix = "fingerprint."
)

// SchemaVersion reads the stored schema version. A store without a metadata
// table or version row reports version 0, which never matches the registry
// and therefore forces a full rebuild.
func (s *Store) SchemaVersion() (int, error) {
	var raw string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", metaSchemaVersion).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt schema version %q: %w", raw, err)
	}
	return v, nil
}

// SetSchemaVersion records the schema version after a successful rebuild.
func (s *Store) SetSchemaVersion(v int) error {
	return s.setMeta(metaSchemaVersion, strconv.Itoa(v))
}

// SourceFingerprint returns the last successfully synchronized fingerprint
// for a source, or ok=false if none has been recorded.
func (s *Store) SourceFingerprint(name string) (string, bool, error) {
	var raw string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", fingerprintKeyPrefix+name).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read fingerprint %s: %w", name, err)
	}
	return raw, true, nil
}

// SetSourceFingerprint records a source fingerprint after the matching unit
// of work has committed.
func (s *Store) SetSourceFingerprint(name, fp string) error {
	return s.setMeta(fingerprintKeyPrefix+name, fp)
}

func (s *Store) setMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write metadata %s: %w", key, err)
	}
	return nil
}

// isMissingTable detects queries against a store that predates the metadata
// table. Such a store is simply treated as version 0.
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
