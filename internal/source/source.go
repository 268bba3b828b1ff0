package source

import "tdcache/internal/store"

// ReferenceReader supplies reference data: a fingerprint per table for
// staleness comparison, and parsed records for the tables being reloaded.
type ReferenceReader interface {
	// Fingerprint returns the current fingerprint of a table's source.
	Fingerprint(table string) (Fingerprint, error)

	// ReadTables parses the sources for the named tables into a ReferenceSet.
	// Slices for other tables are left nil.
	ReadTables(tables []string) (*store.ReferenceSet, error)
}

// PriceReader supplies the market price source.
type PriceReader interface {
	// Fingerprint returns the current fingerprint of the price source.
	Fingerprint() (Fingerprint, error)

	// Read parses the full price source.
	Read() ([]store.PriceRecord, error)
}
