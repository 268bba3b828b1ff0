// Package sync implements the cache synchronization engine: the change
// detector that decides what is stale, and the orchestrator that performs
// the minimal correct rebuild.
package sync

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"tdcache/internal/schema"
	"tdcache/internal/source"
	"tdcache/internal/store"
)

// absentFingerprint is recorded for a source whose file does not exist, so a
// source that stays absent reads as unchanged on the next run while one that
// appears reads as changed.
const absentFingerprint = "absent"

// Verdict describes the rebuild actions a synchronization run must perform.
// The zero value means up to date.
type Verdict struct {
	// Schema means the stored schema version does not match the registry
	// (or the store is absent). It supersedes the other flags: the
	// orchestrator provisions a fresh store, reloads every reference table,
	// and re-merges prices.
	Schema bool

	// Reference lists the reference tables whose sources changed, in
	// dependency order, closed over the cascade graph: reloading a parent
	// empties its children, so the children reload too.
	Reference []string

	// Prices means the price source changed, or a reference reload emptied
	// the price tables.
	Prices bool
}

// UpToDate reports whether nothing needs rebuilding.
func (v Verdict) UpToDate() bool {
	return !v.Schema && len(v.Reference) == 0 && !v.Prices
}

// String summarizes the verdict for logs.
func (v Verdict) String() string {
	if v.UpToDate() {
		return "up to date"
	}
	var parts []string
	if v.Schema {
		parts = append(parts, "schema stale")
	}
	if len(v.Reference) > 0 {
		parts = append(parts, fmt.Sprintf("reference stale (%s)", strings.Join(v.Reference, ", ")))
	}
	if v.Prices {
		parts = append(parts, "prices stale")
	}
	return strings.Join(parts, "; ")
}

// Detect compares the store's recorded state against the schema registry and
// the current source fingerprints. st may be nil when no store exists yet.
// The returned fingerprints are the encoded current values for every source,
// to be persisted after the matching unit of work commits.
func Detect(st *store.Store, refs source.ReferenceReader, prices source.PriceReader) (Verdict, map[string]string, error) {
	var v Verdict

	if st == nil {
		v.Schema = true
	} else {
		version, err := st.SchemaVersion()
		if err != nil {
			return v, nil, err
		}
		if version != schema.CurrentVersion {
			v.Schema = true
		}
	}

	fps := make(map[string]string)
	stale := make(map[string]bool)

	for _, table := range schema.ReferenceTables() {
		cur, changed, err := compareSource(st, table, func() (source.Fingerprint, error) {
			return refs.Fingerprint(table)
		})
		if err != nil {
			return v, nil, err
		}
		fps[table] = cur
		if changed {
			stale[table] = true
		}
	}

	curPrices, pricesChanged, err := compareSource(st, schema.SourcePrices, prices.Fingerprint)
	if err != nil {
		return v, nil, err
	}
	fps[schema.SourcePrices] = curPrices

	if v.Schema {
		// A full rebuild reloads everything regardless of fingerprints.
		v.Reference = schema.ReferenceTables()
		v.Prices = true
		return v, fps, nil
	}

	expandStale(stale)
	for _, table := range schema.ReferenceTables() {
		if stale[table] {
			v.Reference = append(v.Reference, table)
			if schema.OwnsPriceRows(table) {
				// Reloading this table cascades the price rows away.
				v.Prices = true
			}
		}
	}
	if pricesChanged {
		v.Prices = true
	}
	return v, fps, nil
}

// compareSource fingerprints one source and compares it with the stored
// value. A source whose fingerprint cannot be read is treated as unchanged
// only when a prior fingerprint is cached; otherwise it is stale, never
// silently skipped.
func compareSource(st *store.Store, name string, fingerprint func() (source.Fingerprint, error)) (encoded string, changed bool, err error) {
	fp, err := fingerprint()
	switch {
	case err == nil:
		encoded = fp.String()
	case errors.Is(err, fs.ErrNotExist):
		encoded = absentFingerprint
	default:
		return "", false, fmt.Errorf("fingerprint %s: %w", name, err)
	}

	if st == nil {
		return encoded, true, nil
	}
	cached, ok, err := st.SourceFingerprint(name)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return encoded, true, nil
	}
	if encoded == absentFingerprint {
		// Unreadable now, but a prior successful state is cached.
		return encoded, false, nil
	}
	return encoded, encoded != cached, nil
}

// expandStale closes the stale set over the cascade graph.
func expandStale(stale map[string]bool) {
	queue := make([]string, 0, len(stale))
	for t := range stale {
		queue = append(queue, t)
	}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		for _, child := range schema.Children(t) {
			if !stale[child] {
				stale[child] = true
				queue = append(queue, child)
			}
		}
	}
}
