package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tdcache/internal/schema"
)

// MergeOptions controls price-merge policy.
type MergeOptions struct {
	// PruneMissing removes rows whose (station, item) no longer appears in
	// the source, unless they were written from a live feed. Off by default;
	// a partial source must not silently shrink the cache.
	PruneMissing bool

	// Logger receives per-record skip and stale-write reports. Nil means no
	// logging.
	Logger *zap.Logger
}

// MergeStats counts the outcome of one price merge.
type MergeStats struct {
	Inserted     int `json:"inserted"`
	Updated      int `json:"updated"`
	StaleIgnored int `json:"stale_ignored"`
	Skipped      int `json:"skipped"`
	Pruned       int `json:"pruned"`
}

// MergePrices applies parsed price records into the price tables. Records
// merge row by row keyed by (station, item): new pairs are inserted, pairs
// with a strictly newer timestamp overwrite the stored row, and older or
// equal timestamps are counted as stale and ignored. Records naming an
// unknown station or item are rejected individually, reported with the
// offending record identity; one bad hand-edited line must not void the rest
// of the merge. The whole merge commits as one unit.
func (s *Store) MergePrices(records []PriceRecord, opts MergeOptions) (MergeStats, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var stats MergeStats

	tx, err := s.db.Begin()
	if err != nil {
		return stats, fmt.Errorf("begin price merge: %w", err)
	}
	defer tx.Rollback()

	stations, err := stationsByName(tx)
	if err != nil {
		return stats, err
	}
	items, err := itemsByName(tx)
	if err != nil {
		return stats, err
	}

	seen := make(map[[2]int64]bool, len(records))
	for _, rec := range records {
		stationID, ok := stations[strings.ToLower(rec.System+"/"+rec.Station)]
		if !ok {
			stats.Skipped++
			log.Debug("price record skipped", zap.Error(&ReferenceIntegrityError{
				Table:  schema.TableStation,
				Record: rec.System + "/" + rec.Station,
				Reason: "unknown station",
			}))
			continue
		}
		itemID, ok := items[strings.ToLower(rec.Item)]
		if !ok {
			stats.Skipped++
			log.Debug("price record skipped", zap.Error(&ReferenceIntegrityError{
				Table:  schema.TableItem,
				Record: rec.Item,
				Reason: "unknown item",
			}))
			continue
		}
		seen[[2]int64{stationID, itemID}] = true

		outcome, err := mergeOne(tx, stationID, itemID, rec)
		if err != nil {
			return stats, err
		}
		switch outcome {
		case mergeInserted:
			stats.Inserted++
		case mergeUpdated:
			stats.Updated++
		case mergeStale:
			stats.StaleIgnored++
			log.Debug("stale price write ignored",
				zap.Int64("station_id", stationID), zap.Int64("item_id", itemID),
				zap.Time("incoming", rec.Modified))
		}
	}

	if opts.PruneMissing {
		pruned, err := pruneMissing(tx, seen)
		if err != nil {
			return stats, err
		}
		stats.Pruned = pruned
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit price merge: %w", err)
	}
	return stats, nil
}

type mergeOutcome int

const (
	mergeInserted mergeOutcome = iota
	mergeUpdated
	mergeStale
)

// mergeOne applies a single record against StationItem and mirrors each side
// into the split StationDemand/StationSupply tables, which coexist with the
// combined table during the ongoing schema migration.
func mergeOne(tx *sql.Tx, stationID, itemID int64, rec PriceRecord) (mergeOutcome, error) {
	var storedRaw string
	err := tx.QueryRow(
		"SELECT modified FROM StationItem WHERE station_id = ? AND item_id = ?",
		stationID, itemID).Scan(&storedRaw)

	incoming := rec.Modified.UTC().Truncate(time.Second)
	modified := formatTime(rec.Modified)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.Exec(`
			INSERT INTO StationItem (station_id, item_id,
				demand_price, demand_units, demand_level,
				supply_price, supply_units, supply_level,
				from_live, modified)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stationID, itemID,
			rec.Demand.Price, rec.Demand.Units, rec.Demand.Level,
			rec.Supply.Price, rec.Supply.Units, rec.Supply.Level,
			boolToInt(rec.FromLive), modified)
		if err != nil {
			return 0, fmt.Errorf("insert price %d/%d: %w", stationID, itemID, err)
		}
		if err := mirrorSplit(tx, stationID, itemID, rec, modified); err != nil {
			return 0, err
		}
		return mergeInserted, nil

	case err != nil:
		return 0, fmt.Errorf("look up price %d/%d: %w", stationID, itemID, err)
	}

	stored, err := parseTime(storedRaw)
	if err != nil {
		return 0, err
	}
	// The modified timestamp never regresses: only a strictly newer source
	// record may overwrite the stored row.
	if !incoming.After(stored) {
		return mergeStale, nil
	}

	_, err = tx.Exec(`
		UPDATE StationItem
		   SET demand_price = ?, demand_units = ?, demand_level = ?,
		       supply_price = ?, supply_units = ?, supply_level = ?,
		       from_live = ?, modified = ?
		 WHERE station_id = ? AND item_id = ?`,
		rec.Demand.Price, rec.Demand.Units, rec.Demand.Level,
		rec.Supply.Price, rec.Supply.Units, rec.Supply.Level,
		boolToInt(rec.FromLive), modified,
		stationID, itemID)
	if err != nil {
		return 0, fmt.Errorf("update price %d/%d: %w", stationID, itemID, err)
	}
	if err := mirrorSplit(tx, stationID, itemID, rec, modified); err != nil {
		return 0, err
	}
	return mergeUpdated, nil
}

func mirrorSplit(tx *sql.Tx, stationID, itemID int64, rec PriceRecord, modified string) error {
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO StationDemand (station_id, item_id, price, units, level, from_live, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stationID, itemID, rec.Demand.Price, rec.Demand.Units, rec.Demand.Level,
		boolToInt(rec.FromLive), modified)
	if err != nil {
		return fmt.Errorf("mirror demand %d/%d: %w", stationID, itemID, err)
	}
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO StationSupply (station_id, item_id, price, units, level, from_live, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stationID, itemID, rec.Supply.Price, rec.Supply.Units, rec.Supply.Level,
		boolToInt(rec.FromLive), modified)
	if err != nil {
		return fmt.Errorf("mirror supply %d/%d: %w", stationID, itemID, err)
	}
	return nil
}

// pruneMissing deletes batch-sourced rows absent from the current source.
// Rows flagged from_live survive; they came from a fresher channel than the
// batch file being merged.
func pruneMissing(tx *sql.Tx, seen map[[2]int64]bool) (int, error) {
	rows, err := tx.Query("SELECT station_id, item_id FROM StationItem WHERE from_live = 0")
	if err != nil {
		return 0, fmt.Errorf("list prune candidates: %w", err)
	}
	var stale [][2]int64
	for rows.Next() {
		var stationID, itemID int64
		if err := rows.Scan(&stationID, &itemID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan prune candidate: %w", err)
		}
		if !seen[[2]int64{stationID, itemID}] {
			stale = append(stale, [2]int64{stationID, itemID})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, key := range stale {
		for _, table := range []string{"StationItem", "StationDemand", "StationSupply"} {
			if _, err := tx.Exec(
				fmt.Sprintf("DELETE FROM %s WHERE station_id = ? AND item_id = ?", table),
				key[0], key[1]); err != nil {
				return 0, fmt.Errorf("prune %s %d/%d: %w", table, key[0], key[1], err)
			}
		}
	}
	return len(stale), nil
}

// stationsByName maps "system/station" (lower-cased) to station id.
func stationsByName(tx *sql.Tx) (map[string]int64, error) {
	rows, err := tx.Query(`
		SELECT Station.station_id, System.name, Station.name
		  FROM Station JOIN System USING (system_id)`)
	if err != nil {
		return nil, fmt.Errorf("load station names: %w", err)
	}
	defer rows.Close()

	m := make(map[string]int64)
	for rows.Next() {
		var id int64
		var system, station string
		if err := rows.Scan(&id, &system, &station); err != nil {
			return nil, fmt.Errorf("scan station name: %w", err)
		}
		m[strings.ToLower(system+"/"+station)] = id
	}
	return m, rows.Err()
}

// itemsByName maps lower-cased item names to item id.
func itemsByName(tx *sql.Tx) (map[string]int64, error) {
	rows, err := tx.Query("SELECT item_id, name FROM Item")
	if err != nil {
		return nil, fmt.Errorf("load item names: %w", err)
	}
	defer rows.Close()

	m := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan item name: %w", err)
		}
		m[strings.ToLower(name)] = id
	}
	return m, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
