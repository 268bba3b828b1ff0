package store

import (
	"database/sql"
	"fmt"
	"strings"

	"tdcache/internal/schema"
)

// LoadReference atomically replaces the contents of the named reference
// tables from set. Tables are processed in dependency order (parents before
// children). Each table is staged into a shadow table, validated record by
// record, then swapped into place; the whole reload runs in one transaction
// and rolls back completely on the first integrity violation, so a bad
// source never leaves a partially replaced table behind.
func (s *Store) LoadReference(set *ReferenceSet, tables []string) error {
	want := make(map[string]bool, len(tables))
	for _, t := range tables {
		want[t] = true
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin reference reload: %w", err)
	}
	defer tx.Rollback()

	for _, table := range schema.ReferenceTables() {
		if !want[table] {
			continue
		}
		var err error
		switch table {
		case schema.TableAdded:
			err = loadAdded(tx, set.Added)
		case schema.TableCategory:
			err = loadCategories(tx, set.Categories)
		case schema.TableShip:
			err = loadShips(tx, set.Ships)
		case schema.TableUpgrade:
			err = loadUpgrades(tx, set.Upgrades)
		case schema.TableItem:
			err = loadItems(tx, set.Items)
		case schema.TableSystem:
			err = loadSystems(tx, set.Systems)
		case schema.TableStation:
			err = loadStations(tx, set.Stations)
		case schema.TableShipVendor:
			err = loadShipVendors(tx, set.ShipVendors)
		case schema.TableUpgradeVendor:
			err = loadUpgradeVendors(tx, set.UpgradeVendors)
		case schema.TableRareItem:
			err = loadRareItems(tx, set.RareItems)
		case schema.TableFDevShipyard:
			err = loadFDevShipyards(tx, set.FDevShipyards)
		case schema.TableFDevOutfitting:
			err = loadFDevOutfittings(tx, set.FDevOutfittings)
		}
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reference reload: %w", err)
	}
	return nil
}

// stageSwap stages rows into a typeless shadow table, then replaces the live
// table's contents from it. fill inserts every row through the prepared
// statement. The delete-insert pair runs inside the caller's transaction, so
// readers never observe the table empty.
func stageSwap(tx *sql.Tx, table string, cols []string, fill func(*sql.Stmt) error) error {
	shadow := "_load_" + table
	colList := strings.Join(cols, ", ")

	if _, err := tx.Exec("DROP TABLE IF EXISTS " + shadow); err != nil {
		return fmt.Errorf("drop stale shadow for %s: %w", table, err)
	}
	if _, err := tx.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", shadow, colList)); err != nil {
		return fmt.Errorf("create shadow for %s: %w", table, err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)", shadow, colList, placeholders(len(cols))))
	if err != nil {
		return fmt.Errorf("prepare shadow insert for %s: %w", table, err)
	}
	if err := fill(stmt); err != nil {
		stmt.Close()
		return err
	}
	stmt.Close()

	if _, err := tx.Exec("DELETE FROM " + table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if _, err := tx.Exec(fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s", table, colList, colList, shadow)); err != nil {
		return fmt.Errorf("swap %s into place: %w", table, err)
	}
	if _, err := tx.Exec("DROP TABLE " + shadow); err != nil {
		return fmt.Errorf("drop shadow for %s: %w", table, err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// idSet collects the single integer column produced by query, used to check
// foreign keys against parent tables already swapped in this transaction.
func idSet(tx *sql.Tx, query string) (map[int64]bool, error) {
	rows, err := tx.Query(query)
	if err != nil {
		return nil, fmt.Errorf("collect parent ids: %w", err)
	}
	defer rows.Close()

	set := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan parent id: %w", err)
		}
		set[id] = true
	}
	return set, rows.Err()
}

func loadAdded(tx *sql.Tx, recs []Added) error {
	ids := make(map[int64]bool, len(recs))
	names := make(map[string]bool, len(recs))
	for _, r := range recs {
		if ids[r.ID] {
			return &ReferenceIntegrityError{Table: schema.TableAdded, Record: r.Name, Reason: fmt.Sprintf("duplicate id %d", r.ID)}
		}
		key := strings.ToLower(r.Name)
		if names[key] {
			return &ReferenceIntegrityError{Table: schema.TableAdded, Record: r.Name, Reason: "duplicate name"}
		}
		ids[r.ID] = true
		names[key] = true
	}
	return stageSwap(tx, schema.TableAdded, []string{"added_id", "name"}, func(stmt *sql.Stmt) error {
		for _, r := range recs {
			if _, err := stmt.Exec(r.ID, r.Name); err != nil {
				return fmt.Errorf("stage %s %q: %w", schema.TableAdded, r.Name, err)
			}
		}
		return nil
	})
}

func loadCategories(tx *sql.Tx, recs []Category) error {
	ids := make(map[int64]bool, len(recs))
	names := make(map[string]bool, len(recs))
	for _, r := range recs {
		if ids[r.ID] {
			return &ReferenceIntegrityError{Table: schema.TableCategory, Record: r.Name, Reason: fmt.Sprintf("duplicate id %d", r.ID)}
		}
		key := strings.ToLower(r.Name)
		if names[key] {
			return &ReferenceIntegrityError{Table: schema.TableCategory, Record: r.Name, Reason: "duplicate name"}
		}
		ids[r.ID] = true
		names[key] = true
	}
	return stageSwap(tx, schema.TableCategory, []string{"category_id", "name"}, func(stmt *sql.Stmt) error {
		for _, r := range recs {
			if _, err := stmt.Exec(r.ID, r.Name); err != nil {
				return fmt.Errorf("stage %s %q: %w", schema.TableCategory, r.Name, err)
			}
		}
		return nil
	})
}

func loadShips(tx *sql.Tx, recs []Ship) error {
	ids := make(map[int64]bool, len(recs))
	names := make(map[string]bool, len(recs))
	for _, r := range recs {
		// Ship ids are caller-assigned from a fixed identifier space;
		// a duplicate is a source error, never an overwrite.
		if ids[r.ID] {
			return &ReferenceIntegrityError{Table: schema.TableShip, Record: r.Name, Reason: fmt.Sprintf("duplicate id %d", r.ID)}
		}
		key := strings.ToLower(r.Name)
		if names[key] {
			return &ReferenceIntegrityError{Table: schema.TableShip, Record: r.Name, Reason: "duplicate name"}
		}
		ids[r.ID] = true
		names[key] = true
	}
	return stageSwap(tx, schema.TableShip, []string{"ship_id", "name", "cost", "fdev_id"}, func(stmt *sql.Stmt) error {
		for _, r := range recs {
			if _, err := stmt.Exec(r.ID, r.Name, r.Cost, r.FDevID); err != nil {
				return fmt.Errorf("stage %s %q: %w", schema.TableShip, r.Name, err)
			}
		}
		return nil
	})
}

func loadUpgrades(tx *sql.Tx, recs []Upgrade) error {
	ids := make(map[int64]bool, len(recs))
	for _, r := range recs {
		if ids[r.ID] {
			return &ReferenceIntegrityError{Table: schema.TableUpgrade, Record: r.Name, Reason: fmt.Sprintf("duplicate id %d", r.ID)}
		}
		ids[r.ID] = true
	}
	return stageSwap(tx, schema.TableUpgrade, []string{"upgrade_id", "name", "class", "rating", "ship", "cost"}, func(stmt *sql.Stmt) error {
		for _, r := range recs {
			if _, err := stmt.Exec(r.ID, r.Name, r.Class, r.Rating, nullIfEmpty(r.Ship), r.Cost); err != nil {
				return fmt.Errorf("stage %s %q: %w", schema.TableUpgrade, r.Name, err)
			}
		}
		return nil
	})
}

func loadItems(tx *sql.Tx, recs []Item) error {
	categories, err := idSet(tx, "SELECT category_id FROM Category")
	if err != nil {
		return err
	}
	ids := make(map[int64]bool, len(recs))
	names := make(map[string]bool, len(recs))
	for _, r := range recs {
		if ids[r.ID] {
			return &ReferenceIntegrityError{Table: schema.TableItem, Record: r.Name, Reason: fmt.Sprintf("duplicate id %d", r.ID)}
		}
		key := strings.ToLower(r.Name)
		if names[key] {
			return &ReferenceIntegrityError{Table: schema.TableItem, Record: r.Name, Reason: "duplicate name"}
		}
		if !categories[r.CategoryID] {
			return &ReferenceIntegrityError{Table: schema.TableItem, Record: r.Name, Reason: fmt.Sprintf("unknown category %d", r.CategoryID)}
		}
		ids[r.ID] = true
		names[key] = true
	}
	return stageSwap(tx, schema.TableItem, []string{"item_id", "category_id", "name", "ui_order", "avg_price", "fdev_id"}, func(stmt *sql.Stmt) error {
		for _, r := range recs {
			if _, err := stmt.Exec(r.ID, r.CategoryID, r.Name, r.UIOrder, r.AvgPrice, r.FDevID); err != nil {
				return fmt.Errorf("stage %s %q: %w", schema.TableItem, r.Name, err)
			}
		}
		return nil
	})
}

func loadSystems(tx *sql.Tx, recs []System) error {
	added, err := idSet(tx, "SELECT added_id FROM Added")
	if err != nil {
		return err
	}
	ids := make(map[int64]bool, len(recs))
	names := make(map[string]bool, len(recs))
	for _, r := range recs {
		if ids[r.ID] {
			return &ReferenceIntegrityError{Table: schema.TableSystem, Record: r.Name, Reason: fmt.Sprintf("duplicate id %d", r.ID)}
		}
		key := strings.ToLower(r.Name)
		if names[key] {
			return &ReferenceIntegrityError{Table: schema.TableSystem, Record: r.Name, Reason: "duplicate name"}
		}
		if r.AddedID != nil && !added[*r.AddedID] {
			return &ReferenceIntegrityError{Table: schema.TableSystem, Record: r.Name, Reason: fmt.Sprintf("unknown added %d", *r.AddedID)}
		}
		ids[r.ID] = true
		names[key] = true
	}
	return stageSwap(tx, schema.TableSystem, []string{"system_id", "name", "pos_x", "pos_y", "pos_z", "added_id", "modified"}, func(stmt *sql.Stmt) error {
		for _, r := range recs {
			if _, err := stmt.Exec(r.ID, r.Name, r.PosX, r.PosY, r.PosZ, r.AddedID, formatTime(r.Modified)); err != nil {
				return fmt.Errorf("stage %s %q: %w", schema.TableSystem, r.Name, err)
			}
		}
		return nil
	})
}

func loadStations(tx *sql.Tx, recs []Station) error {
	systems, err := idSet(tx, "SELECT system_id FROM System")
	if err != nil {
		return err
	}
	ids := make(map[int64]bool, len(recs))
	names := make(map[string]bool, len(recs))
	for _, r := range recs {
		if ids[r.ID] {
			return &ReferenceIntegrityError{Table: schema.TableStation, Record: r.Name, Reason: fmt.Sprintf("duplicate id %d", r.ID)}
		}
		key := fmt.Sprintf("%d/%s", r.SystemID, strings.ToLower(r.Name))
		if names[key] {
			return &ReferenceIntegrityError{Table: schema.TableStation, Record: r.Name, Reason: "duplicate name within system"}
		}
		if !systems[r.SystemID] {
			return &ReferenceIntegrityError{Table: schema.TableStation, Record: r.Name, Reason: fmt.Sprintf("unknown system %d", r.SystemID)}
		}
		if r.LsFromStar < 0 {
			return &ReferenceIntegrityError{Table: schema.TableStation, Record: r.Name, Reason: fmt.Sprintf("negative ls_from_star %g", r.LsFromStar)}
		}
		ids[r.ID] = true
		names[key] = true
	}
	cols := []string{
		"station_id", "system_id", "name", "ls_from_star", "blackmarket",
		"max_pad_size", "market", "shipyard", "outfitting", "rearm",
		"refuel", "repair", "planetary", "modified",
	}
	return stageSwap(tx, schema.TableStation, cols, func(stmt *sql.Stmt) error {
		for _, r := range recs {
			_, err := stmt.Exec(
				r.ID, r.SystemID, r.Name, r.LsFromStar, r.BlackMarket.String(),
				r.MaxPadSize.String(), r.Market.String(), r.Shipyard.String(),
				r.Outfitting.String(), r.Rearm.String(), r.Refuel.String(),
				r.Repair.String(), r.Planetary.String(), formatTime(r.Modified),
			)
			if err != nil {
				return fmt.Errorf("stage %s %q: %w", schema.TableStation, r.Name, err)
			}
		}
		return nil
	})
}

func loadShipVendors(tx *sql.Tx, recs []ShipVendor) error {
	return loadVendors(tx, schema.TableShipVendor, "ship_id", "SELECT ship_id FROM Ship",
		func(r ShipVendor) (int64, int64) { return r.ShipID, r.StationID }, recs)
}

func loadUpgradeVendors(tx *sql.Tx, recs []UpgradeVendor) error {
	return loadVendors(tx, schema.TableUpgradeVendor, "upgrade_id", "SELECT upgrade_id FROM Upgrade",
		func(r UpgradeVendor) (int64, int64) { return r.UpgradeID, r.StationID }, recs)
}

// loadVendors handles both many-to-many vendor join tables, which differ only
// in the name of the non-station key.
func loadVendors[T any](tx *sql.Tx, table, keyCol, parentQuery string, split func(T) (int64, int64), recs []T) error {
	parents, err := idSet(tx, parentQuery)
	if err != nil {
		return err
	}
	stations, err := idSet(tx, "SELECT station_id FROM Station")
	if err != nil {
		return err
	}
	seen := make(map[[2]int64]bool, len(recs))
	for _, r := range recs {
		id, stationID := split(r)
		record := fmt.Sprintf("%d@%d", id, stationID)
		if seen[[2]int64{id, stationID}] {
			return &ReferenceIntegrityError{Table: table, Record: record, Reason: "duplicate vendor pair"}
		}
		if !parents[id] {
			return &ReferenceIntegrityError{Table: table, Record: record, Reason: fmt.Sprintf("unknown %s %d", keyCol, id)}
		}
		if !stations[stationID] {
			return &ReferenceIntegrityError{Table: table, Record: record, Reason: fmt.Sprintf("unknown station %d", stationID)}
		}
		seen[[2]int64{id, stationID}] = true
	}
	return stageSwap(tx, table, []string{keyCol, "station_id"}, func(stmt *sql.Stmt) error {
		for _, r := range recs {
			id, stationID := split(r)
			if _, err := stmt.Exec(id, stationID); err != nil {
				return fmt.Errorf("stage %s %d@%d: %w", table, id, stationID, err)
			}
		}
		return nil
	})
}

func loadRareItems(tx *sql.Tx, recs []RareItem) error {
	stations, err := idSet(tx, "SELECT station_id FROM Station")
	if err != nil {
		return err
	}
	categories, err := idSet(tx, "SELECT category_id FROM Category")
	if err != nil {
		return err
	}
	ids := make(map[int64]bool, len(recs))
	names := make(map[string]bool, len(recs))
	for _, r := range recs {
		if ids[r.ID] {
			return &ReferenceIntegrityError{Table: schema.TableRareItem, Record: r.Name, Reason: fmt.Sprintf("duplicate id %d", r.ID)}
		}
		key := strings.ToLower(r.Name)
		if names[key] {
			return &ReferenceIntegrityError{Table: schema.TableRareItem, Record: r.Name, Reason: "duplicate name"}
		}
		if !stations[r.StationID] {
			return &ReferenceIntegrityError{Table: schema.TableRareItem, Record: r.Name, Reason: fmt.Sprintf("unknown station %d", r.StationID)}
		}
		if !categories[r.CategoryID] {
			return &ReferenceIntegrityError{Table: schema.TableRareItem, Record: r.Name, Reason: fmt.Sprintf("unknown category %d", r.CategoryID)}
		}
		ids[r.ID] = true
		names[key] = true
	}
	cols := []string{"rare_id", "station_id", "category_id", "name", "cost", "max_allocation", "illegal", "suppressed"}
	return stageSwap(tx, schema.TableRareItem, cols, func(stmt *sql.Stmt) error {
		for _, r := range recs {
			_, err := stmt.Exec(r.ID, r.StationID, r.CategoryID, r.Name, r.Cost,
				r.MaxAllocation, r.Illegal.String(), r.Suppressed.String())
			if err != nil {
				return fmt.Errorf("stage %s %q: %w", schema.TableRareItem, r.Name, err)
			}
		}
		return nil
	})
}

func loadFDevShipyards(tx *sql.Tx, recs []FDevShipyard) error {
	ids := make(map[int64]bool, len(recs))
	for _, r := range recs {
		if ids[r.ID] {
			return &ReferenceIntegrityError{Table: schema.TableFDevShipyard, Record: r.Symbol, Reason: fmt.Sprintf("duplicate id %d", r.ID)}
		}
		ids[r.ID] = true
	}
	return stageSwap(tx, schema.TableFDevShipyard, []string{"id", "symbol", "name"}, func(stmt *sql.Stmt) error {
		for _, r := range recs {
			if _, err := stmt.Exec(r.ID, r.Symbol, r.Name); err != nil {
				return fmt.Errorf("stage %s %q: %w", schema.TableFDevShipyard, r.Symbol, err)
			}
		}
		return nil
	})
}

func loadFDevOutfittings(tx *sql.Tx, recs []FDevOutfitting) error {
	ids := make(map[int64]bool, len(recs))
	for _, r := range recs {
		if ids[r.ID] {
			return &ReferenceIntegrityError{Table: schema.TableFDevOutfitting, Record: r.Symbol, Reason: fmt.Sprintf("duplicate id %d", r.ID)}
		}
		ids[r.ID] = true
	}
	cols := []string{"id", "symbol", "category", "name", "mount", "guidance", "ship", "class", "rating"}
	return stageSwap(tx, schema.TableFDevOutfitting, cols, func(stmt *sql.Stmt) error {
		for _, r := range recs {
			_, err := stmt.Exec(r.ID, r.Symbol, r.Category, r.Name,
				nullIfEmpty(r.Mount), nullIfEmpty(r.Guidance), nullIfEmpty(r.Ship),
				r.Class, r.Rating)
			if err != nil {
				return fmt.Errorf("stage %s %q: %w", schema.TableFDevOutfitting, r.Symbol, err)
			}
		}
		return nil
	})
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
