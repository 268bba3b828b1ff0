package store

import (
	"database/sql"
	"errors"
	"fmt"

	"tdcache/internal/schema"
)

// ErrNotFound is returned by the name lookups when no row matches.
var ErrNotFound = errors.New("not found")

// SystemByName looks up a system by case-insensitive name.
func (s *Store) SystemByName(name string) (*System, error) {
	var sys System
	var addedID sql.NullInt64
	var modified string
	err := s.db.QueryRow(`
		SELECT system_id, name, pos_x, pos_y, pos_z, added_id, modified
		  FROM System WHERE name = ?`, name).
		Scan(&sys.ID, &sys.Name, &sys.PosX, &sys.PosY, &sys.PosZ, &addedID, &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("system %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("query system %q: %w", name, err)
	}
	if addedID.Valid {
		sys.AddedID = &addedID.Int64
	}
	if sys.Modified, err = parseTime(modified); err != nil {
		return nil, err
	}
	return &sys, nil
}

// StationByName looks up a station by case-insensitive system and station
// name. Station names are only unique within their system.
func (s *Store) StationByName(systemName, stationName string) (*Station, error) {
	var st Station
	var flags [8]string
	var pad, modified string
	err := s.db.QueryRow(`
		SELECT station_id, system_id, Station.name, ls_from_star,
		       blackmarket, max_pad_size, market, shipyard, outfitting,
		       rearm, refuel, repair, planetary, Station.modified
		  FROM Station JOIN System USING (system_id)
		 WHERE System.name = ? AND Station.name = ?`, systemName, stationName).
		Scan(&st.ID, &st.SystemID, &st.Name, &st.LsFromStar,
			&flags[0], &pad, &flags[1], &flags[2], &flags[3],
			&flags[4], &flags[5], &flags[6], &flags[7], &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("station %q/%q: %w", systemName, stationName, ErrNotFound)
		}
		return nil, fmt.Errorf("query station %q/%q: %w", systemName, stationName, err)
	}
	for i, dst := range []*TriState{
		&st.BlackMarket, &st.Market, &st.Shipyard, &st.Outfitting,
		&st.Rearm, &st.Refuel, &st.Repair, &st.Planetary,
	} {
		if *dst, err = ParseTriState(flags[i]); err != nil {
			return nil, err
		}
	}
	if st.MaxPadSize, err = ParsePadSize(pad); err != nil {
		return nil, err
	}
	if st.Modified, err = parseTime(modified); err != nil {
		return nil, err
	}
	return &st, nil
}

// ItemByName looks up an item by case-insensitive name.
func (s *Store) ItemByName(name string) (*Item, error) {
	var it Item
	var avgPrice, fdevID sql.NullInt64
	err := s.db.QueryRow(`
		SELECT item_id, category_id, name, ui_order, avg_price, fdev_id
		  FROM Item WHERE name = ?`, name).
		Scan(&it.ID, &it.CategoryID, &it.Name, &it.UIOrder, &avgPrice, &fdevID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("query item %q: %w", name, err)
	}
	if avgPrice.Valid {
		it.AvgPrice = &avgPrice.Int64
	}
	if fdevID.Valid {
		it.FDevID = &fdevID.Int64
	}
	return &it, nil
}

// StationItemFor returns the stored price row for one (station, item), or
// ErrNotFound.
func (s *Store) StationItemFor(stationID, itemID int64) (*StationItem, error) {
	var row StationItem
	var fromLive int
	var modified string
	err := s.db.QueryRow(`
		SELECT station_id, item_id,
		       demand_price, demand_units, demand_level,
		       supply_price, supply_units, supply_level,
		       from_live, modified
		  FROM StationItem WHERE station_id = ? AND item_id = ?`, stationID, itemID).
		Scan(&row.StationID, &row.ItemID,
			&row.Demand.Price, &row.Demand.Units, &row.Demand.Level,
			&row.Supply.Price, &row.Supply.Units, &row.Supply.Level,
			&fromLive, &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("price %d/%d: %w", stationID, itemID, ErrNotFound)
		}
		return nil, fmt.Errorf("query price %d/%d: %w", stationID, itemID, err)
	}
	row.FromLive = fromLive != 0
	if row.Modified, err = parseTime(modified); err != nil {
		return nil, err
	}
	return &row, nil
}

// Buying returns the StationBuying view rows for an item: stations paying a
// positive price for it, best price first.
func (s *Store) Buying(itemID int64) ([]Listing, error) {
	return s.listings("SELECT station_id, item_id, price, units, level, modified FROM StationBuying WHERE item_id = ? ORDER BY price DESC", itemID)
}

// Selling returns the StationSelling view rows for an item: stations selling
// it at a positive price, cheapest first.
func (s *Store) Selling(itemID int64) ([]Listing, error) {
	return s.listings("SELECT station_id, item_id, price, units, level, modified FROM StationSelling WHERE item_id = ? ORDER BY price ASC", itemID)
}

func (s *Store) listings(query string, itemID int64) ([]Listing, error) {
	rows, err := s.db.Query(query, itemID)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		var l Listing
		var modified string
		if err := rows.Scan(&l.StationID, &l.ItemID, &l.Price, &l.Units, &l.Level, &modified); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		if l.Modified, err = parseTime(modified); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteSystem removes a system row; the cascade graph removes its stations
// and, transitively, their vendor, rare-item, and price rows.
func (s *Store) DeleteSystem(systemID int64) error {
	if _, err := s.db.Exec("DELETE FROM System WHERE system_id = ?", systemID); err != nil {
		return fmt.Errorf("delete system %d: %w", systemID, err)
	}
	return nil
}

// Stats reports per-table row counts.
type Stats struct {
	Tables map[string]int64 `json:"tables"`
}

// GetStats counts the rows of every schema table.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{Tables: make(map[string]int64)}
	tables := append(schema.ReferenceTables(),
		schema.TableStationItem, schema.TableStationDemand, schema.TableStationSupply)
	for _, table := range tables {
		var n int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats.Tables[table] = n
	}
	return stats, nil
}
