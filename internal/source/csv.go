package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tdcache/internal/schema"
	"tdcache/internal/store"
)

// DirReader reads reference data from <dir>/<Table>.csv files with a header
// row naming the schema columns. It implements ReferenceReader.
type DirReader struct {
	Dir string
}

// Fingerprint returns the fingerprint of a table's CSV file.
func (d *DirReader) Fingerprint(table string) (Fingerprint, error) {
	return FileFingerprint(d.path(table))
}

func (d *DirReader) path(table string) string {
	return filepath.Join(d.Dir, table+".csv")
}

// ReadTables parses the CSV sources for the named tables.
func (d *DirReader) ReadTables(tables []string) (*store.ReferenceSet, error) {
	set := &store.ReferenceSet{}
	for _, table := range tables {
		rows, err := d.readCSV(table)
		if err != nil {
			return nil, err
		}
		switch table {
		case schema.TableAdded:
			err = parseRows(rows, &set.Added, parseAdded)
		case schema.TableCategory:
			err = parseRows(rows, &set.Categories, parseCategory)
		case schema.TableShip:
			err = parseRows(rows, &set.Ships, parseShip)
		case schema.TableUpgrade:
			err = parseRows(rows, &set.Upgrades, parseUpgrade)
		case schema.TableItem:
			err = parseRows(rows, &set.Items, parseItem)
		case schema.TableSystem:
			err = parseRows(rows, &set.Systems, parseSystem)
		case schema.TableStation:
			err = parseRows(rows, &set.Stations, parseStation)
		case schema.TableShipVendor:
			err = parseRows(rows, &set.ShipVendors, parseShipVendor)
		case schema.TableUpgradeVendor:
			err = parseRows(rows, &set.UpgradeVendors, parseUpgradeVendor)
		case schema.TableRareItem:
			err = parseRows(rows, &set.RareItems, parseRareItem)
		case schema.TableFDevShipyard:
			err = parseRows(rows, &set.FDevShipyards, parseFDevShipyard)
		case schema.TableFDevOutfitting:
			err = parseRows(rows, &set.FDevOutfittings, parseFDevOutfitting)
		default:
			err = fmt.Errorf("unknown reference table %q", table)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.path(table), err)
		}
	}
	return set, nil
}

// row is one CSV record with header-indexed field access. Accessors record
// the first conversion error; callers check err once per record.
type row struct {
	idx  map[string]int
	rec  []string
	line int
	err  error
}

func (r *row) fail(col string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("line %d, column %s: %w", r.line, col, err)
	}
}

func (r *row) str(col string) string {
	i, ok := r.idx[col]
	if !ok || i >= len(r.rec) {
		r.fail(col, fmt.Errorf("missing column"))
		return ""
	}
	return r.rec[i]
}

// optStr reads a column that sources may omit entirely.
func (r *row) optStr(col string) string {
	i, ok := r.idx[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return r.rec[i]
}

func (r *row) int64(col string) int64 {
	s := r.str(col)
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		r.fail(col, err)
		return 0
	}
	return v
}

func (r *row) int(col string) int {
	return int(r.int64(col))
}

func (r *row) optInt64(col string) *int64 {
	s := r.optStr(col)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		r.fail(col, err)
		return nil
	}
	return &v
}

func (r *row) float(col string) float64 {
	s := r.str(col)
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(col, err)
		return 0
	}
	return v
}

func (r *row) tristate(col string) store.TriState {
	v, err := store.ParseTriState(r.str(col))
	if err != nil {
		r.fail(col, err)
	}
	return v
}

func (r *row) padSize(col string) store.PadSize {
	v, err := store.ParsePadSize(r.str(col))
	if err != nil {
		r.fail(col, err)
	}
	return v
}

// optTime parses an optional RFC3339 timestamp, defaulting to now so a row
// without a recorded modification time is treated as freshly written.
func (r *row) optTime(col string) time.Time {
	s := r.optStr(col)
	if s == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		r.fail(col, err)
		return time.Time{}
	}
	return t
}

func (d *DirReader) readCSV(table string) ([]*row, error) {
	f, err := os.Open(d.path(table))
	if errors.Is(err, fs.ErrNotExist) {
		// An absent source loads the table empty.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	idx := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		idx[name] = i
	}

	rows := make([]*row, 0, len(records)-1)
	for i, rec := range records[1:] {
		rows = append(rows, &row{idx: idx, rec: rec, line: i + 2})
	}
	return rows, nil
}

func parseRows[T any](rows []*row, dst *[]T, parse func(*row) T) error {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v := parse(r)
		if r.err != nil {
			return r.err
		}
		out = append(out, v)
	}
	*dst = out
	return nil
}

func parseAdded(r *row) store.Added {
	return store.Added{ID: r.int64("added_id"), Name: r.str("name")}
}

func parseCategory(r *row) store.Category {
	return store.Category{ID: r.int64("category_id"), Name: r.str("name")}
}

func parseShip(r *row) store.Ship {
	return store.Ship{
		ID:     r.int64("ship_id"),
		Name:   r.str("name"),
		Cost:   r.int64("cost"),
		FDevID: r.optInt64("fdev_id"),
	}
}

func parseUpgrade(r *row) store.Upgrade {
	return store.Upgrade{
		ID:     r.int64("upgrade_id"),
		Name:   r.str("name"),
		Class:  r.int("class"),
		Rating: r.str("rating"),
		Ship:   r.optStr("ship"),
		Cost:   r.int64("cost"),
	}
}

func parseItem(r *row) store.Item {
	return store.Item{
		ID:         r.int64("item_id"),
		CategoryID: r.int64("category_id"),
		Name:       r.str("name"),
		UIOrder:    r.int("ui_order"),
		AvgPrice:   r.optInt64("avg_price"),
		FDevID:     r.optInt64("fdev_id"),
	}
}

func parseSystem(r *row) store.System {
	return store.System{
		ID:       r.int64("system_id"),
		Name:     r.str("name"),
		PosX:     r.float("pos_x"),
		PosY:     r.float("pos_y"),
		PosZ:     r.float("pos_z"),
		AddedID:  r.optInt64("added_id"),
		Modified: r.optTime("modified"),
	}
}

func parseStation(r *row) store.Station {
	return store.Station{
		ID:          r.int64("station_id"),
		SystemID:    r.int64("system_id"),
		Name:        r.str("name"),
		LsFromStar:  r.float("ls_from_star"),
		BlackMarket: r.tristate("blackmarket"),
		MaxPadSize:  r.padSize("max_pad_size"),
		Market:      r.tristate("market"),
		Shipyard:    r.tristate("shipyard"),
		Outfitting:  r.tristate("outfitting"),
		Rearm:       r.tristate("rearm"),
		Refuel:      r.tristate("refuel"),
		Repair:      r.tristate("repair"),
		Planetary:   r.tristate("planetary"),
		Modified:    r.optTime("modified"),
	}
}

func parseShipVendor(r *row) store.ShipVendor {
	return store.ShipVendor{ShipID: r.int64("ship_id"), StationID: r.int64("station_id")}
}

func parseUpgradeVendor(r *row) store.UpgradeVendor {
	return store.UpgradeVendor{UpgradeID: r.int64("upgrade_id"), StationID: r.int64("station_id")}
}

func parseRareItem(r *row) store.RareItem {
	return store.RareItem{
		ID:            r.int64("rare_id"),
		StationID:     r.int64("station_id"),
		CategoryID:    r.int64("category_id"),
		Name:          r.str("name"),
		Cost:          r.int64("cost"),
		MaxAllocation: r.int64("max_allocation"),
		Illegal:       r.tristate("illegal"),
		Suppressed:    r.tristate("suppressed"),
	}
}

func parseFDevShipyard(r *row) store.FDevShipyard {
	return store.FDevShipyard{ID: r.int64("id"), Symbol: r.str("symbol"), Name: r.str("name")}
}

func parseFDevOutfitting(r *row) store.FDevOutfitting {
	return store.FDevOutfitting{
		ID:       r.int64("id"),
		Symbol:   r.str("symbol"),
		Category: r.str("category"),
		Name:     r.str("name"),
		Mount:    r.optStr("mount"),
		Guidance: r.optStr("guidance"),
		Ship:     r.optStr("ship"),
		Class:    r.str("class"),
		Rating:   r.str("rating"),
	}
}
