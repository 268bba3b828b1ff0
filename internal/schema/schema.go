// Package schema holds the versioned table, index, and view definitions for
// the trade data cache. The definitions are exposed as ordered data so the
// provisioner can replay them against a fresh store; the version is a plain
// integer compared against the value persisted in store metadata, never
// inferred from table shape.
package schema

// CurrentVersion is the schema version written to store metadata after a full
// rebuild. Bumping it is the only sanctioned way to force a full rebuild
// across deployments.
const CurrentVersion = 2

// Table names, also used as reference-source identifiers by the change
// detector and the source readers.
const (
	TableAdded          = "Added"
	TableCategory       = "Category"
	TableShip           = "Ship"
	TableUpgrade        = "Upgrade"
	TableItem           = "Item"
	TableSystem         = "System"
	TableStation        = "Station"
	TableShipVendor     = "ShipVendor"
	TableUpgradeVendor  = "UpgradeVendor"
	TableRareItem       = "RareItem"
	TableStationItem    = "StationItem"
	TableStationDemand  = "StationDemand"
	TableStationSupply  = "StationSupply"
	TableFDevShipyard   = "FDevShipyard"
	TableFDevOutfitting = "FDevOutfitting"
)

// SourcePrices identifies the market price source in fingerprint metadata.
const SourcePrices = "prices"

// Kind classifies a definition.
type Kind int

const (
	KindTable Kind = iota
	KindIndex
	KindView
)

// Definition is one DDL-equivalent descriptor. Definitions() returns them in
// creation order: parents before children, indexes and views last.
type Definition struct {
	Name string
	Kind Kind
	SQL  string
}

// ReferenceTables lists the reference tables in insert dependency order
// (parents before children). FDev lookup tables are independent of the rest
// of the graph and come last.
func ReferenceTables() []string {
	return []string{
		TableAdded,
		TableCategory,
		TableShip,
		TableUpgrade,
		TableItem,
		TableSystem,
		TableStation,
		TableShipVendor,
		TableUpgradeVendor,
		TableRareItem,
		TableFDevShipyard,
		TableFDevOutfitting,
	}
}

// Children maps a reference table to the reference tables that cascade from
// it. A wholesale reload of a parent empties its children, so staleness of a
// parent implies staleness of everything downstream.
func Children(table string) []string {
	switch table {
	case TableCategory:
		return []string{TableItem}
	case TableSystem:
		return []string{TableStation}
	case TableStation:
		return []string{TableShipVendor, TableUpgradeVendor, TableRareItem}
	case TableShip:
		return []string{TableShipVendor}
	case TableUpgrade:
		return []string{TableUpgradeVendor}
	case TableItem:
		return []string{TableRareItem}
	}
	return nil
}

// OwnsPriceRows reports whether a wholesale reload of table cascades into the
// price tables, forcing a price re-merge afterwards.
func OwnsPriceRows(table string) bool {
	switch table {
	case TableSystem, TableStation, TableCategory, TableItem:
		return true
	}
	return false
}

// Definitions returns the full ordered schema. Every foreign key carries
// ON DELETE CASCADE, every single-character flag has a closed domain with '?'
// as the unknown sentinel, and name uniqueness is case-insensitive
// (COLLATE NOCASE).
func Definitions() []Definition {
	return []Definition{
		{Name: "metadata", Kind: KindTable, SQL: `
CREATE TABLE metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`},
		{Name: TableAdded, Kind: KindTable, SQL: `
CREATE TABLE Added (
    added_id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT COLLATE NOCASE NOT NULL UNIQUE
)`},
		{Name: TableCategory, Kind: KindTable, SQL: `
CREATE TABLE Category (
    category_id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT COLLATE NOCASE NOT NULL UNIQUE
)`},
		{Name: TableShip, Kind: KindTable, SQL: `
CREATE TABLE Ship (
    ship_id INTEGER PRIMARY KEY,
    name TEXT COLLATE NOCASE NOT NULL UNIQUE,
    cost INTEGER NOT NULL DEFAULT 0,
    fdev_id INTEGER
)`},
		{Name: TableUpgrade, Kind: KindTable, SQL: `
CREATE TABLE Upgrade (
    upgrade_id INTEGER PRIMARY KEY,
    name TEXT COLLATE NOCASE NOT NULL,
    class INTEGER NOT NULL DEFAULT 0,
    rating TEXT NOT NULL DEFAULT '',
    ship TEXT,
    cost INTEGER NOT NULL DEFAULT 0
)`},
		{Name: TableItem, Kind: KindTable, SQL: `
CREATE TABLE Item (
    item_id INTEGER PRIMARY KEY AUTOINCREMENT,
    category_id INTEGER NOT NULL,
    name TEXT COLLATE NOCASE NOT NULL UNIQUE,
    ui_order INTEGER NOT NULL DEFAULT 0,
    avg_price INTEGER,
    fdev_id INTEGER,
    FOREIGN KEY (category_id) REFERENCES Category(category_id) ON DELETE CASCADE
)`},
		{Name: TableSystem, Kind: KindTable, SQL: `
CREATE TABLE System (
    system_id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT COLLATE NOCASE NOT NULL UNIQUE,
    pos_x DOUBLE NOT NULL,
    pos_y DOUBLE NOT NULL,
    pos_z DOUBLE NOT NULL,
    added_id INTEGER,
    modified TEXT NOT NULL DEFAULT (STRFTIME('%Y-%m-%dT%H:%M:%SZ', 'now')),
    FOREIGN KEY (added_id) REFERENCES Added(added_id) ON DELETE CASCADE
)`},
		{Name: TableStation, Kind: KindTable, SQL: `
CREATE TABLE Station (
    station_id INTEGER PRIMARY KEY AUTOINCREMENT,
    system_id INTEGER NOT NULL,
    name TEXT COLLATE NOCASE NOT NULL,
    ls_from_star DOUBLE NOT NULL DEFAULT 0 CHECK (ls_from_star >= 0),
    blackmarket TEXT NOT NULL DEFAULT '?' CHECK (blackmarket IN ('?', 'Y', 'N')),
    max_pad_size TEXT NOT NULL DEFAULT '?' CHECK (max_pad_size IN ('?', 'S', 'M', 'L')),
    market TEXT NOT NULL DEFAULT '?' CHECK (market IN ('?', 'Y', 'N')),
    shipyard TEXT NOT NULL DEFAULT '?' CHECK (shipyard IN ('?', 'Y', 'N')),
    outfitting TEXT NOT NULL DEFAULT '?' CHECK (outfitting IN ('?', 'Y', 'N')),
    rearm TEXT NOT NULL DEFAULT '?' CHECK (rearm IN ('?', 'Y', 'N')),
    refuel TEXT NOT NULL DEFAULT '?' CHECK (refuel IN ('?', 'Y', 'N')),
    repair TEXT NOT NULL DEFAULT '?' CHECK (repair IN ('?', 'Y', 'N')),
    planetary TEXT NOT NULL DEFAULT '?' CHECK (planetary IN ('?', 'Y', 'N')),
    modified TEXT NOT NULL DEFAULT (STRFTIME('%Y-%m-%dT%H:%M:%SZ', 'now')),
    UNIQUE (system_id, name),
    FOREIGN KEY (system_id) REFERENCES System(system_id) ON DELETE CASCADE
)`},
		{Name: TableShipVendor, Kind: KindTable, SQL: `
CREATE TABLE ShipVendor (
    ship_id INTEGER NOT NULL,
    station_id INTEGER NOT NULL,
    PRIMARY KEY (ship_id, station_id),
    FOREIGN KEY (ship_id) REFERENCES Ship(ship_id) ON DELETE CASCADE,
    FOREIGN KEY (station_id) REFERENCES Station(station_id) ON DELETE CASCADE
) WITHOUT ROWID`},
		{Name: TableUpgradeVendor, Kind: KindTable, SQL: `
CREATE TABLE UpgradeVendor (
    upgrade_id INTEGER NOT NULL,
    station_id INTEGER NOT NULL,
    PRIMARY KEY (upgrade_id, station_id),
    FOREIGN KEY (upgrade_id) REFERENCES Upgrade(upgrade_id) ON DELETE CASCADE,
    FOREIGN KEY (station_id) REFERENCES Station(station_id) ON DELETE CASCADE
) WITHOUT ROWID`},
		{Name: TableRareItem, Kind: KindTable, SQL: `
CREATE TABLE RareItem (
    rare_id INTEGER PRIMARY KEY AUTOINCREMENT,
    station_id INTEGER NOT NULL,
    category_id INTEGER NOT NULL,
    name TEXT COLLATE NOCASE NOT NULL UNIQUE,
    cost INTEGER NOT NULL DEFAULT 0,
    max_allocation INTEGER NOT NULL DEFAULT 0,
    illegal TEXT NOT NULL DEFAULT '?' CHECK (illegal IN ('?', 'Y', 'N')),
    suppressed TEXT NOT NULL DEFAULT '?' CHECK (suppressed IN ('?', 'Y', 'N')),
    FOREIGN KEY (station_id) REFERENCES Station(station_id) ON DELETE CASCADE,
    FOREIGN KEY (category_id) REFERENCES Category(category_id) ON DELETE CASCADE
)`},
		{Name: TableStationItem, Kind: KindTable, SQL: `
CREATE TABLE StationItem (
    station_id INTEGER NOT NULL,
    item_id INTEGER NOT NULL,
    demand_price INTEGER NOT NULL DEFAULT 0,
    demand_units INTEGER NOT NULL DEFAULT -1,
    demand_level INTEGER NOT NULL DEFAULT -1,
    supply_price INTEGER NOT NULL DEFAULT 0,
    supply_units INTEGER NOT NULL DEFAULT -1,
    supply_level INTEGER NOT NULL DEFAULT -1,
    from_live INTEGER NOT NULL DEFAULT 0,
    modified TEXT NOT NULL DEFAULT (STRFTIME('%Y-%m-%dT%H:%M:%SZ', 'now')),
    PRIMARY KEY (station_id, item_id),
    FOREIGN KEY (station_id) REFERENCES Station(station_id) ON DELETE CASCADE,
    FOREIGN KEY (item_id) REFERENCES Item(item_id) ON DELETE CASCADE
) WITHOUT ROWID`},
		{Name: TableStationDemand, Kind: KindTable, SQL: `
CREATE TABLE StationDemand (
    station_id INTEGER NOT NULL,
    item_id INTEGER NOT NULL,
    price INTEGER NOT NULL DEFAULT 0,
    units INTEGER NOT NULL DEFAULT -1,
    level INTEGER NOT NULL DEFAULT -1,
    from_live INTEGER NOT NULL DEFAULT 0,
    modified TEXT NOT NULL DEFAULT (STRFTIME('%Y-%m-%dT%H:%M:%SZ', 'now')),
    PRIMARY KEY (station_id, item_id),
    FOREIGN KEY (station_id) REFERENCES Station(station_id) ON DELETE CASCADE,
    FOREIGN KEY (item_id) REFERENCES Item(item_id) ON DELETE CASCADE
) WITHOUT ROWID`},
		{Name: TableStationSupply, Kind: KindTable, SQL: `
CREATE TABLE StationSupply (
    station_id INTEGER NOT NULL,
    item_id INTEGER NOT NULL,
    price INTEGER NOT NULL DEFAULT 0,
    units INTEGER NOT NULL DEFAULT -1,
    level INTEGER NOT NULL DEFAULT -1,
    from_live INTEGER NOT NULL DEFAULT 0,
    modified TEXT NOT NULL DEFAULT (STRFTIME('%Y-%m-%dT%H:%M:%SZ', 'now')),
    PRIMARY KEY (station_id, item_id),
    FOREIGN KEY (station_id) REFERENCES Station(station_id) ON DELETE CASCADE,
    FOREIGN KEY (item_id) REFERENCES Item(item_id) ON DELETE CASCADE
) WITHOUT ROWID`},
		{Name: TableFDevShipyard, Kind: KindTable, SQL: `
CREATE TABLE FDevShipyard (
    id INTEGER PRIMARY KEY,
    symbol TEXT NOT NULL,
    name TEXT NOT NULL
)`},
		{Name: TableFDevOutfitting, Kind: KindTable, SQL: `
CREATE TABLE FDevOutfitting (
    id INTEGER PRIMARY KEY,
    symbol TEXT NOT NULL,
    category TEXT NOT NULL,
    name TEXT NOT NULL,
    mount TEXT,
    guidance TEXT,
    ship TEXT,
    class TEXT NOT NULL DEFAULT '',
    rating TEXT NOT NULL DEFAULT ''
)`},

		{Name: "idx_item_fdev_id", Kind: KindIndex,
			SQL: `CREATE INDEX idx_item_fdev_id ON Item(fdev_id)`},
		{Name: "idx_system_name", Kind: KindIndex,
			SQL: `CREATE INDEX idx_system_name ON System(name)`},
		{Name: "idx_station_system", Kind: KindIndex,
			SQL: `CREATE INDEX idx_station_system ON Station(system_id)`},
		{Name: "idx_station_item_item", Kind: KindIndex,
			SQL: `CREATE INDEX idx_station_item_item ON StationItem(item_id)`},
		{Name: "idx_rare_item_station", Kind: KindIndex,
			SQL: `CREATE INDEX idx_rare_item_station ON RareItem(station_id)`},

		// Derived read-only projections over the positive sides of the
		// price table. Never materialized, never written.
		{Name: "StationBuying", Kind: KindView, SQL: `
CREATE VIEW StationBuying AS
SELECT station_id, item_id,
       demand_price AS price, demand_units AS units, demand_level AS level,
       modified
  FROM StationItem
 WHERE demand_price > 0`},
		{Name: "StationSelling", Kind: KindView, SQL: `
CREATE VIEW StationSelling AS
SELECT station_id, item_id,
       supply_price AS price, supply_units AS units, supply_level AS level,
       modified
  FROM StationItem
 WHERE supply_price > 0`},
	}
}
