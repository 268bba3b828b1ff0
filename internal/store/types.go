package store

import (
	"fmt"
	"time"
)

// TriState is a closed three-value domain for station service flags:
// unknown ('?'), yes ('Y'), no ('N'). The zero value is Unknown, so a flag
// can never hold an out-of-domain character.
type TriState uint8

const (
	Unknown TriState = iota
	Yes
	No
)

// String returns the single-character form persisted in the store.
func (t TriState) String() string {
	switch t {
	case Yes:
		return "Y"
	case No:
		return "N"
	}
	return "?"
}

// ParseTriState converts a source character into a TriState.
func ParseTriState(s string) (TriState, error) {
	switch s {
	case "?", "":
		return Unknown, nil
	case "Y", "y":
		return Yes, nil
	case "N", "n":
		return No, nil
	}
	return Unknown, fmt.Errorf("invalid tri-state flag %q", s)
}

// PadSize is the closed domain for a station's largest landing pad.
type PadSize uint8

const (
	PadUnknown PadSize = iota
	PadSmall
	PadMedium
	PadLarge
)

// String returns the single-character form persisted in the store.
func (p PadSize) String() string {
	switch p {
	case PadSmall:
		return "S"
	case PadMedium:
		return "M"
	case PadLarge:
		return "L"
	}
	return "?"
}

// ParsePadSize converts a source character into a PadSize.
func ParsePadSize(s string) (PadSize, error) {
	switch s {
	case "?", "":
		return PadUnknown, nil
	case "S", "s":
		return PadSmall, nil
	case "M", "m":
		return PadMedium, nil
	case "L", "l":
		return PadLarge, nil
	}
	return PadUnknown, fmt.Errorf("invalid pad size %q", s)
}

// Added is a source-attribution label for systems.
type Added struct {
	ID   int64  `json:"added_id"`
	Name string `json:"name"`
}

// Category groups tradeable items.
type Category struct {
	ID   int64  `json:"category_id"`
	Name string `json:"name"`
}

// Ship is a purchasable hull. IDs come from a fixed external identifier
// space, never auto-generated.
type Ship struct {
	ID     int64  `json:"ship_id"`
	Name   string `json:"name"`
	Cost   int64  `json:"cost"`
	FDevID *int64 `json:"fdev_id,omitempty"`
}

// Upgrade is a purchasable module. The Ship field denormalizes the owning
// ship name for ship-locked modules.
type Upgrade struct {
	ID     int64  `json:"upgrade_id"`
	Name   string `json:"name"`
	Class  int    `json:"class"`
	Rating string `json:"rating"`
	Ship   string `json:"ship,omitempty"`
	Cost   int64  `json:"cost"`
}

// Item is a tradeable commodity belonging to exactly one Category.
type Item struct {
	ID         int64  `json:"item_id"`
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	UIOrder    int    `json:"ui_order"`
	AvgPrice   *int64 `json:"avg_price,omitempty"`
	FDevID     *int64 `json:"fdev_id,omitempty"`
}

// System is a star system at a 3-D position.
type System struct {
	ID       int64     `json:"system_id"`
	Name     string    `json:"name"`
	PosX     float64   `json:"pos_x"`
	PosY     float64   `json:"pos_y"`
	PosZ     float64   `json:"pos_z"`
	AddedID  *int64    `json:"added_id,omitempty"`
	Modified time.Time `json:"modified"`
}

// Station is a dockable facility inside a System.
type Station struct {
	ID          int64     `json:"station_id"`
	SystemID    int64     `json:"system_id"`
	Name        string    `json:"name"`
	LsFromStar  float64   `json:"ls_from_star"`
	BlackMarket TriState  `json:"blackmarket"`
	MaxPadSize  PadSize   `json:"max_pad_size"`
	Market      TriState  `json:"market"`
	Shipyard    TriState  `json:"shipyard"`
	Outfitting  TriState  `json:"outfitting"`
	Rearm       TriState  `json:"rearm"`
	Refuel      TriState  `json:"refuel"`
	Repair      TriState  `json:"repair"`
	Planetary   TriState  `json:"planetary"`
	Modified    time.Time `json:"modified"`
}

// ShipVendor records that a station sells a ship.
type ShipVendor struct {
	ShipID    int64 `json:"ship_id"`
	StationID int64 `json:"station_id"`
}

// UpgradeVendor records that a station sells an upgrade.
type UpgradeVendor struct {
	UpgradeID int64 `json:"upgrade_id"`
	StationID int64 `json:"station_id"`
}

// RareItem is a station-exclusive commodity.
type RareItem struct {
	ID            int64    `json:"rare_id"`
	StationID     int64    `json:"station_id"`
	CategoryID    int64    `json:"category_id"`
	Name          string   `json:"name"`
	Cost          int64    `json:"cost"`
	MaxAllocation int64    `json:"max_allocation"`
	Illegal       TriState `json:"illegal"`
	Suppressed    TriState `json:"suppressed"`
}

// FDevShipyard maps an external shipyard identifier to a ship name.
type FDevShipyard struct {
	ID     int64  `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// FDevOutfitting maps an external outfitting identifier to a module.
type FDevOutfitting struct {
	ID       int64  `json:"id"`
	Symbol   string `json:"symbol"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Mount    string `json:"mount,omitempty"`
	Guidance string `json:"guidance,omitempty"`
	Ship     string `json:"ship,omitempty"`
	Class    string `json:"class"`
	Rating   string `json:"rating"`
}

// PriceSide is one half of a station price record: what the station pays
// (demand) or charges (supply). Units and level are -1 when unknown.
type PriceSide struct {
	Price int64 `json:"price"`
	Units int64 `json:"units"`
	Level int64 `json:"level"`
}

// PriceRecord is one parsed market line. Station and item are identified by
// name; the merger resolves them against the reference tables and rejects
// records that reference unknown parents.
type PriceRecord struct {
	System   string    `json:"system"`
	Station  string    `json:"station"`
	Item     string    `json:"item"`
	Demand   PriceSide `json:"demand"`
	Supply   PriceSide `json:"supply"`
	Modified time.Time `json:"modified"`
	FromLive bool      `json:"from_live"`
}

// StationItem is the authoritative stored price row for one (station, item).
type StationItem struct {
	StationID int64     `json:"station_id"`
	ItemID    int64     `json:"item_id"`
	Demand    PriceSide `json:"demand"`
	Supply    PriceSide `json:"supply"`
	FromLive  bool      `json:"from_live"`
	Modified  time.Time `json:"modified"`
}

// ReferenceSet carries the parsed contents of the reference sources, one
// typed slice per table. Slices for tables that are not being reloaded are
// left nil.
type ReferenceSet struct {
	Added           []Added
	Categories      []Category
	Ships           []Ship
	Upgrades        []Upgrade
	Items           []Item
	Systems         []System
	Stations        []Station
	ShipVendors     []ShipVendor
	UpgradeVendors  []UpgradeVendor
	RareItems       []RareItem
	FDevShipyards   []FDevShipyard
	FDevOutfittings []FDevOutfitting
}

// Listing is one row of the StationBuying/StationSelling views.
type Listing struct {
	StationID int64     `json:"station_id"`
	ItemID    int64     `json:"item_id"`
	Price     int64     `json:"price"`
	Units     int64     `json:"units"`
	Level     int64     `json:"level"`
	Modified  time.Time `json:"modified"`
}
