package store

import (
	"path/filepath"
	"testing"
	"time"

	"tdcache/internal/schema"
)

// setupStore provisions a fresh cache database in a temp dir.
func setupStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "cache.db")
	st, err := Provision(dbPath)
	if err != nil {
		t.Fatalf("provision store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// testTime builds a deterministic modified timestamp offset in seconds.
func testTime(offset int) time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Second)
}

// referenceFixture is a small but fully connected reference graph.
func referenceFixture() *ReferenceSet {
	added := int64(1)
	return &ReferenceSet{
		Added:      []Added{{ID: 1, Name: "Release 1.0"}},
		Categories: []Category{{ID: 1, Name: "Chemicals"}, {ID: 2, Name: "Metals"}},
		Ships:      []Ship{{ID: 128049249, Name: "Sidewinder", Cost: 32000}},
		Upgrades:   []Upgrade{{ID: 1, Name: "Pulse Laser", Class: 1, Rating: "F", Cost: 2200}},
		Items: []Item{
			{ID: 10, CategoryID: 1, Name: "Hydrogen Fuel"},
			{ID: 11, CategoryID: 2, Name: "Gold"},
		},
		Systems: []System{
			{ID: 1, Name: "Sol", PosX: 0, PosY: 0, PosZ: 0, AddedID: &added, Modified: testTime(0)},
			{ID: 2, Name: "Shinrarta Dezhra", PosX: 55.71875, PosY: 17.59375, PosZ: 27.15625, Modified: testTime(0)},
		},
		Stations: []Station{
			{ID: 5, SystemID: 1, Name: "Abraham Lincoln", LsFromStar: 496, Market: Yes, Modified: testTime(0)},
			{ID: 6, SystemID: 2, Name: "Jameson Memorial", LsFromStar: 0, BlackMarket: Unknown, Modified: testTime(0)},
		},
		ShipVendors:    []ShipVendor{{ShipID: 128049249, StationID: 6}},
		UpgradeVendors: []UpgradeVendor{{UpgradeID: 1, StationID: 6}},
		RareItems: []RareItem{
			{ID: 1, StationID: 5, CategoryID: 1, Name: "Eranin Pearl Whisky", Cost: 9040, Illegal: No},
		},
		FDevShipyards:   []FDevShipyard{{ID: 128049249, Symbol: "SideWinder", Name: "Sidewinder"}},
		FDevOutfittings: []FDevOutfitting{{ID: 128049381, Symbol: "Hpt_PulseLaser_Fixed_Small", Category: "weapon", Name: "Pulse Laser", Class: "1", Rating: "F"}},
	}
}

// loadFixture provisions a store and loads the full reference fixture.
func loadFixture(t *testing.T) *Store {
	t.Helper()
	st := setupStore(t)
	if err := st.LoadReference(referenceFixture(), schema.ReferenceTables()); err != nil {
		t.Fatalf("load reference fixture: %v", err)
	}
	return st
}

func TestProvisionCreatesSchema(t *testing.T) {
	st := setupStore(t)

	version, err := st.SchemaVersion()
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != schema.CurrentVersion {
		t.Errorf("schema version = %d, want %d", version, schema.CurrentVersion)
	}

	stats, err := st.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for table, n := range stats.Tables {
		if n != 0 {
			t.Errorf("table %s has %d rows after provisioning, want 0", table, n)
		}
	}
}

func TestProvisionReplacesExistingStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	st, err := Provision(dbPath)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := st.LoadReference(referenceFixture(), schema.ReferenceTables()); err != nil {
		t.Fatalf("load: %v", err)
	}
	// Simulate an older deployment.
	if err := st.SetSchemaVersion(1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	st.Close()

	st2, err := Provision(dbPath)
	if err != nil {
		t.Fatalf("re-provision: %v", err)
	}
	defer st2.Close()

	version, err := st2.SchemaVersion()
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != schema.CurrentVersion {
		t.Errorf("schema version = %d, want %d", version, schema.CurrentVersion)
	}
	stats, err := st2.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if n := stats.Tables[schema.TableSystem]; n != 0 {
		t.Errorf("System has %d rows after rebuild, want 0 pending reload", n)
	}
}

func TestMetadataFingerprints(t *testing.T) {
	st := setupStore(t)

	if _, ok, err := st.SourceFingerprint("System"); err != nil || ok {
		t.Fatalf("fingerprint before set: ok=%v err=%v, want absent", ok, err)
	}
	if err := st.SetSourceFingerprint("System", "1:2:abc"); err != nil {
		t.Fatalf("set fingerprint: %v", err)
	}
	fp, ok, err := st.SourceFingerprint("System")
	if err != nil || !ok {
		t.Fatalf("fingerprint after set: ok=%v err=%v", ok, err)
	}
	if fp != "1:2:abc" {
		t.Errorf("fingerprint = %q, want %q", fp, "1:2:abc")
	}

	// Overwrite keeps a single row per source.
	if err := st.SetSourceFingerprint("System", "3:4:def"); err != nil {
		t.Fatalf("overwrite fingerprint: %v", err)
	}
	fp, _, _ = st.SourceFingerprint("System")
	if fp != "3:4:def" {
		t.Errorf("fingerprint = %q, want %q", fp, "3:4:def")
	}
}

func TestTriStateDomains(t *testing.T) {
	cases := []struct {
		in      string
		want    TriState
		wantErr bool
	}{
		{"?", Unknown, false},
		{"", Unknown, false},
		{"Y", Yes, false},
		{"N", No, false},
		{"X", Unknown, true},
	}
	for _, tc := range cases {
		got, err := ParseTriState(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseTriState(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if err == nil && got != tc.want {
			t.Errorf("ParseTriState(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParsePadSize("X"); err == nil {
		t.Error("ParsePadSize(X) succeeded, want error")
	}
	if got, _ := ParsePadSize("L"); got != PadLarge {
		t.Errorf("ParsePadSize(L) = %v, want PadLarge", got)
	}
}
