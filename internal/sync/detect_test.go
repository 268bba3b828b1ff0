package sync

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"tdcache/internal/schema"
	"tdcache/internal/source"
	"tdcache/internal/store"
)

// fixture lays out reference CSVs and a price file in a temp dir and points a
// reader pair at them.
type fixture struct {
	dir    string
	dbPath string
	refs   *source.DirReader
	prices *source.PricesFile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:    dir,
		dbPath: filepath.Join(dir, "cache.db"),
		refs:   &source.DirReader{Dir: filepath.Join(dir, "data")},
		prices: &source.PricesFile{Path: filepath.Join(dir, "market.prices")},
	}
	if err := os.Mkdir(f.refs.Dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	f.writeCSV(t, schema.TableAdded, "added_id,name\n1,Release 1.0\n")
	f.writeCSV(t, schema.TableCategory, "category_id,name\n1,Chemicals\n2,Metals\n")
	f.writeCSV(t, schema.TableItem,
		"item_id,category_id,name,ui_order\n10,1,Hydrogen Fuel,1\n11,2,Gold,1\n")
	f.writeCSV(t, schema.TableSystem,
		"system_id,name,pos_x,pos_y,pos_z,added_id,modified\n"+
			"1,Sol,0,0,0,1,2024-05-01T12:00:00Z\n"+
			"2,Shinrarta Dezhra,55.71875,17.59375,27.15625,1,2024-05-01T12:00:00Z\n")
	f.writeCSV(t, schema.TableStation,
		"station_id,system_id,name,ls_from_star,blackmarket,max_pad_size,market,shipyard,outfitting,rearm,refuel,repair,planetary,modified\n"+
			"5,1,Abraham Lincoln,496,N,L,Y,Y,Y,Y,Y,Y,N,2024-05-01T12:00:00Z\n"+
			"6,2,Jameson Memorial,0,?,L,Y,Y,Y,Y,Y,Y,N,2024-05-01T12:00:00Z\n")

	f.writePrices(t,
		"@ Sol/Abraham Lincoln\n"+
			"   Gold 9000 0 5L - 2024-05-01 12:00:00\n"+
			"   Hydrogen Fuel 84 96 500M 12000H 2024-05-01 12:00:00\n"+
			"@ Shinrarta Dezhra/Jameson Memorial\n"+
			"   Gold 0 9100 ? 20? 2024-05-01 12:30:00\n")
	return f
}

func (f *fixture) writeCSV(t *testing.T, table, content string) {
	t.Helper()
	path := filepath.Join(f.refs.Dir, table+".csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func (f *fixture) writePrices(t *testing.T, content string) {
	t.Helper()
	if err := os.WriteFile(f.prices.Path, []byte(content), 0o644); err != nil {
		t.Fatalf("write prices: %v", err)
	}
}

// currentStore provisions a store whose recorded fingerprints match the
// fixture's sources, so detection starts from an up-to-date baseline.
func (f *fixture) currentStore(t *testing.T) *store.Store {
	t.Helper()
	_, fps, err := Detect(nil, f.refs, f.prices)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	st, err := store.Provision(f.dbPath)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	for name, fp := range fps {
		if err := st.SetSourceFingerprint(name, fp); err != nil {
			t.Fatalf("set fingerprint %s: %v", name, err)
		}
	}
	return st
}

func TestDetectNoStore(t *testing.T) {
	f := newFixture(t)

	v, fps, err := Detect(nil, f.refs, f.prices)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !v.Schema || !v.Prices {
		t.Errorf("verdict = %+v, want full rebuild", v)
	}
	if !reflect.DeepEqual(v.Reference, schema.ReferenceTables()) {
		t.Errorf("reference = %v, want all tables", v.Reference)
	}
	if fps[schema.TableSystem] == absentFingerprint {
		t.Error("present source fingerprinted as absent")
	}
	if fps[schema.TableRareItem] != absentFingerprint {
		t.Errorf("missing source fingerprint = %q, want absent", fps[schema.TableRareItem])
	}
}

func TestDetectUpToDate(t *testing.T) {
	f := newFixture(t)
	st := f.currentStore(t)

	v, _, err := Detect(st, f.refs, f.prices)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !v.UpToDate() {
		t.Errorf("verdict = %+v, want up to date", v)
	}
}

func TestDetectVersionMismatch(t *testing.T) {
	f := newFixture(t)
	st := f.currentStore(t)
	if err := st.SetSchemaVersion(1); err != nil {
		t.Fatalf("set version: %v", err)
	}

	v, _, err := Detect(st, f.refs, f.prices)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !v.Schema {
		t.Error("stored version 1 not flagged as schema stale")
	}
	if !reflect.DeepEqual(v.Reference, schema.ReferenceTables()) {
		t.Errorf("reference = %v, want all tables", v.Reference)
	}
}

func TestDetectCascade(t *testing.T) {
	f := newFixture(t)
	st := f.currentStore(t)

	f.writeCSV(t, schema.TableSystem,
		"system_id,name,pos_x,pos_y,pos_z,added_id,modified\n"+
			"1,Sol,0,0,0,1,2024-05-01T12:00:00Z\n"+
			"2,Shinrarta Dezhra,55.71875,17.59375,27.15625,1,2024-05-01T12:00:00Z\n"+
			"3,Lave,75.75,48.75,70.75,1,2024-05-01T12:00:00Z\n")

	v, _, err := Detect(st, f.refs, f.prices)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if v.Schema {
		t.Error("source edit flagged as schema stale")
	}
	want := []string{
		schema.TableSystem, schema.TableStation,
		schema.TableShipVendor, schema.TableUpgradeVendor, schema.TableRareItem,
	}
	if !reflect.DeepEqual(v.Reference, want) {
		t.Errorf("reference = %v, want cascade %v", v.Reference, want)
	}
	if !v.Prices {
		t.Error("station reload must force a price re-merge")
	}
}

func TestDetectLeafChange(t *testing.T) {
	f := newFixture(t)
	st := f.currentStore(t)

	f.writeCSV(t, schema.TableAdded, "added_id,name\n1,Release 1.0\n2,Release 1.1\n")

	v, _, err := Detect(st, f.refs, f.prices)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if want := []string{schema.TableAdded}; !reflect.DeepEqual(v.Reference, want) {
		t.Errorf("reference = %v, want %v", v.Reference, want)
	}
	if v.Prices {
		t.Error("Added has no price rows, merge should not rerun")
	}
}

func TestDetectAbsentSource(t *testing.T) {
	f := newFixture(t)
	st := f.currentStore(t)

	// RareItem.csv never existed: a cached absent fingerprint reads as
	// unchanged.
	v, _, err := Detect(st, f.refs, f.prices)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !v.UpToDate() {
		t.Errorf("verdict = %+v, want up to date while source stays absent", v)
	}

	// The source appearing is a change.
	f.writeCSV(t, schema.TableRareItem,
		"rare_id,station_id,category_id,name,cost,max_allocation,illegal,suppressed\n")
	v, _, err = Detect(st, f.refs, f.prices)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if want := []string{schema.TableRareItem}; !reflect.DeepEqual(v.Reference, want) {
		t.Errorf("reference = %v, want %v after source appears", v.Reference, want)
	}
}

func TestDetectPricesOnly(t *testing.T) {
	f := newFixture(t)
	st := f.currentStore(t)

	f.writePrices(t, "@ Sol/Abraham Lincoln\n   Gold 9500 0 5L - 2024-05-01 13:00:00\n")

	v, _, err := Detect(st, f.refs, f.prices)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if v.Schema || len(v.Reference) != 0 {
		t.Errorf("verdict = %+v, want prices only", v)
	}
	if !v.Prices {
		t.Error("price file edit not detected")
	}
}
