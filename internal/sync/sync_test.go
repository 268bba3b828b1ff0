package sync

import (
	"context"
	"errors"
	"os"
	"testing"

	"tdcache/internal/schema"
	"tdcache/internal/store"
)

func (f *fixture) synchronizer() *Synchronizer {
	return &Synchronizer{
		DBPath: f.dbPath,
		Refs:   f.refs,
		Prices: f.prices,
	}
}

func synchronize(t *testing.T, s *Synchronizer) (*store.Store, *Result) {
	t.Helper()
	st, res, err := s.Synchronize(context.Background())
	if err != nil {
		t.Fatalf("synchronize: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st, res
}

func TestSynchronizeFirstRun(t *testing.T) {
	f := newFixture(t)
	s := f.synchronizer()

	st, res := synchronize(t, s)
	if s.State() != Ready {
		t.Errorf("state = %v, want %v", s.State(), Ready)
	}
	if !res.Verdict.Schema {
		t.Errorf("verdict = %+v, want full rebuild on first run", res.Verdict)
	}
	if res.Merge.Inserted != 3 {
		t.Errorf("inserted = %d, want 3", res.Merge.Inserted)
	}

	version, err := st.SchemaVersion()
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != schema.CurrentVersion {
		t.Errorf("schema version = %d, want %d", version, schema.CurrentVersion)
	}

	sys, err := st.SystemByName("Sol")
	if err != nil {
		t.Fatalf("system: %v", err)
	}
	if sys.ID != 1 {
		t.Errorf("Sol id = %d, want 1", sys.ID)
	}
	item, err := st.ItemByName("Gold")
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	si, err := st.StationItemFor(6, item.ID)
	if err != nil {
		t.Fatalf("station item: %v", err)
	}
	if si.Supply.Price != 9100 {
		t.Errorf("supply price = %d, want 9100", si.Supply.Price)
	}
}

func TestSynchronizeSecondRunUpToDate(t *testing.T) {
	f := newFixture(t)

	st, _ := synchronize(t, f.synchronizer())
	st.Close()

	_, res := synchronize(t, f.synchronizer())
	if !res.Verdict.UpToDate() {
		t.Errorf("verdict = %+v, want up to date", res.Verdict)
	}
	if res.Merge != (store.MergeStats{}) {
		t.Errorf("merge stats = %+v, want none", res.Merge)
	}
}

func TestSynchronizePricesOnlyChange(t *testing.T) {
	f := newFixture(t)

	st, _ := synchronize(t, f.synchronizer())
	st.Close()

	f.writePrices(t,
		"@ Sol/Abraham Lincoln\n"+
			"   Gold 9500 0 5L - 2024-05-01 13:00:00\n"+
			"   Hydrogen Fuel 84 96 500M 12000H 2024-05-01 12:00:00\n"+
			"@ Shinrarta Dezhra/Jameson Memorial\n"+
			"   Gold 0 9100 ? 20? 2024-05-01 12:30:00\n")

	st, res := synchronize(t, f.synchronizer())
	if res.Verdict.Schema || len(res.Verdict.Reference) != 0 || !res.Verdict.Prices {
		t.Fatalf("verdict = %+v, want prices only", res.Verdict)
	}
	if res.Merge.Updated != 1 || res.Merge.StaleIgnored != 2 {
		t.Errorf("merge = %+v, want 1 updated, 2 stale", res.Merge)
	}

	item, err := st.ItemByName("Gold")
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	si, err := st.StationItemFor(5, item.ID)
	if err != nil {
		t.Fatalf("station item: %v", err)
	}
	if si.Demand.Price != 9500 {
		t.Errorf("demand price = %d, want 9500", si.Demand.Price)
	}
}

func TestSynchronizeReferenceChange(t *testing.T) {
	f := newFixture(t)

	st, _ := synchronize(t, f.synchronizer())
	st.Close()

	f.writeCSV(t, schema.TableStation,
		"station_id,system_id,name,ls_from_star,blackmarket,max_pad_size,market,shipyard,outfitting,rearm,refuel,repair,planetary,modified\n"+
			"5,1,Abraham Lincoln,496,N,L,Y,Y,Y,Y,Y,Y,N,2024-05-01T12:00:00Z\n"+
			"6,2,Jameson Memorial,0,?,L,Y,Y,Y,Y,Y,Y,N,2024-05-01T12:00:00Z\n"+
			"7,1,Daedalus,178,N,L,Y,N,Y,Y,Y,Y,N,2024-05-01T12:00:00Z\n")

	st, res := synchronize(t, f.synchronizer())
	if res.Verdict.Schema {
		t.Errorf("verdict = %+v, source edit is not schema staleness", res.Verdict)
	}
	if len(res.Verdict.Reference) == 0 || res.Verdict.Reference[0] != schema.TableStation {
		t.Errorf("reference = %v, want Station first", res.Verdict.Reference)
	}
	if !res.Verdict.Prices {
		t.Error("station reload must re-merge prices")
	}
	// Reloading Station cascaded the price rows away; the merge restores
	// them.
	if res.Merge.Inserted != 3 {
		t.Errorf("inserted = %d, want 3 restored", res.Merge.Inserted)
	}

	if _, err := st.StationByName("Sol", "Daedalus"); err != nil {
		t.Errorf("new station not loaded: %v", err)
	}
}

func TestSynchronizeVersionGate(t *testing.T) {
	f := newFixture(t)

	st, _ := synchronize(t, f.synchronizer())
	if err := st.SetSchemaVersion(1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	st.Close()

	st, res := synchronize(t, f.synchronizer())
	if !res.Verdict.Schema {
		t.Errorf("verdict = %+v, want rebuild for stored version 1", res.Verdict)
	}
	version, err := st.SchemaVersion()
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != schema.CurrentVersion {
		t.Errorf("schema version = %d, want %d", version, schema.CurrentVersion)
	}
	if _, err := st.SystemByName("Sol"); err != nil {
		t.Errorf("reference data missing after rebuild: %v", err)
	}
}

func TestSynchronizeLockContention(t *testing.T) {
	f := newFixture(t)

	release, err := acquireLock(f.dbPath)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	_, _, err = f.synchronizer().Synchronize(context.Background())
	if !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("err = %v, want ErrSyncInProgress", err)
	}
}

func TestSynchronizeLockReleased(t *testing.T) {
	f := newFixture(t)

	st, _ := synchronize(t, f.synchronizer())
	st.Close()

	if _, err := os.Stat(f.dbPath + ".lock"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file left behind: %v", err)
	}
}

func TestSynchronizeCanceled(t *testing.T) {
	f := newFixture(t)
	s := f.synchronizer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Synchronize(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if s.State() != Failed {
		t.Errorf("state = %v, want %v", s.State(), Failed)
	}
}

func TestSynchronizeMissingPricesFile(t *testing.T) {
	f := newFixture(t)
	if err := os.Remove(f.prices.Path); err != nil {
		t.Fatalf("remove prices: %v", err)
	}

	s := f.synchronizer()
	s.PruneMissing = true

	st, res := synchronize(t, s)
	if res.Merge != (store.MergeStats{}) {
		t.Errorf("merge = %+v, want none without a price source", res.Merge)
	}
	if _, err := st.SystemByName("Sol"); err != nil {
		t.Errorf("reference load failed without prices: %v", err)
	}
}
