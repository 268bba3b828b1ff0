package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"tdcache/internal/schema"
	"tdcache/internal/source"
	"tdcache/internal/store"
)

// State is the orchestrator's position in a synchronization run.
type State int

const (
	Idle State = iota
	Detecting
	Provisioning
	LoadingReference
	MergingPrices
	Ready
	Failed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Detecting:
		return "detecting"
	case Provisioning:
		return "provisioning"
	case LoadingReference:
		return "loading reference"
	case MergingPrices:
		return "merging prices"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Synchronizer sequences change detection, provisioning, reference reload,
// and price merge for one store. It is the single entry point external
// callers use to obtain a query-ready store handle.
type Synchronizer struct {
	DBPath string
	Refs   source.ReferenceReader
	Prices source.PriceReader

	// PruneMissing forwards the configured retention policy to the price
	// merger.
	PruneMissing bool

	// Log receives progress and per-record reports. Nil means no logging.
	Log *zap.Logger

	state State
}

// Result reports what a synchronization run did.
type Result struct {
	Verdict Verdict          `json:"verdict"`
	Merge   store.MergeStats `json:"merge"`
}

// State returns the orchestrator's current state.
func (s *Synchronizer) State() State {
	return s.state
}

// Synchronize brings the store up to date with its sources and returns a
// consistent, query-ready handle. Each unit of work (provisioning, reference
// reload, price merge) commits atomically and records its source
// fingerprints on success, so an aborted run resumes cleanly: the next
// detection pass finds the committed units already up to date. A concurrent
// run fails fast with ErrSyncInProgress. Calling again after Ready performs
// a fresh detection pass and is a fingerprint-comparison no-op when nothing
// changed.
func (s *Synchronizer) Synchronize(ctx context.Context) (*store.Store, *Result, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	release, err := acquireLock(s.DBPath)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	st, res, err := s.run(ctx, log)
	if err != nil {
		s.state = Failed
		if st != nil {
			st.Close()
		}
		return nil, nil, err
	}
	s.state = Ready
	return st, res, nil
}

func (s *Synchronizer) run(ctx context.Context, log *zap.Logger) (*store.Store, *Result, error) {
	s.state = Detecting

	var st *store.Store
	if _, err := os.Stat(s.DBPath); err == nil {
		var openErr error
		st, openErr = store.Open(s.DBPath)
		if openErr != nil {
			return nil, nil, openErr
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("stat store: %w", err)
	}

	verdict, fps, err := Detect(st, s.Refs, s.Prices)
	if err != nil {
		return st, nil, err
	}
	log.Info("change detection complete", zap.String("verdict", verdict.String()))

	res := &Result{Verdict: verdict}
	if verdict.UpToDate() {
		return st, res, nil
	}

	if verdict.Schema {
		if err := ctx.Err(); err != nil {
			return st, nil, err
		}
		s.state = Provisioning
		if st != nil {
			st.Close()
			st = nil
		}
		st, err = store.Provision(s.DBPath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("store provisioned", zap.Int("schema_version", schema.CurrentVersion))
	}

	if len(verdict.Reference) > 0 {
		if err := ctx.Err(); err != nil {
			return st, nil, err
		}
		s.state = LoadingReference
		set, err := s.Refs.ReadTables(verdict.Reference)
		if err != nil {
			return st, nil, fmt.Errorf("read reference sources: %w", err)
		}
		if err := st.LoadReference(set, verdict.Reference); err != nil {
			return st, nil, err
		}
		for _, table := range verdict.Reference {
			if err := st.SetSourceFingerprint(table, fps[table]); err != nil {
				return st, nil, err
			}
		}
		log.Info("reference tables reloaded", zap.Strings("tables", verdict.Reference))
	}

	if verdict.Prices {
		if err := ctx.Err(); err != nil {
			return st, nil, err
		}
		s.state = MergingPrices
		records, err := s.Prices.Read()
		prune := s.PruneMissing
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// No price source at all. Nothing to merge, and pruning
			// against an absent source would empty the price tables.
			records, prune = nil, false
		case err != nil:
			return st, nil, fmt.Errorf("read price source: %w", err)
		}
		stats, err := st.MergePrices(records, store.MergeOptions{
			PruneMissing: prune,
			Logger:       log,
		})
		if err != nil {
			return st, nil, err
		}
		if err := st.SetSourceFingerprint(schema.SourcePrices, fps[schema.SourcePrices]); err != nil {
			return st, nil, err
		}
		res.Merge = stats
		log.Info("prices merged",
			zap.Int("inserted", stats.Inserted),
			zap.Int("updated", stats.Updated),
			zap.Int("stale_ignored", stats.StaleIgnored),
			zap.Int("skipped", stats.Skipped),
			zap.Int("pruned", stats.Pruned))
	}

	return st, res, nil
}
