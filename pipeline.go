package mockphone

import (
	"context"
	"fmt"
	"github.com/atopx/mockphone/rawstore"
	"github.com/atopx/mockphone/sqlstore"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"math/rand/v2"
	"runtime"
	"time"
)

// Table is the table every run loads into.
const Table = "phone"

// Engine selects the storage engine.
type Engine string

const (
	// EngineSQLite loads through database/sql and appends to existing files.
	EngineSQLite Engine = "sqlite"
	// EngineRaw writes the file format directly and only creates new files.
	EngineRaw Engine = "raw"
)

// Options configures a run. The zero value of every field but Path
// has a usable default.
type Options struct {
	// Path is the database file to load into.
	Path string
	// Total is the number of values to generate.
	Total int64
	// Workers is the number of producers; zero means runtime.NumCPU().
	Workers int
	// Engine defaults to EngineSQLite.
	Engine Engine
	// Seed makes the generated values reproducible for a given Workers.
	// Zero picks a random seed.
	Seed uint64
	// Pragmas override sqlstore.DefaultPragmas for EngineSQLite.
	Pragmas []string
}

// Report describes a finished run.
type Report struct {
	RunID   string        `json:"run_id"`
	Engine  Engine        `json:"engine"`
	Path    string        `json:"path"`
	Workers int           `json:"workers"`
	Seed    uint64        `json:"seed"`
	Rows    int64         `json:"rows"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// String returns the one-line completion summary.
func (r *Report) String() string {
	return fmt.Sprintf("success, total count %d in %.2fs", r.Rows, r.Elapsed.Seconds())
}

// opener returns the OpenFunc for the configured engine.
func (o Options) opener() (OpenFunc, error) {
	switch o.Engine {
	case EngineSQLite:
		return func(ctx context.Context) (Sink, error) {
			return sqlstore.Open(ctx, sqlstore.Options{
				Path:       o.Path,
				Table:      Table,
				ValueWidth: MaxLen(),
				Pragmas:    o.Pragmas,
			})
		}, nil
	case EngineRaw:
		return func(ctx context.Context) (Sink, error) {
			return rawstore.Create(ctx, rawstore.Options{
				Path:       o.Path,
				Table:      Table,
				ValueWidth: MaxLen(),
			})
		}, nil
	default:
		return nil, errors.Errorf("unknown engine %q", o.Engine)
	}
}

// Run generates opts.Total values across opts.Workers producers
// and loads them all into opts.Path in a single transaction.
//
// The writer is started first and producers only start once its
// transaction is open, so a store that cannot be opened fails the run
// before any values are generated. End-of-stream is signalled only after
// every producer has returned.
func Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	if opts.Workers == 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Engine == "" {
		opts.Engine = EngineSQLite
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Uint64()
	}
	if opts.Workers < 1 || opts.Total < 0 {
		return nil, errors.Errorf("invalid run: %d values across %d workers", opts.Total, opts.Workers)
	}
	open, err := opts.opener()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := log.WithFields(log.Fields{
		"run":     runID,
		"engine":  opts.Engine,
		"path":    opts.Path,
		"workers": opts.Workers,
	})

	if opts.Engine == EngineRaw && len(opts.Pragmas) > 0 {
		logger.Warn("PRAGMAs do not apply to the raw engine; ignoring them")
	}

	quotas := Plan(opts.Total, opts.Workers)
	funnel := NewFunnel(len(quotas))

	g, gctx := errgroup.WithContext(ctx)
	ready := make(chan struct{})
	var rows int64
	g.Go(func() (err error) {
		rows, err = Consume(gctx, open, funnel.Batches(), ready)
		return err
	})

	select {
	case <-ready:
	case <-gctx.Done():
		funnel.Abort()
		return nil, errors.WithMessage(g.Wait(), "load")
	}
	logger.Infof("Store ready; generating %d values", opts.Total)

	producers, pctx := errgroup.WithContext(gctx)
	for i, quota := range quotas {
		r := rand.New(rand.NewPCG(opts.Seed, uint64(i)))
		producers.Go(func() error {
			return Produce(pctx, r, quota, funnel)
		})
	}
	if err := producers.Wait(); err != nil {
		funnel.Abort()
	} else {
		funnel.Close()
		logger.Debug("All producers finished")
	}

	if err := g.Wait(); err != nil {
		return nil, errors.WithMessage(err, "load")
	}
	if rows != opts.Total {
		return nil, errors.Errorf("committed %d rows, expected %d", rows, opts.Total)
	}

	report := &Report{
		RunID:   runID,
		Engine:  opts.Engine,
		Path:    opts.Path,
		Workers: opts.Workers,
		Seed:    opts.Seed,
		Rows:    rows,
		Elapsed: time.Since(start),
	}
	logger.WithField("rows", rows).Infof("Committed in %s", report.Elapsed)
	return report, nil
}
