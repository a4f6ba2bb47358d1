package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pennywise-dev/pennywise/internal/categories"
	"github.com/pennywise-dev/pennywise/internal/id"
	"github.com/pennywise-dev/pennywise/internal/model"
	"github.com/pennywise-dev/pennywise/internal/progress"
	"github.com/pennywise-dev/pennywise/internal/store"
	"github.com/pennywise-dev/pennywise/internal/tables"
)

// DefaultBatchSize is the number of transactions written per batch.
const DefaultBatchSize = 100

// ErrInvalid wraps the validation errors of a rejected import.
var ErrInvalid = errors.New("import rejected")

// Options configures an Importer.
type Options struct {
	Format               string // parser name, default "generic"
	BatchSize            int    // default DefaultBatchSize
	AutoCreateCategories bool
	Parsers              *Registry // default DefaultRegistry()
	Logger               *slog.Logger
}

// Importer writes parsed transactions into a store.
type Importer struct {
	store  *store.Store
	opts   Options
	logger *slog.Logger
}

// Result summarizes one run.
type Result struct {
	RunID      string
	Imported   int
	FirstKey   string
	Created    []string // categories created along the way
	Progress   progress.Progress
	Validation []ValidationError
}

// New returns an Importer writing to s.
func New(s *store.Store, opts Options) *Importer {
	if opts.Format == "" {
		opts.Format = "generic"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Parsers == nil {
		opts.Parsers = DefaultRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{store: s, opts: opts, logger: logger}
}

// Run imports every transaction in r. Progress is reported through report
// (which may be nil) and the final progress is stored under the run ID.
// Transactions already written stay written when a later batch fails.
func (im *Importer) Run(ctx context.Context, r io.Reader, report progress.Func) (Result, error) {
	res := Result{RunID: id.NewRunID()}
	log := im.logger.With("run", res.RunID, "format", im.opts.Format)
	tracker := progress.NewTracker(report)

	fail := func(err error) (Result, error) {
		_ = tracker.Fail(err)
		res.Progress = tracker.Current()
		if serr := im.record(ctx, res); serr != nil {
			err = errors.Join(err, serr)
		}
		log.Info("import failed", "processed", res.Progress.Processed, "total", res.Progress.Total, "err", err)
		return res, err
	}

	parser := im.opts.Parsers.Get(im.opts.Format)
	if parser == nil {
		return fail(fmt.Errorf("unknown import format %q", im.opts.Format))
	}
	txns, err := parser.Parse(r)
	if err != nil {
		return fail(fmt.Errorf("parsing: %w", err))
	}

	cats, err := categories.FromStore(ctx, im.store)
	if err != nil {
		return fail(err)
	}
	for i := range txns {
		if txns[i].Category == "" {
			txns[i].Category = categories.Uncategorized
		}
	}
	if verrs := Validate(txns, cats, im.opts.AutoCreateCategories); len(verrs) > 0 {
		res.Validation = verrs
		errs := make([]error, len(verrs))
		for i, ve := range verrs {
			errs[i] = ve
		}
		return fail(fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...)))
	}

	created, err := im.createCategories(ctx, cats, txns)
	if err != nil {
		return fail(err)
	}
	res.Created = created

	next, err := im.reserveKeys(ctx, len(txns))
	if err != nil {
		return fail(err)
	}
	if err := tracker.Start(len(txns)); err != nil {
		return fail(err)
	}
	if len(txns) > 0 {
		res.FirstKey = id.TransactionKey(next)
	}

	for start := 0; start < len(txns); start += im.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		end := min(start+im.opts.BatchSize, len(txns))
		batch := make([]store.KV[model.Transaction], 0, end-start)
		for _, txn := range txns[start:end] {
			batch = append(batch, store.KV[model.Transaction]{Key: id.TransactionKey(next), Value: txn})
			next++
		}
		if err := store.PutBatch(ctx, im.store, tables.Transactions, batch); err != nil {
			return fail(err)
		}
		res.Imported += len(batch)
		if err := tracker.Advance(len(batch)); err != nil {
			return fail(err)
		}
		log.Debug("wrote batch", "from", start, "count", len(batch))
	}

	res.Progress = tracker.Current()
	if err := im.record(ctx, res); err != nil {
		return res, err
	}
	log.Info("import complete", "imported", res.Imported, "created_categories", len(res.Created))
	return res, nil
}

func (im *Importer) record(ctx context.Context, res Result) error {
	// the run's own context may be the reason it failed
	ctx = context.WithoutCancel(ctx)
	if err := store.Put(ctx, im.store, tables.Imports, id.ImportKey(res.RunID), res.Progress); err != nil {
		return fmt.Errorf("recording import %s: %w", res.RunID, err)
	}
	return nil
}

// createCategories stores a category for every name txns use that cats
// lacks, typed after the first transaction naming it.
func (im *Importer) createCategories(ctx context.Context, cats *categories.Service, txns []model.Transaction) ([]string, error) {
	var fresh []store.KV[model.Category]
	var names []string
	for _, txn := range txns {
		c := model.Category{Name: txn.Category, Type: txn.Type}
		key, err := id.CategoryKey(c.Name)
		if err != nil {
			return nil, err
		}
		if !cats.Add(c) {
			continue
		}
		fresh = append(fresh, store.KV[model.Category]{Key: key, Value: c})
		names = append(names, c.Name)
	}
	if err := store.PutBatch(ctx, im.store, tables.Categories, fresh); err != nil {
		return nil, fmt.Errorf("creating categories: %w", err)
	}
	return names, nil
}

// reserveKeys claims n transaction sequence numbers for this run and returns
// the first. Runs sharing a store, in this process or another, get disjoint
// ranges. The highest stored key is the floor so stores written before the
// sequence existed keep their transactions.
func (im *Importer) reserveKeys(ctx context.Context, n int) (int, error) {
	if n == 0 {
		return 0, nil
	}
	existing, err := store.List[model.Transaction](ctx, im.store, tables.Transactions, id.TransactionPrefix())
	if err != nil {
		return 0, err
	}
	floor := 0
	for _, kv := range existing {
		seq, err := id.ParseTransactionKey(kv.Key)
		if err != nil {
			return 0, err
		}
		floor = max(floor, seq)
	}
	return im.store.Reserve(ctx, tables.TransactionSeq, floor, n)
}
