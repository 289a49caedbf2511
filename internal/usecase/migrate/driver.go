// Package migrate runs one mapped migration end to end: fetch the legacy
// rows, transform each one and write it with its side records inside a single
// run transaction.
package migrate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mohassil-migrator/internal/domain/mapping"
	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/internal/domain/store"
	"mohassil-migrator/internal/domain/uow"
	"mohassil-migrator/internal/usecase/lookup"
	"mohassil-migrator/internal/usecase/transform"
	"mohassil-migrator/pkg/id"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

const (
	progressEvery  = 10
	skipReportEach = 100
)

// Observer is told the outcome of every row ("inserted", "skipped",
// "failed").
type Observer interface {
	ObserveRow(migration, outcome string)
}

type Driver struct {
	source   store.Store
	target   uow.UnitOfWork
	mappings *mapping.Config
	opts     transform.Options
	log      *zap.Logger
	observer Observer
	now      func() time.Time
}

type Option func(*Driver)

func WithObserver(o Observer) Option { return func(d *Driver) { d.observer = o } }

func WithClock(now func() time.Time) Option { return func(d *Driver) { d.now = now } }

func NewDriver(source store.Store, target uow.UnitOfWork, mappings *mapping.Config, opts transform.Options, log *zap.Logger, options ...Option) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Driver{source: source, target: target, mappings: mappings, opts: opts, log: log, now: time.Now}
	for _, o := range options {
		o(d)
	}
	if opts.Now == nil {
		d.opts.Now = d.now
	}
	return d
}

type RunOptions struct {
	// Limit caps the number of source rows; 0 reads them all.
	Limit     uint64
	DisableFK bool
}

// Info describes one configured migration.
type Info struct {
	Name        string `json:"name"`
	SourceTable string `json:"source_table"`
	TargetTable string `json:"target_table"`
	Columns     int    `json:"columns"`
}

// Migrations lists the configured migrations in mapping-file order.
func (d *Driver) Migrations() []Info {
	names := d.mappings.Names()
	out := make([]Info, 0, len(names))
	for _, n := range names {
		m, _ := d.mappings.Get(n)
		out = append(out, Info{Name: m.Name, SourceTable: m.SourceTable, TargetTable: m.TargetTable, Columns: len(m.Columns)})
	}
	return out
}

func (d *Driver) migration(name string) (mapping.Migration, error) {
	m, ok := d.mappings.Get(name)
	if !ok {
		return mapping.Migration{}, fmt.Errorf("%w: %s", migration.ErrUnknownMigration, name)
	}
	return m, nil
}

// Run migrates every source row of name. Rows that fail are rolled back to
// their savepoint and reported in the result; the run commits when at least
// one row was inserted and returns migration.ErrNothingInserted otherwise.
func (d *Driver) Run(ctx context.Context, name string, opts RunOptions) (*migration.Result, error) {
	m, err := d.migration(name)
	if err != nil {
		return nil, err
	}
	started := d.now()
	res := migration.NewResult(id.NewRunID(started), name, started)
	log := d.log.With(zap.String("migration", name), zap.String("run_id", res.RunID))

	q := d.source.Dialect().Limit(sq.Select(m.SourceColumns()...).From(m.SourceTable), opts.Limit)
	_, rows, err := d.source.QueryValues(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", m.SourceTable, err)
	}
	res.Total = len(rows)
	log.Info("source rows fetched", zap.String("source_table", m.SourceTable), zap.Int("rows", len(rows)), zap.Uint64("limit", opts.Limit))

	err = d.target.WithinBatch(ctx, uow.BatchOptions{DisableForeignKeys: opts.DisableFK}, func(b uow.Batch) (bool, error) {
		resolver := lookup.New(b.Repos().Store, d.source, log)
		tr := transform.NewMapTransformer(resolver, d.opts, log).GetTransformer(name)

		for i, values := range rows {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			d.runRow(ctx, b, tr, m, i, values, res, log)
			if (i+1)%progressEvery == 0 {
				log.Info("progress", zap.Int("processed", i+1), zap.Int("total", res.Total),
					zap.Int("inserted", res.Inserted), zap.Int("skipped", res.Skipped), zap.Int("failed", res.Failed))
			}
		}
		return res.Inserted > 0, nil
	})
	res.FinishedAt = d.now()
	if err != nil {
		log.Error("migration rolled back", zap.Error(err))
		return res, err
	}

	res.Committed = res.Inserted > 0
	log.Info("migration finished",
		zap.Int("total", res.Total), zap.Int("inserted", res.Inserted), zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed), zap.Int("side_records", res.SideRecords), zap.Bool("committed", res.Committed),
		zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	if len(res.SkippedByReason) > 0 {
		log.Info("skipped rows by reason", zap.Any("histogram", res.SkippedByReason))
	}
	if !res.Committed {
		return res, migration.ErrNothingInserted
	}
	return res, nil
}

func (d *Driver) runRow(ctx context.Context, b uow.Batch, tr transform.Transformer, m mapping.Migration, i int, values []any, res *migration.Result, log *zap.Logger) {
	row, src := migration.BuildRows(m.Columns, values)
	var (
		out     migration.Outcome
		written int
	)
	err := b.Row(ctx, func(r uow.Repos) error {
		var err error
		if out, err = tr.Transform(ctx, transform.Input{Row: row, Source: src}); err != nil {
			return err
		}
		written, err = persist(ctx, r.Store, m.TargetTable, out)
		return err
	})
	if err != nil {
		res.AddError(i, err)
		d.observe(m.Name, "failed")
		log.Error("row failed", zap.Int("row", i+1), zap.Any("source_row", src), zap.Error(err))
		return
	}

	res.SideRecords += written
	switch out.Action {
	case migration.Skip:
		res.AddSkip(out.Reason)
		d.observe(m.Name, "skipped")
		log.Info("row skipped", zap.Int("row", i+1), zap.String("reason", out.Reason), zap.Int("side_records", written))
		if res.Skipped%skipReportEach == 0 {
			log.Info("skipped rows so far", zap.Int("skipped", res.Skipped), zap.Any("histogram", res.SkippedByReason))
		}
	default:
		res.Inserted++
		d.observe(m.Name, "inserted")
		log.Debug("row inserted", zap.Int("row", i+1), zap.Any("external_id", out.Row["external_id"]), zap.Int("side_records", written))
	}
}

func (d *Driver) observe(name, outcome string) {
	if d.observer != nil {
		d.observer.ObserveRow(name, outcome)
	}
}

// persist writes the dependencies, the row itself and its attachments, in
// that order. It returns how many side records were written.
func persist(ctx context.Context, s store.Store, table string, out migration.Outcome) (int, error) {
	written := 0
	for _, dep := range out.Prepend {
		depID, err := s.Insert(ctx, dep.Table, dep.Values)
		if err != nil {
			return written, fmt.Errorf("insert %s: %w", dep.Table, err)
		}
		written++
		if dep.Column != "" && out.Row != nil {
			out.Row[dep.Column] = depID
		}
		n, err := attach(ctx, s, depID, dep.Children)
		written += n
		if err != nil {
			return written, err
		}
	}
	if out.Action != migration.Insert {
		return written, nil
	}

	rowID, err := s.Insert(ctx, table, out.Row)
	if err != nil {
		return written, fmt.Errorf("insert %s: %w", table, err)
	}
	n, err := attach(ctx, s, rowID, out.Attach)
	return written + n, err
}

func attach(ctx context.Context, s store.Store, parentID int64, list []migration.Attachment) (int, error) {
	for i, a := range list {
		values := make(store.Record, len(a.Values)+1)
		for k, v := range a.Values {
			values[k] = v
		}
		values[a.ParentColumn] = parentID
		if _, err := s.Insert(ctx, a.Table, values); err != nil {
			return i, fmt.Errorf("insert %s: %w", a.Table, err)
		}
	}
	return len(list), nil
}

// Deleted is the outcome of one cleanup statement.
type Deleted struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// Cleanup removes what a previous run of name wrote, dependants first, in
// one transaction.
func (d *Driver) Cleanup(ctx context.Context, name string) ([]Deleted, error) {
	m, err := d.migration(name)
	if err != nil {
		return nil, err
	}
	stmts := cleanupPlan(migration.Kind(name), m.TargetTable)

	var out []Deleted
	err = d.target.WithinTx(ctx, func(r uow.Repos) error {
		out = out[:0]
		for _, del := range stmts {
			n, err := r.Store.Exec(ctx, del.stmt)
			if err != nil {
				return fmt.Errorf("cleanup %s: %w", del.table, err)
			}
			d.log.Info("cleanup", zap.String("migration", name), zap.String("table", del.table), zap.Int64("deleted", n))
			out = append(out, Deleted{Table: del.table, Rows: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type deletion struct {
	table string
	stmt  sq.DeleteBuilder
}

func deleteWhere(table string, where sq.Sqlizer) deletion {
	stmt := sq.Delete(table)
	if where != nil {
		stmt = stmt.Where(where)
	}
	return deletion{table: table, stmt: stmt}
}

func cleanupPlan(kind migration.Kind, target string) []deletion {
	switch kind {
	case migration.Officers:
		return []deletion{
			deleteWhere("wallets", sq.Eq{"role_id": 60}),
			deleteWhere(target, sq.Eq{"role_id": 60}),
		}
	case migration.Clients:
		return []deletion{
			deleteWhere("profiles", sq.Eq{"profileable_type": migration.ClientMorph}),
			deleteWhere("locations", sq.Eq{"locationable_type": migration.ClientMorph}),
			deleteWhere(target, nil),
			deleteWhere("wallets", sq.Eq{"role_id": 3}),
			deleteWhere("users", sq.Eq{"role_id": 3}),
		}
	case migration.Loans:
		return []deletion{
			deleteWhere("loan_profiles", sq.Eq{"model_type": migration.LoanMorph}),
			deleteWhere("locations", sq.Eq{"locationable_type": migration.LoanMorph}),
			deleteWhere("loan_guarantors", sq.Eq{"model_type": migration.LoanMorph}),
			deleteWhere("loan_linked_charges", nil),
			deleteWhere(target, nil),
		}
	default:
		return []deletion{deleteWhere(target, nil)}
	}
}

// SkipReasons returns the skip histogram sorted by count, largest first.
func SkipReasons(res *migration.Result) []string {
	reasons := make([]string, 0, len(res.SkippedByReason))
	for r := range res.SkippedByReason {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool {
		ci, cj := res.SkippedByReason[reasons[i]], res.SkippedByReason[reasons[j]]
		if ci != cj {
			return ci > cj
		}
		return reasons[i] < reasons[j]
	})
	return reasons
}
