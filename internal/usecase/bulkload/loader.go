package bulkload

import (
	"context"
	"io"
	"time"

	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/internal/domain/uow"
	"mohassil-migrator/pkg/id"

	"go.uber.org/zap"
)

const progressEvery = 10

// Observer is told the outcome of every spreadsheet row.
type Observer interface {
	ObserveRow(migration, outcome string)
}

// Defaults are the fixed ids stamped on loaded bills.
type Defaults struct {
	OfficerID int64
	ProductID int64
	BranchID  int64
}

type Loader struct {
	uow         uow.UnitOfWork
	defaults    Defaults
	emailDomain string
	log         *zap.Logger
	observer    Observer
	now         func() time.Time
}

type Option func(*Loader)

func WithObserver(o Observer) Option { return func(l *Loader) { l.observer = o } }

func WithClock(now func() time.Time) Option { return func(l *Loader) { l.now = now } }

func NewLoader(u uow.UnitOfWork, defaults Defaults, emailDomain string, log *zap.Logger, opts ...Option) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loader{uow: u, defaults: defaults, emailDomain: emailDomain, log: log, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// rowFunc loads one data row in its own transaction. A non-empty skip reason
// means the row was left alone on purpose.
type rowFunc func(ctx context.Context, r uow.Repos, row []string) (skip string, side int, err error)

// load walks the data rows of r, one transaction per row.
func (l *Loader) load(ctx context.Context, name string, r io.Reader, prepare func(*sheet) (rowFunc, error)) (*migration.Result, error) {
	started := l.now()
	res := migration.NewResult(id.NewRunID(started), name, started)
	log := l.log.With(zap.String("loader", name), zap.String("run_id", res.RunID))

	sh, err := readSheet(r)
	if err != nil {
		return nil, err
	}
	fn, err := prepare(sh)
	if err != nil {
		return nil, err
	}
	log.Info("spreadsheet loaded", zap.Strings("header", sh.header), zap.Int("rows", len(sh.rows)))

	for i, row := range sh.rows {
		if err := ctx.Err(); err != nil {
			res.FinishedAt = l.now()
			return res, err
		}
		if blank(row) {
			continue
		}
		res.Total++

		var (
			skip string
			side int
		)
		err := l.uow.WithinTx(ctx, func(r uow.Repos) error {
			var err error
			skip, side, err = fn(ctx, r, row)
			return err
		})
		switch {
		case err != nil:
			res.AddError(i, err)
			l.observe(name, "failed")
			log.Error("row failed", zap.Int("row", i+2), zap.Strings("cells", row), zap.Error(err))
		case skip != "":
			res.AddSkip(skip)
			l.observe(name, "skipped")
			log.Warn("row skipped", zap.Int("row", i+2), zap.String("reason", skip), zap.Strings("cells", row))
		default:
			res.Inserted++
			res.SideRecords += side
			l.observe(name, "inserted")
		}
		if res.Total%progressEvery == 0 {
			log.Info("progress", zap.Int("processed", res.Total), zap.Int("rows", len(sh.rows)),
				zap.Int("inserted", res.Inserted), zap.Int("skipped", res.Skipped), zap.Int("failed", res.Failed))
		}
	}

	res.FinishedAt = l.now()
	res.Committed = res.Inserted > 0
	log.Info("load finished",
		zap.Int("total", res.Total), zap.Int("inserted", res.Inserted), zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed), zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	if len(res.SkippedByReason) > 0 {
		log.Info("skipped rows by reason", zap.Any("histogram", res.SkippedByReason))
	}
	return res, res.Err()
}

func (l *Loader) observe(name, outcome string) {
	if l.observer != nil {
		l.observer.ObserveRow(name, outcome)
	}
}
