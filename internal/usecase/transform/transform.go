// Package transform turns one mapped legacy row into the target row plus the
// side records it needs. Each entity kind has its own Transformer; the driver
// picks one through MapTransformer.
package transform

import (
	"context"
	"fmt"
	"time"

	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/internal/domain/store"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

// Lookup is the read-only view of the target and legacy databases the rules
// need. A miss is nil, never an error.
type Lookup interface {
	Resolve(ctx context.Context, table string, where sq.Sqlizer, column string) any
	ResolveRow(ctx context.Context, table string, where sq.Sqlizer, columns ...string) store.Record
	ResolveRows(ctx context.Context, table string, where sq.Sqlizer, columns ...string) []store.Record
	ResolveSource(ctx context.Context, table string, where sq.Sqlizer, columns ...string) store.Record
	Count(ctx context.Context, table string, where sq.Sqlizer) int64
	ResolveClient(ctx context.Context, clientKey, branchID any) any
}

type Options struct {
	// LegacySchema prefixes the legacy reference tables, e.g. "ilts".
	LegacySchema string
	EmailDomain  string
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.EmailDomain == "" {
		o.EmailDomain = "sandah.org"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Input is one source record: the mapped target row and the raw source row.
type Input struct {
	Row    migration.Row
	Source migration.SourceRow
}

type Transformer interface {
	// Transform may modify in.Row in place; the returned outcome carries the
	// row to insert.
	Transform(ctx context.Context, in Input) (migration.Outcome, error)
}

// baseTransformer holds what every entity transformer shares.
type baseTransformer struct {
	lookup Lookup
	opts   Options
	log    *zap.Logger
}

// MapTransformer picks the transformer for a migration name.
type MapTransformer map[migration.Kind]Transformer

func NewMapTransformer(lookup Lookup, opts Options, log *zap.Logger) MapTransformer {
	if log == nil {
		log = zap.NewNop()
	}
	base := baseTransformer{lookup: lookup, opts: opts.withDefaults(), log: log}

	// register all transformers here
	return MapTransformer{
		migration.Officers:         &officersTransformer{base},
		migration.Clients:          &clientsTransformer{base},
		migration.LoanProducts:     &loanProductsTransformer{base},
		migration.LoanApplications: &loanApplicationsTransformer{base},
		migration.Loans:            &loansTransformer{base},
		migration.Installments:     &installmentsTransformer{base},
		migration.Transactions:     &transactionsTransformer{base},
	}
}

// GetTransformer returns the transformer registered for name. Names without
// entity rules get the pass-through transformer.
func (m MapTransformer) GetTransformer(name string) Transformer {
	if t, ok := m[migration.Kind(name)]; ok {
		return t
	}
	return passThrough{}
}

// passThrough inserts the mapped row unchanged.
type passThrough struct{}

func (passThrough) Transform(_ context.Context, in Input) (migration.Outcome, error) {
	return migration.InsertRow(in.Row), nil
}

func (b baseTransformer) legacyTable(name string) string {
	if b.opts.LegacySchema == "" {
		return name
	}
	return b.opts.LegacySchema + "." + name
}

func (b baseTransformer) email(local string) string {
	return fmt.Sprintf("%s@%s", local, b.opts.EmailDomain)
}

// has reports whether the row carries a non-null value for column.
func has(r store.Record, column string) bool {
	v, ok := r[column]
	return ok && v != nil
}
