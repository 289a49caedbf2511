package lookupmock

import (
	"context"

	"mohassil-migrator/internal/domain/store"

	sq "github.com/Masterminds/squirrel"
)

// Lookup is a function-backed mock that satisfies transform.Lookup.
// Unset functions behave like a miss.
type Lookup struct {
	ResolveFn       func(ctx context.Context, table string, where sq.Sqlizer, column string) any
	ResolveRowFn    func(ctx context.Context, table string, where sq.Sqlizer, columns ...string) store.Record
	ResolveRowsFn   func(ctx context.Context, table string, where sq.Sqlizer, columns ...string) []store.Record
	ResolveSourceFn func(ctx context.Context, table string, where sq.Sqlizer, columns ...string) store.Record
	CountFn         func(ctx context.Context, table string, where sq.Sqlizer) int64
	ResolveClientFn func(ctx context.Context, clientKey, branchID any) any
}

func (m *Lookup) Resolve(ctx context.Context, table string, where sq.Sqlizer, column string) any {
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx, table, where, column)
	}
	return nil
}

func (m *Lookup) ResolveRow(ctx context.Context, table string, where sq.Sqlizer, columns ...string) store.Record {
	if m.ResolveRowFn != nil {
		return m.ResolveRowFn(ctx, table, where, columns...)
	}
	return nil
}

func (m *Lookup) ResolveRows(ctx context.Context, table string, where sq.Sqlizer, columns ...string) []store.Record {
	if m.ResolveRowsFn != nil {
		return m.ResolveRowsFn(ctx, table, where, columns...)
	}
	return nil
}

func (m *Lookup) ResolveSource(ctx context.Context, table string, where sq.Sqlizer, columns ...string) store.Record {
	if m.ResolveSourceFn != nil {
		return m.ResolveSourceFn(ctx, table, where, columns...)
	}
	return nil
}

func (m *Lookup) Count(ctx context.Context, table string, where sq.Sqlizer) int64 {
	if m.CountFn != nil {
		return m.CountFn(ctx, table, where)
	}
	return 0
}

func (m *Lookup) ResolveClient(ctx context.Context, clientKey, branchID any) any {
	if m.ResolveClientFn != nil {
		return m.ResolveClientFn(ctx, clientKey, branchID)
	}
	return nil
}

// Eq returns the value bound to column when where is a squirrel equality.
func Eq(where sq.Sqlizer, column string) any {
	if eq, ok := where.(sq.Eq); ok {
		return eq[column]
	}
	return nil
}
