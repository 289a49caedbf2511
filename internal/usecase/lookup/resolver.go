package lookup

import (
	"context"
	"fmt"

	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/internal/domain/store"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

// Resolver finds foreign keys in the target and reference rows in the source.
// A miss or a failed query yields nil and a log line, never an error; callers
// leave the field unset.
type Resolver struct {
	target store.Store
	source store.Store
	log    *zap.Logger
}

func New(target, source store.Store, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{target: target, source: source, log: log}
}

func (r *Resolver) first(ctx context.Context, s store.Store, table string, where sq.Sqlizer, columns ...string) store.Record {
	q := s.Dialect().Limit(sq.Select(columns...).From(table).Where(where), 1)
	rec, err := s.QueryOne(ctx, q)
	if err != nil {
		r.log.Error("lookup failed", zap.String("table", table), zap.Any("where", where), zap.Error(err))
		return nil
	}
	return rec
}

// Resolve returns column of the first target row in table matching where.
func (r *Resolver) Resolve(ctx context.Context, table string, where sq.Sqlizer, column string) any {
	rec := r.first(ctx, r.target, table, where, column)
	if rec == nil || rec[column] == nil {
		r.log.Warn("lookup miss", zap.String("table", table), zap.String("column", column), zap.Any("where", where))
		return nil
	}
	return migration.Normalize(rec[column])
}

// ResolveRow returns the requested columns of the first matching target row.
func (r *Resolver) ResolveRow(ctx context.Context, table string, where sq.Sqlizer, columns ...string) store.Record {
	rec := r.first(ctx, r.target, table, where, columns...)
	if rec == nil {
		r.log.Debug("row not found", zap.String("table", table), zap.Any("where", where))
	}
	return rec
}

func (r *Resolver) ResolveRows(ctx context.Context, table string, where sq.Sqlizer, columns ...string) []store.Record {
	recs, err := r.target.Query(ctx, sq.Select(columns...).From(table).Where(where).OrderBy("id"))
	if err != nil {
		r.log.Error("lookup failed", zap.String("table", table), zap.Any("where", where), zap.Error(err))
		return nil
	}
	return recs
}

// ResolveSource reads a reference row from the legacy database.
func (r *Resolver) ResolveSource(ctx context.Context, table string, where sq.Sqlizer, columns ...string) store.Record {
	if r.source == nil {
		return nil
	}
	rec := r.first(ctx, r.source, table, where, columns...)
	if rec == nil {
		r.log.Debug("source row not found", zap.String("table", table), zap.Any("where", where))
	}
	return rec
}

func (r *Resolver) Count(ctx context.Context, table string, where sq.Sqlizer) int64 {
	rec, err := r.target.QueryOne(ctx, sq.Select("COUNT(*) AS n").From(table).Where(where))
	if err != nil || rec == nil {
		r.log.Error("count failed", zap.String("table", table), zap.Any("where", where), zap.Error(err))
		return 0
	}
	n, _ := migration.AsInt(rec["n"])
	return n
}

// ResolveClient finds a client whose external id follows the legacy
// composite convention "{branch_code}-{client_key}". The branch code is read
// from the branch row first.
func (r *Resolver) ResolveClient(ctx context.Context, clientKey, branchID any) any {
	code := r.Resolve(ctx, "branches", sq.Eq{"id": branchID}, "external_id")
	if code == nil {
		return nil
	}
	key := fmt.Sprintf("%s-%s", migration.AsString(code), migration.AsString(clientKey))
	return r.Resolve(ctx, "clients", sq.Eq{"external_id": key}, "id")
}
