package gormstore

import (
	"context"
	"database/sql"
	"fmt"

	"mohassil-migrator/internal/domain/store"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

var _ store.Store = (*Store)(nil)

// Store runs squirrel-built statements on the connection (or transaction)
// behind a gorm handle.
type Store struct {
	db      *gorm.DB
	dialect store.Dialect
}

func NewStore(db *gorm.DB, d store.Dialect) *Store { return &Store{db: db, dialect: d} }

func (s *Store) Dialect() store.Dialect { return s.dialect }

func (s *Store) conn(ctx context.Context) gorm.ConnPool {
	return s.db.WithContext(ctx).Statement.ConnPool
}

func (s *Store) build(q sq.Sqlizer) (string, []any, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	query, err = s.dialect.Placeholder().ReplacePlaceholders(query)
	if err != nil {
		return "", nil, fmt.Errorf("placeholders: %w", err)
	}
	return query, args, nil
}

func (s *Store) QueryValues(ctx context.Context, q sq.Sqlizer) ([]string, [][]any, error) {
	query, args, err := s.build(q)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query %q: %w", query, err)
	}
	defer rows.Close()
	return scan(rows)
}

func (s *Store) Query(ctx context.Context, q sq.Sqlizer) ([]store.Record, error) {
	cols, values, err := s.QueryValues(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]store.Record, len(values))
	for i, v := range values {
		rec := make(store.Record, len(cols))
		for j, c := range cols {
			rec[c] = v[j]
		}
		out[i] = rec
	}
	return out, nil
}

func (s *Store) QueryOne(ctx context.Context, q sq.Sqlizer) (store.Record, error) {
	recs, err := s.Query(ctx, q)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (s *Store) Exec(ctx context.Context, q sq.Sqlizer) (int64, error) {
	query, args, err := s.build(q)
	if err != nil {
		return 0, err
	}
	res, err := s.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec %q: %w", query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (s *Store) Insert(ctx context.Context, table string, values store.Record) (int64, error) {
	query, args, err := s.build(sq.Insert(table).SetMap(map[string]any(values)))
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	if s.dialect == store.SQLServer {
		var id sql.NullInt64
		query += "; SELECT CAST(SCOPE_IDENTITY() AS BIGINT)"
		if err := s.conn(ctx).QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		return id.Int64, nil
	}
	res, err := s.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert into %s: last insert id: %w", table, err)
	}
	return id, nil
}

func scan(rows *sql.Rows) ([]string, [][]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		// drivers may reuse byte buffers between rows
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}
