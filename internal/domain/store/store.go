package store

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Record is one row keyed by column name.
type Record map[string]any

type Dialect string

const (
	MySQL     Dialect = "mysql"
	SQLServer Dialect = "sqlserver"
	SQLite    Dialect = "sqlite"
)

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case MySQL, SQLServer, SQLite:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported database type %q (use mysql or sqlserver)", s)
	}
}

// Placeholder is the bind-parameter style of the dialect. Statements are
// always built with '?' and rewritten just before execution.
func (d Dialect) Placeholder() sq.PlaceholderFormat {
	if d == SQLServer {
		return sq.AtP
	}
	return sq.Question
}

// Limit caps a select at n rows: TOP n on SQL Server, LIMIT n elsewhere.
func (d Dialect) Limit(b sq.SelectBuilder, n uint64) sq.SelectBuilder {
	if n == 0 {
		return b
	}
	if d == SQLServer {
		return b.Options(fmt.Sprintf("TOP %d", n))
	}
	return b.Limit(n)
}

// ForeignKeyChecks returns the session statement toggling FK enforcement, or
// "" when the dialect has no such switch.
func (d Dialect) ForeignKeyChecks(on bool) string {
	switch d {
	case MySQL:
		if on {
			return "SET FOREIGN_KEY_CHECKS=1"
		}
		return "SET FOREIGN_KEY_CHECKS=0"
	case SQLite:
		if on {
			return "PRAGMA foreign_keys = ON"
		}
		return "PRAGMA foreign_keys = OFF"
	default:
		return ""
	}
}

// Store is the relational contract shared by the source and target databases.
// Every statement is parameterised; values never reach the SQL text.
type Store interface {
	Dialect() Dialect
	// Query returns every row of q keyed by column name.
	Query(ctx context.Context, q sq.Sqlizer) ([]Record, error)
	// QueryValues returns rows positionally, together with the column names.
	QueryValues(ctx context.Context, q sq.Sqlizer) ([]string, [][]any, error)
	// QueryOne returns the first row of q, or nil when there is none.
	QueryOne(ctx context.Context, q sq.Sqlizer) (Record, error)
	// Exec runs q and returns the affected row count.
	Exec(ctx context.Context, q sq.Sqlizer) (int64, error)
	// Insert writes values into table and returns the generated id.
	Insert(ctx context.Context, table string, values Record) (int64, error)
}
