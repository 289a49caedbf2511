package transform

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"mohassil-migrator/internal/domain/store"
	"mohassil-migrator/internal/testutil/lookupmock"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeDB answers lookups from rows keyed by "table:col=val[,col=val]".
type fakeDB struct {
	rows   map[string]store.Record
	lists  map[string][]store.Record
	counts map[string]int64
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: map[string]store.Record{}, lists: map[string][]store.Record{}, counts: map[string]int64{}}
}

func whereKey(table string, where sq.Sqlizer) string {
	eq, ok := where.(sq.Eq)
	if !ok {
		return table
	}
	parts := make([]string, 0, len(eq))
	for k, v := range eq {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)
	return table + ":" + strings.Join(parts, ",")
}

func (f *fakeDB) lookup() *lookupmock.Lookup {
	return &lookupmock.Lookup{
		ResolveFn: func(_ context.Context, table string, where sq.Sqlizer, column string) any {
			if r, ok := f.rows[whereKey(table, where)]; ok {
				return r[column]
			}
			return nil
		},
		ResolveRowFn: func(_ context.Context, table string, where sq.Sqlizer, _ ...string) store.Record {
			return f.rows[whereKey(table, where)]
		},
		ResolveRowsFn: func(_ context.Context, table string, where sq.Sqlizer, _ ...string) []store.Record {
			return f.lists[whereKey(table, where)]
		},
		ResolveSourceFn: func(_ context.Context, table string, where sq.Sqlizer, _ ...string) store.Record {
			return f.rows[whereKey(table, where)]
		},
		CountFn: func(_ context.Context, table string, where sq.Sqlizer) int64 {
			return f.counts[whereKey(table, where)]
		},
	}
}

func (f *fakeDB) transformers() MapTransformer {
	return NewMapTransformer(f.lookup(), Options{LegacySchema: "ilts", Now: func() time.Time { return testNow }}, zap.NewNop())
}
