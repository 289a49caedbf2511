package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/internal/usecase/earlysettle"
	"mohassil-migrator/internal/usecase/migrate"
	"mohassil-migrator/internal/usecase/settlement"

	"github.com/labstack/echo/v4"
)

var errUnset = errors.New("not configured")

type fakeMigrator struct {
	MigrationsFn func() []migrate.Info
	RunFn        func(ctx context.Context, name string, opts migrate.RunOptions) (*migration.Result, error)
	CleanupFn    func(ctx context.Context, name string) ([]migrate.Deleted, error)
}

func (f *fakeMigrator) Migrations() []migrate.Info {
	if f.MigrationsFn == nil {
		return nil
	}
	return f.MigrationsFn()
}

func (f *fakeMigrator) Run(ctx context.Context, name string, opts migrate.RunOptions) (*migration.Result, error) {
	if f.RunFn == nil {
		return nil, errUnset
	}
	return f.RunFn(ctx, name, opts)
}

func (f *fakeMigrator) Cleanup(ctx context.Context, name string) ([]migrate.Deleted, error) {
	if f.CleanupFn == nil {
		return nil, errUnset
	}
	return f.CleanupFn(ctx, name)
}

type settlerFunc func(ctx context.Context) (*settlement.Summary, error)

func (f settlerFunc) Run(ctx context.Context) (*settlement.Summary, error) { return f(ctx) }

type earlySettlerFunc func(ctx context.Context) (*earlysettle.Summary, error)

func (f earlySettlerFunc) Run(ctx context.Context) (*earlysettle.Summary, error) { return f(ctx) }

// fakeLock records acquisitions and fails with err when set.
type fakeLock struct {
	err      error
	names    []string
	released int
}

func (l *fakeLock) Acquire(_ context.Context, name string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.names = append(l.names, name)
	return func() { l.released++ }, nil
}

type runCall struct {
	action string
	err    error
}

type fakeRuns struct{ calls []runCall }

func (r *fakeRuns) ObserveRun(action string, err error) {
	r.calls = append(r.calls, runCall{action: action, err: err})
}

func newEchoWithValidator() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func mustJSON(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func decode(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("bad json: %v; raw=%s", err, body)
	}
}
