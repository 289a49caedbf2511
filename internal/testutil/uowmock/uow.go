package uowmock

import (
	"context"
	"errors"

	"mohassil-migrator/internal/domain/loan"
	"mohassil-migrator/internal/domain/uow"
)

var (
	_ uow.UnitOfWork = (*UoW)(nil)
	_ uow.Batch      = (*Batch)(nil)
)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a uow.UnitOfWork whose methods call the matching Fn field.
// Methods without one return errUnimplemented.
type UoW struct {
	WithinTxFn     func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinLoanTxFn func(ctx context.Context, loanID int64, fn func(r uow.Repos, l *loan.Loan) error) error
	WithinBatchFn  func(ctx context.Context, opts uow.BatchOptions, fn func(b uow.Batch) (bool, error)) error
}

func New() *UoW { return &UoW{} }

// WithWithinTx sets WithinTxFn and returns m.
func (m *UoW) WithWithinTx(fn func(context.Context, func(uow.Repos) error) error) *UoW {
	m.WithinTxFn = fn
	return m
}

// Passthrough wires every method to run fn directly against repos. The loan
// handed to WithinLoanTx comes from repos.Loans.GetByID; WithinBatch reports
// the commit decision through committed when it is not nil.
func Passthrough(repos uow.Repos, committed *bool) *UoW {
	return &UoW{
		WithinTxFn: func(_ context.Context, fn func(uow.Repos) error) error {
			return fn(repos)
		},
		WithinLoanTxFn: func(ctx context.Context, loanID int64, fn func(uow.Repos, *loan.Loan) error) error {
			l, err := repos.Loans.GetByID(ctx, loanID)
			if err != nil {
				return err
			}
			return fn(repos, l)
		},
		WithinBatchFn: func(_ context.Context, _ uow.BatchOptions, fn func(uow.Batch) (bool, error)) error {
			commit, err := fn(&Batch{Repositories: repos})
			if committed != nil {
				*committed = commit && err == nil
			}
			return err
		},
	}
}

func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}
func (m *UoW) WithinLoanTx(ctx context.Context, loanID int64, fn func(r uow.Repos, l *loan.Loan) error) error {
	if m.WithinLoanTxFn != nil {
		return m.WithinLoanTxFn(ctx, loanID, fn)
	}
	return errUnimplemented
}
func (m *UoW) WithinBatch(ctx context.Context, opts uow.BatchOptions, fn func(b uow.Batch) (bool, error)) error {
	if m.WithinBatchFn != nil {
		return m.WithinBatchFn(ctx, opts, fn)
	}
	return errUnimplemented
}

// Batch hands out fixed repositories. Row calls fn straight through unless
// RowFn is set; there is no savepoint to roll back.
type Batch struct {
	Repositories uow.Repos
	RowFn        func(ctx context.Context, fn func(r uow.Repos) error) error
}

func (b *Batch) Repos() uow.Repos { return b.Repositories }

func (b *Batch) Row(ctx context.Context, fn func(r uow.Repos) error) error {
	if b.RowFn != nil {
		return b.RowFn(ctx, fn)
	}
	return fn(b.Repositories)
}
