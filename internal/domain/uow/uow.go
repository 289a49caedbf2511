package uow

import (
	"context"

	"mohassil-migrator/internal/domain/loan"
	"mohassil-migrator/internal/domain/store"
)

// Repos is every repository bound to one transaction.
type Repos struct {
	Loans        loan.Repository
	Installments loan.InstallmentRepository
	Transactions loan.TransactionRepository
	Store        store.Store
}

// Batch is a long-running transaction split into row-sized savepoints.
type Batch interface {
	Repos() Repos
	// Row runs fn inside a savepoint. When fn fails only its own writes are
	// undone and the batch stays usable.
	Row(ctx context.Context, fn func(r Repos) error) error
}

type BatchOptions struct {
	// DisableForeignKeys switches FK enforcement off for the batch and back
	// on afterwards, whatever the outcome.
	DisableForeignKeys bool
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// load the loan first, then pass it in
	WithinLoanTx(ctx context.Context, loanID int64, fn func(r Repos, l *loan.Loan) error) error
	// one transaction for a whole run; fn decides whether it commits
	WithinBatch(ctx context.Context, opts BatchOptions, fn func(b Batch) (commit bool, err error)) error
}
