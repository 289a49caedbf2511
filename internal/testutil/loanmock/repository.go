package loanmock

import (
	"context"
	"time"

	"mohassil-migrator/internal/domain/ledger"
	domain "mohassil-migrator/internal/domain/loan"

	"github.com/shopspring/decimal"
)

var (
	_ domain.Repository            = (*Repo)(nil)
	_ domain.InstallmentRepository = (*InstallmentRepo)(nil)
	_ domain.TransactionRepository = (*TransactionRepo)(nil)
)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset reads fail with context.Canceled, unset writes are no-ops.
type Repo struct {
	GetByIDFn           func(ctx context.Context, id int64) (*domain.Loan, error)
	ListByExternalIDsFn func(ctx context.Context, externalIDs []string) ([]domain.Loan, error)
	DecrementTermFn     func(ctx context.Context, id int64) error
	SetStatusFn         func(ctx context.Context, id int64, s domain.Status) error
}

func (m *Repo) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByExternalIDs(ctx context.Context, externalIDs []string) ([]domain.Loan, error) {
	if m.ListByExternalIDsFn != nil {
		return m.ListByExternalIDsFn(ctx, externalIDs)
	}
	return nil, context.Canceled
}

func (m *Repo) DecrementTerm(ctx context.Context, id int64) error {
	if m.DecrementTermFn != nil {
		return m.DecrementTermFn(ctx, id)
	}
	return nil
}

func (m *Repo) SetStatus(ctx context.Context, id int64, s domain.Status) error {
	if m.SetStatusFn != nil {
		return m.SetStatusFn(ctx, id, s)
	}
	return nil
}

// InstallmentRepo is a function-backed mock that satisfies domain.InstallmentRepository.
type InstallmentRepo struct {
	ListByLoanFn         func(ctx context.Context, loanID int64) ([]domain.Installment, error)
	DeleteFn             func(ctx context.Context, id int64) error
	MarkEarlyRepaymentFn func(ctx context.Context, id int64, fee decimal.Decimal) error
	PayOffFromFn         func(ctx context.Context, loanID int64, from int, paidBy *time.Time) error
}

func (m *InstallmentRepo) ListByLoan(ctx context.Context, loanID int64) ([]domain.Installment, error) {
	if m.ListByLoanFn != nil {
		return m.ListByLoanFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *InstallmentRepo) Delete(ctx context.Context, id int64) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil
}

func (m *InstallmentRepo) MarkEarlyRepayment(ctx context.Context, id int64, fee decimal.Decimal) error {
	if m.MarkEarlyRepaymentFn != nil {
		return m.MarkEarlyRepaymentFn(ctx, id, fee)
	}
	return nil
}

func (m *InstallmentRepo) PayOffFrom(ctx context.Context, loanID int64, from int, paidBy *time.Time) error {
	if m.PayOffFromFn != nil {
		return m.PayOffFromFn(ctx, loanID, from, paidBy)
	}
	return nil
}

// TransactionRepo is a function-backed mock that satisfies domain.TransactionRepository.
type TransactionRepo struct {
	LoanIDsFn          func(ctx context.Context) ([]int64, error)
	ListByLoanFn       func(ctx context.Context, loanID int64) ([]domain.Transaction, error)
	LatestFn           func(ctx context.Context, loanID int64) (*domain.Transaction, error)
	ApplyBalancesFn    func(ctx context.Context, step ledger.Step) error
	DeleteByScheduleFn func(ctx context.Context, scheduleID int64) (int64, error)
	CreateFn           func(ctx context.Context, t *domain.Transaction) error
}

func (m *TransactionRepo) LoanIDs(ctx context.Context) ([]int64, error) {
	if m.LoanIDsFn != nil {
		return m.LoanIDsFn(ctx)
	}
	return nil, context.Canceled
}

func (m *TransactionRepo) ListByLoan(ctx context.Context, loanID int64) ([]domain.Transaction, error) {
	if m.ListByLoanFn != nil {
		return m.ListByLoanFn(ctx, loanID)
	}
	return nil, context.Canceled
}

// Latest defaults to "no transactions yet".
func (m *TransactionRepo) Latest(ctx context.Context, loanID int64) (*domain.Transaction, error) {
	if m.LatestFn != nil {
		return m.LatestFn(ctx, loanID)
	}
	return nil, nil
}

func (m *TransactionRepo) ApplyBalances(ctx context.Context, step ledger.Step) error {
	if m.ApplyBalancesFn != nil {
		return m.ApplyBalancesFn(ctx, step)
	}
	return nil
}

func (m *TransactionRepo) DeleteBySchedule(ctx context.Context, scheduleID int64) (int64, error) {
	if m.DeleteByScheduleFn != nil {
		return m.DeleteByScheduleFn(ctx, scheduleID)
	}
	return 0, nil
}

func (m *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, t)
	}
	return nil
}
