package loan

import (
	"context"
	"time"

	"mohassil-migrator/internal/domain/ledger"

	"github.com/shopspring/decimal"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Loan, error)
	ListByExternalIDs(ctx context.Context, externalIDs []string) ([]Loan, error)
	DecrementTerm(ctx context.Context, id int64) error
	SetStatus(ctx context.Context, id int64, s Status) error
}

type InstallmentRepository interface {
	// ListByLoan returns the schedule ordered by installment number.
	ListByLoan(ctx context.Context, loanID int64) ([]Installment, error)
	Delete(ctx context.Context, id int64) error
	// MarkEarlyRepayment books fee as both due and repaid fees and flags the
	// installment as the early repayment record.
	MarkEarlyRepayment(ctx context.Context, id int64, fee decimal.Decimal) error
	// PayOffFrom settles every installment of the loan numbered from onwards:
	// principal repaid in full, interest waived, status payoff.
	PayOffFrom(ctx context.Context, loanID int64, from int, paidBy *time.Time) error
}

type TransactionRepository interface {
	// LoanIDs lists every loan with at least one transaction.
	LoanIDs(ctx context.Context) ([]int64, error)
	// ListByLoan returns the ledger in id order.
	ListByLoan(ctx context.Context, loanID int64) ([]Transaction, error)
	// Latest returns the newest entry, or nil when the loan has none.
	Latest(ctx context.Context, loanID int64) (*Transaction, error)
	ApplyBalances(ctx context.Context, step ledger.Step) error
	DeleteBySchedule(ctx context.Context, scheduleID int64) (int64, error)
	Create(ctx context.Context, t *Transaction) error
}
