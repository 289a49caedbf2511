package gormstore

import (
	"context"
	"errors"

	"mohassil-migrator/internal/domain/ledger"
	loanDomain "mohassil-migrator/internal/domain/loan"

	"gorm.io/gorm"
)

type TransactionRepository struct{ db *gorm.DB }

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) LoanIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&loanDomain.Transaction{}).
		Where("loan_id IS NOT NULL").
		Distinct("loan_id").
		Order("loan_id ASC").
		Pluck("loan_id", &ids).Error
	return ids, err
}

func (r *TransactionRepository) ListByLoan(ctx context.Context, loanID int64) ([]loanDomain.Transaction, error) {
	var out []loanDomain.Transaction
	err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *TransactionRepository) Latest(ctx context.Context, loanID int64) (*loanDomain.Transaction, error) {
	var out loanDomain.Transaction
	err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("id DESC").First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyBalances writes one replay step. fees_balance is not part of the
// replay and is left as is.
func (r *TransactionRepository) ApplyBalances(ctx context.Context, step ledger.Step) error {
	cols := map[string]any{
		"principal_balance": step.Balances.Principal,
		"interest_balance":  step.Balances.Interest,
		"penalties_balance": step.Balances.Penalties,
		"total_balance":     step.Balances.Total,
	}
	if step.ClearRepaid {
		cols["principal_repaid_derived"] = 0
		cols["interest_repaid_derived"] = 0
	}
	return r.db.WithContext(ctx).Model(&loanDomain.Transaction{}).
		Where("id = ?", step.ID).
		UpdateColumns(cols).Error
}

func (r *TransactionRepository) DeleteBySchedule(ctx context.Context, scheduleID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("repayment_schedule_id = ?", scheduleID).Delete(&loanDomain.Transaction{})
	return res.RowsAffected, res.Error
}

func (r *TransactionRepository) Create(ctx context.Context, t *loanDomain.Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}
