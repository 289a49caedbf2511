package gormstore

import (
	"context"
	"time"

	loanDomain "mohassil-migrator/internal/domain/loan"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InstallmentRepository struct{ db *gorm.DB }

func NewInstallmentRepository(db *gorm.DB) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

func (r *InstallmentRepository) ListByLoan(ctx context.Context, loanID int64) ([]loanDomain.Installment, error) {
	var out []loanDomain.Installment
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("installment ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *InstallmentRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&loanDomain.Installment{}).Error
}

func (r *InstallmentRepository) MarkEarlyRepayment(ctx context.Context, id int64, fee decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&loanDomain.Installment{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"fees":                fee,
			"fees_repaid_derived": fee,
			"is_early_repayment":  true,
		}).Error
}

func (r *InstallmentRepository) PayOffFrom(ctx context.Context, loanID int64, from int, paidBy *time.Time) error {
	return r.db.WithContext(ctx).Model(&loanDomain.Installment{}).
		Where("loan_id = ? AND installment >= ?", loanID, from).
		UpdateColumns(map[string]any{
			"principal_repaid_derived": gorm.Expr("principal"),
			"interest_waived_derived":  gorm.Expr("interest"),
			"paid_by_date":             paidBy,
			"status":                   loanDomain.InstallmentPayoff,
		}).Error
}
