package gormstore

import (
	"context"
	"errors"
	"fmt"

	loanDomain "mohassil-migrator/internal/domain/loan"

	"gorm.io/gorm"
)

// external ids per IN (...) list
const inChunk = 500

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) GetByID(ctx context.Context, id int64) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", loanDomain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *LoanRepository) ListByExternalIDs(ctx context.Context, externalIDs []string) ([]loanDomain.Loan, error) {
	var out []loanDomain.Loan
	for start := 0; start < len(externalIDs); start += inChunk {
		end := min(start+inChunk, len(externalIDs))
		var part []loanDomain.Loan
		if err := r.db.WithContext(ctx).
			Where("external_id IN ?", externalIDs[start:end]).
			Order("id ASC").
			Find(&part).Error; err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

func (r *LoanRepository) DecrementTerm(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&loanDomain.Loan{}).
		Where("id = ?", id).
		UpdateColumn("loan_term", gorm.Expr("loan_term - 1")).Error
}

func (r *LoanRepository) SetStatus(ctx context.Context, id int64, s loanDomain.Status) error {
	return r.db.WithContext(ctx).Model(&loanDomain.Loan{}).
		Where("id = ?", id).
		UpdateColumn("status", s).Error
}
