package gormstore

import (
	"context"
	"fmt"

	"mohassil-migrator/internal/domain/loan"
	"mohassil-migrator/internal/domain/store"
	"mohassil-migrator/internal/domain/uow"

	"gorm.io/gorm"
)

var _ uow.UnitOfWork = (*GormUoW)(nil)

type GormUoW struct {
	db      *gorm.DB
	dialect store.Dialect
}

func NewGormUoW(db *gorm.DB, d store.Dialect) *GormUoW { return &GormUoW{db: db, dialect: d} }

func (u *GormUoW) repos(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		Loans:        &LoanRepository{db: tx},
		Installments: &InstallmentRepository{db: tx},
		Transactions: &TransactionRepository{db: tx},
		Store:        &Store{db: tx, dialect: u.dialect},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(u.repos(tx))
	})
}

func (u *GormUoW) WithinLoanTx(ctx context.Context, loanID int64, fn func(r uow.Repos, l *loan.Loan) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := u.repos(tx)
		l, err := r.Loans.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(r, l)
	})
}

// WithinBatch pins one connection for the whole run so the FK switch and the
// transaction share a session.
func (u *GormUoW) WithinBatch(ctx context.Context, opts uow.BatchOptions, fn func(b uow.Batch) (bool, error)) error {
	return u.db.WithContext(ctx).Connection(func(conn *gorm.DB) (err error) {
		if opts.DisableForeignKeys {
			if off := u.dialect.ForeignKeyChecks(false); off != "" {
				if err := conn.Exec(off).Error; err != nil {
					return fmt.Errorf("disable foreign key checks: %w", err)
				}
				defer func() {
					if restoreErr := conn.Exec(u.dialect.ForeignKeyChecks(true)).Error; restoreErr != nil && err == nil {
						err = fmt.Errorf("restore foreign key checks: %w", restoreErr)
					}
				}()
			}
		}

		tx := conn.Begin()
		if tx.Error != nil {
			return tx.Error
		}
		committed := false
		defer func() {
			if !committed {
				tx.Rollback()
			}
		}()

		commit, err := fn(&gormBatch{u: u, tx: tx})
		if err != nil || !commit {
			return err
		}
		if err := tx.Commit().Error; err != nil {
			return err
		}
		committed = true
		return nil
	})
}

type gormBatch struct {
	u   *GormUoW
	tx  *gorm.DB
	seq int
}

func (b *gormBatch) Repos() uow.Repos { return b.u.repos(b.tx) }

func (b *gormBatch) Row(ctx context.Context, fn func(r uow.Repos) error) error {
	b.seq++
	name := fmt.Sprintf("row_%d", b.seq)
	if err := b.tx.SavePoint(name).Error; err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(b.u.repos(b.tx.WithContext(ctx))); err != nil {
		if rbErr := b.tx.RollbackTo(name).Error; rbErr != nil {
			return fmt.Errorf("%w (rollback to %s: %v)", err, name, rbErr)
		}
		b.release(name)
		return err
	}
	b.release(name)
	return nil
}

// release drops the savepoint; SQL Server has no such statement.
func (b *gormBatch) release(name string) {
	if b.u.dialect == store.SQLServer {
		return
	}
	b.tx.Exec("RELEASE SAVEPOINT " + name)
}
