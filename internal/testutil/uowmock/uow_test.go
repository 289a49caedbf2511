package uowmock

import (
	"context"
	"errors"
	"testing"

	"mohassil-migrator/internal/domain/loan"
	"mohassil-migrator/internal/domain/uow"
	"mohassil-migrator/internal/testutil/loanmock"
)

func TestUoW_WithinTx(t *testing.T) {
	sentinel := errors.New("deadlock")
	called := false
	m := New().WithWithinTx(func(context.Context, func(uow.Repos) error) error {
		called = true
		return sentinel
	})
	if err := m.WithinTx(context.Background(), func(uow.Repos) error { return nil }); !errors.Is(err, sentinel) {
		t.Fatalf("WithinTx: want %v, got %v", sentinel, err)
	}
	if !called {
		t.Fatal("WithinTxFn not called")
	}
}

func TestUoW_Default_Unimplemented(t *testing.T) {
	ctx := context.Background()
	m := &UoW{} // no funcs set
	if err := m.WithinTx(ctx, func(uow.Repos) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinTx default: want errUnimplemented, got %v", err)
	}
	if err := m.WithinLoanTx(ctx, 1, func(uow.Repos, *loan.Loan) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinLoanTx default: want errUnimplemented, got %v", err)
	}
	if err := m.WithinBatch(ctx, uow.BatchOptions{}, func(uow.Batch) (bool, error) { return true, nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinBatch default: want errUnimplemented, got %v", err)
	}
}

func TestBatch_RowFn(t *testing.T) {
	ctx := context.Background()
	skip := errors.New("row rolled back")
	b := &Batch{RowFn: func(context.Context, func(uow.Repos) error) error { return skip }}

	ran := false
	err := b.Row(ctx, func(uow.Repos) error {
		ran = true
		return nil
	})
	if !errors.Is(err, skip) {
		t.Fatalf("Row: want %v, got %v", skip, err)
	}
	if ran {
		t.Fatal("Row ran fn although RowFn was set")
	}
}

func TestPassthrough(t *testing.T) {
	ctx := context.Background()
	loans := &loanmock.Repo{
		GetByIDFn: func(_ context.Context, id int64) (*loan.Loan, error) {
			if id == 404 {
				return nil, loan.ErrNotFound
			}
			return &loan.Loan{ID: id}, nil
		},
	}
	var committed bool
	m := Passthrough(uow.Repos{Loans: loans}, &committed)

	var seen int64
	if err := m.WithinLoanTx(ctx, 3, func(_ uow.Repos, l *loan.Loan) error {
		seen = l.ID
		return nil
	}); err != nil {
		t.Fatalf("WithinLoanTx: unexpected err: %v", err)
	}
	if seen != 3 {
		t.Fatalf("WithinLoanTx: want loan 3, got %d", seen)
	}
	if err := m.WithinLoanTx(ctx, 404, func(uow.Repos, *loan.Loan) error { return nil }); !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("WithinLoanTx: want ErrNotFound, got %v", err)
	}

	rows := 0
	err := m.WithinBatch(ctx, uow.BatchOptions{}, func(b uow.Batch) (bool, error) {
		for i := 0; i < 2; i++ {
			if err := b.Row(ctx, func(r uow.Repos) error {
				if r.Loans != loans {
					t.Fatalf("Row: repos not forwarded")
				}
				rows++
				return nil
			}); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		t.Fatalf("WithinBatch: unexpected err: %v", err)
	}
	if rows != 2 || !committed {
		t.Fatalf("WithinBatch: want 2 rows committed, got rows=%d committed=%v", rows, committed)
	}

	_ = m.WithinBatch(ctx, uow.BatchOptions{}, func(uow.Batch) (bool, error) { return false, nil })
	if committed {
		t.Fatalf("WithinBatch: rollback reported as commit")
	}
}
