package loanmock

import (
	"context"
	"errors"
	"testing"
	"time"

	"mohassil-migrator/internal/domain/ledger"
	domain "mohassil-migrator/internal/domain/loan"

	"github.com/shopspring/decimal"
)

func TestRepo_GetByID(t *testing.T) {
	ctx := context.Background()
	want := &domain.Loan{ID: 2}

	// Uses provided func
	called := false
	m := &Repo{
		GetByIDFn: func(gotCtx context.Context, id int64) (*domain.Loan, error) {
			called = true
			if gotCtx != ctx {
				t.Fatalf("GetByID ctx mismatch")
			}
			if id != 2 {
				t.Fatalf("GetByID id mismatch: got %d", id)
			}
			return want, nil
		},
	}
	got, err := m.GetByID(ctx, 2)
	if err != nil {
		t.Fatalf("GetByID: unexpected err: %v", err)
	}
	if got != want {
		t.Fatalf("GetByID: want %+v, got %+v", want, got)
	}
	if !called {
		t.Fatalf("GetByIDFn not called")
	}

	// Default (nil func) → context.Canceled
	m = &Repo{}
	got, err = m.GetByID(ctx, 2)
	if err != context.Canceled {
		t.Fatalf("GetByID default: want context.Canceled, got %v", err)
	}
	if got != nil {
		t.Fatalf("GetByID default: want nil loan, got %+v", got)
	}
}

func TestRepo_ListByExternalIDs(t *testing.T) {
	ctx := context.Background()
	m := &Repo{
		ListByExternalIDsFn: func(_ context.Context, ids []string) ([]domain.Loan, error) {
			if len(ids) != 2 || ids[0] != "L-1" {
				t.Fatalf("ListByExternalIDs ids mismatch: %v", ids)
			}
			return []domain.Loan{{ID: 1}, {ID: 2}}, nil
		},
	}
	got, err := m.ListByExternalIDs(ctx, []string{"L-1", "L-2"})
	if err != nil || len(got) != 2 {
		t.Fatalf("ListByExternalIDs: got %v, %v", got, err)
	}

	m = &Repo{}
	if _, err := m.ListByExternalIDs(ctx, nil); err != context.Canceled {
		t.Fatalf("ListByExternalIDs default: want context.Canceled, got %v", err)
	}
}

func TestRepo_Writes(t *testing.T) {
	ctx := context.Background()
	wantErr := errors.New("write-fail")

	var status domain.Status
	m := &Repo{
		DecrementTermFn: func(context.Context, int64) error { return wantErr },
		SetStatusFn: func(_ context.Context, id int64, s domain.Status) error {
			status = s
			return nil
		},
	}
	if err := m.DecrementTerm(ctx, 1); !errors.Is(err, wantErr) {
		t.Fatalf("DecrementTerm: want %v, got %v", wantErr, err)
	}
	if err := m.SetStatus(ctx, 1, domain.StatusClosed); err != nil || status != domain.StatusClosed {
		t.Fatalf("SetStatus: got status=%q err=%v", status, err)
	}

	// Default (nil func) → no-op, nil error
	m = &Repo{}
	if err := m.DecrementTerm(ctx, 1); err != nil {
		t.Fatalf("DecrementTerm default: want nil, got %v", err)
	}
	if err := m.SetStatus(ctx, 1, domain.StatusClosed); err != nil {
		t.Fatalf("SetStatus default: want nil, got %v", err)
	}
}

func TestInstallmentRepo(t *testing.T) {
	ctx := context.Background()
	paid := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	var (
		fee  decimal.Decimal
		from int
		when *time.Time
	)
	m := &InstallmentRepo{
		ListByLoanFn: func(_ context.Context, loanID int64) ([]domain.Installment, error) {
			return []domain.Installment{{ID: 1, LoanID: loanID, Installment: 1}}, nil
		},
		MarkEarlyRepaymentFn: func(_ context.Context, _ int64, f decimal.Decimal) error {
			fee = f
			return nil
		},
		PayOffFromFn: func(_ context.Context, _ int64, n int, p *time.Time) error {
			from, when = n, p
			return nil
		},
	}
	got, err := m.ListByLoan(ctx, 9)
	if err != nil || len(got) != 1 || got[0].LoanID != 9 {
		t.Fatalf("ListByLoan: got %+v, %v", got, err)
	}
	if err := m.MarkEarlyRepayment(ctx, 1, decimal.NewFromInt(40)); err != nil || !fee.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("MarkEarlyRepayment: fee=%s err=%v", fee, err)
	}
	if err := m.PayOffFrom(ctx, 9, 3, &paid); err != nil || from != 3 || when != &paid {
		t.Fatalf("PayOffFrom: from=%d when=%v err=%v", from, when, err)
	}
	if err := m.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete default: want nil, got %v", err)
	}

	m = &InstallmentRepo{}
	if _, err := m.ListByLoan(ctx, 9); err != context.Canceled {
		t.Fatalf("ListByLoan default: want context.Canceled, got %v", err)
	}
}

func TestTransactionRepo(t *testing.T) {
	ctx := context.Background()

	var steps []ledger.Step
	m := &TransactionRepo{
		LoanIDsFn: func(context.Context) ([]int64, error) { return []int64{1, 2}, nil },
		ApplyBalancesFn: func(_ context.Context, s ledger.Step) error {
			steps = append(steps, s)
			return nil
		},
		DeleteByScheduleFn: func(context.Context, int64) (int64, error) { return 3, nil },
	}
	ids, err := m.LoanIDs(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("LoanIDs: got %v, %v", ids, err)
	}
	if err := m.ApplyBalances(ctx, ledger.Step{ID: 5}); err != nil || len(steps) != 1 || steps[0].ID != 5 {
		t.Fatalf("ApplyBalances: steps=%+v err=%v", steps, err)
	}
	if n, err := m.DeleteBySchedule(ctx, 1); err != nil || n != 3 {
		t.Fatalf("DeleteBySchedule: n=%d err=%v", n, err)
	}

	// Defaults
	m = &TransactionRepo{}
	if _, err := m.ListByLoan(ctx, 1); err != context.Canceled {
		t.Fatalf("ListByLoan default: want context.Canceled, got %v", err)
	}
	latest, err := m.Latest(ctx, 1)
	if err != nil || latest != nil {
		t.Fatalf("Latest default: want nil, nil, got %+v, %v", latest, err)
	}
	if err := m.Create(ctx, &domain.Transaction{}); err != nil {
		t.Fatalf("Create default: want nil, got %v", err)
	}
}
