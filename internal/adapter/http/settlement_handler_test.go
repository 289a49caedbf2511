package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"mohassil-migrator/internal/infrastructure/cache"
	"mohassil-migrator/internal/usecase/earlysettle"
	"mohassil-migrator/internal/usecase/settlement"

	"github.com/hashicorp/go-multierror"
	"github.com/labstack/echo/v4"
)

func callSettle(t *testing.T, fn echo.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := newEchoWithValidator()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(stdhttp.MethodPost, path, nil), rec)
	if err := fn(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestSettleTransactions_Success(t *testing.T) {
	txns := settlerFunc(func(ctx context.Context) (*settlement.Summary, error) {
		return &settlement.Summary{RunID: "s-1", Loans: 250, Settled: 250, Transactions: 1900, Batches: 3}, nil
	})
	lock := &fakeLock{}
	runs := &fakeRuns{}
	h := NewSettlementHandler(txns, nil, lock, runs, nil)

	rec := callSettle(t, h.Transactions, "/settlements/transactions")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Summary settlement.Summary `json:"summary"`
		Errors  []string           `json:"errors"`
	}
	decode(t, rec.Body.Bytes(), &body)
	if body.Summary.RunID != "s-1" || body.Summary.Settled != 250 || body.Summary.Batches != 3 || len(body.Errors) != 0 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if len(lock.names) != 1 || lock.names[0] != cache.Operator || lock.released != 1 {
		t.Fatalf("lock not taken and released: %+v", lock)
	}
	if len(runs.calls) != 1 || runs.calls[0].action != "settle_transactions" {
		t.Fatalf("run not observed: %+v", runs.calls)
	}
}

func TestSettleTransactions_FailureKeepsSummary(t *testing.T) {
	txns := settlerFunc(func(ctx context.Context) (*settlement.Summary, error) {
		return &settlement.Summary{RunID: "s-2", Loans: 10, Settled: 5},
			&settlement.Error{LoanID: 6, Err: errors.New("deadlock")}
	})
	rec := callSettle(t, NewSettlementHandler(txns, nil, nil, nil, nil).Transactions, "/settlements/transactions")
	if rec.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body struct {
		Summary *settlement.Summary `json:"summary"`
		Errors  []string            `json:"errors"`
	}
	decode(t, rec.Body.Bytes(), &body)
	if body.Summary == nil || body.Summary.Settled != 5 {
		t.Fatalf("summary lost on failure: %+v", body)
	}
	if len(body.Errors) != 1 || body.Errors[0] != "settle loan 6: deadlock" {
		t.Fatalf("unexpected errors: %v", body.Errors)
	}
}

func TestSettleTransactions_NoSummary(t *testing.T) {
	txns := settlerFunc(func(ctx context.Context) (*settlement.Summary, error) {
		return nil, errors.New("list loans with transactions: timeout")
	})
	rec := callSettle(t, NewSettlementHandler(txns, nil, nil, nil, nil).Transactions, "/settlements/transactions")
	if rec.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var raw map[string]any
	decode(t, rec.Body.Bytes(), &raw)
	if _, ok := raw["summary"]; ok {
		t.Fatalf("summary must be omitted, got %v", raw)
	}
}

func TestSettleInstallments_PartialFailure(t *testing.T) {
	early := earlySettlerFunc(func(ctx context.Context) (*earlysettle.Summary, error) {
		var errs *multierror.Error
		errs = multierror.Append(errs, &earlysettle.Error{LoanID: 3, Err: errors.New("boom")})
		errs = multierror.Append(errs, &earlysettle.Error{LoanID: 9, Err: errors.New("bang")})
		return &earlysettle.Summary{RunID: "e-1", Flagged: 5, Loans: 4, Settled: 1, Skipped: 1, Failed: 2}, errs.ErrorOrNil()
	})
	runs := &fakeRuns{}
	rec := callSettle(t, NewSettlementHandler(nil, early, nil, runs, nil).Installments, "/settlements/installments")
	if rec.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body struct {
		Summary earlysettle.Summary `json:"summary"`
		Errors  []string            `json:"errors"`
	}
	decode(t, rec.Body.Bytes(), &body)
	if body.Summary.Failed != 2 || body.Summary.Settled != 1 || len(body.Errors) != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if len(runs.calls) != 1 || runs.calls[0].action != "settle_installments" || runs.calls[0].err == nil {
		t.Fatalf("run not observed: %+v", runs.calls)
	}
}

func TestSettle_Locked(t *testing.T) {
	called := false
	early := earlySettlerFunc(func(ctx context.Context) (*earlysettle.Summary, error) {
		called = true
		return &earlysettle.Summary{}, nil
	})
	lock := &fakeLock{err: cache.ErrLocked}
	rec := callSettle(t, NewSettlementHandler(nil, early, lock, nil, nil).Installments, "/settlements/installments")
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if called {
		t.Fatalf("engine ran without the lock")
	}
}
