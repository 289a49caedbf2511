// Package earlysettle restructures loans the legacy system flagged as paid off
// early: the final installment becomes a settlement fee on the first unpaid
// one, the rest of the schedule is paid off and three synthetic ledger
// entries close the loan.
package earlysettle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mohassil-migrator/internal/domain/ledger"
	"mohassil-migrator/internal/domain/loan"
	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/internal/domain/store"
	"mohassil-migrator/internal/domain/uow"
	"mohassil-migrator/pkg/id"

	sq "github.com/Masterminds/squirrel"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// legacy reschedule type marking an early payoff
const earlyPayoff = 3

const (
	descFee        = "Apply Early Settlement Fee"
	descSettlement = "Early settlement"
	descWaive      = "Waive Interest"
)

var (
	ErrNoSchedule = errors.New("loan has no installments")
	ErrNoUnpaid   = errors.New("no unpaid installment before the settlement installment")
)

// Error reports the loan whose restructuring failed and was rolled back.
type Error struct {
	LoanID int64
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("early settle loan %d: %v", e.LoanID, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Observer is told the outcome of every loan: settled, skipped or failed.
type Observer interface {
	ObserveLoan(outcome string)
}

type Engine struct {
	source       store.Store
	uow          uow.UnitOfWork
	legacySchema string
	log          *zap.Logger
	observer     Observer
	now          func() time.Time
}

type Option func(*Engine)

func WithObserver(o Observer) Option { return func(e *Engine) { e.observer = o } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(source store.Store, u uow.UnitOfWork, legacySchema string, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{source: source, uow: u, legacySchema: legacySchema, log: log, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

type Summary struct {
	RunID      string    `json:"run_id"`
	Flagged    int       `json:"flagged"`
	Loans      int       `json:"loans"`
	Settled    int       `json:"settled"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Run restructures every migrated loan the legacy system flagged as early
// settled. Each loan commits on its own; a failing loan is rolled back, the
// run carries on and the failures come back together.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	started := e.now()
	sum := &Summary{RunID: id.NewRunID(started), StartedAt: started}
	log := e.log.With(zap.String("run_id", sum.RunID))

	keys, err := e.flaggedKeys(ctx)
	if err != nil {
		return nil, err
	}
	sum.Flagged = len(keys)
	if len(keys) == 0 {
		log.Info("no loans with early settlement in source")
		sum.FinishedAt = e.now()
		return sum, nil
	}

	var loans []loan.Loan
	if err := e.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		loans, err = r.Loans.ListByExternalIDs(ctx, keys)
		return err
	}); err != nil {
		return nil, fmt.Errorf("match flagged loans: %w", err)
	}
	sum.Loans = len(loans)
	log.Info("early settling loans", zap.Int("flagged", sum.Flagged), zap.Int("matched", sum.Loans))

	var errs *multierror.Error
	for _, l := range loans {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		lg := log.With(zap.Int64("loan_id", l.ID), zap.Stringp("external_id", l.ExternalID))
		err := e.SettleLoan(ctx, l.ID)
		switch {
		case err == nil:
			sum.Settled++
			e.observe("settled")
		case errors.Is(err, ErrNoSchedule), errors.Is(err, ErrNoUnpaid):
			sum.Skipped++
			e.observe("skipped")
			lg.Warn("early settlement skipped", zap.Error(err))
		default:
			sum.Failed++
			e.observe("failed")
			lg.Error("early settlement rolled back", zap.Error(err))
			errs = multierror.Append(errs, &Error{LoanID: l.ID, Err: err})
		}
	}

	sum.FinishedAt = e.now()
	log.Info("early settlement finished",
		zap.Int("settled", sum.Settled), zap.Int("skipped", sum.Skipped), zap.Int("failed", sum.Failed),
		zap.Duration("took", sum.FinishedAt.Sub(sum.StartedAt)))
	return sum, errs.ErrorOrNil()
}

func (e *Engine) flaggedKeys(ctx context.Context) ([]string, error) {
	table := "c1_loan_info"
	if e.legacySchema != "" {
		table = e.legacySchema + "." + table
	}
	recs, err := e.source.Query(ctx, sq.Select("loan_key").From(table).Where(sq.Eq{"resc_type": earlyPayoff}))
	if err != nil {
		return nil, fmt.Errorf("fetch flagged loans: %w", err)
	}
	keys := make([]string, 0, len(recs))
	for _, rec := range recs {
		if k := migration.AsString(rec["loan_key"]); k != "" {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// SettleLoan restructures one loan inside its own transaction. ErrNoSchedule
// and ErrNoUnpaid leave the loan untouched.
func (e *Engine) SettleLoan(ctx context.Context, loanID int64) error {
	return e.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
		schedule, err := r.Installments.ListByLoan(ctx, l.ID)
		if err != nil {
			return fmt.Errorf("list installments: %w", err)
		}
		if len(schedule) == 0 {
			return ErrNoSchedule
		}
		last := schedule[len(schedule)-1]
		fee := val(last.Interest)

		if _, err := r.Transactions.DeleteBySchedule(ctx, last.ID); err != nil {
			return fmt.Errorf("delete settlement installment transactions: %w", err)
		}
		unpaid, ok := loan.FirstUnpaid(schedule, last.ID)
		if !ok {
			return ErrNoUnpaid
		}
		if err := r.Installments.MarkEarlyRepayment(ctx, unpaid.ID, fee); err != nil {
			return fmt.Errorf("mark installment %d: %w", unpaid.ID, err)
		}
		if err := r.Installments.Delete(ctx, last.ID); err != nil {
			return fmt.Errorf("delete settlement installment %d: %w", last.ID, err)
		}
		if err := r.Loans.DecrementTerm(ctx, l.ID); err != nil {
			return fmt.Errorf("decrement term: %w", err)
		}
		if err := r.Installments.PayOffFrom(ctx, l.ID, unpaid.Installment, last.PaidByDate); err != nil {
			return fmt.Errorf("pay off schedule: %w", err)
		}

		var principal, interest decimal.Decimal
		for _, in := range schedule {
			if in.ID == last.ID || in.Installment < unpaid.Installment {
				continue
			}
			principal = principal.Add(val(in.Principal))
			interest = interest.Add(val(in.Interest))
		}

		latest, err := r.Transactions.Latest(ctx, l.ID)
		if err != nil {
			return fmt.Errorf("latest transaction: %w", err)
		}
		var base closing
		if latest != nil {
			base.principal, base.interest, base.fees, base.penalties, _ = latest.Balances()
		}

		at := e.now()
		if last.PaidByDate != nil {
			at = *last.PaidByDate
		}
		for _, t := range base.entries(l, fee, principal, interest, at) {
			if err := r.Transactions.Create(ctx, t); err != nil {
				return fmt.Errorf("create %q transaction: %w", t.Description, err)
			}
		}
		return r.Loans.SetStatus(ctx, l.ID, loan.StatusClosed)
	})
}

// closing is the balance baseline the synthetic entries start from.
type closing struct {
	principal, interest, fees, penalties decimal.Decimal
}

// entries builds the fee, settlement and interest waiver transactions, in
// that order, skipping the ones with nothing to book.
func (c closing) entries(l *loan.Loan, fee, principal, interest decimal.Decimal, at time.Time) []*loan.Transaction {
	var out []*loan.Transaction
	newTxn := func(typ int, amount decimal.Decimal, desc string) *loan.Transaction {
		ts := at
		return &loan.Transaction{
			LoanID:                l.ID,
			LoanTransactionTypeID: typ,
			Amount:                loan.Money(amount),
			BranchID:              l.BranchID,
			LoanOfficerID:         l.LoanOfficerID,
			Description:           desc,
			SubmittedOn:           &ts,
			CreatedAt:             &ts,
			UpdatedAt:             &ts,
		}
	}

	if fee.IsPositive() {
		c.fees = c.fees.Add(fee)
		t := newTxn(ledger.EarlySettlementFee, fee, descFee)
		t.Debit = loan.Money(fee)
		c.book(t, c.principal.Add(c.interest).Add(c.fees).Add(c.penalties))
		out = append(out, t)
	}

	if settled := principal.Add(fee); settled.IsPositive() {
		c.principal, c.fees = decimal.Zero, decimal.Zero
		t := newTxn(ledger.EarlySettlement, settled, descSettlement)
		t.Credit = loan.Money(settled)
		t.PrincipalRepaidDerived = loan.Money(principal)
		t.FeesRepaidDerived = loan.Money(fee)
		c.book(t, c.interest.Add(c.penalties))
		out = append(out, t)
	}

	if interest.IsPositive() {
		c.principal, c.interest, c.fees = decimal.Zero, decimal.Zero, decimal.Zero
		t := newTxn(ledger.WaiveInterest, interest, descWaive)
		t.Credit = loan.Money(interest)
		t.InterestRepaidDerived = loan.Money(interest)
		c.book(t, decimal.Zero)
		out = append(out, t)
	}
	return out
}

func (c closing) book(t *loan.Transaction, total decimal.Decimal) {
	t.PrincipalBalance = loan.Money(c.principal)
	t.InterestBalance = loan.Money(c.interest)
	t.FeesBalance = loan.Money(c.fees)
	t.PenaltiesBalance = loan.Money(c.penalties)
	t.TotalBalance = loan.Money(total)
}

func val(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func (e *Engine) observe(outcome string) {
	if e.observer != nil {
		e.observer.ObserveLoan(outcome)
	}
}
