// Package settlement recomputes the running balances of every loan ledger by
// replaying its transactions in id order.
package settlement

import (
	"context"
	"fmt"
	"time"

	"mohassil-migrator/internal/domain/ledger"
	"mohassil-migrator/internal/domain/uow"
	"mohassil-migrator/pkg/id"

	"go.uber.org/zap"
)

// DefaultBatchSize is the number of loans settled per transaction.
const DefaultBatchSize = 100

// Error reports the loan whose replay failed. The batch holding it is rolled
// back and the run stops.
type Error struct {
	LoanID int64
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("settle loan %d: %v", e.LoanID, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Observer is told about every settled loan.
type Observer interface {
	ObserveLoan(outcome string)
}

type Engine struct {
	uow       uow.UnitOfWork
	log       *zap.Logger
	batchSize int
	observer  Observer
	now       func() time.Time
}

type Option func(*Engine)

func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

func WithObserver(o Observer) Option { return func(e *Engine) { e.observer = o } }

func NewEngine(u uow.UnitOfWork, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{uow: u, log: log, batchSize: DefaultBatchSize, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

type Summary struct {
	RunID        string    `json:"run_id"`
	Loans        int       `json:"loans"`
	Settled      int       `json:"settled"`
	Transactions int       `json:"transactions"`
	Batches      int       `json:"batches"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Run settles every loan that has transactions. Batches already committed
// stay committed when a later one fails; replaying again converges to the
// same balances.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	started := e.now()
	sum := &Summary{RunID: id.NewRunID(started), StartedAt: started}
	log := e.log.With(zap.String("run_id", sum.RunID))

	var loanIDs []int64
	if err := e.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		loanIDs, err = r.Transactions.LoanIDs(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("list loans with transactions: %w", err)
	}
	sum.Loans = len(loanIDs)
	log.Info("settling transactions", zap.Int("loans", sum.Loans), zap.Int("batch_size", e.batchSize))

	for start := 0; start < len(loanIDs); start += e.batchSize {
		end := min(start+e.batchSize, len(loanIDs))
		batch := loanIDs[start:end]

		written := 0
		err := e.uow.WithinTx(ctx, func(r uow.Repos) error {
			written = 0
			for _, loanID := range batch {
				n, err := settleLoan(ctx, r, loanID)
				if err != nil {
					return &Error{LoanID: loanID, Err: err}
				}
				written += n
			}
			return nil
		})
		if err != nil {
			e.observe("failed")
			sum.FinishedAt = e.now()
			log.Error("settlement batch rolled back", zap.Int("from", start), zap.Int("to", end), zap.Error(err))
			return sum, err
		}

		sum.Batches++
		sum.Settled += len(batch)
		sum.Transactions += written
		for range batch {
			e.observe("settled")
		}
		log.Info("settlement progress", zap.Int("settled", sum.Settled), zap.Int("loans", sum.Loans), zap.Int("transactions", sum.Transactions))
	}

	sum.FinishedAt = e.now()
	log.Info("settlement finished", zap.Int("loans", sum.Settled), zap.Int("transactions", sum.Transactions),
		zap.Duration("took", sum.FinishedAt.Sub(sum.StartedAt)))
	return sum, nil
}

// settleLoan replays one ledger and writes the balances back.
func settleLoan(ctx context.Context, r uow.Repos, loanID int64) (int, error) {
	txns, err := r.Transactions.ListByLoan(ctx, loanID)
	if err != nil {
		return 0, err
	}
	entries := make([]ledger.Entry, len(txns))
	for i, t := range txns {
		entries[i] = t.Entry()
	}
	for _, step := range ledger.Replay(entries) {
		if err := r.Transactions.ApplyBalances(ctx, step); err != nil {
			return 0, fmt.Errorf("transaction %d: %w", step.ID, err)
		}
	}
	return len(entries), nil
}

func (e *Engine) observe(outcome string) {
	if e.observer != nil {
		e.observer.ObserveLoan(outcome)
	}
}
