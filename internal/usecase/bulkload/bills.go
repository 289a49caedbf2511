package bulkload

import (
	"context"
	"fmt"
	"io"
	"time"

	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/internal/domain/store"
	"mohassil-migrator/internal/domain/uow"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
)

const (
	billsLoader = "bills"

	billTermDays   = 120
	billTermMonths = 4
	// strategy 3 is the revolving repayment order
	billStrategyID = 3
)

var (
	billDailyRate       = decimal.RequireFromString("0.00113")
	billDailyPenalty    = decimal.RequireFromString("0.0005")
	billFees            = decimal.NewFromInt(150)
	billDisbursementFee = decimal.NewFromInt(75)
)

// bill columns, by position
const (
	colNationalID = iota
	colApproved
	colInvoice
	colTransferDate
	colActive
)

// bill is one parsed spreadsheet row.
type bill struct {
	NationalID string
	Approved   decimal.Decimal
	Invoice    decimal.Decimal
	Transfer   time.Time
	Active     bool
}

func parseBill(row []string) (bill, error) {
	b := bill{NationalID: cell(row, colNationalID), Active: parseFlag(cell(row, colActive))}
	var err error
	if b.Approved, err = decimal.NewFromString(cell(row, colApproved)); err != nil {
		return b, fmt.Errorf("approved amount %q: %w", cell(row, colApproved), err)
	}
	if raw := cell(row, colInvoice); raw != "" {
		if b.Invoice, err = decimal.NewFromString(raw); err != nil {
			return b, fmt.Errorf("invoice amount %q: %w", raw, err)
		}
	}
	if b.Transfer, err = parseDate(cell(row, colTransferDate)); err != nil {
		return b, fmt.Errorf("transfer date: %w", err)
	}
	return b, nil
}

// lateDays counts whole days from transfer to now, capped at maturity.
func lateDays(transfer, maturity, now time.Time) int64 {
	end := now
	if !now.Before(maturity) {
		end = maturity
	}
	d := int64(end.Sub(transfer).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Bills loads revolving credit limits with their loans from an xlsx sheet
// whose columns are national id, approved amount, invoice amount, transfer
// date and active flag.
func (l *Loader) Bills(ctx context.Context, r io.Reader) (*migration.Result, error) {
	return l.load(ctx, billsLoader, r, func(*sheet) (rowFunc, error) {
		return l.loadBill, nil
	})
}

func (l *Loader) loadBill(ctx context.Context, r uow.Repos, row []string) (string, int, error) {
	b, err := parseBill(row)
	if b.NationalID == "" {
		return "empty national id", 0, nil
	}
	if err != nil {
		return "", 0, err
	}

	client, err := r.Store.QueryOne(ctx, sq.Select("id").From("clients").Where(sq.Eq{"national_id": b.NationalID}))
	if err != nil {
		return "", 0, fmt.Errorf("find client %s: %w", b.NationalID, err)
	}
	if client == nil {
		return "client not found", 0, nil
	}
	clientID := client["id"]

	limitID, err := r.Store.Insert(ctx, "revolving_credit_limits", l.creditLimit(clientID, b))
	if err != nil {
		return "", 0, err
	}
	if _, err := r.Store.Insert(ctx, "loans", l.billLoan(clientID, limitID, b)); err != nil {
		return "", 0, err
	}
	return "", 1, nil
}

func (l *Loader) creditLimit(clientID any, b bill) store.Record {
	status := "closed"
	if b.Active {
		status = "approved"
	}
	d := l.defaults
	return store.Record{
		"client_id":        clientID,
		"applied_amount":   b.Approved,
		"approved_amount":  b.Approved,
		"officer_id":       d.OfficerID,
		"created_by_id":    d.OfficerID,
		"branch_id":        d.BranchID,
		"created_at":       b.Transfer,
		"status":           status,
		"corporate_id":     0,
		"product_id":       d.ProductID,
		"currency_id":      1,
		"fund_id":          1,
		"purpose_id":       1,
		"activity_type_id": 1,
		"activity_id":      1,
		"activity_name":    "",
	}
}

func (l *Loader) billLoan(clientID any, limitID int64, b bill) store.Record {
	maturity := b.Transfer.AddDate(0, 0, billTermDays)
	interest := billDailyRate.Mul(decimal.NewFromInt(lateDays(b.Transfer, maturity, l.now())))
	penalties := billDailyPenalty.Mul(decimal.NewFromInt(billTermDays))
	d := l.defaults
	return store.Record{
		"client_id":                               clientID,
		"branch_id":                               d.BranchID,
		"created_by_id":                           d.OfficerID,
		"loan_officer_id":                         d.OfficerID,
		"created_at":                              b.Transfer,
		"revolving_enabled":                       true,
		"currency_id":                             1,
		"loan_product_id":                         d.ProductID,
		"loan_transaction_processing_strategy_id": billStrategyID,
		"fund_id":                                 1,
		"loan_purpose_id":                         1,
		"submitted_on_date":                       b.Transfer,
		"approved_on_date":                        b.Transfer,
		"submitted_by_user_id":                    d.OfficerID,
		"approved_by_user_id":                     d.OfficerID,
		"expected_maturity_date":                  maturity,
		"disbursed_on_date":                       b.Transfer,
		"approved_amount":                         b.Approved,
		"applied_amount":                          b.Approved,
		"principal":                               b.Approved,
		"interest_rate":                           billDailyRate,
		"flat_interest_rate":                      billDailyRate,
		"interest_disbursed_derived":              interest.Round(2),
		"fees_disbursed_derived":                  billFees,
		"penalties_disbursed_derived":             penalties,
		"loan_term":                               billTermMonths,
		"applied_loan_term":                       billTermMonths,
		"repayment_frequency":                     1,
		"repayment_frequency_type":                "months",
		"interest_rate_type":                      "day",
		"disbursement_charges":                    billDisbursementFee,
		"revolving_credit_id":                     limitID,
		"activity_name":                           "",
	}
}
