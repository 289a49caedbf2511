package loan

import (
	"errors"
	"time"

	"mohassil-migrator/internal/domain/ledger"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("loan not found")
)

type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusClosed     Status = "closed"
	StatusWithdrawn  Status = "withdrawn"
	StatusWrittenOff Status = "written_off"
)

// Reversed reports statuses whose ledger entries are migrated as reversed.
func (s Status) Reversed() bool { return s == StatusWithdrawn || s == StatusRejected }

type InstallmentStatus string

const (
	InstallmentActive      InstallmentStatus = "active"
	InstallmentClosed      InstallmentStatus = "closed"
	InstallmentRescheduled InstallmentStatus = "rescheduled"
	InstallmentWrittenOff  InstallmentStatus = "written_off"
	InstallmentPayoff      InstallmentStatus = "payoff"
)

type Loan struct {
	ID            int64      `gorm:"primaryKey;column:id" json:"id"`
	ExternalID    *string    `gorm:"column:external_id" json:"external_id"`
	ClientID      *int64     `gorm:"column:client_id" json:"client_id"`
	BranchID      *int64     `gorm:"column:branch_id" json:"branch_id"`
	LoanOfficerID *int64     `gorm:"column:loan_officer_id" json:"loan_officer_id"`
	LoanTerm      int        `gorm:"column:loan_term" json:"loan_term"`
	Status        Status     `gorm:"column:status" json:"status"`
	CreatedAt     *time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     *time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

// Installment is one row of a loan's repayment schedule.
type Installment struct {
	ID                     int64               `gorm:"primaryKey;column:id"`
	LoanID                 int64               `gorm:"column:loan_id"`
	Installment            int                 `gorm:"column:installment"`
	Principal              decimal.NullDecimal `gorm:"column:principal"`
	PrincipalRepaidDerived decimal.NullDecimal `gorm:"column:principal_repaid_derived"`
	PrincipalWrittenOff    decimal.NullDecimal `gorm:"column:principal_written_off_derived"`
	Interest               decimal.NullDecimal `gorm:"column:interest"`
	InterestRepaidDerived  decimal.NullDecimal `gorm:"column:interest_repaid_derived"`
	InterestWrittenOff     decimal.NullDecimal `gorm:"column:interest_written_off_derived"`
	InterestWaivedDerived  decimal.NullDecimal `gorm:"column:interest_waived_derived"`
	Fees                   decimal.NullDecimal `gorm:"column:fees"`
	FeesRepaidDerived      decimal.NullDecimal `gorm:"column:fees_repaid_derived"`
	FeesWrittenOff         decimal.NullDecimal `gorm:"column:fees_written_off_derived"`
	FeesWaivedDerived      decimal.NullDecimal `gorm:"column:fees_waived_derived"`
	Penalties              decimal.NullDecimal `gorm:"column:penalties"`
	PenaltiesRepaidDerived decimal.NullDecimal `gorm:"column:penalties_repaid_derived"`
	PenaltiesWrittenOff    decimal.NullDecimal `gorm:"column:penalties_written_off_derived"`
	PenaltiesWaivedDerived decimal.NullDecimal `gorm:"column:penalties_waived_derived"`
	PaidByDate             *time.Time          `gorm:"column:paid_by_date"`
	Status                 InstallmentStatus   `gorm:"column:status"`
	IsEarlyRepayment       bool                `gorm:"column:is_early_repayment"`
}

func (Installment) TableName() string { return "loan_repayment_schedules" }

func val(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// Unpaid is the amount still owed on the installment: everything due minus
// what was repaid, written off or waived. NULL reads as zero. Both the
// selection of the next payable installment and any write path must use this.
func (i Installment) Unpaid() decimal.Decimal {
	due := val(i.Principal).Add(val(i.Interest)).Add(val(i.Fees)).Add(val(i.Penalties))
	satisfied := val(i.PrincipalRepaidDerived).Add(val(i.PrincipalWrittenOff)).
		Add(val(i.InterestRepaidDerived)).Add(val(i.InterestWrittenOff)).Add(val(i.InterestWaivedDerived)).
		Add(val(i.FeesRepaidDerived)).Add(val(i.FeesWrittenOff)).Add(val(i.FeesWaivedDerived)).
		Add(val(i.PenaltiesRepaidDerived)).Add(val(i.PenaltiesWrittenOff)).Add(val(i.PenaltiesWaivedDerived))
	return due.Sub(satisfied)
}

func (i Installment) IsUnpaid() bool { return i.Unpaid().IsPositive() }

// FirstUnpaid returns the first installment in schedule order that still owes
// money, ignoring the one with id exclude.
func FirstUnpaid(schedule []Installment, exclude int64) (Installment, bool) {
	for _, in := range schedule {
		if in.ID != exclude && in.IsUnpaid() {
			return in, true
		}
	}
	return Installment{}, false
}

// Transaction is one loan ledger entry. Ledger order is id order.
type Transaction struct {
	ID                     int64               `gorm:"primaryKey;column:id"`
	LoanID                 int64               `gorm:"column:loan_id"`
	RepaymentScheduleID    *int64              `gorm:"column:repayment_schedule_id"`
	LoanTransactionTypeID  int                 `gorm:"column:loan_transaction_type_id"`
	Amount                 decimal.NullDecimal `gorm:"column:amount"`
	Debit                  decimal.NullDecimal `gorm:"column:debit"`
	Credit                 decimal.NullDecimal `gorm:"column:credit"`
	PrincipalRepaidDerived decimal.NullDecimal `gorm:"column:principal_repaid_derived"`
	InterestRepaidDerived  decimal.NullDecimal `gorm:"column:interest_repaid_derived"`
	FeesRepaidDerived      decimal.NullDecimal `gorm:"column:fees_repaid_derived"`
	PenaltiesRepaidDerived decimal.NullDecimal `gorm:"column:penalties_repaid_derived"`
	PrincipalBalance       decimal.NullDecimal `gorm:"column:principal_balance"`
	InterestBalance        decimal.NullDecimal `gorm:"column:interest_balance"`
	FeesBalance            decimal.NullDecimal `gorm:"column:fees_balance"`
	PenaltiesBalance       decimal.NullDecimal `gorm:"column:penalties_balance"`
	TotalBalance           decimal.NullDecimal `gorm:"column:total_balance"`
	BranchID               *int64              `gorm:"column:branch_id"`
	LoanOfficerID          *int64              `gorm:"column:loan_officer_id"`
	Description            string              `gorm:"column:description"`
	SubmittedOn            *time.Time          `gorm:"column:submitted_on"`
	CreatedAt              *time.Time          `gorm:"column:created_at"`
	UpdatedAt              *time.Time          `gorm:"column:updated_at"`
}

func (Transaction) TableName() string { return "loan_transactions" }

func Money(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func (t Transaction) Balances() (principal, interest, fees, penalties, total decimal.Decimal) {
	return val(t.PrincipalBalance), val(t.InterestBalance), val(t.FeesBalance), val(t.PenaltiesBalance), val(t.TotalBalance)
}

// Entry is the view of the transaction the balance replay works on. A
// disbursement that was already settled has its repaid fields cleared; its
// opening balances are then read back from the balance columns so a second
// replay lands on the same figures.
func (t Transaction) Entry() ledger.Entry {
	e := ledger.Entry{
		ID:              t.ID,
		Type:            t.LoanTransactionTypeID,
		Amount:          val(t.Amount),
		PrincipalRepaid: val(t.PrincipalRepaidDerived),
		InterestRepaid:  val(t.InterestRepaidDerived),
		PenaltiesRepaid: val(t.PenaltiesRepaidDerived),
	}
	if t.LoanTransactionTypeID == ledger.Disbursement && t.settled() && e.PrincipalRepaid.IsZero() && e.InterestRepaid.IsZero() {
		e.PrincipalRepaid = val(t.PrincipalBalance)
		e.InterestRepaid = val(t.InterestBalance)
	}
	return e
}

func (t Transaction) settled() bool { return t.PrincipalBalance.Valid || t.InterestBalance.Valid }
