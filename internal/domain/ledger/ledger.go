// Package ledger holds the loan transaction type codes and the running
// balance replay used by settlement.
package ledger

import "github.com/shopspring/decimal"

// Target transaction types.
const (
	Disbursement       = 1
	Repayment          = 2
	WaiveInterest      = 4
	WriteOff           = 6
	ApplyCharges       = 10
	Penalty            = 12
	EarlySettlement    = 14
	EarlySettlementFee = 15
)

// legacy transaction code -> target type
var fromLegacy = map[int64]int{
	1:  Repayment,
	3:  Disbursement,
	7:  WriteOff,
	17: ApplyCharges,
	2:  Repayment,
	4:  Disbursement,
	8:  WriteOff,
	18: ApplyCharges,
}

// FromLegacy maps a legacy code. The second result is false for codes with
// no target type; those rows are dropped.
func FromLegacy(code int64) (int, bool) {
	t, ok := fromLegacy[code]
	return t, ok
}

// IsCancellation reports whether code reverses one of 1, 3, 7 or 17.
func IsCancellation(code int64) bool {
	switch code {
	case 2, 4, 8, 18:
		return true
	}
	return false
}

// IsChargeCode reports the apply/cancel charges pair.
func IsChargeCode(code int64) bool { return code == 17 || code == 18 }

// IsDebit reports types booked as debit=amount, credit=0.
func IsDebit(typ int) bool { return typ == Disbursement || typ == ApplyCharges }

type Entry struct {
	ID              int64
	Type            int
	Amount          decimal.Decimal
	PrincipalRepaid decimal.Decimal
	InterestRepaid  decimal.Decimal
	PenaltiesRepaid decimal.Decimal
}

type Balances struct {
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Fees      decimal.Decimal
	Penalties decimal.Decimal
	Total     decimal.Decimal
}

type Step struct {
	ID       int64
	Balances Balances
	// ClearRepaid is set for increases (disbursement, charges) whose repaid
	// fields must be zeroed once balances are written.
	ClearRepaid bool
}

// Replay walks entries in order and returns the balances after each one.
// It is a pure function of the ordered log.
func Replay(entries []Entry) []Step {
	var principal, interest, penalties decimal.Decimal
	out := make([]Step, 0, len(entries))
	for _, e := range entries {
		switch e.Type {
		case ApplyCharges:
			penalties = penalties.Add(e.Amount)
		case Disbursement:
			principal = e.PrincipalRepaid
			interest = e.InterestRepaid
		case Repayment, WriteOff:
			principal = principal.Sub(e.PrincipalRepaid)
			interest = interest.Sub(e.InterestRepaid)
			penalties = penalties.Sub(e.PenaltiesRepaid)
		}
		out = append(out, Step{
			ID: e.ID,
			Balances: Balances{
				Principal: principal,
				Interest:  interest,
				Fees:      decimal.Zero,
				Penalties: penalties,
				Total:     principal.Add(interest).Add(penalties),
			},
			ClearRepaid: e.Type == Disbursement || e.Type == ApplyCharges,
		})
	}
	return out
}
