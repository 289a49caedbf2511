package transform

import (
	"context"
	"fmt"

	"mohassil-migrator/internal/domain/loan"
	"mohassil-migrator/internal/domain/migration"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// money columns the legacy schedule may carry with a negative sign
var installmentMoney = []string{
	"principal", "principal_repaid_derived",
	"interest", "interest_repaid_derived",
	"fees", "fees_repaid_derived",
}

type installmentsTransformer struct {
	baseTransformer
}

func (t *installmentsTransformer) Transform(ctx context.Context, in Input) (migration.Outcome, error) {
	row, src := in.Row, in.Source

	for _, col := range installmentMoney {
		if !has(row, col) {
			continue
		}
		d, ok := migration.AsDecimal(row[col])
		if !ok {
			return migration.Outcome{}, fmt.Errorf("installment %v: %s is not a number: %v", src["installment_key"], col, row[col])
		}
		if d.IsNegative() {
			t.log.Info("negative amount made positive", zap.String("column", col), zap.String("value", d.String()))
			d = d.Abs()
		}
		row[col] = d
	}

	var figures [4]decimal.Decimal
	for i, col := range []string{"principal", "principal_repaid_derived", "interest", "interest_repaid_derived"} {
		d, ok := row[col].(decimal.Decimal)
		if !ok {
			return migration.Outcome{}, fmt.Errorf("installment %v: %s is missing", src["installment_key"], col)
		}
		figures[i] = d
	}
	principal, principalRepaid, interest, interestRepaid := figures[0], figures[1], figures[2], figures[3]

	var loanStatus loan.Status
	if migration.Truthy(src["loan_key"]) {
		l := t.lookup.ResolveRow(ctx, "loans", sq.Eq{"external_id": migration.AsString(src["loan_key"])}, "id", "status")
		if l != nil {
			row["loan_id"] = migration.Normalize(l["id"])
			loanStatus = loan.Status(migration.AsString(l["status"]))
		}
	}

	status := loan.InstallmentClosed
	_, withCond := src["inst_cond"]
	switch {
	case withCond && loanStatus == loan.StatusWrittenOff && codeIs(src["inst_cond"], 2):
		status = loan.InstallmentWrittenOff
	case withCond && codeIs(src["inst_status"], 8):
		status = loan.InstallmentRescheduled
	case principal.GreaterThan(principalRepaid):
		status = loan.InstallmentActive
		row["paid_by_date"] = nil
	}
	row["status"] = string(status)

	// the legacy principal figures include the interest share
	row["principal"] = principal.Sub(interest)
	row["principal_repaid_derived"] = principalRepaid.Sub(interestRepaid)
	return migration.InsertRow(row), nil
}
