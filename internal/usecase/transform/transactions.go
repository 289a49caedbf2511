package transform

import (
	"context"
	"fmt"
	"time"

	"mohassil-migrator/internal/domain/ledger"
	"mohassil-migrator/internal/domain/loan"
	"mohassil-migrator/internal/domain/migration"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// legacy created_at values are one hour behind the target clock
const createdAtShift = time.Hour

type transactionsTransformer struct {
	baseTransformer
}

func (t *transactionsTransformer) Transform(ctx context.Context, in Input) (migration.Outcome, error) {
	row, src := in.Row, in.Source
	t.resolveReferences(ctx, migration.Transactions, row, src)
	now := t.opts.Now()

	if migration.Truthy(src["loan_key"]) {
		l := t.lookup.ResolveRow(ctx, "loans", sq.Eq{"external_id": migration.AsString(src["loan_key"])}, "id", "status")
		if l != nil {
			row["loan_id"] = migration.Normalize(l["id"])
			status := loan.Status(migration.AsString(l["status"]))
			row["reversed"] = status.Reversed()
			if status.Reversed() {
				t.log.Info("transaction reversed with its loan", zap.Any("loan_id", row["loan_id"]), zap.String("status", string(status)))
			}
			if migration.Truthy(src["installment_key"]) {
				row["repayment_schedule_id"] = t.lookup.Resolve(ctx, "loan_repayment_schedules",
					sq.Eq{"external_id": migration.AsString(src["installment_key"])}, "id")
			}
		}
	}

	amount := migration.DecimalOrZero(row["amount"])
	interest := migration.DecimalOrZero(row["interest_repaid_derived"])
	penalties := migration.DecimalOrZero(row["penalties_repaid_derived"])

	code, coded := migration.AsInt(src["trans_act"])
	if !coded && src["trans_act"] != nil {
		t.log.Warn("transaction type is not an integer", zap.Any("trans_act", src["trans_act"]))
	}
	cancellation := coded && ledger.IsCancellation(code)

	var side []migration.Dependency
	if penalties.IsPositive() && has(row, "loan_id") {
		side = append(side, t.sideTransaction(row, now, ledger.Penalty, signed(penalties, cancellation), "debit", "penalties_repaid_derived",
			describe("Apply Penalty", cancellation)))
	}
	if coded && ledger.IsChargeCode(code) && has(row, "loan_id") && amount.IsPositive() {
		side = append(side, t.sideTransaction(row, now, ledger.Repayment, signed(amount, code == 18), "credit", "fees_repaid_derived",
			describe("Pay Charges", code == 18)))
	}

	amount, interest, penalties = t.positive("amount", amount), t.positive("interest_repaid_derived", interest), t.positive("penalties_repaid_derived", penalties)

	row["updated_at"] = now
	if created, ok := row["created_at"].(time.Time); ok {
		row["created_at"] = created.Add(createdAtShift)
	}
	if !has(row, "submitted_on") {
		row["submitted_on"] = row["created_at"]
	}

	typ, mapped := 0, false
	if coded {
		typ, mapped = ledger.FromLegacy(code)
	}
	if !mapped {
		out := migration.SkipRow(fmt.Sprintf("unmapped type %v", migration.Normalize(src["trans_act"])))
		out.Prepend = side
		return out, nil
	}

	principal := amount.Sub(interest)
	amount = amount.Add(penalties)
	if cancellation {
		amount, interest, penalties = amount.Neg(), interest.Neg(), penalties.Neg()
		principal = amount.Sub(interest)
	}
	row["amount"] = amount
	row["interest_repaid_derived"] = interest
	row["penalties_repaid_derived"] = penalties
	row["principal_repaid_derived"] = principal

	row["loan_transaction_type_id"] = typ
	if ledger.IsDebit(typ) {
		row["debit"], row["credit"] = amount, decimal.Zero
	} else {
		row["debit"], row["credit"] = decimal.Zero, amount
	}

	out := migration.InsertRow(row)
	out.Prepend = side
	return out, nil
}

// sideTransaction builds a penalty or fee transaction written next to the
// migrated one. Its timestamps are taken before the created_at shift.
func (t *transactionsTransformer) sideTransaction(row migration.Row, now time.Time, typ int, amount decimal.Decimal, side, repaidColumn, description string) migration.Dependency {
	created := row["created_at"]
	if created == nil {
		created = now
	}
	submitted := row["submitted_on"]
	if submitted == nil {
		submitted = now
	}
	return migration.Dependency{Record: migration.Record{
		Table: "loan_transactions",
		Values: migration.Row{
			"loan_id":                  row["loan_id"],
			"amount":                   amount,
			side:                       amount,
			repaidColumn:               amount,
			"loan_transaction_type_id": typ,
			"created_at":               created,
			"updated_at":               now,
			"submitted_on":             submitted,
			"branch_id":                row["branch_id"],
			"loan_officer_id":          row["loan_officer_id"],
			"description":              description,
		},
	}}
}

func (t *transactionsTransformer) positive(column string, d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		t.log.Info("negative amount made positive", zap.String("column", column), zap.String("value", d.String()))
		return d.Abs()
	}
	return d
}

func signed(d decimal.Decimal, negative bool) decimal.Decimal {
	if negative {
		return d.Neg()
	}
	return d
}

func describe(action string, cancellation bool) string {
	if cancellation {
		return "Cancel " + action
	}
	return action
}
