package transform

import (
	"context"

	"mohassil-migrator/internal/domain/migration"
)

const defaultProductTerm = 12

type loanProductsTransformer struct {
	baseTransformer
}

func (t *loanProductsTransformer) Transform(_ context.Context, in Input) (migration.Outcome, error) {
	row := in.Row
	row["decimals"] = 0
	row["product_type"] = "commercial"
	row["active"] = 1
	row["penalty_id"] = 3
	row["fund_id"] = 1

	for _, level := range []string{"default", "minimum", "maximum"} {
		flat := migration.DecimalOrZero(row["flat_"+level+"_interest_rate"])
		term := intOr(row[level+"_loan_term"], defaultProductTerm)
		row[level+"_interest_rate"] = FlatToDeclining(flat, term)
	}

	row["interest_rate_type"] = "year"
	row["repayment_frequency"] = 1
	row["repayment_frequency_type"] = "months"
	row["amortization_method"] = "equal_installments"
	row["interest_methodology"] = "declining_balance"
	row["loan_transaction_processing_strategy_id"] = processingStrategy(row["loan_transaction_processing_strategy_id"])
	return migration.InsertRow(row), nil
}

// processingStrategy maps the legacy strategy code: 2 becomes 24, anything
// else 23.
func processingStrategy(code any) int64 {
	if codeIs(code, 2) {
		return 24
	}
	return 23
}
