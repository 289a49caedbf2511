package transform

import (
	"context"

	"mohassil-migrator/internal/domain/migration"
)

type loanApplicationsTransformer struct {
	baseTransformer
}

func (t *loanApplicationsTransformer) Transform(ctx context.Context, in Input) (migration.Outcome, error) {
	row := in.Row
	t.resolveReferences(ctx, migration.LoanApplications, row, in.Source)

	switch {
	case codeIs(in.Source["application_status"], 1):
		row["status"] = "approved"
	case codeIs(in.Source["application_status"], 2):
		row["status"] = "rejected"
	default:
		row["status"] = "pending"
	}
	row["revolving_enabled"] = false
	return migration.InsertRow(row), nil
}
