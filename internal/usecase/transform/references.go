package transform

import (
	"context"

	"mohassil-migrator/internal/domain/migration"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

// references lists the foreign keys resolved for a kind before its own rules.
type references struct {
	branch, orgBranch, client, officer, product, application bool
}

var referencesByKind = map[migration.Kind]references{
	migration.Officers:         {branch: true},
	migration.Clients:          {branch: true, orgBranch: true},
	migration.LoanApplications: {branch: true, client: true, officer: true, product: true},
	migration.Loans:            {branch: true, orgBranch: true, client: true, officer: true, product: true, application: true},
	migration.Transactions:     {branch: true, orgBranch: true, officer: true},
}

// resolveReferences fills the foreign keys of row from the legacy codes in
// src. It returns the placeholder application to create first when a loan
// points at an application that was never migrated.
func (b baseTransformer) resolveReferences(ctx context.Context, kind migration.Kind, row migration.Row, src migration.SourceRow) []migration.Dependency {
	refs := referencesByKind[kind]

	if refs.branch && migration.Truthy(src["branch_code"]) {
		if id := b.lookup.Resolve(ctx, "branches", sq.Eq{"external_id": migration.AsString(src["branch_code"])}, "id"); id != nil {
			row["branch_id"] = id
		} else {
			b.log.Warn("branch not found", zap.Any("branch_code", src["branch_code"]))
		}
	}

	if refs.orgBranch && migration.Truthy(src["org_branch_code"]) {
		if id := b.lookup.Resolve(ctx, "branches", sq.Eq{"external_id": migration.AsString(src["org_branch_code"])}, "id"); id != nil {
			row["old_branch_code"] = id
		} else {
			b.log.Warn("original branch not found", zap.Any("org_branch_code", src["org_branch_code"]))
		}
	}

	if refs.client && migration.Truthy(src["client_key"]) {
		// client codes repeat across branches: the composite key wins
		var id any
		if has(row, "branch_id") {
			id = b.lookup.ResolveClient(ctx, src["client_key"], row["branch_id"])
		}
		if id == nil {
			id = b.lookup.Resolve(ctx, "clients", sq.Eq{"external_id": migration.AsString(src["client_key"])}, "id")
		}
		if id != nil {
			row["client_id"] = id
		} else {
			b.log.Warn("client not found", zap.Any("client_key", src["client_key"]))
		}
	}

	if refs.officer && migration.Truthy(src["officer_key"]) {
		if id := b.lookup.Resolve(ctx, "users", sq.Eq{"external_id": migration.AsString(src["officer_key"])}, "id"); id != nil {
			row["loan_officer_id"] = id
			row["created_by_id"] = id
		}
	}

	if refs.product && migration.Truthy(src["loan_type_code"]) {
		if id := b.lookup.Resolve(ctx, "loan_products", sq.Eq{"external_id": migration.AsString(src["loan_type_code"])}, "id"); id != nil {
			row["loan_product_id"] = id
		}
	}

	if refs.application && migration.Truthy(src["application_key"]) {
		key := migration.AsString(src["application_key"])
		if id := b.lookup.Resolve(ctx, "loan_applications", sq.Eq{"external_id": key}, "id"); id != nil {
			row["application_id"] = id
		} else if has(row, "client_id") && has(row, "loan_product_id") {
			b.log.Info("staging placeholder application", zap.String("application_key", key), zap.Any("loan_key", src["loan_key"]))
			return []migration.Dependency{placeholderApplication(row, key)}
		}
	}
	return nil
}

// placeholderApplication stands in for an application the legacy system
// lost. Its id is copied into the loan's application_id once written.
func placeholderApplication(row migration.Row, key string) migration.Dependency {
	term := row["term"]
	if term == nil {
		term = row["loan_term"]
	}
	return migration.Dependency{
		Record: migration.Record{
			Table: "loan_applications",
			Values: migration.Row{
				"client_id":         row["client_id"],
				"loan_product_id":   row["loan_product_id"],
				"branch_id":         row["branch_id"],
				"loan_officer_id":   row["loan_officer_id"],
				"created_by_id":     row["created_by_id"],
				"amount":            row["approved_amount"],
				"term":              term,
				"status":            "approved",
				"revolving_enabled": false,
				"created_at":        row["created_at"],
				"updated_at":        row["updated_at"],
				"external_id":       key,
			},
		},
		Column: "application_id",
	}
}
