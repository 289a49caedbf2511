package transform

import (
	"context"

	"mohassil-migrator/internal/domain/loan"
	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/pkg/calendar"
	"mohassil-migrator/pkg/wkb"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	applicationCharge       = 4
	applicationChargeType   = 1
	applicationChargeOption = 7
	defaultLoanPurpose      = 1
)

type loansTransformer struct {
	baseTransformer
}

func (t *loansTransformer) Transform(ctx context.Context, in Input) (migration.Outcome, error) {
	row, src := in.Row, in.Source
	out := migration.InsertRow(row)
	out.Prepend = t.resolveReferences(ctx, migration.Loans, row, src)
	hasApplication := has(row, "application_id") || len(out.Prepend) > 0

	if migration.Truthy(src["bs_div_2_code"]) {
		id := t.lookup.Resolve(ctx, "loan_activities", sq.Eq{
			"loan_activity_category_id":    migration.AsString(src["bs_div_1_code"]),
			"integration_loan_activity_id": migration.AsString(src["bs_div_2_code"]),
		}, "id")
		if id != nil {
			row["loan_activity_id"] = id
		} else {
			t.log.Warn("loan activity not found", zap.Any("category", src["bs_div_1_code"]), zap.Any("activity", src["bs_div_2_code"]))
		}
	}

	if has(row, "client_id") {
		row["is_renewed"] = t.lookup.Count(ctx, "loans", sq.Eq{"client_id": row["client_id"]}) > 0
	}

	status := loanStatus(src)
	row["status"] = string(status)
	if status != loan.StatusApproved {
		row["principal_disbursed_derived"] = row["approved_amount"]
	}

	if hasApplication {
		t.applyApplication(ctx, row, src)
	}
	if has(row, "loan_product_id") {
		t.applyProduct(ctx, row)
	}
	if has(row, "client_id") {
		t.applyClient(ctx, row)
	}

	row["loan_purpose_id"] = defaultLoanPurpose
	if disbursed, ok := migration.AsTime(row["disbursed_on_date"]); ok {
		row["first_payment_date"] = calendar.AddMonthsClamped(disbursed, 1)
	} else {
		t.log.Warn("disbursed_on_date not available, first_payment_date not set", zap.Any("loan_key", src["loan_key"]))
	}

	if charge, ok := t.applicationCharge(src); ok {
		out.Attach = append(out.Attach, charge)
	}
	if has(row, "client_id") {
		out.Attach = append(out.Attach, t.loanProfiles(ctx, row["client_id"])...)
	}
	if hasApplication {
		out.Attach = append(out.Attach, t.guarantors(ctx, src["application_key"])...)
	}
	if has(row, "latitude") && has(row, "longitude") {
		out.Attach = append(out.Attach, migration.Attachment{
			Record: migration.Record{
				Table: "locations",
				Values: migration.Row{
					"latitude":          row["latitude"],
					"longitude":         row["longitude"],
					"locationable_type": migration.LoanMorph,
					"active":            1,
					"role_id":           clientRoleID,
				},
			},
			ParentColumn: "locationable_id",
		})
	}
	return out, nil
}

// loanStatus derives the target status. A written-off condition with a fully
// paid date wins over the legacy status code.
func loanStatus(src migration.SourceRow) loan.Status {
	if codeIs(src["loan_cond"], 2) && src["fully_paid_date"] != nil {
		return loan.StatusWrittenOff
	}
	code, ok := migration.AsInt(src["loan_status"])
	if !ok {
		return loan.StatusPending
	}
	switch code {
	case 0:
		return loan.StatusSubmitted
	case 1:
		return loan.StatusActive
	case 5:
		return loan.StatusClosed
	case 6:
		return loan.StatusWithdrawn
	default:
		return loan.StatusPending
	}
}

// applyApplication copies amounts, notes, location and the people involved
// from the legacy application record.
func (t *loansTransformer) applyApplication(ctx context.Context, row migration.Row, src migration.SourceRow) {
	app := t.lookup.ResolveSource(ctx, t.legacyTable("c1_loan_application"),
		sq.Eq{"application_key": migration.AsString(src["application_key"])},
		"req_am", "req_no", "br_deputy_note", "officer_supervisor_note",
		"loan_gen_user", "loan_gen_date", "dec_user", "br_deputy_bus_location")
	if app == nil {
		return
	}

	row["applied_amount"] = migration.Normalize(app["req_am"])
	row["applied_loan_term"] = migration.Normalize(app["req_no"])
	row["approved_notes"] = migration.Normalize(app["br_deputy_note"])
	row["report"] = migration.Normalize(app["officer_supervisor_note"])
	row["created_at"] = migration.Normalize(app["loan_gen_date"])

	if migration.Truthy(app["br_deputy_bus_location"]) {
		p, err := wkb.Decode(app["br_deputy_bus_location"])
		if err != nil {
			t.log.Warn("application location not decoded", zap.Any("application_key", src["application_key"]), zap.Error(err))
		} else {
			row["latitude"], row["longitude"] = p.Lat, p.Lon
		}
	}

	if creator := t.userByName(ctx, app["loan_gen_user"]); creator != nil {
		row["created_by_id"] = creator
		row["submitted_by_user_id"] = creator
	}
	if approver := t.userByName(ctx, app["dec_user"]); approver != nil {
		row["approved_by_user_id"] = approver
	}

	// the mapped value is a legacy username, not an id
	username := migration.AsString(row["disbursed_by_user_id"])
	row["disbursed_by_user_id"] = nil
	if username != "" {
		row["disbursed_by_user_id"] = t.lookup.Resolve(ctx, "users", sq.Eq{"email": t.email(username)}, "id")
	}

	if !has(row, "application_id") {
		return
	}
	dest := t.lookup.ResolveRow(ctx, "loan_applications", sq.Eq{"id": row["application_id"]},
		"loan_product_id", "client_id", "branch_id")
	for _, col := range []string{"loan_product_id", "client_id", "branch_id"} {
		if !has(row, col) && dest != nil && dest[col] != nil {
			row[col] = migration.Normalize(dest[col])
		}
	}
}

func (t *loansTransformer) userByName(ctx context.Context, name any) any {
	if !migration.Truthy(name) {
		return nil
	}
	return t.lookup.Resolve(ctx, "users", sq.Eq{"name": migration.AsString(name)}, "id")
}

// product settings copied onto the loan, with the values used when the
// product row lacks them
var productDefaults = []struct {
	column   string
	fallback any
}{
	{"fund_id", int64(1)},
	{"repayment_frequency", int64(1)},
	{"repayment_frequency_type", "months"},
	{"interest_rate_type", "year"},
	{"interest_methodology", "declining_balance"},
	{"amortization_method", "equal_installments"},
	{"decimals", int64(0)},
	{"loan_transaction_processing_strategy_id", int64(23)},
}

func (t *loansTransformer) applyProduct(ctx context.Context, row migration.Row) {
	columns := make([]string, len(productDefaults))
	for i, d := range productDefaults {
		columns[i] = d.column
	}
	product := t.lookup.ResolveRow(ctx, "loan_products", sq.Eq{"id": row["loan_product_id"]}, columns...)
	if product == nil {
		t.log.Warn("loan product not found, using defaults", zap.Any("loan_product_id", row["loan_product_id"]))
		strategy := processingStrategy(row["loan_transaction_processing_strategy_id"])
		for _, d := range productDefaults {
			row[d.column] = d.fallback
		}
		row["loan_transaction_processing_strategy_id"] = strategy
		return
	}
	for _, d := range productDefaults {
		if v := product[d.column]; v != nil {
			row[d.column] = migration.Normalize(v)
		} else {
			row[d.column] = d.fallback
		}
	}
}

// applyClient resolves the client's wallet through its user and copies the
// business name and address from the legacy client record.
func (t *loansTransformer) applyClient(ctx context.Context, row migration.Row) {
	client := t.lookup.ResolveRow(ctx, "clients", sq.Eq{"id": row["client_id"]}, "user_id", "external_id")
	if client == nil {
		return
	}
	if client["user_id"] != nil {
		if wallet := t.lookup.Resolve(ctx, "wallets", sq.Eq{"user_id": client["user_id"]}, "id"); wallet != nil {
			row["wallet_id"] = wallet
		}
	}

	info := t.lookup.ResolveSource(ctx, t.legacyTable("c1_client_info_table"),
		sq.Eq{"client_key": migration.AsString(client["external_id"])},
		"bus_name", "bus_add_1", "bus_add_2", "bus_add_3")
	if info == nil {
		return
	}
	row["activity_name"] = migration.AsString(info["bus_name"])
	row["project_address"] = migration.JoinParts(info["bus_add_1"], info["bus_add_2"], info["bus_add_3"])
}

// applicationCharge stages the paid application fee of the loan.
func (t *loansTransformer) applicationCharge(src migration.SourceRow) (migration.Attachment, bool) {
	if src["app_charge"] == nil {
		return migration.Attachment{}, false
	}
	amount, ok := migration.AsDecimal(src["app_charge"])
	if !ok {
		t.log.Warn("invalid app_charge, charge skipped", zap.Any("app_charge", src["app_charge"]), zap.Any("loan_key", src["loan_key"]))
		return migration.Attachment{}, false
	}
	if !amount.GreaterThan(decimal.Zero) {
		return migration.Attachment{}, false
	}
	at, ok := migration.AsTime(src["loan_date"])
	if !ok {
		at = t.opts.Now()
	}
	return migration.Attachment{
		Record: migration.Record{
			Table: "loan_linked_charges",
			Values: migration.Row{
				"loan_charge_id":        applicationCharge,
				"loan_charge_type_id":   applicationChargeType,
				"loan_charge_option_id": applicationChargeOption,
				"amount":                amount,
				"amount_paid_derived":   amount,
				"calculated_amount":     amount,
				"is_paid":               true,
				"created_at":            at,
				"updated_at":            at,
			},
		},
		ParentColumn: "loan_id",
	}, true
}

// loanProfiles copies the client's profiles onto the loan.
func (t *loansTransformer) loanProfiles(ctx context.Context, clientID any) []migration.Attachment {
	profiles := t.lookup.ResolveRows(ctx, "profiles",
		sq.Eq{"profileable_type": migration.ClientMorph, "profileable_id": clientID},
		"id", "document_type_id", "document_id", "career")
	if len(profiles) == 0 {
		t.log.Warn("no client profiles found", zap.Any("client_id", clientID))
		return nil
	}
	out := make([]migration.Attachment, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, migration.Attachment{
			Record: migration.Record{
				Table: "loan_profiles",
				Values: migration.Row{
					"profile_id":       migration.Normalize(p["id"]),
					"document_type_id": migration.Normalize(p["document_type_id"]),
					"document_id":      migration.Normalize(p["document_id"]),
					"career":           migration.Normalize(p["career"]),
					"model_type":       migration.LoanMorph,
				},
			},
			ParentColumn: "model_id",
		})
	}
	return out
}

// guarantors links the application's co-applicants that exist as clients.
func (t *loansTransformer) guarantors(ctx context.Context, applicationKey any) []migration.Attachment {
	app := t.lookup.ResolveSource(ctx, t.legacyTable("c1_loan_application"),
		sq.Eq{"application_key": migration.AsString(applicationKey)},
		"co_client_key", "co2_client_key")
	if app == nil {
		return nil
	}
	var out []migration.Attachment
	for _, key := range []any{app["co_client_key"], app["co2_client_key"]} {
		if !migration.Truthy(key) {
			continue
		}
		g := t.lookup.ResolveRow(ctx, "clients", sq.Eq{"external_id": migration.AsString(key)}, "id", "created_at")
		if g == nil {
			t.log.Warn("guarantor client not found", zap.Any("client_key", key))
			continue
		}
		at, ok := migration.AsTime(g["created_at"])
		if !ok {
			at = t.opts.Now()
		}
		out = append(out, migration.Attachment{
			Record: migration.Record{
				Table: "loan_guarantors",
				Values: migration.Row{
					"model_type":   migration.LoanMorph,
					"guarantor_id": migration.Normalize(g["id"]),
					"created_at":   at,
					"updated_at":   at,
				},
			},
			ParentColumn: "model_id",
		})
	}
	return out
}
