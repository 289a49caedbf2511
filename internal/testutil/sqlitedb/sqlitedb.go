// Package sqlitedb opens in-memory sqlite databases laid out like the target
// and legacy schemas, for repository, driver and engine tests.
package sqlitedb

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LegacySchema is the attached database holding the legacy reference tables.
const LegacySchema = "ilts"

// Open returns an empty in-memory database. The pool is capped at one
// connection: every new sqlite :memory: connection is a fresh database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// OpenTarget returns a database with the target tables the migrator writes.
func OpenTarget(t testing.TB) *gorm.DB {
	t.Helper()
	db := Open(t)
	Exec(t, db, targetDDL...)
	return db
}

// OpenSource returns a database with the legacy reference tables attached
// under LegacySchema.
func OpenSource(t testing.TB) *gorm.DB {
	t.Helper()
	db := Open(t)
	Exec(t, db, "ATTACH DATABASE ':memory:' AS "+LegacySchema)
	Exec(t, db, legacyDDL...)
	return db
}

func Exec(t testing.TB, db *gorm.DB, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
}

// Count returns the number of rows in table matching where ("" for all).
func Count(t testing.TB, db *gorm.DB, table, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Table(table)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

var targetDDL = []string{
	`CREATE TABLE branches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT,
		name TEXT
	)`,
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT,
		name TEXT,
		email TEXT,
		national_id TEXT,
		branch_id INTEGER,
		gender BOOLEAN,
		role_id INTEGER,
		active BOOLEAN,
		phone TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE wallets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		role_id INTEGER,
		currency_id INTEGER,
		wallet_type TEXT,
		amount DECIMAL(18,2),
		active BOOLEAN,
		created_at DATETIME
	)`,
	`CREATE TABLE clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT,
		user_id INTEGER,
		name TEXT,
		display_name TEXT,
		third_name TEXT,
		national_id TEXT,
		branch_id INTEGER,
		old_branch_code INTEGER,
		loan_officer_id INTEGER,
		created_by_id INTEGER,
		gender BOOLEAN,
		is_guarantor BOOLEAN,
		address TEXT,
		birthplace_id INTEGER,
		latitude REAL,
		longitude REAL,
		approved_latitude REAL,
		approved_longitude REAL,
		corporate_id INTEGER,
		country_id INTEGER,
		marital_status_id INTEGER,
		qualification_id INTEGER,
		active BOOLEAN,
		status TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_type_id INTEGER,
		document_id TEXT,
		document_issued_at DATETIME,
		document_expires_at DATETIME,
		career TEXT,
		employer_address TEXT,
		profileable_type TEXT,
		profileable_id INTEGER
	)`,
	`CREATE TABLE locations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		latitude REAL,
		longitude REAL,
		locationable_type TEXT,
		locationable_id INTEGER,
		active INTEGER,
		role_id INTEGER
	)`,
	`CREATE TABLE loan_products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT,
		name TEXT,
		decimals INTEGER,
		product_type TEXT,
		active INTEGER,
		penalty_id INTEGER,
		fund_id INTEGER,
		flat_default_interest_rate DECIMAL(10,4),
		flat_minimum_interest_rate DECIMAL(10,4),
		flat_maximum_interest_rate DECIMAL(10,4),
		default_loan_term INTEGER,
		minimum_loan_term INTEGER,
		maximum_loan_term INTEGER,
		default_interest_rate DECIMAL(10,4),
		minimum_interest_rate DECIMAL(10,4),
		maximum_interest_rate DECIMAL(10,4),
		interest_rate_type TEXT,
		repayment_frequency INTEGER,
		repayment_frequency_type TEXT,
		amortization_method TEXT,
		interest_methodology TEXT,
		loan_transaction_processing_strategy_id INTEGER
	)`,
	`CREATE TABLE loan_applications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT,
		client_id INTEGER,
		loan_product_id INTEGER,
		branch_id INTEGER,
		loan_officer_id INTEGER,
		created_by_id INTEGER,
		amount DECIMAL(18,2),
		term INTEGER,
		status TEXT,
		revolving_enabled BOOLEAN,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE loan_activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		loan_activity_category_id TEXT,
		integration_loan_activity_id TEXT,
		name TEXT
	)`,
	`CREATE TABLE loans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT,
		client_id INTEGER,
		branch_id INTEGER,
		old_branch_code INTEGER,
		loan_officer_id INTEGER,
		created_by_id INTEGER,
		loan_product_id INTEGER,
		application_id INTEGER,
		loan_activity_id INTEGER,
		revolving_credit_id INTEGER,
		wallet_id INTEGER,
		currency_id INTEGER,
		fund_id INTEGER,
		loan_purpose_id INTEGER,
		is_renewed BOOLEAN,
		revolving_enabled BOOLEAN,
		status TEXT,
		applied_amount DECIMAL(18,2),
		approved_amount DECIMAL(18,2),
		principal DECIMAL(18,2),
		principal_disbursed_derived DECIMAL(18,2),
		interest_disbursed_derived DECIMAL(18,2),
		fees_disbursed_derived DECIMAL(18,2),
		penalties_disbursed_derived DECIMAL(18,2),
		disbursement_charges DECIMAL(18,2),
		interest_rate DECIMAL(10,5),
		flat_interest_rate DECIMAL(10,5),
		applied_loan_term INTEGER,
		loan_term INTEGER,
		approved_notes TEXT,
		report TEXT,
		latitude REAL,
		longitude REAL,
		submitted_by_user_id INTEGER,
		approved_by_user_id INTEGER,
		disbursed_by_user_id INTEGER,
		repayment_frequency INTEGER,
		repayment_frequency_type TEXT,
		interest_rate_type TEXT,
		interest_methodology TEXT,
		amortization_method TEXT,
		decimals INTEGER,
		loan_transaction_processing_strategy_id INTEGER,
		activity_name TEXT,
		project_address TEXT,
		submitted_on_date DATETIME,
		approved_on_date DATETIME,
		disbursed_on_date DATETIME,
		first_payment_date DATETIME,
		expected_maturity_date DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE loan_repayment_schedules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT,
		loan_id INTEGER,
		installment INTEGER,
		due_date DATETIME,
		principal DECIMAL(18,2),
		principal_repaid_derived DECIMAL(18,2),
		principal_written_off_derived DECIMAL(18,2),
		interest DECIMAL(18,2),
		interest_repaid_derived DECIMAL(18,2),
		interest_written_off_derived DECIMAL(18,2),
		interest_waived_derived DECIMAL(18,2),
		fees DECIMAL(18,2),
		fees_repaid_derived DECIMAL(18,2),
		fees_written_off_derived DECIMAL(18,2),
		fees_waived_derived DECIMAL(18,2),
		penalties DECIMAL(18,2),
		penalties_repaid_derived DECIMAL(18,2),
		penalties_written_off_derived DECIMAL(18,2),
		penalties_waived_derived DECIMAL(18,2),
		paid_by_date DATETIME,
		status TEXT,
		is_early_repayment BOOLEAN DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE loan_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT,
		loan_id INTEGER,
		repayment_schedule_id INTEGER,
		loan_transaction_type_id INTEGER,
		amount DECIMAL(18,2),
		debit DECIMAL(18,2),
		credit DECIMAL(18,2),
		principal_repaid_derived DECIMAL(18,2),
		interest_repaid_derived DECIMAL(18,2),
		fees_repaid_derived DECIMAL(18,2),
		penalties_repaid_derived DECIMAL(18,2),
		principal_balance DECIMAL(18,2),
		interest_balance DECIMAL(18,2),
		fees_balance DECIMAL(18,2),
		penalties_balance DECIMAL(18,2),
		total_balance DECIMAL(18,2),
		reversed BOOLEAN,
		branch_id INTEGER,
		old_branch_code INTEGER,
		loan_officer_id INTEGER,
		created_by_id INTEGER,
		description TEXT,
		submitted_on DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE loan_linked_charges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		loan_id INTEGER,
		loan_charge_id INTEGER,
		loan_charge_type_id INTEGER,
		loan_charge_option_id INTEGER,
		amount DECIMAL(18,2),
		amount_paid_derived DECIMAL(18,2),
		calculated_amount DECIMAL(18,2),
		is_paid BOOLEAN,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE loan_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id INTEGER,
		document_type_id INTEGER,
		document_id TEXT,
		career TEXT,
		model_type TEXT,
		model_id INTEGER
	)`,
	`CREATE TABLE loan_guarantors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_type TEXT,
		model_id INTEGER,
		guarantor_id INTEGER,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE revolving_credit_limits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER,
		applied_amount DECIMAL(18,2),
		approved_amount DECIMAL(18,2),
		officer_id INTEGER,
		created_by_id INTEGER,
		branch_id INTEGER,
		status TEXT,
		corporate_id INTEGER,
		product_id INTEGER,
		currency_id INTEGER,
		fund_id INTEGER,
		purpose_id INTEGER,
		activity_type_id INTEGER,
		activity_id INTEGER,
		activity_name TEXT,
		created_at DATETIME
	)`,
}

var legacyDDL = []string{
	`CREATE TABLE ilts.c1_client_info_table (
		client_key TEXT,
		bus_name TEXT,
		bus_add_1 TEXT,
		bus_add_2 TEXT,
		bus_add_3 TEXT,
		id_date DATETIME
	)`,
	`CREATE TABLE ilts.c1_loan_application (
		application_key TEXT,
		req_am DECIMAL(18,2),
		req_no INTEGER,
		br_deputy_note TEXT,
		officer_supervisor_note TEXT,
		loan_gen_user TEXT,
		loan_gen_date DATETIME,
		user_name TEXT,
		dec_user TEXT,
		dec_date DATETIME,
		br_deputy_user_name TEXT,
		officer_supervisor_user_name TEXT,
		br_deputy_bus_location BLOB,
		co_client_key TEXT,
		co2_client_key TEXT
	)`,
	`CREATE TABLE ilts.c1_loan_info (
		loan_key TEXT,
		resc_type INTEGER
	)`,
}
