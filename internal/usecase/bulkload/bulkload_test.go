package bulkload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"mohassil-migrator/internal/adapter/repository/gormstore"
	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/internal/domain/store"
	"mohassil-migrator/internal/testutil/sqlitedb"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 4, 11, 9, 0, 0, 0, time.UTC)

type rowOutcomes map[string]int

func (o rowOutcomes) ObserveRow(name, outcome string) { o[name+"/"+outcome]++ }

// workbook renders rows into an in-memory xlsx.
func workbook(t *testing.T, rows ...[]any) io.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func newLoader(t *testing.T) (*gorm.DB, *Loader, rowOutcomes) {
	t.Helper()
	db := sqlitedb.OpenTarget(t)
	seen := rowOutcomes{}
	l := NewLoader(gormstore.NewGormUoW(db, store.SQLite),
		Defaults{OfficerID: 57368, ProductID: 17, BranchID: 1}, "sandah.org", nil,
		WithObserver(seen), WithClock(func() time.Time { return testNow }))
	return db, l, seen
}

func TestBills(t *testing.T) {
	db, l, seen := newLoader(t)
	sqlitedb.Exec(t, db,
		`INSERT INTO clients (id, national_id, name) VALUES (11, '29801011234567', 'Mona'), (12, '29902021234567', 'Hany')`)

	res, err := l.Bills(context.Background(), workbook(t,
		[]any{"National ID", "Approved", "Invoice", "Transfer Date", "Active"},
		[]any{"29801011234567", 3000, 2500, "2024-03-01", 1},
		[]any{"29902021234567", 1500.5, 0, "2023-01-01", 0},
		[]any{"30001011234567", 1000, 900, "2024-03-01", 1},
		[]any{"", 1000, 900, "2024-03-01", 1},
	))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.SkippedByReason["client not found"])
	assert.Equal(t, 1, res.SkippedByReason["empty national id"])
	assert.Equal(t, 2, res.SideRecords)
	assert.True(t, res.Committed)
	assert.Equal(t, 2, seen["bills/inserted"])
	assert.Equal(t, 2, seen["bills/skipped"])

	type limit struct {
		ID             int64
		ClientID       int64
		ApprovedAmount decimal.Decimal
		Status         string
		OfficerID      int64
		ProductID      int64
	}
	var limits []limit
	require.NoError(t, db.Raw(`SELECT id, client_id, approved_amount, status, officer_id, product_id
		FROM revolving_credit_limits ORDER BY client_id`).Scan(&limits).Error)
	require.Len(t, limits, 2)
	assert.Equal(t, "approved", limits[0].Status)
	assert.Equal(t, "closed", limits[1].Status)
	assert.True(t, decimal.NewFromInt(3000).Equal(limits[0].ApprovedAmount))
	assert.True(t, decimal.RequireFromString("1500.5").Equal(limits[1].ApprovedAmount))
	assert.Equal(t, int64(57368), limits[0].OfficerID)
	assert.Equal(t, int64(17), limits[0].ProductID)

	type billLoan struct {
		ClientID                  int64
		RevolvingCreditID         int64
		Principal                 decimal.Decimal
		InterestDisbursedDerived  decimal.Decimal
		PenaltiesDisbursedDerived decimal.Decimal
		FeesDisbursedDerived      decimal.Decimal
		DisbursementCharges       decimal.Decimal
		LoanTerm                  int
		InterestRateType          string
		ExpectedMaturityDate      time.Time
	}
	var loans []billLoan
	require.NoError(t, db.Raw(`SELECT client_id, revolving_credit_id, principal, interest_disbursed_derived,
		penalties_disbursed_derived, fees_disbursed_derived, disbursement_charges, loan_term, interest_rate_type,
		expected_maturity_date FROM loans ORDER BY client_id`).Scan(&loans).Error)
	require.Len(t, loans, 2)

	// 41 days from 2024-03-01 to 2024-04-11, before maturity
	recent := loans[0]
	assert.Equal(t, limits[0].ID, recent.RevolvingCreditID)
	assert.True(t, decimal.NewFromInt(3000).Equal(recent.Principal))
	assert.True(t, decimal.RequireFromString("0.05").Equal(recent.InterestDisbursedDerived), recent.InterestDisbursedDerived.String())
	assert.True(t, decimal.RequireFromString("0.06").Equal(recent.PenaltiesDisbursedDerived))
	assert.True(t, decimal.NewFromInt(150).Equal(recent.FeesDisbursedDerived))
	assert.True(t, decimal.NewFromInt(75).Equal(recent.DisbursementCharges))
	assert.Equal(t, 4, recent.LoanTerm)
	assert.Equal(t, "day", recent.InterestRateType)
	assert.Equal(t, "2024-06-29", recent.ExpectedMaturityDate.Format(time.DateOnly))

	// matured loans accrue the full 120 days
	matured := loans[1]
	assert.True(t, decimal.RequireFromString("0.14").Equal(matured.InterestDisbursedDerived), matured.InterestDisbursedDerived.String())
}

func TestBills_BadRowFailsAlone(t *testing.T) {
	db, l, _ := newLoader(t)
	sqlitedb.Exec(t, db, `INSERT INTO clients (id, national_id) VALUES (11, 'N-1')`)

	res, err := l.Bills(context.Background(), workbook(t,
		[]any{"National ID", "Approved", "Invoice", "Transfer Date", "Active"},
		[]any{"N-1", "lots", 0, "2024-03-01", 1},
		[]any{"N-1", 100, 0, "someday", 1},
		[]any{"N-1", 100, 0, "2024-03-01", "yes"},
	))
	require.Error(t, err)
	var rowErr *migration.RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 0, rowErr.Index)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, int64(1), sqlitedb.Count(t, db, "revolving_credit_limits", ""))
	assert.Equal(t, int64(1), sqlitedb.Count(t, db, "loans", ""))
}

func TestBills_LoanFailureRollsBackLimit(t *testing.T) {
	db, l, _ := newLoader(t)
	sqlitedb.Exec(t, db,
		`INSERT INTO clients (id, national_id) VALUES (11, 'N-1')`,
		`DROP TABLE loans`)

	res, err := l.Bills(context.Background(), workbook(t,
		[]any{"National ID", "Approved", "Invoice", "Transfer Date", "Active"},
		[]any{"N-1", 100, 0, "2024-03-01", 1},
	))
	require.Error(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, res.Committed)
	assert.Equal(t, int64(0), sqlitedb.Count(t, db, "revolving_credit_limits", ""))
}

func TestUsers(t *testing.T) {
	db, l, seen := newLoader(t)
	sqlitedb.Exec(t, db,
		`INSERT INTO branches (id, name) VALUES (7, 'Minya'), (8, 'Assiut')`,
		`INSERT INTO users (id, name, email) VALUES (1, 'Existing', 'Ahmed.Ali@Sandah.org')`)

	res, err := l.Users(context.Background(), workbook(t,
		[]any{"user_name", "user_full_name", "branch_name", "start_date", "user_status"},
		[]any{"ahmed.ali", "Ahmed Ali", "Minya", "2023-05-01", "Active"},
		[]any{"sara.m", "NULL", "Assiut", "2023-06-15", "Active"},
		[]any{"omar.k", "Omar Kamal", "Minya", "not a date", "Not Active"},
		[]any{"SARA.M", "Sara again", "Assiut", "2023-06-15", "Active"},
		[]any{"nour", "Nour", "Cairo", "2023-06-15", "Active"},
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBranchNotFound)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 2, res.SkippedByReason["email already exists"])
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, seen["users/failed"])

	type user struct {
		Name      string
		Email     string
		BranchID  int64
		RoleID    int64
		Active    bool
		CreatedAt time.Time
	}
	var users []user
	require.NoError(t, db.Raw(`SELECT name, email, branch_id, role_id, active, created_at
		FROM users WHERE id > 1 ORDER BY id`).Scan(&users).Error)
	require.Len(t, users, 2)

	sara := users[0]
	assert.Equal(t, "sara.m", sara.Name, "NULL full name falls back to user name")
	assert.Equal(t, "sara.m@sandah.org", sara.Email)
	assert.Equal(t, int64(8), sara.BranchID)
	assert.Equal(t, int64(4), sara.RoleID)
	assert.True(t, sara.Active)
	assert.True(t, sara.CreatedAt.Equal(time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)), sara.CreatedAt.String())
	assert.Equal(t, "Omar Kamal", users[1].Name)
	assert.False(t, users[1].Active)
	assert.True(t, users[1].CreatedAt.Equal(testNow), "unparseable start date falls back to now")
}

func TestUsers_MissingColumns(t *testing.T) {
	_, l, _ := newLoader(t)
	_, err := l.Users(context.Background(), workbook(t,
		[]any{"user_name", "branch_name"},
		[]any{"x", "Minya"},
	))
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "user_full_name")
}

func TestEmptySheet(t *testing.T) {
	_, l, _ := newLoader(t)
	_, err := l.Bills(context.Background(), workbook(t, []any{"National ID"}))
	require.ErrorIs(t, err, ErrEmptySheet)
}

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"45352":               "2024-03-01",
		"2024-03-01":          "2024-03-01",
		"2024-03-01 10:30:00": "2024-03-01",
		"3/1/2024":            "2024-03-01",
		"25/03/2024":          "2024-03-25",
	}
	for in, want := range cases {
		got, err := parseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Format(time.DateOnly), in)
	}
	_, err := parseDate("")
	assert.Error(t, err)
}

func TestLateDays(t *testing.T) {
	transfer := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	maturity := transfer.AddDate(0, 0, billTermDays)
	assert.Equal(t, int64(10), lateDays(transfer, maturity, transfer.AddDate(0, 0, 10)))
	assert.Equal(t, int64(120), lateDays(transfer, maturity, transfer.AddDate(1, 0, 0)))
	assert.Equal(t, int64(0), lateDays(transfer, maturity, transfer.AddDate(0, 0, -3)))
}
