package migration

import (
	"errors"
	"fmt"
	"time"

	"mohassil-migrator/internal/domain/mapping"
	"mohassil-migrator/internal/domain/store"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrUnknownMigration = errors.New("unknown migration")
	ErrNothingInserted  = errors.New("no rows inserted, run rolled back")
)

type Kind string

const (
	Officers         Kind = "officers"
	Clients          Kind = "clients"
	LoanProducts     Kind = "loan_products"
	LoanApplications Kind = "loan_applications"
	Loans            Kind = "loans"
	Installments     Kind = "installments"
	Transactions     Kind = "transactions"
)

// Polymorphic owner types used by profiles, locations and guarantor links.
const (
	LoanMorph   = `App\Models\Loan\Loan`
	ClientMorph = `App\Models\Client`
)

// Row is the target-side record keyed by target column.
type Row = store.Record

// SourceRow keeps the raw driver values keyed by source column.
type SourceRow = store.Record

// BuildRows pairs a positional source row with the mapping columns it was
// selected with. Columns without a target only reach the source row.
func BuildRows(cols []mapping.Column, values []any) (Row, SourceRow) {
	row := make(Row, len(cols))
	src := make(SourceRow, len(cols))
	for i, c := range cols {
		var v any
		if i < len(values) {
			v = values[i]
		}
		src[c.Source] = v
		if c.Target != "" {
			row[c.Target] = Normalize(v)
		}
	}
	return row, src
}

type Action int

const (
	Insert Action = iota + 1
	Skip
)

func (a Action) String() string {
	switch a {
	case Insert:
		return "insert"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}

// Record is a side row destined for Table.
type Record struct {
	Table  string
	Values store.Record
}

// Attachment is written after its parent; the parent's id goes into
// ParentColumn.
type Attachment struct {
	Record
	ParentColumn string
}

// Dependency is written before the main row. When Column is set, the new id
// is copied into that column of the main row. Children are attached to the
// dependency itself.
type Dependency struct {
	Record
	Column   string
	Children []Attachment
}

type Outcome struct {
	Action  Action
	Row     Row
	Reason  string
	Prepend []Dependency
	Attach  []Attachment
}

func InsertRow(row Row) Outcome { return Outcome{Action: Insert, Row: row} }

func SkipRow(reason string) Outcome { return Outcome{Action: Skip, Reason: reason} }

type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Index+1, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// Result summarises one migration run.
type Result struct {
	RunID           string         `json:"run_id"`
	Migration       string         `json:"migration"`
	Total           int            `json:"total"`
	Inserted        int            `json:"inserted"`
	Failed          int            `json:"failed"`
	Skipped         int            `json:"skipped"`
	SkippedByReason map[string]int `json:"skipped_by_reason,omitempty"`
	SideRecords     int            `json:"side_records"`
	Committed       bool           `json:"committed"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`

	Errors *multierror.Error `json:"-"`
}

func NewResult(runID, name string, startedAt time.Time) *Result {
	return &Result{RunID: runID, Migration: name, StartedAt: startedAt, SkippedByReason: map[string]int{}}
}

func (r *Result) AddSkip(reason string) {
	r.Skipped++
	r.SkippedByReason[reason]++
}

func (r *Result) AddError(index int, err error) {
	r.Failed++
	r.Errors = multierror.Append(r.Errors, &RowError{Index: index, Err: err})
}

// Err is the aggregated row error, or nil when every row went through.
func (r *Result) Err() error { return r.Errors.ErrorOrNil() }
