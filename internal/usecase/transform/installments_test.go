package transform

import (
	"context"
	"testing"
	"time"

	"mohassil-migrator/internal/domain/migration"
)

func installmentInput(principal, repaid, interest, interestRepaid any, src migration.SourceRow) Input {
	if src == nil {
		src = migration.SourceRow{}
	}
	src["loan_key"] = "L-1"
	return Input{
		Row: migration.Row{
			"principal":                principal,
			"principal_repaid_derived": repaid,
			"interest":                 interest,
			"interest_repaid_derived":  interestRepaid,
			"paid_by_date":             time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		Source: src,
	}
}

func TestInstallments_Status(t *testing.T) {
	tests := []struct {
		name       string
		loanStatus string
		in         Input
		want       string
		keepsPaid  bool
	}{
		{
			name:       "written off loan and condition",
			loanStatus: "written_off",
			in:         installmentInput(int64(100), int64(0), int64(20), int64(0), migration.SourceRow{"inst_cond": int64(2), "inst_status": int64(8)}),
			want:       "written_off",
			keepsPaid:  true,
		},
		{
			name:       "condition without written off loan",
			loanStatus: "active",
			in:         installmentInput(int64(100), int64(100), int64(20), int64(20), migration.SourceRow{"inst_cond": int64(2)}),
			want:       "closed",
			keepsPaid:  true,
		},
		{
			name:       "rescheduled",
			loanStatus: "active",
			in:         installmentInput(int64(100), int64(0), int64(20), int64(0), migration.SourceRow{"inst_cond": int64(0), "inst_status": int64(8)}),
			want:       "rescheduled",
			keepsPaid:  true,
		},
		{
			name:       "partly paid",
			loanStatus: "active",
			in:         installmentInput(int64(100), int64(40), int64(20), int64(10), migration.SourceRow{"inst_cond": int64(0)}),
			want:       "active",
		},
		{
			name:       "no condition ignores reschedule code",
			loanStatus: "active",
			in:         installmentInput(int64(100), int64(100), int64(20), int64(20), migration.SourceRow{"inst_status": int64(8)}),
			want:       "closed",
			keepsPaid:  true,
		},
		{
			name:       "no condition unpaid",
			loanStatus: "written_off",
			in:         installmentInput(int64(100), int64(0), int64(20), int64(0), nil),
			want:       "active",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newFakeDB()
			db.rows["loans:external_id=L-1"] = map[string]any{"id": int64(7), "status": tt.loanStatus}
			out, err := db.transformers().GetTransformer("installments").Transform(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if out.Row["status"] != tt.want {
				t.Fatalf("status = %v, want %s", out.Row["status"], tt.want)
			}
			if out.Row["loan_id"] != int64(7) {
				t.Fatalf("loan_id = %v", out.Row["loan_id"])
			}
			if (out.Row["paid_by_date"] != nil) != tt.keepsPaid {
				t.Fatalf("paid_by_date = %v, keep %v", out.Row["paid_by_date"], tt.keepsPaid)
			}
		})
	}
}

func TestInstallments_SplitsPrincipalAndInterest(t *testing.T) {
	out, err := newFakeDB().transformers().GetTransformer("installments").Transform(context.Background(),
		installmentInput(float64(-120), "60.5", int64(20), int64(10), nil))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	assertDec(t, "principal", out.Row["principal"], "100")
	assertDec(t, "principal repaid", out.Row["principal_repaid_derived"], "50.5")
	assertDec(t, "interest", out.Row["interest"], "20")
	if _, ok := out.Row["loan_id"]; ok {
		t.Fatalf("loan_id should be unset when the loan is missing")
	}
}

func TestInstallments_NegativeFeesMadePositive(t *testing.T) {
	in := installmentInput(int64(10), int64(0), int64(1), int64(0), nil)
	in.Row["fees"] = int64(-4)
	in.Row["fees_repaid_derived"] = nil
	out, err := newFakeDB().transformers().GetTransformer("installments").Transform(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	assertDec(t, "fees", out.Row["fees"], "4")
	if out.Row["fees_repaid_derived"] != nil {
		t.Fatalf("null fees stay null")
	}
}

func TestInstallments_MissingFigures(t *testing.T) {
	in := installmentInput(int64(100), int64(0), nil, int64(0), nil)
	if _, err := newFakeDB().transformers().GetTransformer("installments").Transform(context.Background(), in); err == nil {
		t.Fatalf("expected error for missing interest")
	}
	in = installmentInput("abc", int64(0), int64(1), int64(0), nil)
	if _, err := newFakeDB().transformers().GetTransformer("installments").Transform(context.Background(), in); err == nil {
		t.Fatalf("expected error for malformed principal")
	}
}
