package bulkload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/internal/domain/store"
	"mohassil-migrator/internal/domain/uow"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

const (
	usersLoader = "users"
	// field officers loaded from HR sheets
	userRoleID = 4
)

var ErrMissingColumns = errors.New("spreadsheet is missing required columns")

var userColumns = []string{"user_name", "user_full_name", "branch_name", "start_date", "user_status"}

// errBranchNotFound fails the row rather than skipping it.
var errBranchNotFound = errors.New("branch not found")

// Users loads officer accounts from an xlsx sheet with the header columns
// user_name, user_full_name, branch_name, start_date and user_status.
// Emails already present in users, in any letter case, are skipped.
func (l *Loader) Users(ctx context.Context, r io.Reader) (*migration.Result, error) {
	return l.load(ctx, usersLoader, r, func(sh *sheet) (rowFunc, error) {
		idx := make(map[string]int, len(userColumns))
		var missing []string
		for _, c := range userColumns {
			i := sh.column(c)
			if i < 0 {
				missing = append(missing, c)
			}
			idx[c] = i
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
		}

		emails, err := l.existingEmails(ctx)
		if err != nil {
			return nil, err
		}
		branches := map[string]int64{}

		return func(ctx context.Context, r uow.Repos, row []string) (string, int, error) {
			name := cell(row, idx["user_name"])
			if name == "" {
				return "empty user name", 0, nil
			}
			email := name + "@" + l.emailDomain
			key := strings.ToLower(email)
			if _, ok := emails[key]; ok {
				return "email already exists", 0, nil
			}

			fullName := cell(row, idx["user_full_name"])
			if fullName == "" || strings.EqualFold(fullName, "NULL") {
				fullName = name
			}

			branch := cell(row, idx["branch_name"])
			branchID, ok := branches[branch]
			if !ok {
				rec, err := r.Store.QueryOne(ctx, sq.Select("id").From("branches").Where(sq.Eq{"name": branch}))
				if err != nil {
					return "", 0, fmt.Errorf("find branch %q: %w", branch, err)
				}
				if rec == nil {
					return "", 0, fmt.Errorf("%w: %q", errBranchNotFound, branch)
				}
				if branchID, ok = migration.AsInt(rec["id"]); !ok {
					return "", 0, fmt.Errorf("branch %q has a non-integer id %v", branch, rec["id"])
				}
				branches[branch] = branchID
			}

			created, err := parseDate(cell(row, idx["start_date"]))
			if err != nil {
				l.log.Warn("start date unreadable, using now", zap.String("user_name", name), zap.Error(err))
				created = l.now()
			}

			if _, err := r.Store.Insert(ctx, "users", store.Record{
				"name":       fullName,
				"email":      email,
				"branch_id":  branchID,
				"created_at": created,
				"updated_at": created,
				"active":     cell(row, idx["user_status"]) == "Active",
				"role_id":    userRoleID,
			}); err != nil {
				return "", 0, err
			}
			// duplicates later in the same sheet are skipped too
			emails[key] = struct{}{}
			return "", 0, nil
		}, nil
	})
}

func (l *Loader) existingEmails(ctx context.Context) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	err := l.uow.WithinTx(ctx, func(r uow.Repos) error {
		recs, err := r.Store.Query(ctx, sq.Select("email").From("users").Where(sq.NotEq{"email": nil}))
		if err != nil {
			return fmt.Errorf("load existing emails: %w", err)
		}
		for _, rec := range recs {
			if e := migration.AsString(rec["email"]); e != "" {
				out[strings.ToLower(e)] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("existing emails loaded", zap.Int("emails", len(out)))
	return out, nil
}
