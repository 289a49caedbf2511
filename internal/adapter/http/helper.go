package http

import (
	"errors"
	"net/http"

	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/internal/infrastructure/cache"

	"github.com/hashicorp/go-multierror"
)

// statusFor maps use-case errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, migration.ErrUnknownMigration):
		return http.StatusNotFound
	case errors.Is(err, cache.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, migration.ErrNothingInserted):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorList flattens a multierror into one message per error.
func errorList(err error) []string {
	if err == nil {
		return nil
	}
	var me *multierror.Error
	if errors.As(err, &me) {
		out := make([]string, 0, len(me.Errors))
		for _, e := range me.Errors {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
