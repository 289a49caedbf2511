package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"mohassil-migrator/cmd/setup"
	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/internal/infrastructure/logging"
	"mohassil-migrator/internal/usecase/migrate"

	"go.uber.org/zap"
)

// The operator actions below are shared by the subcommands and the menu.

type runReport struct {
	*migration.Result
	SkipReasons []string `json:"skip_reasons,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

func report(res *migration.Result) runReport {
	out := runReport{Result: res, SkipReasons: migrate.SkipReasons(res)}
	if res.Errors != nil {
		for _, e := range res.Errors.Errors {
			out.Errors = append(out.Errors, e.Error())
		}
	}
	return out
}

func runMigration(ctx context.Context, s *setup.Setup, name string, opts migrate.RunOptions) (any, error) {
	runLog, closeRunLog, err := logging.ForMigration(s.Log, s.Config.LogDir, name, time.Now())
	if err != nil {
		return nil, err
	}
	defer closeRunLog()

	runLog.Info("starting migration", zap.Uint64("limit", opts.Limit), zap.Bool("disable_fk", opts.DisableFK))
	res, err := s.Driver(runLog).Run(ctx, name, opts)
	s.Metrics.ObserveRun("run", err)
	if res == nil {
		return nil, err
	}
	return report(res), err
}

func cleanupMigration(ctx context.Context, s *setup.Setup, name string) (any, error) {
	deleted, err := s.Driver(s.Log).Cleanup(ctx, name)
	s.Metrics.ObserveRun("cleanup", err)
	if err != nil {
		return nil, err
	}
	return map[string]any{"migration": name, "deleted": deleted}, nil
}

func settleTransactions(ctx context.Context, s *setup.Setup) (any, error) {
	sum, err := s.Settlement.Run(ctx)
	s.Metrics.ObserveRun("settle_transactions", err)
	if sum == nil {
		return nil, err
	}
	return sum, err
}

func settleInstallments(ctx context.Context, s *setup.Setup) (any, error) {
	sum, err := s.EarlySettle.Run(ctx)
	s.Metrics.ObserveRun("settle_installments", err)
	if sum == nil {
		return nil, err
	}
	return sum, err
}

func loadFile(ctx context.Context, s *setup.Setup, kind, path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var res *migration.Result
	switch kind {
	case "bills":
		res, err = s.Loader.Bills(ctx, f)
	case "users":
		res, err = s.Loader.Users(ctx, f)
	default:
		return nil, fmt.Errorf("unknown loader %q (use bills or users)", kind)
	}
	s.Metrics.ObserveRun("load_"+kind, err)
	if res == nil {
		return nil, err
	}
	return report(res), err
}
