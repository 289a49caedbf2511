package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mohassil-migrator/cmd/setup"
	"mohassil-migrator/internal/config"
	"mohassil-migrator/internal/infrastructure/cache"
	"mohassil-migrator/internal/infrastructure/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "migrator",
	Short:         "Migrate the legacy loan database into the new platform",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if cmd.Annotations[offline] == "" {
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		var err error
		log, closeLog, err = logging.New(logging.Options{
			Level: cfg.LogLevel,
			File:  logging.FileFor(cfg.LogDir, "migrator", time.Now()),
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			closeLog()
		}
	},
}

// offline marks commands that never connect to a database.
const offline = "offline"

var (
	cfg      *config.Config
	log      *zap.Logger
	closeLog func()
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if closeLog != nil {
			closeLog()
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(listCmd, runCmd, cleanupCmd, settleCmd, loadCmd, menuCmd)
}

// withSetup connects everything, takes the operator lock and runs fn. The
// context is cancelled on SIGINT/SIGTERM.
func withSetup(cmd *cobra.Command, fn func(ctx context.Context, s *setup.Setup) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := setup.Init(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer s.Close()

	release, err := s.Lock.Acquire(ctx, cache.Operator)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, s)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
