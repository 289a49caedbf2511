package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"mohassil-migrator/cmd/setup"
	"mohassil-migrator/internal/domain/mapping"
	"mohassil-migrator/internal/usecase/migrate"

	"github.com/spf13/cobra"
)

const (
	flagLimit     = "limit"
	flagDisableFK = "disable-fk"
)

func init() {
	runCmd.Flags().Uint64P(flagLimit, "l", 0, "migrate at most N source rows (0 = all)")
	runCmd.Flags().Bool(flagDisableFK, false, "disable foreign key checks for the run")
}

var listCmd = &cobra.Command{
	Use:         "list",
	Short:       "List the migrations of the mapping file, in order",
	Annotations: map[string]string{offline: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := mapping.LoadFile(cfg.MappingFile)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tNAME\tSOURCE\tTARGET\tCOLUMNS")
		for i, name := range m.Names() {
			mig, _ := m.Get(name)
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", i+1, mig.Name, mig.SourceTable, mig.TargetTable, len(mig.Columns))
		}
		return w.Flush()
	},
}

var runCmd = &cobra.Command{
	Use:     "run MIGRATION",
	Short:   "Run one migration in a single transaction",
	Example: "migrator run clients --limit 100 --disable-fk",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetUint64(flagLimit)
		disableFK, _ := cmd.Flags().GetBool(flagDisableFK)
		return withSetup(cmd, func(ctx context.Context, s *setup.Setup) error {
			out, err := runMigration(ctx, s, args[0], migrate.RunOptions{Limit: limit, DisableFK: disableFK})
			if out != nil {
				printJSON(cmd.OutOrStdout(), out)
			}
			return err
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup MIGRATION",
	Short: "Delete what a migration wrote to its target table, dependants first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSetup(cmd, func(ctx context.Context, s *setup.Setup) error {
			out, err := cleanupMigration(ctx, s, args[0])
			if out != nil {
				printJSON(cmd.OutOrStdout(), out)
			}
			return err
		})
	},
}
