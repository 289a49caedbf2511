package cmd

import (
	"context"

	"mohassil-migrator/cmd/setup"

	"github.com/spf13/cobra"
)

func init() {
	settleCmd.AddCommand(settleTransactionsCmd, settleInstallmentsCmd)
	loadCmd.AddCommand(loadBillsCmd, loadUsersCmd)
}

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Recompute ledger balances or apply early settlements",
}

var settleTransactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "Replay every loan's transactions and store running balances",
	Long: `Replay every loan's transactions and store running balances.

Loans are settled in batches of 100, one transaction per batch. When a batch
fails it is rolled back and the run stops, but earlier batches stay committed.
Re-running is safe: the replay recomputes balances from the transaction log,
so settled loans land on the same figures and the run picks up the rest.

Run this before "settle installments".`,
	Args: cobra.NoArgs,
	RunE: action(settleTransactions),
}

var settleInstallmentsCmd = &cobra.Command{
	Use:   "installments",
	Short: "Early-settle the loans flagged in the legacy system",
	Long: `Early-settle the loans flagged in the legacy system.

Needs balances from "settle transactions". Each loan commits on its own; a
failing loan is rolled back and the others carry on. Re-running retries it;
loans already settled have nothing unpaid left and are skipped.`,
	Args: cobra.NoArgs,
	RunE: action(settleInstallments),
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load operator spreadsheets into the target database",
}

var loadBillsCmd = &cobra.Command{
	Use:     "bills XLSX",
	Short:   "Create revolving credit limits and loans from a bills sheet",
	Example: "migrator load bills bills.xlsx",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return action(func(ctx context.Context, s *setup.Setup) (any, error) {
			return loadFile(ctx, s, "bills", args[0])
		})(cmd, args)
	},
}

var loadUsersCmd = &cobra.Command{
	Use:     "users XLSX",
	Short:   "Create officer accounts from a users sheet",
	Example: "migrator load users users.xlsx",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return action(func(ctx context.Context, s *setup.Setup) (any, error) {
			return loadFile(ctx, s, "users", args[0])
		})(cmd, args)
	},
}

// action adapts an operator action to a cobra RunE printing its summary.
func action(fn func(ctx context.Context, s *setup.Setup) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return withSetup(cmd, func(ctx context.Context, s *setup.Setup) error {
			out, err := fn(ctx, s)
			if out != nil {
				printJSON(cmd.OutOrStdout(), out)
			}
			return err
		})
	}
}
