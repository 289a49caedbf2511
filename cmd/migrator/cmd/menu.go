package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"mohassil-migrator/cmd/setup"
	"mohassil-migrator/internal/usecase/migrate"

	"github.com/spf13/cobra"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Interactive numbered menu over every operator action",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSetup(cmd, func(ctx context.Context, s *setup.Setup) error {
			m := &menu{
				in:      bufio.NewScanner(cmd.InOrStdin()),
				out:     cmd.OutOrStdout(),
				names:   s.Mappings.Names(),
				actions: actionsFor(s),
			}
			return m.loop(ctx)
		})
	},
}

func actionsFor(s *setup.Setup) menuActions {
	return menuActions{
		run: func(ctx context.Context, name string, opts migrate.RunOptions) (any, error) {
			return runMigration(ctx, s, name, opts)
		},
		cleanup: func(ctx context.Context, name string) (any, error) {
			return cleanupMigration(ctx, s, name)
		},
		settleTransactions: func(ctx context.Context) (any, error) {
			return settleTransactions(ctx, s)
		},
		settleInstallments: func(ctx context.Context) (any, error) {
			return settleInstallments(ctx, s)
		},
		load: func(ctx context.Context, kind, path string) (any, error) {
			return loadFile(ctx, s, kind, path)
		},
	}
}

type menuActions struct {
	run                func(ctx context.Context, name string, opts migrate.RunOptions) (any, error)
	cleanup            func(ctx context.Context, name string) (any, error)
	settleTransactions func(ctx context.Context) (any, error)
	settleInstallments func(ctx context.Context) (any, error)
	load               func(ctx context.Context, kind, path string) (any, error)
}

type menu struct {
	in      *bufio.Scanner
	out     io.Writer
	names   []string
	actions menuActions
}

// loop shows the main menu until the operator quits or input ends. A failed
// action is printed and the menu comes back.
func (m *menu) loop(ctx context.Context) error {
	n := len(m.names)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintln(m.out, "\nMAIN MENU:")
		for i, name := range m.names {
			fmt.Fprintf(m.out, "%d: %s\n", i+1, name)
		}
		fmt.Fprintf(m.out, "%d: Settle Transactions\n", n+1)
		fmt.Fprintf(m.out, "%d: Settle Installments\n", n+2)
		fmt.Fprintf(m.out, "%d: Load Bills Spreadsheet\n", n+3)
		fmt.Fprintf(m.out, "%d: Load Users Spreadsheet\n", n+4)
		fmt.Fprintln(m.out, "0: Quit")

		choice, ok := m.ask("\nEnter the number of the migration or action: ")
		if !ok {
			return nil
		}
		idx, err := strconv.Atoi(choice)
		switch {
		case err != nil || idx < 0 || idx > n+4:
			fmt.Fprintf(m.out, "Invalid choice %q\n", choice)
		case idx == 0:
			fmt.Fprintln(m.out, "Exiting the program.")
			return nil
		case idx == n+1:
			m.show(m.actions.settleTransactions(ctx))
		case idx == n+2:
			m.show(m.actions.settleInstallments(ctx))
		case idx == n+3, idx == n+4:
			kind := "bills"
			if idx == n+4 {
				kind = "users"
			}
			path, ok := m.ask("Spreadsheet path: ")
			if !ok {
				return nil
			}
			m.show(m.actions.load(ctx, kind, path))
		default:
			if !m.migrationMenu(ctx, m.names[idx-1]) {
				return nil
			}
		}
	}
}

// migrationMenu returns false when input ended.
func (m *menu) migrationMenu(ctx context.Context, name string) bool {
	fmt.Fprintf(m.out, "\n=== Selected Migration: %s ===\n", name)
	fmt.Fprintln(m.out, "1: Run Migration")
	fmt.Fprintln(m.out, "2: Perform Cleanup (Target Table)")
	fmt.Fprintln(m.out, "Any other number goes back to the main menu")
	act, ok := m.ask("Enter the action number: ")
	if !ok {
		return false
	}
	switch act {
	case "1":
		fk, ok := m.ask("Migrate with foreign keys:\n1: Enabled (default)\n2: Disabled\nChoice: ")
		if !ok {
			return false
		}
		raw, ok := m.ask("Number of records to migrate (leave empty for all records): ")
		if !ok {
			return false
		}
		var limit uint64
		if raw != "" {
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				fmt.Fprintf(m.out, "Invalid record limit %q\n", raw)
				return true
			}
			limit = n
		}
		m.show(m.actions.run(ctx, name, migrate.RunOptions{Limit: limit, DisableFK: fk == "2"}))
	case "2":
		m.show(m.actions.cleanup(ctx, name))
	}
	return true
}

func (m *menu) ask(prompt string) (string, bool) {
	fmt.Fprint(m.out, prompt)
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

func (m *menu) show(out any, err error) {
	if out != nil {
		printJSON(m.out, out)
	}
	if err != nil {
		fmt.Fprintln(m.out, "Error:", err)
	}
}
