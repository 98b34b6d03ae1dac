package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/ledgersync/internal/app"
	"github.com/angelmondragon/ledgersync/internal/ledger"
	"github.com/angelmondragon/ledgersync/internal/sync"
	"github.com/angelmondragon/ledgersync/pkg/config"
	"github.com/angelmondragon/ledgersync/pkg/logger"
	"github.com/angelmondragon/ledgersync/pkg/money"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		printError(stderr, err)
		return exitError
	}

	inv, err := parseArgs(args, cfg.Sync.Days, stderr)
	if err != nil {
		printError(stderr, err)
		return exitError
	}
	if inv.Tolerance != nil {
		cfg.Sync.Tolerance = inv.Tolerance.String()
	}

	logg := logger.New(logger.Options{
		ServiceName: "ledgersync",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Output:      stderr,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "command": inv.Command})

	res, err := app.Build(ctx, cfg, logg, app.BuildParams{})
	if err != nil {
		printError(stderr, err)
		return exitError
	}
	defer func() {
		if err := res.Close(); err != nil {
			logg.Error(ctx, "error closing resources", err)
		}
	}()

	switch inv.Command {
	case cmdCheck:
		return runReport(stdout, stderr, inv, func() (*sync.Report, error) { return res.Service.Check(ctx, inv.Days) })
	case cmdReport:
		return runReport(stdout, stderr, inv, func() (*sync.Report, error) { return res.Service.Report(ctx, inv.Days) })
	case cmdSync:
		result, err := res.Service.Sync(ctx, inv.Days, inv.DryRun)
		return printSync(stdout, stderr, inv, result, err)
	case cmdInvoices:
		invoices, err := res.Service.UnpaidInvoices(ctx)
		if err != nil {
			printError(stderr, err)
			return exitError
		}
		if inv.JSON {
			if err := writeJSON(stdout, invoices); err != nil {
				printError(stderr, err)
				return exitError
			}
			return exitClean
		}
		printInvoices(stdout, invoices)
		return exitClean
	}
	printError(stderr, fmt.Errorf("unknown command %q", inv.Command))
	return exitError
}

func runReport(stdout, stderr io.Writer, inv invocation, fn func() (*sync.Report, error)) int {
	report, err := fn()
	if err != nil {
		printError(stderr, err)
		return exitError
	}
	if inv.JSON {
		err = writeJSON(stdout, report)
	} else {
		err = report.Render(stdout)
	}
	if err != nil {
		printError(stderr, err)
		return exitError
	}
	if !report.Clean() {
		return exitDiscrepancies
	}
	return exitClean
}

// printSync shows the outcome of a sync. A dry run with pending rows exits like a failed
// check so it can gate automation.
func printSync(stdout, stderr io.Writer, inv invocation, result *sync.SyncResult, runErr error) int {
	if result == nil {
		printError(stderr, runErr)
		return exitError
	}
	if inv.JSON {
		if err := writeJSON(stdout, result); err != nil {
			printError(stderr, err)
			return exitError
		}
	} else {
		if err := result.Report.Render(stdout); err != nil {
			printError(stderr, err)
			return exitError
		}
		printRows(stdout, result, runErr)
	}
	switch {
	case runErr != nil:
		printError(stderr, runErr)
		return exitError
	case result.DryRun && len(result.Rows) > 0:
		return exitDiscrepancies
	default:
		return exitClean
	}
}

func printRows(w io.Writer, result *sync.SyncResult, runErr error) {
	switch {
	case len(result.Rows) == 0:
		fmt.Fprintln(w, "\nNothing to append.")
		return
	case runErr != nil:
		fmt.Fprintf(w, "\nNot appended (%d row(s)):\n", len(result.Rows))
	case result.DryRun:
		fmt.Fprintf(w, "\nDry run, would append %d row(s):\n", len(result.Rows))
	default:
		fmt.Fprintf(w, "\nAppended %d row(s):\n", len(result.Rows))
	}
	for _, row := range result.Rows {
		fmt.Fprintf(w, "  %s\n", strings.Join(row, " | "))
	}
}

func printInvoices(w io.Writer, invoices []ledger.Invoice) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	report := &sync.Report{Invoices: invoices}
	fmt.Fprintf(tw, "Unpaid invoices: %d (%s)\n", len(invoices), money.Format(report.OutstandingTotal()))
	for _, inv := range invoices {
		number := inv.Number
		if number == "" {
			number = inv.ID
		}
		due := inv.DueDate
		if due == "" {
			due = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\tdue %s\t%s\n", number, inv.Recipient, inv.Status, due, money.Format(inv.Outstanding))
	}
	_ = tw.Flush()
}
