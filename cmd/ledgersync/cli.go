package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/ledgersync/pkg/errors"
)

const (
	exitClean         = 0
	exitDiscrepancies = 1
	exitError         = 2
)

const (
	cmdCheck    = "check"
	cmdSync     = "sync"
	cmdReport   = "report"
	cmdInvoices = "invoices"
)

const usage = `usage: ledgersync <command> [flags]

commands:
  check     compare recent payments against the ledger (read-only)
  sync      append missing payments to the ledger
  report    check plus ledger-only rows and unpaid invoices
  invoices  list unpaid invoices

flags:
`

var validate = validator.New()

type invocation struct {
	Command   string `validate:"oneof=check sync report invoices"`
	Days      int    `validate:"min=1,max=365"`
	DryRun    bool
	JSON      bool
	Tolerance *decimal.Decimal
}

// parseArgs reads "<command> [flags]". defaultDays comes from configuration.
func parseArgs(args []string, defaultDays int, stderr io.Writer) (invocation, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fmt.Fprint(stderr, usage)
		return invocation{}, errors.New("missing command")
	}
	inv := invocation{Command: strings.ToLower(args[0])}

	fs := flag.NewFlagSet("ledgersync "+inv.Command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.IntVar(&inv.Days, "days", defaultDays, "trailing window in days, today included")
	fs.BoolVar(&inv.DryRun, "dry-run", false, "sync: show the rows without writing them")
	fs.BoolVar(&inv.JSON, "json", false, "print the result as JSON")
	tolerance := fs.String("tolerance", "", "amount matching tolerance, e.g. 0.01")
	if err := fs.Parse(args[1:]); err != nil {
		return invocation{}, err
	}
	if fs.NArg() > 0 {
		return invocation{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if raw := strings.TrimSpace(*tolerance); raw != "" {
		tol, err := decimal.NewFromString(raw)
		if err != nil || tol.IsNegative() {
			return invocation{}, pkgerrors.New(pkgerrors.CodeValidation, "tolerance must be a non-negative number").
				WithDetails(map[string]any{"tolerance": raw})
		}
		inv.Tolerance = &tol
	}

	if err := validate.Struct(inv); err != nil {
		details := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		return invocation{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid arguments").WithDetails(details)
	}
	return inv, nil
}

// printError writes the message and, when present, the structured details.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Details() == nil {
		return
	}
	encoded, encErr := json.MarshalIndent(typed.Details(), "", "  ")
	if encErr != nil {
		return
	}
	fmt.Fprintf(w, "details: %s\n", encoded)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
