package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ledgersync/internal/ledger"
	"github.com/angelmondragon/ledgersync/internal/reconcile"
	pkgerrors "github.com/angelmondragon/ledgersync/pkg/errors"
)

const (
	DefaultChannel    = "Square"
	DefaultPartyLabel = "Square Customer"
	DefaultRange      = "Income!A:F"
)

var validate = validator.New()

// Options configures a sync Service.
type Options struct {
	Channel    string `validate:"required,max=64"`
	PartyLabel string `validate:"required,max=128"`
	Range      string `validate:"required"`
	HasHeader  bool
	Tolerance  decimal.Decimal
	Location   *time.Location
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Channel:    DefaultChannel,
		PartyLabel: DefaultPartyLabel,
		Range:      DefaultRange,
		HasHeader:  true,
		Tolerance:  reconcile.DefaultTolerance,
		Location:   time.UTC,
	}
}

func (o Options) normalize() (Options, error) {
	o.Channel = strings.TrimSpace(o.Channel)
	o.PartyLabel = strings.TrimSpace(o.PartyLabel)
	o.Range = strings.TrimSpace(o.Range)
	if o.Location == nil {
		o.Location = time.UTC
	}
	if err := validate.Struct(o); err != nil {
		details := map[string]string{}
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				details[fe.Field()] = fe.Tag()
			}
		}
		return o, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sync options").WithDetails(details)
	}
	if o.Tolerance.IsNegative() {
		return o, pkgerrors.New(pkgerrors.CodeValidation, "tolerance must not be negative")
	}
	if _, err := ledger.ParseRange(o.Range); err != nil {
		return o, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid ledger range %q", o.Range))
	}
	return o, nil
}
