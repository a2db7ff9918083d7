// Package payoff projects debt balances and simulates multi-debt payoff strategies.
package payoff

import (
	"math"

	"github.com/pkg/errors"
)

const (
	DefaultProjectionMonths = 360 // 30 years
	DefaultPlanMonths       = 240 // 20 years
)

// ErrInvalidInput is returned before any simulation work when an argument is out of range.
var ErrInvalidInput = errors.New("invalid input")

type Strategy string

const (
	Snowball  Strategy = "snowball"  // smallest balance first
	Avalanche Strategy = "avalanche" // highest rate first
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Snowball, Avalanche:
		return Strategy(s), nil
	}
	return "", errors.Wrapf(ErrInvalidInput, "unknown strategy %q", s)
}

type Debt struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	RemainingBalance   float64 `json:"remaining_balance"`
	AnnualInterestRate float64 `json:"annual_interest_rate"` // percent, 19.5 means 19.5%
	MinimumPayment     float64 `json:"minimum_payment"`
}

func (d Debt) validate() error {
	if err := checkAmount("remaining balance", d.RemainingBalance); err != nil {
		return errors.Wrapf(err, "debt %q", d.ID)
	}
	if err := checkAmount("interest rate", d.AnnualInterestRate); err != nil {
		return errors.Wrapf(err, "debt %q", d.ID)
	}
	if err := checkAmount("minimum payment", d.MinimumPayment); err != nil {
		return errors.Wrapf(err, "debt %q", d.ID)
	}
	return nil
}

func checkAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Wrapf(ErrInvalidInput, "%s is not a finite number", field)
	}
	if v < 0 {
		return errors.Wrapf(ErrInvalidInput, "%s cannot be negative", field)
	}
	return nil
}

func checkCap(monthCap int) error {
	if monthCap <= 0 {
		return errors.Wrapf(ErrInvalidInput, "month cap must be positive, got %d", monthCap)
	}
	return nil
}

// halfCent is the smallest balance still treated as owed.
const halfCent = 0.005

// settle zeroes what is left after a payment when it is below half a cent.
// Subtracting whole-cent float amounts leaves residues around 1e-14.
func settle(balance float64) float64 {
	if balance < halfCent {
		return 0
	}
	return balance
}

func monthlyRate(annualRate float64) float64 {
	return annualRate / 100 / 12
}

// accrue compounds one month of interest on balance and returns the new balance
// together with the interest added.
func accrue(balance, annualRate float64) (float64, float64) {
	interest := balance * monthlyRate(annualRate)
	return balance + interest, interest
}
