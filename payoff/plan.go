package payoff

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

type Status string

const (
	StatusPaidOff       Status = "paid_off"
	StatusNoActiveDebts Status = "no_active_debts"
	StatusCapReached    Status = "cap_reached"
)

// Payment is one debt's line in a simulated month. FocusAmount is the part
// directed by the strategy on top of the minimum.
type Payment struct {
	DebtID         string  `json:"debt_id"`
	Name           string  `json:"name"`
	Amount         float64 `json:"amount"`
	MinimumAmount  float64 `json:"minimum_amount"`
	FocusAmount    float64 `json:"focus_amount"`
	IsFocusPayment bool    `json:"is_focus_payment"`
}

type Month struct {
	MonthIndex      int       `json:"month"`
	Payments        []Payment `json:"payments"`
	TotalPaid       float64   `json:"total_paid"`
	InterestAccrued float64   `json:"interest_accrued"`
	// PoolBase is the focus budget available at the start of the month.
	PoolBase         float64 `json:"pool_base"`
	RemainingBalance float64 `json:"remaining_balance"`
}

type DebtOutcome struct {
	DebtID          string  `json:"debt_id"`
	Name            string  `json:"name"`
	StartingBalance float64 `json:"starting_balance"`
	FinalBalance    float64 `json:"final_balance"`
	InterestAccrued float64 `json:"interest_accrued"`
	PaidOff         bool    `json:"paid_off"`
	PaidOffMonth    int     `json:"paid_off_month,omitempty"`
}

type Plan struct {
	Strategy            Strategy      `json:"strategy"`
	ExtraMonthlyPayment float64       `json:"extra_monthly_payment"`
	Status              Status        `json:"status"`
	Months              []Month       `json:"months"`
	Outcomes            []DebtOutcome `json:"outcomes"`
	// PayoffMonths is zero unless Status is StatusPaidOff.
	PayoffMonths  int     `json:"payoff_months"`
	TotalPaid     float64 `json:"total_paid"`
	TotalInterest float64 `json:"total_interest"`
}

func (p Plan) PaidOff() bool {
	return p.Status == StatusPaidOff
}

// NextPoolBase returns the focus budget for the month after the given debts were
// paid off: their minimum payments join the pool for every later month.
func NextPoolBase(prev float64, paidOff []Debt) float64 {
	for _, d := range paidOff {
		prev += d.MinimumPayment
	}
	return prev
}

type working struct {
	Debt
	pos     int // index into Plan.Outcomes
	balance float64
}

// prioritize orders the remaining debts for the month. active is kept in input
// order, so the stable sort leaves ties in input order.
func prioritize(active []*working, strategy Strategy) []*working {
	order := make([]*working, len(active))
	copy(order, active)
	switch strategy {
	case Snowball:
		sort.SliceStable(order, func(i, j int) bool {
			return order[i].balance < order[j].balance
		})
	case Avalanche:
		sort.SliceStable(order, func(i, j int) bool {
			return order[i].AnnualInterestRate > order[j].AnnualInterestRate
		})
	}
	return order
}

func validatePlanInput(debts []Debt, extra float64, strategy Strategy, monthCap int) error {
	if err := checkAmount("extra monthly payment", extra); err != nil {
		return err
	}
	if err := checkCap(monthCap); err != nil {
		return err
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return err
	}
	seen := make(map[string]bool, len(debts))
	for _, d := range debts {
		if seen[d.ID] {
			return errors.Wrapf(ErrInvalidInput, "duplicate debt id %q", d.ID)
		}
		seen[d.ID] = true
		if err := d.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Simulate runs the month-by-month payoff of debts. Every month interest accrues,
// each debt receives its minimum, and the pool (extra payment plus minimums freed
// by debts paid off in earlier months) goes to the debts in strategy order.
// The caller's slice is never modified.
func Simulate(debts []Debt, extraMonthlyPayment float64, strategy Strategy, monthCap int) (Plan, error) {
	if err := validatePlanInput(debts, extraMonthlyPayment, strategy, monthCap); err != nil {
		return Plan{}, err
	}

	plan := Plan{Strategy: strategy, ExtraMonthlyPayment: extraMonthlyPayment}
	active := make([]*working, 0, len(debts))
	for _, d := range debts {
		if d.RemainingBalance <= 0 {
			continue
		}
		plan.Outcomes = append(plan.Outcomes, DebtOutcome{
			DebtID:          d.ID,
			Name:            d.Name,
			StartingBalance: d.RemainingBalance,
		})
		active = append(active, &working{Debt: d, pos: len(plan.Outcomes) - 1, balance: d.RemainingBalance})
	}
	if len(active) == 0 {
		plan.Status = StatusNoActiveDebts
		return plan, nil
	}

	poolBase := extraMonthlyPayment
	for m := 1; m <= monthCap && len(active) > 0; m++ {
		order := prioritize(active, strategy)
		month := Month{
			MonthIndex: m,
			PoolBase:   poolBase,
			Payments:   make([]Payment, 0, len(order)),
		}

		// 1) Accrue interest on remaining balances
		for _, w := range order {
			var interest float64
			w.balance, interest = accrue(w.balance, w.AnnualInterestRate)
			plan.Outcomes[w.pos].InterestAccrued += interest
			month.InterestAccrued += interest
		}

		// 2) Pay minimums
		for _, w := range order {
			pay := math.Min(w.balance, w.MinimumPayment)
			w.balance = settle(w.balance - pay)
			month.TotalPaid += pay
			month.Payments = append(month.Payments, Payment{
				DebtID:        w.ID,
				Name:          w.Name,
				Amount:        pay,
				MinimumAmount: pay,
			})
		}

		// 3) Walk the priority order with the pool
		pool := poolBase
		for i, w := range order {
			if pool < halfCent {
				break
			}
			extra := math.Min(w.balance, pool)
			if extra <= 0 {
				continue
			}
			w.balance = settle(w.balance - extra)
			pool -= extra
			month.TotalPaid += extra
			p := &month.Payments[i]
			p.Amount += extra
			p.FocusAmount += extra
			p.IsFocusPayment = true
		}

		// 4) Retire paid-off debts; their minimums grow the pool from next month on
		var paidOff []Debt
		remaining := active[:0]
		for _, w := range active {
			if w.balance <= 0 {
				w.balance = 0
				plan.Outcomes[w.pos].PaidOff = true
				plan.Outcomes[w.pos].PaidOffMonth = m
				paidOff = append(paidOff, w.Debt)
				continue
			}
			remaining = append(remaining, w)
			month.RemainingBalance += w.balance
		}
		active = remaining
		poolBase = NextPoolBase(poolBase, paidOff)

		plan.Months = append(plan.Months, month)
		plan.TotalPaid += month.TotalPaid
		plan.TotalInterest += month.InterestAccrued
	}

	if len(active) > 0 {
		for _, w := range active {
			plan.Outcomes[w.pos].FinalBalance = w.balance
		}
		plan.Status = StatusCapReached
		return plan, nil
	}
	plan.Status = StatusPaidOff
	plan.PayoffMonths = len(plan.Months)
	return plan, nil
}
