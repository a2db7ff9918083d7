package payoff

import "time"

type ProjectionPoint struct {
	Month            int       `json:"month"`
	Label            string    `json:"label"`
	Date             time.Time `json:"date"`
	RemainingBalance float64   `json:"remaining_balance"`
}

type Projection struct {
	Points []ProjectionPoint `json:"points"`
	// Months counts the projected months after "now".
	Months  int  `json:"months"`
	PaidOff bool `json:"paid_off"`
}

// Project amortizes a single balance month by month: interest is compounded on the
// pre-payment balance, then the payment is applied. It stops when the balance reaches
// zero or after monthCap months, whichever comes first.
func Project(balance, annualRate, monthlyPayment float64, monthCap int, start time.Time) (Projection, error) {
	if err := checkAmount("remaining balance", balance); err != nil {
		return Projection{}, err
	}
	if err := checkAmount("interest rate", annualRate); err != nil {
		return Projection{}, err
	}
	if err := checkAmount("monthly payment", monthlyPayment); err != nil {
		return Projection{}, err
	}
	if err := checkCap(monthCap); err != nil {
		return Projection{}, err
	}

	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	p := Projection{
		Points: []ProjectionPoint{{Month: 0, Label: "now", Date: first, RemainingBalance: balance}},
	}
	if balance <= 0 || monthlyPayment <= 0 {
		p.PaidOff = balance <= 0
		return p, nil
	}

	bal := balance
	for m := 1; m <= monthCap && bal > 0; m++ {
		bal, _ = accrue(bal, annualRate)
		bal = settle(bal - monthlyPayment)
		d := first.AddDate(0, m, 0)
		p.Points = append(p.Points, ProjectionPoint{
			Month:            m,
			Label:            d.Format("Jan 2006"),
			Date:             d,
			RemainingBalance: bal,
		})
	}
	p.Months = len(p.Points) - 1
	p.PaidOff = bal <= 0
	return p, nil
}
