package payoff

import "math"

type Comparison struct {
	Snowball      Plan     `json:"snowball"`
	Avalanche     Plan     `json:"avalanche"`
	InterestSaved float64  `json:"interest_saved"`
	MonthsSaved   int      `json:"months_saved"` // only set when both plans pay off
	Recommended   Strategy `json:"recommended"`
}

// Compare simulates both strategies on the same debts and extra payment.
func Compare(debts []Debt, extraMonthlyPayment float64, monthCap int) (Comparison, error) {
	sb, err := Simulate(debts, extraMonthlyPayment, Snowball, monthCap)
	if err != nil {
		return Comparison{}, err
	}
	av, err := Simulate(debts, extraMonthlyPayment, Avalanche, monthCap)
	if err != nil {
		return Comparison{}, err
	}

	c := Comparison{
		Snowball:      sb,
		Avalanche:     av,
		InterestSaved: math.Max(0, sb.TotalInterest-av.TotalInterest),
		Recommended:   Snowball,
	}
	if sb.PaidOff() && av.PaidOff() {
		c.MonthsSaved = sb.PayoffMonths - av.PayoffMonths
	}

	switch {
	case av.PaidOff() && !sb.PaidOff():
		c.Recommended = Avalanche
	case sb.PaidOff() && !av.PaidOff():
		// snowball finishes, avalanche does not
	case av.TotalInterest < sb.TotalInterest:
		c.Recommended = Avalanche
	}
	return c, nil
}
