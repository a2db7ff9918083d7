package payoff_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-manager/payoff"
)

func TestSimulate_SnowballGrowsAfterPayoff(t *testing.T) {
	debts := []payoff.Debt{
		{ID: "a", Name: "A", RemainingBalance: 50_000, MinimumPayment: 10_000, AnnualInterestRate: 0},
		{ID: "b", Name: "B", RemainingBalance: 200_000, MinimumPayment: 20_000, AnnualInterestRate: 20},
	}

	plan, err := payoff.Simulate(debts, 0, payoff.Snowball, payoff.DefaultPlanMonths)
	require.NoError(t, err)
	require.Equal(t, payoff.StatusPaidOff, plan.Status)
	require.Greater(t, len(plan.Months), 6)

	for i := 0; i < 5; i++ {
		m := plan.Months[i]
		assert.Equal(t, i+1, m.MonthIndex)
		assert.Equal(t, 0.0, m.PoolBase)
		require.Len(t, m.Payments, 2)
		assert.Equal(t, "a", m.Payments[0].DebtID)
		assert.Equal(t, 10_000.0, m.Payments[0].Amount)
		assert.False(t, m.Payments[0].IsFocusPayment)
		assert.Equal(t, 20_000.0, m.Payments[1].Amount)
		assert.False(t, m.Payments[1].IsFocusPayment)
		assert.Equal(t, 30_000.0, m.TotalPaid)
	}

	require.Len(t, plan.Outcomes, 2)
	assert.True(t, plan.Outcomes[0].PaidOff)
	assert.Equal(t, 5, plan.Outcomes[0].PaidOffMonth)

	m6 := plan.Months[5]
	assert.Equal(t, 10_000.0, m6.PoolBase)
	require.Len(t, m6.Payments, 1)
	assert.Equal(t, "b", m6.Payments[0].DebtID)
	assert.Equal(t, 20_000.0, m6.Payments[0].MinimumAmount)
	assert.Equal(t, 10_000.0, m6.Payments[0].FocusAmount)
	assert.Equal(t, 30_000.0, m6.Payments[0].Amount)
	assert.True(t, m6.Payments[0].IsFocusPayment)

	assert.Equal(t, len(plan.Months), plan.PayoffMonths)
	assert.True(t, plan.Outcomes[1].PaidOff)
	assert.Greater(t, plan.TotalInterest, 0.0)
}

func TestSimulate_FirstMonthInterest(t *testing.T) {
	debts := []payoff.Debt{
		{ID: "b", Name: "B", RemainingBalance: 200_000, MinimumPayment: 20_000, AnnualInterestRate: 20},
	}

	plan, err := payoff.Simulate(debts, 0, payoff.Avalanche, 1)
	require.NoError(t, err)
	require.Len(t, plan.Months, 1)

	interest := 200_000 * 20.0 / 100 / 12
	assert.InDelta(t, interest, plan.Months[0].InterestAccrued, 1e-6)
	assert.InDelta(t, 200_000+interest-20_000, plan.Months[0].RemainingBalance, 1e-6)
	assert.InDelta(t, 200_000+interest-20_000, plan.Outcomes[0].FinalBalance, 1e-6)
}

func TestSimulate_NoActiveDebts(t *testing.T) {
	tests := []struct {
		name  string
		debts []payoff.Debt
	}{
		{name: "nil", debts: nil},
		{name: "all paid", debts: []payoff.Debt{
			{ID: "a", RemainingBalance: 0, MinimumPayment: 100},
			{ID: "b", RemainingBalance: 0, MinimumPayment: 0},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := payoff.Simulate(tt.debts, 500, payoff.Snowball, payoff.DefaultPlanMonths)
			require.NoError(t, err)
			assert.Equal(t, payoff.StatusNoActiveDebts, plan.Status)
			assert.Empty(t, plan.Months)
			assert.Empty(t, plan.Outcomes)
			assert.False(t, plan.PaidOff())
		})
	}
}

func TestSimulate_CapReached(t *testing.T) {
	debts := []payoff.Debt{{ID: "a", Name: "A", RemainingBalance: 1_000, MinimumPayment: 100}}

	plan, err := payoff.Simulate(debts, 0, payoff.Snowball, 3)
	require.NoError(t, err)

	assert.Equal(t, payoff.StatusCapReached, plan.Status)
	assert.Len(t, plan.Months, 3)
	assert.Equal(t, 0, plan.PayoffMonths)
	require.Len(t, plan.Outcomes, 1)
	assert.False(t, plan.Outcomes[0].PaidOff)
	assert.Equal(t, 700.0, plan.Outcomes[0].FinalBalance)
}

func TestSimulate_UnreachableDebtStaysUnpaid(t *testing.T) {
	debts := []payoff.Debt{{ID: "x", Name: "Family loan", RemainingBalance: 100}}

	plan, err := payoff.Simulate(debts, 0, payoff.Snowball, 12)
	require.NoError(t, err)

	assert.Equal(t, payoff.StatusCapReached, plan.Status)
	assert.Len(t, plan.Months, 12)
	assert.False(t, plan.Outcomes[0].PaidOff)
	assert.Equal(t, 100.0, plan.Outcomes[0].FinalBalance)
	for _, m := range plan.Months {
		assert.Equal(t, 0.0, m.TotalPaid)
	}
}

func TestSimulate_TiesKeepInputOrder(t *testing.T) {
	first := payoff.Debt{ID: "first", RemainingBalance: 1_000, MinimumPayment: 100, AnnualInterestRate: 10}
	second := payoff.Debt{ID: "second", RemainingBalance: 1_000, MinimumPayment: 100, AnnualInterestRate: 10}

	for _, strategy := range []payoff.Strategy{payoff.Snowball, payoff.Avalanche} {
		t.Run(string(strategy), func(t *testing.T) {
			plan, err := payoff.Simulate([]payoff.Debt{first, second}, 50, strategy, 1)
			require.NoError(t, err)
			assert.Equal(t, "first", plan.Months[0].Payments[0].DebtID)
			assert.True(t, plan.Months[0].Payments[0].IsFocusPayment)
			assert.False(t, plan.Months[0].Payments[1].IsFocusPayment)

			plan, err = payoff.Simulate([]payoff.Debt{second, first}, 50, strategy, 1)
			require.NoError(t, err)
			assert.Equal(t, "second", plan.Months[0].Payments[0].DebtID)
			assert.True(t, plan.Months[0].Payments[0].IsFocusPayment)
		})
	}
}

func TestSimulate_ReordersEveryMonth(t *testing.T) {
	debts := []payoff.Debt{
		{ID: "a", RemainingBalance: 1_000},
		{ID: "b", RemainingBalance: 1_200, MinimumPayment: 500},
	}

	plan, err := payoff.Simulate(debts, 100, payoff.Snowball, 24)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(plan.Months), 2)

	// month 1: a (1,000) is smaller than b (1,200)
	assert.Equal(t, "a", plan.Months[0].Payments[0].DebtID)
	assert.Equal(t, 100.0, plan.Months[0].Payments[0].FocusAmount)

	// month 2: b dropped to 700 after its minimum, a sits at 900
	assert.Equal(t, "b", plan.Months[1].Payments[0].DebtID)
	assert.Equal(t, 600.0, plan.Months[1].Payments[0].Amount)
	assert.Equal(t, 100.0, plan.Months[1].Payments[0].FocusAmount)
}

func TestSimulate_DoesNotMutateInput(t *testing.T) {
	debts := []payoff.Debt{
		{ID: "a", Name: "Card", RemainingBalance: 3_000, MinimumPayment: 90, AnnualInterestRate: 22},
		{ID: "b", Name: "Car", RemainingBalance: 9_000, MinimumPayment: 250, AnnualInterestRate: 6},
	}
	before := make([]payoff.Debt, len(debts))
	copy(before, debts)

	_, err := payoff.Simulate(debts, 150, payoff.Avalanche, payoff.DefaultPlanMonths)
	require.NoError(t, err)
	assert.Equal(t, before, debts)
}

func TestSimulate_Deterministic(t *testing.T) {
	debts := []payoff.Debt{
		{ID: "a", Name: "Card", RemainingBalance: 3_000, MinimumPayment: 90, AnnualInterestRate: 22},
		{ID: "b", Name: "Car", RemainingBalance: 9_000, MinimumPayment: 250, AnnualInterestRate: 6},
		{ID: "c", Name: "Store", RemainingBalance: 450, MinimumPayment: 25, AnnualInterestRate: 28},
	}

	p1, err := payoff.Simulate(debts, 150, payoff.Snowball, payoff.DefaultPlanMonths)
	require.NoError(t, err)
	p2, err := payoff.Simulate(debts, 150, payoff.Snowball, payoff.DefaultPlanMonths)
	require.NoError(t, err)

	b1, err := json.Marshal(p1)
	require.NoError(t, err)
	b2, err := json.Marshal(p2)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestSimulate_BalancesNeverNegative(t *testing.T) {
	debts := []payoff.Debt{
		{ID: "a", RemainingBalance: 3_000, MinimumPayment: 90, AnnualInterestRate: 22},
		{ID: "b", RemainingBalance: 9_000, MinimumPayment: 250, AnnualInterestRate: 6},
		{ID: "c", RemainingBalance: 450, MinimumPayment: 25, AnnualInterestRate: 28},
	}

	plan, err := payoff.Simulate(debts, 150, payoff.Avalanche, payoff.DefaultPlanMonths)
	require.NoError(t, err)
	require.True(t, plan.PaidOff())

	prev := 3_000.0 + 9_000 + 450
	var paid float64
	for _, m := range plan.Months {
		assert.GreaterOrEqual(t, m.RemainingBalance, 0.0)
		assert.LessOrEqual(t, m.RemainingBalance, prev)
		prev = m.RemainingBalance

		var sum float64
		for _, p := range m.Payments {
			assert.GreaterOrEqual(t, p.Amount, 0.0)
			assert.InDelta(t, p.MinimumAmount+p.FocusAmount, p.Amount, 1e-9)
			sum += p.Amount
		}
		assert.InDelta(t, sum, m.TotalPaid, 1e-6)
		paid += m.TotalPaid
	}
	assert.InDelta(t, paid, plan.TotalPaid, 1e-6)
	assert.Equal(t, 0.0, plan.Months[len(plan.Months)-1].RemainingBalance)
}

func TestSimulate_InvalidInput(t *testing.T) {
	ok := payoff.Debt{ID: "a", RemainingBalance: 100, MinimumPayment: 10}

	tests := []struct {
		name     string
		debts    []payoff.Debt
		extra    float64
		strategy payoff.Strategy
		cap      int
	}{
		{name: "negative extra", debts: []payoff.Debt{ok}, extra: -1, strategy: payoff.Snowball, cap: 240},
		{name: "zero cap", debts: []payoff.Debt{ok}, strategy: payoff.Snowball, cap: 0},
		{name: "unknown strategy", debts: []payoff.Debt{ok}, strategy: "fastest", cap: 240},
		{name: "negative balance", debts: []payoff.Debt{{ID: "a", RemainingBalance: -5}}, strategy: payoff.Snowball, cap: 240},
		{name: "negative minimum", debts: []payoff.Debt{{ID: "a", RemainingBalance: 5, MinimumPayment: -1}}, strategy: payoff.Avalanche, cap: 240},
		{name: "duplicate id", debts: []payoff.Debt{ok, ok}, strategy: payoff.Avalanche, cap: 240},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := payoff.Simulate(tt.debts, tt.extra, tt.strategy, tt.cap)
			assert.ErrorIs(t, err, payoff.ErrInvalidInput)
		})
	}
}

func TestNextPoolBase(t *testing.T) {
	assert.Equal(t, 100.0, payoff.NextPoolBase(100, nil))
	assert.Equal(t, 150.0, payoff.NextPoolBase(100, []payoff.Debt{
		{ID: "a", MinimumPayment: 20},
		{ID: "b", MinimumPayment: 30},
	}))
	assert.Equal(t, 0.0, payoff.NextPoolBase(0, []payoff.Debt{{ID: "c"}}))
}

func TestParseStrategy(t *testing.T) {
	s, err := payoff.ParseStrategy("avalanche")
	require.NoError(t, err)
	assert.Equal(t, payoff.Avalanche, s)

	_, err = payoff.ParseStrategy("")
	assert.ErrorIs(t, err, payoff.ErrInvalidInput)
}

func TestSimulate_CentAmountsLeaveNoResidue(t *testing.T) {
	tests := []struct {
		name       string
		debt       payoff.Debt
		extra      float64
		wantMonths int
	}{
		{"minimum only", payoff.Debt{ID: "a", RemainingBalance: 1000.10, MinimumPayment: 100.01}, 0, 10},
		{"small minimum", payoff.Debt{ID: "a", RemainingBalance: 0.50, MinimumPayment: 0.10}, 0, 5},
		{"minimum plus focus", payoff.Debt{ID: "a", RemainingBalance: 0.10, MinimumPayment: 0.04}, 0.06, 1},
		{"penny focus", payoff.Debt{ID: "a", RemainingBalance: 0.10, MinimumPayment: 0.01}, 0.01, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := payoff.Simulate([]payoff.Debt{tt.debt}, tt.extra, payoff.Snowball, payoff.DefaultPlanMonths)
			require.NoError(t, err)
			require.Equal(t, payoff.StatusPaidOff, plan.Status)
			assert.Equal(t, tt.wantMonths, plan.PayoffMonths)
			assert.Equal(t, tt.wantMonths, plan.Outcomes[0].PaidOffMonth)
			assert.GreaterOrEqual(t, plan.Months[len(plan.Months)-1].TotalPaid, 0.01)
		})
	}
}
