package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"finance-manager/payoff"
)

type paymentView struct {
	DebtID         string          `json:"debt_id"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	MinimumAmount  decimal.Decimal `json:"minimum_amount"`
	FocusAmount    decimal.Decimal `json:"focus_amount"`
	IsFocusPayment bool            `json:"is_focus_payment"`
}

type monthView struct {
	Month            int             `json:"month"`
	Label            string          `json:"label"`
	Payments         []paymentView   `json:"payments"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	InterestAccrued  decimal.Decimal `json:"interest_accrued"`
	PoolBase         decimal.Decimal `json:"pool_base"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

type outcomeView struct {
	DebtID          string          `json:"debt_id"`
	Name            string          `json:"name"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	FinalBalance    decimal.Decimal `json:"final_balance"`
	InterestAccrued decimal.Decimal `json:"interest_accrued"`
	PaidOff         bool            `json:"paid_off"`
	PaidOffMonth    int             `json:"paid_off_month,omitempty"`
}

type planView struct {
	Strategy            payoff.Strategy `json:"strategy"`
	Status              payoff.Status   `json:"status"`
	PaidOff             bool            `json:"paid_off"`
	PayoffMonths        int             `json:"payoff_months,omitempty"`
	PayoffDate          string          `json:"payoff_date,omitempty"`
	ExtraMonthlyPayment decimal.Decimal `json:"extra_monthly_payment"`
	TotalPaid           decimal.Decimal `json:"total_paid"`
	TotalInterest       decimal.Decimal `json:"total_interest"`
	Summary             string          `json:"summary"`
	Months              []monthView     `json:"months"`
	Outcomes            []outcomeView   `json:"outcomes"`
}

type comparisonView struct {
	Snowball      planView        `json:"snowball"`
	Avalanche     planView        `json:"avalanche"`
	InterestSaved decimal.Decimal `json:"interest_saved"`
	MonthsSaved   int             `json:"months_saved"`
	Recommended   payoff.Strategy `json:"recommended"`
	Summary       string          `json:"summary"`
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func monthLabel(start time.Time, offset int) string {
	return monthStart(start).AddDate(0, offset, 0).Format("Jan 2006")
}

func viewPlan(p payoff.Plan, start time.Time, monthCap int) planView {
	v := planView{
		Strategy:            p.Strategy,
		Status:              p.Status,
		PaidOff:             p.PaidOff(),
		PayoffMonths:        p.PayoffMonths,
		ExtraMonthlyPayment: cents(p.ExtraMonthlyPayment),
		TotalPaid:           cents(p.TotalPaid),
		TotalInterest:       cents(p.TotalInterest),
		Months:              make([]monthView, 0, len(p.Months)),
		Outcomes:            make([]outcomeView, 0, len(p.Outcomes)),
	}

	for _, m := range p.Months {
		mv := monthView{
			Month:            m.MonthIndex,
			Label:            monthLabel(start, m.MonthIndex),
			Payments:         make([]paymentView, 0, len(m.Payments)),
			TotalPaid:        cents(m.TotalPaid),
			InterestAccrued:  cents(m.InterestAccrued),
			PoolBase:         cents(m.PoolBase),
			RemainingBalance: cents(m.RemainingBalance),
		}
		for _, pm := range m.Payments {
			mv.Payments = append(mv.Payments, paymentView{
				DebtID:         pm.DebtID,
				Name:           pm.Name,
				Amount:         cents(pm.Amount),
				MinimumAmount:  cents(pm.MinimumAmount),
				FocusAmount:    cents(pm.FocusAmount),
				IsFocusPayment: pm.IsFocusPayment,
			})
		}
		v.Months = append(v.Months, mv)
	}

	remaining := decimal.Zero
	for _, o := range p.Outcomes {
		final := cents(o.FinalBalance)
		remaining = remaining.Add(final)
		v.Outcomes = append(v.Outcomes, outcomeView{
			DebtID:          o.DebtID,
			Name:            o.Name,
			StartingBalance: cents(o.StartingBalance),
			FinalBalance:    final,
			InterestAccrued: cents(o.InterestAccrued),
			PaidOff:         o.PaidOff,
			PaidOffMonth:    o.PaidOffMonth,
		})
	}

	switch p.Status {
	case payoff.StatusNoActiveDebts:
		v.Summary = "No active debts to plan."
	case payoff.StatusPaidOff:
		v.PayoffDate = monthLabel(start, p.PayoffMonths)
		v.Summary = fmt.Sprintf("Debt-free in %d months (%s) with the %s strategy, paying %s in interest.",
			p.PayoffMonths, v.PayoffDate, p.Strategy, money(v.TotalInterest))
	case payoff.StatusCapReached:
		v.Summary = fmt.Sprintf("Not paid off within %d months; %s would still be owed. Increase the extra payment to finish sooner.",
			monthCap, money(remaining))
	}
	return v
}

func viewComparison(c payoff.Comparison, start time.Time, monthCap int) comparisonView {
	v := comparisonView{
		Snowball:      viewPlan(c.Snowball, start, monthCap),
		Avalanche:     viewPlan(c.Avalanche, start, monthCap),
		InterestSaved: cents(c.InterestSaved),
		MonthsSaved:   c.MonthsSaved,
		Recommended:   c.Recommended,
	}
	switch {
	case c.Snowball.Status == payoff.StatusNoActiveDebts:
		v.Summary = "No active debts to plan."
	case v.InterestSaved.IsPositive():
		v.Summary = fmt.Sprintf("Avalanche saves %s in interest over snowball; %s is recommended.",
			money(v.InterestSaved), c.Recommended)
	default:
		v.Summary = fmt.Sprintf("Both strategies cost the same in interest; %s is recommended.", c.Recommended)
	}
	return v
}

func parseAmountParam(r *http.Request, name string) (decimal.Decimal, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Errorf("%s must be a number", name)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Errorf("%s cannot be negative", name)
	}
	return d, nil
}

// activePlanDebts loads active debts in a stable order and converts them for the calculators.
func (a *App) activePlanDebts(r *http.Request) ([]payoff.Debt, error) {
	debts, err := a.store.ListDebts(r.Context(), DebtFilter{Status: "active", Sort: "name_asc"})
	if err != nil {
		return nil, err
	}
	out := make([]payoff.Debt, 0, len(debts))
	for _, d := range debts {
		out = append(out, d.payoffDebt())
	}
	return out, nil
}

// serveCached answers from the plan cache when it can, otherwise builds the
// response and stores it. Cache failures only get logged.
func (a *App) serveCached(w http.ResponseWriter, r *http.Request, kind string, keyInput any, build func() (any, error)) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	key, err := planCacheKey(kind, keyInput)
	if err != nil {
		a.log.Warn("plan cache key", zap.String("request_id", reqID), zap.Error(err))
	}
	if key != "" {
		body, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			a.log.Warn("plan cache get", zap.String("request_id", reqID), zap.String("key", key), zap.Error(err))
		}
		if ok {
			w.Header().Set("X-Cache", "HIT")
			a.writeRaw(w, http.StatusOK, body)
			return
		}
	}

	resp, err := build()
	if errors.Is(err, payoff.ErrInvalidInput) {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.storeError(w, r, err, kind)
		return
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(resp); err != nil {
		a.log.Error("encode response", zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if key != "" {
		if err := a.cache.Set(ctx, key, buf.Bytes()); err != nil {
			a.log.Warn("plan cache set", zap.String("request_id", reqID), zap.String("key", key), zap.Error(err))
		}
	}
	w.Header().Set("X-Cache", "MISS")
	a.writeRaw(w, http.StatusOK, buf.Bytes())
}

func (a *App) handlePlan(w http.ResponseWriter, r *http.Request) {
	extra, err := parseAmountParam(r, "extra")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	strategy := payoff.Snowball
	if s := r.URL.Query().Get("strategy"); s != "" {
		if strategy, err = payoff.ParseStrategy(s); err != nil {
			a.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	debts, err := a.activePlanDebts(r)
	if err != nil {
		a.storeError(w, r, err, "debts")
		return
	}

	start := a.now()
	monthCap := a.cfg.PlanMonthCap
	keyInput := map[string]any{
		"debts":    debts,
		"extra":    extra,
		"strategy": strategy,
		"cap":      monthCap,
		"start":    start.Format("2006-01"),
	}
	a.serveCached(w, r, "plan", keyInput, func() (any, error) {
		plan, err := payoff.Simulate(debts, extra.InexactFloat64(), strategy, monthCap)
		if err != nil {
			return nil, err
		}
		return viewPlan(plan, start, monthCap), nil
	})
}

func (a *App) handlePlanCompare(w http.ResponseWriter, r *http.Request) {
	extra, err := parseAmountParam(r, "extra")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	debts, err := a.activePlanDebts(r)
	if err != nil {
		a.storeError(w, r, err, "debts")
		return
	}

	start := a.now()
	monthCap := a.cfg.PlanMonthCap
	keyInput := map[string]any{
		"debts": debts,
		"extra": extra,
		"cap":   monthCap,
		"start": start.Format("2006-01"),
	}
	a.serveCached(w, r, "compare", keyInput, func() (any, error) {
		c, err := payoff.Compare(debts, extra.InexactFloat64(), monthCap)
		if err != nil {
			return nil, err
		}
		return viewComparison(c, start, monthCap), nil
	})
}

type projectionPointView struct {
	Month            int             `json:"month"`
	Label            string          `json:"label"`
	Date             string          `json:"date"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

type projectionView struct {
	DebtID         string                `json:"debt_id"`
	Name           string                `json:"name"`
	MonthlyPayment decimal.Decimal       `json:"monthly_payment"`
	PaidOff        bool                  `json:"paid_off"`
	Months         int                   `json:"months"`
	Points         []projectionPointView `json:"points"`
}

func (a *App) handleProjection(w http.ResponseWriter, r *http.Request) {
	d, err := a.store.GetDebt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, r, err, "debt")
		return
	}

	payment := d.MinPayment
	if r.URL.Query().Get("monthly_payment") != "" {
		if payment, err = parseAmountParam(r, "monthly_payment"); err != nil {
			a.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	proj, err := payoff.Project(d.Remaining().InexactFloat64(), d.InterestRate.InexactFloat64(),
		payment.InexactFloat64(), a.cfg.ProjectionMonthCap, a.now())
	if errors.Is(err, payoff.ErrInvalidInput) {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.storeError(w, r, err, "projection")
		return
	}

	v := projectionView{
		DebtID:         d.ID,
		Name:           d.Name,
		MonthlyPayment: payment.Round(2),
		PaidOff:        proj.PaidOff,
		Months:         proj.Months,
		Points:         make([]projectionPointView, 0, len(proj.Points)),
	}
	for _, p := range proj.Points {
		v.Points = append(v.Points, projectionPointView{
			Month:            p.Month,
			Label:            p.Label,
			Date:             p.Date.Format("2006-01-02"),
			RemainingBalance: cents(p.RemainingBalance),
		})
	}
	a.writeJSON(w, http.StatusOK, v)
}
