package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var validKinds = map[string]bool{
	"card":           true,
	"line_of_credit": true,
	"personal_loan":  true,
	"auto_loan":      true,
	"student_loan":   true,
	"mortgage":       true,
	"other_loan":     true,
}

type debtInput struct {
	Name         string          `json:"name"`
	Kind         string          `json:"kind"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	MinPayment   decimal.Decimal `json:"min_payment"`
	PaymentDay   int             `json:"payment_day"`
	Notes        string          `json:"notes"`
}

func (in debtInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return errors.New("debt name is required")
	case !validKinds[in.Kind]:
		return errors.New("please select a valid debt type")
	case in.TotalAmount.IsNegative():
		return errors.New("total amount cannot be negative")
	case in.AmountPaid.IsNegative():
		return errors.New("amount paid cannot be negative")
	case in.InterestRate.IsNegative():
		return errors.New("interest rate cannot be negative")
	case in.MinPayment.IsNegative():
		return errors.New("minimum payment cannot be negative")
	case in.PaymentDay < 1 || in.PaymentDay > 31:
		return errors.New("payment day must be between 1 and 31")
	}
	return nil
}

func (in debtInput) debt() Debt {
	return Debt{
		Name:         strings.TrimSpace(in.Name),
		Kind:         in.Kind,
		TotalAmount:  in.TotalAmount.Round(2),
		AmountPaid:   in.AmountPaid.Round(2),
		InterestRate: in.InterestRate.Round(4),
		MinPayment:   in.MinPayment.Round(2),
		PaymentDay:   in.PaymentDay,
		Notes:        strings.TrimSpace(in.Notes),
	}
}

type debtView struct {
	Debt
	Remaining decimal.Decimal `json:"remaining"`
}

func viewDebt(d Debt) debtView {
	return debtView{Debt: d, Remaining: d.Remaining()}
}

func (a *App) decodeDebtInput(w http.ResponseWriter, r *http.Request) (debtInput, bool) {
	var in debtInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return in, false
	}
	if err := in.validate(); err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return in, false
	}
	return in, true
}

func (a *App) handleDebtList(w http.ResponseWriter, r *http.Request) {
	filter := DebtFilter{
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Kind:   r.URL.Query().Get("kind"),
		Status: r.URL.Query().Get("status"),
		Sort:   r.URL.Query().Get("sort"),
	}
	if filter.Kind != "" && !validKinds[filter.Kind] {
		a.writeError(w, http.StatusBadRequest, "please select a valid debt type")
		return
	}
	debts, err := a.store.ListDebts(r.Context(), filter)
	if err != nil {
		a.storeError(w, r, err, "debts")
		return
	}

	total := decimal.Zero
	activeTotal := decimal.Zero
	views := make([]debtView, 0, len(debts))
	for _, d := range debts {
		total = total.Add(d.Remaining())
		if d.Active {
			activeTotal = activeTotal.Add(d.Remaining())
		}
		views = append(views, viewDebt(d))
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"debts":        views,
		"total":        total,
		"active_total": activeTotal,
	})
}

func (a *App) handleDebtCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := a.decodeDebtInput(w, r)
	if !ok {
		return
	}
	d, err := a.store.CreateDebt(r.Context(), in.debt())
	if err != nil {
		a.storeError(w, r, err, "debt")
		return
	}
	a.writeJSON(w, http.StatusCreated, viewDebt(d))
}

func (a *App) handleDebtView(w http.ResponseWriter, r *http.Request) {
	d, err := a.store.GetDebt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, r, err, "debt")
		return
	}
	a.writeJSON(w, http.StatusOK, viewDebt(d))
}

func (a *App) handleDebtUpdate(w http.ResponseWriter, r *http.Request) {
	in, ok := a.decodeDebtInput(w, r)
	if !ok {
		return
	}
	d := in.debt()
	d.ID = chi.URLParam(r, "id")
	updated, err := a.store.UpdateDebt(r.Context(), d)
	if err != nil {
		a.storeError(w, r, err, "debt")
		return
	}
	a.writeJSON(w, http.StatusOK, viewDebt(updated))
}

func (a *App) handleDebtDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteDebt(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.storeError(w, r, err, "debt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleDebtToggle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Active == nil {
		a.writeError(w, http.StatusBadRequest, "active flag is required")
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.store.SetDebtActive(r.Context(), id, *body.Active); err != nil {
		a.storeError(w, r, err, "debt")
		return
	}
	d, err := a.store.GetDebt(r.Context(), id)
	if err != nil {
		a.storeError(w, r, err, "debt")
		return
	}
	a.writeJSON(w, http.StatusOK, viewDebt(d))
}
