package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type paymentInput struct {
	PaidOn string          `json:"paid_on"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

// payment validates the input; an empty paid_on means today.
func (in paymentInput) payment(today time.Time) (Payment, error) {
	paidOn := today.UTC().Truncate(24 * time.Hour)
	if in.PaidOn != "" {
		t, err := time.Parse("2006-01-02", in.PaidOn)
		if err != nil {
			return Payment{}, errors.New("paid_on must be YYYY-MM-DD")
		}
		paidOn = t
	}
	amount := in.Amount.Round(2)
	if !amount.IsPositive() {
		return Payment{}, errors.New("amount must be greater than zero")
	}
	return Payment{PaidOn: paidOn, Amount: amount, Note: strings.TrimSpace(in.Note)}, nil
}

func (a *App) decodePayment(w http.ResponseWriter, r *http.Request) (Payment, bool) {
	var in paymentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return Payment{}, false
	}
	p, err := in.payment(a.now())
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return Payment{}, false
	}
	return p, true
}

func (a *App) handlePayments(w http.ResponseWriter, r *http.Request) {
	payments, err := a.store.ListAllPayments(r.Context())
	if err != nil {
		a.storeError(w, r, err, "payments")
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (a *App) handlePaymentList(w http.ResponseWriter, r *http.Request) {
	payments, err := a.store.ListPayments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, r, err, "debt")
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (a *App) handlePaymentAdd(w http.ResponseWriter, r *http.Request) {
	p, ok := a.decodePayment(w, r)
	if !ok {
		return
	}
	p.DebtID = chi.URLParam(r, "id")
	created, err := a.store.AddPayment(r.Context(), p)
	if err != nil {
		a.storeError(w, r, err, "debt")
		return
	}
	a.writeJSON(w, http.StatusCreated, created)
}

func (a *App) handlePaymentUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := a.decodePayment(w, r)
	if !ok {
		return
	}
	p.ID = chi.URLParam(r, "id")
	updated, err := a.store.UpdatePayment(r.Context(), p)
	if err != nil {
		a.storeError(w, r, err, "payment")
		return
	}
	a.writeJSON(w, http.StatusOK, updated)
}

func (a *App) handlePaymentDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeletePayment(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.storeError(w, r, err, "payment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
