package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"finance-manager/payoff"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrOverpayment = errors.New("payment exceeds the remaining balance")
)

func openDB(cfg Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if cfg.DBMaxOpen > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpen)
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS debts (
  id UUID PRIMARY KEY,
  name TEXT NOT NULL,
  kind TEXT NOT NULL,
  total_amount NUMERIC(14,2) NOT NULL CHECK (total_amount >= 0),
  amount_paid NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (amount_paid >= 0),
  interest_rate NUMERIC(7,4) NOT NULL CHECK (interest_rate >= 0),
  min_payment NUMERIC(14,2) NOT NULL CHECK (min_payment >= 0),
  payment_day INTEGER NOT NULL CHECK (payment_day >= 1 AND payment_day <= 31),
  notes TEXT NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS debt_payments (
  id UUID PRIMARY KEY,
  debt_id UUID NOT NULL,
  paid_on DATE NOT NULL,
  amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
  note TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  FOREIGN KEY (debt_id) REFERENCES debts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_debt_payments_debt ON debt_payments(debt_id);
`
	_, err := db.ExecContext(ctx, schema)
	return errors.Wrap(err, "migrate schema")
}

type Debt struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Kind         string          `json:"kind"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	MinPayment   decimal.Decimal `json:"min_payment"`
	PaymentDay   int             `json:"payment_day"`
	Notes        string          `json:"notes"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Remaining is what is still owed; overpayment never yields a negative balance.
func (d Debt) Remaining() decimal.Decimal {
	r := d.TotalAmount.Sub(d.AmountPaid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func (d Debt) payoffDebt() payoff.Debt {
	return payoff.Debt{
		ID:                 d.ID,
		Name:               d.Name,
		RemainingBalance:   d.Remaining().InexactFloat64(),
		AnnualInterestRate: d.InterestRate.InexactFloat64(),
		MinimumPayment:     d.MinPayment.InexactFloat64(),
	}
}

type Payment struct {
	ID        string          `json:"id"`
	DebtID    string          `json:"debt_id"`
	PaidOn    time.Time       `json:"paid_on"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note"`
	CreatedAt time.Time       `json:"created_at"`
}

type DebtFilter struct {
	Query  string // case-insensitive name substring
	Kind   string
	Status string // active, closed, or anything else for all
	Sort   string
}

type PaymentWithDebt struct {
	Payment
	DebtName string `json:"debt_name"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const debtColumns = `id, name, kind, total_amount, amount_paid, interest_rate, min_payment, payment_day, notes, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDebt(row rowScanner) (Debt, error) {
	var d Debt
	err := row.Scan(&d.ID, &d.Name, &d.Kind, &d.TotalAmount, &d.AmountPaid, &d.InterestRate,
		&d.MinPayment, &d.PaymentDay, &d.Notes, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (s *Store) ListDebts(ctx context.Context, f DebtFilter) ([]Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE TRUE`
	var args []any
	n := 1

	if f.Query != "" {
		query += fmt.Sprintf(" AND name ILIKE $%d", n)
		args = append(args, "%"+f.Query+"%")
		n++
	}

	if f.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", n)
		args = append(args, f.Kind)
		n++
	}

	switch f.Status {
	case "active":
		query += " AND active = TRUE"
	case "closed":
		query += " AND active = FALSE"
	}

	switch f.Sort {
	case "name_asc":
		query += " ORDER BY name ASC"
	case "name_desc":
		query += " ORDER BY name DESC"
	case "balance_asc":
		query += " ORDER BY GREATEST(total_amount - amount_paid, 0) ASC"
	case "balance_desc":
		query += " ORDER BY GREATEST(total_amount - amount_paid, 0) DESC"
	case "rate_asc":
		query += " ORDER BY interest_rate ASC"
	case "rate_desc":
		query += " ORDER BY interest_rate DESC"
	case "min_asc":
		query += " ORDER BY min_payment ASC"
	case "min_desc":
		query += " ORDER BY min_payment DESC"
	case "day_asc":
		query += " ORDER BY payment_day ASC"
	case "day_desc":
		query += " ORDER BY payment_day DESC"
	default:
		query += " ORDER BY active DESC, name ASC"
	}
	// created_at keeps equal sort keys in insertion order
	query += ", created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list debts")
	}
	defer rows.Close()

	out := make([]Debt, 0)
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan debt")
		}
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "list debts")
}

func (s *Store) GetDebt(ctx context.Context, id string) (Debt, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Debt{}, ErrNotFound
	}
	d, err := scanDebt(s.db.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Debt{}, ErrNotFound
	}
	if err != nil {
		return Debt{}, errors.Wrapf(err, "get debt %s", id)
	}
	return d, nil
}

func (s *Store) CreateDebt(ctx context.Context, d Debt) (Debt, error) {
	now := time.Now().UTC()
	d.ID = uuid.NewString()
	d.Active = true
	d.CreatedAt = now
	d.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
INSERT INTO debts(id, name, kind, total_amount, amount_paid, interest_rate, min_payment, payment_day, notes, active, created_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE,$10,$10)`,
		d.ID, d.Name, d.Kind, d.TotalAmount, d.AmountPaid, d.InterestRate, d.MinPayment, d.PaymentDay, d.Notes, now)
	if err != nil {
		return Debt{}, errors.Wrap(err, "create debt")
	}
	return d, nil
}

// UpdateDebt rewrites the editable fields. amount_paid is owned by the payment log.
func (s *Store) UpdateDebt(ctx context.Context, d Debt) (Debt, error) {
	if _, err := uuid.Parse(d.ID); err != nil {
		return Debt{}, ErrNotFound
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
UPDATE debts
SET name = $1, kind = $2, total_amount = $3, interest_rate = $4, min_payment = $5, payment_day = $6, notes = $7, updated_at = $8
WHERE id = $9`,
		d.Name, d.Kind, d.TotalAmount, d.InterestRate, d.MinPayment, d.PaymentDay, d.Notes, now, d.ID)
	if err := affectedOne(res, err, "update debt"); err != nil {
		return Debt{}, err
	}
	return s.GetDebt(ctx, d.ID)
}

func (s *Store) SetDebtActive(ctx context.Context, id string, active bool) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE debts SET active = $1, updated_at = $2 WHERE id = $3`, active, now, id)
	return affectedOne(res, err, "set debt active")
}

func (s *Store) DeleteDebt(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM debts WHERE id = $1`, id)
	return affectedOne(res, err, "delete debt")
}

func (s *Store) ListPayments(ctx context.Context, debtID string) ([]Payment, error) {
	if _, err := s.GetDebt(ctx, debtID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, debt_id, paid_on, amount, note, created_at
FROM debt_payments
WHERE debt_id = $1
ORDER BY paid_on DESC, created_at DESC`, debtID)
	if err != nil {
		return nil, errors.Wrap(err, "list payments")
	}
	defer rows.Close()

	out := make([]Payment, 0)
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.DebtID, &p.PaidOn, &p.Amount, &p.Note, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan payment")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "list payments")
}

// lockRemaining locks the debt row for the rest of tx and returns what is still owed.
func lockRemaining(ctx context.Context, tx *sql.Tx, debtID string) (decimal.Decimal, error) {
	var remaining decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT GREATEST(total_amount - amount_paid, 0) FROM debts WHERE id = $1 FOR UPDATE`, debtID).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "lock debt")
	}
	return remaining, nil
}

// ListAllPayments returns every payment with its debt's name, newest first.
func (s *Store) ListAllPayments(ctx context.Context) ([]PaymentWithDebt, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT p.id, p.debt_id, p.paid_on, p.amount, p.note, p.created_at, d.name
FROM debt_payments p
JOIN debts d ON p.debt_id = d.id
ORDER BY p.paid_on DESC, p.created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list all payments")
	}
	defer rows.Close()

	out := make([]PaymentWithDebt, 0)
	for rows.Next() {
		var pwd PaymentWithDebt
		if err := rows.Scan(&pwd.ID, &pwd.DebtID, &pwd.PaidOn, &pwd.Amount, &pwd.Note, &pwd.CreatedAt, &pwd.DebtName); err != nil {
			return nil, errors.Wrap(err, "scan payment")
		}
		out = append(out, pwd)
	}
	return out, errors.Wrap(rows.Err(), "list all payments")
}

// AddPayment records a payment and bumps the debt's amount_paid in one transaction.
func (s *Store) AddPayment(ctx context.Context, p Payment) (Payment, error) {
	if _, err := uuid.Parse(p.DebtID); err != nil {
		return Payment{}, ErrNotFound
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Payment{}, errors.Wrap(err, "begin add payment")
	}
	defer tx.Rollback()

	remaining, err := lockRemaining(ctx, tx, p.DebtID)
	if err != nil {
		return Payment{}, err
	}
	if p.Amount.GreaterThan(remaining) {
		return Payment{}, ErrOverpayment
	}

	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
INSERT INTO debt_payments(id, debt_id, paid_on, amount, note, created_at)
VALUES($1,$2,$3,$4,$5,$6)`, p.ID, p.DebtID, p.PaidOn, p.Amount, p.Note, p.CreatedAt)
	if err != nil {
		return Payment{}, errors.Wrap(err, "insert payment")
	}

	if _, err := tx.ExecContext(ctx, `UPDATE debts SET amount_paid = amount_paid + $1, updated_at = $2 WHERE id = $3`,
		p.Amount, p.CreatedAt, p.DebtID); err != nil {
		return Payment{}, errors.Wrap(err, "apply payment")
	}

	return p, errors.Wrap(tx.Commit(), "commit add payment")
}

// UpdatePayment rewrites a payment and shifts the debt's amount_paid by the
// difference, refusing edits that would pay more than is owed.
func (s *Store) UpdatePayment(ctx context.Context, p Payment) (Payment, error) {
	if _, err := uuid.Parse(p.ID); err != nil {
		return Payment{}, ErrNotFound
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Payment{}, errors.Wrap(err, "begin update payment")
	}
	defer tx.Rollback()

	var old Payment
	err = tx.QueryRowContext(ctx, `
SELECT id, debt_id, paid_on, amount, note, created_at FROM debt_payments WHERE id = $1 FOR UPDATE`, p.ID).
		Scan(&old.ID, &old.DebtID, &old.PaidOn, &old.Amount, &old.Note, &old.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, errors.Wrap(err, "get payment")
	}

	remaining, err := lockRemaining(ctx, tx, old.DebtID)
	if err != nil {
		return Payment{}, err
	}
	delta := p.Amount.Sub(old.Amount)
	if delta.GreaterThan(remaining) {
		return Payment{}, ErrOverpayment
	}

	if _, err := tx.ExecContext(ctx, `UPDATE debt_payments SET paid_on = $1, amount = $2, note = $3 WHERE id = $4`,
		p.PaidOn, p.Amount, p.Note, p.ID); err != nil {
		return Payment{}, errors.Wrap(err, "update payment")
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE debts SET amount_paid = GREATEST(amount_paid + $1, 0), updated_at = $2 WHERE id = $3`,
		delta, now, old.DebtID); err != nil {
		return Payment{}, errors.Wrap(err, "adjust amount paid")
	}

	if err := tx.Commit(); err != nil {
		return Payment{}, errors.Wrap(err, "commit update payment")
	}
	old.PaidOn = p.PaidOn
	old.Amount = p.Amount
	old.Note = p.Note
	return old, nil
}

// DeletePayment removes a payment and reverses it on the debt, flooring amount_paid at zero.
func (s *Store) DeletePayment(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin delete payment")
	}
	defer tx.Rollback()

	var debtID string
	var amount decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT debt_id, amount FROM debt_payments WHERE id = $1`, id).Scan(&debtID, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "get payment")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM debt_payments WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "delete payment")
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE debts SET amount_paid = GREATEST(amount_paid - $1, 0), updated_at = $2 WHERE id = $3`,
		amount, now, debtID); err != nil {
		return errors.Wrap(err, "reverse payment")
	}

	return errors.Wrap(tx.Commit(), "commit delete payment")
}

func affectedOne(res sql.Result, err error, op string) error {
	if err != nil {
		return errors.Wrap(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, op)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
