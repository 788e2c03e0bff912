package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetcal/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// DSN adds the connection pragmas every connection needs.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(timeLayout)
}

// withTx runs fn inside a transaction, rolling back on error.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func nullDate(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.String()
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseDate(ns sql.NullString) (core.Date, error) {
	if !ns.Valid || ns.String == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(ns.String)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func notFound(kind string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", kind, id, err)
}

// Accounts

const accountColumns = `id, user_id, name, type, balance, currency, include_in_calculations, is_active, updated_at`

func scanAccount(s scanner) (core.Account, error) {
	var a core.Account
	var updated string
	err := s.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance, &a.Currency,
		&a.IncludeInCalculations, &a.IsActive, &updated)
	a.UpdatedAt = parseTime(updated)
	return a, err
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a *core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Currency == "" {
		a.Currency = core.DefaultCurrency
	}
	now := r.stamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, type, balance, currency, include_in_calculations, is_active, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Name, string(a.Type), a.Balance, a.Currency, a.IncludeInCalculations, a.IsActive, now)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("account id: %w", err)
	}
	a.UpdatedAt = parseTime(now)
	return nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()
	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateAccountBalance(ctx context.Context, userID, accountID int64, balance decimal.Decimal, day core.Date) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
			balance, r.stamp(), accountID, userID)
		if err != nil {
			return fmt.Errorf("update account balance: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("account %d: %w", accountID, core.ErrNotFound)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_balance_history (account_id, date, balance) VALUES (?, ?, ?)
			 ON CONFLICT (account_id, date) DO UPDATE SET balance = excluded.balance`,
			accountID, day.String(), balance)
		if err != nil {
			return fmt.Errorf("record balance history: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) ListBalanceHistory(ctx context.Context, accountID int64) ([]core.AccountBalance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id, date, balance FROM account_balance_history WHERE account_id = ? ORDER BY date`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query balance history: %w", err)
	}
	defer rows.Close()
	var out []core.AccountBalance
	for rows.Next() {
		var b core.AccountBalance
		var day sql.NullString
		if err := rows.Scan(&b.AccountID, &day, &b.Balance); err != nil {
			return nil, fmt.Errorf("scan balance history: %w", err)
		}
		if b.Date, err = parseDate(day); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Categories

func (r *SQLiteRepository) GetOrCreateCategory(ctx context.Context, userID int64, name string) (core.Category, error) {
	c := core.Category{UserID: userID, Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name) VALUES (?, ?) ON CONFLICT (user_id, name) DO NOTHING`,
		userID, c.Name)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	err = r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, color, icon FROM categories WHERE user_id = ? AND name = ?`,
		userID, c.Name).Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.Icon)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %q: %w", c.Name, err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, color, icon FROM categories WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Transactions

const transactionColumns = `id, user_id, external_id, date, amount, description, is_extra, source,
	recurring_expense_id, category_id, account_id, notes, created_at, updated_at`

func scanTransaction(s scanner) (core.Transaction, error) {
	var t core.Transaction
	var externalID, day sql.NullString
	var recurringID, categoryID, accountID sql.NullInt64
	var created, updated string
	err := s.Scan(&t.ID, &t.UserID, &externalID, &day, &t.Amount, &t.Description, &t.IsExtra, &t.Source,
		&recurringID, &categoryID, &accountID, &t.Notes, &created, &updated)
	if err != nil {
		return t, err
	}
	if t.Date, err = parseDate(day); err != nil {
		return t, err
	}
	t.ExternalID = externalID.String
	t.RecurringExpenseID = recurringID.Int64
	t.CategoryID = categoryID.Int64
	t.AccountID = accountID.Int64
	t.CreatedAt, t.UpdatedAt = parseTime(created), parseTime(updated)
	return t, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLiteRepository) insertTransaction(ctx context.Context, db execer, t *core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	now := r.stamp()
	res, err := db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, external_id, date, week_start_date, amount, description, is_extra, source,
			recurring_expense_id, category_id, account_id, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, nullString(t.ExternalID), t.Date.String(), t.WeekStart().String(), t.Amount, t.Description,
		t.IsExtra, string(t.Source), nullInt(t.RecurringExpenseID), nullInt(t.CategoryID), nullInt(t.AccountID),
		t.Notes, now, now)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	t.CreatedAt = parseTime(now)
	t.UpdatedAt = t.CreatedAt
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	return r.insertTransaction(ctx, r.db, t)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound("transaction", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, from, to core.Date) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date, id`,
		userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Recurring expenses

const recurringColumns = `id, user_id, name, amount, frequency, next_date, start_date, end_date, is_active, notes, created_at`

func scanRecurring(s scanner) (core.RecurringExpense, error) {
	var e core.RecurringExpense
	var next, start, end sql.NullString
	var created string
	err := s.Scan(&e.ID, &e.UserID, &e.Name, &e.Amount, &e.Frequency, &next, &start, &end,
		&e.IsActive, &e.Notes, &created)
	if err != nil {
		return e, err
	}
	if e.NextDate, err = parseDate(next); err != nil {
		return e, err
	}
	if e.StartDate, err = parseDate(start); err != nil {
		return e, err
	}
	if e.EndDate, err = parseDate(end); err != nil {
		return e, err
	}
	e.CreatedAt = parseTime(created)
	return e, nil
}

func (r *SQLiteRepository) queryRecurring(ctx context.Context, where string, args ...any) ([]core.RecurringExpense, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recurringColumns+` FROM recurring_expenses WHERE `+where+` ORDER BY next_date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query recurring expenses: %w", err)
	}
	defer rows.Close()
	var out []core.RecurringExpense
	for rows.Next() {
		e, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, tx *sql.Tx, h core.RecurringExpenseHistory, stamp string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO recurring_expense_history (expense_id, name, amount, frequency, effective_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		h.ExpenseID, h.Name, h.Amount, string(h.Frequency), h.EffectiveDate.String(), stamp)
	if err != nil {
		return fmt.Errorf("insert recurring history: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateRecurring(ctx context.Context, e *core.RecurringExpense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	now := r.stamp()
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO recurring_expenses (user_id, name, amount, frequency, next_date, start_date, end_date, is_active, notes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.UserID, e.Name, e.Amount, string(e.Frequency), e.NextDate.String(), e.StartDate.String(),
			nullDate(e.EndDate), e.IsActive, e.Notes, now)
		if err != nil {
			return fmt.Errorf("insert recurring expense: %w", err)
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("recurring expense id: %w", err)
		}
		return insertHistory(ctx, tx, e.HistoryEntry(e.StartDate), now)
	})
	if err != nil {
		return err
	}
	e.CreatedAt = parseTime(now)

	slog.InfoContext(ctx, "Recurring expense saved to SQLite",
		"id", e.ID,
		"name", e.Name,
		"amount", core.FormatMoney(e.Amount),
		"frequency", e.Frequency)
	return nil
}

func (r *SQLiteRepository) GetRecurring(ctx context.Context, userID, id int64) (core.RecurringExpense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanRecurring(row)
	if err != nil {
		return core.RecurringExpense{}, notFound("recurring expense", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListActiveRecurring(ctx context.Context, userID int64) ([]core.RecurringExpense, error) {
	return r.queryRecurring(ctx, `user_id = ? AND is_active = 1`, userID)
}

func (r *SQLiteRepository) ListDueRecurring(ctx context.Context, day core.Date) ([]core.RecurringExpense, error) {
	return r.queryRecurring(ctx, `is_active = 1 AND next_date <= ?`, day.String())
}

func (r *SQLiteRepository) UpdateRecurringAmount(ctx context.Context, userID, id int64, amount decimal.Decimal, effective core.Date) (core.RecurringExpense, error) {
	var updated core.RecurringExpense
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE recurring_expenses SET amount = ? WHERE id = ? AND user_id = ?`, amount, id, userID)
		if err != nil {
			return fmt.Errorf("update recurring amount: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("recurring expense %d: %w", id, core.ErrNotFound)
		}
		row := tx.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring_expenses WHERE id = ?`, id)
		if updated, err = scanRecurring(row); err != nil {
			return fmt.Errorf("reload recurring expense: %w", err)
		}
		return insertHistory(ctx, tx, updated.HistoryEntry(effective), r.stamp())
	})
	return updated, err
}

func (r *SQLiteRepository) MaterializeOccurrence(ctx context.Context, expenseID int64, next core.Date, t *core.Transaction) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if t != nil {
			if err := r.insertTransaction(ctx, tx, t); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE recurring_expenses SET next_date = ? WHERE id = ?`, next.String(), expenseID)
		if err != nil {
			return fmt.Errorf("advance next date: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("recurring expense %d: %w", expenseID, core.ErrNotFound)
		}
		return nil
	})
}

func (r *SQLiteRepository) DeactivateRecurring(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_expenses SET is_active = 0 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deactivate recurring expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recurring expense %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) queryHistory(ctx context.Context, query string, arg int64) ([]core.RecurringExpenseHistory, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query recurring history: %w", err)
	}
	defer rows.Close()
	var out []core.RecurringExpenseHistory
	for rows.Next() {
		var h core.RecurringExpenseHistory
		var eff sql.NullString
		var created string
		if err := rows.Scan(&h.ID, &h.ExpenseID, &h.Name, &h.Amount, &h.Frequency, &eff, &created); err != nil {
			return nil, fmt.Errorf("scan recurring history: %w", err)
		}
		if h.EffectiveDate, err = parseDate(eff); err != nil {
			return nil, err
		}
		h.CreatedAt = parseTime(created)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListHistory(ctx context.Context, expenseID int64) ([]core.RecurringExpenseHistory, error) {
	return r.queryHistory(ctx,
		`SELECT id, expense_id, name, amount, frequency, effective_date, created_at
		 FROM recurring_expense_history WHERE expense_id = ? ORDER BY effective_date, id`, expenseID)
}

func (r *SQLiteRepository) ListHistoryByUser(ctx context.Context, userID int64) ([]core.RecurringExpenseHistory, error) {
	return r.queryHistory(ctx,
		`SELECT h.id, h.expense_id, h.name, h.amount, h.frequency, h.effective_date, h.created_at
		 FROM recurring_expense_history h JOIN recurring_expenses e ON e.id = h.expense_id
		 WHERE e.user_id = ? ORDER BY h.expense_id, h.effective_date, h.id`, userID)
}

// Forecasts

const forecastColumns = `id, user_id, name, target_date, projected_balance, recurring_expenses_snapshot, created_at, last_calculated`

func scanForecast(s scanner) (core.TargetDateForecast, error) {
	var f core.TargetDateForecast
	var target sql.NullString
	var snapshot, created, calculated string
	err := s.Scan(&f.ID, &f.UserID, &f.Name, &target, &f.ProjectedBalance, &snapshot, &created, &calculated)
	if err != nil {
		return f, err
	}
	if f.TargetDate, err = parseDate(target); err != nil {
		return f, err
	}
	if err := json.Unmarshal([]byte(snapshot), &f.Snapshot); err != nil {
		return f, fmt.Errorf("decode snapshot: %w", err)
	}
	f.CreatedAt, f.LastCalculated = parseTime(created), parseTime(calculated)
	return f, nil
}

func (r *SQLiteRepository) UpsertForecast(ctx context.Context, f *core.TargetDateForecast) error {
	snapshot, err := json.Marshal(f.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if f.Snapshot == nil {
		snapshot = []byte("[]")
	}
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO target_date_forecasts (user_id, name, target_date, projected_balance, recurring_expenses_snapshot, created_at, last_calculated)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, target_date) DO UPDATE SET
			name = excluded.name,
			projected_balance = excluded.projected_balance,
			recurring_expenses_snapshot = excluded.recurring_expenses_snapshot,
			last_calculated = excluded.last_calculated
		 RETURNING id, created_at`,
		f.UserID, f.Name, f.TargetDate.String(), f.ProjectedBalance, string(snapshot),
		f.CreatedAt.UTC().Format(timeLayout), f.LastCalculated.UTC().Format(timeLayout))
	var created string
	if err := row.Scan(&f.ID, &created); err != nil {
		return fmt.Errorf("upsert forecast: %w", err)
	}
	f.CreatedAt = parseTime(created)
	return nil
}

func (r *SQLiteRepository) ListForecasts(ctx context.Context, userID int64) ([]core.TargetDateForecast, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+forecastColumns+` FROM target_date_forecasts WHERE user_id = ? ORDER BY target_date`, userID)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()
	var out []core.TargetDateForecast
	for rows.Next() {
		f, err := scanForecast(rows)
		if err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetForecast(ctx context.Context, userID, id int64) (core.TargetDateForecast, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+forecastColumns+` FROM target_date_forecasts WHERE id = ? AND user_id = ?`, id, userID)
	f, err := scanForecast(row)
	if err != nil {
		return core.TargetDateForecast{}, notFound("forecast", id, err)
	}
	return f, nil
}

func (r *SQLiteRepository) DeleteForecast(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM target_date_forecasts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete forecast: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("forecast %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListForecastUsers(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM target_date_forecasts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query forecast users: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan forecast user: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
