// Package postgres is the PostgreSQL data backend, built on bun.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"budgetcal/internal/core"
	"budgetcal/internal/storage"
)

var _ storage.Repository = (*Repository)(nil)

type Repository struct {
	db  *bun.DB
	now func() time.Time
}

// Open connects to dsn and creates any missing tables.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("missing postgres dsn")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	r := &Repository{db: db, now: time.Now}
	if err := r.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	slog.InfoContext(ctx, "PostgreSQL backend ready")
	return r, nil
}

func (r *Repository) createSchema(ctx context.Context) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		tables := []struct {
			model any
			fk    string
		}{
			{(*accountModel)(nil), ""},
			{(*balanceModel)(nil), `("account_id") REFERENCES "accounts" ("id") ON DELETE CASCADE`},
			{(*categoryModel)(nil), ""},
			{(*recurringModel)(nil), ""},
			{(*historyModel)(nil), `("expense_id") REFERENCES "recurring_expenses" ("id") ON DELETE CASCADE`},
			{(*transactionModel)(nil), ""},
			{(*forecastModel)(nil), ""},
		}
		for _, t := range tables {
			q := tx.NewCreateTable().Model(t.model).IfNotExists()
			if t.fk != "" {
				q = q.ForeignKey(t.fk)
			}
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("create table %T: %w", t.model, err)
			}
		}

		indexes := []*bun.CreateIndexQuery{
			tx.NewCreateIndex().Model((*transactionModel)(nil)).Index("idx_transactions_user_date").
				Column("user_id", "date").IfNotExists(),
			tx.NewCreateIndex().Model((*transactionModel)(nil)).Index("idx_transactions_external").
				Unique().Column("user_id", "external_id").Where("external_id IS NOT NULL").IfNotExists(),
			tx.NewCreateIndex().Model((*recurringModel)(nil)).Index("idx_recurring_due").
				Column("is_active", "next_date").IfNotExists(),
			tx.NewCreateIndex().Model((*historyModel)(nil)).Index("idx_history_expense").
				Column("expense_id", "effective_date").IfNotExists(),
		}
		for _, q := range indexes {
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("create index: %w", err)
			}
		}
		return nil
	})
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) stamp() time.Time {
	return r.now().UTC()
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", what, id, err)
}

func affected(res sql.Result, what string, id int64) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, core.ErrNotFound)
	}
	return nil
}

// Accounts

func (r *Repository) CreateAccount(ctx context.Context, a *core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Currency == "" {
		a.Currency = core.DefaultCurrency
	}
	a.UpdatedAt = r.stamp()
	m := accountFromCore(*a)
	if _, err := r.db.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	a.ID = m.ID
	return nil
}

func (r *Repository) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	var rows []accountModel
	if err := r.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	out := make([]core.Account, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toCore())
	}
	return out, nil
}

func (r *Repository) UpdateAccountBalance(ctx context.Context, userID, accountID int64, balance decimal.Decimal, day core.Date) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*accountModel)(nil)).
			Set("balance = ?", balance).
			Set("updated_at = ?", r.stamp()).
			Where("id = ? AND user_id = ?", accountID, userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update account balance: %w", err)
		}
		if err := affected(res, "account", accountID); err != nil {
			return err
		}
		b := balanceModel{AccountID: accountID, Date: day.Time, Balance: balance}
		_, err = tx.NewInsert().Model(&b).
			On("CONFLICT (account_id, date) DO UPDATE").
			Set("balance = EXCLUDED.balance").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("record balance history: %w", err)
		}
		return nil
	})
}

func (r *Repository) ListBalanceHistory(ctx context.Context, accountID int64) ([]core.AccountBalance, error) {
	var rows []balanceModel
	if err := r.db.NewSelect().Model(&rows).Where("account_id = ?", accountID).Order("date").Scan(ctx); err != nil {
		return nil, fmt.Errorf("query balance history: %w", err)
	}
	out := make([]core.AccountBalance, 0, len(rows))
	for _, m := range rows {
		out = append(out, core.AccountBalance{AccountID: m.AccountID, Date: core.DateOf(m.Date), Balance: m.Balance})
	}
	return out, nil
}

// Categories

func (r *Repository) findCategory(ctx context.Context, userID int64, name string) (categoryModel, error) {
	var m categoryModel
	err := r.db.NewSelect().Model(&m).
		Where("user_id = ? AND lower(name) = lower(?)", userID, name).
		Order("id").Limit(1).
		Scan(ctx)
	return m, err
}

// GetOrCreateCategory matches names case-insensitively.
func (r *Repository) GetOrCreateCategory(ctx context.Context, userID int64, name string) (core.Category, error) {
	c := core.Category{UserID: userID, Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	m, err := r.findCategory(ctx, userID, c.Name)
	if err == nil {
		return m.toCore(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("get category %q: %w", c.Name, err)
	}
	m = categoryModel{UserID: userID, Name: c.Name}
	if _, err := r.db.NewInsert().Model(&m).On("CONFLICT (user_id, name) DO NOTHING").Exec(ctx); err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	if m, err = r.findCategory(ctx, userID, c.Name); err != nil {
		return core.Category{}, fmt.Errorf("get category %q: %w", c.Name, err)
	}
	return m.toCore(), nil
}

func (r *Repository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	var rows []categoryModel
	if err := r.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toCore())
	}
	return out, nil
}

// Transactions

func (r *Repository) insertTransaction(ctx context.Context, db bun.IDB, t *core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	now := r.stamp()
	t.CreatedAt, t.UpdatedAt = now, now
	m := transactionFromCore(*t)
	if _, err := db.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.ID = m.ID
	return nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	return r.insertTransaction(ctx, r.db, t)
}

func (r *Repository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	var m transactionModel
	err := r.db.NewSelect().Model(&m).Where("id = ? AND user_id = ?", id, userID).Scan(ctx)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", id)
	}
	return m.toCore(), nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID int64, from, to core.Date) ([]core.Transaction, error) {
	var rows []transactionModel
	err := r.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		Where("date >= ?", from.Time).
		Where("date <= ?", to.Time).
		Order("date", "id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toCore())
	}
	return out, nil
}

// Recurring expenses

func (r *Repository) CreateRecurring(ctx context.Context, e *core.RecurringExpense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		e.CreatedAt = r.stamp()
		m := recurringFromCore(*e)
		if _, err := tx.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
			return fmt.Errorf("insert recurring expense: %w", err)
		}
		e.ID = m.ID
		h := historyFromCore(e.HistoryEntry(e.StartDate))
		h.CreatedAt = e.CreatedAt
		if _, err := tx.NewInsert().Model(&h).Exec(ctx); err != nil {
			return fmt.Errorf("insert recurring history: %w", err)
		}
		return nil
	})
}

func (r *Repository) selectRecurring(ctx context.Context, q func(*bun.SelectQuery) *bun.SelectQuery) ([]core.RecurringExpense, error) {
	var rows []recurringModel
	if err := q(r.db.NewSelect().Model(&rows)).Order("id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("query recurring expenses: %w", err)
	}
	out := make([]core.RecurringExpense, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toCore())
	}
	return out, nil
}

func (r *Repository) GetRecurring(ctx context.Context, userID, id int64) (core.RecurringExpense, error) {
	var m recurringModel
	if err := r.db.NewSelect().Model(&m).Where("id = ? AND user_id = ?", id, userID).Scan(ctx); err != nil {
		return core.RecurringExpense{}, notFound(err, "recurring expense", id)
	}
	return m.toCore(), nil
}

func (r *Repository) ListActiveRecurring(ctx context.Context, userID int64) ([]core.RecurringExpense, error) {
	return r.selectRecurring(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("user_id = ?", userID).Where("is_active")
	})
}

func (r *Repository) ListDueRecurring(ctx context.Context, day core.Date) ([]core.RecurringExpense, error) {
	return r.selectRecurring(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("is_active").Where("next_date <= ?", day.Time)
	})
}

func (r *Repository) UpdateRecurringAmount(ctx context.Context, userID, id int64, amount decimal.Decimal, effective core.Date) (core.RecurringExpense, error) {
	var out core.RecurringExpense
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m recurringModel
		err := tx.NewSelect().Model(&m).Where("id = ? AND user_id = ?", id, userID).For("UPDATE").Scan(ctx)
		if err != nil {
			return notFound(err, "recurring expense", id)
		}
		m.Amount = amount
		if _, err := tx.NewUpdate().Model(&m).Column("amount").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update recurring amount: %w", err)
		}
		out = m.toCore()
		h := historyFromCore(out.HistoryEntry(effective))
		h.CreatedAt = r.stamp()
		if _, err := tx.NewInsert().Model(&h).Exec(ctx); err != nil {
			return fmt.Errorf("insert recurring history: %w", err)
		}
		return nil
	})
	return out, err
}

func (r *Repository) MaterializeOccurrence(ctx context.Context, expenseID int64, next core.Date, t *core.Transaction) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if t != nil {
			if err := r.insertTransaction(ctx, tx, t); err != nil {
				return err
			}
		}
		res, err := tx.NewUpdate().Model((*recurringModel)(nil)).
			Set("next_date = ?", next.Time).
			Where("id = ?", expenseID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("advance next date: %w", err)
		}
		return affected(res, "recurring expense", expenseID)
	})
}

func (r *Repository) DeactivateRecurring(ctx context.Context, userID, id int64) error {
	res, err := r.db.NewUpdate().Model((*recurringModel)(nil)).
		Set("is_active = FALSE").
		Where("id = ? AND user_id = ?", id, userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deactivate recurring expense: %w", err)
	}
	return affected(res, "recurring expense", id)
}

func (r *Repository) selectHistory(ctx context.Context, where string, arg int64) ([]core.RecurringExpenseHistory, error) {
	var rows []historyModel
	if err := r.db.NewSelect().Model(&rows).Where(where, arg).Order("effective_date", "id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("query recurring history: %w", err)
	}
	out := make([]core.RecurringExpenseHistory, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toCore())
	}
	return out, nil
}

func (r *Repository) ListHistory(ctx context.Context, expenseID int64) ([]core.RecurringExpenseHistory, error) {
	return r.selectHistory(ctx, "expense_id = ?", expenseID)
}

func (r *Repository) ListHistoryByUser(ctx context.Context, userID int64) ([]core.RecurringExpenseHistory, error) {
	return r.selectHistory(ctx, "expense_id IN (SELECT id FROM recurring_expenses WHERE user_id = ?)", userID)
}

// Forecasts

// UpsertForecast inserts or replaces the forecast of the same user and target
// date. A replaced forecast keeps its id and creation time.
func (r *Repository) UpsertForecast(ctx context.Context, f *core.TargetDateForecast) error {
	m := forecastFromCore(*f)
	m.ID = 0
	err := r.db.NewInsert().Model(&m).
		On("CONFLICT (user_id, target_date) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("projected_balance = EXCLUDED.projected_balance").
		Set("recurring_expenses_snapshot = EXCLUDED.recurring_expenses_snapshot").
		Set("last_calculated = EXCLUDED.last_calculated").
		Returning("id, created_at").
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("upsert forecast: %w", err)
	}
	f.ID, f.CreatedAt = m.ID, m.CreatedAt
	return nil
}

func (r *Repository) ListForecasts(ctx context.Context, userID int64) ([]core.TargetDateForecast, error) {
	var rows []forecastModel
	if err := r.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("target_date", "id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	out := make([]core.TargetDateForecast, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toCore())
	}
	return out, nil
}

func (r *Repository) GetForecast(ctx context.Context, userID, id int64) (core.TargetDateForecast, error) {
	var m forecastModel
	if err := r.db.NewSelect().Model(&m).Where("id = ? AND user_id = ?", id, userID).Scan(ctx); err != nil {
		return core.TargetDateForecast{}, notFound(err, "forecast", id)
	}
	return m.toCore(), nil
}

func (r *Repository) DeleteForecast(ctx context.Context, userID, id int64) error {
	res, err := r.db.NewDelete().Model((*forecastModel)(nil)).Where("id = ? AND user_id = ?", id, userID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete forecast: %w", err)
	}
	return affected(res, "forecast", id)
}

func (r *Repository) ListForecastUsers(ctx context.Context) ([]int64, error) {
	var users []int64
	err := r.db.NewSelect().Model((*forecastModel)(nil)).
		ColumnExpr("DISTINCT user_id").
		Order("user_id").
		Scan(ctx, &users)
	if err != nil {
		return nil, fmt.Errorf("query forecast users: %w", err)
	}
	return users, nil
}
