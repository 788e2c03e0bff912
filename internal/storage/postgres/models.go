package postgres

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"budgetcal/internal/core"
)

type accountModel struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID                    int64           `bun:",pk,autoincrement"`
	UserID                int64           `bun:",notnull"`
	Name                  string          `bun:",notnull"`
	Type                  string          `bun:",notnull"`
	Balance               decimal.Decimal `bun:"type:numeric(14,2),notnull"`
	Currency              string          `bun:",notnull"`
	IncludeInCalculations bool            `bun:",notnull"`
	IsActive              bool            `bun:",notnull"`
	UpdatedAt             time.Time       `bun:",notnull"`
}

type balanceModel struct {
	bun.BaseModel `bun:"table:account_balance_history,alias:abh"`

	ID        int64           `bun:",pk,autoincrement"`
	AccountID int64           `bun:",notnull,unique:account_day"`
	Date      time.Time       `bun:"type:date,notnull,unique:account_day"`
	Balance   decimal.Decimal `bun:"type:numeric(14,2),notnull"`
}

type categoryModel struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID     int64  `bun:",pk,autoincrement"`
	UserID int64  `bun:",notnull,unique:user_name"`
	Name   string `bun:",notnull,unique:user_name"`
	Color  string `bun:",notnull"`
	Icon   string `bun:",notnull"`
}

type transactionModel struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID                 int64           `bun:",pk,autoincrement"`
	UserID             int64           `bun:",notnull"`
	ExternalID         string          `bun:",nullzero"`
	Date               time.Time       `bun:"type:date,notnull"`
	WeekStartDate      time.Time       `bun:"type:date,notnull"`
	Amount             decimal.Decimal `bun:"type:numeric(14,2),notnull"`
	Description        string          `bun:",notnull"`
	IsExtra            bool            `bun:",notnull"`
	Source             string          `bun:",notnull"`
	RecurringExpenseID int64           `bun:",nullzero"`
	CategoryID         int64           `bun:",nullzero"`
	AccountID          int64           `bun:",nullzero"`
	Notes              string          `bun:",notnull"`
	CreatedAt          time.Time       `bun:",notnull"`
	UpdatedAt          time.Time       `bun:",notnull"`
}

type recurringModel struct {
	bun.BaseModel `bun:"table:recurring_expenses,alias:re"`

	ID        int64           `bun:",pk,autoincrement"`
	UserID    int64           `bun:",notnull"`
	Name      string          `bun:",notnull"`
	Amount    decimal.Decimal `bun:"type:numeric(14,2),notnull"`
	Frequency string          `bun:",notnull"`
	NextDate  time.Time       `bun:"type:date,notnull"`
	StartDate time.Time       `bun:"type:date,notnull"`
	EndDate   time.Time       `bun:"type:date,nullzero"`
	IsActive  bool            `bun:",notnull"`
	Notes     string          `bun:",notnull"`
	CreatedAt time.Time       `bun:",notnull"`
}

type historyModel struct {
	bun.BaseModel `bun:"table:recurring_expense_history,alias:reh"`

	ID            int64           `bun:",pk,autoincrement"`
	ExpenseID     int64           `bun:",notnull"`
	Name          string          `bun:",notnull"`
	Amount        decimal.Decimal `bun:"type:numeric(14,2),notnull"`
	Frequency     string          `bun:",notnull"`
	EffectiveDate time.Time       `bun:"type:date,notnull"`
	CreatedAt     time.Time       `bun:",notnull"`
}

type forecastModel struct {
	bun.BaseModel `bun:"table:target_date_forecasts,alias:f"`

	ID               int64                  `bun:",pk,autoincrement"`
	UserID           int64                  `bun:",notnull,unique:user_target"`
	Name             string                 `bun:",notnull"`
	TargetDate       time.Time              `bun:"type:date,notnull,unique:user_target"`
	ProjectedBalance decimal.Decimal        `bun:"type:numeric(14,2),notnull"`
	Snapshot         []core.ExpenseSnapshot `bun:"recurring_expenses_snapshot,type:jsonb,notnull"`
	CreatedAt        time.Time              `bun:",notnull"`
	LastCalculated   time.Time              `bun:",notnull"`
}

func accountFromCore(a core.Account) accountModel {
	return accountModel{
		ID: a.ID, UserID: a.UserID, Name: a.Name, Type: string(a.Type), Balance: a.Balance,
		Currency: a.Currency, IncludeInCalculations: a.IncludeInCalculations, IsActive: a.IsActive,
		UpdatedAt: a.UpdatedAt,
	}
}

func (m accountModel) toCore() core.Account {
	return core.Account{
		ID: m.ID, UserID: m.UserID, Name: m.Name, Type: core.AccountType(m.Type), Balance: m.Balance,
		Currency: m.Currency, IncludeInCalculations: m.IncludeInCalculations, IsActive: m.IsActive,
		UpdatedAt: m.UpdatedAt,
	}
}

func (m categoryModel) toCore() core.Category {
	return core.Category{ID: m.ID, UserID: m.UserID, Name: m.Name, Color: m.Color, Icon: m.Icon}
}

func transactionFromCore(t core.Transaction) transactionModel {
	return transactionModel{
		ID: t.ID, UserID: t.UserID, ExternalID: t.ExternalID, Date: t.Date.Time,
		WeekStartDate: t.WeekStart().Time, Amount: t.Amount, Description: t.Description,
		IsExtra: t.IsExtra, Source: string(t.Source), RecurringExpenseID: t.RecurringExpenseID,
		CategoryID: t.CategoryID, AccountID: t.AccountID, Notes: t.Notes,
		CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func (m transactionModel) toCore() core.Transaction {
	return core.Transaction{
		ID: m.ID, UserID: m.UserID, ExternalID: m.ExternalID, Date: core.DateOf(m.Date),
		Amount: m.Amount, Description: m.Description, IsExtra: m.IsExtra,
		Source: core.TransactionSource(m.Source), RecurringExpenseID: m.RecurringExpenseID,
		CategoryID: m.CategoryID, AccountID: m.AccountID, Notes: m.Notes,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func recurringFromCore(e core.RecurringExpense) recurringModel {
	return recurringModel{
		ID: e.ID, UserID: e.UserID, Name: e.Name, Amount: e.Amount, Frequency: string(e.Frequency),
		NextDate: e.NextDate.Time, StartDate: e.StartDate.Time, EndDate: e.EndDate.Time,
		IsActive: e.IsActive, Notes: e.Notes, CreatedAt: e.CreatedAt,
	}
}

func (m recurringModel) toCore() core.RecurringExpense {
	return core.RecurringExpense{
		ID: m.ID, UserID: m.UserID, Name: m.Name, Amount: m.Amount, Frequency: core.Frequency(m.Frequency),
		NextDate: core.DateOf(m.NextDate), StartDate: core.DateOf(m.StartDate), EndDate: core.DateOf(m.EndDate),
		IsActive: m.IsActive, Notes: m.Notes, CreatedAt: m.CreatedAt,
	}
}

func historyFromCore(h core.RecurringExpenseHistory) historyModel {
	return historyModel{
		ID: h.ID, ExpenseID: h.ExpenseID, Name: h.Name, Amount: h.Amount,
		Frequency: string(h.Frequency), EffectiveDate: h.EffectiveDate.Time, CreatedAt: h.CreatedAt,
	}
}

func (m historyModel) toCore() core.RecurringExpenseHistory {
	return core.RecurringExpenseHistory{
		ID: m.ID, ExpenseID: m.ExpenseID, Name: m.Name, Amount: m.Amount,
		Frequency: core.Frequency(m.Frequency), EffectiveDate: core.DateOf(m.EffectiveDate), CreatedAt: m.CreatedAt,
	}
}

func forecastFromCore(f core.TargetDateForecast) forecastModel {
	snapshot := f.Snapshot
	if snapshot == nil {
		snapshot = []core.ExpenseSnapshot{}
	}
	return forecastModel{
		ID: f.ID, UserID: f.UserID, Name: f.Name, TargetDate: f.TargetDate.Time,
		ProjectedBalance: f.ProjectedBalance, Snapshot: snapshot,
		CreatedAt: f.CreatedAt, LastCalculated: f.LastCalculated,
	}
}

func (m forecastModel) toCore() core.TargetDateForecast {
	return core.TargetDateForecast{
		ID: m.ID, UserID: m.UserID, Name: m.Name, TargetDate: core.DateOf(m.TargetDate),
		ProjectedBalance: m.ProjectedBalance, Snapshot: m.Snapshot,
		CreatedAt: m.CreatedAt, LastCalculated: m.LastCalculated,
	}
}
