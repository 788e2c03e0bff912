package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Weekly      Frequency = "weekly"
	Fortnightly Frequency = "fortnightly"
	Monthly     Frequency = "monthly"
	Quarterly   Frequency = "quarterly"
	Yearly      Frequency = "yearly"
)

const (
	SourceManual    TransactionSource = "manual"
	SourceExternal  TransactionSource = "external"
	SourceRecurring TransactionSource = "recurring"
)

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountLoan       AccountType = "loan"
	AccountInvestment AccountType = "investment"
)

// DefaultCurrency is used when an account is created without one.
const DefaultCurrency = "AUD"

type (
	Frequency         string
	TransactionSource string
	AccountType       string

	RecurringExpense struct {
		ID        int64           `json:"id"`
		UserID    int64           `json:"user_id"`
		Name      string          `json:"name"`
		Amount    decimal.Decimal `json:"amount"`
		Frequency Frequency       `json:"frequency"`
		NextDate  Date            `json:"next_date"`
		StartDate Date            `json:"start_date"`
		EndDate   Date            `json:"end_date"` // zero when open-ended
		IsActive  bool            `json:"is_active"`
		Notes     string          `json:"notes,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
	}

	// RecurringExpenseHistory is the version of a recurring expense in force
	// from EffectiveDate onwards. Rows are only ever appended.
	RecurringExpenseHistory struct {
		ID            int64           `json:"id"`
		ExpenseID     int64           `json:"expense_id"`
		Name          string          `json:"name"`
		Amount        decimal.Decimal `json:"amount"`
		Frequency     Frequency       `json:"frequency"`
		EffectiveDate Date            `json:"effective_date"`
		CreatedAt     time.Time       `json:"created_at"`
	}

	Transaction struct {
		ID                 int64             `json:"id"`
		UserID             int64             `json:"user_id"`
		ExternalID         string            `json:"external_id,omitempty"`
		Date               Date              `json:"date"`
		Amount             decimal.Decimal   `json:"amount"`
		Description        string            `json:"description"`
		IsExtra            bool              `json:"is_extra"`
		Source             TransactionSource `json:"source"`
		RecurringExpenseID int64             `json:"recurring_expense_id,omitempty"`
		CategoryID         int64             `json:"category_id,omitempty"`
		AccountID          int64             `json:"account_id,omitempty"`
		Notes              string            `json:"notes,omitempty"`
		CreatedAt          time.Time         `json:"created_at"`
		UpdatedAt          time.Time         `json:"updated_at"`
	}

	Account struct {
		ID                    int64           `json:"id"`
		UserID                int64           `json:"user_id"`
		Name                  string          `json:"name"`
		Type                  AccountType     `json:"type"`
		Balance               decimal.Decimal `json:"balance"`
		Currency              string          `json:"currency"`
		IncludeInCalculations bool            `json:"include_in_calculations"`
		IsActive              bool            `json:"is_active"`
		UpdatedAt             time.Time       `json:"updated_at"`
	}

	AccountBalance struct {
		AccountID int64           `json:"account_id"`
		Date      Date            `json:"date"`
		Balance   decimal.Decimal `json:"balance"`
	}

	Category struct {
		ID     int64  `json:"id"`
		UserID int64  `json:"user_id"`
		Name   string `json:"name"`
		Color  string `json:"color,omitempty"`
		Icon   string `json:"icon,omitempty"`
	}

	// ExpenseSnapshot freezes one recurring expense as it was used by a
	// forecast calculation.
	ExpenseSnapshot struct {
		ExpenseID int64           `json:"expense_id"`
		Name      string          `json:"name"`
		Amount    decimal.Decimal `json:"amount"`
		Frequency Frequency       `json:"frequency"`
		NextDate  Date            `json:"next_date"`
		StartDate Date            `json:"start_date"`
		EndDate   Date            `json:"end_date"`
		// Occurrences and Total record what the expense contributed.
		Occurrences int             `json:"occurrences"`
		Total       decimal.Decimal `json:"total"`
	}

	TargetDateForecast struct {
		ID               int64             `json:"id"`
		UserID           int64             `json:"user_id"`
		Name             string            `json:"name"`
		TargetDate       Date              `json:"target_date"`
		ProjectedBalance decimal.Decimal   `json:"projected_balance"`
		Snapshot         []ExpenseSnapshot `json:"recurring_expenses_snapshot"`
		CreatedAt        time.Time         `json:"created_at"`
		LastCalculated   time.Time         `json:"last_calculated"`
	}
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrInvalidSource      = errors.New("invalid transaction source")
	ErrInvalidDateRange   = errors.New("end date must not be before start date")
	ErrInvalidAccountType = errors.New("invalid account type")
)

func (f Frequency) Validate() error {
	switch f {
	case Weekly, Fortnightly, Monthly, Quarterly, Yearly:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
}

// ParseFrequency normalises user input into a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if err := f.Validate(); err != nil {
		return "", err
	}
	return f, nil
}

func (s TransactionSource) Validate() error {
	switch s {
	case SourceManual, SourceExternal, SourceRecurring:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSource, string(s))
}

func (t AccountType) Validate() error {
	switch t {
	case AccountChecking, AccountSavings, AccountCredit, AccountLoan, AccountInvestment:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidAccountType, string(t))
}

func validateName(name string, max int) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > max {
		return fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidInput, max)
	}
	return nil
}

func (re RecurringExpense) Validate() error {
	if err := validateName(re.Name, 100); err != nil {
		return err
	}
	if re.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if err := re.Frequency.Validate(); err != nil {
		return err
	}
	if err := re.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if err := re.NextDate.Validate(); err != nil {
		return fmt.Errorf("invalid next date: %w", err)
	}
	if !re.EndDate.IsEmpty() && re.EndDate.Before(re.StartDate) {
		return ErrInvalidDateRange
	}
	return nil
}

// Active reports whether the expense can still produce occurrences on day.
func (re RecurringExpense) Active(day Date) bool {
	if !re.IsActive {
		return false
	}
	return re.EndDate.IsEmpty() || !day.After(re.EndDate)
}

// HistoryEntry captures the current state as a history row effective on day.
func (re RecurringExpense) HistoryEntry(day Date) RecurringExpenseHistory {
	return RecurringExpenseHistory{
		ExpenseID:     re.ID,
		Name:          re.Name,
		Amount:        re.Amount,
		Frequency:     re.Frequency,
		EffectiveDate: day,
	}
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 255 {
		return fmt.Errorf("%w: description too long (max 255 characters)", ErrInvalidInput)
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	return t.Source.Validate()
}

// WeekStart returns the Monday of the transaction's week.
func (t Transaction) WeekStart() Date {
	return t.Date.WeekStart()
}

func (a Account) Validate() error {
	if err := validateName(a.Name, 100); err != nil {
		return err
	}
	return a.Type.Validate()
}

func (c Category) Validate() error {
	return validateName(c.Name, 50)
}

// DefaultForecastName is used when a forecast is requested without a name.
func DefaultForecastName(target Date) string {
	return "Forecast to " + target.String()
}
