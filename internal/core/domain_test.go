package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestFrequencyParse(t *testing.T) {
	for _, in := range []string{"weekly", "Fortnightly", " monthly ", "QUARTERLY", "yearly"} {
		if _, err := ParseFrequency(in); err != nil {
			t.Fatalf("%q expected ok, got %v", in, err)
		}
	}
	_, err := ParseFrequency("daily")
	if !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}
}

func validRecurring() RecurringExpense {
	return RecurringExpense{
		Name:      "Rent",
		Amount:    decimal.RequireFromString("-1200.00"),
		Frequency: Monthly,
		NextDate:  NewDate(2025, 2, 1),
		StartDate: NewDate(2025, 1, 1),
		IsActive:  true,
	}
}

func TestRecurringExpenseValidate(t *testing.T) {
	if err := validRecurring().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := map[string]func(*RecurringExpense){
		"empty name":       func(r *RecurringExpense) { r.Name = "  " },
		"zero amount":      func(r *RecurringExpense) { r.Amount = decimal.Zero },
		"bad frequency":    func(r *RecurringExpense) { r.Frequency = "daily" },
		"no start":         func(r *RecurringExpense) { r.StartDate = Date{} },
		"no next":          func(r *RecurringExpense) { r.NextDate = Date{} },
		"end before start": func(r *RecurringExpense) { r.EndDate = NewDate(2024, 12, 31) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := validRecurring()
			mutate(&r)
			if err := r.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRecurringExpenseActive(t *testing.T) {
	r := validRecurring()
	r.EndDate = NewDate(2025, 6, 30)
	if !r.Active(NewDate(2025, 6, 30)) {
		t.Fatalf("expected active on end date")
	}
	if r.Active(NewDate(2025, 7, 1)) {
		t.Fatalf("expected inactive after end date")
	}
	r.IsActive = false
	if r.Active(NewDate(2025, 3, 1)) {
		t.Fatalf("expected inactive when deactivated")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:        NewDate(2025, 1, 1),
		Description: "Groceries",
		Amount:      decimal.RequireFromString("-45.10"),
		Source:      SourceManual,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Date: Date{}, Description: "a", Amount: decimal.NewFromInt(1), Source: SourceManual},
		{Date: NewDate(2025, 1, 1), Description: "", Amount: decimal.NewFromInt(1), Source: SourceManual},
		{Date: NewDate(2025, 1, 1), Description: "a", Amount: decimal.Zero, Source: SourceManual},
		{Date: NewDate(2025, 1, 1), Description: "a", Amount: decimal.NewFromInt(1), Source: "bank"},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionWeekStart(t *testing.T) {
	tx := Transaction{Date: NewDate(2025, 3, 9)} // Sunday
	if got := tx.WeekStart(); !got.Equal(NewDate(2025, 3, 3)) {
		t.Fatalf("expected Monday 2025-03-03, got %s", got)
	}
}

func TestErrorMessages(t *testing.T) {
	var err error = &InvalidDateError{Target: NewDate(2025, 1, 1), Today: NewDate(2025, 2, 1)}
	var ide *InvalidDateError
	if !errors.As(err, &ide) || ide.Target.String() != "2025-01-01" {
		t.Fatalf("errors.As failed for %v", err)
	}
	err = &MissingBalanceError{UserID: 7}
	if err.Error() != "no account balance available for user 7" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestDefaultForecastName(t *testing.T) {
	if got := DefaultForecastName(NewDate(2025, 12, 25)); got != "Forecast to 2025-12-25" {
		t.Fatalf("unexpected name %q", got)
	}
}
