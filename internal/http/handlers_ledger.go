package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"budgetcal/internal/core"
	"budgetcal/internal/log"
)

type createRecurringRequest struct {
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Frequency core.Frequency  `json:"frequency"`
	NextDate  core.Date       `json:"next_date"`
	StartDate core.Date       `json:"start_date"`
	EndDate   core.Date       `json:"end_date"`
	Notes     string          `json:"notes"`
}

type updateAmountRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	EffectiveDate core.Date       `json:"effective_date"`
}

type createAccountRequest struct {
	Name                  string           `json:"name"`
	Type                  core.AccountType `json:"type"`
	Balance               decimal.Decimal  `json:"balance"`
	Currency              string           `json:"currency"`
	IncludeInCalculations *bool            `json:"include_in_calculations"`
}

type updateBalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

type createTransactionRequest struct {
	Date        core.Date       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	IsExtra     bool            `json:"is_extra"`
	Notes       string          `json:"notes"`
	AccountID   int64           `json:"account_id"`
}

// decode writes a 400 and reports false when the body is unusable.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := DecodeJSON(w, r, dst); err != nil {
		BadRequestError(err.Error()).Write(w)
		return false
	}
	return true
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	var req createRecurringRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := s.svc.Recurring.Create(r.Context(), core.RecurringExpense{
		UserID:    userID,
		Name:      req.Name,
		Amount:    req.Amount,
		Frequency: req.Frequency,
		NextDate:  req.NextDate,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Notes:     req.Notes,
	})
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.countRecurring()
	s.invalidateUser(r.Context(), userID)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateRecurringAmount(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req updateAmountRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := s.svc.Recurring.UpdateAmount(r.Context(), userID, id, req.Amount, req.EffectiveDate)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.countRecurring()
	s.invalidateUser(r.Context(), userID)
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeactivateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Recurring.Deactivate(r.Context(), userID, id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	s.countRecurring()
	s.invalidateUser(r.Context(), userID)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleRecurringHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	hist, err := s.svc.Recurring.History(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	accounts, err := s.svc.Ledger.ListAccounts(r.Context(), userID)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

// handleCreateAccount includes the account in projections unless the request
// says otherwise.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	var req createAccountRequest
	if !decode(w, r, &req) {
		return
	}
	include := true
	if req.IncludeInCalculations != nil {
		include = *req.IncludeInCalculations
	}
	a, err := s.svc.Ledger.CreateAccount(r.Context(), core.Account{
		UserID:                userID,
		Name:                  req.Name,
		Type:                  req.Type,
		Balance:               req.Balance,
		Currency:              req.Currency,
		IncludeInCalculations: include,
		IsActive:              true,
	})
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.invalidateUser(r.Context(), userID)
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpdateBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req updateBalanceRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.Ledger.UpdateBalance(r.Context(), userID, id, req.Balance); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateUser(r.Context(), userID)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	var req createTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.svc.Ledger.AddTransaction(r.Context(), core.Transaction{
		UserID:      userID,
		Date:        req.Date,
		Amount:      req.Amount,
		Description: req.Description,
		IsExtra:     req.IsExtra,
		Notes:       req.Notes,
		AccountID:   req.AccountID,
		Source:      core.SourceManual,
	}, req.Category)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.countTransaction()
	s.invalidateUser(r.Context(), userID)
	writeJSON(w, http.StatusCreated, t)
}
