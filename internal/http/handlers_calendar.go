package http

import (
	"fmt"
	"net/http"

	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/services"
)

// handleCalendarWeeks serves the week grid. Results are cached per user and
// calculation date until a write for that user invalidates them.
func (s *Server) handleCalendarWeeks(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	start, err := QueryDate(r, "start")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	weeks, err := QueryInt(r, "weeks", services.DefaultCalendarWeeks)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	today := s.svc.Calendar.Today()
	if start.IsEmpty() {
		start = today
	}
	key := fmt.Sprintf("%sweeks:%s:%d:%s", userPrefix(userID), start.WeekStart(), weeks, today)
	if cached, found := s.weeksCache.Get(key); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	out, err := s.svc.Calendar.Weeks(r.Context(), userID, start, weeks)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	s.weeksCache.Set(key, out)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCalendarRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	out, err := s.svc.Calendar.Recurring(r.Context(), userID)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if out == nil {
		out = []core.RecurringExpense{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCalendarTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	t, err := s.svc.Calendar.Transaction(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleBudgetSummary defaults to the current calendar month.
func (s *Server) handleBudgetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	start, err := QueryDate(r, "start")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	end, err := QueryDate(r, "end")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if start.IsEmpty() {
		today := s.svc.Calendar.Today()
		start = core.NewDate(today.Year(), today.Month(), 1)
	}
	if end.IsEmpty() {
		end = start.AddMonthsClamped(1).AddDays(-1)
	}
	summary, err := s.svc.Calendar.BudgetSummary(r.Context(), userID, start, end)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	days, err := QueryInt(r, "days", services.DefaultUpcomingDays)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	out, err := s.svc.Calendar.Upcoming(r.Context(), userID, days)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
