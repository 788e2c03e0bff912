package http

import (
	"fmt"
	"net/http"

	"budgetcal/internal/core"
	"budgetcal/internal/log"
)

type createForecastRequest struct {
	TargetDate core.Date `json:"target_date"`
	Name       string    `json:"name"`
}

func (s *Server) handleCreateForecast(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	var req createForecastRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if req.TargetDate.IsEmpty() {
		s.fail(w, r, log.OpCalculate, fmt.Errorf("%w: target_date is required", core.ErrInvalidInput))
		return
	}

	out, err := s.svc.Forecasts.ForecastToTargetDate(r.Context(), userID, req.TargetDate, req.Name)
	if err != nil {
		s.fail(w, r, log.OpCalculate, err)
		return
	}
	s.countForecast()
	log.LogForecastSaved(r.Context(), userID, out.Forecast.ID, out.Forecast.TargetDate.String(),
		core.FormatMoney(out.Forecast.ProjectedBalance))
	writeJSON(w, http.StatusCreated, out)
}

// handleListForecasts reads the store on every request; the forecast worker
// rewrites projections from another process.
func (s *Server) handleListForecasts(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	forecasts, err := s.svc.Forecasts.Summary(r.Context(), userID)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if forecasts == nil {
		forecasts = []core.TargetDateForecast{}
	}
	writeJSON(w, http.StatusOK, forecasts)
}

func (s *Server) handleGetForecast(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	f, err := s.svc.Forecasts.Get(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteForecast(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Forecasts.Delete(r.Context(), userID, id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleRecalculateForecast(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	out, err := s.svc.Forecasts.RecalculateForecast(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, log.OpRecalculate, err)
		return
	}
	s.countForecast()
	writeJSON(w, http.StatusOK, out)
}

// handleDailyBalances defaults to the next 30 days starting today.
func (s *Server) handleDailyBalances(w http.ResponseWriter, r *http.Request) {
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
		start = s.svc.Forecasts.Today()
	}
	if end.IsEmpty() {
		end = start.AddDays(30)
	}
	days, err := s.svc.Forecasts.DailyBalances(r.Context(), userID, start, end)
	if err != nil {
		s.fail(w, r, log.OpCalculate, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}
