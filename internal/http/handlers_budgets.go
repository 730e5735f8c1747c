package http

import (
	"net/http"

	"pfm/internal/core"
)

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var in core.BudgetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Budgets.Create(r.Context(), callerID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Budgets.List(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Budgets.Get(r.Context(), callerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleActiveBudget serves ?category=...&date=YYYY-MM-DD.
func (s *Server) handleActiveBudget(w http.ResponseWriter, r *http.Request) {
	category, date, err := s.categoryAndDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Budgets.FindActive(r.Context(), callerID(r), category, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	category, date, err := s.categoryAndDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.svc.Budgets.Status(r.Context(), callerID(r), category, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in core.BudgetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Budgets.Update(r.Context(), callerID(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Budgets.Delete(r.Context(), callerID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// categoryAndDate reads the budget lookup query. date defaults to today.
func (s *Server) categoryAndDate(r *http.Request) (string, core.Date, error) {
	q := r.URL.Query()
	raw := q.Get("date")
	if raw == "" {
		return q.Get("category"), core.DateOf(s.clock.Now()), nil
	}
	date, err := core.ParseDate(raw)
	if err != nil {
		return "", core.Date{}, err
	}
	return q.Get("category"), date, nil
}
