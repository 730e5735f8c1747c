package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"pfm/internal/core"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in core.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Expenses.Create(r.Context(), callerID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Expenses.List(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// handleMonthlyExpenses serves ?year=YYYY&month=M. Both are required.
func (s *Server) handleMonthlyExpenses(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.svc.Expenses.Monthly(r.Context(), callerID(r), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Expenses.Get(r.Context(), callerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in core.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Expenses.Update(r.Context(), callerID(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Expenses.Delete(r.Context(), callerID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseYearMonth(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	year, err := strconv.Atoi(strings.TrimSpace(q.Get("year")))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: year is required", core.ErrValidation)
	}
	month, err := strconv.Atoi(strings.TrimSpace(q.Get("month")))
	if err != nil {
		return 0, 0, core.ErrInvalidMonth
	}
	return year, month, nil
}

// nonNil makes empty collections encode as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
