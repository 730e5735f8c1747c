package http

import (
	"net/http"

	"pfm/internal/core"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type balanceResponse struct {
	Balance   core.Money `json:"balance"`
	Formatted string     `json:"formatted"`
}

type topUpRequest struct {
	Amount core.Money `json:"amount"`
	Source string     `json:"source"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Users.Sources())
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.svc.Users.Balance(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: balance, Formatted: balance.Format(s.currency)})
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	source, err := core.ParseBalanceSource(req.Source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	balance, err := s.svc.Users.TopUp(r.Context(), callerID(r), req.Amount, source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: balance, Formatted: balance.Format(s.currency)})
}
