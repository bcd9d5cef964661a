package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"

	"outlay/internal/auth"
	"outlay/internal/core"
	"outlay/internal/storage"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var in core.Expense
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}

	created, err := s.api.Create(r.Context(), id.Email, in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	atomic.AddInt64(&s.metrics.expensesCreated, 1)
	s.invalidateStats(id.Email)

	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	expenses, err := s.api.List(r.Context(), id.Email)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	respondJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	expense, err := s.api.Get(r.Context(), id.Email, mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, expense)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var in core.Expense
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}

	updated, err := s.api.Update(r.Context(), id.Email, mux.Vars(r)["id"], in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.invalidateStats(id.Email)

	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if err := s.api.Delete(r.Context(), id.Email, mux.Vars(r)["id"]); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.invalidateStats(id.Email)

	respondJSON(w, http.StatusNoContent, nil)
}

// respondServiceError maps service errors to the API error contract.
// Missing records and foreign-owner records share the same 404 so record
// existence never leaks across owners.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrExpenseNotFound):
		respondError(w, http.StatusNotFound, "expense not found")
	case isValidationError(err):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isValidationError(err error) bool {
	for _, v := range []error{
		core.ErrInvalidAmount,
		core.ErrEmptyTitle,
		core.ErrTitleTooLong,
		core.ErrEmptyCategory,
		core.ErrCategoryTooLong,
		core.ErrZeroDate,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
