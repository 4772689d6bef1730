package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"campuspay/internal/middleware"
	"campuspay/internal/model"

	"github.com/go-chi/chi"
)

func (s *Server) PendingPayments(w http.ResponseWriter, r *http.Request) {
	pending, err := s.View.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pendingPayments": pending})
}

type decisionRequest struct {
	StudentID int64             `json:"studentId"`
	PaymentID string            `json:"paymentId"`
	Status    model.ClaimStatus `json:"status"`
	EventType model.Category    `json:"eventType"`
}

func (s *Server) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ExtractUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request format", http.StatusBadRequest)
		return
	}
	if req.StudentID == 0 || req.PaymentID == "" || req.Status == "" || req.EventType == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	if req.Status != model.StatusConfirmed && req.Status != model.StatusRejected {
		http.Error(w, `Invalid status. Must be "confirmed" or "rejected"`, http.StatusBadRequest)
		return
	}

	adminID := strconv.FormatInt(claims.UserID, 10)
	claim, err := s.Reconcile.Decide(r.Context(), adminID, req.StudentID, req.EventType, req.PaymentID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Payment " + string(req.Status) + " successfully",
		"payment": claim,
	})
}

func (s *Server) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.View.PaymentSummary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) EventPayments(w http.ResponseWriter, r *http.Request) {
	roster, err := s.View.EventPayments(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (s *Server) StudentsPayments(w http.ResponseWriter, r *http.Request) {
	students, err := s.View.StudentsPayments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students})
}
