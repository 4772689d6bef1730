package handlers

import (
	"encoding/json"
	"net/http"

	"campuspay/internal/middleware"
	"campuspay/internal/model"
	"campuspay/internal/reconcile"

	"github.com/go-chi/chi"
)

func (s *Server) GetPayments(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ExtractUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	record, err := s.Reconcile.GetPayments(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": record})
}

type selectRequest struct {
	Category model.Category  `json:"type"`
	Event    json.RawMessage `json:"event"`
}

// SelectEvent puts an event into the student's basket: an added claim.
// The event reference is accepted in any historical encoding.
func (s *Server) SelectEvent(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ExtractUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request format", http.StatusBadRequest)
		return
	}
	ref, err := model.ParseRawID(req.Event)
	if err != nil {
		http.Error(w, "Malformed event reference", http.StatusBadRequest)
		return
	}

	claim, err := s.Reconcile.SelectEvent(r.Context(), claims.UserID, req.Category, ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claim": claim})
}

func (s *Server) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ExtractUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := s.Reconcile.RemoveFromCart(r.Context(), claims.UserID, chi.URLParam(r, "ref")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Event removed from cart"})
}

type submitRequest struct {
	Items []reconcile.ProofItem `json:"items"`
}

// SubmitProof records the UPI transaction reference and screenshot for
// everything in the basket. All-or-nothing: a partial basket is refused.
func (s *Server) SubmitProof(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ExtractUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request format", http.StatusBadRequest)
		return
	}

	record, err := s.Reconcile.SubmitProof(r.Context(), claims.UserID, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Payments updated successfully",
		"payments": record,
	})
}
