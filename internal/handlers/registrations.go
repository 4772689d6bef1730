package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"campuspay/internal/middleware"
	"campuspay/internal/model"
)

type registrationRequest struct {
	Events        []json.RawMessage `json:"events"`
	PaymentMethod string            `json:"paymentMethod"`
}

// CreateRegistration books the selected events for the caller. The
// booking snapshots each event's title and price and totals them server
// side; event references are accepted in any historical encoding.
func (s *Server) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ExtractUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request format", http.StatusBadRequest)
		return
	}
	if len(req.Events) == 0 {
		http.Error(w, "At least one event is required", http.StatusBadRequest)
		return
	}

	snapshot := make([]model.RegistrationEvent, 0, len(req.Events))
	var total int64
	for _, raw := range req.Events {
		ref, err := model.ParseRawID(raw)
		if err != nil {
			http.Error(w, "Malformed event reference", http.StatusBadRequest)
			return
		}
		event, err := s.Events.GetEvent(r.Context(), ref.String())
		if err != nil {
			writeError(w, err)
			return
		}
		snapshot = append(snapshot, model.RegistrationEvent{
			EventID: event.ID,
			Title:   event.Title,
			Amount:  event.Amount,
		})
		total += event.Amount
	}

	user, err := s.Users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	reg := &model.Registration{
		UserID:        claims.UserID,
		UserEmail:     user.Email,
		Events:        snapshot,
		TotalAmount:   total,
		PaymentMethod: req.PaymentMethod,
		Status:        model.RegistrationConfirmed,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.Registrations.CreateRegistration(r.Context(), reg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (s *Server) ListMyRegistrations(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ExtractUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	regs, err := s.Registrations.ListRegistrationsByUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

func (s *Server) AdminRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := s.Registrations.ListRegistrations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}
