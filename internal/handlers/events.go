package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"campuspay/internal/middleware"
	"campuspay/internal/model"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
)

func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.Events.ListEvents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.Events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type eventRequest struct {
	Category    model.Category `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Amount      int64          `json:"amount"`
	PayeeName   string         `json:"payeeName"`
	PayeeUPI    string         `json:"payeeUpiId"`
	TargetClass string         `json:"targetClass"`
	Poster      string         `json:"poster"`
	QRCode      string         `json:"qrCode"`
}

func (req *eventRequest) validate() string {
	if strings.TrimSpace(req.Title) == "" {
		return "Title is required"
	}
	if !req.Category.Valid() {
		return "Type must be mandatory or optional"
	}
	if req.Amount < 0 {
		return "Amount must not be negative"
	}
	if req.Category == model.CategoryOptional && strings.TrimSpace(req.PayeeUPI) == "" {
		return "Payee UPI id is required for optional events"
	}
	return ""
}

func (s *Server) CreateEvent(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ExtractUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request format", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	event := &model.Event{
		ID:          uuid.NewString(),
		Category:    req.Category,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Amount:      req.Amount,
		PayeeName:   req.PayeeName,
		PayeeUPI:    req.PayeeUPI,
		TargetClass: req.TargetClass,
		Poster:      req.Poster,
		QRCode:      req.QRCode,
		CreatedBy:   strconv.FormatInt(claims.UserID, 10),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Events.CreateEvent(r.Context(), event); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request format", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	patch := &model.Event{
		Category:    req.Category,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Amount:      req.Amount,
		PayeeName:   req.PayeeName,
		PayeeUPI:    req.PayeeUPI,
		TargetClass: req.TargetClass,
		Poster:      req.Poster,
		QRCode:      req.QRCode,
	}
	if err := s.Events.UpdateEvent(r.Context(), chi.URLParam(r, "id"), patch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Event updated successfully"})
}

func (s *Server) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.Events.DeleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Event deleted successfully"})
}
