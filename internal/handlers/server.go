package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"campuspay/internal/adminview"
	"campuspay/internal/config"
	"campuspay/internal/logging"
	"campuspay/internal/model"
	"campuspay/internal/reconcile"
	"campuspay/internal/store"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) (int64, error)
	GetUserByUSN(ctx context.Context, usn string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateProfile(ctx context.Context, id int64, patch *model.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	UpdateEvent(ctx context.Context, id string, patch *model.Event) error
	DeleteEvent(ctx context.Context, id string) error
}

type RegistrationStore interface {
	CreateRegistration(ctx context.Context, reg *model.Registration) error
	ListRegistrationsByUser(ctx context.Context, userID int64) ([]model.Registration, error)
	ListRegistrations(ctx context.Context) ([]model.Registration, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Config        config.Config
	Store         *store.Database
	Users         UserStore
	Events        EventStore
	Registrations RegistrationStore
	Reconcile     *reconcile.Service
	View          *adminview.View
	DB            Pinger
}

func NewServer(cfg config.Config) (*Server, error) {
	db, err := store.NewStorage(cfg.DBDsn)
	if err != nil {
		return nil, err
	}
	return &Server{
		Config:        cfg,
		Store:         db,
		Users:         db,
		Events:        db,
		Registrations: db,
		Reconcile:     reconcile.NewService(db, db),
		View:          adminview.New(db, db, db),
		DB:            db,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logg.Error("Failed to encode response", "error", err)
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrEventNotFound),
		errors.Is(err, store.ErrClaimNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, reconcile.ErrAlreadyDecided),
		errors.Is(err, store.ErrClaimExists),
		errors.Is(err, store.ErrClaimNotRemovable),
		errors.Is(err, store.ErrDuplicateUser):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, reconcile.ErrInvalidInput),
		errors.Is(err, model.ErrMalformedRef):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrStorageUnavailable):
		http.Error(w, "Database not connected. Please try again in a moment.", http.StatusServiceUnavailable)
	default:
		logging.Logg.Error("Internal error", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"message":     "Backend is working!",
			"dbConnected": false,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Backend is working!",
		"dbConnected": true,
	})
}
