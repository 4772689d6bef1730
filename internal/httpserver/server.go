package httpserver

import (
	"context"
	"net/http"
	"time"

	"campuspay/internal/config"
	"campuspay/internal/handlers"
	"campuspay/internal/logging"
	"campuspay/internal/middleware"

	"github.com/go-chi/chi"
)

type Server struct {
	Serv *http.Server
}

func New(cfg config.Config, handler *handlers.Server) *Server {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.LoggingMiddleware(logging.Logg))

		r.Get("/health", handler.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handler.RegisterUser)
			r.Post("/login", handler.LoginUser)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", handler.ListEvents)
			r.Get("/{id}", handler.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWTSecret), middleware.RequireAdmin)
				r.Post("/", handler.CreateEvent)
				r.Put("/{id}", handler.UpdateEvent)
				r.Delete("/{id}", handler.DeleteEvent)
			})
		})

		r.Route("/registrations", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Post("/", handler.CreateRegistration)
			r.Get("/", handler.ListMyRegistrations)
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Get("/profile", handler.GetProfile)
			r.Put("/profile", handler.UpdateProfile)
			r.Put("/change-password", handler.ChangePassword)

			r.Get("/payments", handler.GetPayments)
			r.Post("/payments/select", handler.SelectEvent)
			r.Delete("/payments/optional/{ref}", handler.RemoveFromCart)
			r.Post("/payments/submit", handler.SubmitProof)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret), middleware.RequireAdmin)
			r.Get("/pending-payments", handler.PendingPayments)
			r.Put("/confirm-payment", handler.ConfirmPayment)
			r.Get("/payment-summary", handler.PaymentSummary)
			r.Get("/event-payments/{eventId}", handler.EventPayments)
			r.Get("/students-payments", handler.StudentsPayments)
			r.Get("/registrations", handler.AdminRegistrations)
		})
	})

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{Serv: serv}
}

func (s *Server) Start() {
	go func() {
		logging.Logg.Info("Starting server", "address", s.Serv.Addr)
		if err := s.Serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logg.Error("Server failed to start", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Logg.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.Serv.Shutdown(shutdownCtx); err != nil {
		logging.Logg.Error("Server shutdown error", "error", err)
		return err
	}

	logging.Logg.Info("Server stopped")
	return nil
}
