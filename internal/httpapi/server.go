package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"aerolite/backend/internal/account"
	"aerolite/backend/internal/catalog"
	"aerolite/backend/internal/order"
	"aerolite/backend/internal/payment"
	"aerolite/backend/internal/session"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Accounts *account.Service
	Sessions session.Store
	Catalog  *catalog.Service
	Orders   *order.Service
	Payments *payment.Processor
	// Health is optional; without it /healthz always reports ok.
	Health Pinger
}

type Server struct {
	svc     Services
	logger  *slog.Logger
	mux     *http.ServeMux
	handler http.Handler
}

func NewServer(svc Services, logger *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	s.routes()
	s.handler = loggingMiddleware(logger, corsMiddleware(s.mux))
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.home)
	s.mux.HandleFunc("GET /api/test", s.test)
	s.mux.HandleFunc("GET /healthz", s.health)

	s.mux.HandleFunc("POST /api/register", s.register)
	s.mux.HandleFunc("POST /api/login", s.login)

	s.mux.HandleFunc("GET /api/products", s.listProducts)
	s.mux.HandleFunc("GET /api/products/{id}", s.getProduct)

	s.mux.HandleFunc("POST /api/orders", s.requireAuth(s.createOrder))
	s.mux.HandleFunc("GET /api/orders", s.requireAuth(s.listOrders))
	s.mux.HandleFunc("GET /api/orders/{orderID}", s.requireAuth(s.getOrder))
	s.mux.HandleFunc("POST /api/process-payment", s.requireAuth(s.processPayment))
}

// HandleFunc mounts an extra route behind the same middleware chain.
func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Aerolite Backend is running!"})
}

func (s *Server) test(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Aerolite backend is working!"})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health.Ping(r.Context()); err != nil {
			s.logger.Error("health check", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
