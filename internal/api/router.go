package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/campuspoints/loyalty-service/internal/handler"
	"github.com/campuspoints/loyalty-service/internal/infrastructure/auth"
	"github.com/campuspoints/loyalty-service/internal/infrastructure/redis"
	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Number of HTTP requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}
		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(recorder.status)).Inc()
		httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type Handlers struct {
	Auth        *handler.AuthHandler
	User        *handler.UserHandler
	Transaction *handler.TransactionHandler
	Event       *handler.EventHandler
	Promotion   *handler.PromotionHandler
}

// NewRouter wires the REST surface. Authentication happens per subrouter;
// the role gates follow the ordered clearance ranking, and endpoints whose
// access depends on resource state (event organizers, self views) do the
// finer checks in their handlers.
func NewRouter(h Handlers, redisClient redis.RedisClient, jwtSecret string, metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	// unauthenticated
	r.HandleFunc("/auth/tokens", h.Auth.Login).Methods(http.MethodPost)
	r.HandleFunc("/auth/resets", h.Auth.RequestReset).Methods(http.MethodPost)
	r.HandleFunc("/auth/resets/{resetToken}", h.Auth.ResetPassword).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(auth.Middleware(redisClient, jwtSecret))

	authed.HandleFunc("/auth/tokens", h.Auth.Logout).Methods(http.MethodDelete)

	// self routes are registered ahead of /users/{userId} so "me" never
	// parses as an id
	authed.HandleFunc("/users/me", h.User.Me).Methods(http.MethodGet)
	authed.HandleFunc("/users/me", h.User.UpdateMe).Methods(http.MethodPatch)
	authed.HandleFunc("/users/me/password", h.User.ChangePassword).Methods(http.MethodPatch)
	authed.HandleFunc("/users/me/transactions", h.User.CreateRedemption).Methods(http.MethodPost)
	authed.HandleFunc("/users/me/transactions", h.User.ListMyTransactions).Methods(http.MethodGet)
	authed.HandleFunc("/users/{userId:[0-9]+}/transactions", h.User.CreateTransfer).Methods(http.MethodPost)

	authed.HandleFunc("/events", h.Event.List).Methods(http.MethodGet)
	authed.HandleFunc("/events/{eventId}", h.Event.Get).Methods(http.MethodGet)
	authed.HandleFunc("/events/{eventId}", h.Event.Update).Methods(http.MethodPatch)
	authed.HandleFunc("/events/{eventId}/guests", h.Event.AddGuest).Methods(http.MethodPost)
	authed.HandleFunc("/events/{eventId}/guests/me", h.Event.RSVP).Methods(http.MethodPost)
	authed.HandleFunc("/events/{eventId}/guests/me", h.Event.CancelRSVP).Methods(http.MethodDelete)
	authed.HandleFunc("/events/{eventId}/transactions", h.Event.Award).Methods(http.MethodPost)

	authed.HandleFunc("/promotions", h.Promotion.List).Methods(http.MethodGet)
	authed.HandleFunc("/promotions/{promotionId}", h.Promotion.Get).Methods(http.MethodGet)

	cashier := authed.NewRoute().Subrouter()
	cashier.Use(auth.RequireRole(models.RoleCashier))
	cashier.HandleFunc("/users", h.User.Register).Methods(http.MethodPost)
	cashier.HandleFunc("/users/{userId:[0-9]+}", h.User.Get).Methods(http.MethodGet)
	cashier.HandleFunc("/transactions", h.Transaction.Create).Methods(http.MethodPost)
	cashier.HandleFunc("/transactions/{transactionId}/processed", h.Transaction.Process).Methods(http.MethodPatch)

	manager := authed.NewRoute().Subrouter()
	manager.Use(auth.RequireRole(models.RoleManager))
	manager.HandleFunc("/users", h.User.List).Methods(http.MethodGet)
	manager.HandleFunc("/users/{userId:[0-9]+}", h.User.Update).Methods(http.MethodPatch)
	manager.HandleFunc("/transactions", h.Transaction.List).Methods(http.MethodGet)
	manager.HandleFunc("/transactions/{transactionId:[0-9]+}", h.Transaction.Get).Methods(http.MethodGet)
	manager.HandleFunc("/transactions/{transactionId}/suspicious", h.Transaction.SetSuspicious).Methods(http.MethodPatch)
	manager.HandleFunc("/events", h.Event.Create).Methods(http.MethodPost)
	manager.HandleFunc("/events/{eventId}", h.Event.Delete).Methods(http.MethodDelete)
	manager.HandleFunc("/events/{eventId}/organizers", h.Event.AddOrganizer).Methods(http.MethodPost)
	manager.HandleFunc("/events/{eventId}/organizers/{userId}", h.Event.RemoveOrganizer).Methods(http.MethodDelete)
	manager.HandleFunc("/events/{eventId}/guests/{userId:[0-9]+}", h.Event.RemoveGuest).Methods(http.MethodDelete)
	manager.HandleFunc("/promotions", h.Promotion.Create).Methods(http.MethodPost)
	manager.HandleFunc("/promotions/{promotionId}", h.Promotion.Update).Methods(http.MethodPatch)
	manager.HandleFunc("/promotions/{promotionId}", h.Promotion.Delete).Methods(http.MethodDelete)

	return r
}
