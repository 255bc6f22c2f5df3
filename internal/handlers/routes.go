package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/h4ev/formgate/internal/audit"
	"github.com/h4ev/formgate/internal/auth"
)

type Router struct {
	Logger         *logrus.Logger
	Accounts       *AccountHandler
	Forms          *FormsHandler
	Authenticator  *auth.Authenticator
	Audit          *audit.Logger
	RateLimiter    *RateLimiter
	AllowedOrigins []string
}

// Handler builds the HTTP handler. Account reads and deletes are audited
// when the caller is authenticated; forms routes require authentication and
// are always audited.
func (rt Router) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(rt.Logger))
	r.Use(rt.RateLimiter.Middleware)
	r.Use(rt.Authenticator.Middleware)

	audited := func(h http.HandlerFunc) http.Handler {
		return rt.Audit.Middleware(h)
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return rt.Audit.Middleware(auth.RequireIdentity(h))
	}

	r.HandleFunc("/healthz", HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/accounts", rt.Accounts.CreateUser).Methods(http.MethodPost)
	r.HandleFunc("/login", rt.Accounts.Login).Methods(http.MethodPost)
	r.HandleFunc("/login/refresh", rt.Accounts.RefreshToken).Methods(http.MethodPost)
	r.Handle("/accounts", audited(rt.Accounts.ListUsers)).Methods(http.MethodGet)
	r.Handle("/accounts/{id}", audited(rt.Accounts.GetUser)).Methods(http.MethodGet)
	r.Handle("/accounts/{id}", audited(rt.Accounts.DeleteUser)).Methods(http.MethodDelete)

	r.Handle("/forms/{form_id}/submissions", protected(rt.Forms.GetSubmissions)).Methods(http.MethodGet)
	r.Handle("/forms/{username}", protected(rt.Forms.GetForms)).Methods(http.MethodGet)
	r.Handle("/api/onadata/user/{username}/forms", protected(rt.Forms.GetForms)).Methods(http.MethodGet)
	r.Handle("/api/onadata/form/{form_id}/", protected(rt.Forms.GetSubmissions)).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: rt.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
	})
	return c.Handler(r)
}
