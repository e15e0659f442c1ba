package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/cardroom/pkg/api/handlers"
	"github.com/cbodonnell/cardroom/pkg/api/middleware"
	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port        int
	TLS         *TLSConfig
	AdminToken  string
	Scheduler   handlers.Scheduler
	Reliability handlers.Reliability
}

// NewAPIServer creates a new http.Server for the operational API
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// NewRouter builds the API routes. Reads are open; anything that changes
// server state needs the admin token.
func NewRouter(opts NewAPIServerOptions) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.NewLoggingMiddleware())

	router.HandleFunc("/healthz", handlers.HandleHealthz(opts.Scheduler)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/status", handlers.HandleGetStatus(opts.Scheduler)).Methods(http.MethodGet)
	router.HandleFunc("/stats", handlers.HandleGetStats(opts.Scheduler)).Methods(http.MethodGet)
	router.HandleFunc("/reliability", handlers.HandleGetReliability(opts.Reliability)).Methods(http.MethodGet)

	admin := middleware.NewAdminTokenMiddleware(opts.AdminToken)
	router.Handle("/stats/reset", admin(handlers.HandleResetStats(opts.Scheduler))).Methods(http.MethodPost)
	router.Handle("/config", admin(handlers.HandleUpdateConfig(opts.Scheduler))).Methods(http.MethodPatch)
	router.Handle("/rooms/{gameID}/reconcile", admin(handlers.HandleReconcileRoom(opts.Scheduler))).Methods(http.MethodPost)
	router.Handle("/rooms/{gameID}/redeliver", admin(handlers.HandleRedeliver(opts.Reliability))).Methods(http.MethodPost)

	return router
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
