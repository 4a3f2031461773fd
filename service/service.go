// Package service serves health checks, Prometheus metrics and the state of
// the last run over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ethereum-optimism/infra/op-suite/metrics"
)

const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 7300
)

// Config holds configuration for the HTTP service
type Config struct {
	Log    log.Logger
	Host   string
	Port   int // zero picks a free port
	Status StatusFunc
}

type Service struct {
	log      log.Logger
	addr     string
	handler  http.Handler
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	logger := cfg.Log.New("component", "service")

	router := mux.NewRouter()
	router.Handle("/healthz", &healthzHandler{log: logger}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.Handle("/status", &statusHandler{log: logger, status: cfg.Status}).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return &Service{
		log:     logger,
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		handler: c.Handler(router),
	}
}

// Handler returns the routes of the service.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves in the background.
func (s *Service) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:     s.handler,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	s.done = make(chan struct{})

	s.log.Info("starting service", "addr", listener.Addr().String())
	go func() {
		defer close(s.done)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error serving", "err", err)
			metrics.RecordErrorDetails("service", err)
		}
	}()
	return nil
}

// Addr returns the address the service listens on, once started.
func (s *Service) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Info("service shutting down")
	err := s.server.Shutdown(ctx)
	<-s.done
	s.log.Info("service stopped")
	return err
}
