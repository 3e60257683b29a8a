package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/maxiofs/miniogate/internal/config"
	"github.com/maxiofs/miniogate/internal/metrics"
	"github.com/maxiofs/miniogate/internal/middleware"
	"github.com/maxiofs/miniogate/internal/proxy"
	"github.com/maxiofs/miniogate/internal/resolver"
	"github.com/maxiofs/miniogate/internal/signer"
)

// Server represents the miniogate gateway server
type Server struct {
	config     *config.Config
	httpServer *http.Server
	metrics    *metrics.Metrics
	startTime  time.Time
}

// New creates a new gateway server from a validated configuration
func New(cfg *config.Config) (*Server, error) {
	rslv, err := resolver.New(cfg.BucketName, cfg.Upstream.Path, cfg.StripPathPattern)
	if err != nil {
		return nil, err
	}

	routes := make([]resolver.Route, 0, len(cfg.Routes))
	for _, rc := range cfg.Routes {
		routes = append(routes, resolver.Route{Paths: rc.Paths, StripPath: rc.StripPath})
	}

	sgn := signer.New(signer.Credentials{
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Region:    cfg.Minio.Region,
		Service:   "s3",
	})

	upstream := proxy.Upstream{
		Protocol: cfg.Upstream.Protocol,
		Host:     cfg.Upstream.Host,
		Port:     cfg.Upstream.Port,
		Path:     cfg.Upstream.Path,
	}

	m := metrics.New()

	client := &http.Client{
		Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
	}

	proxyHandler := proxy.New(upstream, resolver.NewTable(routes), rslv, sgn, client, m)

	s := &Server{
		config:    cfg,
		metrics:   m,
		startTime: time.Now(),
	}

	// Object keys may contain consecutive slashes; the resolver owns path
	// normalization, so the router must not clean-and-redirect first.
	router := mux.NewRouter()
	router.SkipClean(true)
	if cfg.Metrics.Enable {
		router.Handle(cfg.Metrics.Path, m.Handler()).Methods(http.MethodGet)
	}
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	// Everything else is proxied upstream
	router.PathPrefix("/").Handler(proxyHandler)

	chain := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		middleware.RequestID()(
			middleware.Logging()(
				middleware.Metrics(m)(router))))

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      chain,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler exposes the full middleware chain for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the gateway until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"address":  s.config.Listen,
		"upstream": s.config.Upstream.Protocol + "://" + s.config.Upstream.Host,
		"region":   s.config.Minio.Region,
	}).Info("Starting miniogate")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("HTTP server error")
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	return s.shutdown()
}

func (s *Server) shutdown() error {
	logrus.Info("Shutting down gateway")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}
