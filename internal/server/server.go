package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/userhub/apiserver/config"
	"github.com/userhub/apiserver/internal/crypto"
	"github.com/userhub/apiserver/internal/db"
	"github.com/userhub/apiserver/internal/handlers"
	"github.com/userhub/apiserver/internal/logger"
	"github.com/userhub/apiserver/internal/mq"
	"github.com/userhub/apiserver/internal/notify"
	"github.com/userhub/apiserver/internal/services"
	"github.com/userhub/apiserver/internal/session"
	"github.com/userhub/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     *logger.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	log := logger.New(cfg.LogLevel)

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	notifier, queue, err := newNotifier(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	accountRepo := store.NewAccountRepository(dbConn)
	hasher := crypto.NewPasswordHasher(cfg.Auth.BcryptCost)
	tokens := crypto.NewTokenGenerator(crypto.DefaultTokenBytes, cfg.Auth.VerifyTokenTTL)
	sessions := session.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)

	accountService := services.NewAccountService(accountRepo, hasher, tokens, sessions, notifier, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AccountRouter(r, accountService, sessions)
	})
	router.Route("/accounts", func(r chi.Router) {
		handlers.AccountListRouter(r, accountService, handlers.RequireAuth(sessions))
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		logger:     log,
	}, nil
}

// newNotifier selects the email dispatch backend. With no broker
// configured, notifications are dropped.
func newNotifier(ctx context.Context, cfg config.Config) (notify.Notifier, *mq.MQ, error) {
	switch cfg.Notifier.Backend {
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, nil, err
		}
		queue := mq.New(client)
		return notify.NewQueueNotifier(queue, cfg.Notifier), queue, nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, nil, err
		}
		queue := mq.New(client)
		return notify.NewQueueNotifier(queue, cfg.Notifier), queue, nil
	default:
		return notify.Noop{}, nil, nil
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	return s.httpServer.Close()
}
