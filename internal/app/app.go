package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	mrand "math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aerolite/backend/internal/account"
	"aerolite/backend/internal/catalog"
	"aerolite/backend/internal/config"
	"aerolite/backend/internal/httpapi"
	"aerolite/backend/internal/order"
	"aerolite/backend/internal/payment"
	"aerolite/backend/internal/session"
	"aerolite/backend/internal/storage"
	"aerolite/backend/internal/websocket"
	"aerolite/backend/pkg/messaging"

	"github.com/shopspring/decimal"
)

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	wsHub     *websocket.Hub
	publisher messaging.Publisher
	outbox    *messaging.OutboxDispatcher
	httpSrv   *http.Server
}

type repositories struct {
	accounts account.Repository
	catalog  catalog.Repository
	orders   order.Repository
	sessions session.Store
}

// New wires the backend. An empty DATABASE_URL runs everything in memory,
// which is only meant for local development.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	var (
		store *storage.Store
		repos repositories
	)
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL is empty, using in-memory storage; data is lost on restart")
		repos = repositories{
			accounts: account.NewMemoryRepository(),
			catalog:  catalog.NewMemoryRepository(),
			orders:   order.NewMemoryRepository(),
			sessions: session.NewMemoryStore(),
		}
	} else {
		var err error
		store, err = storage.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		repos = repositories{
			accounts: account.NewPostgresRepository(store.Pool()),
			catalog:  catalog.NewPostgresRepository(store.Pool()),
			orders:   order.NewPostgresRepository(store.Pool()),
			sessions: session.NewMemoryStore(),
		}
		if cfg.SessionBackend == config.SessionPostgres {
			repos.sessions = session.NewPostgresStore(store.Pool())
		}
	}

	catalogSvc := catalog.NewService(repos.catalog, logger)
	if cfg.SeedCatalog {
		if _, err := catalogSvc.Seed(ctx); err != nil {
			closeStore(store)
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
	}

	wsHub := websocket.NewHub()
	orderSvc := order.NewService(repos.orders, wsHub, logger)
	accountSvc := account.NewService(repos.accounts, cfg.BcryptCost, logger)

	seed := uint64(time.Now().UnixNano())
	simulator := payment.NewSimulator(cfg.PaymentSuccessRate, mrand.NewPCG(seed, seed>>1), logger)
	processor := payment.NewProcessor(orderSvc, simulator, logger)

	services := httpapi.Services{
		Accounts: accountSvc,
		Sessions: repos.sessions,
		Catalog:  catalogSvc,
		Orders:   orderSvc,
		Payments: processor,
	}
	if store != nil {
		services.Health = store
	}

	api := httpapi.NewServer(services, logger)
	wsHandler := websocket.NewHandler(wsHub, orderSvc, repos.sessions, logger)
	api.HandleFunc("GET /api/orders/{orderID}/ws", wsHandler.ServeWS)

	a := &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		wsHub:  wsHub,
		httpSrv: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	switch {
	case cfg.RabbitURL == "":
		logger.Info("RABBIT_URL is empty, order events stay in the outbox")
	case store == nil:
		logger.Warn("RABBIT_URL ignored without a database")
	default:
		publisher, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.OrdersExchange)
		if err != nil {
			store.Close()
			return nil, err
		}
		a.publisher = publisher
		a.outbox = messaging.NewOutboxDispatcher(store.Pool(), publisher, order.OutboxTable, cfg.OutboxInterval, cfg.OutboxBatchSize, logger)
	}

	return a, nil
}

func closeStore(store *storage.Store) {
	if store != nil {
		store.Close()
	}
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)

	if a.outbox != nil {
		a.outbox.Start(ctx)
	}

	go a.wsHub.Run(ctx)

	go func() {
		a.logger.Info("aerolite http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownGracePeriod)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "err", err)
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	closeStore(a.store)
}

// ConfigureJSON makes decimals (prices, totals, event amounts) encode as
// JSON numbers. Every binary calls it once before doing any work.
func ConfigureJSON() {
	decimal.MarshalJSONWithoutQuotes = true
}

func Run() error {
	ConfigureJSON()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close(ctx)

	return app.Run(ctx)
}
