package accountmgr

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alovak/accountflow/internal/provider"
)

// App is the main application. It wires the gateway, repository, manager
// and HTTP admin surface together and is responsible for starting and
// stopping them.
type App struct {
	srv    *http.Server
	wg     *sync.WaitGroup
	Addr   string
	logger *slog.Logger
	config *Config
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "accountmgr"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	gateway, err := provider.New(provider.Config{
		BaseURL:  a.config.Provider.BaseURL,
		Username: a.config.Provider.Username,
		Password: a.config.Provider.Password,
		Timeout:  time.Duration(a.config.Provider.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("building provider gateway: %w", err)
	}

	repository := NewRepository()
	manager := NewManager(gateway, repository, a.config, a.logger)

	router := chi.NewRouter()
	api := NewAPI(manager)
	api.AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler: router,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	a.srv.Shutdown(context.Background())

	a.wg.Wait()

	a.logger.Info("app stopped")
}
