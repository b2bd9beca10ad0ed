package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/audit"
	"github.com/lijunhao/projfin/internal/auth"
	"github.com/lijunhao/projfin/internal/claim"
	"github.com/lijunhao/projfin/internal/config"
	"github.com/lijunhao/projfin/internal/importer"
	"github.com/lijunhao/projfin/internal/project"
	"github.com/lijunhao/projfin/internal/report"
	"github.com/lijunhao/projfin/internal/server"
	"github.com/lijunhao/projfin/internal/settlement"
	"github.com/lijunhao/projfin/internal/store"
	"github.com/lijunhao/projfin/internal/user"
	"github.com/lijunhao/projfin/pkg/logging"
)

func main() {
	// Local .env is optional; absence is not an error.
	_ = gotenv.Load()

	configPath := os.Getenv("PROJFIN_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting project finance settlement service",
		zap.String("store", cfg.Store.Driver),
		zap.Int("port", cfg.Server.Port))

	st, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize document store", zap.Error(err))
	}
	defer st.Close()

	recorder := audit.NewRecorder(st, logger)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	users := user.NewService(st, user.RoleDirectory{
		AdminPhones:   cfg.Auth.AdminPhones,
		FinancePhones: cfg.Auth.FinancePhones,
	}, logger)
	projects := project.NewService(st, recorder, logger)
	claims := claim.NewService(st, projects, recorder, logger)

	engine := importer.NewEngine(st, logger)
	erpFeed := importer.NewERPClient(cfg.ERP.Endpoint, cfg.ERP.Token, cfg.ERP.Timeout, logger)
	paper := importer.NewPaperImporter(engine, st, projects, recorder, logger)
	revenue := importer.NewRevenueImporter(engine, st, projects, erpFeed, recorder, logger)

	settlements := settlement.NewService(st, recorder, logger)
	reports := report.NewAggregator(st, recorder, logger)

	srv := server.New(server.Deps{
		Users:       users,
		Tokens:      tokens,
		Projects:    projects,
		Claims:      claims,
		Paper:       paper,
		Revenue:     revenue,
		Settlements: settlements,
		Reports:     reports,
		Logger:      logger,
	}, cfg.Logger.Level == "debug")

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

func newStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.Store.Driver == "memory" {
		return store.NewMemory(), nil
	}
	return store.NewSQLite(store.SQLiteConfig{
		Path:            cfg.Store.Path,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	}, logger)
}
