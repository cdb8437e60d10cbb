package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/grainloss/internal/config"
	"github.com/mamadbah2/grainloss/internal/repository/ledger"
	"github.com/mamadbah2/grainloss/internal/repository/mongodb"
	"github.com/mamadbah2/grainloss/internal/repository/sheets"
	"github.com/mamadbah2/grainloss/internal/repository/sqlstore"
	"github.com/mamadbah2/grainloss/internal/scheduler"
	"github.com/mamadbah2/grainloss/internal/server/handlers"
	"github.com/mamadbah2/grainloss/internal/server/router"
	"github.com/mamadbah2/grainloss/internal/service/accumulation"
	analyticssvc "github.com/mamadbah2/grainloss/internal/service/analytics"
	"github.com/mamadbah2/grainloss/internal/service/catalog"
	"github.com/mamadbah2/grainloss/internal/service/fumigation"
	reportingsvc "github.com/mamadbah2/grainloss/internal/service/reporting"
	whatsappsvc "github.com/mamadbah2/grainloss/internal/service/whatsapp"
	whatsappclient "github.com/mamadbah2/grainloss/pkg/clients/whatsapp"
	"github.com/mamadbah2/grainloss/pkg/logger"
)

// inventoryStore is what every storage backend provides besides the ledger.
type inventoryStore interface {
	catalog.InventorySource
	catalog.VarietySource
	fumigation.EventSource
}

type storage struct {
	ledger    ledger.Repository
	inventory inventoryStore
	close     func(context.Context) error
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	store, err := openStorage(context.Background(), cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer func() {
		if err := store.close(context.Background()); err != nil {
			baseLogger.Error("failed to close storage", zap.Error(err))
		}
	}()

	var varieties catalog.VarietySource = store.inventory
	if cfg.Catalog.Source == "sheets" {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		varieties = sheets.NewVarietyCatalog(sheetsRepo, cfg.Sheets.Range, baseLogger.Named("repo.sheets"))
	}

	lookup := catalog.NewService(varieties, store.inventory, cfg.Catalog.CacheTTL, baseLogger.Named("svc.catalog"))
	accEngine := accumulation.NewEngine(store.ledger, lookup, baseLogger.Named("svc.accumulation"))
	policy := fumigation.Policy{
		ServiceType:       cfg.Fumigation.GasificationServiceType,
		IntervalDays:      cfg.Fumigation.IntervalDays,
		LossThreshold:     cfg.Fumigation.LossThreshold,
		UricAcidThreshold: cfg.Fumigation.UricAcidThreshold,
	}
	recommender := fumigation.NewRecommender(policy, accEngine, lookup, store.inventory, baseLogger.Named("svc.fumigation"))
	analyticsSvc := analyticssvc.NewService(lookup, store.ledger, accEngine, recommender, baseLogger.Named("svc.analytics"))

	var notifier whatsappsvc.Notifier
	if cfg.WhatsApp.Enabled() {
		notifier = whatsappsvc.NewAlertService(cfg.WhatsApp, whatsappclient.NewClient(cfg.WhatsApp), baseLogger.Named("svc.whatsapp"))
		baseLogger.Info("whatsapp alerts enabled", zap.Int("recipients", len(cfg.WhatsApp.Recipients)))
	} else {
		notifier = whatsappsvc.NewLogNotifier(baseLogger.Named("svc.whatsapp"))
		baseLogger.Warn("whatsapp token missing, alerts are only logged")
	}
	reportingSvc := reportingsvc.NewService(analyticsSvc, baseLogger.Named("svc.reporting"))

	sched, err := scheduler.NewScheduler(cfg.Scheduler, reportingSvc, notifier, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Config validation already loaded the timezone once.
	loc, _ := time.LoadLocation(cfg.Scheduler.Timezone)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsSvc, loc, baseLogger.Named("handlers.analytics"))
	engine := router.New(analyticsHandler, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("ledger_driver", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStorage(ctx context.Context, cfg *config.Config, base *zap.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case sqlstore.DriverSQLite, sqlstore.DriverPostgres:
		db, err := sqlstore.Open(cfg.Storage.Driver, cfg.Storage.DSN, base.Named("repo.sql"))
		if err != nil {
			return nil, err
		}
		return &storage{
			ledger:    sqlstore.NewLedgerRepository(db, base.Named("repo.ledger")),
			inventory: sqlstore.NewInventoryRepository(db),
			close: func(context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		}, nil
	case "mongodb":
		store, err := mongodb.NewStore(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			return nil, err
		}
		return &storage{
			ledger:    mongodb.NewLedgerRepository(store, base.Named("repo.ledger")),
			inventory: mongodb.NewInventoryRepository(store),
			close:     store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", cfg.Storage.Driver)
	}
}
