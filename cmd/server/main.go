// Package main is the entry point for the regret analytics service. It
// maintains a lot-accounted transaction ledger, recomputes daily
// liquidation-P&L snapshot series, and serves what-if simulations over
// hypothetical lot sets.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/regret/internal/config"
	"github.com/aristath/regret/internal/database"
	"github.com/aristath/regret/internal/marketdata"
	marketdatahandlers "github.com/aristath/regret/internal/marketdata/handlers"
	"github.com/aristath/regret/internal/modules/ledger"
	ledgerhandlers "github.com/aristath/regret/internal/modules/ledger/handlers"
	"github.com/aristath/regret/internal/modules/simulation"
	simulationhandlers "github.com/aristath/regret/internal/modules/simulation/handlers"
	"github.com/aristath/regret/internal/modules/snapshots"
	snapshothandlers "github.com/aristath/regret/internal/modules/snapshots/handlers"
	"github.com/aristath/regret/internal/reliability"
	"github.com/aristath/regret/internal/scheduler"
	"github.com/aristath/regret/internal/server"
	"github.com/aristath/regret/internal/work"
	"github.com/aristath/regret/pkg/logger"
)

const seriesCacheTTL = 15 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting regret service")

	// Four-database layout: ledger.db is the append-only journal and gets
	// the max-durability profile; cache.db holds only rebuildable data.
	ledgerDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "ledger.db"), Profile: database.ProfileLedger, Name: "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger.db")
	}
	defer ledgerDB.Close()

	portfolioDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "portfolio.db"), Profile: database.ProfileStandard, Name: "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio.db")
	}
	defer portfolioDB.Close()

	historyDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "history.db"), Profile: database.ProfileStandard, Name: "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history.db")
	}
	defer historyDB.Close()

	cacheDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "cache.db"), Profile: database.ProfileCache, Name: "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache.db")
	}
	defer cacheDB.Close()

	databases := map[string]*database.DB{
		"ledger":    ledgerDB,
		"portfolio": portfolioDB,
		"history":   historyDB,
		"cache":     cacheDB,
	}

	// Repositories
	transactionRepo, err := ledger.NewTransactionRepository(ledgerDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize transaction repository")
	}
	priceRepo, err := marketdata.NewPriceRepository(historyDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price repository")
	}
	fxRepo, err := marketdata.NewFXRepository(historyDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize fx repository")
	}
	snapshotRepo, err := snapshots.NewSnapshotRepository(portfolioDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot repository")
	}
	cacheRepo, err := snapshots.NewCacheRepository(cacheDB.Conn(), seriesCacheTTL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize series cache repository")
	}

	// Services
	engine := snapshots.NewEngine(log)
	runner := work.NewRunner(cfg.RebuildWorkers, log)
	snapshotService := snapshots.NewService(
		transactionRepo, priceRepo, fxRepo, snapshotRepo, cacheRepo, engine, runner,
		snapshots.Defaults{
			BaseCurrency: cfg.BaseCurrency,
			Strategy:     cfg.DefaultStrategy,
			SellCosts: snapshots.SellCostModel{
				FeeBps:  cfg.SellFeeBps,
				FeeFlat: cfg.SellFeeFlat,
				TaxRate: cfg.TaxRate,
			},
		},
		log,
	)
	lotStore := simulation.NewLotStore()
	simulator := simulation.NewSimulator(log)

	// Background jobs
	sched := scheduler.New(log)
	recomputeJob := scheduler.NewRecomputeJob(snapshotService, 30*time.Minute, log)
	if err := sched.AddJob(cfg.RecomputeSchedule, recomputeJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register recompute job")
	}

	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			Bucket:          cfg.Backup.Bucket,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage client")
		}
		backupService := reliability.NewBackupService(
			databases, s3Client, cfg.DataDir, cfg.Backup.Prefix, cfg.Backup.Keep, log)
		backupJob := scheduler.NewBackupJob(backupService, 30*time.Minute, log)
		if err := sched.AddJob(cfg.Backup.Schedule, backupJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	} else {
		log.Debug().Msg("Cloud backups disabled")
	}

	sched.Start()

	// HTTP server
	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Databases: databases,
		Modules: []server.RouteRegistrar{
			ledgerhandlers.NewHandler(transactionRepo, cfg.DefaultStrategy, log),
			snapshothandlers.NewHandler(snapshotService, log),
			simulationhandlers.NewHandler(lotStore, simulator, priceRepo, log),
			marketdatahandlers.NewHandler(priceRepo, fxRepo, log),
		},
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}
