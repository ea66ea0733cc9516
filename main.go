package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/auth"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/budget"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/config"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/database"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/events"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/ledger"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/logger"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/receipt"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/report"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/router"
)

func main() {
	cfgPath := ""
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	root, closer, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer closer.Close()
	appLog := logger.For(root, logger.ComponentApp)

	db, err := database.Init(cfg.Database)
	if err != nil {
		appLog.Fatal().Err(err).Msg("init database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		appLog.Fatal().Err(err).Msg("migrate database")
	}

	var pub events.Publisher = events.Nop{}
	if cfg.AMQP.URL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
		if err != nil {
			// the ledger works without the broker; events are best effort
			appLog.Warn().Err(err).Msg("amqp unavailable, ledger events disabled")
		} else {
			pub = p
		}
	}
	defer pub.Close()

	engine := ledger.NewEngine(db, ledger.NewAccountStore(db), pub, logger.For(root, logger.ComponentLedger))

	blobs, err := receipt.NewLocalStore(cfg.Receipt.StorageDir)
	if err != nil {
		appLog.Fatal().Err(err).Msg("init receipt storage")
	}
	receiptLog := logger.For(root, logger.ComponentReceipt)
	receipts := receipt.NewService(db, engine,
		receipt.NewHTTPExtractor(cfg.Receipt.ExtractorURL, cfg.Receipt.ExtractorTimeout, receiptLog),
		blobs,
		receipt.Options{
			EncryptionKey: cfg.Security.EncryptionKey,
			MaxConcurrent: cfg.Receipt.MaxConcurrent,
			Events:        pub,
		},
		receiptLog)

	r := router.SetupRouter(cfg, router.Deps{
		DB:           db,
		Log:          logger.For(root, logger.ComponentHTTP),
		Verifier:     auth.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, db),
		Issuer:       auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpireHours)*time.Hour),
		Hasher:       auth.NewBcryptHasher(cfg.Security.BcryptCost),
		Engine:       engine,
		Budgets:      budget.NewService(db, logger.For(root, logger.ComponentBudget)),
		Reports:      report.NewService(db, logger.For(root, logger.ComponentReport)),
		Receipts:     receipts,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLog.Info().Str("addr", srv.Addr).Str("driver", cfg.Database.Driver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal().Err(err).Msg("run server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error().Err(err).Msg("graceful shutdown")
	}
}
