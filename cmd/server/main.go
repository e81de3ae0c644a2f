package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"auctionhouse/internal/bidding"
	"auctionhouse/internal/broadcast"
	"auctionhouse/internal/config"
	cronrunner "auctionhouse/internal/cron"
	"auctionhouse/internal/db"
	"auctionhouse/internal/handler"
	"auctionhouse/internal/logger"
	"auctionhouse/internal/notify"
	"auctionhouse/internal/repository"
	gormrepository "auctionhouse/internal/repository/gorm"
	memrepository "auctionhouse/internal/repository/memory"
	"auctionhouse/internal/settlement"
)

func main() {
	cfgPath := os.Getenv("AUCTION_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("AUCTION_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var store repository.Store
	var gormDB *gorm.DB
	switch cfg.DB.Driver {
	case "memory":
		store = memrepository.New()
		log.Warn("using in-memory store; data will not survive restart")
	default:
		dbConn, err := db.Open(cfg.DB)
		if err != nil {
			log.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(dbConn)
		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			log.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(dbConn); err != nil {
			log.Fatal("auto-migrate failed", zap.Error(err))
		}
		gormDB = dbConn.Gorm
		store = gormrepository.New(gormDB)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink := notify.NewDispatcher(store, log, cfg.Notify.QueueSize, cfg.Notify.Workers)
	go sink.Run(ctx)

	hub := broadcast.NewHub(log, cfg.Broadcast.SendBuffer)

	opts, err := bidding.OptionsFromConfig(cfg.Bidding)
	if err != nil {
		log.Fatal("bidding config invalid", zap.Error(err))
	}
	bidService, err := bidding.NewService(store, sink, hub, log, opts)
	if err != nil {
		log.Fatal("bidding service init failed", zap.Error(err))
	}
	log.Info("bidding service ready", zap.String("strategy", bidService.StrategyName()))

	payments := &settlement.LoggingPayments{Logger: log}
	sweeper := settlement.NewSweeper(store, sink, hub, payments, log, cfg.Settlement)
	announcer := settlement.NewAnnouncer(store, hub, log, cfg.Settlement.EndingSoonWindow)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	(&handler.HealthHandler{DB: gormDB}).Register(engine)
	(&handler.AuctionHandler{Store: store, Logger: log}).Register(engine)
	(&handler.BidHandler{Service: bidService, Store: store, Logger: log}).Register(engine)
	(&handler.AdminHandler{Sweeper: sweeper, Store: store, Logger: log}).Register(engine)
	(&handler.LiveFeedHandler{Hub: hub, Store: store, ReadLimit: cfg.Broadcast.ReadLimit}).Register(engine)

	cronRunner := cronrunner.New(log, ctx)
	if cfg.Cron.Enabled {
		if _, err := cronRunner.Add("expiration-sweep", cfg.Settlement.Schedule, func(ctx context.Context) {
			if _, err := sweeper.Sweep(ctx); err != nil {
				log.Warn("cron sweep failed", zap.Error(err))
			}
		}); err != nil {
			log.Warn("cron register sweep failed", zap.Error(err))
		}
		if _, err := cronRunner.Add("ending-soon", cfg.Settlement.EndingSoonSchedule, func(ctx context.Context) {
			if err := announcer.Announce(ctx); err != nil {
				log.Warn("cron ending-soon failed", zap.Error(err))
			}
		}); err != nil {
			log.Warn("cron register ending-soon failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
