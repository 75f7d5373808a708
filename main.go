package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rechnung/server/internal/api"
	"rechnung/server/internal/config"
	"rechnung/server/internal/database"
	"rechnung/server/internal/logger"
	"rechnung/server/internal/models"
	"rechnung/server/internal/render"
	"rechnung/server/internal/services"
	"rechnung/server/internal/utils"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	log, err := logger.New(cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting invoice server",
		zap.String("env", cfg.Environment),
		zap.String("database", redactURL(cfg.DatabaseURL)))

	db, err := database.Open(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = database.ClosePostgres(db) }()
	if err := models.AutoMigrate(db); err != nil {
		return err
	}
	log.Info("database migrations completed")

	// Redis is optional: without it the company cache always misses and save locks are no-ops
	var redisClient *utils.RedisClient
	if cfg.RedisURL != "" || len(cfg.RedisSentinelAddrs) > 0 {
		client, err := database.ConnectRedis(ctx, cfg.RedisURL, cfg.RedisSentinelAddrs, cfg.RedisMasterName, log)
		if err != nil {
			log.Warn("redis unavailable, continuing without cache and locks", zap.Error(err))
		} else {
			defer func() { _ = database.CloseRedis(client) }()
			redisClient = utils.NewRedisClient(client)
		}
	}
	if redisClient == nil {
		redisClient = utils.NewRedisClient(nil)
	}

	auth := services.NewAuthService(db, cfg.JWTSecret, cfg.TokenTTL, log)
	if err := auth.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}
	companies := services.NewCompanyService(db, redisClient, log)
	invoices := services.NewInvoiceService(db, redisClient, log)

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return err
	}

	hub := api.NewHub(log)
	go hub.Run(ctx)

	events := newEventBus(ctx, cfg, node, hub, log)
	defer func() {
		if err := events.Close(); err != nil {
			log.Warn("failed to close kafka writer", zap.Error(err))
		}
	}()

	var archive render.Archiver = render.NopArchive{}
	if cfg.S3Bucket != "" {
		s3, err := render.NewS3Archive(cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			log.Warn("s3 archive disabled", zap.Error(err))
		} else {
			archive = s3
			log.Info("pdf archive enabled", zap.String("bucket", cfg.S3Bucket))
		}
	}

	dbCheck := func(context.Context) error { return database.Ping(db) }
	var redisCheck api.Checker
	if redisClient.Enabled() {
		redisCheck = redisClient.Ping
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics := api.NewMetrics(cfg.Environment)
	router := api.SetupRouter(api.RouterConfig{
		Log:         log,
		Auth:        auth,
		Metrics:     metrics,
		CORSOrigins: cfg.CORSOrigins,
	}, api.Controllers{
		Health:  api.NewHealthController(dbCheck, redisCheck, hub),
		Auth:    api.NewAuthController(auth),
		Company: api.NewCompanyController(companies),
		Invoices: api.NewInvoiceController(api.InvoiceControllerDeps{
			Invoices: invoices,
			Export:   services.NewExportService(),
			Archive:  archive,
			Events:   events,
			Metrics:  metrics,
		}),
		WS: api.NewWSController(hub, cfg.CORSOrigins, log),
	})

	grpcHealth := api.NewGRPCHealthServer(dbCheck, 10*time.Second, log)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}
	go func() {
		if err := grpcHealth.Serve(ctx, lis); err != nil {
			log.Error("grpc health server failed", zap.Error(err))
		}
	}()

	go logMemoryStats(ctx, log, 30*time.Second)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	grpcHealth.Stop()
	return srv.Shutdown(shutdownCtx)
}

// newEventBus fans out through kafka when brokers are configured: the relay consumer feeds the
// local hub, so the bus itself does not broadcast. Without kafka events go straight to the hub.
func newEventBus(ctx context.Context, cfg *config.Config, node *snowflake.Node, hub *api.Hub, log *zap.Logger) *api.EventBus {
	if cfg.KafkaBrokers == "" {
		return api.NewEventBus(node, hub, nil, log)
	}
	kafkaCfg := api.KafkaConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		Username: cfg.KafkaUsername,
		Password: cfg.KafkaPassword,
		CACert:   cfg.KafkaCACert,
	}
	consumer := api.NewKafkaWSConsumer(kafkaCfg, cfg.NodeID, hub, log)
	go func() {
		consumer.Run(ctx)
		_ = consumer.Close()
	}()
	log.Info("kafka events enabled", zap.String("topic", cfg.KafkaTopic))
	return api.NewEventBus(node, nil, api.NewKafkaWriter(kafkaCfg, log), log)
}

func logMemoryStats(ctx context.Context, log *zap.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		heapAllocMB := float64(m.HeapAlloc) / 1024 / 1024
		goroutines := runtime.NumGoroutine()
		log.Debug("memory stats",
			zap.Float64("heap_alloc_mb", heapAllocMB),
			zap.Float64("heap_sys_mb", float64(m.HeapSys)/1024/1024),
			zap.Float64("sys_mb", float64(m.Sys)/1024/1024),
			zap.Uint32("num_gc", m.NumGC),
			zap.Int("goroutines", goroutines))

		if goroutines > 100 {
			log.Warn("high goroutine count", zap.Int("goroutines", goroutines))
		}
		if heapAllocMB > 500 {
			log.Warn("high heap usage", zap.Float64("heap_alloc_mb", heapAllocMB))
		}
	}
}

// redactURL hides credentials in a connection string
func redactURL(raw string) string {
	at := strings.Index(raw, "@")
	scheme := strings.Index(raw, "://")
	if at > 0 && scheme > 0 && scheme < at {
		return raw[:scheme+3] + "***@" + raw[at+1:]
	}
	return raw
}
