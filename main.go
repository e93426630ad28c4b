package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"backoffice/server/internal/api"
	"backoffice/server/internal/config"
	"backoffice/server/internal/database"
	"backoffice/server/internal/messaging"
	"backoffice/server/internal/models"
	"backoffice/server/internal/services"
	"backoffice/server/internal/utils"
)

func main() {
	// .env опционален: в production переменные приходят из окружения
	envErr := godotenv.Load()

	cfg := config.Load()
	setupLogger(cfg)
	if envErr != nil {
		log.Info().Msg("ℹ️ .env файл не найден, используем переменные окружения системы")
	} else {
		log.Info().Msg("✅ Переменные окружения загружены из .env файла")
	}
	log.Info().Str("database", safeDSN(cfg.DatabaseURL)).Str("env", cfg.Environment).Msg("📋 Конфигурация загружена")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Database connection failed")
	}
	defer database.Close(db)

	if err := models.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("❌ Migration failed")
	}

	// Redis опционален: без него дедупликация живет в памяти, Pub/Sub отключен
	var redisUtil *utils.RedisClient
	redisClient, err := database.ConnectRedis(cfg.RedisURL, cfg.RedisSentinelAddrs, cfg.RedisMasterName)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Redis недоступен, продолжаем без него")
	} else {
		defer database.CloseRedis(redisClient)
		redisUtil = utils.NewRedisClient(redisClient, "backoffice:")
	}

	ledger := services.NewStockLedger(db)
	catalog := services.NewCatalogService(db)
	orders := services.NewOrderService(db)
	production := services.NewProductionService(db)
	engine := services.NewAlertEngine(db, services.AlertEngineOptions{
		CriticalLimit:   cfg.AlertsCriticalLimit,
		ExpirationLimit: cfg.AlertsExpirationLimit,
		ExpirationDays:  cfg.AlertsExpirationDays,
		Location:        cfg.Location(),
	})

	brokers := messaging.ParseKafkaBrokers(cfg.KafkaBrokers)
	creds := messaging.Credentials{Username: cfg.KafkaUsername, Password: cfg.KafkaPassword, CACert: cfg.KafkaCACert}

	// Поллер алертов: все включенные каналы получают одно и то же событие
	notifiers := services.MultiNotifier{services.LogNotifier{}}
	var deduper services.Deduper = services.NewMemoryDeduper(cfg.AlertsDedupTTL, cfg.AlertsDedupCapacity)
	if redisUtil != nil {
		deduper = services.NewRedisDeduper(redisUtil, cfg.AlertsDedupTTL)
		notifiers = append(notifiers, services.NewRedisNotifier(redisUtil, ""))
	}
	if len(brokers) > 0 {
		alertsNotifier := messaging.NewKafkaNotifier(messaging.NewKafkaWriter(brokers, cfg.KafkaAlertsTopic, creds))
		defer alertsNotifier.Close()
		notifiers = append(notifiers, alertsNotifier)

		handler := messaging.NewOrderEventHandler(ledger, production)
		messaging.NewOrderEventConsumer(brokers, cfg.KafkaOrdersTopic, creds, handler).Start(ctx)
	} else {
		log.Info().Msg("ℹ️ KAFKA_BROKERS не установлен: consumer событий и push алертов в Kafka отключены")
	}

	if cfg.AlertsPollInterval > 0 {
		services.NewAlertPoller(engine, deduper, notifiers, cfg.AlertsPollInterval).Start(ctx)
	} else {
		log.Info().Msg("ℹ️ Поллер алертов отключен (ALERTS_POLL_INTERVAL=0)")
	}

	healthCheck := func(ctx context.Context) error {
		if err := database.Ping(db); err != nil {
			return err
		}
		if redisUtil != nil {
			if err := redisUtil.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Controllers{
		Inventory: api.NewInventoryController(ledger, cfg.Location(), cfg.IsProduction()),
		Alerts:    api.NewAlertController(engine, cfg.IsProduction()),
		Catalog:   api.NewCatalogController(catalog, cfg.IsProduction()),
		Orders:    api.NewOrderController(orders, production, cfg.IsProduction()),
	}, cfg.JWTSecret, healthCheck)
	if cfg.JWTSecret == "" {
		log.Warn().Msg("⚠️ JWT_SECRET не установлен: /api/v1 доступен без авторизации")
	}

	grpcServer := grpc.NewServer()
	healthReporter := api.NewHealthReporter(healthCheck, 0)
	healthReporter.Register(grpcServer)
	go healthReporter.Run(ctx)
	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			log.Error().Err(err).Str("port", cfg.GRPCPort).Msg("❌ failed to listen gRPC")
			return
		}
		log.Info().Str("port", cfg.GRPCPort).Msg("📡 gRPC health server starting")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("❌ gRPC server stopped")
		}
	}()

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msgf("🚀 API доступен на http://0.0.0.0:%s/api/v1", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("🛑 Остановка сервера...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("❌ HTTP shutdown")
	}
	grpcServer.GracefulStop()
	log.Info().Msg("✅ Сервер остановлен")
}

// setupLogger: человекочитаемый вывод в development, JSON в production
func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

// safeDSN скрывает пароль в DATABASE_URL
func safeDSN(dsn string) string {
	idx := strings.Index(dsn, "@")
	schemeIdx := strings.Index(dsn, "://")
	if idx > 0 && schemeIdx > 0 && schemeIdx < idx {
		return dsn[:schemeIdx+3] + "***@" + dsn[idx+1:]
	}
	return dsn
}
