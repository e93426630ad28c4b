package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL        string
	RedisURL           string
	RedisSentinelAddrs []string // Адреса Sentinel (через запятую)
	RedisMasterName    string   // Имя мастера в Sentinel
	KafkaBrokers       string
	KafkaUsername      string
	KafkaPassword      string
	KafkaCACert        string
	KafkaOrdersTopic   string // Топик событий заказов/производства (списание по escandallo)
	KafkaAlertsTopic   string // Топик для push-уведомлений об алертах
	JWTSecret          string // Пусто = авторизация отключена
	ServerPort         string
	GRPCPort           string
	Environment        string // development | production
	TimeZone           string // Часовой пояс ресторана, определяет "сегодня" для сроков годности

	// Алерты
	AlertsCriticalLimit   int           // Лимит отчета "criticas"
	AlertsExpirationLimit int           // Лимит отчета по срокам годности
	AlertsExpirationDays  int           // Окно "скоро истекает" по умолчанию
	AlertsPollInterval    time.Duration // 0 = поллер выключен
	AlertsDedupTTL        time.Duration // Как долго не повторять один и тот же алерт
	AlertsDedupCapacity   int           // Размер in-memory карты дедупликации
}

// IsProduction сообщает, нужно ли скрывать детали внутренних ошибок от клиента
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_MASTER_NAME", "mymaster")
	v.SetDefault("KAFKA_ORDERS_TOPIC", "order-events")
	v.SetDefault("KAFKA_ALERTS_TOPIC", "inventory-alerts")
	v.SetDefault("PORT", "8080")
	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("TZ_RESTAURANT", "Europe/Madrid")
	v.SetDefault("ALERTS_CRITICAL_LIMIT", 20)
	v.SetDefault("ALERTS_EXPIRATION_LIMIT", 30)
	v.SetDefault("ALERTS_EXPIRATION_DAYS", 7)
	v.SetDefault("ALERTS_POLL_INTERVAL", "60s")
	v.SetDefault("ALERTS_DEDUP_TTL", "30m")
	v.SetDefault("ALERTS_DEDUP_CAPACITY", 1024)

	// SQLite файл по умолчанию; PostgreSQL, если DSN начинается с postgres://
	databaseURL := v.GetString("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = v.GetString("SQLITE_PATH")
	}
	if databaseURL == "" {
		databaseURL = "backoffice.db"
	}

	// Redis опционален: без него дедупликация алертов живет в памяти процесса
	redisURL := v.GetString("REDIS_URL")
	if redisURL == "" {
		if redisHost := v.GetString("REDISHOST"); redisHost != "" {
			redisPort := v.GetString("REDISPORT")
			if redisPort == "" {
				redisPort = "6379"
			}
			redisURL = "redis://" + redisHost + ":" + redisPort + "/0"
		}
	}

	var sentinelAddrs []string
	if raw := v.GetString("REDIS_SENTINEL_ADDRS"); raw != "" {
		for _, addr := range strings.Split(raw, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				sentinelAddrs = append(sentinelAddrs, addr)
			}
		}
	}

	return &Config{
		DatabaseURL:           databaseURL,
		RedisURL:              redisURL,
		RedisSentinelAddrs:    sentinelAddrs,
		RedisMasterName:       v.GetString("REDIS_MASTER_NAME"),
		KafkaBrokers:          v.GetString("KAFKA_BROKERS"),
		KafkaUsername:         v.GetString("KAFKA_USERNAME"),
		KafkaPassword:         v.GetString("KAFKA_PASSWORD"),
		KafkaCACert:           v.GetString("KAFKA_CA_CERT"),
		KafkaOrdersTopic:      v.GetString("KAFKA_ORDERS_TOPIC"),
		KafkaAlertsTopic:      v.GetString("KAFKA_ALERTS_TOPIC"),
		JWTSecret:             v.GetString("JWT_SECRET"),
		ServerPort:            v.GetString("PORT"),
		GRPCPort:              v.GetString("GRPC_PORT"),
		Environment:           v.GetString("APP_ENV"),
		TimeZone:              v.GetString("TZ_RESTAURANT"),
		AlertsCriticalLimit:   v.GetInt("ALERTS_CRITICAL_LIMIT"),
		AlertsExpirationLimit: v.GetInt("ALERTS_EXPIRATION_LIMIT"),
		AlertsExpirationDays:  v.GetInt("ALERTS_EXPIRATION_DAYS"),
		AlertsPollInterval:    v.GetDuration("ALERTS_POLL_INTERVAL"),
		AlertsDedupTTL:        v.GetDuration("ALERTS_DEDUP_TTL"),
		AlertsDedupCapacity:   v.GetInt("ALERTS_DEDUP_CAPACITY"),
	}
}

// Location возвращает часовой пояс ресторана (UTC, если имя не распознано)
func (c *Config) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
