// Package messaging подключает сервис к Kafka: push алертов и чтение событий заказов.
package messaging

import (
	"crypto/tls"
	"crypto/x509"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// Credentials - параметры доступа к управляемому Kafka (SASL/PLAIN + TLS)
type Credentials struct {
	Username string
	Password string
	CACert   string
}

func (c Credentials) mechanism() sasl.Mechanism {
	if c.Username == "" || c.Password == "" {
		return nil
	}
	return plain.Mechanism{Username: c.Username, Password: c.Password}
}

// tlsConfig возвращает nil, если TLS не нужен. SASL всегда идет поверх TLS.
func (c Credentials) tlsConfig() *tls.Config {
	if c.mechanism() == nil && c.CACert == "" {
		return nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.CACert != "" {
		pool := x509.NewCertPool()
		if pool.AppendCertsFromPEM([]byte(c.CACert)) {
			cfg.RootCAs = pool
			log.Info().Msg("🔒 Kafka: TLS с CA сертификатом включен")
		} else {
			log.Warn().Msg("⚠️ Kafka: не удалось распарсить CA сертификат, используем системные сертификаты")
		}
	}
	return cfg
}

// CreateKafkaDialer создает dialer для Reader
func CreateKafkaDialer(creds Credentials) *kafka.Dialer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if m := creds.mechanism(); m != nil {
		dialer.SASLMechanism = m
		log.Info().Str("username", creds.Username).Msg("🔐 Kafka: SASL/PLAIN аутентификация включена")
	}
	dialer.TLS = creds.tlsConfig()
	return dialer
}

// CreateKafkaTransport - то же для Writer
func CreateKafkaTransport(creds Credentials) *kafka.Transport {
	return &kafka.Transport{
		DialTimeout: 10 * time.Second,
		SASL:        creds.mechanism(),
		TLS:         creds.tlsConfig(),
	}
}

// ParseKafkaBrokers парсит строку с брокерами через запятую
func ParseKafkaBrokers(brokers string) []string {
	result := []string{}
	for _, broker := range strings.Split(strings.ReplaceAll(brokers, " ", ""), ",") {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
