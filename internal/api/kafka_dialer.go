package api

import (
	"crypto/tls"
	"crypto/x509"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"
)

// KafkaConfig holds the broker connection settings
type KafkaConfig struct {
	Brokers  string
	Topic    string
	Username string
	Password string
	CACert   string
}

// CreateKafkaDialer builds a dialer with SASL/PLAIN and TLS when credentials or a CA are given
func CreateKafkaDialer(cfg KafkaConfig, log *zap.Logger) *kafka.Dialer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if tlsCfg, mechanism := kafkaSecurity(cfg, log); tlsCfg != nil {
		dialer.TLS = tlsCfg
		if mechanism != nil {
			dialer.SASLMechanism = mechanism
		}
	}
	return dialer
}

// NewKafkaWriter builds the producer for invoice events
func NewKafkaWriter(cfg KafkaConfig, log *zap.Logger) *kafka.Writer {
	transport := &kafka.Transport{DialTimeout: 10 * time.Second}
	if tlsCfg, mechanism := kafkaSecurity(cfg, log); tlsCfg != nil {
		transport.TLS = tlsCfg
		if mechanism != nil {
			transport.SASL = mechanism
		}
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(ParseKafkaBrokers(cfg.Brokers)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Transport:              transport,
	}
}

// kafkaSecurity returns nil TLS when the cluster is plaintext. SASL always implies TLS.
func kafkaSecurity(cfg KafkaConfig, log *zap.Logger) (*tls.Config, *plain.Mechanism) {
	if log == nil {
		log = zap.NewNop()
	}
	var mechanism *plain.Mechanism
	if cfg.Username != "" && cfg.Password != "" {
		mechanism = &plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
		log.Info("kafka SASL/PLAIN enabled", zap.String("username", cfg.Username))
	}
	if mechanism == nil && cfg.CACert == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CACert != "" {
		pool := x509.NewCertPool()
		if pool.AppendCertsFromPEM([]byte(cfg.CACert)) {
			tlsConfig.RootCAs = pool
		} else {
			log.Warn("kafka CA certificate could not be parsed, using system roots")
		}
	}
	return tlsConfig, mechanism
}

// ParseKafkaBrokers splits a comma separated broker list
func ParseKafkaBrokers(brokers string) []string {
	if brokers == "" {
		return []string{}
	}
	var result []string
	for _, broker := range strings.Split(strings.ReplaceAll(brokers, " ", ""), ",") {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
