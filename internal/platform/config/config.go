package config

import (
	"os"
	"strings"
)

// Server captures process level configuration so main stays lean.
type Server struct {
	Addr          string
	PostgresURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string
}

// FromEnv builds a Server config from environment variables. Postgres, Redis,
// and Kafka are optional; absent values select the in-memory backends.
func FromEnv() Server {
	addr := os.Getenv("MEDLEDGER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("MEDLEDGER_KAFKA_TOPIC")
	if topic == "" {
		topic = "medledger.audit"
	}

	var brokers []string
	if v := os.Getenv("MEDLEDGER_KAFKA_BROKERS"); v != "" {
		brokers = strings.Split(v, ",")
	}

	jwtSigningKey := os.Getenv("MEDLEDGER_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		PostgresURL:   os.Getenv("MEDLEDGER_POSTGRES_URL"),
		RedisURL:      os.Getenv("MEDLEDGER_REDIS_URL"),
		KafkaBrokers:  brokers,
		KafkaTopic:    topic,
		JWTSigningKey: jwtSigningKey,
	}
}
