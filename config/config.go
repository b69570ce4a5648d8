package config

import (
	"time"

	"github.com/mailfold/mailfold/internal/logger"
	"github.com/mailfold/mailfold/internal/tracing"
)

type Config struct {
	AppConfig      *AppConfig
	EngineConfig   *EngineConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
	DatabaseConfig *DatabaseConfig
}

type AppConfig struct {
	APIPort      string `env:"PORT" envDefault:"12222"`
	APIKey       string `env:"API_KEY"`
	RabbitMQURL  string `env:"RABBITMQ_URL"`
	AccountsFile string `env:"ACCOUNTS_FILE" envDefault:"accounts.yaml"`
}

// EngineConfig carries the sync engine tunables. The defaults match the
// historical fixed values: 30 day lookback, 15 second fallback poll.
type EngineConfig struct {
	LookbackWindow       time.Duration `env:"SYNC_LOOKBACK_WINDOW" envDefault:"720h"`
	PollInterval         time.Duration `env:"SYNC_POLL_INTERVAL" envDefault:"15s"`
	FetchTimeout         time.Duration `env:"SYNC_FETCH_TIMEOUT" envDefault:"2m"`
	ConnectTimeout       time.Duration `env:"SYNC_CONNECT_TIMEOUT" envDefault:"1m"`
	ReconnectMaxAttempts int           `env:"SYNC_RECONNECT_MAX_ATTEMPTS" envDefault:"10"`
	ReconnectMaxBackoff  time.Duration `env:"SYNC_RECONNECT_MAX_BACKOFF" envDefault:"5m"`
}

// DatabaseConfig is optional: when Host is empty the engine runs with an
// in-memory checkpoint store.
type DatabaseConfig struct {
	Host            string `env:"POSTGRES_HOST"`
	Port            string `env:"POSTGRES_PORT" envDefault:"5432"`
	User            string `env:"POSTGRES_USER"`
	DBName          string `env:"POSTGRES_DB_NAME"`
	Password        string `env:"POSTGRES_PASSWORD"`
	MaxConn         int    `env:"POSTGRES_DB_MAX_CONN" envDefault:"20"`
	MaxIdleConn     int    `env:"POSTGRES_DB_MAX_IDLE_CONN" envDefault:"5"`
	ConnMaxLifetime int    `env:"POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"300"`
	LogLevel        string `env:"POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
}
