package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required"`
	WebhookSecret string `env:"WEBHOOK_SECRET,required"`

	ProviderAPIURL           string `env:"PROVIDER_API_URL" envDefault:"http://mock-provider:8081"`
	ProviderAPIKey           string `env:"PROVIDER_API_KEY" envDefault:""`
	ProviderRetryMaxElapsedS int    `env:"PROVIDER_RETRY_MAX_ELAPSED_S" envDefault:"30"`

	ReconcileIntervalMS int `env:"RECONCILE_INTERVAL_MS" envDefault:"1000"`
	ReconcileBatchSize  int `env:"RECONCILE_BATCH_SIZE" envDefault:"10"`

	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
