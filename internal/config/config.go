package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	GatewayBaseURL       string        `env:"GATEWAY_BASE_URL" envDefault:"https://api.xendit.co"`
	GatewaySecretKey     string        `env:"GATEWAY_SECRET_KEY,required,notEmpty"`
	GatewayTimeout       time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	WebhookCallbackToken string        `env:"WEBHOOK_CALLBACK_TOKEN,required,notEmpty"`
	FrontendURL          string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	Currency          string        `env:"CURRENCY" envDefault:"IDR"`
	InvoiceDuration   time.Duration `env:"INVOICE_DURATION" envDefault:"24h"`
	MinDonationAmount int64         `env:"MIN_DONATION_AMOUNT" envDefault:"1000"`
	MaxMessageLength  int           `env:"MAX_MESSAGE_LENGTH" envDefault:"500"`

	RabbitMQURL          string        `env:"RABBITMQ_URL"`
	NotificationExchange string        `env:"NOTIFICATION_EXCHANGE" envDefault:"crowdfund_events"`
	NotifyTimeout        time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`

	RedisURL                   string `env:"REDIS_URL"`
	RedisKeyPrefix             string `env:"REDIS_KEY_PREFIX" envDefault:"crowdfund:rate_limit"`
	DonationRateLimitPerMinute int    `env:"DONATION_RATE_LIMIT_PER_MINUTE" envDefault:"10"`

	ReconcileSchedule  string        `env:"RECONCILE_SCHEDULE"`
	ReconcileGrace     time.Duration `env:"RECONCILE_GRACE" envDefault:"15m"`
	ReconcileBatchSize int           `env:"RECONCILE_BATCH_SIZE" envDefault:"50"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
	DBConnectAttempts  int `env:"DB_CONNECT_ATTEMPTS" envDefault:"30"`
}

// Load reads an optional .env file from the working directory, then parses
// the environment. Variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.MinDonationAmount <= 0 {
		return nil, fmt.Errorf("config.Load: MIN_DONATION_AMOUNT must be positive")
	}
	return &cfg, nil
}
