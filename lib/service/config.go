package service

import "time"

type Config struct {
	DatabaseUri                 string  `envconfig:"DATABASE_URI" required:"true"`
	DatabaseMaxConns            int     `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns        int     `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime     int     `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes
	SentryDSN                   string  `envconfig:"SENTRY_DSN"`
	SentryTracesSampleRate      float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	DatadogAgentUrl             string  `envconfig:"DATADOG_AGENT_URL"`
	LogFilePath                 string  `envconfig:"LOG_FILE_PATH"`
	JWTSecret                   []byte  `envconfig:"JWT_SECRET" required:"true"`
	JWTAccessTokenExpiry        int     `envconfig:"JWT_ACCESS_EXPIRY" default:"172800"` // in seconds, default 2 days
	AdminToken                  string  `envconfig:"ADMIN_TOKEN"`
	Host                        string  `envconfig:"HOST" default:"localhost:3000"`
	Port                        int     `envconfig:"PORT" default:"3000"`
	DefaultRateLimit            int     `envconfig:"DEFAULT_RATE_LIMIT" default:"10"`
	StrictRateLimit             int     `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit              int     `envconfig:"BURST_RATE_LIMIT" default:"1"`
	EnablePrometheus            bool    `envconfig:"ENABLE_PROMETHEUS" default:"false"`
	PrometheusPort              int     `envconfig:"PROMETHEUS_PORT" default:"9092"`
	WebhookUrl                  string  `envconfig:"WEBHOOK_URL"`
	RabbitMQUri                 string  `envconfig:"RABBITMQ_URI"`
	RabbitMQTransactionExchange string  `envconfig:"RABBITMQ_TRANSACTION_EXCHANGE" default:"billing_transaction"`
	Currency                    string  `envconfig:"CURRENCY" default:"RUB"`
	MinDepositAmount            int64   `envconfig:"MIN_DEPOSIT_AMOUNT" default:"10000"` // kopecks
	PaymentReturnUrl            string  `envconfig:"PAYMENT_RETURN_URL"`
	GatewayRequestTimeout       int     `envconfig:"GATEWAY_REQUEST_TIMEOUT" default:"30"`  // in seconds
	PendingCheckInterval        int     `envconfig:"PENDING_CHECK_INTERVAL" default:"60"`   // in seconds
	PendingCheckMinAge          int     `envconfig:"PENDING_CHECK_MIN_AGE" default:"120"`   // in seconds
	InvoiceVatRate              int64   `envconfig:"INVOICE_VAT_RATE" default:"20"`         // percent
	InvoiceDueDays              int     `envconfig:"INVOICE_DUE_DAYS" default:"14"`
	TinkoffTerminalKey          string  `envconfig:"TINKOFF_TERMINAL_KEY"`
	TinkoffSecretKey            string  `envconfig:"TINKOFF_SECRET_KEY"`
	TinkoffApiUrl               string  `envconfig:"TINKOFF_API_URL"`
	AlfabankUsername            string  `envconfig:"ALFABANK_USERNAME"`
	AlfabankPassword            string  `envconfig:"ALFABANK_PASSWORD"`
	AlfabankWebhookSecret       string  `envconfig:"ALFABANK_WEBHOOK_SECRET"`
	AlfabankApiUrl              string  `envconfig:"ALFABANK_API_URL"`
}

func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayRequestTimeout) * time.Second
}
