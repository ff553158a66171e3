package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"8000"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	// APIBaseURL is handed to front ends by the public config endpoint.
	APIBaseURL string `env:"API_BASE_URL"`

	Gateway  GatewayConfig
	Callback CallbackConfig

	DisabledPaymentMethods []string `env:"DISABLED_PAYMENT_METHODS" envDefault:"credit_card" envSeparator:","`
	Currency               string   `env:"CURRENCY" envDefault:"BRL"`
	Country                string   `env:"COUNTRY" envDefault:"BR"`
	PlatformName           string   `env:"PLATFORM_NAME" envDefault:"KorePay"`

	OrderSink      OrderSinkConfig
	ConversionSink ConversionSinkConfig
	Store          StoreConfig
	Kafka          KafkaConfig
	SMTP           SMTPConfig
}

type GatewayConfig struct {
	BaseURL       string        `env:"KOREPAY_BASE_URL" envDefault:"https://api.korepay.com.br/functions/v1"`
	PublicKey     string        `env:"KOREPAY_PUBLIC_KEY"`
	SecretKey     string        `env:"KOREPAY_SECRET_KEY"`
	CreateTimeout time.Duration `env:"GATEWAY_CREATE_TIMEOUT" envDefault:"30s"`
	StatusTimeout time.Duration `env:"GATEWAY_STATUS_TIMEOUT" envDefault:"20s"`
}

// Configured reports whether both halves of the Basic credential are set.
func (g GatewayConfig) Configured() bool {
	return strings.TrimSpace(g.PublicKey) != "" && strings.TrimSpace(g.SecretKey) != ""
}

type CallbackConfig struct {
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	PostbackPath  string `env:"POSTBACK_PATH" envDefault:"/api/postbacks/korepay/"`
	ThankYouPath  string `env:"THANK_YOU_PATH" envDefault:"/obrigado"`
}

type OrderSinkConfig struct {
	Token    string        `env:"UTMIFY_TOKEN"`
	Endpoint string        `env:"UTMIFY_ENDPOINT" envDefault:"https://api.utmify.com.br/api-credentials/orders"`
	Timeout  time.Duration `env:"SINK_TIMEOUT" envDefault:"20s"`
}

type ConversionSinkConfig struct {
	AccessToken   string            `env:"META_ACCESS_TOKEN"`
	Pixels        []string          `env:"META_PIXELS" envSeparator:","`
	PixelTokens   map[string]string `env:"META_PIXEL_TOKENS" envSeparator:"," envKeyValSeparator:":"`
	APIVersion    string            `env:"META_API_VERSION" envDefault:"v21.0"`
	TestEventCode string            `env:"META_TEST_EVENT_CODE"`
	GraphURL      string            `env:"META_GRAPH_URL" envDefault:"https://graph.facebook.com"`
	Timeout       time.Duration     `env:"SINK_TIMEOUT" envDefault:"20s"`
}

type StoreConfig struct {
	Driver         string        `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	MigrationsPath string        `env:"MIGRATIONS_PATH" envDefault:"file://db/migrations"`
	BoltPath       string        `env:"BOLT_PATH" envDefault:"relay.db"`
	RedisURL       string        `env:"REDIS_URL"`
	NotifiedTTL    time.Duration `env:"NOTIFIED_TTL" envDefault:"0s"`
	CardAuditLog   string        `env:"CARD_AUDIT_LOG"`
}

type KafkaConfig struct {
	BootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS"`
	PurchaseTopic    string `env:"KAFKA_PURCHASE_TOPIC" envDefault:"successful_payments"`
	ReceiptGroupID   string `env:"KAFKA_RECEIPT_GROUP_ID" envDefault:"payment_relay_receipts"`
}

func (k KafkaConfig) Enabled() bool {
	return k.Servers() != ""
}

// Servers strips the quotes some deployments leave around the broker list.
func (k KafkaConfig) Servers() string {
	return strings.Trim(strings.TrimSpace(k.BootstrapServers), "\"")
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     string `env:"SMTP_PORT"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"MAIL_FROM"`
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Port != "" && s.User != "" && s.Password != "" && s.From != ""
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			log.WithField("file", f).Warn("Could not load .env file.")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.ConversionSink.PixelTokens = trimPairs(cfg.ConversionSink.PixelTokens)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverBolt:
	case DriverPostgres:
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverBolt && strings.TrimSpace(c.Store.BoltPath) == "" {
		return errors.New("BOLT_PATH is required for the bolt store")
	}
	return nil
}

// Token returns the access token for a pixel, falling back to the shared one.
func (c ConversionSinkConfig) Token(pixel string) string {
	if t := strings.TrimSpace(c.PixelTokens[pixel]); t != "" {
		return t
	}
	return strings.TrimSpace(c.AccessToken)
}

// Destinations lists the configured pixels that have a usable token.
func (c ConversionSinkConfig) Destinations() []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] || c.Token(p) == "" {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for _, p := range c.Pixels {
		add(p)
	}
	return out
}

// trimPairs drops the blanks around each pixel:token pair, so a list written
// as "111:a, 222:b" resolves "222".
func trimPairs(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if k = strings.TrimSpace(k); k != "" {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}
