package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DBDriver       string `envconfig:"DB_DRIVER" default:"sqlite3"`
	DBDSN          string `envconfig:"DB_DSN" default:"./checkout.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"`
	DBMaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`

	ReservationTTL  time.Duration `envconfig:"RESERVATION_TTL" default:"15m"`
	JanitorInterval time.Duration `envconfig:"JANITOR_INTERVAL" default:"1m"`

	KafkaEnabled        bool   `envconfig:"KAFKA_ENABLED" default:"false"`
	KafkaBrokers        string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	OrderTopic          string `envconfig:"ORDER_TOPIC" default:"order-events"`
	InventoryTopic      string `envconfig:"INVENTORY_TOPIC" default:"inventory-alerts"`
	ReconciliationTopic string `envconfig:"RECONCILIATION_TOPIC" default:"reconciliation-events"`

	ArchiveEnabled   bool   `envconfig:"ARCHIVE_ENABLED" default:"false"`
	AWSRegion        string `envconfig:"AWS_REGION" default:"ap-northeast-2"`
	OrderTableName   string `envconfig:"ORDER_TABLE_NAME" default:"orders"`
	DynamoDBEndpoint string `envconfig:"DYNAMODB_ENDPOINT" default:""` // DynamoDB Local

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	TaxRate               decimal.Decimal `envconfig:"TAX_RATE" default:"0.18"`
	ShippingFlatFee       decimal.Decimal `envconfig:"SHIPPING_FLAT_FEE" default:"40"`
	FreeShippingThreshold decimal.Decimal `envconfig:"FREE_SHIPPING_THRESHOLD" default:"500"`
	Currency              string          `envconfig:"CURRENCY" default:"INR"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
