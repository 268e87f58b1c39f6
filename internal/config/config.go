package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	HTTP       HTTPConfig       `yaml:"http"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Webhook    WebhookConfig    `yaml:"webhook"`
}

type HTTPConfig struct {
	Port int `yaml:"port" env-default:"8080"`
}

type PostgresConfig struct {
	Port    string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	Host    string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	DbName  string `yaml:"db_name" env:"POSTGRES_DB"`
	User    string `yaml:"user" env:"POSTGRES_USER"`
	Pwd     string `yaml:"password" env:"POSTGRES_PASSWORD"`
	SslMode string `yaml:"sslmode" env-default:"disable"`
}

type KafkaConfig struct {
	BrokerList    []string `yaml:"broker_list" env:"KAFKA_BROKERS"`
	EventTopic    string   `yaml:"event_topic" env-default:"fulfillment.events"`
	ConsumerGroup string   `yaml:"consumer_group" env-default:"fulfillment"`
}

type DispatcherConfig struct {
	Workers        int           `yaml:"workers" env-default:"4"`
	HandlerTimeout time.Duration `yaml:"handler_timeout" env-default:"5s"`
	MaxAttempts    int           `yaml:"max_attempts" env-default:"3"`
}

type DeliveryConfig struct {
	BaseFeeCents  int64 `yaml:"base_fee_cents" env-default:"200"`
	PerKmFeeCents int64 `yaml:"per_km_fee_cents" env-default:"50"`
}

type WebhookConfig struct {
	PaymentSecret string `yaml:"payment_secret" env:"PAYMENT_WEBHOOK_SECRET"`
}

func InitConfig() Config {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	configPath := getConfigPath()

	if configPath == "" {
		panic("config path is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return cfg
}

func getConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	return path
}
