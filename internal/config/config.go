package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env-default:"development"`
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Orders     OrdersConfig     `yaml:"orders"`
	Migrations MigrationsConfig `yaml:"migrations"`
}

type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
}

type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"60"` // minutes
}

// GatewayConfig configures the payment gateway client. Key secret and
// webhook secret never live in the YAML file.
type GatewayConfig struct {
	Name          string        `yaml:"name" env-default:"razorpay"`
	BaseURL       string        `yaml:"base_url" env-required:"true"`
	KeyID         string        `yaml:"key_id" env-required:"true"`
	KeySecret     string        `yaml:"-" env:"GATEWAY_KEY_SECRET" env-required:"true"`
	WebhookSecret string        `yaml:"-" env:"GATEWAY_WEBHOOK_SECRET" env-required:"true"`
	Timeout       time.Duration `yaml:"timeout" env-default:"10s"`
}

// KafkaConfig configures the notification event producer. Disabled means a
// no-op notifier is wired instead.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" env-default:"false"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" env-default:"order-events"`
}

// OrdersConfig carries order pricing defaults. DeliveryCharge is a decimal
// string so no float ever touches a money value.
type OrdersConfig struct {
	DeliveryCharge string `yaml:"delivery_charge" env-default:"30.00"`
	Currency       string `yaml:"currency" env-default:"INR"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// MustLoad panics when the configuration cannot be loaded.
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s", configPath)
	}

	return &cfg
}
