package app

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix префикс переменных окружения, перекрывающих yaml
const EnvPrefix = "CART"

const (
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	ServerPort string         `yaml:"srv_port" split_words:"true"`
	InstanceID string         `yaml:"instance_id" split_words:"true"`
	Secret     string         `yaml:"secret"`
	Storage    ConfigStorage  `yaml:"storage" envconfig:"STORAGE"`
	Services   ConfigServices `yaml:"services" envconfig:"SERVICES"`
	Stock      ConfigStock    `yaml:"stock" envconfig:"STOCK"`
	Kafka      ConfigKafka    `yaml:"kafka" envconfig:"KAFKA"`
	Cart       ConfigCart     `yaml:"cart" envconfig:"CART"`
}

type ConfigStorage struct {
	Driver       string      `yaml:"driver"`
	Redis        ConfigRedis `yaml:"redis" envconfig:"REDIS"`
	CfgDB        ConfigDB    `yaml:"db" envconfig:"DB"`
	MaxOpenConns int         `yaml:"max_open_conns" split_words:"true"`
}

type ConfigRedis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type ConfigDB struct {
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
	Port     uint   `yaml:"port"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
}

// DSN строка подключения для lib/pq
func (c ConfigDB) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s "+"password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Login, c.Password, c.Database,
	)
}

type ConfigServices struct {
	InventoryURL string        `yaml:"inventory_url" split_words:"true"`
	CatalogURL   string        `yaml:"catalog_url" split_words:"true"`
	OrdersURL    string        `yaml:"orders_url" split_words:"true"`
	Timeout      time.Duration `yaml:"timeout"`
}

type ConfigStock struct {
	Concurrency   int           `yaml:"concurrency"`
	LookupTimeout time.Duration `yaml:"lookup_timeout" split_words:"true"`
}

type ConfigKafka struct {
	Brokers    []string `yaml:"brokers"`
	Topic      string   `yaml:"topic"`
	GroupID    string   `yaml:"group_id" split_words:"true"`
	Invalidate bool     `yaml:"invalidate"`
}

// Enabled kafka используется только при заданных брокерах
func (c ConfigKafka) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

type ConfigCart struct {
	IdleTTL       time.Duration `yaml:"idle_ttl" split_words:"true"`
	SweepInterval time.Duration `yaml:"sweep_interval" split_words:"true"`
}

// NewConfig читает yaml, затем перекрывает значения из окружения (CART_*)
// и проставляет значения по умолчанию
func NewConfig(configPath string) (*Config, error) {
	cfg, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var c Config
	err = yaml.Unmarshal(cfg, &c)
	if err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing env overrides: %w", err)
	}

	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) setDefaults() {
	if c.ServerPort == "" {
		c.ServerPort = ":8080"
	}
	if c.InstanceID == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			c.InstanceID = host
		} else {
			c.InstanceID = uuid.NewString()
		}
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageRedis
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "redis:6379"
	}
	if c.Storage.MaxOpenConns == 0 {
		c.Storage.MaxOpenConns = 10
	}
	if c.Services.Timeout == 0 {
		c.Services.Timeout = 5 * time.Second
	}
	if c.Stock.Concurrency == 0 {
		c.Stock.Concurrency = 8
	}
	if c.Stock.LookupTimeout == 0 {
		c.Stock.LookupTimeout = 3 * time.Second
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "cart-" + c.InstanceID
	}
	if c.Cart.IdleTTL == 0 {
		c.Cart.IdleTTL = 30 * time.Minute
	}
	if c.Cart.SweepInterval == 0 {
		c.Cart.SweepInterval = time.Minute
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageRedis, StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Services.InventoryURL == "" || c.Services.CatalogURL == "" || c.Services.OrdersURL == "" {
		return fmt.Errorf("services: inventory_url, catalog_url and orders_url are required")
	}
	if c.Stock.Concurrency < 0 {
		return fmt.Errorf("stock.concurrency must be positive, got %d", c.Stock.Concurrency)
	}
	if c.Cart.SweepInterval < 0 || c.Cart.IdleTTL < 0 {
		return fmt.Errorf("cart: idle_ttl and sweep_interval must be positive")
	}

	return nil
}
