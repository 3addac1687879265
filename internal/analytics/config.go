package analytics

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"storefront-cart/internal/app"
)

type Config struct {
	ServerPort   string          `yaml:"srv_port" split_words:"true"`
	CfgDB        app.ConfigDB    `yaml:"db" envconfig:"DB"`
	MaxOpenConns int             `yaml:"max_open_conns" split_words:"true"`
	Kafka        app.ConfigKafka `yaml:"kafka" envconfig:"KAFKA"`
}

func NewConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process("ANALYTICS", &cfg); err != nil {
		return nil, fmt.Errorf("parsing env overrides: %w", err)
	}

	if cfg.ServerPort == "" {
		cfg.ServerPort = ":8085"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "cart-analytics"
	}
	if !cfg.Kafka.Enabled() {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}

	return &cfg, nil
}
