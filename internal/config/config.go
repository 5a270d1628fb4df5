// Package config loads and validates the agent's JSON configuration
// file and implements the schema/table wildcard matching used to route
// row events to sink instances.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// KafkaConfig configures a Kafka sink.
type KafkaConfig struct {
	Brokers            []string `json:"brokers"`
	QueueBufferingMax  int      `json:"queue_buffering_max"`
}

// RedisConfig configures a Redis sink.
type RedisConfig struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// MQConfig is the tagged union of sink backends for one configured MQ.
type MQConfig struct {
	Kafka *KafkaConfig `json:"KAFKA,omitempty"`
	Redis *RedisConfig `json:"REDIS,omitempty"`
}

// MQ names one sink by name plus its backend configuration.
type MQ struct {
	Name   string   `json:"mq_name"`
	Config MQConfig `json:"mq_cfg"`
}

// Instance routes matching (schema, table) row events to a named sink
// under a fixed topic, subject to a blacklist.
type Instance struct {
	MQ        string   `json:"mq"`
	Schemas   string   `json:"schemas"`
	Tables    string   `json:"tables"`
	BlackList []string `json:"black_list"`
	Topic     string   `json:"topic"`
}

// Config is the full agent configuration, loaded from the JSON file
// named by -c/--config.
type Config struct {
	DBIP        string     `json:"db_ip"`
	DBPort      int        `json:"db_port"`
	MaxPackages int        `json:"max_packages"`
	UserName    string     `json:"user_name"`
	Passwd      string     `json:"passwd"`
	Workers     int        `json:"workers"`
	FromStart   bool       `json:"from_start,omitempty"`
	MQs         []MQ       `json:"mqs"`
	Instances   []Instance `json:"instances"`
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the structural invariants Load relies on: db_ip must
// be set, and every instance must reference a declared MQ name. A
// workers value of zero or less is accepted; the caller substitutes a
// CPU-count default.
func (c *Config) Validate() error {
	if c.DBIP == "" {
		return fmt.Errorf("config: db_ip is required")
	}
	names := make(map[string]bool, len(c.MQs))
	for _, mq := range c.MQs {
		names[mq.Name] = true
	}
	for _, inst := range c.Instances {
		if !names[inst.MQ] {
			return fmt.Errorf("config: instance references unknown mq %q", inst.MQ)
		}
	}
	return nil
}

// Generate writes a default configuration to path, for -g/--gen.
func Generate(path string) error {
	cfg := Config{
		DBIP:        "127.0.0.1",
		DBPort:      3306,
		MaxPackages: 16 * 1024 * 1024,
		UserName:    "root",
		Passwd:      "",
		Workers:     4,
		MQs: []MQ{
			{Name: "kafka-main", Config: MQConfig{Kafka: &KafkaConfig{Brokers: []string{"127.0.0.1:9092"}, QueueBufferingMax: 1000}}},
		},
		Instances: []Instance{
			{MQ: "kafka-main", Schemas: "*", Tables: "*", BlackList: []string{}, Topic: "ru-cdc"},
		},
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
