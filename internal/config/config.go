// Package config loads the taskping YAML configuration with env overrides
// for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	// AuthToken guards the manual /process endpoint.
	AuthToken string         `yaml:"auth_token"`
	PhoneDir  string         `yaml:"phone_dir"`
	Store     StoreConfig    `yaml:"store"`
	Carrier   CarrierConfig  `yaml:"carrier"`
	Reminder  ReminderConfig `yaml:"reminder"`
}

type StoreConfig struct {
	// Backend selects the task store: "docstore" (local files) or
	// "property" (remote property-store API).
	Backend string `yaml:"backend"`
	Root    string `yaml:"root"` // docstore root directory

	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	DatabaseID string `yaml:"database_id"`
	Version    string `yaml:"version"`
}

type CarrierConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
	BaseURL    string `yaml:"base_url"`
}

type ReminderConfig struct {
	Interval time.Duration `yaml:"interval"`
	Lead     time.Duration `yaml:"lead"`
	Window   time.Duration `yaml:"window"`
}

// Load reads the config file at path. A missing file yields defaults; env
// overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ListenAddr: ":8086",
		PhoneDir:   "~/.taskping/phones.json",
		Store: StoreConfig{
			Backend: "docstore",
			Root:    "~/.taskping/store",
		},
		Reminder: ReminderConfig{
			Interval: time.Minute,
			Lead:     2 * time.Minute,
			Window:   time.Minute,
		},
	}
}

func (c *Config) applyEnvOverrides() {
	setIfEnv(&c.AuthToken, "TASKPING_AUTH_TOKEN")
	setIfEnv(&c.Store.APIKey, "TASKPING_STORE_API_KEY")
	setIfEnv(&c.Store.DatabaseID, "TASKPING_STORE_DATABASE_ID")
	setIfEnv(&c.Carrier.AccountSID, "TASKPING_CARRIER_SID")
	setIfEnv(&c.Carrier.AuthToken, "TASKPING_CARRIER_TOKEN")
	setIfEnv(&c.Carrier.FromNumber, "TASKPING_CARRIER_FROM")
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8086"
	}
	if c.PhoneDir == "" {
		c.PhoneDir = "~/.taskping/phones.json"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "docstore"
	}
	if c.Store.Root == "" {
		c.Store.Root = "~/.taskping/store"
	}
	if c.Reminder.Interval <= 0 {
		c.Reminder.Interval = time.Minute
	}
	if c.Reminder.Lead <= 0 {
		c.Reminder.Lead = 2 * time.Minute
	}
	if c.Reminder.Window <= 0 {
		c.Reminder.Window = time.Minute
	}
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
