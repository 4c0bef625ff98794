package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"hireline/internal/domain"
)

// Config models hireline.yml.
type Config struct {
	Platform struct {
		Name              string   `yaml:"name" json:"name"`
		Owners            []string `yaml:"owners" json:"owners"`
		Account           string   `yaml:"account" json:"account"`
		Beneficiary       string   `yaml:"beneficiary" json:"beneficiary"`
		ServiceFeePercent int64    `yaml:"service_fee_percent" json:"service_fee_percent"`
		PipelineMaxLength int      `yaml:"pipeline_max_length" json:"pipeline_max_length"`
	} `yaml:"platform" json:"platform"`
	Pipeline struct {
		BlockDeleteBelowActive bool `yaml:"block_delete_below_active" json:"block_delete_below_active"`
	} `yaml:"pipeline" json:"pipeline"`
	Token struct {
		Symbol        string           `yaml:"symbol" json:"symbol"`
		InitialSupply map[string]int64 `yaml:"initial_supply" json:"initial_supply,omitempty"`
	} `yaml:"token" json:"token"`
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks,omitempty"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events" json:"events,omitempty"`
	Secret         string   `yaml:"secret" json:"-"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with hl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Platform.Name) == "" {
		return fmt.Errorf("config.platform.name is required")
	}
	if len(c.Platform.Owners) == 0 {
		return fmt.Errorf("config.platform.owners requires at least one identity")
	}
	for _, o := range c.Platform.Owners {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("config.platform.owners contains an empty identity")
		}
		if domain.IsTenantAccount(o) || o == c.Platform.Account {
			return fmt.Errorf("config.platform.owners contains reserved account %q", o)
		}
	}
	if strings.TrimSpace(c.Platform.Account) == "" {
		return fmt.Errorf("config.platform.account is required")
	}
	if strings.TrimSpace(c.Platform.Beneficiary) == "" {
		return fmt.Errorf("config.platform.beneficiary is required")
	}
	if c.Platform.ServiceFeePercent < 0 || c.Platform.ServiceFeePercent > 100 {
		return fmt.Errorf("config.platform.service_fee_percent must be within 0..100")
	}
	if c.Platform.PipelineMaxLength < 1 {
		return fmt.Errorf("config.platform.pipeline_max_length must be at least 1")
	}
	for account, amount := range c.Token.InitialSupply {
		if strings.TrimSpace(account) == "" {
			return fmt.Errorf("config.token.initial_supply has an empty account")
		}
		if amount < 0 {
			return fmt.Errorf("config.token.initial_supply for %s is negative", account)
		}
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds is negative", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "hireline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `platform:
  name: Oracle
  owners: [local-user]
  account: platform
  beneficiary: beneficiary
  service_fee_percent: 5
  pipeline_max_length: 6

pipeline:
  # false keeps subscriber positions untouched when a stage at or below
  # their position is deleted; true rejects such deletes.
  block_delete_below_active: false

token:
  symbol: VERA

webhooks: []
`
