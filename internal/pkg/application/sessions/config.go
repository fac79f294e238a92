package sessions

import (
	"fmt"
	"io"
	"time"

	"github.com/diwise/entity-sessions/pkg/mapper/validation"
	yaml "gopkg.in/yaml.v2"
)

type SessionConfig struct {
	TTL           string `yaml:"ttl"`
	GCInterval    string `yaml:"gcInterval"`
	GCMaxLifetime string `yaml:"gcMaxLifetime"`
}

type CookieConfig struct {
	Secure   bool   `yaml:"secure"`
	SameSite string `yaml:"sameSite"`
	Domain   string `yaml:"domain"`
}

type Config struct {
	Session SessionConfig                 `yaml:"session"`
	Cookie  CookieConfig                  `yaml:"cookie"`
	Rules   map[string]validation.RuleSet `yaml:"rules"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)

	return cfg, err
}

func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}

	return d, nil
}

func (c *Config) TTL() (time.Duration, error) {
	return parseDuration("session ttl", c.Session.TTL, DefaultTTL)
}

func (c *Config) GCInterval() (time.Duration, error) {
	return parseDuration("gc interval", c.Session.GCInterval, time.Hour)
}

func (c *Config) GCMaxLifetime() (time.Duration, error) {
	return parseDuration("gc max lifetime", c.Session.GCMaxLifetime, 24*time.Minute)
}

// RulesFor returns the configured rule set of an entity type and whether one was configured
func (c *Config) RulesFor(entityType string) (validation.RuleSet, bool) {
	rules, ok := c.Rules[entityType]
	return rules, ok
}
