/*
config.go - Explicit configuration for the scheme

PURPOSE:
  One struct holds everything that was previously ambient: the default
  currency, the free-meal voucher value, and the till's proposed default
  amount. The engine and service take a Config at construction; nothing
  reads global state.

FILE FORMAT (TOML):

  version = "1.0"

  [money]
  currency        = "GBP"
  free_meal_value = "2.30"
  proposed_amount = "5.00"

  [server]
  port = 8080
  db   = "cashless.db"

  Missing file or missing keys fall back to DefaultConfig().

SEE ALSO:
  - engine.go:       consumes Currency
  - service/:        consumes FreeMealValue for the reserved voucher
  - cmd/server/:     loads the file, flags override [server]
*/
package ledger

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Version of the system, reported by /api/info.
const Version = "1.0"

// =============================================================================
// CONFIG
// =============================================================================

type Config struct {
	Version string       `toml:"version"`
	Money   MoneyConfig  `toml:"money"`
	Server  ServerConfig `toml:"server"`

	// Currency is the resolved default currency code (from Money.Currency).
	Currency string `toml:"-"`
}

type MoneyConfig struct {
	Currency       string `toml:"currency"`
	FreeMealValue  string `toml:"free_meal_value"`
	ProposedAmount string `toml:"proposed_amount"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	DB   string `toml:"db"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	cfg := Config{
		Version: Version,
		Money: MoneyConfig{
			Currency:       "GBP",
			FreeMealValue:  "2.30",
			ProposedAmount: "5.00",
		},
		Server: ServerConfig{
			Port: 8080,
			DB:   "cashless.db",
		},
	}
	cfg.Currency = cfg.Money.Currency
	return cfg
}

// LoadConfig reads a TOML config file, filling gaps with defaults.
// A missing file is not an error; the defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Currency = cfg.Money.Currency
	if _, err := cfg.FreeMealValue(); err != nil {
		return Config{}, err
	}
	if _, err := cfg.ProposedAmount(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FreeMealValue is the daily credit for free-meal-eligible customers.
func (c Config) FreeMealValue() (Money, error) {
	return NewMoneyFromString(c.Money.FreeMealValue, c.Currency)
}

// ProposedAmount is the default amount pre-filled on the till forms.
func (c Config) ProposedAmount() (Money, error) {
	return NewMoneyFromString(c.Money.ProposedAmount, c.Currency)
}
