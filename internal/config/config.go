package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"commonsring"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"commonsring"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Ledger struct {
		// ContributionRate is the fraction of every transfer's gross amount
		// skimmed into the fund account.
		ContributionRate float64 `envconfig:"CONTRIBUTION_RATE" default:"0.05"`

		// OverdraftAllowance is the flat negative-balance cushion for
		// accounts without income this year.
		OverdraftAllowance float64 `envconfig:"OVERDRAFT_ALLOWANCE" default:"20"`

		// OverdraftIncomeShare is the fraction of year-to-date income granted
		// as overdraft capacity once income exists.
		OverdraftIncomeShare float64 `envconfig:"OVERDRAFT_INCOME_SHARE" default:"0.10"`
	}

	Fees struct {
		// Rate is the monthly fee charged on positive end-of-month balances.
		Rate     float64       `envconfig:"FEE_RATE" default:"0.01"`
		Interval time.Duration `envconfig:"FEE_INTERVAL" default:"24h"`
	}

	Inactivity struct {
		ThresholdDays int           `envconfig:"INACTIVITY_THRESHOLD_DAYS" default:"30"`
		Penalty       float64       `envconfig:"INACTIVITY_PENALTY" default:"10"`
		Interval      time.Duration `envconfig:"INACTIVITY_INTERVAL" default:"24h"`
	}

	AMQP struct {
		// URL is optional; empty disables event publishing.
		URL      string `envconfig:"AMQP_URL" default:""`
		Exchange string `envconfig:"AMQP_EXCHANGE" default:"commonsring"`
		Queue    string `envconfig:"AMQP_QUEUE" default:"ledger_events"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
