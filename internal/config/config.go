// Package config содержит логику чтения конфигурации сервиса начисления доходности.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress = "localhost:8080"
	defaultSchedule   = "0 0 0 * * *"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	CreditSchedule string `env:"CREDIT_SCHEDULE"`
	AdminToken     string `env:"ADMIN_TOKEN"`

	EmailEnabled     bool   `env:"EMAIL_ENABLED" envDefault:"true"`
	MailjetAPIKey    string `env:"MAILJET_API_KEY"`
	MailjetSecretKey string `env:"MAILJET_SECRET_KEY"`
	MailjetBaseURL   string `env:"MAILJET_BASE_URL"`
	MailFromEmail    string `env:"MAIL_FROM_EMAIL"`
	MailFromName     string `env:"MAIL_FROM_NAME" envDefault:"Investments"`
}

// MailjetConfigured сообщает, включена ли рассылка и заданы ли ключи Mailjet.
func (c *Config) MailjetConfigured() bool {
	return c.EmailEnabled && c.MailjetAPIKey != "" && c.MailjetSecretKey != "" && c.MailFromEmail != ""
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envSchedule := cfg.CreditSchedule

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.CreditSchedule, "s", defaultSchedule, "cron schedule (with seconds, UTC) of the daily credit pass")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envSchedule != "" {
		cfg.CreditSchedule = envSchedule
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.CreditSchedule == "" {
		cfg.CreditSchedule = defaultSchedule
	}

	return cfg, nil
}
