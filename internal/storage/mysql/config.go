package mysql

import (
	"strings"
	"time"
)

// Config holds the MySQL connection and pool settings.
type Config struct {
	// DSN in go-sql-driver form: user:pass@tcp(host:3306)/db
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectAttempts is how many times Open tries before giving up.
	ConnectAttempts int
	RetryInterval   time.Duration

	// LogLevel for gorm: "silent", "error", "warn", "info"
	LogLevel string
}

func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnectAttempts: 5,
		RetryInterval:   2 * time.Second,
		LogLevel:        "error",
	}
}

// dsn forces the parameters the store depends on: DATE columns come back as
// time.Time in UTC.
func (c Config) dsn() string {
	d := c.DSN
	sep := "?"
	if strings.Contains(d, "?") {
		sep = "&"
	}
	if !strings.Contains(d, "parseTime=") {
		d += sep + "parseTime=true"
		sep = "&"
	}
	if !strings.Contains(d, "loc=") {
		d += sep + "loc=UTC"
		sep = "&"
	}
	if !strings.Contains(d, "charset=") {
		d += sep + "charset=utf8mb4"
	}
	return d
}
