package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Signup   SignupConfig   `yaml:"signup"`
	OTP      OTPConfig      `yaml:"otp"`
}

// DatabaseConfig holds PostgreSQL connection settings for the document store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// SignupConfig holds email reservation settings.
type SignupConfig struct {
	// ReservationTTL is how long a PENDING reservation holds an email
	// before the expiry sweep may reclaim it.
	ReservationTTL time.Duration `yaml:"reservation_ttl" env:"SIGNUP_RESERVATION_TTL" env-default:"15m"`
}

// OTPConfig holds coded-session settings.
type OTPConfig struct {
	CodeLength     int           `yaml:"code_length"     env:"OTP_CODE_LENGTH"     env-default:"6"`
	TTL            time.Duration `yaml:"ttl"             env:"OTP_TTL"             env-default:"5m"`
	MaxAttempts    int           `yaml:"max_attempts"    env:"OTP_MAX_ATTEMPTS"    env-default:"5"`
	ResendCooldown time.Duration `yaml:"resend_cooldown" env:"OTP_RESEND_COOLDOWN" env-default:"60s"`
}
