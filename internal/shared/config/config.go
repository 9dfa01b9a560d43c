package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv   string
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Security SecurityConfig
	Session  SessionConfig
	Identity IdentityConfig
	ChainA   ChainConfig
	ChainB   ChainConfig
	Telegram TelegramConfig
	Protocol ProtocolConfig
	Referral ReferralConfig
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string
}

// PostgresConfig configures the session/referral store. An empty URL
// selects the in-memory store (dev and tests only).
type PostgresConfig struct {
	URL string
}

// SecurityConfig holds the hex-encoded AES key (16 or 32 bytes) used
// to seal identity credentials at rest. Required whenever a database
// is configured.
type SecurityConfig struct {
	EncryptionKey string
}

// SessionConfig configures session persistence.
type SessionConfig struct {
	TTL time.Duration
}

// IdentityConfig configures the identity-provider session check.
type IdentityConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ChainConfig configures one ledger verifier.
type ChainConfig struct {
	RPCURL      string
	Destination string
	Timeout     time.Duration
}

// TelegramConfig configures the external-channel verifier. An empty
// token disables the membership check; code verification still runs
// against the code store.
type TelegramConfig struct {
	Token      string
	ChannelID  int64
	InviteLink string
}

// ProtocolConfig holds pacing knobs for the session orchestrator.
type ProtocolConfig struct {
	EngageDelay time.Duration
}

// ReferralConfig holds the referral issuer limits.
type ReferralConfig struct {
	PerHour int
}

var bindings = map[string]string{
	"app.env":           "APP_ENV",
	"http.addr":         "HTTP_ADDR",
	"postgres.url":      "DATABASE_URL",
	"security.key":      "ENCRYPTION_KEY",
	"session.ttl":       "SESSION_TTL",
	"identity.base_url": "IDENTITY_BASE_URL",
	"identity.timeout":  "IDENTITY_TIMEOUT",
	"chain_a.rpc_url":   "CHAIN_A_RPC_URL",
	"chain_a.dest":      "CHAIN_A_DESTINATION",
	"chain_a.timeout":   "CHAIN_A_TIMEOUT",
	"chain_b.rpc_url":   "CHAIN_B_RPC_URL",
	"chain_b.dest":      "CHAIN_B_DESTINATION",
	"chain_b.timeout":   "CHAIN_B_TIMEOUT",
	"telegram.token":    "TELEGRAM_BOT_TOKEN",
	"telegram.channel":  "TELEGRAM_CHANNEL_ID",
	"telegram.invite":   "TELEGRAM_INVITE_LINK",
	"protocol.delay":    "ENGAGE_DELAY",
	"referral.per_hour": "REFERRAL_PER_HOUR",
}

// Load loads configuration from environment variables, with an
// optional .env file for local development.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// A missing .env is fine in prod; anything else is not.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", key, err)
		}
	}

	viper.SetDefault("app.env", "dev")
	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("session.ttl", "24h")
	viper.SetDefault("identity.timeout", "5s")
	viper.SetDefault("chain_a.timeout", "10s")
	viper.SetDefault("chain_b.timeout", "10s")
	viper.SetDefault("protocol.delay", "2500ms")
	viper.SetDefault("referral.per_hour", 5)

	cfg := Config{
		AppEnv:   viper.GetString("app.env"),
		HTTP:     HTTPConfig{Addr: viper.GetString("http.addr")},
		Postgres: PostgresConfig{URL: viper.GetString("postgres.url")},
		Security: SecurityConfig{EncryptionKey: viper.GetString("security.key")},
		Session:  SessionConfig{TTL: viper.GetDuration("session.ttl")},
		Identity: IdentityConfig{
			BaseURL: viper.GetString("identity.base_url"),
			Timeout: viper.GetDuration("identity.timeout"),
		},
		ChainA: ChainConfig{
			RPCURL:      viper.GetString("chain_a.rpc_url"),
			Destination: viper.GetString("chain_a.dest"),
			Timeout:     viper.GetDuration("chain_a.timeout"),
		},
		ChainB: ChainConfig{
			RPCURL:      viper.GetString("chain_b.rpc_url"),
			Destination: viper.GetString("chain_b.dest"),
			Timeout:     viper.GetDuration("chain_b.timeout"),
		},
		Telegram: TelegramConfig{
			Token:      viper.GetString("telegram.token"),
			ChannelID:  viper.GetInt64("telegram.channel"),
			InviteLink: viper.GetString("telegram.invite"),
		},
		Protocol: ProtocolConfig{EngageDelay: viper.GetDuration("protocol.delay")},
		Referral: ReferralConfig{PerHour: viper.GetInt("referral.per_hour")},
	}

	if cfg.Session.TTL <= 0 {
		return nil, errors.New("SESSION_TTL must be a positive duration")
	}
	if cfg.Referral.PerHour <= 0 {
		return nil, errors.New("REFERRAL_PER_HOUR must be positive")
	}
	if cfg.AppEnv != "dev" && cfg.Postgres.URL == "" {
		return nil, errors.New("DATABASE_URL is required outside dev (in-memory store is dev-only)")
	}
	if cfg.Postgres.URL != "" {
		key, err := hex.DecodeString(cfg.Security.EncryptionKey)
		if err != nil || (len(key) != 16 && len(key) != 32) {
			return nil, errors.New("ENCRYPTION_KEY must be 32 or 64 hex characters when a database is configured")
		}
	}

	return &cfg, nil
}
