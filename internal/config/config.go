package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	base "github.com/Full-Stack-Sanctus/Remittra/libs/config"
	"github.com/spf13/viper"
)

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaTopics struct {
	WalletEvents string
	AjoEvents    string
	DeadLetter   string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topics  KafkaTopics
}

type AuthConfig struct {
	JWTSecret string
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

type AjoConfig struct {
	InviteTTL time.Duration
}

// TierLimit bounds what a user at one verification level may do. A zero
// amount means unlimited.
type TierLimit struct {
	MaxJoinAmount         int64
	MaxCircleCreateAmount int64
	CanCreateCircle       bool
}

type TierConfig struct {
	Tier1 TierLimit
	Tier2 TierLimit
	Tier3 TierLimit
}

type Config struct {
	App       base.AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Ajo       AjoConfig
	Tiers     TierConfig
}

func Load() (*Config, error) {
	appCfg, err := base.Load(os.Getenv("AJO_CONFIG"))
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("AJO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := os.Getenv("AJO_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topics.wallet_events", "wallet.events")
	v.SetDefault("kafka.topics.ajo_events", "ajo.events")
	v.SetDefault("kafka.topics.dead_letter", "ajo.dead_letter")
	v.SetDefault("ajo.invite_ttl", "5m")
	v.SetDefault("rate_limit.limit", 10)
	v.SetDefault("rate_limit.window", "1m")

	cfg := &Config{
		App: *appCfg,
		DB: DBConfig{
			Host:     envString("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Name:     envString("POSTGRES_DB", "remittra"),
			User:     envString("POSTGRES_USER", "remittra"),
			Password: envString("POSTGRES_PASSWORD", "remittra"),
			SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     envString("REDIS_ADDR", "localhost:6379"),
			Password: envString("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: envBool("KAFKA_ENABLED", v.GetBool("kafka.enabled")),
			Brokers: envCSV("KAFKA_BROKERS", v.GetStringSlice("kafka.brokers")),
			Topics: KafkaTopics{
				WalletEvents: envString("KAFKA_WALLET_TOPIC", v.GetString("kafka.topics.wallet_events")),
				AjoEvents:    envString("KAFKA_AJO_TOPIC", v.GetString("kafka.topics.ajo_events")),
				DeadLetter:   envString("KAFKA_DLQ_TOPIC", v.GetString("kafka.topics.dead_letter")),
			},
		},
		Auth: AuthConfig{
			JWTSecret: envString("AJO_JWT_SECRET", "dev-secret-change-me"),
		},
		RateLimit: RateLimitConfig{
			Limit:  envInt("AJO_RATE_LIMIT", v.GetInt("rate_limit.limit")),
			Window: envDuration("AJO_RATE_WINDOW", v.GetDuration("rate_limit.window")),
		},
		Ajo: AjoConfig{
			InviteTTL: envDuration("AJO_INVITE_TTL", v.GetDuration("ajo.invite_ttl")),
		},
		Tiers: TierConfig{
			Tier1: TierLimit{
				MaxJoinAmount:         envInt64("AJO_TIER1_MAX_JOIN", 50_000),
				MaxCircleCreateAmount: 0,
				CanCreateCircle:       false,
			},
			Tier2: TierLimit{
				MaxJoinAmount:         envInt64("AJO_TIER2_MAX_JOIN", 500_000),
				MaxCircleCreateAmount: envInt64("AJO_TIER2_MAX_CREATE", 500_000),
				CanCreateCircle:       true,
			},
			Tier3: TierLimit{
				MaxJoinAmount:         0,
				MaxCircleCreateAmount: 0,
				CanCreateCircle:       true,
			},
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	if cfg.Ajo.InviteTTL <= 0 {
		return nil, fmt.Errorf("invite ttl must be positive")
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if cfg.RateLimit.Limit <= 0 || cfg.RateLimit.Window <= 0 {
		return nil, fmt.Errorf("rate limit and window must be positive")
	}

	return cfg, nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envCSV(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
