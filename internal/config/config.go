package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LifetimeConfig holds the base lifetimes and vote deltas for posts and comments.
type LifetimeConfig struct {
	Post                 time.Duration
	Comment              time.Duration
	PostEchoExtend       time.Duration
	PostDisechoReduce    time.Duration
	CommentEchoExtend    time.Duration
	CommentDisechoReduce time.Duration
}

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	LogLevel           string
	DatabaseURL        string
	RedisURL           string
	MongoURI           string
	MongoDatabase      string
	NATSURL            string
	RealtimeChannel    string
	JWTSecret          string
	Lifetime           LifetimeConfig
	SweeperInterval    time.Duration
	SweeperConcurrency int
	StoreTimeout       time.Duration
	ChatSummaryLength  int
	ChatHistoryLimit   int
	ProfileCacheSize   int
	ProfileCacheTTL    time.Duration
	VoteRateLimit      int
	CORSAllowOrigins   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ECHO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Echo API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("mongo.database", "echo_messenger")
	v.SetDefault("realtime.channel", "echo")
	v.SetDefault("lifetime.post", "24h")
	v.SetDefault("lifetime.comment", "240h")
	v.SetDefault("lifetime.post_echo_extend", "1h")
	v.SetDefault("lifetime.post_disecho_reduce", "1h")
	v.SetDefault("lifetime.comment_echo_extend", "10h")
	v.SetDefault("lifetime.comment_disecho_reduce", "10h")
	v.SetDefault("sweeper.interval", "60m")
	v.SetDefault("sweeper.concurrency", 4)
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("chat.summary_length", 255)
	v.SetDefault("chat.history_limit", 50)
	v.SetDefault("profile_cache.size", 1024)
	v.SetDefault("profile_cache.ttl", "10m")
	v.SetDefault("vote.rate_limit", 30)
	v.SetDefault("cors.allow_origins", "*")

	durations := map[string]*time.Duration{}
	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		LogLevel:           strings.ToLower(v.GetString("log.level")),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		MongoURI:           v.GetString("mongo.uri"),
		MongoDatabase:      v.GetString("mongo.database"),
		NATSURL:            v.GetString("nats.url"),
		RealtimeChannel:    v.GetString("realtime.channel"),
		JWTSecret:          v.GetString("jwt.secret"),
		SweeperConcurrency: v.GetInt("sweeper.concurrency"),
		ChatSummaryLength:  v.GetInt("chat.summary_length"),
		ChatHistoryLimit:   v.GetInt("chat.history_limit"),
		ProfileCacheSize:   v.GetInt("profile_cache.size"),
		VoteRateLimit:      v.GetInt("vote.rate_limit"),
		CORSAllowOrigins:   v.GetString("cors.allow_origins"),
	}

	durations["lifetime.post"] = &cfg.Lifetime.Post
	durations["lifetime.comment"] = &cfg.Lifetime.Comment
	durations["lifetime.post_echo_extend"] = &cfg.Lifetime.PostEchoExtend
	durations["lifetime.post_disecho_reduce"] = &cfg.Lifetime.PostDisechoReduce
	durations["lifetime.comment_echo_extend"] = &cfg.Lifetime.CommentEchoExtend
	durations["lifetime.comment_disecho_reduce"] = &cfg.Lifetime.CommentDisechoReduce
	durations["sweeper.interval"] = &cfg.SweeperInterval
	durations["store.timeout"] = &cfg.StoreTimeout
	durations["profile_cache.ttl"] = &cfg.ProfileCacheTTL

	for key, target := range durations {
		parsed, err := parseDuration(v, key)
		if err != nil {
			return Config{}, err
		}
		*target = parsed
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SweeperInterval <= 0 {
		return Config{}, fmt.Errorf("sweeper interval must be positive")
	}

	if cfg.SweeperConcurrency <= 0 {
		cfg.SweeperConcurrency = 1
	}

	if cfg.ChatSummaryLength <= 0 {
		cfg.ChatSummaryLength = 255
	}

	if cfg.ChatHistoryLimit <= 0 {
		cfg.ChatHistoryLimit = 50
	}

	if cfg.ProfileCacheSize <= 0 {
		cfg.ProfileCacheSize = 1024
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return parsed, nil
}
