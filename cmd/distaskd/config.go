package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xraph/distask"
	"github.com/xraph/distask/backoff"
)

// Config is the daemon configuration. Every key can be overridden from the
// environment with a DISTASK_ prefix, e.g. DISTASK_MEMBER_THREADS.
type Config struct {
	Cluster ClusterConfig `mapstructure:"cluster"`
	Member  MemberConfig  `mapstructure:"member"`
	Store   StoreConfig   `mapstructure:"store"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`
}

type ClusterConfig struct {
	Name             string        `mapstructure:"name"`
	BroadcastTimeout time.Duration `mapstructure:"broadcast_timeout"`
	UnicastTimeout   time.Duration `mapstructure:"unicast_timeout"`
	Seeds            []string      `mapstructure:"seeds"`
	Heartbeat        time.Duration `mapstructure:"heartbeat"`
	StaleAfter       time.Duration `mapstructure:"stale_after"`

	// Reconnect names the peer redial strategy: constant, linear,
	// exponential or jitter.
	Reconnect        string        `mapstructure:"reconnect"`
	ReconnectInitial time.Duration `mapstructure:"reconnect_initial"`
	ReconnectMax     time.Duration `mapstructure:"reconnect_max"`
}

type MemberConfig struct {
	Name      string `mapstructure:"name"`
	Address   string `mapstructure:"address"`
	Listen    string `mapstructure:"listen"`
	URL       string `mapstructure:"url"`
	Threads   int    `mapstructure:"threads"`
	QueueSize int    `mapstructure:"queue_size"`
	Codec     string `mapstructure:"codec"`

	// TaskTimeout bounds each simple task run. Zero leaves runs unbounded.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

type StoreConfig struct {
	// Driver is "memory" or "redis".
	Driver    string `mapstructure:"driver"`
	RedisAddr string `mapstructure:"redis_addr"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type AuthConfig struct {
	// Token is presented when dialing peers.
	Token string `mapstructure:"token"`
	// MemberTokens and ReadTokens are accepted from peers. When both are
	// empty every peer is accepted.
	MemberTokens []string `mapstructure:"member_tokens"`
	ReadTokens   []string `mapstructure:"read_tokens"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func loadConfig(path string) (*Config, error) {
	v := viper.New()

	// Every key needs a default: AutomaticEnv only overrides keys viper
	// already knows when unmarshalling.
	v.SetDefault("cluster.name", "distask")
	v.SetDefault("cluster.broadcast_timeout", 100*time.Second)
	v.SetDefault("cluster.unicast_timeout", 10*time.Second)
	v.SetDefault("cluster.seeds", []string{})
	v.SetDefault("cluster.heartbeat", 5*time.Second)
	v.SetDefault("cluster.stale_after", 30*time.Second)
	v.SetDefault("cluster.reconnect", backoff.NameJitter)
	v.SetDefault("cluster.reconnect_initial", 500*time.Millisecond)
	v.SetDefault("cluster.reconnect_max", 30*time.Second)
	v.SetDefault("member.name", "")
	v.SetDefault("member.address", "")
	v.SetDefault("member.listen", "127.0.0.1:7480")
	v.SetDefault("member.url", "")
	v.SetDefault("member.threads", 4)
	v.SetDefault("member.queue_size", 1024)
	v.SetDefault("member.codec", "msgpack")
	v.SetDefault("member.task_timeout", 10*time.Minute)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.redis_addr", "127.0.0.1:6379")
	v.SetDefault("store.key_prefix", "distask:")
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.member_tokens", []string{})
	v.SetDefault("auth.read_tokens", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix("DISTASK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// reconnectStrategy builds the peer redial backoff.
func (c *Config) reconnectStrategy() (backoff.Strategy, error) {
	return backoff.New(c.Cluster.Reconnect, c.Cluster.ReconnectInitial, c.Cluster.ReconnectMax)
}

// coordinatorConfig converts the file config to the library config.
func (c *Config) coordinatorConfig() distask.Config {
	cfg := distask.DefaultConfig()
	cfg.ClusterName = c.Cluster.Name
	cfg.InstanceName = c.Member.Name
	cfg.ExecutionThreads = c.Member.Threads
	cfg.QueueSize = c.Member.QueueSize
	cfg.BroadcastTimeout = c.Cluster.BroadcastTimeout
	cfg.UnicastTimeout = c.Cluster.UnicastTimeout
	return cfg
}

func newLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
