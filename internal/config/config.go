package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Bidding    BiddingConfig    `mapstructure:"bidding"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Cron       CronConfig       `mapstructure:"cron"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Broadcast  BroadcastConfig  `mapstructure:"broadcast"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// Driver selects the store backing: "postgres" or "memory".
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type BiddingConfig struct {
	// Strategy picks the placement concurrency discipline:
	// "pessimistic" (row lock) or "optimistic" (version CAS + retry).
	Strategy     string        `mapstructure:"strategy"`
	MinIncrement string        `mapstructure:"min_increment"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	TxTimeout    time.Duration `mapstructure:"tx_timeout"`
}

type SettlementConfig struct {
	Schedule           string        `mapstructure:"schedule"`
	PaymentDueDays     int           `mapstructure:"payment_due_days"`
	BatchSize          int           `mapstructure:"batch_size"`
	EndingSoonSchedule string        `mapstructure:"ending_soon_schedule"`
	EndingSoonWindow   time.Duration `mapstructure:"ending_soon_window"`
}

type CronConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type NotifyConfig struct {
	QueueSize int `mapstructure:"queue_size"`
	Workers   int `mapstructure:"workers"`
}

type BroadcastConfig struct {
	SendBuffer int   `mapstructure:"send_buffer"`
	ReadLimit  int64 `mapstructure:"read_limit"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("bidding.strategy", "pessimistic")
	v.SetDefault("bidding.min_increment", "1.00")
	v.SetDefault("bidding.max_retries", 5)
	v.SetDefault("bidding.retry_backoff", "25ms")
	v.SetDefault("bidding.tx_timeout", "5s")

	v.SetDefault("settlement.schedule", "@every 1m")
	v.SetDefault("settlement.payment_due_days", 7)
	v.SetDefault("settlement.batch_size", 200)
	v.SetDefault("settlement.ending_soon_schedule", "@every 1m")
	v.SetDefault("settlement.ending_soon_window", "5m")

	v.SetDefault("cron.enabled", true)

	v.SetDefault("notify.queue_size", 1024)
	v.SetDefault("notify.workers", 2)

	v.SetDefault("broadcast.send_buffer", 16)
	v.SetDefault("broadcast.read_limit", 32768)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
