// Package config はアプリケーション全体の設定を .env・環境変数・デフォルト値から読み込みます。
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config はアプリケーションの全設定を保持します。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	TwelveData TwelveDataConfig `mapstructure:"twelvedata"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Live       LiveConfig       `mapstructure:"live"`
	JWT        JWTConfig        `mapstructure:"jwt"`
}

// AppConfig はHTTPサーバーの設定です。
type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // "local" or "prod"
	CORS bool   `mapstructure:"cors"`
}

// DBConfig はデータベース接続の設定です。
type DBConfig struct {
	Driver        string        `mapstructure:"driver"` // "sqlite" or "postgres"
	Path          string        `mapstructure:"path"`   // sqlite only
	Host          string        `mapstructure:"host"`
	Port          string        `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	Name          string        `mapstructure:"name"`
	SSLMode       string        `mapstructure:"sslmode"`
	ConnectWait   time.Duration `mapstructure:"connect_wait"`
	RunMigrations bool          `mapstructure:"run_migrations"`
}

// RedisConfig はRedis接続の設定です。Addr が空の場合Redisは使用しません。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TwelveDataConfig は外部マーケットデータAPIの設定です。
type TwelveDataConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// IngestConfig は取り込みジョブの設定です。
type IngestConfig struct {
	Interval    string        `mapstructure:"interval"`     // APIに渡す時間足
	MinInterval time.Duration `mapstructure:"min_interval"` // 外部API呼び出しの最小間隔
	Enabled     bool          `mapstructure:"enabled"`      // 定期バッチを起動するか
	Schedule    string        `mapstructure:"schedule"`     // 毎日の実行時刻 (UTC, "HH:MM")
}

// LiveConfig はリアルタイム配信の設定です。
type LiveConfig struct {
	Group      string `mapstructure:"group"`
	Backend    string `mapstructure:"backend"` // "memory" or "redis"
	SendBuffer int    `mapstructure:"send_buffer"`
}

// JWTConfig はトークン検証の設定です。
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

var keys = []string{
	"app.port", "app.env", "app.cors",
	"db.driver", "db.path", "db.host", "db.port", "db.user", "db.password", "db.name", "db.sslmode",
	"db.connect_wait", "db.run_migrations",
	"redis.addr", "redis.password", "redis.db",
	"twelvedata.api_key", "twelvedata.base_url", "twelvedata.timeout",
	"ingest.interval", "ingest.min_interval", "ingest.enabled", "ingest.schedule",
	"live.group", "live.backend", "live.send_buffer",
	"jwt.secret",
}

// Load は .env（存在すれば）、環境変数、デフォルト値の順に設定を解決します。
// 環境変数名はキーの "." を "_" に置き換えた大文字です（例: twelvedata.api_key → TWELVEDATA_API_KEY）。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] .env not found; using system environment variables")
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.cors", false)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "./stock.db")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.connect_wait", 60*time.Second)
	v.SetDefault("db.run_migrations", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("twelvedata.base_url", "https://api.twelvedata.com")
	v.SetDefault("twelvedata.timeout", 10*time.Second)

	v.SetDefault("ingest.interval", "1day")
	v.SetDefault("ingest.min_interval", 10*time.Second)
	v.SetDefault("ingest.enabled", false)
	v.SetDefault("ingest.schedule", "06:00")

	v.SetDefault("live.group", "market")
	v.SetDefault("live.backend", "memory")
	v.SetDefault("live.send_buffer", 64)
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported db.driver %q", c.DB.Driver)
	}
	switch c.Live.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported live.backend %q", c.Live.Backend)
	}
	if c.Live.Backend == "redis" && c.Redis.Addr == "" {
		return errors.New("live.backend=redis requires redis.addr")
	}
	if c.Ingest.MinInterval < 0 {
		return errors.New("ingest.min_interval must not be negative")
	}
	if c.Live.SendBuffer <= 0 {
		return errors.New("live.send_buffer must be positive")
	}
	return nil
}
