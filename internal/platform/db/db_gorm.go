// Package db はGORMによるデータベース接続とマイグレーションを提供します。
package db

import (
	"fmt"
	"strings"
	"time"

	catalogentity "stockfeed/internal/feature/catalog/domain/entity"
	liveadapters "stockfeed/internal/feature/live/adapters"
	priceadapters "stockfeed/internal/feature/prices/adapters"
	"stockfeed/internal/platform/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const retryInterval = 3 * time.Second

// Config はデータベース接続に必要な設定です。
type Config struct {
	Driver   string
	Path     string
	User     string
	Password string
	Name     string
	Host     string
	Port     string
	SSLMode  string
}

// ConfigFrom は config.DBConfig から Config を生成します。
func ConfigFrom(c config.DBConfig) Config {
	return Config{
		Driver:   c.Driver,
		Path:     c.Path,
		User:     c.User,
		Password: c.Password,
		Name:     c.Name,
		Host:     c.Host,
		Port:     c.Port,
		SSLMode:  c.SSLMode,
	}
}

// BuildDSN はドライバーに応じたDSN文字列を生成します。
// SQLite では外部キー制約を接続ごとに有効化するパラメータを付与します。
func BuildDSN(cfg Config) string {
	if cfg.Driver == "sqlite" {
		return sqliteDSN(cfg.Path)
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, sslmode)
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_foreign_keys=") || strings.Contains(path, "_fk=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on"
}

// Opener はDSNからDBを開く関数です（テストで差し替え可能）。
type Opener func(dsn string) (*gorm.DB, error)

// OpenerFor はドライバー名に対応する Opener を返します。
func OpenerFor(driver string) (Opener, error) {
	gcfg := &gorm.Config{TranslateError: true}
	switch driver {
	case "sqlite":
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(sqlite.Open(dsn), gcfg) }, nil
	case "postgres":
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(postgres.Open(dsn), gcfg) }, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

// ConnectWithRetry は timeout まで retryInterval 間隔で接続を試行します。
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("DB connect failed after %s: %w", timeout, err)
		}
		time.Sleep(retryInterval)
	}
}

// Migrate はこのサービスが使うテーブルを作成・更新します。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&catalogentity.Symbol{},
		&priceadapters.PriceBarModel{},
		&liveadapters.UserFollowing{},
	)
}

// Open は設定に従って接続し、必要ならマイグレーションを実行します。
func Open(c config.DBConfig, log *zap.Logger) (*gorm.DB, error) {
	cfg := ConfigFrom(c)
	open, err := OpenerFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := ConnectWithRetry(BuildDSN(cfg), c.ConnectWait, func(dsn string) (*gorm.DB, error) {
		db, err := open(dsn)
		if err != nil {
			log.Warn("DB connect failed, retrying", zap.String("driver", cfg.Driver), zap.Error(err))
		}
		return db, err
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		// SQLite は単一ライターのため接続を1本に制限
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if c.RunMigrations {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	log.Info("database ready", zap.String("driver", cfg.Driver))
	return db, nil
}
