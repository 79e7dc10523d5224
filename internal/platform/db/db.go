package db

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

const (
	driverName = "mysql"
)

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  int    `yaml:"token_ttl_hours"` // 省略時は24h
}

// ジオフェンス設定。lookup_url が空なら逆ジオコーディングはスキップして bbox のみ。
type GeofenceConfig struct {
	LookupURL      string   `yaml:"lookup_url"`
	TimeoutSeconds int      `yaml:"timeout_seconds"` // 省略時は5s
	AllowedTokens  []string `yaml:"allowed_tokens"`
	MinLat         float64  `yaml:"min_lat"`
	MaxLat         float64  `yaml:"max_lat"`
	MinLon         float64  `yaml:"min_lon"`
	MaxLon         float64  `yaml:"max_lon"`
}

// 自動出欠ジョブの実行時刻（サーバローカル時刻）
type SchedulerConfig struct {
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
}

type Config struct {
	Version     string          `yaml:"version"`
	Mode        string          `yaml:"mode"`
	DB          DatabaseConfig  `yaml:"database"`
	Certificate Certs           `yaml:"certificate"`
	Auth        AuthConfig      `yaml:"auth"`
	Geofence    GeofenceConfig  `yaml:"geofence"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
}

func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24
	}
	if cfg.Geofence.TimeoutSeconds <= 0 {
		cfg.Geofence.TimeoutSeconds = 5
	}
	return &cfg, nil
}

func Connect(c DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.DBName)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	// 接続プール（合算がMySQLの max_connections を超えないよう配分する）
	db.SetMaxOpenConns(80)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}
