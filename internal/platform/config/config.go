package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"user"`
	Password     string `yaml:"password"`
	DBName       string `yaml:"dbname"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	// 署名付きURLの組み立てに使う外部公開URL
	PublicURL string `yaml:"public_url"`
	// フロントのビルド出力。空なら配信しない
	StaticDir string `yaml:"static_dir"`
}

// AuthConfig: mode は "credentials" か "stub"
type AuthConfig struct {
	Mode         string        `yaml:"mode"`
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	Email        string        `yaml:"email"`
	Password     string        `yaml:"password"`
	PasswordHash string        `yaml:"password_hash"`
	FullName     string        `yaml:"full_name"`
}

type StorageConfig struct {
	Dir        string        `yaml:"dir"`
	Bucket     string        `yaml:"bucket"`
	SignSecret string        `yaml:"sign_secret"`
	URLTTL     time.Duration `yaml:"url_ttl"`
	MaxBytes   int64         `yaml:"max_bytes"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

type LendingConfig struct {
	LoanDays     int           `yaml:"loan_days"`
	OverdueSweep time.Duration `yaml:"overdue_sweep"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Config struct {
	Version     string         `yaml:"version"`
	Mode        string         `yaml:"mode"`
	Server      ServerConfig   `yaml:"server"`
	DB          DatabaseConfig `yaml:"database"`
	Auth        AuthConfig     `yaml:"auth"`
	Storage     StorageConfig  `yaml:"storage"`
	Events      EventsConfig   `yaml:"events"`
	Lending     LendingConfig  `yaml:"lending"`
	Logging     LoggingConfig  `yaml:"logging"`
	Certificate Certs          `yaml:"certificate"`
}

func defaults() *Config {
	cfg := &Config{Mode: "dev"}
	cfg.Server.Addr = ":8443"
	cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	cfg.DB.Host = "127.0.0.1"
	cfg.DB.Port = 3306
	cfg.DB.MaxOpenConns = 40
	cfg.DB.MaxIdleConns = 10
	cfg.Auth.Mode = "credentials"
	cfg.Auth.TokenTTL = 24 * time.Hour
	cfg.Auth.FullName = "HCSC"
	cfg.Storage.Dir = "data/objects"
	cfg.Storage.Bucket = "enrollment-images"
	cfg.Storage.URLTTL = 2 * time.Hour
	cfg.Storage.MaxBytes = 5 << 20
	cfg.Events.Exchange = "hcsc.events"
	cfg.Lending.LoanDays = 30
	cfg.Lending.OverdueSweep = time.Hour
	cfg.Logging.Level = "info"
	return cfg
}

// Load: .env → YAML → 環境変数 の順に上書きする。YAML が無くても起動はできる。
func Load(path string) (*Config, error) {
	// .env は任意
	_ = godotenv.Load()

	cfg := defaults()
	if path == "" {
		path = DefaultPath
	}
	buf, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setStr(&cfg.Mode, "APP_MODE")
	setStr(&cfg.Server.Addr, "SERVER_ADDR")
	setStr(&cfg.Server.PublicURL, "PUBLIC_URL")
	setStr(&cfg.Server.StaticDir, "STATIC_DIR")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}

	setStr(&cfg.DB.Host, "DB_HOST")
	setInt(&cfg.DB.Port, "DB_PORT")
	setStr(&cfg.DB.Username, "DB_USER")
	setStr(&cfg.DB.Password, "DB_PASSWORD")
	setStr(&cfg.DB.DBName, "DB_NAME")

	setStr(&cfg.Auth.Mode, "AUTH_MODE")
	setStr(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setStr(&cfg.Auth.Email, "DASHBOARD_EMAIL")
	setStr(&cfg.Auth.Password, "DASHBOARD_PASSWORD")
	setStr(&cfg.Auth.PasswordHash, "DASHBOARD_PASSWORD_HASH")

	setStr(&cfg.Storage.Dir, "STORAGE_DIR")
	setStr(&cfg.Storage.SignSecret, "STORAGE_SIGN_SECRET")

	setStr(&cfg.Events.AMQPURL, "RABBIT_URL")
	setStr(&cfg.Events.Exchange, "RABBIT_EXCHANGE")

	setStr(&cfg.Logging.Level, "LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c *Config) Validate() error {
	if c.Mode != "dev" && c.Mode != "release" {
		return fmt.Errorf("mode must be dev or release, got %q", c.Mode)
	}
	switch c.Auth.Mode {
	case "credentials":
		if c.Auth.Email == "" || (c.Auth.Password == "" && c.Auth.PasswordHash == "") {
			return errors.New("auth.credentials requires email and password or password_hash")
		}
	case "stub":
	default:
		return fmt.Errorf("auth.mode must be credentials or stub, got %q", c.Auth.Mode)
	}
	if c.Mode == "release" {
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required in release mode")
		}
		if c.Storage.SignSecret == "" {
			return errors.New("storage.sign_secret is required in release mode")
		}
	}
	if c.Lending.LoanDays <= 0 {
		return errors.New("lending.loan_days must be > 0")
	}
	return nil
}

// IsDev: 開発モードかどうか
func (c *Config) IsDev() bool { return c.Mode == "dev" }
