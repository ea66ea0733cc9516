package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver"` // sqlite / postgres
	Path         string        `mapstructure:"path"`   // sqlite file
	DSN          string        `mapstructure:"dsn"`    // postgres connection string
	LogMode      bool          `mapstructure:"log_mode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	BusyTimeout  time.Duration `mapstructure:"busy_timeout"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type SecurityConfig struct {
	BcryptCost    int    `mapstructure:"bcrypt_cost"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

type LogConfig struct {
	File   string `mapstructure:"file"`
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console / json
}

type ReceiptConfig struct {
	StorageDir       string        `mapstructure:"storage_dir"`
	ExtractorURL     string        `mapstructure:"extractor_url"`
	ExtractorTimeout time.Duration `mapstructure:"extractor_timeout"`
	MaxUploadMB      int           `mapstructure:"max_upload_mb"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"` // empty disables event publishing
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
}

type AppSubConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Security SecurityConfig `mapstructure:"security"`
	Log      LogConfig      `mapstructure:"log"`
	Receipt  ReceiptConfig  `mapstructure:"receipt"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	App      AppSubConfig   `mapstructure:"app"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/finance.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("jwt.issuer", "finance-tracker")
	v.SetDefault("jwt.expire_hours", 24)

	v.SetDefault("security.bcrypt_cost", 12)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("receipt.storage_dir", "./data/receipts")
	v.SetDefault("receipt.extractor_timeout", 60*time.Second)
	v.SetDefault("receipt.max_upload_mb", 10)
	v.SetDefault("receipt.max_concurrent", 3)

	v.SetDefault("amqp.exchange", "finance")
	v.SetDefault("amqp.queue", "ledger_events")

	v.SetDefault("app.page_size", 20)
}

// Load reads configuration from the given yaml file (e.g. "config.yaml").
// If path is empty, it looks for "config.yaml" in the working directory and falls back to
// defaults when none exists. A .env file, if present, is loaded into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	// environment overrides, e.g. FT_SERVER_PORT=9000
	v.SetEnvPrefix("FT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate collects every configuration problem into one error.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid server.port %d: must be between 1 and 65535", c.Server.Port))
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			problems = append(problems, "database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			problems = append(problems, "database.dsn is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid database.driver %q: must be sqlite or postgres", c.Database.Driver))
	}

	if len(c.JWT.Secret) < 16 {
		problems = append(problems, "jwt.secret must be at least 16 characters")
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		problems = append(problems, fmt.Sprintf("invalid security.bcrypt_cost %d", c.Security.BcryptCost))
	}
	if c.Receipt.MaxConcurrent < 1 {
		problems = append(problems, "receipt.max_concurrent must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
