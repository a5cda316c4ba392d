package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type Config struct {
	Platform struct {
		Name     string `mapstructure:"NAME"`
		Timezone string `mapstructure:"TIMEZONE"`
	} `mapstructure:"PLATFORM"`
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Path           string `mapstructure:"PATH"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Enabled     bool          `mapstructure:"ENABLED"`
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	CafeAPI struct {
		BaseURL    string        `mapstructure:"BASE_URL"`
		Token      string        `mapstructure:"TOKEN"`
		Timeout    time.Duration `mapstructure:"TIMEOUT"`
		RetryCount int           `mapstructure:"RETRY_COUNT"`
	} `mapstructure:"CAFE_API"`
	Rewards struct {
		CatalogTTL      time.Duration `mapstructure:"CATALOG_TTL"`
		SnapshotTTL     time.Duration `mapstructure:"SNAPSHOT_TTL"`
		LenientCriteria bool          `mapstructure:"LENIENT_CRITERIA"`
	} `mapstructure:"REWARDS"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

var defaults = map[string]any{
	"APP_ENV":                                     "development",
	"APP_NAME":                                    "rewards",
	"LOG_LEVEL":                                   "info",
	"NODE_ID":                                     1,
	"PLATFORM.TIMEZONE":                           "UTC",
	"TLS.ENABLE":                                  false,
	"TLS.CERT_PATH":                               "",
	"TLS.KEY_PATH":                                "",
	"HTTP_SERVER.ADDR":                            ":8080",
	"HTTP_SERVER.READ_TIMEOUT":                    15 * time.Second,
	"HTTP_SERVER.WRITE_TIMEOUT":                   15 * time.Second,
	"HTTP_SERVER.IDLE_TIMEOUT":                    60 * time.Second,
	"DATABASE.TYPE":                               "sqlite",
	"DATABASE.PATH":                               "rewards.db",
	"DATABASE.HOST":                               "localhost",
	"DATABASE.PORT":                               "5432",
	"DATABASE.DBNAME":                             "rewards",
	"DATABASE.USER":                               "",
	"DATABASE.PASSWORD":                           "",
	"DATABASE.SSLMODE":                            "disable",
	"DATABASE.TIMEZONE":                           "UTC",
	"DATABASE.CONNECTION_POOL.MAX_IDLE_CONN":      5,
	"DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS":     20,
	"DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME":  30 * time.Minute,
	"DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME": 5 * time.Minute,
	"REDIS.ENABLED":                               false,
	"REDIS.ADDR":                                  "localhost:6379",
	"REDIS.PASSWORD":                              "",
	"REDIS.DB":                                    0,
	"REDIS.POOL_SIZE":                             10,
	"REDIS.POOL_TIMEOUT":                          4 * time.Second,
	"CAFE_API.BASE_URL":                           "http://localhost:3000/api",
	"CAFE_API.TOKEN":                              "",
	"CAFE_API.TIMEOUT":                            10 * time.Second,
	"CAFE_API.RETRY_COUNT":                        2,
	"REWARDS.CATALOG_TTL":                         5 * time.Minute,
	"REWARDS.SNAPSHOT_TTL":                        30 * time.Second,
	"REWARDS.LENIENT_CRITERIA":                    false,
}

// LoadConfig reads config.yaml from the working directory when present and
// lets environment variables override any key (DATABASE.TYPE is DATABASE_TYPE).
func LoadConfig() (*Config, error) {
	return load(viper.New(), ".")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location is the cafe's time zone, used for "today" in eligibility checks.
func (c *Config) Location() (*time.Location, error) {
	if c.Platform.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Platform.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM.TIMEZONE %q: %w", c.Platform.Timezone, err)
	}
	return loc, nil
}
