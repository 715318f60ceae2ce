// Package config handles application configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/dexscreener"
	"github.com/raykavin/dexwatch/pkg/logger"
	"github.com/raykavin/dexwatch/pkg/logger/logrus"
	"github.com/raykavin/dexwatch/pkg/logger/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
)

// Constants for configuration
const (
	EnvPrefix         = "DEXWATCH"
	DefaultConfigPath = "./dexwatch.yaml"
	DefaultSiteURL    = "https://dexscreener.com"
	DefaultStorage    = "dexwatch.db"

	LogDriverZerolog = "zerolog"
	LogDriverLogrus  = "logrus"
)

// Config holds the application configuration
type Config struct {
	core.Settings
	Log LogConfig
}

// LogConfig selects and tunes the logger
type LogConfig struct {
	Level      string
	Driver     string
	TimeFormat string
	JSON       bool
	Color      bool
}

var defaults = map[string]any{
	"telegram.token":         "",
	"telegram.users":         "",
	"broadcast.recipient":    "",
	"favorites.interval":     "1h",
	"favorites.run-on-start": true,
	"discovery.enabled":      true,
	"discovery.interval":     "5m",
	"discovery.networks":     "ethereum,solana,bsc",
	"provider.base-url":      dexscreener.DefaultBaseURL,
	"provider.site-url":      DefaultSiteURL,
	"provider.timeout":       "10s",
	"provider.delay":         "1s",
	"provider.max-retries":   2,
	"storage.driver":         "buntdb",
	"storage.path":           DefaultStorage,
	"seen.max-entries":       10000,
	"seen.retention":         "0s",
	"metrics.address":        "",
	"log.level":              "info",
	"log.driver":             LogDriverZerolog,
	"log.json":               false,
	"log.color":              true,
	"log.time-format":        "2006-01-02 15:04:05",
}

// New returns a viper instance with every key defaulted and bound to its
// DEXWATCH_ environment variable, e.g. provider.base-url <- DEXWATCH_PROVIDER_BASE_URL
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// BindFlags binds every flag whose name is a configuration key
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(flag *pflag.Flag) {
		if _, ok := defaults[flag.Name]; !ok || err != nil {
			return
		}
		err = v.BindPFlag(flag.Name, flag)
	})
	return err
}

// Load reads the optional .env and YAML files and builds the configuration.
// An empty path reads DefaultConfigPath when it exists.
func Load(v *viper.Viper, path string) (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	if err := readFile(v, path); err != nil {
		return nil, err
	}

	var errs []error
	duration := func(key string) time.Duration {
		d, err := str2duration.ParseDuration(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}

	users, err := parseUsers(stringList(v, "telegram.users"))
	if err != nil {
		errs = append(errs, err)
	}

	networks := lo.Uniq(lo.Map(stringList(v, "discovery.networks"), func(network string, _ int) string {
		return strings.ToLower(network)
	}))

	config := &Config{
		Settings: core.Settings{
			Telegram: core.TelegramSettings{
				Token: v.GetString("telegram.token"),
				Users: users,
			},
			Broadcast: strings.TrimSpace(v.GetString("broadcast.recipient")),
			Favorites: core.FavoriteSettings{
				Interval:   duration("favorites.interval"),
				RunOnStart: v.GetBool("favorites.run-on-start"),
			},
			Discovery: core.DiscoverySettings{
				Enabled:  v.GetBool("discovery.enabled"),
				Interval: duration("discovery.interval"),
				Networks: networks,
			},
			Provider: core.ProviderSettings{
				BaseURL:    v.GetString("provider.base-url"),
				SiteURL:    v.GetString("provider.site-url"),
				Timeout:    duration("provider.timeout"),
				Delay:      duration("provider.delay"),
				MaxRetries: v.GetInt("provider.max-retries"),
			},
			Storage: core.StorageSettings{
				Driver: strings.ToLower(v.GetString("storage.driver")),
				Path:   v.GetString("storage.path"),
			},
			Seen: core.SeenSettings{
				MaxEntries: v.GetInt("seen.max-entries"),
				Retention:  duration("seen.retention"),
			},
			MetricsAddress: v.GetString("metrics.address"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Driver:     strings.ToLower(v.GetString("log.driver")),
			TimeFormat: v.GetString("log.time-format"),
			JSON:       v.GetBool("log.json"),
			Color:      v.GetBool("log.color"),
		},
	}

	if config.Provider.MaxRetries < 0 {
		errs = append(errs, errors.New("provider.max-retries must not be negative"))
	}
	if config.Seen.MaxEntries < 0 {
		errs = append(errs, errors.New("seen.max-entries must not be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfig, err)
	}
	return config, nil
}

func readFile(v *viper.Viper, path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultConfigPath); err != nil {
			return nil
		}
		path = DefaultConfigPath
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: reading %s: %w", core.ErrConfig, path, err)
	}
	return nil
}

// stringList accepts a YAML list or a comma separated string
func stringList(v *viper.Viper, key string) []string {
	var values []string
	switch raw := v.Get(key).(type) {
	case string:
		values = strings.Split(raw, ",")
	case []string:
		values = raw
	case []any:
		values = lo.Map(raw, func(value any, _ int) string { return fmt.Sprint(value) })
	}

	values = lo.Map(values, func(value string, _ int) string { return strings.TrimSpace(value) })
	return lo.Compact(values)
}

func parseUsers(values []string) ([]int64, error) {
	users := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram.users: invalid user id %q", value)
		}
		users = append(users, id)
	}
	return lo.Uniq(users), nil
}

// NewLogger builds the logger selected by the log settings
func NewLogger(config LogConfig, out io.Writer) (logger.Logger, error) {
	level := logger.ParseLevel(config.Level)

	switch config.Driver {
	case "", LogDriverZerolog:
		return zerolog.New(zerolog.Options{
			Level:      level,
			TimeLayout: config.TimeFormat,
			Colored:    config.Color,
			JSON:       config.JSON,
			Output:     out,
		}), nil
	case LogDriverLogrus:
		return logrus.New(level, config.TimeFormat, config.JSON, out), nil
	default:
		return nil, fmt.Errorf("%w: unknown log driver %q", core.ErrConfig, config.Driver)
	}
}
