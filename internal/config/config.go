// Package config assembles the console configuration from defaults, an optional JSON
// file, environment variables and command-line flags, in increasing order of priority.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the console.
type Config struct {
	ConfigFile                 string        `env:"CONFIG" json:"-"`
	RunAddr                    string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	AppOrigin                  string        `env:"APP_ORIGIN" json:"app_origin" validate:"url"`
	APIBaseURL                 string        `env:"API_BASE_URL" json:"api_base_url" validate:"url"`
	LogLevel                   string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	SessionFile                string        `env:"SESSION_FILE_PATH" json:"session_file_path" validate:"filepath"`
	DatabaseDSN                string        `env:"DATABASE_DSN" json:"database_dsn"`
	RedisAddr                  string        `env:"REDIS_ADDR" json:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword              string        `env:"REDIS_PASSWORD" json:"redis_password"`
	RedisDB                    int           `env:"REDIS_DB" json:"redis_db" validate:"gte=0"`
	RequestTimeout             time.Duration `env:"REQUEST_TIMEOUT" json:"request_timeout" validate:"gt=0"`
	NotificationsFlushInterval time.Duration `env:"NOTIFICATIONS_FLUSH_INTERVAL" json:"notifications_flush_interval" validate:"gt=0"`
	NotificationsCapacity      int           `env:"NOTIFICATIONS_CAPACITY" json:"notifications_capacity" validate:"gt=0"`
}

// jsonConfig mirrors Config for the JSON file; durations are written as strings ("10s").
type jsonConfig struct {
	RunAddr                    string `json:"server_address"`
	AppOrigin                  string `json:"app_origin"`
	APIBaseURL                 string `json:"api_base_url"`
	LogLevel                   string `json:"log_level"`
	SessionFile                string `json:"session_file_path"`
	DatabaseDSN                string `json:"database_dsn"`
	RedisAddr                  string `json:"redis_addr"`
	RedisPassword              string `json:"redis_password"`
	RedisDB                    int    `json:"redis_db"`
	RequestTimeout             string `json:"request_timeout"`
	NotificationsFlushInterval string `json:"notifications_flush_interval"`
	NotificationsCapacity      int    `json:"notifications_capacity"`
}

var defaultConfig = Config{
	RunAddr:                    "localhost:3000",
	AppOrigin:                  "http://localhost:3000",
	APIBaseURL:                 "http://localhost:8080/api",
	LogLevel:                   "info",
	SessionFile:                defaultSessionFile(),
	RequestTimeout:             10 * time.Second,
	NotificationsFlushInterval: 100 * time.Millisecond,
	NotificationsCapacity:      100,
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "session.json"
	}
	return filepath.Join(dir, "urlify", "session.json")
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

// BackendRoot is the service root of the remote API: the API base without a trailing /api.
// Short codes are resolved there.
func (c *Config) BackendRoot() string {
	root := strings.TrimRight(c.APIBaseURL, "/")
	return strings.TrimSuffix(root, "/api")
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips command-line parsing; tests use it to stay away from os.Args.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

func applyDefaults(values *Config, defaults Config) {
	if values.RunAddr == "" {
		values.RunAddr = defaults.RunAddr
	}
	if values.AppOrigin == "" {
		values.AppOrigin = defaults.AppOrigin
	}
	if values.APIBaseURL == "" {
		values.APIBaseURL = defaults.APIBaseURL
	}
	if values.LogLevel == "" {
		values.LogLevel = defaults.LogLevel
	}
	if values.SessionFile == "" {
		values.SessionFile = defaults.SessionFile
	}
	if values.RequestTimeout == 0 {
		values.RequestTimeout = defaults.RequestTimeout
	}
	if values.NotificationsFlushInterval == 0 {
		values.NotificationsFlushInterval = defaults.NotificationsFlushInterval
	}
	if values.NotificationsCapacity == 0 {
		values.NotificationsCapacity = defaults.NotificationsCapacity
	}
}

func (c *Config) applyJSONFile(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go/applyJSONFile(): error while `os.ReadFile()` calling: %w", err)
	}

	var fromFile jsonConfig
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("in internal/config/config.go/applyJSONFile(): error while `json.Unmarshal()` calling: %w", err)
	}

	overrideString(&c.RunAddr, fromFile.RunAddr)
	overrideString(&c.AppOrigin, fromFile.AppOrigin)
	overrideString(&c.APIBaseURL, fromFile.APIBaseURL)
	overrideString(&c.LogLevel, fromFile.LogLevel)
	overrideString(&c.SessionFile, fromFile.SessionFile)
	overrideString(&c.DatabaseDSN, fromFile.DatabaseDSN)
	overrideString(&c.RedisAddr, fromFile.RedisAddr)
	overrideString(&c.RedisPassword, fromFile.RedisPassword)
	if fromFile.RedisDB != 0 {
		c.RedisDB = fromFile.RedisDB
	}
	if fromFile.NotificationsCapacity != 0 {
		c.NotificationsCapacity = fromFile.NotificationsCapacity
	}
	if err := overrideDuration(&c.RequestTimeout, fromFile.RequestTimeout); err != nil {
		return err
	}

	return overrideDuration(&c.NotificationsFlushInterval, fromFile.NotificationsFlushInterval)
}

func (c *Config) applyEnv(fromEnv Config) {
	overrideString(&c.RunAddr, fromEnv.RunAddr)
	overrideString(&c.AppOrigin, fromEnv.AppOrigin)
	overrideString(&c.APIBaseURL, fromEnv.APIBaseURL)
	overrideString(&c.LogLevel, fromEnv.LogLevel)
	overrideString(&c.SessionFile, fromEnv.SessionFile)
	overrideString(&c.DatabaseDSN, fromEnv.DatabaseDSN)
	overrideString(&c.RedisAddr, fromEnv.RedisAddr)
	overrideString(&c.RedisPassword, fromEnv.RedisPassword)
	if fromEnv.RedisDB != 0 {
		c.RedisDB = fromEnv.RedisDB
	}
	if fromEnv.RequestTimeout != 0 {
		c.RequestTimeout = fromEnv.RequestTimeout
	}
	if fromEnv.NotificationsFlushInterval != 0 {
		c.NotificationsFlushInterval = fromEnv.NotificationsFlushInterval
	}
	if fromEnv.NotificationsCapacity != 0 {
		c.NotificationsCapacity = fromEnv.NotificationsCapacity
	}
}

func overrideString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func overrideDuration(target *time.Duration, value string) error {
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go/overrideDuration(): error while `time.ParseDuration()` calling: %w", err)
	}
	*target = parsed

	return nil
}

// New builds the configuration. Priority: flags > environment > JSON file > defaults.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	var fromEnv Config
	if err := env.Parse(&fromEnv); err != nil {
		return nil, err
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	configFile := flags.String("c", fromEnv.ConfigFile, "JSON configuration file")
	runAddr := flags.String("a", "", "address and port the console listens on")
	appOrigin := flags.String("o", "", "public origin of the console, used to build short URLs")
	apiBaseURL := flags.String("b", "", "base URL of the remote URL shortener API")
	logLevel := flags.String("l", "", "logger level")
	sessionFile := flags.String("f", "", "JSON file mirroring the session")
	databaseDSN := flags.String("d", "", "SQLite DSN mirroring the session")
	redisAddr := flags.String("r", "", "Redis address mirroring the session")
	if !options.disableFlagsParsing {
		if err := flags.Parse(os.Args[1:]); err != nil {
			return nil, err
		}
	}

	values.ConfigFile = *configFile
	if values.ConfigFile != "" {
		if err := values.applyJSONFile(values.ConfigFile); err != nil {
			return nil, err
		}
	}

	values.applyEnv(fromEnv)

	overrideString(&values.RunAddr, *runAddr)
	overrideString(&values.AppOrigin, *appOrigin)
	overrideString(&values.APIBaseURL, *apiBaseURL)
	overrideString(&values.LogLevel, *logLevel)
	overrideString(&values.SessionFile, *sessionFile)
	overrideString(&values.DatabaseDSN, *databaseDSN)
	overrideString(&values.RedisAddr, *redisAddr)

	values.AppOrigin = strings.TrimRight(values.AppOrigin, "/")
	values.APIBaseURL = strings.TrimRight(values.APIBaseURL, "/")

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}
