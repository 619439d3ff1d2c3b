// The stubapi command serves an in-memory stand-in for the URL shortener REST API,
// for running the console locally without the real service.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"net/http"
	"time"

	env "github.com/caarlos0/env/v6"
	"github.com/google/uuid"

	"github.com/patric-chuzhbe/urlify/internal/logger"
	"github.com/patric-chuzhbe/urlify/internal/stubapi"
)

type config struct {
	RunAddr    string        `env:"STUB_SERVER_ADDRESS"`
	PublicBase string        `env:"STUB_PUBLIC_BASE"`
	SigningKey string        `env:"STUB_SIGNING_KEY"`
	TokenTTL   time.Duration `env:"STUB_TOKEN_TTL"`
	LogLevel   string        `env:"LOG_LEVEL"`
}

func loadConfig() (*config, error) {
	cfg := &config{}
	flag.StringVar(&cfg.RunAddr, "a", "localhost:8080", "address and port to run the stub API")
	flag.StringVar(&cfg.PublicBase, "p", "", "origin short URLs are reported under (default: http://<address>)")
	flag.StringVar(&cfg.SigningKey, "k", "", "base64 (URL encoding) JWT signing key; random when empty")
	flag.DurationVar(&cfg.TokenTTL, "t", 24*time.Hour, "token lifetime")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log level")
	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("in cmd/stubapi/main.go/loadConfig(): error while `env.Parse()` calling: %w", err)
	}
	if cfg.PublicBase == "" {
		cfg.PublicBase = "http://" + cfg.RunAddr
	}

	return cfg, nil
}

func signingKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return []byte(uuid.NewString()), nil
	}
	return base64.URLEncoding.DecodeString(encoded)
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		panic(err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Println("Logger sync error:", err)
		}
	}()

	key, err := signingKey(cfg.SigningKey)
	if err != nil {
		panic(err)
	}

	handler := stubapi.New(stubapi.NewStore(nil), stubapi.NewAuth(key, cfg.TokenTTL), cfg.PublicBase)

	logger.Log.Infoln("stub API running", "RunAddr", cfg.RunAddr, "PublicBase", cfg.PublicBase)
	if err := http.ListenAndServe(cfg.RunAddr, handler); err != nil {
		panic(err)
	}
}
