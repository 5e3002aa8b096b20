// Package config loads the gateway configuration and the policy document.
//
// Configuration sources, later overriding earlier: defaults, an optional JSON
// config file, then CERBERUS_-prefixed environment variables
// (CERBERUS_SERVER_DOMAIN -> server.domain).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the environment variable prefix
const EnvPrefix = "CERBERUS_"

// ChainEndpoints holds the RPC URLs for one chain
type ChainEndpoints struct {
	Primary  string `koanf:"primary"`
	Fallback string `koanf:"fallback"`
}

// Config is the full service configuration
type Config struct {
	Server struct {
		ListenAddr string `koanf:"listen_addr"`
		// Domain is the application domain SIWE messages must be bound to
		Domain string `koanf:"domain"`
	} `koanf:"server"`

	Auth struct {
		// SigningKey is the symmetric credential signing secret (min 32 bytes)
		SigningKey string        `koanf:"signing_key"`
		TokenTTL   time.Duration `koanf:"token_ttl"`
		NonceTTL   time.Duration `koanf:"nonce_ttl"`
		// Scopes granted on successful SIWE login
		Scopes []string `koanf:"scopes"`
	} `koanf:"auth"`

	Cache struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cache"`

	RPC struct {
		CallTimeout time.Duration `koanf:"call_timeout"`
		// Chains maps decimal chain ID strings to endpoint URLs
		Chains map[string]ChainEndpoints `koanf:"chains"`
	} `koanf:"rpc"`

	Policies struct {
		// File is the path of the declarative policy JSON document
		File string `koanf:"file"`
	} `koanf:"policies"`

	Redis struct {
		URL string `koanf:"url"`
	} `koanf:"redis"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.listen_addr": ":9000",
		"auth.token_ttl":     "24h",
		"auth.nonce_ttl":     "5m",
		"auth.scopes":        []string{"wallet"},
		"cache.ttl":          "300s",
		"rpc.call_timeout":   "5s",
		"log.level":          "info",
	}
}

// Load reads the configuration. filePath may be empty.
func Load(filePath string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), json.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", filePath, err)
		}
	}

	// Config keys are two levels deep and the leaf names contain
	// underscores (signing_key, listen_addr), so only the first
	// underscore separates section from leaf: CERBERUS_AUTH_SIGNING_KEY
	// -> auth.signing_key.
	envTransformer := func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.Replace(s, "_", ".", 1)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformer), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Domain == "" {
		return fmt.Errorf("server.domain is required")
	}
	if len(c.Auth.SigningKey) < 32 {
		return fmt.Errorf("auth.signing_key must be at least 32 bytes")
	}
	for id, eps := range c.RPC.Chains {
		if eps.Primary == "" {
			return fmt.Errorf("rpc.chains.%s: primary endpoint is required", id)
		}
	}
	return nil
}
