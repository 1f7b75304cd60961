// Package config loads the facilitator's TOML configuration: bind
// address/port, smart-wallet deployment policy, and per-chain RPC/signer
// settings, with `$VAR`/`${VAR}` environment expansion and `HOST`/`PORT`
// override support.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/qntx/x402/internal/logging"
)

// ChainConfig configures one chain's RPC access and signer material.
type ChainConfig struct {
	RPCURL             string   `toml:"rpc_url"`
	FallbackRPCURLs    []string `toml:"fallback_rpc_urls"`
	SignerPrivateKeys  []string `toml:"signer_private_keys"`
	TimeoutSeconds     int      `toml:"timeout_seconds"`
	HealthCheck        bool     `toml:"health_check"`
	EIP1559            bool     `toml:"eip1559"`
	Flashblocks        bool     `toml:"flashblocks"`
	ReceiptTimeoutSecs int      `toml:"receipt_timeout_secs"`
}

// Config is the facilitator's top-level configuration, decoded from TOML
// per spec.md §6.
type Config struct {
	Host                     string                 `toml:"host"`
	Port                     int                    `toml:"port"`
	DeployERC4337WithEIP6492 bool                   `toml:"deploy_erc4337_with_eip6492"`
	Chains                   map[string]ChainConfig `toml:"chains"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnv substitutes `$VAR`/`${VAR}` occurrences in s from the process
// environment, leaving unresolved placeholders literal. No library in the
// retrieved pack implements exactly this narrow substitution rule, so this
// is a deliberate stdlib-only exception (see DESIGN.md).
func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}"), "$")
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

func expandChain(c ChainConfig) ChainConfig {
	c.RPCURL = expandEnv(c.RPCURL)
	for i, u := range c.FallbackRPCURLs {
		c.FallbackRPCURLs[i] = expandEnv(u)
	}
	for i, k := range c.SignerPrivateKeys {
		c.SignerPrivateKeys[i] = expandEnv(k)
	}
	return c
}

// Load reads and decodes the TOML config at path, expanding environment
// variables in every string field and applying HOST/PORT env overrides.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.Host = expandEnv(cfg.Host)
	for name, chain := range cfg.Chains {
		cfg.Chains[name] = expandChain(chain)
	}

	if host, ok := os.LookupEnv("HOST"); ok {
		cfg.Host = host
	}
	if portStr, ok := os.LookupEnv("PORT"); ok {
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err == nil {
			cfg.Port = port
		}
	}

	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 4021
	}

	logging.L.Info().Str("path", path).Int("chains", len(cfg.Chains)).Msg("config: loaded")

	return &cfg, nil
}
