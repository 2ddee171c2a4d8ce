// Package config loads the agent wallet's configuration: private-key
// source, RPC endpoints, spending limits, address policy, approval
// gating, and bridge corridor overrides (spec §6's configuration
// surface).
//
// Grounded on the teacher's pkg/config/config.go: the same
// viper.ReadInConfig + MergeInConfig + AutomaticEnv three-layer load,
// the same versioned package doc, the same Load/LoadFromEnv split. The
// struct fields are replaced wholesale with this wallet's semantic
// surface instead of the teacher's network/consensus/VM/storage node
// config.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/synnergy-labs/agentwallet/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// SpendingLimits mirrors core.SpendingLimits so this package does not
// import core (avoiding a config -> core -> config cycle risk as the
// module grows); cmd/agentwalletd converts this into core.SpendingLimits
// at wiring time.
type SpendingLimits struct {
	PerTransaction     uint64 `mapstructure:"per_transaction" json:"per_transaction"`
	EmergencyStopBelow uint64 `mapstructure:"emergency_stop_below" json:"emergency_stop_below"`
	Hourly             uint64 `mapstructure:"hourly" json:"hourly"`
	Daily              uint64 `mapstructure:"daily" json:"daily"`
	Weekly             uint64 `mapstructure:"weekly" json:"weekly"`
}

// TokenLimits pairs one stablecoin symbol with its own USD-denominated
// SpendingLimits.
type TokenLimits struct {
	Symbol string         `mapstructure:"symbol" json:"symbol"`
	Limits SpendingLimits `mapstructure:"limits" json:"limits"`
}

// CorridorLimits pairs one (symbol, destination chain) bridge corridor
// with its own USD-denominated SpendingLimits.
type CorridorLimits struct {
	Symbol              string         `mapstructure:"symbol" json:"symbol"`
	DestinationChainID  uint64         `mapstructure:"destination_chain_id" json:"destination_chain_id"`
	Limits              SpendingLimits `mapstructure:"limits" json:"limits"`
}

// AddressPolicy configures the recipient allow/block gate. Mode is
// either "allowlist" or "blocklist"; an empty Mode disables the gate
// entirely (core.AddressPolicy.Addresses == nil skips the check).
type AddressPolicy struct {
	Mode      string   `mapstructure:"mode" json:"mode"`
	Addresses []string `mapstructure:"addresses" json:"addresses"`
}

// ApprovalConfig configures the human-in-the-loop approval gate. The
// ApprovalHandler function itself is not representable in YAML/env and
// is wired programmatically by the embedding application after Load.
type ApprovalConfig struct {
	AmountExceeds         *uint64       `mapstructure:"amount_exceeds" json:"amount_exceeds"`
	RecipientIsNew        bool          `mapstructure:"recipient_is_new" json:"recipient_is_new"`
	RecipientNotInTrusted bool          `mapstructure:"recipient_not_in_trusted" json:"recipient_not_in_trusted"`
	Always                bool          `mapstructure:"always" json:"always"`
	Timeout               time.Duration `mapstructure:"timeout" json:"timeout"`
	TimeoutPolicy         string        `mapstructure:"timeout_policy" json:"timeout_policy"` // "reject" (default) or "approve"
}

// PrivateKeySource names where the signing key is loaded from. Only one
// of the fields is populated depending on Kind.
type PrivateKeySource struct {
	Kind    string `mapstructure:"kind" json:"kind"`         // "env" or "file"
	EnvVar  string `mapstructure:"env_var" json:"env_var"`   // Kind == "env"
	KeyFile string `mapstructure:"key_file" json:"key_file"` // Kind == "file"
}

// RPCConfig carries the node endpoint(s) this wallet talks to.
type RPCConfig struct {
	URL           string        `mapstructure:"url" json:"url"`
	ENSURL        string        `mapstructure:"ens_url" json:"ens_url"` // empty = reuse URL
	Timeout       time.Duration `mapstructure:"timeout" json:"timeout"`
	Confirmations uint64        `mapstructure:"confirmations" json:"confirmations"`
}

// Config is the unified configuration for one agent wallet instance. It
// mirrors the structure of the YAML files under config/.
type Config struct {
	AgentID           string           `mapstructure:"agent_id" json:"agent_id"`
	RequireSimulation bool             `mapstructure:"require_simulation" json:"require_simulation"`
	PrivateKey        PrivateKeySource `mapstructure:"private_key" json:"private_key"`
	RPC               RPCConfig        `mapstructure:"rpc" json:"rpc"`

	Limits           SpendingLimits   `mapstructure:"limits" json:"limits"`
	TokenLimits      []TokenLimits    `mapstructure:"token_limits" json:"token_limits"`
	CorridorLimits   []CorridorLimits `mapstructure:"corridor_limits" json:"corridor_limits"`
	AddressPolicy    AddressPolicy    `mapstructure:"address_policy" json:"address_policy"`
	Approval         ApprovalConfig   `mapstructure:"approval" json:"approval"`
	TrustedAddresses []string         `mapstructure:"trusted_addresses" json:"trusted_addresses"`

	Metrics struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Addr    string `mapstructure:"addr" json:"addr"`
	} `mapstructure:"metrics" json:"metrics"`

	StatusAPI struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Addr    string `mapstructure:"addr" json:"addr"`
	} `mapstructure:"status_api" json:"status_api"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads config/default.yaml, optionally merges an env-specific
// overlay (config/<env>.yaml), loads a local .env file if present, and
// layers automatic environment variable overrides on top — the same
// three-layer precedence the teacher's pkg/config.Load uses.
func Load(env string) (*Config, error) {
	_ = godotenv.Load() // optional local .env overlay; absence is not an error

	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the AGENTWALLET_ENV environment
// variable to pick the overlay file, defaulting to none.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("AGENTWALLET_ENV", ""))
}
