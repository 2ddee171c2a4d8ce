// Command agentwalletd wires an agent wallet's config, signer, RPC
// transport, policy engine, bridge router, and read-only status HTTP
// surface into one running process. No payment watcher is started here.
//
// Grounded on the teacher's cmd/xchainserver/main.go: a plain-main
// entrypoint with env-driven listen addresses and log.Fatal on startup
// failure, no CLI framework — spec §1's Non-goals explicitly exclude
// CLI front-ends as an external collaborator, so no cobra (or any
// flag-parsing library beyond the standard library) is used here.
package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/synnergy-labs/agentwallet/bridge"
	"github.com/synnergy-labs/agentwallet/core"
	"github.com/synnergy-labs/agentwallet/pkg/config"
	"github.com/synnergy-labs/agentwallet/statusapi"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("agentwalletd: load config: %v", err)
	}

	account, err := loadAccount(cfg.PrivateKey)
	if err != nil {
		log.Fatalf("agentwalletd: load signing key: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("agentwalletd: init zap logger: %v", err)
	}
	defer zapLogger.Sync()
	core.SetLogger(logrus.StandardLogger())
	bridge.SetBridgeLogger(zapLogger.Sugar())

	rpcTimeout := cfg.RPC.Timeout
	if rpcTimeout <= 0 {
		rpcTimeout = 30 * time.Second
	}
	transport := core.NewHTTPTransport(cfg.RPC.URL, rpcTimeout)
	rpc := core.NewRPC(transport, core.RPCConfig{})

	var ens *core.ENSResolver
	if cfg.RPC.ENSURL != "" {
		ensTransport := core.NewHTTPTransport(cfg.RPC.ENSURL, rpcTimeout)
		ensRPC := core.NewRPC(ensTransport, core.RPCConfig{})
		ens = core.NewENSResolver(ensRPC, 1024, time.Hour)
	}

	policy, err := buildPolicyEngine(cfg)
	if err != nil {
		log.Fatalf("agentwalletd: build policy engine: %v", err)
	}

	confirmations := cfg.RPC.Confirmations
	if confirmations == 0 {
		confirmations = 1
	}
	wallet := core.NewWallet(account, rpc, ens, policy, core.WalletConfig{
		RequireSimulation: cfg.RequireSimulation,
		Confirmations:     confirmations,
		ReceiptTimeout:    2 * time.Minute,
		AgentID:           cfg.AgentID,
	})

	nonces := core.NewNonceManager(account.Address(), rpc)
	gas := core.NewGasOracle(rpc)
	router := bridge.NewRouter(account, rpc, nonces, gas, policy, confirmations, 2*time.Minute)

	srv := statusapi.New(wallet, policy, router, rpc, nonces)
	addr := cfg.StatusAPI.Addr
	if addr == "" {
		addr = ":8090"
	}
	if !cfg.StatusAPI.Enabled {
		log.Printf("agentwalletd: status API disabled, starting signer %s with no monitoring surface", account.Address().Hex())
		select {}
	}

	log.Printf("agentwalletd: status API listening on %s for agent %q (signer %s)", addr, cfg.AgentID, account.Address().Hex())
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatalf("agentwalletd: status API: %v", err)
	}
}

// loadAccount builds a signing Account from a PrivateKeySource: either a
// hex-encoded key read from an environment variable, or from a file on
// disk containing the same hex form.
func loadAccount(src config.PrivateKeySource) (*core.Account, error) {
	var raw string
	switch src.Kind {
	case "env":
		raw = os.Getenv(src.EnvVar)
		if raw == "" {
			return nil, fmt.Errorf("private key env var %q is unset", src.EnvVar)
		}
	case "file":
		data, err := os.ReadFile(src.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		raw = string(data)
	default:
		return nil, fmt.Errorf("unsupported private key source kind %q", src.Kind)
	}

	raw = strings.TrimSpace(strings.TrimPrefix(raw, "0x"))
	keyBytes, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return core.NewAccount(keyBytes)
}

// buildPolicyEngine converts the config package's YAML/env-serializable
// policy DTOs into the core.SpendingLimits/AddressPolicy/ApprovalConfig
// the policy engine actually runs on. The approval handler itself is not
// representable in config and is left nil: spec §1's Non-goals exclude
// a frontend, so this daemon denies any transaction that trips an
// approval predicate. A handler can only be passed in
// core.ApprovalConfig.Handler when core.NewPolicyEngine is called.
func buildPolicyEngine(cfg *config.Config) (*core.PolicyEngine, error) {
	limits := core.SpendingLimits{
		PerTransaction:     cfg.Limits.PerTransaction,
		EmergencyStopBelow: cfg.Limits.EmergencyStopBelow,
		Hourly:             cfg.Limits.Hourly,
		Daily:              cfg.Limits.Daily,
		Weekly:             cfg.Limits.Weekly,
	}

	addressPolicy := core.AddressPolicy{}
	if cfg.AddressPolicy.Mode != "" {
		switch cfg.AddressPolicy.Mode {
		case "allowlist":
			addressPolicy.Mode = core.AddressPolicyAllowlist
		case "blocklist":
			addressPolicy.Mode = core.AddressPolicyBlocklist
		default:
			return nil, fmt.Errorf("unsupported address_policy.mode %q", cfg.AddressPolicy.Mode)
		}
		addressPolicy.Addresses = make(map[core.Address]bool, len(cfg.AddressPolicy.Addresses))
		for _, raw := range cfg.AddressPolicy.Addresses {
			addr, err := core.ParseAddress(raw)
			if err != nil {
				return nil, fmt.Errorf("address_policy.addresses: %w", err)
			}
			addressPolicy.Addresses[addr] = true
		}
	}

	approval := core.ApprovalConfig{
		RequireApprovalWhen: core.ApprovalPredicates{
			AmountExceeds:         cfg.Approval.AmountExceeds,
			RecipientIsNew:        cfg.Approval.RecipientIsNew,
			RecipientNotInTrusted: cfg.Approval.RecipientNotInTrusted,
			Always:                cfg.Approval.Always,
		},
		Timeout: cfg.Approval.Timeout,
	}
	if cfg.Approval.TimeoutPolicy == "approve" {
		approval.TimeoutPolicy = core.ApprovalTimeoutApprove
	}

	trusted := make([]core.Address, 0, len(cfg.TrustedAddresses))
	for _, raw := range cfg.TrustedAddresses {
		addr, err := core.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted_addresses: %w", err)
		}
		trusted = append(trusted, addr)
	}

	policy := core.NewPolicyEngine(limits, addressPolicy, approval, trusted)
	for _, tl := range cfg.TokenLimits {
		policy.SetTokenLimits(tl.Symbol, core.SpendingLimits{
			PerTransaction:     tl.Limits.PerTransaction,
			EmergencyStopBelow: tl.Limits.EmergencyStopBelow,
			Hourly:             tl.Limits.Hourly,
			Daily:              tl.Limits.Daily,
			Weekly:             tl.Limits.Weekly,
		})
	}
	for _, cl := range cfg.CorridorLimits {
		policy.SetCorridorLimits(cl.Symbol, cl.DestinationChainID, core.SpendingLimits{
			PerTransaction:     cl.Limits.PerTransaction,
			EmergencyStopBelow: cl.Limits.EmergencyStopBelow,
			Hourly:             cl.Limits.Hourly,
			Daily:              cl.Limits.Daily,
			Weekly:             cl.Limits.Weekly,
		})
	}
	return policy, nil
}
