package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"github.com/synnergy-labs/agentwallet/internal/testutil"
)

func writeDefaultConfig(t *testing.T, sb *testutil.Sandbox, body string) {
	t.Helper()
	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if err := sb.WriteFile("config/default.yaml", []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func chdirSandbox(t *testing.T, sb *testutil.Sandbox) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	viper.Reset()
	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
}

func TestLoadReadsAgentIdentityAndLimits(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	writeDefaultConfig(t, sb, `
agent_id: agent-001
require_simulation: true
rpc:
  url: https://example-rpc.test
limits:
  per_transaction: 1000
  daily: 5000
`)
	chdirSandbox(t, sb)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AgentID != "agent-001" {
		t.Fatalf("expected agent-001, got %q", cfg.AgentID)
	}
	if !cfg.RequireSimulation {
		t.Fatalf("expected require_simulation true")
	}
	if cfg.RPC.URL != "https://example-rpc.test" {
		t.Fatalf("unexpected rpc url: %q", cfg.RPC.URL)
	}
	if cfg.Limits.PerTransaction != 1000 || cfg.Limits.Daily != 5000 {
		t.Fatalf("unexpected limits: %+v", cfg.Limits)
	}
}

func TestLoadMergesEnvOverlay(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	writeDefaultConfig(t, sb, `
agent_id: agent-001
limits:
  daily: 5000
`)
	if err := sb.WriteFile("config/testnet.yaml", []byte(`
limits:
  daily: 500
`), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	chdirSandbox(t, sb)

	cfg, err := Load("testnet")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Limits.Daily != 500 {
		t.Fatalf("expected overlay to override daily limit, got %d", cfg.Limits.Daily)
	}
	if cfg.AgentID != "agent-001" {
		t.Fatalf("expected base agent_id preserved, got %q", cfg.AgentID)
	}
}

func TestLoadParsesAddressPolicyAndTrustedList(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	writeDefaultConfig(t, sb, `
address_policy:
  mode: blocklist
  addresses:
    - "0x000000000000000000000000000000000000bad"
trusted_addresses:
  - "0x000000000000000000000000000000000000aaa"
approval:
  always: false
  recipient_is_new: true
  timeout: 30s
  timeout_policy: reject
`)
	chdirSandbox(t, sb)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AddressPolicy.Mode != "blocklist" || len(cfg.AddressPolicy.Addresses) != 1 {
		t.Fatalf("unexpected address policy: %+v", cfg.AddressPolicy)
	}
	if len(cfg.TrustedAddresses) != 1 {
		t.Fatalf("expected one trusted address, got %d", len(cfg.TrustedAddresses))
	}
	if !cfg.Approval.RecipientIsNew || cfg.Approval.Timeout.Seconds() != 30 {
		t.Fatalf("unexpected approval config: %+v", cfg.Approval)
	}
}

func TestLoadFromEnvPicksOverlayFromEnvironmentVariable(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	writeDefaultConfig(t, sb, "agent_id: base\n")
	if err := sb.WriteFile("config/staging.yaml", []byte("agent_id: staging\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	chdirSandbox(t, sb)

	os.Setenv("AGENTWALLET_ENV", "staging")
	defer os.Unsetenv("AGENTWALLET_ENV")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.AgentID != "staging" {
		t.Fatalf("expected staging overlay applied, got %q", cfg.AgentID)
	}
}
