package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidateForServer(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(11155111), cfg.Chain.ChainID)
	assert.Len(t, cfg.Chain.Pools, 4)
	assert.Equal(t, 30*time.Second, cfg.Relay.Staleness.Duration)
	assert.Equal(t, uint64(500_000), cfg.Relay.GasLimit)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "relay"
	cfg.LogLevel = "loud"
	cfg.Chain.Orderbook = "nope"
	cfg.Chain.LoanDecimals = 30

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "log_level")
	assert.Contains(t, msg, "wallet: either private_key")
	assert.Contains(t, msg, "chain: orderbook")
	assert.Contains(t, msg, "loan_decimals")
	assert.Contains(t, msg, "relay: oracle")
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credbook.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "full"

[chain]
rpc_url = "http://localhost:8545"

[borrow]
refresh_interval = "10s"

[relay]
oracle = "0x00000000000000000000000000000000000000c0"
`), 0o600))

	t.Setenv("CREDBOOK_WALLET_PRIVATE_KEY", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	t.Setenv("CREDBOOK_CHAIN_POOLS", "0x00000000000000000000000000000000000000a1:Alpha, 0x00000000000000000000000000000000000000a2")
	t.Setenv("CREDBOOK_RELAY_STALENESS", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "http://localhost:8545", cfg.Chain.RPCURL)
	assert.Equal(t, 10*time.Second, cfg.Borrow.RefreshInterval.Duration)
	assert.Equal(t, 45*time.Second, cfg.Relay.Staleness.Duration)
	require.Len(t, cfg.Chain.Pools, 2)
	assert.Equal(t, "Alpha", cfg.Chain.Pools[0].Name)
	assert.Empty(t, cfg.Chain.Pools[1].Name)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "secret"
	cfg.Server.APIKey = "key"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Empty(t, red.Redis.Password)
	assert.Equal(t, "secret", cfg.Wallet.PrivateKey)

	red.Chain.Pools[0].Name = "changed"
	assert.Equal(t, "Linear IRM 1", cfg.Chain.Pools[0].Name)
}
