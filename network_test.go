package checkout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultNetworkRegistry(t *testing.T) {
	r := DefaultNetworkRegistry()

	testnet, err := r.Get(NetworkTestnet)
	require.NoError(t, err)
	assert.Equal(t, "https://testnet-api.algonode.cloud:443", testnet.Address())
	assert.Empty(t, testnet.Token)

	mainnet, err := r.Get(NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, "https://mainnet-api.algonode.cloud:443", mainnet.Address())

	local, err := r.Get(NetworkLocalnet)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4001", local.Address())
	assert.Len(t, local.Token, 64)

	ids := []NetworkID{}
	for _, cfg := range r.List() {
		ids = append(ids, cfg.ID)
	}
	assert.Equal(t, []NetworkID{NetworkLocalnet, NetworkMainnet, NetworkTestnet}, ids)
}

func TestNetworkRegistryUnknown(t *testing.T) {
	r := DefaultNetworkRegistry()

	_, err := r.Get("betanet")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownNetwork))
	assert.False(t, r.Has("betanet"))
}

func TestNewNetworkRegistryOverrides(t *testing.T) {
	custom := NetworkConfig{ID: NetworkTestnet, Name: "Private", Server: "http://node.internal/", Port: ""}
	r, err := NewNetworkRegistry(append(DefaultNetworks(), custom)...)
	require.NoError(t, err)

	cfg, err := r.Get(NetworkTestnet)
	require.NoError(t, err)
	assert.Equal(t, "Private", cfg.Name)
	assert.Equal(t, "http://node.internal", cfg.Address())
}

func TestNewNetworkRegistryRejectsIncomplete(t *testing.T) {
	_, err := NewNetworkRegistry(NetworkConfig{ID: "devnet"})
	assert.Error(t, err)

	_, err = NewNetworkRegistry(NetworkConfig{Server: "http://localhost"})
	assert.Error(t, err)
}

func TestDefaultNetworksIsACopy(t *testing.T) {
	nets := DefaultNetworks()
	nets[0].Server = "http://changed"

	cfg, err := DefaultNetworkRegistry().Get(nets[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, "http://changed", cfg.Server)
}
