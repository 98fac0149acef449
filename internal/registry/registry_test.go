package registry

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mobiusAMM/mobius-pool-registry/internal/domain/model"
	"github.com/mobiusAMM/mobius-pool-registry/internal/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
networks:
  mainnet:
    pools:
      - name: Alpha
        address: "0x00000000000000000000000000000000000000aa"
      - name: Beta
        address: "0x00000000000000000000000000000000000000bb"
  Alfajores:
    chainId: 44787
    multicall: "0xcA11bde05977b3631167028862bE2a173976CA11"
    pools: []
`

func TestParse(t *testing.T) {
	reg, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Networks())

	pools, err := reg.ListEntities(model.NetworkMainnet)
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.Equal(t, "Alpha", pools[0].Name)
	assert.Equal(t, common.HexToAddress("0xaa"), pools[0].Address)
	assert.Equal(t, "Beta", pools[1].Name)

	pools, err = reg.ListEntities(model.NetworkAlfajores)
	require.NoError(t, err)
	assert.Empty(t, pools)
}

func TestListEntities_ReturnsCopy(t *testing.T) {
	reg, err := Parse([]byte(sample))
	require.NoError(t, err)

	pools, err := reg.ListEntities(model.NetworkMainnet)
	require.NoError(t, err)
	pools[0].Name = "mutated"

	again, err := reg.ListEntities(model.NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", again[0].Name)
}

func TestListEntities_UnknownNetwork(t *testing.T) {
	reg, err := Parse([]byte(sample))
	require.NoError(t, err)

	_, err = reg.ListEntities(model.NetworkBaklava)
	require.Error(t, err)
	assert.Equal(t, fault.ClassConfiguration, fault.Classify(err))
}

func TestChainIDAndMulticall(t *testing.T) {
	reg, err := Parse([]byte(sample))
	require.NoError(t, err)

	id, ok := reg.ChainID(model.NetworkMainnet)
	assert.True(t, ok)
	assert.Equal(t, uint64(42220), id, "falls back to the well-known id")

	id, ok = reg.ChainID(model.NetworkAlfajores)
	assert.True(t, ok)
	assert.Equal(t, uint64(44787), id)

	_, ok = reg.ChainID(model.Network("devnet"))
	assert.False(t, ok)

	addr, ok := reg.Multicall(model.NetworkAlfajores)
	assert.True(t, ok)
	assert.Equal(t, "0xcA11bde05977b3631167028862bE2a173976CA11", addr.Hex())

	_, ok = reg.Multicall(model.NetworkMainnet)
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad address",
			yaml:    "networks:\n  mainnet:\n    pools:\n      - name: X\n        address: \"0x1234\"\n",
			wantErr: "invalid address",
		},
		{
			name:    "zero address",
			yaml:    "networks:\n  mainnet:\n    pools:\n      - name: X\n        address: \"0x0000000000000000000000000000000000000000\"\n",
			wantErr: "zero address",
		},
		{
			name: "duplicate address",
			yaml: "networks:\n  mainnet:\n    pools:\n" +
				"      - name: X\n        address: \"0x00000000000000000000000000000000000000aa\"\n" +
				"      - name: Y\n        address: \"0x00000000000000000000000000000000000000AA\"\n",
			wantErr: "reuses address",
		},
		{
			name:    "missing name",
			yaml:    "networks:\n  mainnet:\n    pools:\n      - address: \"0x00000000000000000000000000000000000000aa\"\n",
			wantErr: "has no name",
		},
		{
			name:    "bad multicall",
			yaml:    "networks:\n  mainnet:\n    multicall: nope\n",
			wantErr: "invalid multicall address",
		},
		{
			name:    "unknown field",
			yaml:    "networks:\n  mainnet:\n    poolz: []\n",
			wantErr: "poolz",
		},
		{
			name:    "case-folded duplicate network",
			yaml:    "networks:\n  mainnet: {}\n  MAINNET: {}\n",
			wantErr: "declared twice",
		},
		{
			name:    "not yaml",
			yaml:    "networks: [",
			wantErr: "decode registry",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, fault.ClassConfiguration, fault.Classify(err))
		})
	}
}

func TestParse_Empty(t *testing.T) {
	reg, err := Parse(nil)
	require.NoError(t, err)
	assert.Zero(t, reg.Networks())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Networks())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, fault.ClassConfiguration, fault.Classify(err))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "config/pools.example.yaml")
}

func TestExampleRegistryParses(t *testing.T) {
	reg, err := Load(filepath.Join("..", "..", "config", "pools.example.yaml"))
	require.NoError(t, err)

	_, err = reg.ListEntities(model.NetworkMainnet)
	assert.NoError(t, err)
}
