// Package registry loads the pool address book: for each network, the ordered
// list of pools to snapshot.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mobiusAMM/mobius-pool-registry/internal/domain/model"
	"github.com/mobiusAMM/mobius-pool-registry/internal/fault"
	"gopkg.in/yaml.v3"
)

type file struct {
	Networks map[string]networkEntry `yaml:"networks"`
}

type networkEntry struct {
	ChainID   uint64      `yaml:"chainId"`
	Multicall string      `yaml:"multicall"`
	Pools     []poolEntry `yaml:"pools"`
}

type poolEntry struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

type network struct {
	chainID   uint64
	multicall common.Address
	pools     []model.Pool
}

// Registry is an immutable, validated pool table keyed by network.
type Registry struct {
	networks map[model.Network]network
}

// Load reads and parses the registry file at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fault.Configuration(fmt.Errorf("read registry %s: %w (create it from config/pools.example.yaml)", path, err))
	}
	if err != nil {
		return nil, fault.Configuration(fmt.Errorf("read registry %s: %w", path, err))
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes a YAML registry. Unknown fields, malformed or duplicate
// addresses and unnamed pools are rejected.
func Parse(data []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fault.Configuration(fmt.Errorf("decode registry: %w", err))
	}

	reg := &Registry{networks: make(map[model.Network]network, len(f.Networks))}
	for name, entry := range f.Networks {
		key := model.Network(strings.ToLower(strings.TrimSpace(name)))
		if key == "" {
			return nil, fault.Configuration(fmt.Errorf("registry: empty network name"))
		}
		if _, dup := reg.networks[key]; dup {
			return nil, fault.Configuration(fmt.Errorf("registry: network %s declared twice", key))
		}

		n, err := parseNetwork(key, entry)
		if err != nil {
			return nil, fault.Configuration(err)
		}
		reg.networks[key] = n
	}
	return reg, nil
}

func parseNetwork(key model.Network, entry networkEntry) (network, error) {
	n := network{chainID: entry.ChainID, pools: make([]model.Pool, 0, len(entry.Pools))}

	if entry.Multicall != "" {
		if !common.IsHexAddress(entry.Multicall) {
			return network{}, fmt.Errorf("network %s: invalid multicall address %q", key, entry.Multicall)
		}
		n.multicall = common.HexToAddress(entry.Multicall)
	}

	seen := make(map[common.Address]string, len(entry.Pools))
	for i, p := range entry.Pools {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return network{}, fmt.Errorf("network %s: pool #%d has no name", key, i)
		}
		if !common.IsHexAddress(p.Address) {
			return network{}, fmt.Errorf("network %s: pool %q has invalid address %q", key, name, p.Address)
		}
		addr := common.HexToAddress(p.Address)
		if addr == (common.Address{}) {
			return network{}, fmt.Errorf("network %s: pool %q has the zero address", key, name)
		}
		if prev, dup := seen[addr]; dup {
			return network{}, fmt.Errorf("network %s: pool %q reuses address %s of pool %q", key, name, addr.Hex(), prev)
		}
		seen[addr] = name
		n.pools = append(n.pools, model.Pool{Name: name, Address: addr})
	}
	return n, nil
}

// ListEntities returns the pools of network in registry order.
func (r *Registry) ListEntities(net model.Network) ([]model.Pool, error) {
	n, ok := r.networks[net]
	if !ok {
		return nil, fault.Configuration(fmt.Errorf("registry has no network %q", net))
	}
	pools := make([]model.Pool, len(n.pools))
	copy(pools, n.pools)
	return pools, nil
}

// ChainID returns the chain id expected for network: the registry's value
// when declared, else the well-known id of the network.
func (r *Registry) ChainID(net model.Network) (uint64, bool) {
	if n, ok := r.networks[net]; ok && n.chainID != 0 {
		return n.chainID, true
	}
	return net.ChainID()
}

// Multicall returns the multicall address override for network, if any.
func (r *Registry) Multicall(net model.Network) (common.Address, bool) {
	n, ok := r.networks[net]
	if !ok || n.multicall == (common.Address{}) {
		return common.Address{}, false
	}
	return n.multicall, true
}

// Networks returns the number of networks in the registry.
func (r *Registry) Networks() int {
	return len(r.networks)
}
