package model

type Chain string

const (
	ChainCelo Chain = "celo"
)

func (c Chain) String() string {
	return string(c)
}

type Network string

const (
	NetworkMainnet   Network = "mainnet"
	NetworkAlfajores Network = "alfajores"
	NetworkBaklava   Network = "baklava"
)

func (n Network) String() string {
	return string(n)
}

var knownChainIDs = map[Network]uint64{
	NetworkMainnet:   42220,
	NetworkAlfajores: 44787,
	NetworkBaklava:   62320,
}

// ChainID returns the EVM chain id of a well-known network.
func (n Network) ChainID() (uint64, bool) {
	id, ok := knownChainIDs[n]
	return id, ok
}
