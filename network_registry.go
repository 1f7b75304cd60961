package x402

import "sync"

// NetworkRegistry maps legacy V1 "simple name" networks (e.g. "base",
// "solana-devnet") to their CAIP-2 ChainId equivalent and back, per spec
// §4.2: "V1 name <-> V2 ChainId mappings are the single source of truth;
// V1 code paths translate in, V2 code paths translate out." It is the
// root-level counterpart to the per-namespace alias tables the mechanism
// packages (mechanisms/evm, mechanisms/svm) keep for their own internal
// use. Its defaults come from the separate defaultV1Aliases map below, not
// from those tables, so a new V1 alias is added in both places.
type NetworkRegistry struct {
	mu        sync.RWMutex
	toChainID map[string]ChainId // V1 name -> ChainId
	toV1Name  map[ChainId]string // ChainId -> preferred V1 name
}

// NewNetworkRegistry returns a registry seeded with the built-in V1 name
// mappings for every network the EVM and Solana exact schemes ship with.
func NewNetworkRegistry() *NetworkRegistry {
	r := &NetworkRegistry{
		toChainID: make(map[string]ChainId),
		toV1Name:  make(map[ChainId]string),
	}
	for name, cid := range defaultV1Aliases {
		r.Register(name, cid)
	}
	return r
}

// defaultV1Aliases are the legacy simple names recognized out of the box,
// grounded on mechanisms/evm/networks.go's CAIP-2 table (EVM) and
// mechanisms/svm/constants.go's SolanaMainnetV1/SolanaDevnetV1/
// SolanaTestnetV1 constants (Solana).
var defaultV1Aliases = map[string]ChainId{
	"base":          {Namespace: "eip155", Reference: "8453"},
	"base-sepolia":  {Namespace: "eip155", Reference: "84532"},
	"ethereum":      {Namespace: "eip155", Reference: "1"},
	"avalanche":     {Namespace: "eip155", Reference: "43114"},
	"polygon":       {Namespace: "eip155", Reference: "137"},
	"solana":        {Namespace: "solana", Reference: "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"},
	"solana-devnet": {Namespace: "solana", Reference: "EtWTRABZaYq6iMfeYKouRu166VU2xqa1"},
	"solana-testnet": {Namespace: "solana", Reference: "4uhcVJyU9pJkvQyS88uRDiswHXSCkY3z"},
}

// Register adds or overwrites the V1 name <-> ChainId mapping. The last
// registration for a given name or ChainId wins on each side of the map
// independently, matching the registry's general last-wins convention
// (spec §4.3).
func (r *NetworkRegistry) Register(v1Name string, cid ChainId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toChainID[v1Name] = cid
	r.toV1Name[cid] = v1Name
}

// ResolveChainID translates a V1 simple name to its ChainId. ok is false
// if name is not registered.
func (r *NetworkRegistry) ResolveChainID(v1Name string) (ChainId, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.toChainID[v1Name]
	return cid, ok
}

// ResolveV1Name translates a ChainId back to its preferred V1 simple name.
// ok is false if no V1 name was ever registered for cid (e.g. a chain added
// only after the V1 wire format was retired).
func (r *NetworkRegistry) ResolveV1Name(cid ChainId) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.toV1Name[cid]
	return name, ok
}

// DefaultNetworkRegistry is the process-wide registry used by code paths
// (e.g. registry.go's slugForNetwork) that need to translate a legacy V1
// network name to a ChainId without threading a registry instance through
// every call site. Initialized once at package load with the built-in
// aliases; additional mappings may be registered on it at startup before
// any request traffic arrives.
var DefaultNetworkRegistry = NewNetworkRegistry()
