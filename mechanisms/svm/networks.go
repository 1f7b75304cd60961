package svm

import (
	"fmt"
	"strings"
)

func usdc(address string) AssetInfo {
	return AssetInfo{
		Address:  address,
		Decimals: 6,
		Symbol:   "USDC",
	}
}

// networkAliases maps every recognized legacy V1 simple name to its CAIP-2
// equivalent. CAIP-2 identifiers map to themselves so callers can pass
// either form through NormalizeNetwork uniformly.
var networkAliases = map[string]string{
	SolanaMainnetV1:    SolanaMainnetCAIP2,
	SolanaDevnetV1:     SolanaDevnetCAIP2,
	SolanaTestnetV1:    SolanaTestnetCAIP2,
	SolanaMainnetCAIP2: SolanaMainnetCAIP2,
	SolanaDevnetCAIP2:  SolanaDevnetCAIP2,
	SolanaTestnetCAIP2: SolanaTestnetCAIP2,
}

// NetworkConfigs holds the built-in network/asset tables for the Solana
// clusters the exact scheme recognizes out of the box, keyed by CAIP-2.
var NetworkConfigs = map[string]NetworkConfig{
	SolanaMainnetCAIP2: {
		CAIP2:        SolanaMainnetCAIP2,
		RPCURL:       "https://api.mainnet-beta.solana.com",
		DefaultAsset: usdc("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
	},
	SolanaDevnetCAIP2: {
		CAIP2:        SolanaDevnetCAIP2,
		RPCURL:       "https://api.devnet.solana.com",
		DefaultAsset: usdc(USDCDevnetAddress),
	},
	SolanaTestnetCAIP2: {
		CAIP2:        SolanaTestnetCAIP2,
		RPCURL:       "https://api.testnet.solana.com",
		DefaultAsset: usdc(USDCDevnetAddress),
	},
}

// NormalizeNetwork maps a legacy V1 simple network name or a CAIP-2
// identifier to its canonical CAIP-2 form, erroring if network is neither.
func NormalizeNetwork(network string) (string, error) {
	caip2, ok := networkAliases[network]
	if !ok {
		return "", fmt.Errorf("unsupported network: %s", network)
	}
	return caip2, nil
}

// IsValidNetwork reports whether network is a recognized Solana cluster,
// expressed either as a CAIP-2 identifier or a legacy V1 simple name.
func IsValidNetwork(network string) bool {
	_, err := NormalizeNetwork(network)
	return err == nil
}

// GetNetworkConfig returns the network configuration for network (accepting
// either a CAIP-2 identifier or a legacy V1 simple name), or an error if the
// cluster is not recognized.
func GetNetworkConfig(network string) (*NetworkConfig, error) {
	caip2, err := NormalizeNetwork(network)
	if err != nil {
		return nil, err
	}
	config, ok := NetworkConfigs[caip2]
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}
	return &config, nil
}

// GetAssetInfo resolves asset — a mint address or a symbol such as "USDC" —
// for network. Unrecognized assets fall back to the network's default
// asset, since the exact scheme only settles in assets it has decimals and
// EIP-712-equivalent metadata for.
func GetAssetInfo(network string, asset string) (*AssetInfo, error) {
	config, err := GetNetworkConfig(network)
	if err != nil {
		return nil, err
	}

	if asset == "" || asset == config.DefaultAsset.Address || strings.EqualFold(asset, config.DefaultAsset.Symbol) {
		info := config.DefaultAsset
		return &info, nil
	}

	for _, info := range config.SupportedAssets {
		if asset == info.Address || strings.EqualFold(asset, info.Symbol) {
			info := info
			return &info, nil
		}
	}

	info := config.DefaultAsset
	return &info, nil
}
