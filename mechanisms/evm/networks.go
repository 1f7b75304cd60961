package evm

import (
	"fmt"
	"math/big"
	"strings"
)

// CAIP-2 chain identifiers for the EVM networks the exact scheme ships with.
const (
	NetworkEthereum    = "eip155:1"
	NetworkBase        = "eip155:8453"
	NetworkBaseSepolia = "eip155:84532"
	NetworkAvalanche   = "eip155:43114"
	NetworkPolygon     = "eip155:137"
)

func usdc(address string) AssetInfo {
	return AssetInfo{
		Address:  address,
		Decimals: 6,
		Name:     "USD Coin",
		Version:  "2",
		Symbol:   "USDC",
	}
}

// NetworkConfigs holds the built-in network/asset tables for every CAIP-2
// EVM chain the exact scheme recognizes out of the box.
var NetworkConfigs = map[string]NetworkConfig{
	NetworkEthereum: {
		ChainID:      big.NewInt(1),
		DefaultAsset: usdc("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		SupportedAssets: map[string]AssetInfo{
			"USDC": usdc("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		},
	},
	NetworkBase: {
		ChainID:      big.NewInt(8453),
		DefaultAsset: usdc("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		SupportedAssets: map[string]AssetInfo{
			"USDC": usdc("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		},
	},
	NetworkBaseSepolia: {
		ChainID:      big.NewInt(84532),
		DefaultAsset: usdc("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		SupportedAssets: map[string]AssetInfo{
			"USDC": usdc("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		},
	},
	NetworkAvalanche: {
		ChainID:      big.NewInt(43114),
		DefaultAsset: usdc("0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"),
		SupportedAssets: map[string]AssetInfo{
			"USDC": usdc("0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"),
		},
	},
	NetworkPolygon: {
		ChainID:      big.NewInt(137),
		DefaultAsset: usdc("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"),
		SupportedAssets: map[string]AssetInfo{
			"USDC": usdc("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"),
		},
	},
}

// IsValidNetwork reports whether network is a recognized EVM CAIP-2 chain.
func IsValidNetwork(network string) bool {
	_, ok := NetworkConfigs[network]
	return ok
}

// GetNetworkConfig returns the network configuration for network, or an
// error if the network is not recognized.
func GetNetworkConfig(network string) (*NetworkConfig, error) {
	config, ok := NetworkConfigs[network]
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}
	return &config, nil
}

// GetAssetInfo resolves asset for network. asset may be a contract address
// (returned as-is with the matching SupportedAssets entry's metadata when
// found) or a known symbol such as "USDC".
func GetAssetInfo(network string, asset string) (*AssetInfo, error) {
	config, err := GetNetworkConfig(network)
	if err != nil {
		return nil, err
	}

	if asset == "" {
		info := config.DefaultAsset
		return &info, nil
	}

	if info, ok := config.SupportedAssets[strings.ToUpper(asset)]; ok {
		return &info, nil
	}

	for _, info := range config.SupportedAssets {
		if strings.EqualFold(info.Address, asset) {
			found := info
			found.Address = asset
			return &found, nil
		}
	}

	if IsValidAddress(asset) {
		info := config.DefaultAsset
		info.Address = asset
		return &info, nil
	}

	return nil, fmt.Errorf("unknown asset %q on network %s", asset, network)
}
