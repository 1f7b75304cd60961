// Package evm implements the "exact" payment scheme for EIP-155 (EVM) chains
// using ERC-3009 transferWithAuthorization, with EIP-712 signing and support
// for EIP-1271 and EIP-6492 smart-wallet signatures.
package evm

import (
	"context"
	"fmt"
	"math/big"
)

// ClientEvmSigner signs EIP-712 typed data on behalf of a payer.
type ClientEvmSigner interface {
	// Address returns the payer's checksummed Ethereum address.
	Address() string

	// SignTypedData signs the given EIP-712 typed data and returns a 65-byte
	// (r, s, v) signature, or a smart-wallet signature blob for contract
	// wallets that wrap ERC-6492.
	SignTypedData(
		ctx context.Context,
		domain TypedDataDomain,
		types map[string][]TypedDataField,
		primaryType string,
		message map[string]interface{},
	) ([]byte, error)
}

// FacilitatorEvmSigner performs the on-chain reads and writes a facilitator
// needs to verify and settle an exact-scheme EVM payment: balance and
// authorization-state lookups, the transferWithAuthorization call itself,
// and (for ERC-6492 counterfactual wallets) factory deployment.
type FacilitatorEvmSigner interface {
	// GetAddresses returns every address this facilitator may settle from.
	GetAddresses() []string

	// GetBalance returns the token balance of address for the ERC-20 at tokenAddress.
	GetBalance(ctx context.Context, address string, tokenAddress string) (*big.Int, error)

	// GetChainID returns the chain ID the signer is connected to.
	GetChainID(ctx context.Context) (*big.Int, error)

	// GetCode returns the deployed bytecode at address, or nil if it is an EOA
	// or an undeployed counterfactual contract.
	GetCode(ctx context.Context, address string) ([]byte, error)

	// ReadContract performs an eth_call against contractAddress, ABI-encoding
	// functionName(args...) and decoding the single return value.
	ReadContract(ctx context.Context, contractAddress string, abi []byte, functionName string, args ...interface{}) (interface{}, error)

	// WriteContract submits a transaction invoking functionName(args...) on
	// contractAddress and returns its transaction hash.
	WriteContract(ctx context.Context, contractAddress string, abi []byte, functionName string, args ...interface{}) (string, error)

	// SendTransaction submits a raw transaction with the given calldata.
	SendTransaction(ctx context.Context, to string, data []byte) (string, error)

	// WaitForTransactionReceipt blocks until txHash is mined and returns its receipt.
	WaitForTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error)

	// VerifyTypedData checks whether signature was produced by address over
	// the given EIP-712 typed data, via EIP-1271 isValidSignature when
	// address is a deployed contract.
	VerifyTypedData(
		ctx context.Context,
		address string,
		domain TypedDataDomain,
		types map[string][]TypedDataField,
		primaryType string,
		message map[string]interface{},
		signature []byte,
	) (bool, error)
}

// TransactionReceipt is the minimal on-chain receipt data the exact scheme needs.
type TransactionReceipt struct {
	Status      uint64
	BlockNumber uint64
	TxHash      string
}

// TxStatusSuccess is the receipt status code for a successful transaction,
// per the Ethereum yellow paper ("1" indicates success).
const TxStatusSuccess uint64 = 1

// TypedDataDomain is the EIP-712 domain separator.
type TypedDataDomain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract string
}

// TypedDataField names one field of an EIP-712 struct type.
type TypedDataField struct {
	Name string
	Type string
}

// AssetInfo describes an ERC-20 asset accepted as payment, including the
// EIP-712 domain name/version its transferWithAuthorization signature uses.
type AssetInfo struct {
	Address  string
	Decimals int
	Name     string
	Version  string
	Symbol   string
}

// NetworkConfig holds per-chain defaults for the exact scheme on EVM.
type NetworkConfig struct {
	ChainID         *big.Int
	DefaultAsset    AssetInfo
	SupportedAssets map[string]AssetInfo
}

// ExactEIP3009Authorization is the ERC-3009 transferWithAuthorization message
// signed by the payer. All numeric fields are carried as decimal strings so
// the payload round-trips through JSON without precision loss.
type ExactEIP3009Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// ExactEIP3009Payload is the scheme-specific payload carried inside a
// PaymentPayload's Payload field for the EVM exact scheme.
type ExactEIP3009Payload struct {
	Signature     string                    `json:"signature"`
	Authorization ExactEIP3009Authorization `json:"authorization"`
}

// ToMap converts the payload into the generic map[string]interface{} shape
// used by types.PaymentPayload.Payload.
func (p *ExactEIP3009Payload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"signature": p.Signature,
		"authorization": map[string]interface{}{
			"from":        p.Authorization.From,
			"to":          p.Authorization.To,
			"value":       p.Authorization.Value,
			"validAfter":  p.Authorization.ValidAfter,
			"validBefore": p.Authorization.ValidBefore,
			"nonce":       p.Authorization.Nonce,
		},
	}
}

// PayloadFromMap reconstructs an ExactEIP3009Payload from a generic payload map.
func PayloadFromMap(m map[string]interface{}) (*ExactEIP3009Payload, error) {
	signature, _ := m["signature"].(string)

	authRaw, ok := m["authorization"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("payload missing authorization object")
	}

	get := func(key string) (string, error) {
		v, ok := authRaw[key].(string)
		if !ok {
			return "", fmt.Errorf("authorization missing field %q", key)
		}
		return v, nil
	}

	from, err := get("from")
	if err != nil {
		return nil, err
	}
	to, err := get("to")
	if err != nil {
		return nil, err
	}
	value, err := get("value")
	if err != nil {
		return nil, err
	}
	validAfter, err := get("validAfter")
	if err != nil {
		return nil, err
	}
	validBefore, err := get("validBefore")
	if err != nil {
		return nil, err
	}
	nonce, err := get("nonce")
	if err != nil {
		return nil, err
	}

	return &ExactEIP3009Payload{
		Signature: signature,
		Authorization: ExactEIP3009Authorization{
			From:        from,
			To:          to,
			Value:       value,
			ValidAfter:  validAfter,
			ValidBefore: validBefore,
			Nonce:       nonce,
		},
	}, nil
}

// ERC6492SignatureData is the result of unwrapping an ERC-6492 signature:
// the counterfactual wallet's factory, the calldata that deploys it, and
// the inner signature to validate once deployed.
type ERC6492SignatureData struct {
	Factory         [20]byte
	FactoryCalldata []byte
	InnerSignature  []byte
}
