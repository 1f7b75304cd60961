// Package svm implements the "exact" payment scheme for Solana (SVM) chains.
//
// It provides the signer interfaces, network/asset tables, and wire payload
// codec shared by mechanisms/svm/exact's client, facilitator, server and v1
// sub-packages.
package svm

import (
	"context"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// ClientSvmSigner signs and reports the address used to build a payer's side
// of an exact-scheme transaction. Implementations typically hold an Ed25519
// private key (see signers/svm.ClientSigner).
type ClientSvmSigner interface {
	// Address returns the public key controlling the payer's token account.
	Address() solana.PublicKey

	// SignTransaction partially signs tx with the client's key. The
	// transaction's fee payer is a separate key supplied by the facilitator,
	// so this only contributes the payer's own signature slot.
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// FacilitatorSvmSigner provides the facilitator-side signing, simulation and
// broadcast operations needed to verify and settle an exact-scheme payment.
// A facilitator may manage multiple fee payer keys per network to spread
// load; GetAddresses reports all of them.
type FacilitatorSvmSigner interface {
	// GetAddresses returns the fee payer public keys available for network.
	GetAddresses(ctx context.Context, network string) []solana.PublicKey

	// SignTransaction adds the feePayer's signature to tx.
	SignTransaction(ctx context.Context, tx *solana.Transaction, feePayer solana.PublicKey, network string) error

	// SimulateTransaction runs tx against the cluster without submitting it,
	// surfacing an error if it would fail (insufficient balance, bad account, ...).
	SimulateTransaction(ctx context.Context, tx *solana.Transaction, network string) error

	// SendTransaction submits tx and returns its signature.
	SendTransaction(ctx context.Context, tx *solana.Transaction, network string) (solana.Signature, error)

	// ConfirmTransaction blocks until signature reaches a confirmed commitment.
	ConfirmTransaction(ctx context.Context, signature solana.Signature, network string) error
}

// ClientConfig customizes RPC access for client-side transaction building.
// The zero value uses the network's default public RPC endpoint.
type ClientConfig struct {
	RPCURL string
}

// AssetInfo describes an SPL token mint accepted as a payment asset.
type AssetInfo struct {
	Address  string
	Decimals int
	Symbol   string
}

// NetworkConfig holds per-network defaults for the exact scheme on Solana.
type NetworkConfig struct {
	// CAIP2 is the canonical "solana:<genesis-hash>" identifier for this
	// cluster, regardless of whether the config was looked up by CAIP-2 or
	// by a legacy V1 simple name.
	CAIP2           string
	RPCURL          string
	DefaultAsset    AssetInfo
	SupportedAssets map[string]AssetInfo
}

// ExactSvmPayload is the scheme-specific payload carried inside a
// PaymentPayload's Payload field for the SVM exact scheme: a base64-encoded,
// partially-signed (by the payer) Solana transaction.
type ExactSvmPayload struct {
	Transaction string `json:"transaction"`
}

// ToMap converts the payload into the generic map[string]interface{} shape
// used by types.PaymentPayload.Payload.
func (p *ExactSvmPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"transaction": p.Transaction,
	}
}

// PayloadFromMap reconstructs an ExactSvmPayload from a generic payload map.
func PayloadFromMap(m map[string]interface{}) (*ExactSvmPayload, error) {
	txVal, ok := m["transaction"]
	if !ok {
		return nil, fmt.Errorf("payload missing transaction field")
	}
	tx, ok := txVal.(string)
	if !ok || tx == "" {
		return nil, fmt.Errorf("payload transaction field must be a non-empty string")
	}
	return &ExactSvmPayload{Transaction: tx}, nil
}
