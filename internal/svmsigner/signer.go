// Package svmsigner provides a production FacilitatorSvmSigner backed by a
// single Solana fee-payer keypair and an RPC client, handling transaction
// co-signing, simulation, submission and confirmation polling.
package svmsigner

import (
	"context"
	"fmt"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sony/gobreaker"

	x402svm "github.com/qntx/x402/mechanisms/svm"
)

// Signer is a FacilitatorSvmSigner backed by a single fee-payer keypair used
// on every network, with one RPC client and circuit breaker per network endpoint.
type Signer struct {
	privateKey solana.PrivateKey
	rpcClients map[string]*rpc.Client
	breakers   map[string]*gobreaker.CircuitBreaker
	rpcURL     string // overrides per-network default when non-empty
}

// New wraps privateKeyBase58 as a facilitator signer. rpcURL, if non-empty,
// overrides every network's default RPC endpoint (useful for a dedicated
// private RPC provider); otherwise each network's configured default is
// dialed lazily on first use.
func New(privateKeyBase58 string, rpcURL string) (*Signer, error) {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("svmsigner: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: key,
		rpcClients: make(map[string]*rpc.Client),
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
		rpcURL:     rpcURL,
	}, nil
}

var _ x402svm.FacilitatorSvmSigner = (*Signer)(nil)

func (s *Signer) getRPC(network string) (*rpc.Client, error) {
	if client, ok := s.rpcClients[network]; ok {
		return client, nil
	}

	url := s.rpcURL
	if url == "" {
		config, err := x402svm.GetNetworkConfig(network)
		if err != nil {
			return nil, err
		}
		url = config.RPCURL
	}

	client := rpc.New(url)
	s.rpcClients[network] = client
	return client, nil
}

// getBreaker returns the per-network circuit breaker, wrapping RPC calls so
// a degraded cluster endpoint fails fast instead of hanging settlement
// (grounded on CedrosPay-server's circuitbreaker.Manager, see DESIGN.md).
func (s *Signer) getBreaker(network string) *gobreaker.CircuitBreaker {
	if b, ok := s.breakers[network]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "svmsigner:" + network,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	s.breakers[network] = b
	return b
}

// GetAddresses returns the single fee-payer public key this signer manages.
func (s *Signer) GetAddresses(ctx context.Context, network string) []solana.PublicKey {
	return []solana.PublicKey{s.privateKey.PublicKey()}
}

// SignTransaction adds the fee payer's signature to tx at its account-key
// slot, leaving the payer's own signature (already present) untouched.
func (s *Signer) SignTransaction(ctx context.Context, tx *solana.Transaction, feePayer solana.PublicKey, network string) error {
	if feePayer != s.privateKey.PublicKey() {
		return fmt.Errorf("svmsigner: no signer for fee payer %s", feePayer)
	}

	messageBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("svmsigner: marshal message: %w", err)
	}

	signature, err := s.privateKey.Sign(messageBytes)
	if err != nil {
		return fmt.Errorf("svmsigner: sign: %w", err)
	}

	accountIndex, err := tx.GetAccountIndex(s.privateKey.PublicKey())
	if err != nil {
		return fmt.Errorf("svmsigner: account index: %w", err)
	}

	if len(tx.Signatures) <= int(accountIndex) {
		padded := make([]solana.Signature, accountIndex+1)
		copy(padded, tx.Signatures)
		tx.Signatures = padded
	}
	tx.Signatures[accountIndex] = signature
	return nil
}

// SimulateTransaction runs tx against the cluster without submitting it.
func (s *Signer) SimulateTransaction(ctx context.Context, tx *solana.Transaction, network string) error {
	client, err := s.getRPC(network)
	if err != nil {
		return err
	}

	opts := rpc.SimulateTransactionOpts{
		SigVerify:              true,
		ReplaceRecentBlockhash: false,
		Commitment:             x402svm.DefaultCommitment,
	}
	raw, err := s.getBreaker(network).Execute(func() (interface{}, error) {
		return client.SimulateTransactionWithOpts(ctx, tx, &opts)
	})
	if err != nil {
		return fmt.Errorf("svmsigner: simulate: %w", err)
	}
	result := raw.(*rpc.SimulateTransactionResponse)
	if result != nil && result.Value != nil && result.Value.Err != nil {
		return fmt.Errorf("svmsigner: simulation failed: %v", result.Value.Err)
	}
	return nil
}

// SendTransaction submits tx, skipping preflight since it was already
// simulated via SimulateTransaction.
func (s *Signer) SendTransaction(ctx context.Context, tx *solana.Transaction, network string) (solana.Signature, error) {
	client, err := s.getRPC(network)
	if err != nil {
		return solana.Signature{}, err
	}
	raw, err := s.getBreaker(network).Execute(func() (interface{}, error) {
		return client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       true,
			PreflightCommitment: x402svm.DefaultCommitment,
		})
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("svmsigner: send: %w", err)
	}
	return raw.(solana.Signature), nil
}

// ConfirmTransaction polls for signature's confirmation status, bounded by
// x402svm.MaxConfirmAttempts retries spaced x402svm.ConfirmRetryDelay apart.
func (s *Signer) ConfirmTransaction(ctx context.Context, signature solana.Signature, network string) error {
	client, err := s.getRPC(network)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < x402svm.MaxConfirmAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		statuses, statusErr := client.GetSignatureStatuses(ctx, true, signature)
		if statusErr == nil && statuses != nil && statuses.Value != nil && len(statuses.Value) > 0 {
			if status := statuses.Value[0]; status != nil {
				if status.Err != nil {
					return fmt.Errorf("svmsigner: transaction failed on-chain: %v", status.Err)
				}
				if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
					status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
					return nil
				}
			}
		}

		if statusErr != nil {
			txResult, txErr := client.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
				Encoding:   solana.EncodingBase58,
				Commitment: x402svm.DefaultCommitment,
			})
			if txErr == nil && txResult != nil && txResult.Meta != nil {
				if txResult.Meta.Err != nil {
					return fmt.Errorf("svmsigner: transaction failed on-chain: %v", txResult.Meta.Err)
				}
				return nil
			}
		}

		time.Sleep(x402svm.ConfirmRetryDelay)
	}

	return fmt.Errorf("svmsigner: confirmation timed out after %d attempts", x402svm.MaxConfirmAttempts)
}
