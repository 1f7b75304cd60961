// Package evmsigner provides a production FacilitatorEvmSigner backed by
// one or more EOA private keys and a go-ethereum ethclient connection, plus the
// monotonic nonce-reservation layer the facilitator's settle path needs when
// submitting transferWithAuthorization transactions concurrently.
package evmsigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/sony/gobreaker"

	"github.com/qntx/x402/internal/logging"
	x402evm "github.com/qntx/x402/mechanisms/evm"
)

// nonceState tracks the next nonce to assign and the set of nonces that have
// been reserved (assigned to an in-flight transaction) but not yet confirmed
// on-chain, per spec §9's "pending-nonce structure". One instance guards a
// single signing key, since nonces are scoped per-sender.
type nonceState struct {
	mu        sync.Mutex
	next      uint64
	reserved  map[uint64]struct{}
	confirmed uint64 // highest nonce known confirmed; informational only
}

func (n *nonceState) reserve(chainNext uint64) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.next < chainNext {
		n.next = chainNext
	}
	nonce := n.next
	n.next++
	n.reserved[nonce] = struct{}{}
	return nonce
}

func (n *nonceState) release(nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.reserved, nonce)
}

func (n *nonceState) confirm(nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.reserved, nonce)
	if nonce > n.confirmed {
		n.confirmed = nonce
	}
}

// Signer is a FacilitatorEvmSigner backed by one or more EOA keys, each
// dialed against the same chain RPC endpoint.
type Signer struct {
	client  *ethclient.Client
	chainID *big.Int

	mu      sync.RWMutex
	keys    map[common.Address]*ecdsa.PrivateKey
	order   []common.Address
	nonces  map[common.Address]*nonceState
	timeout time.Duration

	// breaker wraps the eth_call (ReadContract) and transaction-submission
	// (SendTransaction) round-trips to the chain node so a degraded endpoint
	// fails fast instead of hanging verify/settle; other RPC calls (code,
	// nonce, gas, header, receipt lookups) are not wrapped. Grounded on
	// CedrosPay-server's circuitbreaker.Manager pattern (see DESIGN.md).
	breaker *gobreaker.CircuitBreaker
}

// newBreaker builds the per-signer circuit breaker. It trips after 5
// consecutive failures and allows one trial request after 30s open, the
// same defaults CedrosPay-server's BreakerConfig documents.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// New dials rpcURL and wraps privateKeys (hex, with or without 0x prefix)
// as a multi-key facilitator signer. timeout bounds on-chain calls and
// submissions (0 uses a 30s default, matching the teacher's config
// convention of a per-chain timeout_seconds field).
func New(ctx context.Context, rpcURL string, privateKeys []string, timeout time.Duration) (*Signer, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("evmsigner: dial %s: %w", rpcURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("evmsigner: chain id: %w", err)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Signer{
		client:  client,
		chainID: chainID,
		keys:    make(map[common.Address]*ecdsa.PrivateKey, len(privateKeys)),
		nonces:  make(map[common.Address]*nonceState, len(privateKeys)),
		timeout: timeout,
		breaker: newBreaker("evmsigner:" + rpcURL),
	}

	for _, hexKey := range privateKeys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("evmsigner: invalid private key: %w", err)
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		s.keys[addr] = key
		s.order = append(s.order, addr)
		s.nonces[addr] = &nonceState{reserved: make(map[uint64]struct{})}
	}

	if len(s.order) == 0 {
		return nil, fmt.Errorf("evmsigner: no signer keys configured")
	}

	return s, nil
}

var _ x402evm.FacilitatorEvmSigner = (*Signer)(nil)

// GetAddresses returns every address this signer may settle from.
func (s *Signer) GetAddresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addrs := make([]string, len(s.order))
	for i, a := range s.order {
		addrs[i] = a.Hex()
	}
	return addrs
}

// GetBalance returns the ERC-20 balance of address at tokenAddress via the
// standard balanceOf(address) read.
func (s *Signer) GetBalance(ctx context.Context, address string, tokenAddress string) (*big.Int, error) {
	result, err := s.ReadContract(ctx, tokenAddress, erc20BalanceOfABI, "balanceOf", common.HexToAddress(address))
	if err != nil {
		return nil, err
	}
	balance, ok := result.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("evmsigner: unexpected balanceOf return type %T", result)
	}
	return balance, nil
}

// GetChainID returns the chain ID the signer dialed.
func (s *Signer) GetChainID(ctx context.Context) (*big.Int, error) {
	return s.chainID, nil
}

// GetCode returns the deployed bytecode at address, or an empty slice for
// an EOA or undeployed counterfactual contract.
func (s *Signer) GetCode(ctx context.Context, address string) ([]byte, error) {
	return s.client.CodeAt(ctx, common.HexToAddress(address), nil)
}

// ReadContract ABI-encodes functionName(args...), performs an eth_call
// against contractAddress, and decodes a single return value.
func (s *Signer) ReadContract(ctx context.Context, contractAddress string, abiJSON []byte, functionName string, args ...interface{}) (interface{}, error) {
	parsed, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return nil, fmt.Errorf("evmsigner: parse abi: %w", err)
	}

	input, err := parsed.Pack(functionName, args...)
	if err != nil {
		return nil, fmt.Errorf("evmsigner: pack %s: %w", functionName, err)
	}

	to := common.HexToAddress(contractAddress)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: input}, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("evmsigner: call %s: %w", functionName, err)
	}
	output := result.([]byte)

	method, ok := parsed.Methods[functionName]
	if !ok {
		return nil, fmt.Errorf("evmsigner: unknown method %s", functionName)
	}
	if len(method.Outputs) == 0 {
		return nil, nil
	}
	values, err := method.Outputs.Unpack(output)
	if err != nil {
		return nil, fmt.Errorf("evmsigner: unpack %s: %w", functionName, err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

// WriteContract ABI-encodes functionName(args...) and submits it as a
// transaction signed by the first configured key, returning its hash.
func (s *Signer) WriteContract(ctx context.Context, contractAddress string, abiJSON []byte, functionName string, args ...interface{}) (string, error) {
	parsed, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return "", fmt.Errorf("evmsigner: parse abi: %w", err)
	}
	input, err := parsed.Pack(functionName, args...)
	if err != nil {
		return "", fmt.Errorf("evmsigner: pack %s: %w", functionName, err)
	}
	return s.SendTransaction(ctx, contractAddress, input)
}

// SendTransaction submits a raw transaction to `to` signed by the signer's
// first configured key, reserving and releasing/confirming a nonce around
// the submission per the nonce-reservation contract described in spec §9.
func (s *Signer) SendTransaction(ctx context.Context, to string, data []byte) (string, error) {
	s.mu.RLock()
	addr := s.order[0]
	key := s.keys[addr]
	nonces := s.nonces[addr]
	s.mu.RUnlock()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	chainNonce, err := s.client.PendingNonceAt(callCtx, addr)
	if err != nil {
		return "", fmt.Errorf("evmsigner: pending nonce: %w", err)
	}
	nonce := nonces.reserve(chainNonce)

	gasTipCap, err := s.client.SuggestGasTipCap(callCtx)
	if err != nil {
		nonces.release(nonce)
		return "", fmt.Errorf("evmsigner: suggest gas tip: %w", err)
	}
	head, err := s.client.HeaderByNumber(callCtx, nil)
	if err != nil {
		nonces.release(nonce)
		return "", fmt.Errorf("evmsigner: header: %w", err)
	}
	gasFeeCap := new(big.Int).Add(gasTipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	toAddr := common.HexToAddress(to)
	txData := &types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       300_000,
		To:        &toAddr,
		Data:      data,
	}

	signed, err := types.SignNewTx(key, types.LatestSignerForChainID(s.chainID), txData)
	if err != nil {
		nonces.release(nonce)
		return "", fmt.Errorf("evmsigner: sign tx: %w", err)
	}

	if _, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.SendTransaction(callCtx, signed)
	}); err != nil {
		nonces.release(nonce)
		logging.L.Warn().Err(err).Uint64("nonce", nonce).Str("from", addr.Hex()).Msg("evmsigner: released reserved nonce after send failure")
		return "", fmt.Errorf("evmsigner: send tx: %w", err)
	}

	nonces.confirm(nonce)
	return signed.Hash().Hex(), nil
}

// WaitForTransactionReceipt blocks (subject to the signer's configured
// timeout) until txHash is mined, returning its receipt.
func (s *Signer) WaitForTransactionReceipt(ctx context.Context, txHash string) (*x402evm.TransactionReceipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(waitCtx, hash)
		if err == nil {
			return &x402evm.TransactionReceipt{
				Status:      receipt.Status,
				BlockNumber: receipt.BlockNumber.Uint64(),
				TxHash:      txHash,
			}, nil
		}
		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("evmsigner: receipt timeout for %s: %w", txHash, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// VerifyTypedData checks whether signature over the EIP-712 typed data was
// produced by address, recovering an EOA signature directly.
func (s *Signer) VerifyTypedData(
	ctx context.Context,
	address string,
	domain x402evm.TypedDataDomain,
	dataTypes map[string][]x402evm.TypedDataField,
	primaryType string,
	message map[string]interface{},
	signature []byte,
) (bool, error) {
	typedData := apitypes.TypedData{
		Types:       make(apitypes.Types, len(dataTypes)),
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract,
		},
		Message: message,
	}
	for name, fields := range dataTypes {
		apitypesFields := make([]apitypes.Type, len(fields))
		for i, f := range fields {
			apitypesFields[i] = apitypes.Type{Name: f.Name, Type: f.Type}
		}
		typedData.Types[name] = apitypesFields
	}

	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return false, fmt.Errorf("evmsigner: hash struct: %w", err)
	}
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return false, fmt.Errorf("evmsigner: hash domain: %w", err)
	}

	raw := append([]byte{0x19, 0x01}, domainSeparator...)
	raw = append(raw, dataHash...)
	digest := crypto.Keccak256(raw)

	if len(signature) != 65 {
		return false, fmt.Errorf("evmsigner: invalid signature length %d", len(signature))
	}
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false, fmt.Errorf("evmsigner: recover: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey) == common.HexToAddress(address), nil
}

var erc20BalanceOfABI = []byte(`[{
	"name": "balanceOf",
	"type": "function",
	"stateMutability": "view",
	"inputs": [{"name": "account", "type": "address"}],
	"outputs": [{"name": "", "type": "uint256"}]
}]`)
