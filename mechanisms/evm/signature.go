package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifyUniversalSignature validates that signature over hash was produced
// by from, dispatching across the three wallet shapes the exact scheme
// accepts:
//
//   - EOA: a 65-byte (or 64-byte ERC-2098 compact) ECDSA signature recovered
//     directly against hash.
//   - Deployed contract wallet: EIP-1271 isValidSignature(hash, signature).
//   - Counterfactual (undeployed) smart wallet: ERC-6492-wrapped signature,
//     checked by calling isValidSig on the UniversalSigValidator contract at
//     validatorAddress. That call is a plain eth_call: the validator
//     contract deploys the wallet via factory/factoryCalldata, runs the
//     real EIP-1271 check against the freshly deployed code, then reverts
//     the deployment so nothing is committed — it proves the signature
//     cryptographically without ever sending a transaction. An empty
//     validatorAddress disables this check and the signature is rejected,
//     since there is nothing to verify it against.
//
// It returns whether the signature is valid, the parsed ERC-6492 data (nil
// for a plain signature), and an error only for system failures (RPC,
// malformed ABI) — never for a signature simply failing to validate.
func VerifyUniversalSignature(
	ctx context.Context,
	signer FacilitatorEvmSigner,
	from string,
	hash [32]byte,
	signature []byte,
	validatorAddress string,
) (bool, *ERC6492SignatureData, error) {
	sigData, err := ParseERC6492Signature(signature)
	if err != nil {
		return false, nil, err
	}

	inner := normalizeSignature(sigData.InnerSignature)

	var zeroFactory [20]byte
	wrapped := sigData.Factory != zeroFactory

	code, err := signer.GetCode(ctx, from)
	if err != nil {
		return false, nil, fmt.Errorf("failed to check deployment status: %w", err)
	}
	deployed := len(code) > 0

	if !deployed {
		if wrapped {
			valid, err := verifyWithUniversalValidator(ctx, signer, validatorAddress, from, hash, signature)
			return valid, sigData, err
		}
		// Undeployed and not ERC-6492-wrapped: only an EOA signature can work.
		valid := recoverMatches(hash, inner, from)
		return valid, sigData, nil
	}

	// Deployed: try EOA recovery first, then fall back to EIP-1271.
	if recoverMatches(hash, inner, from) {
		return true, sigData, nil
	}

	result, err := signer.ReadContract(ctx, from, IsValidSignatureABI, "isValidSignature", hash, inner)
	if err != nil {
		return false, sigData, fmt.Errorf("isValidSignature call failed: %w", err)
	}

	return decodeMagicValue(result), sigData, nil
}

// verifyWithUniversalValidator calls isValidSig(signer, hash, signature) on
// the UniversalSigValidator contract at validatorAddress, passing the full
// (still ERC-6492-wrapped) signature so the validator can deploy the
// counterfactual wallet itself before checking it. Returns false, without
// error, if validatorAddress is empty — there is no cryptographic ground
// truth to accept the signature against, so it is simply rejected rather
// than trusted.
func verifyWithUniversalValidator(
	ctx context.Context,
	signer FacilitatorEvmSigner,
	validatorAddress string,
	from string,
	hash [32]byte,
	signature []byte,
) (bool, error) {
	if validatorAddress == "" {
		return false, nil
	}

	result, err := signer.ReadContract(
		ctx,
		validatorAddress,
		Validator6492ABI,
		"isValidSig",
		common.HexToAddress(from),
		hash,
		signature,
	)
	if err != nil {
		return false, fmt.Errorf("universal signature validator call failed: %w", err)
	}

	valid, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected result type from isValidSig")
	}
	return valid, nil
}

// normalizeSignature expands a 64-byte ERC-2098 compact signature into the
// standard 65-byte (r, s, v) form; any other length passes through unchanged.
func normalizeSignature(sig []byte) []byte {
	if len(sig) != 64 {
		return sig
	}

	r := sig[0:32]
	sAndV := make([]byte, 32)
	copy(sAndV, sig[32:64])

	v := byte(27)
	if sAndV[0]&0x80 != 0 {
		v = 28
		sAndV[0] &= 0x7f
	}

	out := make([]byte, 65)
	copy(out[0:32], r)
	copy(out[32:64], sAndV)
	out[64] = v
	return out
}

func recoverMatches(hash [32]byte, signature []byte, from string) bool {
	if len(signature) != 65 {
		return false
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(hash[:], sig)
	if err != nil {
		return false
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	return recovered == common.HexToAddress(from)
}

func decodeMagicValue(result interface{}) bool {
	switch v := result.(type) {
	case [4]byte:
		return BytesToHex(v[:]) == eip1271MagicValue
	case []byte:
		return BytesToHex(v) == eip1271MagicValue
	case string:
		return v == eip1271MagicValue
	default:
		return false
	}
}
