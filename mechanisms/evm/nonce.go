package evm

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CreateNonce generates a random 32-byte ERC-3009 authorization nonce,
// returned as a "0x"-prefixed hex string.
func CreateNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return BytesToHex(b), nil
}

// minValidityWindowSeconds is the floor applied to maxTimeoutSeconds so a
// misconfigured resource (0 or a tiny timeout) never produces a window the
// payer's clock skew would invalidate before the facilitator can settle it.
const minValidityWindowSeconds = 60

// CreateValidityWindow computes the [validAfter, validBefore] unix-second
// bounds for a transferWithAuthorization signed against maxTimeoutSeconds.
// validAfter opens 60 seconds in the past to absorb clock skew between the
// payer and the verifying node; validBefore extends maxTimeoutSeconds into
// the future, floored at minValidityWindowSeconds.
func CreateValidityWindow(maxTimeoutSeconds int, now int64) (validAfter, validBefore *big.Int) {
	window := int64(maxTimeoutSeconds)
	if window < minValidityWindowSeconds {
		window = minValidityWindowSeconds
	}
	validAfter = big.NewInt(now - minValidityWindowSeconds)
	validBefore = big.NewInt(now + window)
	return validAfter, validBefore
}
