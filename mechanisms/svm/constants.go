package svm

import (
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// SchemeExact identifies the exact-amount payment scheme.
const SchemeExact = "exact"

// Compute budget defaults applied to every payment transaction the client
// builds. These keep the transaction well under cluster compute limits
// while giving it enough priority fee to land during congestion.
const (
	DefaultComputeUnitLimit              = 200_000
	DefaultComputeUnitPriceMicrolamports = 1_000
	MaxComputeUnitPriceMicrolamports     = 5_000_000 // 5 lamports/CU ceiling enforced by facilitators
)

// Facilitator instruction-policy defaults. A verified exact-scheme
// transaction always opens with SetComputeUnitLimit, SetComputeUnitPrice and
// TransferChecked at indices 0-2; everything from index 3 onward is
// "additional" and is subject to this policy.
const (
	// DefaultMaxInstructionCount bounds how many instructions a transaction
	// may carry in total (the 3 required plus additional ones).
	DefaultMaxInstructionCount = 10
	// DefaultAllowAdditionalInstructions permits instructions beyond the
	// required 3 as long as they pass the program allow/block list.
	DefaultAllowAdditionalInstructions = true
	// DefaultRequireFeePayerNotInInstructions rejects transactions where the
	// designated fee payer account also appears inside an additional
	// instruction, which would let a payer smuggle fee-payer authority into
	// unrelated program calls.
	DefaultRequireFeePayerNotInInstructions = true
)

// CAIP-2 identifiers for the Solana clusters the exact scheme recognizes.
const (
	SolanaMainnetCAIP2 = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	SolanaDevnetCAIP2  = "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1"
	SolanaTestnetCAIP2 = "solana:4uhcVJyU9pJkvQyS88uRDiswHXSCkY3z"
)

// V1 "simple name" network identifiers, as carried in legacy
// PaymentRequirementsV1.Network fields. NormalizeNetwork maps these to
// their CAIP-2 equivalent.
const (
	SolanaMainnetV1 = "solana"
	SolanaDevnetV1  = "solana-devnet"
	SolanaTestnetV1 = "solana-testnet"
)

// USDCDevnetAddress is the devnet USDC mint used as the default asset for
// SolanaDevnetCAIP2.
const USDCDevnetAddress = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"

// PhantomLighthouseProgramID is the Lighthouse guard-instruction program
// Phantom wallet attaches to transactions it originates. It's allow-listed
// by default so a Phantom-wallet-originated payment isn't rejected purely
// for carrying Phantom's own assertion instruction.
const PhantomLighthouseProgramID = "L2TExMFKdjpN9kozasaurPirfHy9P8sbXoAN1qA3S95"

// DefaultCommitment is the commitment level used for simulation, submission
// and confirmation polling unless a caller overrides it.
const DefaultCommitment = rpc.CommitmentConfirmed

// MaxConfirmAttempts bounds how many times ConfirmTransaction polls before
// giving up, and ConfirmRetryDelay is the wait between polls.
const (
	MaxConfirmAttempts = 30
	ConfirmRetryDelay  = 1 * time.Second
)
