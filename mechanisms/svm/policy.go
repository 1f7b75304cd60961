package svm

import solana "github.com/gagliardetto/solana-go"

// PolicyConfig governs which instructions a facilitator will accept beyond
// the 3 required by the exact scheme (SetComputeUnitLimit, SetComputeUnitPrice,
// TransferChecked). It mirrors the facilitator-side config knobs a resource
// server operator tunes to decide how much latitude a client transaction gets
// before it's signed and submitted.
type PolicyConfig struct {
	// MaxInstructionCount is the upper bound on tx.Message.Instructions,
	// including the 3 required instructions.
	MaxInstructionCount int
	// AllowAdditionalInstructions permits instructions beyond index 2 at
	// all. When false, any transaction with more than 3 instructions is
	// rejected outright.
	AllowAdditionalInstructions bool
	// RequireFeePayerNotInInstructions rejects a transaction if the fee
	// payer account (index 0 of the account keys) appears as an account of
	// any instruction at index >= 3.
	RequireFeePayerNotInInstructions bool
	// AllowedProgramIDs is the set of programs an additional instruction
	// (index >= 3) may target. An empty set allows none. Defaults to just
	// the Phantom Lighthouse program, so Phantom-wallet-originated
	// transactions aren't rejected for carrying Phantom's own guard
	// instruction; other programs must be explicitly opted in.
	AllowedProgramIDs map[solana.PublicKey]struct{}
	// BlockedProgramIDs is checked before AllowedProgramIDs and always
	// rejects, even for a program that also appears in AllowedProgramIDs.
	BlockedProgramIDs map[solana.PublicKey]struct{}
}

// DefaultPolicyConfig returns the facilitator's out-of-the-box instruction
// policy: up to DefaultMaxInstructionCount total instructions, additional
// instructions allowed but only against an explicitly allow-listed program
// set (Phantom Lighthouse by default), and the fee payer barred from
// appearing in any of them.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		MaxInstructionCount:              DefaultMaxInstructionCount,
		AllowAdditionalInstructions:      DefaultAllowAdditionalInstructions,
		RequireFeePayerNotInInstructions: DefaultRequireFeePayerNotInInstructions,
		AllowedProgramIDs: map[solana.PublicKey]struct{}{
			solana.MustPublicKeyFromBase58(PhantomLighthouseProgramID): {},
		},
		BlockedProgramIDs: map[solana.PublicKey]struct{}{},
	}
}

// IsAllowed reports whether progID may be used by an additional instruction:
// not blocked, and present in the allow list. An empty allow list allows
// nothing, matching the deny-by-default posture of DefaultPolicyConfig.
func (p PolicyConfig) IsAllowed(progID solana.PublicKey) bool {
	if _, blocked := p.BlockedProgramIDs[progID]; blocked {
		return false
	}
	_, allowed := p.AllowedProgramIDs[progID]
	return allowed
}

// PolicyOption configures a PolicyConfig away from its defaults.
type PolicyOption func(*PolicyConfig)

// WithMaxInstructionCount overrides the total instruction count ceiling.
func WithMaxInstructionCount(n int) PolicyOption {
	return func(p *PolicyConfig) { p.MaxInstructionCount = n }
}

// WithAllowAdditionalInstructions toggles whether instructions beyond the
// required 3 are permitted at all.
func WithAllowAdditionalInstructions(allow bool) PolicyOption {
	return func(p *PolicyConfig) { p.AllowAdditionalInstructions = allow }
}

// WithRequireFeePayerNotInInstructions toggles the fee-payer-smuggling check.
func WithRequireFeePayerNotInInstructions(require bool) PolicyOption {
	return func(p *PolicyConfig) { p.RequireFeePayerNotInInstructions = require }
}

// WithAllowedProgramIDs replaces the additional-instruction allow list.
func WithAllowedProgramIDs(ids ...solana.PublicKey) PolicyOption {
	return func(p *PolicyConfig) {
		p.AllowedProgramIDs = make(map[solana.PublicKey]struct{}, len(ids))
		for _, id := range ids {
			p.AllowedProgramIDs[id] = struct{}{}
		}
	}
}

// WithBlockedProgramIDs replaces the additional-instruction block list.
func WithBlockedProgramIDs(ids ...solana.PublicKey) PolicyOption {
	return func(p *PolicyConfig) {
		p.BlockedProgramIDs = make(map[solana.PublicKey]struct{}, len(ids))
		for _, id := range ids {
			p.BlockedProgramIDs[id] = struct{}{}
		}
	}
}

// NewPolicyConfig builds a PolicyConfig starting from DefaultPolicyConfig and
// applying opts in order.
func NewPolicyConfig(opts ...PolicyOption) PolicyConfig {
	cfg := DefaultPolicyConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
