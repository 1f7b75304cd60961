package evm

// SchemeExact identifies the exact-amount payment scheme.
const SchemeExact = "exact"

// Function names invoked on the ERC-3009 token contract.
const (
	FunctionTransferWithAuthorization = "transferWithAuthorization"
	FunctionAuthorizationState        = "authorizationState"
)

// Minimal ABI fragments for the ERC-3009 surface the facilitator calls.
// Kept as distinct VRS/bytes overloads because ecdsa (v,r,s) and smart-wallet
// (bytes) signatures pack their final argument differently.
var (
	AuthorizationStateABI = []byte(`[{
		"name": "authorizationState",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "authorizer", "type": "address"},
			{"name": "nonce", "type": "bytes32"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	}]`)

	TransferWithAuthorizationVRSABI = []byte(`[{
		"name": "transferWithAuthorization",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "value", "type": "uint256"},
			{"name": "validAfter", "type": "uint256"},
			{"name": "validBefore", "type": "uint256"},
			{"name": "nonce", "type": "bytes32"},
			{"name": "v", "type": "uint8"},
			{"name": "r", "type": "bytes32"},
			{"name": "s", "type": "bytes32"}
		],
		"outputs": []
	}]`)

	TransferWithAuthorizationBytesABI = []byte(`[{
		"name": "transferWithAuthorization",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "value", "type": "uint256"},
			{"name": "validAfter", "type": "uint256"},
			{"name": "validBefore", "type": "uint256"},
			{"name": "nonce", "type": "bytes32"},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": []
	}]`)

	// IsValidSignatureABI is the EIP-1271 contract-wallet validation entrypoint.
	IsValidSignatureABI = []byte(`[{
		"name": "isValidSignature",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "hash", "type": "bytes32"},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": [{"name": "", "type": "bytes4"}]
	}]`)

	// Validator6492ABI is the ERC-6492 universal signature validator
	// interface. isValidSig is a pure eth_call: for a counterfactual signer
	// it deploys the factory inside the call's own ephemeral state, checks
	// the signature against the resulting code, then reverts the deployment
	// so nothing is ever committed on-chain. isValidSigWithSideEffects is the
	// same check but allowed to persist a deployment it performs.
	Validator6492ABI = []byte(`[
		{
			"name": "isValidSig",
			"type": "function",
			"stateMutability": "nonpayable",
			"inputs": [
				{"name": "signer", "type": "address"},
				{"name": "hash", "type": "bytes32"},
				{"name": "signature", "type": "bytes"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "isValidSigWithSideEffects",
			"type": "function",
			"stateMutability": "nonpayable",
			"inputs": [
				{"name": "signer", "type": "address"},
				{"name": "hash", "type": "bytes32"},
				{"name": "signature", "type": "bytes"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`)
)

// UniversalSigValidatorAddress is the deterministic cross-chain deployment
// address of the ERC-6492 reference UniversalSigValidator contract (the
// Validator6492 interface above), deployed identically on every EVM chain
// that has run the canonical Nick's-method deployer transaction for it.
// Facilitators that run on a chain where it has not been deployed must
// override this via ExactEvmScheme's options.
const UniversalSigValidatorAddress = "0x164af34fAF9879394370C7f09064127C043A35E"

// eip1271MagicValue is the return value isValidSignature must produce to
// confirm a signature, per EIP-1271.
const eip1271MagicValue = "0x1626ba7e"

// erc6492MagicSuffix marks a signature as ERC-6492 wrapped; it is appended
// after the factory, factory calldata, and inner signature ABI-encoding.
var erc6492MagicSuffix = [32]byte{
	0x64, 0x92, 0x64, 0x92, 0x64, 0x92, 0x64, 0x92,
	0x64, 0x92, 0x64, 0x92, 0x64, 0x92, 0x64, 0x92,
	0x64, 0x92, 0x64, 0x92, 0x64, 0x92, 0x64, 0x92,
	0x64, 0x92, 0x64, 0x92, 0x64, 0x92, 0x64, 0x92,
}

const (
	ErrSmartWalletDeploymentFailed = "smart_wallet_deployment_failed"
	ErrUndeployedSmartWallet       = "undeployed_smart_wallet"
)
