package evm

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var erc6492Arguments = abi.Arguments{
	{Type: mustABIType("address")},
	{Type: mustABIType("bytes")},
	{Type: mustABIType("bytes")},
}

func mustABIType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("evm: invalid ABI type %q: %v", t, err))
	}
	return typ
}

// ParseERC6492Signature unwraps an ERC-6492 signature into its factory
// address, factory deployment calldata, and inner signature. A signature
// that does not end in the ERC-6492 magic suffix is treated as a plain
// (EOA or already-deployed contract) signature: Factory is left zeroed and
// InnerSignature is the input unchanged.
func ParseERC6492Signature(signature []byte) (*ERC6492SignatureData, error) {
	if len(signature) < 32 || !bytes.Equal(signature[len(signature)-32:], erc6492MagicSuffix[:]) {
		return &ERC6492SignatureData{InnerSignature: signature}, nil
	}

	body := signature[:len(signature)-32]

	unpacked, err := erc6492Arguments.Unpack(body)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack ERC-6492 signature: %w", err)
	}
	if len(unpacked) != 3 {
		return nil, fmt.Errorf("unexpected ERC-6492 signature shape")
	}

	factoryAddr, ok := unpacked[0].(interface{ Bytes() []byte })
	if !ok {
		return nil, fmt.Errorf("unexpected ERC-6492 factory type")
	}
	factoryCalldata, ok := unpacked[1].([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected ERC-6492 factoryCalldata type")
	}
	innerSignature, ok := unpacked[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected ERC-6492 innerSignature type")
	}

	var factory [20]byte
	copy(factory[:], factoryAddr.Bytes())

	return &ERC6492SignatureData{
		Factory:         factory,
		FactoryCalldata: factoryCalldata,
		InnerSignature:  innerSignature,
	}, nil
}
