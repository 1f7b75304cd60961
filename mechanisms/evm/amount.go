package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseAmount converts a decimal amount string (e.g. "1.50") to the asset's
// smallest unit using decimals, returned as a big.Int (e.g. 1500000 for
// USDC's 6 decimals).
func ParseAmount(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	neg := strings.HasPrefix(amount, "-")
	if neg {
		amount = amount[1:]
	}

	whole, frac, hasFrac := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %q has more precision than %d decimals", amount, decimals)
	}
	if hasFrac {
		frac = frac + strings.Repeat("0", decimals-len(frac))
	} else {
		frac = strings.Repeat("0", decimals)
	}

	digits := whole + frac
	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", amount)
	}
	if neg {
		value.Neg(value)
	}
	return value, nil
}

// FormatAmount renders a smallest-unit integer amount as a decimal string
// with the asset's number of decimals (e.g. 1500000 with 6 decimals -> "1.5").
func FormatAmount(amount *big.Int, decimals int) string {
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	digits := abs.String()

	if decimals == 0 {
		if neg {
			return "-" + digits
		}
		return digits
	}

	for len(digits) <= decimals {
		digits = "0" + digits
	}

	whole := digits[:len(digits)-decimals]
	frac := strings.TrimRight(digits[len(digits)-decimals:], "0")

	result := whole
	if frac != "" {
		result += "." + frac
	}
	if neg {
		result = "-" + result
	}
	return result
}

// IsValidAddress reports whether s is a well-formed 20-byte hex address.
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// BytesToHex renders b as a "0x"-prefixed lowercase hex string.
func BytesToHex(b []byte) string {
	return hexutil.Encode(b)
}

// HexToBytes decodes a "0x"-prefixed (or bare) hex string into bytes.
func HexToBytes(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string: %w", err)
	}
	return b, nil
}
