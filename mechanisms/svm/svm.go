package svm

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// EncodeTransaction serializes tx and base64-encodes it for transport inside
// an ExactSvmPayload.
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to marshal transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeTransaction parses a base64-encoded transaction produced by EncodeTransaction.
func DecodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 transaction: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize transaction: %w", err)
	}
	return tx, nil
}

// GetTokenPayerFromTransaction extracts the token account owner (the
// "authority" account) from the TransferChecked instruction expected at
// index 2 of an exact-scheme transaction, returning its base58 address.
func GetTokenPayerFromTransaction(tx *solana.Transaction) (string, error) {
	if len(tx.Message.Instructions) < 3 {
		return "", fmt.Errorf("transaction does not contain a transfer instruction")
	}

	inst := tx.Message.Instructions[2]
	progID := tx.Message.AccountKeys[inst.ProgramIDIndex]
	if progID != solana.TokenProgramID && progID != solana.Token2022ProgramID {
		return "", fmt.Errorf("instruction at index 2 is not a token program instruction")
	}

	accounts, err := inst.ResolveInstructionAccounts(&tx.Message)
	if err != nil {
		return "", fmt.Errorf("failed to resolve instruction accounts: %w", err)
	}

	decoded, err := token.DecodeInstruction(accounts, inst.Data)
	if err != nil {
		return "", fmt.Errorf("failed to decode transfer instruction: %w", err)
	}

	if _, ok := decoded.Impl.(*token.TransferChecked); !ok {
		return "", fmt.Errorf("instruction at index 2 is not TransferChecked")
	}

	// TransferChecked accounts are [source, mint, destination, authority, ...].
	if len(accounts) < 4 {
		return "", fmt.Errorf("transfer instruction missing authority account")
	}
	return accounts[3].PublicKey.String(), nil
}

// ParseAmount converts a decimal amount string (e.g. "1.50") to the asset's
// smallest unit using decimals (e.g. 1500000 for USDC's 6 decimals).
func ParseAmount(amount string, decimals int) (uint64, error) {
	amount = strings.TrimSpace(amount)

	whole, frac, hasFrac := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return 0, fmt.Errorf("amount %q has more precision than %d decimals", amount, decimals)
	}
	if hasFrac {
		frac = frac + strings.Repeat("0", decimals-len(frac))
	} else {
		frac = strings.Repeat("0", decimals)
	}

	value, err := strconv.ParseUint(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %q: %w", amount, err)
	}
	return value, nil
}

// FormatAmount converts an asset's smallest-unit integer amount back into a
// decimal string (e.g. 1500000 with 6 decimals becomes "1.5"), trimming
// trailing fractional zeros and the decimal point itself when the amount is
// whole.
func FormatAmount(amount uint64, decimals int) string {
	if decimals <= 0 {
		return strconv.FormatUint(amount, 10)
	}

	s := strconv.FormatUint(amount, 10)
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}

	whole := s[:len(s)-decimals]
	frac := strings.TrimRight(s[len(s)-decimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// ValidateSolanaAddress reports whether addr decodes as a base58-encoded
// 32-byte Solana public key.
func ValidateSolanaAddress(addr string) bool {
	_, err := solana.PublicKeyFromBase58(addr)
	return err == nil
}
