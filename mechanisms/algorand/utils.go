package algorand

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/shopspring/decimal"
)

// FormatAmount renders base units as a fixed-point decimal string.
func FormatAmount(amount uint64, decimals int32) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals)
	return d.StringFixed(decimals)
}

// ParseAmount converts a decimal string such as "1.50" into base units.
func ParseAmount(amount string, decimals int32) (uint64, error) {
	cleaned := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(amount), "$"))

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %w", err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount cannot be negative: %s", amount)
	}

	units := d.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	bi := units.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount %s is out of range", amount)
	}
	return bi.Uint64(), nil
}

// IsValidAddress reports whether address is a checksummed account address.
func IsValidAddress(address string) bool {
	_, err := types.DecodeAddress(address)
	return err == nil
}
