// internal/ledger/units.go
package ledger

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const etherDecimals = 18

// plain decimal notation only; no exponent
var etherAmountExp = regexp.MustCompile(`^\+?(\d+\.?\d*|\.\d+)$`)

// ParseEther converts a decimal ether amount such as "0.1" to wei.
func ParseEther(amount string) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative amount %q", amount)
	}
	if !etherAmountExp.MatchString(s) {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}

	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	wei := d.Shift(etherDecimals)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, etherDecimals)
	}
	return wei.BigInt(), nil
}

// FormatEther renders wei as a decimal ether string without trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}
