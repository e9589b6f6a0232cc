package utils

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount held in the smallest unit as a decimal string,
// e.g. 33500000 with 6 decimals is "33.5".
func FormatAmount(amount uint64, decimals int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals).String()
}
