package events

import (
	"math/big"
	"strings"

	"cookledger/crypto"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(raw [20]byte) string {
	if raw == ([20]byte{}) {
		return ""
	}
	return crypto.AddressFromRaw(raw).String()
}
