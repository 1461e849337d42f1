package service

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateWalletAddress accepts exactly "0x" followed by 40 hex digits
func ValidateWalletAddress(address string) error {
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return &ValidationError{Input: address}
	}
	return nil
}

// NormalizeWalletAddress is the form addresses are compared in
func NormalizeWalletAddress(address string) string {
	return strings.ToLower(address)
}
