package models

import "strings"

// Balance holds an account's value ledger balance
type Balance struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
	Display string `json:"display"`
}

// Allowance holds the amount a spender may pull from an owner
type Allowance struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

// NormalizeAccount brings an account identifier to its canonical form.
// Identifiers compare case-insensitively, so "0xAbC" and "0xabc" are the same account.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

// NormalizeAccounts normalizes every identifier, keeping order and duplicates.
func NormalizeAccounts(accounts []string) []string {
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = NormalizeAccount(a)
	}
	return out
}
