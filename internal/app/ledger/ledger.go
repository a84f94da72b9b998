// Package ledger abstracts the chains value is burned from and minted onto.
// The settlement engine never assumes these calls are idempotent; it records
// transaction hashes before advancing so no stage runs twice.
package ledger

import "context"

// Ledger performs burn and mint operations against named chains. Both calls
// block for the duration of the chain round-trip and return the transaction
// hash on success.
type Ledger interface {
	Burn(ctx context.Context, chain, userID string, amount float64) (string, error)
	Mint(ctx context.Context, chain, userID string, amount float64) (string, error)
}
