// Package settlement defines the cross-chain settlement record and its
// status machine.
package settlement

import "time"

// Status is the stage a settlement has reached. Statuses only move forward
// along the transition graph; the only regressions allowed are into FAILED
// or COMPENSATING after a chain operation misfires.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusProcessing   Status = "PROCESSING"
	StatusBurning      Status = "BURNING"
	StatusBurned       Status = "BURNED"
	StatusMinting      Status = "MINTING"
	StatusMinted       Status = "MINTED"
	StatusCompleted    Status = "COMPLETED"
	StatusFailed       Status = "FAILED"
	StatusCompensating Status = "COMPENSATING"
	StatusCompensated  Status = "COMPENSATED"
)

// transitions enumerates every legal status move. PROCESSING fans out to
// whichever stage is the first incomplete one, so a retry that resumes from
// a durable burn (or mint) marker can skip straight past completed stages.
var transitions = map[Status][]Status{
	StatusPending:      {StatusProcessing},
	StatusProcessing:   {StatusBurning, StatusMinting, StatusMinted, StatusFailed},
	StatusBurning:      {StatusBurned, StatusFailed},
	StatusBurned:       {StatusMinting, StatusCompensating, StatusFailed},
	StatusMinting:      {StatusMinted, StatusFailed},
	StatusMinted:       {StatusCompleted},
	StatusFailed:       {StatusProcessing, StatusCompensating},
	StatusCompensating: {StatusCompensated},
}

// CanTransition reports whether moving from one status to another is legal.
// Re-asserting the current status is always allowed; the engine uses it to
// refresh a record when resuming an interrupted attempt.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a settlement in this status will never change
// again. FAILED is recoverable (retry or compensation) and therefore not
// terminal.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompensated:
		return true
	}
	return false
}

// InFlight reports whether the status indicates a processing attempt that
// was underway. A settlement stuck in one of these states with an expired
// lock belonged to a crashed worker and is eligible for retry.
func (s Status) InFlight() bool {
	switch s {
	case StatusProcessing, StatusBurning, StatusBurned, StatusMinting, StatusMinted:
		return true
	}
	return false
}

// Settlement is one cross-chain value movement request and its lifecycle
// record. It is exclusively owned by the settlement engine: every mutation
// happens while the engine holds the settlement's distributed lock, and
// reads hand out copies.
type Settlement struct {
	ID                 string    `json:"id"`
	SourceChain        string    `json:"source_chain"`
	DestChain          string    `json:"dest_chain"`
	Amount             float64   `json:"amount"`
	UserID             string    `json:"user_id"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	BurnTxHash         string    `json:"burn_tx_hash,omitempty"`
	MintTxHash         string    `json:"mint_tx_hash,omitempty"`
	CompensationTxHash string    `json:"compensation_tx_hash,omitempty"`
}
