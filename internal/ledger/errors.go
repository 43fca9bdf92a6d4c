package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ReadError wraps a failed ledger read. Recoverable: the caller
// abandons the current cycle and waits for the next event.
type ReadError struct {
	Item common.Address
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("ledger read failed for %s: %v", e.Item.Hex(), e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError wraps a failed or reverted price-update transaction.
// The gateway never retries on its own; whether the same inputs are
// worth resubmitting is the caller's call.
type WriteError struct {
	Item common.Address
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ledger write failed for %s: %v", e.Item.Hex(), e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
