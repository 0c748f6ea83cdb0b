package sequence

import (
	"errors"
	"fmt"
	"math"
)

// ErrSequenceNotFound is returned (wrapped) by a CounterStore when no counter
// row exists for the requested name.
var ErrSequenceNotFound = errors.New("sequence not found")

// ErrorCode categorizes allocator errors.
type ErrorCode string

const (
	// ErrCodeNotProvisioned means the counter row is missing. Configuration
	// error: provision the row, do not retry.
	ErrCodeNotProvisioned ErrorCode = "SEQUENCE_NOT_PROVISIONED"

	// ErrCodeInvalidBlock means the counter row holds a block size <= 0 or a
	// start that does not lie above every value this allocator handed out,
	// or a block whose end would overflow int64.
	ErrCodeInvalidBlock ErrorCode = "INVALID_BLOCK"

	// ErrCodeTxFailed means the refill transaction failed (read, advance or
	// commit) and was rolled back.
	ErrCodeTxFailed ErrorCode = "TX_FAILED"

	// ErrCodeLockTimeout means the caller's context ended while waiting for
	// the allocator lock.
	ErrCodeLockTimeout ErrorCode = "LOCK_TIMEOUT"
)

// Error is returned by Allocator.NextID.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Sequence is the counter name the allocator is bound to.
	Sequence string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (sequence=%s): %v", e.Code, e.Message, e.Sequence, e.Err)
	}
	return fmt.Sprintf("%s: %s (sequence=%s)", e.Code, e.Message, e.Sequence)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err means the sequence must be fixed
// in the counter store before it can be used.
func IsConfigurationError(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeNotProvisioned || se.Code == ErrCodeInvalidBlock
	}
	return false
}

// IsTransactionError reports whether err is a failed refill transaction.
func IsTransactionError(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeTxFailed
	}
	return false
}

// IsLockTimeout reports whether err came from giving up on the allocator lock.
func IsLockTimeout(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeLockTimeout
	}
	return false
}

func newRefillError(name string, err error) *Error {
	switch {
	case errors.Is(err, ErrSequenceNotFound):
		return &Error{
			Code:     ErrCodeNotProvisioned,
			Sequence: name,
			Message:  "no counter row for sequence",
			Err:      err,
		}
	case errors.As(err, new(*invalidBlockError)):
		return &Error{
			Code:     ErrCodeInvalidBlock,
			Sequence: name,
			Message:  "counter row is not usable",
			Err:      err,
		}
	default:
		return &Error{
			Code:     ErrCodeTxFailed,
			Sequence: name,
			Message:  "refill transaction failed",
			Err:      err,
		}
	}
}

// invalidBlockError aborts the refill transaction when the stored row
// cannot be used.
type invalidBlockError struct {
	block Block
	floor int64
}

func (e *invalidBlockError) Error() string {
	if e.block.Size <= 0 {
		return fmt.Sprintf("block size must be positive, got %d", e.block.Size)
	}
	if e.block.Start > math.MaxInt64-e.block.Size {
		return fmt.Sprintf("block at %d of size %d overflows int64", e.block.Start, e.block.Size)
	}
	return fmt.Sprintf("block start %d is not above last issued id %d", e.block.Start, e.floor)
}
