package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrWriteFailed indicates a write transaction did not commit: connectivity
	// loss, constraint violation or any other store-level failure. The store has
	// rolled the transaction back. Not retried automatically.
	ErrWriteFailed = errors.New("write failed")

	// ErrChainBroken indicates the expected previous tail message does not exist.
	// Fatal to the current turn; the caller should offer a conversation reset.
	ErrChainBroken = errors.New("chain broken: previous message not found")

	// ErrChainForked indicates the previous tail already has a successor, so
	// appending would branch the chain. Raised when a stale tail id is used.
	ErrChainForked = errors.New("chain forked: previous message already has a successor")

	// ErrChainCorrupt indicates a stored chain is not a simple path: a branch,
	// a cycle, or more than one head. Reported by QueryChain.
	ErrChainCorrupt = errors.New("chain corrupt")

	// ErrNotAssistantMessage indicates a rating targeted a user message.
	ErrNotAssistantMessage = errors.New("not an assistant message")

	// ErrRecordExists indicates a record with the same id already exists.
	ErrRecordExists = errors.New("record already exists")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// This occurs when concurrent writes touch the same records.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// THROW markers raised by the write operations in this package.
const (
	throwChainBroken  = "chain_broken"
	throwChainForked  = "chain_forked"
	throwNotAssistant = "not_assistant_message"
	throwNotFound     = "message_not_found"
)

// wrapQueryError inspects a SurrealDB error and wraps it with the matching
// sentinel error. Returns the original error if nothing matches.
//
// A failed transaction reports an error for every statement, and the one
// carrying the THROW text is not necessarily first, so the whole error text
// is searched rather than only the first QueryError.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) && !strings.Contains(msg, queryErr.Message) {
		msg += " " + queryErr.Message
	}

	switch {
	case strings.Contains(msg, throwChainBroken):
		return fmt.Errorf("%w: %w", ErrChainBroken, err)
	case strings.Contains(msg, throwChainForked):
		return fmt.Errorf("%w: %w", ErrChainForked, err)
	case strings.Contains(msg, throwNotAssistant):
		return fmt.Errorf("%w: %w", ErrNotAssistantMessage, err)
	case strings.Contains(msg, throwNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case strings.Contains(msg, "already exists"), strings.Contains(msg, "already contains"):
		return fmt.Errorf("%w: %w", ErrRecordExists, err)
	case strings.Contains(msg, "Transaction conflict"):
		return fmt.Errorf("%w: %w", ErrTransactionConflict, err)
	}
	return err
}

// classifyWriteError turns a failed write into the error callers see.
// Chain and target errors describe the caller's input and are returned as-is;
// everything else, including constraint violations, is a WriteFailed.
func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}
	wrapped := wrapQueryError(err)
	switch {
	case errors.Is(wrapped, ErrChainBroken),
		errors.Is(wrapped, ErrChainForked),
		errors.Is(wrapped, ErrNotAssistantMessage),
		errors.Is(wrapped, ErrNotFound):
		return wrapped
	}
	return fmt.Errorf("%w: %w", ErrWriteFailed, wrapped)
}
