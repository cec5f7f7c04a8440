/*
errors.go - Centralized error types for the points bank

PURPOSE:
  All error types in one place for consistency and discoverability.
  Component packages return these (or wrap them with %w) so callers and
  the HTTP layer can classify failures with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Not found    - member, badge, reward, transaction
  2. Business     - insufficient funds, quota exhausted, ticket reuse
  3. Validation   - invalid arguments, illegal state transitions
  4. Concurrency  - optimistic conflicts that survived retry

SEE ALSO:
  - retry.go: Bounded retry on ErrConcurrencyConflict
  - api/handlers.go: HTTP status mapping
*/
package bank

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is the root of every "does not exist" error.
	ErrNotFound = errors.New("not found")

	ErrMemberNotFound      = fmt.Errorf("member %w", ErrNotFound)
	ErrBadgeNotFound       = fmt.Errorf("badge %w", ErrNotFound)
	ErrRewardNotFound      = fmt.Errorf("reward %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrTaskNotFound        = fmt.Errorf("task %w", ErrNotFound)

	// ErrInsufficientFunds is returned when a debit exceeds the current balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrQuotaExhausted is returned when today's exchange quota is used up.
	ErrQuotaExhausted = errors.New("daily quota exhausted")

	// ErrTicketAlreadyUsed is returned when a badge ticket was already drawn.
	ErrTicketAlreadyUsed = errors.New("lottery ticket already used")

	// ErrTicketNotFound is returned when the badge does not exist or belongs
	// to another member.
	ErrTicketNotFound = errors.New("lottery ticket not found")

	// ErrInvalidArgument is returned for malformed input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidTransition is returned for an illegal workflow state change.
	ErrInvalidTransition = fmt.Errorf("%w: invalid state transition", ErrInvalidArgument)

	// ErrConcurrencyConflict is returned when optimistic concurrency control
	// detects a conflicting write.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrForbidden is returned when the actor lacks the admin role.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicateTransaction is returned when a transaction id already exists.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a balance shortage.
type InsufficientFundsError struct {
	MemberID MemberID
	Balance  int64
	Required int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: member %s has %d, needs %d",
		e.MemberID, e.Balance, e.Required)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// QuotaExhaustedError provides details about an exhausted daily quota.
type QuotaExhaustedError struct {
	MemberID MemberID
	Day      Day
	Cap      int
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("daily quota exhausted: member %s used %d of %d on %s",
		e.MemberID, e.Cap, e.Cap, e.Day)
}

func (e *QuotaExhaustedError) Unwrap() error {
	return ErrQuotaExhausted
}

// ConflictError is returned when retries were exhausted.
type ConflictError struct {
	Attempts int
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return ErrConcurrencyConflict
}

// Invalidf builds an ErrInvalidArgument with a message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError returns true if the error is due to invalid client input or
// a business rule the caller can observe.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrQuotaExhausted) ||
		errors.Is(err, ErrTicketAlreadyUsed) ||
		errors.Is(err, ErrTicketNotFound) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
