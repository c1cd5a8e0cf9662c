package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Lookup and validation errors
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrTeamNotFound        = errors.New("team not found")
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrParticipantExists   = errors.New("user is already in session")
	ErrInvalidBidAmount    = errors.New("bid amount must be positive")
	ErrInvalidTeamOrder    = errors.New("team order must be a permutation of the tournament teams")
	ErrInvalidItemIndex    = errors.New("item index out of range")
	ErrInvalidPayoutRules  = errors.New("invalid payout rules")
	ErrInvalidResult       = errors.New("invalid tournament result")
	ErrInconsistentHighBid = errors.New("high bid and high bidder must be set together")
	ErrInconsistentTimer   = errors.New("timer deadline and duration must be set together")
	ErrSessionLive         = errors.New("cannot delete a session while it is active")
)

// AuthorizationError is returned when the caller lacks the role an operation needs.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

// StateViolationError is returned when an operation is illegal in the current phase.
type StateViolationError struct {
	Message string
}

func (e *StateViolationError) Error() string {
	return e.Message
}

// BidTooLowError covers both an ordinary low bid and a lost conditional write.
type BidTooLowError struct {
	Amount      decimal.Decimal
	CurrentHigh decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return "Bid must be higher than current high bid"
}

// PersistenceError wraps a store failure with the step that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

var (
	ErrNotCommissioner = &AuthorizationError{Message: "only the commissioner can perform this action"}
	ErrNotParticipant  = &AuthorizationError{Message: "you are not a participant in this session"}
)

// StateViolation builds a StateViolationError with a formatted message.
func StateViolation(format string, args ...interface{}) error {
	return &StateViolationError{Message: fmt.Sprintf(format, args...)}
}

// IsAuthorization reports whether err is an AuthorizationError.
func IsAuthorization(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

// IsStateViolation reports whether err is a StateViolationError.
func IsStateViolation(err error) bool {
	var target *StateViolationError
	return errors.As(err, &target)
}

// IsBidTooLow reports whether err is a BidTooLowError.
func IsBidTooLow(err error) bool {
	var target *BidTooLowError
	return errors.As(err, &target)
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
