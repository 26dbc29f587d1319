// Package errors defines the failure taxonomy shared by the vault, withdrawal
// and collateral engines. Every failure carries a Kind so hosts can map it to a
// transport status without string matching.
package errors

import stderrors "errors"

// Kind classifies a protocol failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindArithmetic
	KindState
	KindAuthorization
	KindCollateral
	KindWithdrawal
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindArithmetic:
		return "arithmetic"
	case KindState:
		return "state"
	case KindAuthorization:
		return "authorization"
	case KindCollateral:
		return "collateral"
	case KindWithdrawal:
		return "withdrawal"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified protocol failure. Values are compared by identity so
// errors.Is works against the exported sentinels below.
type Error struct {
	kind Kind
	msg  string
}

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the failure class.
func (e *Error) Kind() Kind { return e.kind }

var (
	ErrOperatorFeeTooHigh   = newError(KindValidation, "vault: operator fee exceeds maximum")
	ErrVaultNameTooLong     = newError(KindValidation, "vault: name exceeds maximum length")
	ErrDepositTooSmall      = newError(KindValidation, "vault: deposit below minimum stake")
	ErrInvalidAmount        = newError(KindValidation, "vault: amount must be positive")
	ErrVaultCapacityReached = newError(KindValidation, "vault: capacity reached")
	ErrInsufficientFunds    = newError(KindValidation, "ledger: insufficient funds")

	ErrArithmeticOverflow  = newError(KindArithmetic, "math: overflow")
	ErrArithmeticUnderflow = newError(KindArithmetic, "math: underflow")
	ErrDivisionByZero      = newError(KindArithmetic, "math: division by zero")

	ErrProtocolPaused           = newError(KindState, "protocol: paused")
	ErrVaultNotAccepting        = newError(KindState, "vault: not accepting deposits")
	ErrBalanceDecreased         = newError(KindState, "vault: reported balance below total staked")
	ErrInsufficientVaultBalance = newError(KindState, "vault: insufficient buffered liquidity")
	ErrRegistryExists           = newError(KindState, "protocol: registry already initialised")

	ErrUnauthorized = newError(KindAuthorization, "protocol: unauthorized")

	ErrInsufficientCollateral = newError(KindCollateral, "cdp: collateral ratio below minimum")
	ErrPositionHealthy        = newError(KindCollateral, "cdp: position is healthy")
	ErrRepayExceedsDebt       = newError(KindCollateral, "cdp: repay amount exceeds debt")

	ErrWithdrawalNotReady   = newError(KindWithdrawal, "withdrawal: not ready")
	ErrTicketAlreadyClaimed = newError(KindWithdrawal, "withdrawal: ticket already claimed")

	ErrRegistryMissing   = newError(KindNotFound, "protocol: registry not initialised")
	ErrControllerMissing = newError(KindNotFound, "cdp: controller not initialised")
	ErrVaultNotFound     = newError(KindNotFound, "vault: not found")
	ErrPositionNotFound  = newError(KindNotFound, "cdp: position not found")
	ErrTicketNotFound    = newError(KindNotFound, "withdrawal: ticket not found")
)

// KindOf reports the classification of err, unwrapping as needed.
func KindOf(err error) Kind {
	var classified *Error
	if stderrors.As(err, &classified) {
		return classified.kind
	}
	return KindUnknown
}
