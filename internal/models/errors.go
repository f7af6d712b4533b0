package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of trade failure categories.
type ErrorKind string

const (
	KindInvalidReserves   ErrorKind = "invalid_reserves"
	KindInvalidAmount     ErrorKind = "invalid_amount"
	KindAmountTooSmall    ErrorKind = "amount_too_small"
	KindAmountTooLarge    ErrorKind = "amount_too_large"
	KindInvalidTolerance  ErrorKind = "invalid_tolerance"
	KindMissingCredential ErrorKind = "missing_credential"
	KindAlreadyInProgress ErrorKind = "already_in_progress"
	KindSlippageExhausted ErrorKind = "slippage_exhausted"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindNoTrustline       ErrorKind = "no_trustline"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindExpired           ErrorKind = "expired"
	KindNetworkTimeout    ErrorKind = "network_timeout"
	KindUnknown           ErrorKind = "unknown"
)

// AllErrorKinds lists every kind, in declaration order.
var AllErrorKinds = []ErrorKind{
	KindInvalidReserves,
	KindInvalidAmount,
	KindAmountTooSmall,
	KindAmountTooLarge,
	KindInvalidTolerance,
	KindMissingCredential,
	KindAlreadyInProgress,
	KindSlippageExhausted,
	KindInsufficientFunds,
	KindNoTrustline,
	KindUnauthorized,
	KindExpired,
	KindNetworkTimeout,
	KindUnknown,
}

func (k ErrorKind) Valid() bool {
	for _, known := range AllErrorKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Retryable reports whether an automatic resubmission may help.
func (k ErrorKind) Retryable() bool { return k == KindSlippageExhausted }

// UserMessage is the text shown to the person trading.
func (k ErrorKind) UserMessage() string {
	switch k {
	case KindInvalidReserves:
		return "Pool data is unavailable or out of date. Please try again shortly."
	case KindInvalidAmount:
		return "Enter an amount greater than zero."
	case KindAmountTooSmall:
		return "The amount is below the smallest tradable unit."
	case KindAmountTooLarge:
		return "The amount is larger than the ledger allows."
	case KindInvalidTolerance:
		return "Slippage tolerance must be between 0.01% and 50%."
	case KindMissingCredential:
		return "No wallet is connected. Connect a wallet to trade."
	case KindAlreadyInProgress:
		return "This trade is already being processed."
	case KindSlippageExhausted:
		return "The price moved beyond your slippage tolerance."
	case KindInsufficientFunds:
		return "Insufficient balance to cover the trade and fees."
	case KindNoTrustline:
		return "Your account has no trust line for this currency."
	case KindUnauthorized:
		return "The issuer has not authorized your account for this currency."
	case KindExpired:
		return "The transaction expired or was malformed. Please try again."
	case KindNetworkTimeout:
		return "The network did not respond in time. Check your activity before retrying."
	default:
		return "The trade failed for an unknown reason."
	}
}

// Error is a classified trade failure. Code carries the ledger result code
// when the failure was reported by the ledger.
type Error struct {
	Kind ErrorKind
	Code string
	Err  error
}

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WrapError classifies err under kind.
func WrapError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// LedgerError builds an error for a ledger result code.
func LedgerError(kind ErrorKind, code string) *Error {
	return &Error{Kind: kind, Code: code, Err: fmt.Errorf("ledger returned %s", code)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Retryable() bool { return e.Kind.Retryable() }

func (e *Error) UserMessage() string { return e.Kind.UserMessage() }

// KindOf extracts the classification of err. Unclassified errors are
// KindUnknown; nil has no kind.
func KindOf(err error) (ErrorKind, bool) {
	if err == nil {
		return "", false
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return KindUnknown, true
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
