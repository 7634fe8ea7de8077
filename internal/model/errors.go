package model

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

const (
	MarketCodespace   = "marketplace"
	SplitterCodespace = "splitter"
	LedgerCodespace   = "ledger"
)

// Authorization
var (
	ErrNotAuthorized = errorsmod.Register(MarketCodespace, 2, "NOT_AUTHORIZED")
	ErrUnauthorized  = errorsmod.Register(MarketCodespace, 3, "UNAUTHORIZED")
	ErrAccessDenied  = errorsmod.Register(MarketCodespace, 4, "AccessDenied")
	ErrWrongFrom     = errorsmod.Register(MarketCodespace, 5, "WRONG_FROM")
	ErrInvalidBidder = errorsmod.Register(MarketCodespace, 6, "InvalidBidder")
)

// State
var (
	ErrPaused        = errorsmod.Register(MarketCodespace, 10, "PAUSED")
	ErrUnpaused      = errorsmod.Register(MarketCodespace, 11, "UNPAUSED")
	ErrSoldToken     = errorsmod.Register(MarketCodespace, 12, "SoldToken")
	ErrCanceledOrder = errorsmod.Register(MarketCodespace, 13, "CanceledOrder")
	ErrTimeout       = errorsmod.Register(MarketCodespace, 14, "Timeout")
	ErrBidExists     = errorsmod.Register(MarketCodespace, 15, "BidExists")
	ErrNotBuyable    = errorsmod.Register(MarketCodespace, 16, "NotBuyable")
	ErrEAOnly        = errorsmod.Register(MarketCodespace, 17, "EAOnly")
	ErrUnknownOrder  = errorsmod.Register(MarketCodespace, 18, "UnknownOrder")
	ErrNoBids        = errorsmod.Register(MarketCodespace, 19, "NoBids")
)

// Validation
var (
	ErrWrongPrice      = errorsmod.Register(MarketCodespace, 30, "WrongPrice")
	ErrNeedMoreTime    = errorsmod.Register(MarketCodespace, 31, "NeedMoreTime")
	ErrExceedsMaxEP    = errorsmod.Register(MarketCodespace, 32, "ExceedsMaxEP")
	ErrZeroAddress     = errorsmod.Register(MarketCodespace, 33, "ZeroAddress")
	ErrFeeCap          = errorsmod.Register(MarketCodespace, 34, "FeeCap")
	ErrInvalidSettings = errorsmod.Register(MarketCodespace, 35, "InvalidSettings")
)

// Funds
var (
	ErrNoFunds = errorsmod.Register(MarketCodespace, 50, "NO_FUNDS")
)

// Splitter
var (
	ErrNoShares       = errorsmod.Register(SplitterCodespace, 2, "NO_SHARES")
	ErrDeniedAccount  = errorsmod.Register(SplitterCodespace, 3, "DENIED_ACCOUNT")
	ErrNoPayees       = errorsmod.Register(SplitterCodespace, 4, "NO_PAYEES")
	ErrLengthMismatch = errorsmod.Register(SplitterCodespace, 5, "LENGTH_MISMATCH")
	ErrDeadAddress    = errorsmod.Register(SplitterCodespace, 6, "DEAD_ADDRESS")
	ErrInvalidShare   = errorsmod.Register(SplitterCodespace, 7, "INVALID_SHARE")
	ErrAlreadyPayee   = errorsmod.Register(SplitterCodespace, 8, "ALREADY_PAYEE")
)

// Ledger
var (
	ErrInsufficientBalance = errorsmod.Register(LedgerCodespace, 2, "InsufficientBalance")
	ErrTransferFailed      = errorsmod.Register(LedgerCodespace, 3, "TransferFailed")
)

// ErrorClass groups registered errors by how a caller should react.
type ErrorClass string

const (
	ClassNone          ErrorClass = ""
	ClassAuthorization ErrorClass = "authorization"
	ClassState         ErrorClass = "state"
	ClassValidation    ErrorClass = "validation"
	ClassFunds         ErrorClass = "funds"
)

var classes = []struct {
	class ErrorClass
	errs  []error
}{
	{ClassAuthorization, []error{ErrNotAuthorized, ErrUnauthorized, ErrAccessDenied, ErrWrongFrom, ErrInvalidBidder}},
	{ClassState, []error{ErrPaused, ErrUnpaused, ErrSoldToken, ErrCanceledOrder, ErrTimeout, ErrBidExists, ErrNotBuyable, ErrEAOnly, ErrUnknownOrder, ErrNoBids}},
	{ClassValidation, []error{ErrWrongPrice, ErrNeedMoreTime, ErrExceedsMaxEP, ErrZeroAddress, ErrFeeCap, ErrInvalidSettings,
		ErrNoPayees, ErrLengthMismatch, ErrDeadAddress, ErrInvalidShare, ErrAlreadyPayee}},
	{ClassFunds, []error{ErrNoFunds, ErrNoShares, ErrDeniedAccount, ErrInsufficientBalance, ErrTransferFailed}},
}

// ClassOf reports the taxonomy class of err, or ClassNone for errors that are
// not registered marketplace errors.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	for _, c := range classes {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.class
			}
		}
	}
	return ClassNone
}
