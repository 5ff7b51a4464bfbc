package vault

import "errors"

var (
	// ErrArithmetic wraps every overflow, underflow and divide-by-zero raised
	// by the scaled math helpers. Operations never retry after it.
	ErrArithmetic = errors.New("vault engine: arithmetic error")

	ErrNilState               = errors.New("vault engine: state not configured")
	ErrTermsNotSet            = errors.New("vault engine: global terms not initialised")
	ErrInvalidAmount          = errors.New("vault engine: amount must be positive")
	ErrInsufficientCollateral = errors.New("vault engine: withdrawal exceeds collateral headroom")
	ErrDebtCeilingExceeded    = errors.New("vault engine: global debt ceiling exceeded")
	ErrExceedsLTV             = errors.New("vault engine: borrow exceeds max loan-to-value")
	ErrRepaymentTooLarge      = errors.New("vault engine: repayment exceeds liquidatable debt")
	ErrLiquidationNotAllowed  = errors.New("vault engine: position not eligible for liquidation")
	ErrZeroAddress            = errors.New("vault engine: zero address")
	ErrAlreadyInitialized     = errors.New("vault engine: debt token already initialised")
	ErrDebtTokenNotSet        = errors.New("vault engine: debt token not configured")
	ErrUnknownParameter       = errors.New("vault engine: unknown parameter kind")
	ErrUnknownAssetKind       = errors.New("vault engine: unknown asset kind")
)
