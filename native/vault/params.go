package vault

import (
	"fmt"
	"math/big"
	"strings"
)

// ParamKind enumerates the seven governable fields of GlobalTerms. Updates
// dispatch over the kind exhaustively; an unrecognised kind is an error, never
// a silent no-op.
type ParamKind uint8

const (
	ParamLiquidationIncentive ParamKind = iota + 1
	ParamLiquidationThreshold
	ParamMaxLTV
	ParamCloseFactor
	ParamInterestRate
	ParamOriginationFee
	ParamDebtCeiling
)

func (k ParamKind) String() string {
	switch k {
	case ParamLiquidationIncentive:
		return "liquidationIncentive"
	case ParamLiquidationThreshold:
		return "liquidationThreshold"
	case ParamMaxLTV:
		return "maxLTV"
	case ParamCloseFactor:
		return "closeFactor"
	case ParamInterestRate:
		return "interestRate"
	case ParamOriginationFee:
		return "originationFee"
	case ParamDebtCeiling:
		return "debtCeiling"
	default:
		return "unknown"
	}
}

// ParseParamKind resolves the wire name of a parameter kind.
func ParseParamKind(name string) (ParamKind, error) {
	switch strings.TrimSpace(name) {
	case "liquidationIncentive":
		return ParamLiquidationIncentive, nil
	case "liquidationThreshold":
		return ParamLiquidationThreshold, nil
	case "maxLTV":
		return ParamMaxLTV, nil
	case "closeFactor":
		return ParamCloseFactor, nil
	case "interestRate":
		return ParamInterestRate, nil
	case "originationFee":
		return ParamOriginationFee, nil
	case "debtCeiling":
		return ParamDebtCeiling, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
}

func asBps(value *big.Int) (uint64, error) {
	if value == nil || value.Sign() < 0 || !value.IsUint64() {
		return 0, fmt.Errorf("%w: basis point value out of range", ErrArithmetic)
	}
	return value.Uint64(), nil
}

// applyParam overwrites a single field of the terms. No cross-field coherence
// is enforced; the operator owns parameter sanity.
func applyParam(terms *GlobalTerms, kind ParamKind, value *big.Int) error {
	if value == nil || value.Sign() < 0 {
		return fmt.Errorf("%w: parameter value must be non-negative", ErrArithmetic)
	}
	switch kind {
	case ParamLiquidationIncentive:
		bps, err := asBps(value)
		if err != nil {
			return err
		}
		terms.LiquidationIncentive = bps
	case ParamLiquidationThreshold:
		bps, err := asBps(value)
		if err != nil {
			return err
		}
		terms.LiquidationThreshold = bps
	case ParamMaxLTV:
		bps, err := asBps(value)
		if err != nil {
			return err
		}
		terms.MaxLTV = bps
	case ParamCloseFactor:
		bps, err := asBps(value)
		if err != nil {
			return err
		}
		terms.CloseFactor = bps
	case ParamInterestRate:
		terms.InterestRatePerUnit = new(big.Int).Set(value)
	case ParamOriginationFee:
		bps, err := asBps(value)
		if err != nil {
			return err
		}
		terms.OriginationFee = bps
	case ParamDebtCeiling:
		terms.DebtCeiling = new(big.Int).Set(value)
	default:
		return fmt.Errorf("%w: kind %d", ErrUnknownParameter, kind)
	}
	return nil
}
