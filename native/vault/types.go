package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetKind selects which collateral representation an operation moves: the
// rebasing staked token or its fixed-index share form. The collaborator set
// for a call is resolved once from the kind and threaded through the rest of
// the transition.
type AssetKind uint8

const (
	// AssetStaked is the rebasing collateral token; balances grow in place as
	// the external index moves.
	AssetStaked AssetKind = iota + 1
	// AssetShares is the fixed-index representation the ledger accounts in.
	AssetShares
)

func (k AssetKind) String() string {
	switch k {
	case AssetStaked:
		return "staked"
	case AssetShares:
		return "shares"
	default:
		return "unknown"
	}
}

// Position maintains the vault ledger entry for an individual account. Amount
// values are denominated in wei and expressed as big integers to match
// on-chain precision.
type Position struct {
	// Address is the unique account identifier.
	Address common.Address
	// Collateral records the pledged collateral in fixed-index share units.
	Collateral *big.Int
	// Borrowed stores the outstanding debt in debt-token units, inclusive of
	// origination fees and accrued interest.
	Borrowed *big.Int
	// LastAccrualMark records the time index at which interest was last
	// settled for this account.
	LastAccrualMark uint64
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{Address: p.Address, LastAccrualMark: p.LastAccrualMark}
	if p.Collateral != nil {
		clone.Collateral = new(big.Int).Set(p.Collateral)
	}
	if p.Borrowed != nil {
		clone.Borrowed = new(big.Int).Set(p.Borrowed)
	}
	return clone
}

// GlobalTerms captures the singleton accounting and risk state shared across
// every position. Ratios are expressed in basis points; the interest rate is
// scaled by 1e12 per unit time.
type GlobalTerms struct {
	// LiquidationIncentive is the premium paid to liquidators, in basis points.
	LiquidationIncentive uint64
	// LiquidationThreshold is the debt fraction of collateral value at which a
	// position becomes liquidatable, in basis points.
	LiquidationThreshold uint64
	// MaxLTV is the maximum borrow fraction of collateral value, in basis
	// points. It gates new borrowing and is stricter than the threshold.
	MaxLTV uint64
	// CloseFactor bounds the debt fraction liquidatable in one call, in basis
	// points.
	CloseFactor uint64
	// InterestRatePerUnit is the linear borrow rate per time unit, scaled by
	// 1e12.
	InterestRatePerUnit *big.Int
	// OriginationFee is charged on each borrow and retained as debt, in basis
	// points.
	OriginationFee uint64
	// DebtCeiling caps OutstandingDebt in debt-token units.
	DebtCeiling *big.Int
	// OutstandingDebt tracks the sum of all live borrowed balances, fees
	// included.
	OutstandingDebt *big.Int
	// AccruedFees holds interest and origination fees not yet swept to the
	// treasury.
	AccruedFees *big.Int
}

// Clone returns a deep copy of the global terms.
func (t *GlobalTerms) Clone() *GlobalTerms {
	if t == nil {
		return nil
	}
	clone := &GlobalTerms{
		LiquidationIncentive: t.LiquidationIncentive,
		LiquidationThreshold: t.LiquidationThreshold,
		MaxLTV:               t.MaxLTV,
		CloseFactor:          t.CloseFactor,
		OriginationFee:       t.OriginationFee,
	}
	if t.InterestRatePerUnit != nil {
		clone.InterestRatePerUnit = new(big.Int).Set(t.InterestRatePerUnit)
	}
	if t.DebtCeiling != nil {
		clone.DebtCeiling = new(big.Int).Set(t.DebtCeiling)
	}
	if t.OutstandingDebt != nil {
		clone.OutstandingDebt = new(big.Int).Set(t.OutstandingDebt)
	}
	if t.AccruedFees != nil {
		clone.AccruedFees = new(big.Int).Set(t.AccruedFees)
	}
	return clone
}

// EnsureDefaults populates nil big.Int fields so serialization handling is safe.
func (t *GlobalTerms) EnsureDefaults() {
	if t.InterestRatePerUnit == nil {
		t.InterestRatePerUnit = big.NewInt(0)
	}
	if t.DebtCeiling == nil {
		t.DebtCeiling = big.NewInt(0)
	}
	if t.OutstandingDebt == nil {
		t.OutstandingDebt = big.NewInt(0)
	}
	if t.AccruedFees == nil {
		t.AccruedFees = big.NewInt(0)
	}
}

// DebtToken is the external issuance authority for the pegged debt token. The
// vault is its only permitted caller.
type DebtToken interface {
	Mint(to common.Address, amount *big.Int) error
	Burn(from common.Address, amount *big.Int) error
}

// AssetTransfer moves one collateral representation between an account and
// the vault. Calls are synchronous and sit inside the operation's atomic
// boundary: a failure aborts the whole transition.
type AssetTransfer interface {
	TransferIn(from common.Address, amount *big.Int) error
	TransferOut(to common.Address, amount *big.Int) error
}

// Converter is the injected conversion oracle between share and staked units.
// The mapping is deterministic at any instant but moves with the external
// rebasing index, which is how collateral value tracks yield automatically.
type Converter interface {
	// StakedForShares converts a fixed share amount into the rebasing staked
	// unit the price oracle quotes.
	StakedForShares(shares *big.Int) (*big.Int, error)
	// SharesForStaked converts a staked amount into fixed share units.
	SharesForStaked(amount *big.Int) (*big.Int, error)
}

// PriceOracle supplies the collateral price in the staked unit. The decimal
// convention is fixed out-of-band and must not drift.
type PriceOracle interface {
	AssetPrice() (*big.Int, error)
}
