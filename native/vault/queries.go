package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PositionSummary is the read model for a position with interest projected to
// the current time mark. Nothing is persisted when building it.
type PositionSummary struct {
	Address                common.Address `json:"address"`
	Collateral             *big.Int       `json:"collateral"`
	Balance                *big.Int       `json:"balance"`
	Borrowed               *big.Int       `json:"borrowed"`
	LastAccrualMark        uint64         `json:"lastAccrualMark"`
	MaxBorrow              *big.Int       `json:"maxBorrow"`
	MaxLoan                *big.Int       `json:"maxLoan"`
	Withdrawable           *big.Int       `json:"withdrawable"`
	Liquidatable           bool           `json:"liquidatable"`
	DebtCanLiquidate       *big.Int       `json:"debtCanLiquidate"`
	CollateralCanLiquidate *big.Int       `json:"collateralCanLiquidate"`
}

// PositionOf returns the settled projection of an account's position together
// with its current risk figures.
func (e *Engine) PositionOf(addr common.Address) (*PositionSummary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	terms, err := e.loadTerms()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	if err := e.settle(pos, terms); err != nil {
		return nil, err
	}

	summary := &PositionSummary{
		Address:         addr,
		Collateral:      new(big.Int).Set(pos.Collateral),
		Borrowed:        new(big.Int).Set(pos.Borrowed),
		LastAccrualMark: pos.LastAccrualMark,
	}
	if summary.Balance, err = e.stakedBalance(pos); err != nil {
		return nil, err
	}
	if summary.MaxBorrow, err = e.maxBorrow(summary.Balance, terms); err != nil {
		return nil, err
	}
	if summary.MaxLoan, err = e.maxLoan(summary.Balance, terms); err != nil {
		return nil, err
	}
	if summary.Withdrawable, err = e.withdrawable(pos, terms); err != nil {
		return nil, err
	}
	if summary.Liquidatable, err = e.liquidatable(pos, terms); err != nil {
		return nil, err
	}
	if summary.DebtCanLiquidate, err = e.debtCanLiquidate(pos, terms); err != nil {
		return nil, err
	}
	if summary.CollateralCanLiquidate, err = e.collateralCanLiquidate(pos, terms); err != nil {
		return nil, err
	}
	return summary, nil
}

// Terms returns a copy of the current global terms.
func (e *Engine) Terms() (*GlobalTerms, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loadTerms()
}
