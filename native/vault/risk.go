package vault

import "math/big"

// The risk engine computes borrow limits, withdrawal headroom and liquidation
// sizing from a settled position. All helpers take the staked-unit collateral
// balance, which already reflects the external rebasing index.

// stakedBalance converts the stored share collateral into the staked unit the
// oracle prices.
func (e *Engine) stakedBalance(pos *Position) (*big.Int, error) {
	return e.converter.StakedForShares(bigOrZero(pos.Collateral))
}

// collateralValue multiplies a staked balance by the oracle price.
func (e *Engine) collateralValue(balance *big.Int) (*big.Int, error) {
	price, err := e.oracle.AssetPrice()
	if err != nil {
		return nil, err
	}
	return checkedMul(balance, price)
}

// maxBorrow is the LTV-gated borrow cap: balance * price * maxLTV / 1e4.
func (e *Engine) maxBorrow(balance *big.Int, terms *GlobalTerms) (*big.Int, error) {
	value, err := e.collateralValue(balance)
	if err != nil {
		return nil, err
	}
	return mulBps(value, terms.MaxLTV)
}

// maxLoan is the liquidation-threshold cap: balance * price * threshold /
// 1e4. It governs withdrawal headroom and the liquidation trigger; maxBorrow
// is the stricter gate used only for new borrowing.
func (e *Engine) maxLoan(balance *big.Int, terms *GlobalTerms) (*big.Int, error) {
	value, err := e.collateralValue(balance)
	if err != nil {
		return nil, err
	}
	return mulBps(value, terms.LiquidationThreshold)
}

// withdrawable returns the staked-unit balance not locked behind outstanding
// debt: balance - balance*borrowed/maxLoan. A position whose loan capacity is
// zero or already exceeded reports zero headroom rather than failing the
// division; the mutating withdraw path still refuses any amount against it.
func (e *Engine) withdrawable(pos *Position, terms *GlobalTerms) (*big.Int, error) {
	balance, err := e.stakedBalance(pos)
	if err != nil {
		return nil, err
	}
	borrowed := bigOrZero(pos.Borrowed)
	if borrowed.Sign() == 0 {
		return balance, nil
	}
	loanCap, err := e.maxLoan(balance, terms)
	if err != nil {
		return nil, err
	}
	if loanCap.Sign() == 0 {
		return big.NewInt(0), nil
	}
	locked, err := mulDiv(balance, borrowed, loanCap)
	if err != nil {
		return nil, err
	}
	if locked.Cmp(balance) >= 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).Sub(balance, locked), nil
}

// liquidatable reports whether debt exceeds the threshold-based loan cap.
func (e *Engine) liquidatable(pos *Position, terms *GlobalTerms) (bool, error) {
	borrowed := bigOrZero(pos.Borrowed)
	if borrowed.Sign() == 0 {
		return false, nil
	}
	balance, err := e.stakedBalance(pos)
	if err != nil {
		return false, err
	}
	loanCap, err := e.maxLoan(balance, terms)
	if err != nil {
		return false, err
	}
	return loanCap.Cmp(borrowed) < 0, nil
}

// debtCanLiquidate caps a single liquidation call at the close-factor
// fraction of the position's debt. Zero when the position is healthy.
func (e *Engine) debtCanLiquidate(pos *Position, terms *GlobalTerms) (*big.Int, error) {
	eligible, err := e.liquidatable(pos, terms)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return big.NewInt(0), nil
	}
	return mulBps(bigOrZero(pos.Borrowed), terms.CloseFactor)
}

// collateralCanLiquidate is the staked collateral seized, incentive premium
// included, for a close-factor-sized repayment. Zero when healthy.
func (e *Engine) collateralCanLiquidate(pos *Position, terms *GlobalTerms) (*big.Int, error) {
	eligible, err := e.liquidatable(pos, terms)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return big.NewInt(0), nil
	}
	balance, err := e.stakedBalance(pos)
	if err != nil {
		return nil, err
	}
	premium, err := mulBps(balance, terms.LiquidationThreshold+terms.LiquidationIncentive)
	if err != nil {
		return nil, err
	}
	return mulBps(premium, terms.CloseFactor)
}

// seizeForRepay sizes a partial liquidation: collateral seized is
// proportional to the fraction of the total debt being repaid, premium
// included: balance * (threshold+incentive)/1e4 * amount / borrowed.
func (e *Engine) seizeForRepay(balance, borrowed, amount *big.Int, terms *GlobalTerms) (*big.Int, error) {
	premium, err := mulBps(balance, terms.LiquidationThreshold+terms.LiquidationIncentive)
	if err != nil {
		return nil, err
	}
	return mulDiv(premium, amount, borrowed)
}
