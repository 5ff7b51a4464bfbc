package vault

import "fmt"

// settle applies the linear interest owed by a position since its last
// accrual mark and rolls the accrued amount into both the position debt and
// the global aggregates. Every public operation settles before reading or
// mutating the borrowed balance, so debt is always current at the point of
// risk evaluation. Settling twice at the same mark is a no-op.
func (e *Engine) settle(pos *Position, terms *GlobalTerms) error {
	mark := e.currentMark()
	if mark < pos.LastAccrualMark {
		return fmt.Errorf("%w: time mark regressed from %d to %d", ErrArithmetic, pos.LastAccrualMark, mark)
	}
	elapsed := mark - pos.LastAccrualMark
	pos.LastAccrualMark = mark
	if elapsed == 0 {
		return nil
	}
	borrowed := bigOrZero(pos.Borrowed)
	rate := bigOrZero(terms.InterestRatePerUnit)
	if borrowed.Sign() == 0 || rate.Sign() == 0 {
		return nil
	}

	// interest = borrowed * rate * elapsed / 1e12
	product, err := checkedMul(borrowed, rate)
	if err != nil {
		return err
	}
	interest, err := mulDiv(product, newUint(elapsed), rateScale)
	if err != nil {
		return err
	}
	if interest.Sign() == 0 {
		return nil
	}

	if pos.Borrowed, err = checkedAdd(borrowed, interest); err != nil {
		return err
	}
	if terms.AccruedFees, err = checkedAdd(terms.AccruedFees, interest); err != nil {
		return err
	}
	if terms.OutstandingDebt, err = checkedAdd(terms.OutstandingDebt, interest); err != nil {
		return err
	}
	return nil
}
