package vault

import (
	"fmt"
	"math/big"
)

var (
	basisPoints = big.NewInt(10_000)
	// rateScale divides interest rate products; rates are stored per unit
	// time scaled by 1e12.
	rateScale = big.NewInt(1_000_000_000_000)
	// maxWord bounds every intermediate at 2^256-1, the arithmetic domain of
	// the chain the ledger mirrors.
	maxWord = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func newUint(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func bigOrZero(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	return x
}

func checkWord(x *big.Int) (*big.Int, error) {
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative result", ErrArithmetic)
	}
	if x.Cmp(maxWord) > 0 {
		return nil, fmt.Errorf("%w: overflow", ErrArithmetic)
	}
	return x, nil
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(bigOrZero(a), bigOrZero(b))
	return checkWord(sum)
}

// checkedSub fails when the result would be negative. Risk checks rely on
// this as an implicit invariant guard: a balance can never wrap below zero.
func checkedSub(a, b *big.Int) (*big.Int, error) {
	a, b = bigOrZero(a), bigOrZero(b)
	if a.Cmp(b) < 0 {
		return nil, fmt.Errorf("%w: subtraction underflow", ErrArithmetic)
	}
	return new(big.Int).Sub(a, b), nil
}

func checkedMul(a, b *big.Int) (*big.Int, error) {
	product := new(big.Int).Mul(bigOrZero(a), bigOrZero(b))
	return checkWord(product)
}

func checkedDiv(a, b *big.Int) (*big.Int, error) {
	b = bigOrZero(b)
	if b.Sign() == 0 {
		return nil, fmt.Errorf("%w: division by zero", ErrArithmetic)
	}
	return new(big.Int).Quo(bigOrZero(a), b), nil
}

// mulDiv computes a*b/den with the word bound applied to the product.
// Division rounds toward zero, the only truncation the ledger permits.
func mulDiv(a, b, den *big.Int) (*big.Int, error) {
	product, err := checkedMul(a, b)
	if err != nil {
		return nil, err
	}
	return checkedDiv(product, den)
}

// mulBps applies a basis-point ratio to an amount.
func mulBps(amount *big.Int, bps uint64) (*big.Int, error) {
	return mulDiv(amount, new(big.Int).SetUint64(bps), basisPoints)
}
