package vault

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "stakevault/native/common"
)

const moduleName = "vault"

// ledgerState is the persistence boundary for positions and the global terms.
// Implementations return nil (not an error) for records that do not exist
// yet; positions are created lazily on first use.
type ledgerState interface {
	GetPosition(addr common.Address) (*Position, error)
	PutPosition(pos *Position) error
	GetTerms() (*GlobalTerms, error)
	PutTerms(terms *GlobalTerms) error
}

// Engine orchestrates the vault's state transitions. Every mutating operation
// runs under the write lock as one indivisible transaction: validation,
// interest settlement, risk checks and collaborator calls all complete
// against cloned records before anything is written back, so a failing
// operation leaves the ledger untouched. Read-only queries share the read
// lock and observe a consistent snapshot.
type Engine struct {
	mu sync.RWMutex

	state     ledgerState
	oracle    PriceOracle
	converter Converter
	staked    AssetTransfer
	shares    AssetTransfer
	debtToken DebtToken
	treasury  common.Address

	pauses   nativecommon.PauseView
	timeMark uint64
	clock    func() uint64
}

// NewEngine constructs a vault engine wired to its external collaborators.
// The debt token is attached separately through InitDebtToken, matching the
// one-time post-deployment initialisation of the original system.
func NewEngine(treasury common.Address, oracle PriceOracle, converter Converter, staked, shares AssetTransfer) (*Engine, error) {
	if treasury == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if oracle == nil || converter == nil || staked == nil || shares == nil {
		return nil, ErrZeroAddress
	}
	return &Engine{
		treasury:  treasury,
		oracle:    oracle,
		converter: converter,
		staked:    staked,
		shares:    shares,
	}, nil
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state ledgerState) { e.state = state }

// SetPauses installs the module pause view guarding mutating operations.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetTimeMark records the time index used when computing accrual deltas.
// Marks must be non-decreasing; settlement fails on regression.
func (e *Engine) SetTimeMark(mark uint64) {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.timeMark = mark
	e.mu.Unlock()
}

// SetClock installs a monotonic time-mark source consulted on every
// operation, used by the daemon in place of explicit SetTimeMark calls.
func (e *Engine) SetClock(clock func() uint64) {
	if e == nil {
		return
	}
	e.clock = clock
}

func (e *Engine) currentMark() uint64 {
	if e.clock != nil {
		return e.clock()
	}
	return e.timeMark
}

// InitDebtToken attaches the debt-token issuance authority exactly once.
func (e *Engine) InitDebtToken(token DebtToken) error {
	if token == nil {
		return ErrZeroAddress
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.debtToken != nil {
		return ErrAlreadyInitialized
	}
	e.debtToken = token
	return nil
}

// Treasury returns the fee sweep recipient.
func (e *Engine) Treasury() common.Address { return e.treasury }

func (e *Engine) asset(kind AssetKind) (AssetTransfer, error) {
	switch kind {
	case AssetStaked:
		return e.staked, nil
	case AssetShares:
		return e.shares, nil
	default:
		return nil, ErrUnknownAssetKind
	}
}

func (e *Engine) loadTerms() (*GlobalTerms, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	terms, err := e.state.GetTerms()
	if err != nil {
		return nil, err
	}
	if terms == nil {
		return nil, ErrTermsNotSet
	}
	terms = terms.Clone()
	terms.EnsureDefaults()
	return terms, nil
}

func (e *Engine) loadPosition(addr common.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pos, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{Address: addr, LastAccrualMark: e.currentMark()}
	} else {
		pos = pos.Clone()
	}
	if pos.Collateral == nil {
		pos.Collateral = big.NewInt(0)
	}
	if pos.Borrowed == nil {
		pos.Borrowed = big.NewInt(0)
	}
	return pos, nil
}

func (e *Engine) commit(pos *Position, terms *GlobalTerms) error {
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	return e.state.PutTerms(terms)
}

// Deposit pulls collateral from the depositor in the requested asset form and
// credits the share-unit equivalent. Deposits carry no risk check.
func (e *Engine) Deposit(depositor common.Address, amount *big.Int, kind AssetKind) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.asset(kind)
	if err != nil {
		return nil, err
	}
	terms, err := e.loadTerms()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(depositor)
	if err != nil {
		return nil, err
	}
	if err := e.settle(pos, terms); err != nil {
		return nil, err
	}

	credited := new(big.Int).Set(amount)
	if kind == AssetStaked {
		if credited, err = e.converter.SharesForStaked(amount); err != nil {
			return nil, err
		}
	}
	newCollateral, err := checkedAdd(pos.Collateral, credited)
	if err != nil {
		return nil, err
	}

	if err := asset.TransferIn(depositor, amount); err != nil {
		return nil, err
	}

	pos.Collateral = newCollateral
	if err := e.commit(pos, terms); err != nil {
		return nil, err
	}
	return credited, nil
}

// Withdraw releases collateral up to the caller's headroom. The amount is
// denominated in staked units regardless of the payout form requested.
func (e *Engine) Withdraw(caller common.Address, amount *big.Int, kind AssetKind) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.asset(kind)
	if err != nil {
		return nil, err
	}
	terms, err := e.loadTerms()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	if err := e.settle(pos, terms); err != nil {
		return nil, err
	}

	headroom, err := e.withdrawable(pos, terms)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(headroom) > 0 {
		return nil, ErrInsufficientCollateral
	}

	debited, err := e.converter.SharesForStaked(amount)
	if err != nil {
		return nil, err
	}
	if debited.Cmp(pos.Collateral) > 0 {
		// Share rounding at full withdrawal may overshoot by a dust unit.
		debited = new(big.Int).Set(pos.Collateral)
	}
	remaining, err := checkedSub(pos.Collateral, debited)
	if err != nil {
		return nil, err
	}

	paid := new(big.Int).Set(amount)
	if kind == AssetShares {
		paid = new(big.Int).Set(debited)
	}
	if err := asset.TransferOut(caller, paid); err != nil {
		return nil, err
	}

	pos.Collateral = remaining
	if err := e.commit(pos, terms); err != nil {
		return nil, err
	}
	return paid, nil
}

// Borrow issues debt tokens against the caller's collateral. The origination
// fee is retained as debt and counted against the global ceiling; only the
// requested amount is disbursed. Returns the fee charged.
func (e *Engine) Borrow(borrower common.Address, amount *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.debtToken == nil {
		return nil, ErrDebtTokenNotSet
	}
	terms, err := e.loadTerms()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(borrower)
	if err != nil {
		return nil, err
	}
	if err := e.settle(pos, terms); err != nil {
		return nil, err
	}

	fee, err := mulBps(amount, terms.OriginationFee)
	if err != nil {
		return nil, err
	}
	owed, err := checkedAdd(amount, fee)
	if err != nil {
		return nil, err
	}
	newOutstanding, err := checkedAdd(terms.OutstandingDebt, owed)
	if err != nil {
		return nil, err
	}
	if newOutstanding.Cmp(terms.DebtCeiling) > 0 {
		return nil, ErrDebtCeilingExceeded
	}

	balance, err := e.stakedBalance(pos)
	if err != nil {
		return nil, err
	}
	borrowCap, err := e.maxBorrow(balance, terms)
	if err != nil {
		return nil, err
	}
	projected, err := checkedAdd(pos.Borrowed, amount)
	if err != nil {
		return nil, err
	}
	if projected.Cmp(borrowCap) > 0 {
		return nil, ErrExceedsLTV
	}

	if err := e.debtToken.Mint(borrower, amount); err != nil {
		return nil, err
	}

	pos.Borrowed, err = checkedAdd(pos.Borrowed, owed)
	if err != nil {
		return nil, err
	}
	terms.OutstandingDebt = newOutstanding
	if terms.AccruedFees, err = checkedAdd(terms.AccruedFees, fee); err != nil {
		return nil, err
	}
	if err := e.commit(pos, terms); err != nil {
		return nil, err
	}
	return fee, nil
}

// Repay burns debt tokens from the caller and reduces the depositor's debt by
// exactly the amount. Overpayment is an arithmetic failure, not a cap.
func (e *Engine) Repay(caller, depositor common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if e.debtToken == nil {
		return ErrDebtTokenNotSet
	}
	terms, err := e.loadTerms()
	if err != nil {
		return err
	}
	pos, err := e.loadPosition(depositor)
	if err != nil {
		return err
	}
	if err := e.settle(pos, terms); err != nil {
		return err
	}

	remaining, err := checkedSub(pos.Borrowed, amount)
	if err != nil {
		return err
	}
	newOutstanding, err := checkedSub(terms.OutstandingDebt, amount)
	if err != nil {
		return err
	}

	if err := e.debtToken.Burn(caller, amount); err != nil {
		return err
	}

	pos.Borrowed = remaining
	terms.OutstandingDebt = newOutstanding
	return e.commit(pos, terms)
}

// Liquidate lets a third party repay part of an unhealthy position in
// exchange for a premium slice of its collateral. The repayment is capped at
// the close-factor fraction of the debt; seizure is proportional to the
// fraction of total debt repaid. Returns the collateral paid out in the
// requested asset form.
func (e *Engine) Liquidate(liquidator, depositor common.Address, amount *big.Int, kind AssetKind) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.debtToken == nil {
		return nil, ErrDebtTokenNotSet
	}
	asset, err := e.asset(kind)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrLiquidationNotAllowed
	}
	terms, err := e.loadTerms()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(depositor)
	if err != nil {
		return nil, err
	}
	if err := e.settle(pos, terms); err != nil {
		return nil, err
	}

	eligible, err := e.liquidatable(pos, terms)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrLiquidationNotAllowed
	}
	repayCap, err := mulBps(pos.Borrowed, terms.CloseFactor)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(repayCap) > 0 {
		return nil, ErrRepaymentTooLarge
	}

	balance, err := e.stakedBalance(pos)
	if err != nil {
		return nil, err
	}
	seized, err := e.seizeForRepay(balance, pos.Borrowed, amount, terms)
	if err != nil {
		return nil, err
	}
	if seized.Cmp(balance) > 0 {
		seized = new(big.Int).Set(balance)
	}
	seizedShares, err := e.converter.SharesForStaked(seized)
	if err != nil {
		return nil, err
	}
	if seizedShares.Cmp(pos.Collateral) > 0 {
		seizedShares = new(big.Int).Set(pos.Collateral)
	}

	remainingDebt, err := checkedSub(pos.Borrowed, amount)
	if err != nil {
		return nil, err
	}
	newOutstanding, err := checkedSub(terms.OutstandingDebt, amount)
	if err != nil {
		return nil, err
	}
	remainingCollateral, err := checkedSub(pos.Collateral, seizedShares)
	if err != nil {
		return nil, err
	}

	if err := e.debtToken.Burn(liquidator, amount); err != nil {
		return nil, err
	}

	paid := seized
	if kind == AssetShares {
		paid = seizedShares
	}
	if err := asset.TransferOut(liquidator, paid); err != nil {
		return nil, err
	}

	pos.Borrowed = remainingDebt
	pos.Collateral = remainingCollateral
	terms.OutstandingDebt = newOutstanding
	if err := e.commit(pos, terms); err != nil {
		return nil, err
	}
	return new(big.Int).Set(paid), nil
}

// CollectFees mints the accrued fee balance to the treasury and resets it.
// A zero balance is a no-op.
func (e *Engine) CollectFees() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.debtToken == nil {
		return nil, ErrDebtTokenNotSet
	}
	terms, err := e.loadTerms()
	if err != nil {
		return nil, err
	}
	if terms.AccruedFees.Sign() == 0 {
		return big.NewInt(0), nil
	}
	minted := new(big.Int).Set(terms.AccruedFees)
	if err := e.debtToken.Mint(e.treasury, minted); err != nil {
		return nil, err
	}
	terms.AccruedFees = big.NewInt(0)
	if err := e.state.PutTerms(terms); err != nil {
		return nil, err
	}
	return minted, nil
}

// SetParameter overwrites one governable field of the global terms. The
// caller is responsible for having passed the privilege gate; no cross-field
// coherence is enforced here.
func (e *Engine) SetParameter(kind ParamKind, value *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	terms, err := e.loadTerms()
	if err != nil {
		return err
	}
	if err := applyParam(terms, kind, value); err != nil {
		return err
	}
	return e.state.PutTerms(terms)
}

// DepositAndBorrow applies a deposit and a borrow as one atomic transition:
// if either half fails no effect is observed.
func (e *Engine) DepositAndBorrow(caller common.Address, depositAmount *big.Int, kind AssetKind, borrowAmount *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if depositAmount == nil || depositAmount.Sign() <= 0 || borrowAmount == nil || borrowAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.debtToken == nil {
		return nil, ErrDebtTokenNotSet
	}
	asset, err := e.asset(kind)
	if err != nil {
		return nil, err
	}
	terms, err := e.loadTerms()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	if err := e.settle(pos, terms); err != nil {
		return nil, err
	}

	credited := new(big.Int).Set(depositAmount)
	if kind == AssetStaked {
		if credited, err = e.converter.SharesForStaked(depositAmount); err != nil {
			return nil, err
		}
	}
	newCollateral, err := checkedAdd(pos.Collateral, credited)
	if err != nil {
		return nil, err
	}

	fee, err := mulBps(borrowAmount, terms.OriginationFee)
	if err != nil {
		return nil, err
	}
	owed, err := checkedAdd(borrowAmount, fee)
	if err != nil {
		return nil, err
	}
	newOutstanding, err := checkedAdd(terms.OutstandingDebt, owed)
	if err != nil {
		return nil, err
	}
	if newOutstanding.Cmp(terms.DebtCeiling) > 0 {
		return nil, ErrDebtCeilingExceeded
	}
	balance, err := e.converter.StakedForShares(newCollateral)
	if err != nil {
		return nil, err
	}
	borrowCap, err := e.maxBorrow(balance, terms)
	if err != nil {
		return nil, err
	}
	projected, err := checkedAdd(pos.Borrowed, borrowAmount)
	if err != nil {
		return nil, err
	}
	if projected.Cmp(borrowCap) > 0 {
		return nil, ErrExceedsLTV
	}

	if err := asset.TransferIn(caller, depositAmount); err != nil {
		return nil, err
	}
	if err := e.debtToken.Mint(caller, borrowAmount); err != nil {
		return nil, err
	}

	pos.Collateral = newCollateral
	if pos.Borrowed, err = checkedAdd(pos.Borrowed, owed); err != nil {
		return nil, err
	}
	terms.OutstandingDebt = newOutstanding
	if terms.AccruedFees, err = checkedAdd(terms.AccruedFees, fee); err != nil {
		return nil, err
	}
	if err := e.commit(pos, terms); err != nil {
		return nil, err
	}
	return fee, nil
}

// RepayAndWithdraw applies a repayment and a withdrawal as one atomic
// transition, sizing the withdrawal headroom against the post-repay debt.
func (e *Engine) RepayAndWithdraw(caller common.Address, repayAmount, withdrawAmount *big.Int, kind AssetKind) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if repayAmount == nil || repayAmount.Sign() <= 0 || withdrawAmount == nil || withdrawAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.debtToken == nil {
		return nil, ErrDebtTokenNotSet
	}
	asset, err := e.asset(kind)
	if err != nil {
		return nil, err
	}
	terms, err := e.loadTerms()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	if err := e.settle(pos, terms); err != nil {
		return nil, err
	}

	remainingDebt, err := checkedSub(pos.Borrowed, repayAmount)
	if err != nil {
		return nil, err
	}
	newOutstanding, err := checkedSub(terms.OutstandingDebt, repayAmount)
	if err != nil {
		return nil, err
	}

	projection := pos.Clone()
	projection.Borrowed = remainingDebt
	headroom, err := e.withdrawable(projection, terms)
	if err != nil {
		return nil, err
	}
	if withdrawAmount.Cmp(headroom) > 0 {
		return nil, ErrInsufficientCollateral
	}
	debited, err := e.converter.SharesForStaked(withdrawAmount)
	if err != nil {
		return nil, err
	}
	if debited.Cmp(pos.Collateral) > 0 {
		debited = new(big.Int).Set(pos.Collateral)
	}
	remainingCollateral, err := checkedSub(pos.Collateral, debited)
	if err != nil {
		return nil, err
	}

	if err := e.debtToken.Burn(caller, repayAmount); err != nil {
		return nil, err
	}
	paid := new(big.Int).Set(withdrawAmount)
	if kind == AssetShares {
		paid = new(big.Int).Set(debited)
	}
	if err := asset.TransferOut(caller, paid); err != nil {
		return nil, err
	}

	pos.Borrowed = remainingDebt
	pos.Collateral = remainingCollateral
	terms.OutstandingDebt = newOutstanding
	if err := e.commit(pos, terms); err != nil {
		return nil, err
	}
	return paid, nil
}
