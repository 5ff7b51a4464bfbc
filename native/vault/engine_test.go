package vault

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func makeAddress(b byte) common.Address {
	var addr common.Address
	for i := range addr {
		addr[i] = b
	}
	return addr
}

type mockState struct {
	positions map[common.Address]*Position
	terms     *GlobalTerms
}

func newMockState(terms *GlobalTerms) *mockState {
	return &mockState{positions: make(map[common.Address]*Position), terms: terms}
}

func (m *mockState) GetPosition(addr common.Address) (*Position, error) {
	return m.positions[addr], nil
}

func (m *mockState) PutPosition(pos *Position) error {
	m.positions[pos.Address] = pos.Clone()
	return nil
}

func (m *mockState) GetTerms() (*GlobalTerms, error) { return m.terms, nil }

func (m *mockState) PutTerms(terms *GlobalTerms) error {
	m.terms = terms.Clone()
	return nil
}

type mockOracle struct {
	price *big.Int
}

func (o *mockOracle) AssetPrice() (*big.Int, error) {
	return new(big.Int).Set(o.price), nil
}

// ratioConverter maps one share to num/den staked units.
type ratioConverter struct {
	num, den *big.Int
}

func (c *ratioConverter) StakedForShares(shares *big.Int) (*big.Int, error) {
	out := new(big.Int).Mul(shares, c.num)
	return out.Quo(out, c.den), nil
}

func (c *ratioConverter) SharesForStaked(amount *big.Int) (*big.Int, error) {
	out := new(big.Int).Mul(amount, c.den)
	return out.Quo(out, c.num), nil
}

type mockAsset struct {
	balances map[common.Address]*big.Int
	custody  *big.Int
}

func newMockAsset() *mockAsset {
	return &mockAsset{balances: make(map[common.Address]*big.Int), custody: big.NewInt(0)}
}

func (a *mockAsset) fund(addr common.Address, amount int64) {
	a.balances[addr] = big.NewInt(amount)
}

func (a *mockAsset) balanceOf(addr common.Address) *big.Int {
	if b, ok := a.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (a *mockAsset) TransferIn(from common.Address, amount *big.Int) error {
	balance := a.balanceOf(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("asset: insufficient balance")
	}
	a.balances[from] = new(big.Int).Sub(balance, amount)
	a.custody = new(big.Int).Add(a.custody, amount)
	return nil
}

func (a *mockAsset) TransferOut(to common.Address, amount *big.Int) error {
	if a.custody.Cmp(amount) < 0 {
		return fmt.Errorf("asset: insufficient custody")
	}
	a.custody = new(big.Int).Sub(a.custody, amount)
	a.balances[to] = new(big.Int).Add(a.balanceOf(to), amount)
	return nil
}

type mockToken struct {
	balances map[common.Address]*big.Int
	minted   *big.Int
	burned   *big.Int
}

func newMockToken() *mockToken {
	return &mockToken{balances: make(map[common.Address]*big.Int), minted: big.NewInt(0), burned: big.NewInt(0)}
}

func (tk *mockToken) balanceOf(addr common.Address) *big.Int {
	if b, ok := tk.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (tk *mockToken) Mint(to common.Address, amount *big.Int) error {
	tk.balances[to] = new(big.Int).Add(tk.balanceOf(to), amount)
	tk.minted = new(big.Int).Add(tk.minted, amount)
	return nil
}

func (tk *mockToken) Burn(from common.Address, amount *big.Int) error {
	balance := tk.balanceOf(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("token: insufficient balance")
	}
	tk.balances[from] = new(big.Int).Sub(balance, amount)
	tk.burned = new(big.Int).Add(tk.burned, amount)
	return nil
}

type testVault struct {
	engine    *Engine
	state     *mockState
	oracle    *mockOracle
	converter *ratioConverter
	staked    *mockAsset
	shares    *mockAsset
	token     *mockToken
	treasury  common.Address
}

func defaultTerms() *GlobalTerms {
	terms := &GlobalTerms{
		MaxLTV:               5000,
		LiquidationThreshold: 7500,
		LiquidationIncentive: 500,
		CloseFactor:          5000,
		InterestRatePerUnit:  big.NewInt(0),
		DebtCeiling:          big.NewInt(1_000_000),
	}
	terms.EnsureDefaults()
	return terms
}

func newTestVault(t *testing.T, terms *GlobalTerms) *testVault {
	t.Helper()
	if terms == nil {
		terms = defaultTerms()
	}
	tv := &testVault{
		state:     newMockState(terms),
		oracle:    &mockOracle{price: big.NewInt(100)},
		converter: &ratioConverter{num: big.NewInt(1), den: big.NewInt(1)},
		staked:    newMockAsset(),
		shares:    newMockAsset(),
		token:     newMockToken(),
		treasury:  makeAddress(0xFE),
	}
	engine, err := NewEngine(tv.treasury, tv.oracle, tv.converter, tv.staked, tv.shares)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.SetState(tv.state)
	if err := engine.InitDebtToken(tv.token); err != nil {
		t.Fatalf("InitDebtToken: %v", err)
	}
	tv.engine = engine
	return tv
}

func (tv *testVault) position(t *testing.T, addr common.Address) *Position {
	t.Helper()
	pos, ok := tv.state.positions[addr]
	if !ok {
		t.Fatalf("no stored position for %s", addr.Hex())
	}
	return pos
}

func TestDepositCreditsShareEquivalent(t *testing.T) {
	tv := newTestVault(t, nil)
	// One share redeems two staked units.
	tv.converter.num = big.NewInt(2)
	depositor := makeAddress(0x01)
	tv.staked.fund(depositor, 10)

	credited, err := tv.engine.Deposit(depositor, big.NewInt(10), AssetStaked)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if credited.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected 5 shares credited, got %s", credited)
	}
	if got := tv.position(t, depositor).Collateral; got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected collateral 5, got %s", got)
	}
	if got := tv.staked.custody; got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected 10 staked in custody, got %s", got)
	}
}

func TestDepositSharesPassThrough(t *testing.T) {
	tv := newTestVault(t, nil)
	depositor := makeAddress(0x01)
	tv.shares.fund(depositor, 10)

	credited, err := tv.engine.Deposit(depositor, big.NewInt(10), AssetShares)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if credited.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected 10 shares credited, got %s", credited)
	}
}

func TestDepositRejectsZeroAmount(t *testing.T) {
	tv := newTestVault(t, nil)
	if _, err := tv.engine.Deposit(makeAddress(0x01), big.NewInt(0), AssetShares); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestBorrowWithinLimit(t *testing.T) {
	tv := newTestVault(t, nil)
	borrower := makeAddress(0x02)
	tv.shares.fund(borrower, 10)
	if _, err := tv.engine.Deposit(borrower, big.NewInt(10), AssetShares); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Collateral value 10*100 = 1000; max borrow at 50% LTV is 500.
	fee, err := tv.engine.Borrow(borrower, big.NewInt(500))
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if fee.Sign() != 0 {
		t.Fatalf("expected zero fee, got %s", fee)
	}
	if got := tv.position(t, borrower).Borrowed; got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected borrowed 500, got %s", got)
	}
	if got := tv.state.terms.OutstandingDebt; got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected outstanding 500, got %s", got)
	}
	if got := tv.token.balanceOf(borrower); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected 500 debt tokens minted, got %s", got)
	}
}

func TestBorrowExceedsLTV(t *testing.T) {
	tv := newTestVault(t, nil)
	borrower := makeAddress(0x02)
	tv.shares.fund(borrower, 10)
	if _, err := tv.engine.Deposit(borrower, big.NewInt(10), AssetShares); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := tv.engine.Borrow(borrower, big.NewInt(501)); !errors.Is(err, ErrExceedsLTV) {
		t.Fatalf("expected ErrExceedsLTV, got %v", err)
	}
	if got := tv.position(t, borrower).Borrowed; got.Sign() != 0 {
		t.Fatalf("expected borrowed unchanged, got %s", got)
	}
	if got := tv.token.minted; got.Sign() != 0 {
		t.Fatalf("expected no tokens minted, got %s", got)
	}
}

func TestBorrowOriginationFeeRetainedAsDebt(t *testing.T) {
	terms := defaultTerms()
	terms.OriginationFee = 100 // 1%
	tv := newTestVault(t, terms)
	borrower := makeAddress(0x02)
	tv.shares.fund(borrower, 10)
	if _, err := tv.engine.Deposit(borrower, big.NewInt(10), AssetShares); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	fee, err := tv.engine.Borrow(borrower, big.NewInt(400))
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if fee.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("expected fee 4, got %s", fee)
	}
	// Only the requested amount is disbursed; the fee stays as debt.
	if got := tv.token.balanceOf(borrower); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected 400 tokens disbursed, got %s", got)
	}
	if got := tv.position(t, borrower).Borrowed; got.Cmp(big.NewInt(404)) != 0 {
		t.Fatalf("expected borrowed 404, got %s", got)
	}
	if got := tv.state.terms.OutstandingDebt; got.Cmp(big.NewInt(404)) != 0 {
		t.Fatalf("expected outstanding 404, got %s", got)
	}
	if got := tv.state.terms.AccruedFees; got.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("expected accrued fees 4, got %s", got)
	}
}

func TestBorrowDebtCeilingIncludesFee(t *testing.T) {
	terms := defaultTerms()
	terms.OriginationFee = 100
	terms.DebtCeiling = big.NewInt(403)
	tv := newTestVault(t, terms)
	borrower := makeAddress(0x02)
	tv.shares.fund(borrower, 10)
	if _, err := tv.engine.Deposit(borrower, big.NewInt(10), AssetShares); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// 400 requested + 4 fee = 404 owed, one over the ceiling.
	if _, err := tv.engine.Borrow(borrower, big.NewInt(400)); !errors.Is(err, ErrDebtCeilingExceeded) {
		t.Fatalf("expected ErrDebtCeilingExceeded, got %v", err)
	}
}

func TestRepayReducesDebtExactly(t *testing.T) {
	tv := newTestVault(t, nil)
	borrower := makeAddress(0x02)
	tv.shares.fund(borrower, 10)
	if _, err := tv.engine.Deposit(borrower, big.NewInt(10), AssetShares); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := tv.engine.Borrow(borrower, big.NewInt(500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	if err := tv.engine.Repay(borrower, borrower, big.NewInt(200)); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if got := tv.position(t, borrower).Borrowed; got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected borrowed 300, got %s", got)
	}
	if got := tv.state.terms.OutstandingDebt; got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected outstanding 300, got %s", got)
	}
	if got := tv.token.burned; got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected 200 tokens burned, got %s", got)
	}
}

func TestRepayOverpaymentFails(t *testing.T) {
	tv := newTestVault(t, nil)
	borrower := makeAddress(0x02)
	tv.shares.fund(borrower, 10)
	if _, err := tv.engine.Deposit(borrower, big.NewInt(10), AssetShares); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := tv.engine.Borrow(borrower, big.NewInt(100)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	if err := tv.engine.Repay(borrower, borrower, big.NewInt(101)); !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected ErrArithmetic on overpayment, got %v", err)
	}
	if got := tv.position(t, borrower).Borrowed; got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected borrowed unchanged at 100, got %s", got)
	}
}

func TestRepayOnBehalfOfDepositor(t *testing.T) {
	tv := newTestVault(t, nil)
	borrower := makeAddress(0x02)
	helper := makeAddress(0x03)
	tv.shares.fund(borrower, 10)
	if _, err := tv.engine.Deposit(borrower, big.NewInt(10), AssetShares); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := tv.engine.Borrow(borrower, big.NewInt(100)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := tv.token.Mint(helper, big.NewInt(50)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := tv.engine.Repay(helper, borrower, big.NewInt(50)); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if got := tv.position(t, borrower).Borrowed; got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected borrowed 50, got %s", got)
	}
	if got := tv.token.balanceOf(helper); got.Sign() != 0 {
		t.Fatalf("expected helper tokens burned, got %s", got)
	}
}

func TestWithdrawHeadroomBoundary(t *testing.T) {
	tv := newTestVault(t, nil)
	depositor := makeAddress(0x02)
	tv.shares.fund(depositor, 10)
	if _, err := tv.engine.Deposit(depositor, big.NewInt(10), AssetShares); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := tv.engine.Borrow(depositor, big.NewInt(375)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// locked = 10 * 375 / 750 = 5, so exactly 5 staked can leave.
	if _, err := tv.engine.Withdraw(depositor, big.NewInt(6), AssetShares); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
	paid, err := tv.engine.Withdraw(depositor, big.NewInt(5), AssetShares)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if paid.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected 5 paid, got %s", paid)
	}
	// Remaining collateral is fully locked behind the loan.
	if _, err := tv.engine.Withdraw(depositor, big.NewInt(1), AssetShares); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected zero headroom after boundary withdrawal, got %v", err)
	}
}

func TestWithdrawWithoutDebtReleasesAll(t *testing.T) {
	tv := newTestVault(t, nil)
	depositor := makeAddress(0x02)
	tv.staked.fund(depositor, 10)
	if _, err := tv.engine.Deposit(depositor, big.NewInt(10), AssetStaked); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	paid, err := tv.engine.Withdraw(depositor, big.NewInt(10), AssetStaked)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if paid.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected 10 paid, got %s", paid)
	}
	if got := tv.position(t, depositor).Collateral; got.Sign() != 0 {
		t.Fatalf("expected empty collateral, got %s", got)
	}
	if got := tv.staked.balanceOf(depositor); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected balance restored to 10, got %s", got)
	}
}

func TestDepositAndBorrowAtomicOnFailure(t *testing.T) {
	tv := newTestVault(t, nil)
	caller := makeAddress(0x02)
	tv.shares.fund(caller, 10)

	// 10 collateral supports at most 500; the combined call must leave no
	// trace when the borrow half fails.
	if _, err := tv.engine.DepositAndBorrow(caller, big.NewInt(10), AssetShares, big.NewInt(501)); !errors.Is(err, ErrExceedsLTV) {
		t.Fatalf("expected ErrExceedsLTV, got %v", err)
	}
	if _, ok := tv.state.positions[caller]; ok {
		t.Fatalf("expected no stored position after failed combined call")
	}
	if got := tv.shares.balanceOf(caller); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected caller balance untouched, got %s", got)
	}
	if got := tv.token.minted; got.Sign() != 0 {
		t.Fatalf("expected no tokens minted, got %s", got)
	}
}

func TestDepositAndBorrowCombined(t *testing.T) {
	tv := newTestVault(t, nil)
	caller := makeAddress(0x02)
	tv.shares.fund(caller, 10)

	fee, err := tv.engine.DepositAndBorrow(caller, big.NewInt(10), AssetShares, big.NewInt(500))
	if err != nil {
		t.Fatalf("deposit and borrow: %v", err)
	}
	if fee.Sign() != 0 {
		t.Fatalf("expected zero fee, got %s", fee)
	}
	pos := tv.position(t, caller)
	if pos.Collateral.Cmp(big.NewInt(10)) != 0 || pos.Borrowed.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected collateral 10 borrowed 500, got %s/%s", pos.Collateral, pos.Borrowed)
	}
	if got := tv.token.balanceOf(caller); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected 500 tokens, got %s", got)
	}
}

func TestRepayAndWithdrawSizesAgainstPostRepayDebt(t *testing.T) {
	tv := newTestVault(t, nil)
	caller := makeAddress(0x02)
	tv.shares.fund(caller, 10)
	if _, err := tv.engine.DepositAndBorrow(caller, big.NewInt(10), AssetShares, big.NewInt(500)); err != nil {
		t.Fatalf("deposit and borrow: %v", err)
	}

	// Pre-repay headroom is 10 - 10*500/750 = 4 (truncated); repaying 125
	// lifts it to 5.
	paid, err := tv.engine.RepayAndWithdraw(caller, big.NewInt(125), big.NewInt(5), AssetShares)
	if err != nil {
		t.Fatalf("repay and withdraw: %v", err)
	}
	if paid.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected 5 paid, got %s", paid)
	}
	pos := tv.position(t, caller)
	if pos.Borrowed.Cmp(big.NewInt(375)) != 0 || pos.Collateral.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected borrowed 375 collateral 5, got %s/%s", pos.Borrowed, pos.Collateral)
	}
}

func TestRepayAndWithdrawAtomicOnFailure(t *testing.T) {
	tv := newTestVault(t, nil)
	caller := makeAddress(0x02)
	tv.shares.fund(caller, 10)
	if _, err := tv.engine.DepositAndBorrow(caller, big.NewInt(10), AssetShares, big.NewInt(500)); err != nil {
		t.Fatalf("deposit and borrow: %v", err)
	}

	if _, err := tv.engine.RepayAndWithdraw(caller, big.NewInt(125), big.NewInt(6), AssetShares); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
	pos := tv.position(t, caller)
	if pos.Borrowed.Cmp(big.NewInt(500)) != 0 || pos.Collateral.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected position untouched, got %s/%s", pos.Borrowed, pos.Collateral)
	}
	if got := tv.token.balanceOf(caller); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected token balance untouched, got %s", got)
	}
}

func TestOutstandingDebtReconciliation(t *testing.T) {
	tv := newTestVault(t, nil)
	first := makeAddress(0x02)
	second := makeAddress(0x03)
	for _, addr := range []common.Address{first, second} {
		tv.shares.fund(addr, 10)
		if _, err := tv.engine.Deposit(addr, big.NewInt(10), AssetShares); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	if _, err := tv.engine.Borrow(first, big.NewInt(300)); err != nil {
		t.Fatalf("borrow first: %v", err)
	}
	if _, err := tv.engine.Borrow(second, big.NewInt(200)); err != nil {
		t.Fatalf("borrow second: %v", err)
	}
	if err := tv.engine.Repay(second, second, big.NewInt(50)); err != nil {
		t.Fatalf("repay: %v", err)
	}

	sum := new(big.Int).Add(tv.position(t, first).Borrowed, tv.position(t, second).Borrowed)
	if sum.Cmp(tv.state.terms.OutstandingDebt) != 0 {
		t.Fatalf("outstanding %s does not match position sum %s", tv.state.terms.OutstandingDebt, sum)
	}
}

func TestSetParameterRoundTrip(t *testing.T) {
	tv := newTestVault(t, nil)
	if err := tv.engine.SetParameter(ParamMaxLTV, big.NewInt(6000)); err != nil {
		t.Fatalf("set parameter: %v", err)
	}
	if got := tv.state.terms.MaxLTV; got != 6000 {
		t.Fatalf("expected maxLTV 6000, got %d", got)
	}
	if err := tv.engine.SetParameter(ParamDebtCeiling, big.NewInt(42)); err != nil {
		t.Fatalf("set ceiling: %v", err)
	}
	if got := tv.state.terms.DebtCeiling; got.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("expected ceiling 42, got %s", got)
	}
}

func TestSetParameterUnknownKind(t *testing.T) {
	tv := newTestVault(t, nil)
	if err := tv.engine.SetParameter(ParamKind(99), big.NewInt(1)); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter, got %v", err)
	}
}

func TestInitDebtTokenOnce(t *testing.T) {
	engine, err := NewEngine(makeAddress(0xFE), &mockOracle{price: big.NewInt(1)}, &ratioConverter{num: big.NewInt(1), den: big.NewInt(1)}, newMockAsset(), newMockAsset())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.SetState(newMockState(defaultTerms()))

	if _, err := engine.Borrow(makeAddress(0x01), big.NewInt(1)); !errors.Is(err, ErrDebtTokenNotSet) {
		t.Fatalf("expected ErrDebtTokenNotSet, got %v", err)
	}
	if err := engine.InitDebtToken(newMockToken()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := engine.InitDebtToken(newMockToken()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestNewEngineRejectsZeroTreasury(t *testing.T) {
	_, err := NewEngine(common.Address{}, &mockOracle{price: big.NewInt(1)}, &ratioConverter{num: big.NewInt(1), den: big.NewInt(1)}, newMockAsset(), newMockAsset())
	if !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
}

func TestTermsNotBootstrapped(t *testing.T) {
	engine, err := NewEngine(makeAddress(0xFE), &mockOracle{price: big.NewInt(1)}, &ratioConverter{num: big.NewInt(1), den: big.NewInt(1)}, newMockAsset(), newMockAsset())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.SetState(&mockState{positions: make(map[common.Address]*Position)})
	if _, err := engine.Deposit(makeAddress(0x01), big.NewInt(1), AssetShares); !errors.Is(err, ErrTermsNotSet) {
		t.Fatalf("expected ErrTermsNotSet, got %v", err)
	}
}
