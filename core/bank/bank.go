// Package bank is the in-process implementation of the vault's external
// collaborators: the debt-token issuance authority, the collateral transfer
// rails for both asset forms, the share/staked conversion index and the
// price oracle. The engine depends only on the collaborator interfaces; in
// the original deployment these live in separate on-chain contracts.
package bank

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"stakevault/storage"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrIndexRegression     = errors.New("bank: conversion index must not decrease")
	ErrUnknownBalanceKind  = errors.New("bank: unknown balance kind")
)

var (
	accountPrefix = []byte("bank/acct/")
	indexKey      = []byte("bank/index")
	priceKey      = []byte("bank/price")

	// indexScale is the fixed-point scale of the share/staked conversion
	// index; an index of 1e18 means one share redeems one staked unit.
	indexScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// BalanceKind names the three balances an account holds.
type BalanceKind string

const (
	BalanceDebt   BalanceKind = "debt"
	BalanceStaked BalanceKind = "staked"
	BalanceShares BalanceKind = "shares"
)

// ParseBalanceKind resolves the wire name of a balance kind.
func ParseBalanceKind(name string) (BalanceKind, error) {
	switch BalanceKind(strings.TrimSpace(name)) {
	case BalanceDebt:
		return BalanceDebt, nil
	case BalanceStaked:
		return BalanceStaked, nil
	case BalanceShares:
		return BalanceShares, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBalanceKind, name)
	}
}

// Account holds the token balances for one address.
type Account struct {
	Debt   *big.Int `json:"debt"`
	Staked *big.Int `json:"staked"`
	Shares *big.Int `json:"shares"`
}

func (a *Account) ensureDefaults() {
	if a.Debt == nil {
		a.Debt = big.NewInt(0)
	}
	if a.Staked == nil {
		a.Staked = big.NewInt(0)
	}
	if a.Shares == nil {
		a.Shares = big.NewInt(0)
	}
}

// Bank keeps account balances, the conversion index and the oracle price in
// the shared storage backend.
type Bank struct {
	mu    sync.RWMutex
	db    storage.Database
	vault common.Address
}

// New constructs a bank custodying vault collateral under the given module
// address, bootstrapping the conversion index and price when absent.
func New(db storage.Database, vaultAddr common.Address, initialIndex, initialPrice *big.Int) (*Bank, error) {
	if vaultAddr == (common.Address{}) {
		return nil, errors.New("bank: vault address must not be zero")
	}
	b := &Bank{db: db, vault: vaultAddr}
	if _, err := db.Get(indexKey); errors.Is(err, storage.ErrKeyNotFound) {
		if initialIndex == nil || initialIndex.Sign() <= 0 {
			initialIndex = new(big.Int).Set(indexScale)
		}
		if err := b.putBig(indexKey, initialIndex); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	if _, err := db.Get(priceKey); errors.Is(err, storage.ErrKeyNotFound) {
		if initialPrice == nil || initialPrice.Sign() <= 0 {
			initialPrice = big.NewInt(1)
		}
		if err := b.putBig(priceKey, initialPrice); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return b, nil
}

func accountKey(addr common.Address) []byte {
	return append(append([]byte(nil), accountPrefix...), addr.Bytes()...)
}

func (b *Bank) loadAccount(addr common.Address) (*Account, error) {
	raw, err := b.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		acc := &Account{}
		acc.ensureDefaults()
		return acc, nil
	}
	if err != nil {
		return nil, err
	}
	acc := &Account{}
	if err := json.Unmarshal(raw, acc); err != nil {
		return nil, fmt.Errorf("bank: decode account %s: %w", addr.Hex(), err)
	}
	acc.ensureDefaults()
	return acc, nil
}

func (b *Bank) putAccount(addr common.Address, acc *Account) error {
	raw, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("bank: encode account %s: %w", addr.Hex(), err)
	}
	return b.db.Put(accountKey(addr), raw)
}

func (b *Bank) putBig(key []byte, v *big.Int) error {
	return b.db.Put(key, []byte(v.String()))
}

func (b *Bank) getBig(key []byte) (*big.Int, error) {
	raw, err := b.db.Get(key)
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("bank: corrupt integer record %q", string(raw))
	}
	return v, nil
}

func (b *Bank) balanceOf(acc *Account, kind BalanceKind) *big.Int {
	switch kind {
	case BalanceDebt:
		return acc.Debt
	case BalanceStaked:
		return acc.Staked
	default:
		return acc.Shares
	}
}

func (b *Bank) setBalance(acc *Account, kind BalanceKind, v *big.Int) {
	switch kind {
	case BalanceDebt:
		acc.Debt = v
	case BalanceStaked:
		acc.Staked = v
	default:
		acc.Shares = v
	}
}

func (b *Bank) move(kind BalanceKind, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fromAcc, err := b.loadAccount(from)
	if err != nil {
		return err
	}
	if b.balanceOf(fromAcc, kind).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toAcc, err := b.loadAccount(to)
	if err != nil {
		return err
	}
	b.setBalance(fromAcc, kind, new(big.Int).Sub(b.balanceOf(fromAcc, kind), amount))
	b.setBalance(toAcc, kind, new(big.Int).Add(b.balanceOf(toAcc, kind), amount))
	if err := b.putAccount(from, fromAcc); err != nil {
		return err
	}
	return b.putAccount(to, toAcc)
}

// Mint issues debt tokens to an account. Only the vault engine calls this.
func (b *Bank) Mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, err := b.loadAccount(to)
	if err != nil {
		return err
	}
	acc.Debt = new(big.Int).Add(acc.Debt, amount)
	return b.putAccount(to, acc)
}

// Burn destroys debt tokens held by an account.
func (b *Bank) Burn(from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, err := b.loadAccount(from)
	if err != nil {
		return err
	}
	if acc.Debt.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	acc.Debt = new(big.Int).Sub(acc.Debt, amount)
	return b.putAccount(from, acc)
}

// StakedForShares converts fixed shares into the rebasing staked unit at the
// current index: shares * index / 1e18.
func (b *Bank) StakedForShares(shares *big.Int) (*big.Int, error) {
	if shares == nil {
		return big.NewInt(0), nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	index, err := b.getBig(indexKey)
	if err != nil {
		return nil, err
	}
	out := new(big.Int).Mul(shares, index)
	return out.Quo(out, indexScale), nil
}

// SharesForStaked converts a staked amount into fixed shares at the current
// index: amount * 1e18 / index.
func (b *Bank) SharesForStaked(amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return big.NewInt(0), nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	index, err := b.getBig(indexKey)
	if err != nil {
		return nil, err
	}
	if index.Sign() == 0 {
		return nil, fmt.Errorf("bank: zero conversion index")
	}
	out := new(big.Int).Mul(amount, indexScale)
	return out.Quo(out, index), nil
}

// AssetPrice returns the oracle price of the staked unit.
func (b *Bank) AssetPrice() (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.getBig(priceKey)
}

// SetAssetPrice updates the oracle price.
func (b *Bank) SetAssetPrice(price *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.putBig(priceKey, price)
}

// SetConversionIndex moves the rebasing index. The index is monotonic: the
// underlying staking yield only accrues.
func (b *Bank) SetConversionIndex(index *big.Int) error {
	if index == nil || index.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	current, err := b.getBig(indexKey)
	if err != nil {
		return err
	}
	if index.Cmp(current) < 0 {
		return ErrIndexRegression
	}
	return b.putBig(indexKey, index)
}

// Credit adds balance to an account out of thin air. Operator/faucet surface
// for bootstrapping deployments and tests.
func (b *Bank) Credit(addr common.Address, kind BalanceKind, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, err := b.loadAccount(addr)
	if err != nil {
		return err
	}
	b.setBalance(acc, kind, new(big.Int).Add(b.balanceOf(acc, kind), amount))
	return b.putAccount(addr, acc)
}

// AccountOf returns a copy of an account's balances.
func (b *Bank) AccountOf(addr common.Address) (*Account, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	acc, err := b.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return &Account{
		Debt:   new(big.Int).Set(acc.Debt),
		Staked: new(big.Int).Set(acc.Staked),
		Shares: new(big.Int).Set(acc.Shares),
	}, nil
}

// AssetRail moves one collateral representation between accounts and the
// vault's custody address.
type AssetRail struct {
	bank *Bank
	kind BalanceKind
}

func (r AssetRail) TransferIn(from common.Address, amount *big.Int) error {
	return r.bank.move(r.kind, from, r.bank.vault, amount)
}

func (r AssetRail) TransferOut(to common.Address, amount *big.Int) error {
	return r.bank.move(r.kind, r.bank.vault, to, amount)
}

// StakedAsset returns the transfer rail for the rebasing collateral form.
func (b *Bank) StakedAsset() AssetRail { return AssetRail{bank: b, kind: BalanceStaked} }

// SharesAsset returns the transfer rail for the fixed-index collateral form.
func (b *Bank) SharesAsset() AssetRail { return AssetRail{bank: b, kind: BalanceShares} }
