// Package state persists vault positions and the global terms as JSON
// records in a prefixed key space over the storage backend.
package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"stakevault/native/vault"
	"stakevault/storage"
)

var (
	positionPrefix = []byte("vault/pos/")
	termsKey       = []byte("vault/terms")
)

// Ledger implements the vault engine's persistence boundary.
type Ledger struct {
	db storage.Database
}

func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

func positionKey(addr common.Address) []byte {
	return append(append([]byte(nil), positionPrefix...), addr.Bytes()...)
}

// GetPosition returns nil when the account has no stored position yet;
// positions are created lazily on first deposit.
func (l *Ledger) GetPosition(addr common.Address) (*vault.Position, error) {
	raw, err := l.db.Get(positionKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pos := &vault.Position{}
	if err := json.Unmarshal(raw, pos); err != nil {
		return nil, fmt.Errorf("state: decode position %s: %w", addr.Hex(), err)
	}
	return pos, nil
}

func (l *Ledger) PutPosition(pos *vault.Position) error {
	if pos == nil {
		return fmt.Errorf("state: nil position")
	}
	raw, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("state: encode position %s: %w", pos.Address.Hex(), err)
	}
	return l.db.Put(positionKey(pos.Address), raw)
}

// GetTerms returns nil until the terms are bootstrapped.
func (l *Ledger) GetTerms() (*vault.GlobalTerms, error) {
	raw, err := l.db.Get(termsKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	terms := &vault.GlobalTerms{}
	if err := json.Unmarshal(raw, terms); err != nil {
		return nil, fmt.Errorf("state: decode terms: %w", err)
	}
	return terms, nil
}

func (l *Ledger) PutTerms(terms *vault.GlobalTerms) error {
	if terms == nil {
		return fmt.Errorf("state: nil terms")
	}
	raw, err := json.Marshal(terms)
	if err != nil {
		return fmt.Errorf("state: encode terms: %w", err)
	}
	return l.db.Put(termsKey, raw)
}

// Bootstrap writes the provided terms only when none exist yet, so restarts
// never clobber parameters changed at runtime.
func (l *Ledger) Bootstrap(terms *vault.GlobalTerms) error {
	existing, err := l.GetTerms()
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return l.PutTerms(terms)
}
