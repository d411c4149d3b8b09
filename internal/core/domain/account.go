package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"ledger-core/pkg/apperror"
)

// Account event type tags.
const (
	TypeAccountOpened   = "account.opened"
	TypeMoneyCredited   = "account.money_credited"
	TypeMoneyDebited    = "account.money_debited"
	TypeAccountFrozen   = "account.frozen"
	TypeAccountUnfrozen = "account.unfrozen"
)

// AccountOpened is the first event of every account stream.
type AccountOpened struct {
	AccountID uuid.UUID `json:"account_id"`
	UserID    uuid.UUID `json:"user_id"`
}

func (*AccountOpened) EventType() string { return TypeAccountOpened }

// MoneyCredited adds funds to one asset balance. Amount is in minor units.
type MoneyCredited struct {
	AssetCode string `json:"asset_code"`
	Amount    int64  `json:"amount"`
}

func (*MoneyCredited) EventType() string { return TypeMoneyCredited }

// MoneyDebited removes funds from one asset balance. Amount is in minor units.
type MoneyDebited struct {
	AssetCode string `json:"asset_code"`
	Amount    int64  `json:"amount"`
}

func (*MoneyDebited) EventType() string { return TypeMoneyDebited }

// AccountFrozen blocks all mutating commands until unfrozen.
type AccountFrozen struct {
	Reason       string `json:"reason"`
	AuthorizedBy string `json:"authorized_by,omitempty"`
}

func (*AccountFrozen) EventType() string { return TypeAccountFrozen }

// AccountUnfrozen lifts a freeze.
type AccountUnfrozen struct {
	Reason       string `json:"reason"`
	AuthorizedBy string `json:"authorized_by,omitempty"`
}

func (*AccountUnfrozen) EventType() string { return TypeAccountUnfrozen }

// Account is the event-sourced ledger aggregate. State is derived solely by
// folding its event history; commands validate invariants and record events.
type Account struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Frozen       bool
	FrozenReason string
	Balances     map[string]int64

	// Version is the version of the last committed event.
	Version int64
	changes []Event
}

// NewAccount returns an empty aggregate ready for replay.
func NewAccount(id uuid.UUID) *Account {
	return &Account{
		ID:       id,
		Balances: make(map[string]int64),
	}
}

// Changes returns events recorded since load, in order.
func (a *Account) Changes() []Event { return a.changes }

// MarkCommitted advances Version past the recorded events after a successful
// append and drops them.
func (a *Account) MarkCommitted() {
	a.Version += int64(len(a.changes))
	a.changes = nil
}

// BalanceOf returns the balance for an asset, zero if never touched.
func (a *Account) BalanceOf(assetCode string) int64 {
	return a.Balances[assetCode]
}

// Open records the opening event. Valid only on a fresh stream.
func (a *Account) Open(userID uuid.UUID) error {
	if a.Version > 0 || len(a.changes) > 0 {
		return apperror.ErrAlreadyExists("Account")
	}
	a.recordThat(&AccountOpened{AccountID: a.ID, UserID: userID}, nil)
	return nil
}

// Credit adds amount (minor units) to the asset balance.
func (a *Account) Credit(assetCode string, amount int64, metadata map[string]string) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if a.Frozen {
		return apperror.ErrAccountFrozen()
	}
	a.recordThat(&MoneyCredited{AssetCode: assetCode, Amount: amount}, metadata)
	return nil
}

// Debit removes amount (minor units) from the asset balance. The balance may
// never go negative.
func (a *Account) Debit(assetCode string, amount int64, metadata map[string]string) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if a.Frozen {
		return apperror.ErrAccountFrozen()
	}
	if a.Balances[assetCode] < amount {
		return apperror.ErrInsufficientBalance()
	}
	a.recordThat(&MoneyDebited{AssetCode: assetCode, Amount: amount}, metadata)
	return nil
}

// Freeze blocks the account. Freezing an already-frozen account is rejected
// rather than recorded as a no-op event.
func (a *Account) Freeze(reason, authorizedBy string) error {
	if a.Frozen {
		return apperror.ErrAccountFrozen()
	}
	a.recordThat(&AccountFrozen{Reason: reason, AuthorizedBy: authorizedBy}, nil)
	return nil
}

// Unfreeze lifts a freeze. Unfreezing an active account is rejected.
func (a *Account) Unfreeze(reason, authorizedBy string) error {
	if !a.Frozen {
		return apperror.ErrAccountNotFrozen()
	}
	a.recordThat(&AccountUnfrozen{Reason: reason, AuthorizedBy: authorizedBy}, nil)
	return nil
}

// Apply folds one event payload into state. It must stay deterministic:
// replaying the same sequence always yields the same state.
func (a *Account) Apply(payload EventPayload) {
	switch p := payload.(type) {
	case *AccountOpened:
		a.UserID = p.UserID
	case *MoneyCredited:
		a.Balances[p.AssetCode] += p.Amount
	case *MoneyDebited:
		a.Balances[p.AssetCode] -= p.Amount
	case *AccountFrozen:
		a.Frozen = true
		a.FrozenReason = p.Reason
	case *AccountUnfrozen:
		a.Frozen = false
		a.FrozenReason = ""
	}
}

// Replay folds committed history into the aggregate without recording.
func (a *Account) Replay(events []Event) {
	for _, e := range events {
		a.Apply(e.Payload)
		a.Version = e.Version
	}
}

func (a *Account) CurrentVersion() int64 { return a.Version }

func (a *Account) SnapshotState() ([]byte, error) { return json.Marshal(a) }

func (a *Account) RestoreSnapshot(state []byte, version int64) error {
	if err := json.Unmarshal(state, a); err != nil {
		return err
	}
	a.Version = version
	return nil
}

func (a *Account) recordThat(payload EventPayload, metadata map[string]string) {
	a.changes = append(a.changes, Event{
		AggregateID: a.ID,
		Version:     a.Version + int64(len(a.changes)) + 1,
		Type:        payload.EventType(),
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
		Metadata:    metadata,
	})
	a.Apply(payload)
}
