package economy

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrBalanceConflict is returned by Save when the wallet changed since the record was loaded.
var ErrBalanceConflict = errors.New("wallet changed since it was read")

// BalanceRecord is the persisted state of one wallet.
type BalanceRecord struct {
	Balance       int64 `json:"balance"`
	UpdateTimeSec int64 `json:"update_time_sec,omitempty"`
	// ResetTimeSec is when the currency's reset schedule was last applied.
	ResetTimeSec int64 `json:"reset_time_sec,omitempty"`
	// Version is the storage version the record was loaded at, empty for a wallet never saved.
	Version string `json:"-"`
}

// BalanceStore persists wallet balances keyed by owner and currency.
//
// The wallet system serialises calls per wallet inside one process only. NakamaStore checks the
// record version on Save and fails with ErrBalanceConflict when another node wrote first, so it
// is safe on a cluster. The memory, Redis and Postgres stores overwrite unconditionally and need
// a single writer process per wallet.
type BalanceStore interface {
	// Load returns nil without error when the wallet was never saved.
	Load(ctx context.Context, owner, currencyID string) (*BalanceRecord, error)
	Save(ctx context.Context, owner, currencyID string, record *BalanceRecord) error
	// List returns every saved wallet of an owner keyed by currency ID.
	List(ctx context.Context, owner string) (map[string]*BalanceRecord, error)
	Close() error
}

type memoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]BalanceRecord
}

// NewMemoryStore returns a process local store, used for tests and single node setups.
func NewMemoryStore() BalanceStore {
	return &memoryStore{records: make(map[string]map[string]BalanceRecord)}
}

func (s *memoryStore) Load(_ context.Context, owner, currencyID string) (*BalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, found := s.records[owner][currencyID]
	if !found {
		return nil, nil
	}
	return &record, nil
}

func (s *memoryStore) Save(_ context.Context, owner, currencyID string, record *BalanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallets, found := s.records[owner]
	if !found {
		wallets = make(map[string]BalanceRecord)
		s.records[owner] = wallets
	}
	wallets[currencyID] = *record
	return nil
}

func (s *memoryStore) List(_ context.Context, owner string) (map[string]*BalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]*BalanceRecord, len(s.records[owner]))
	for id, record := range s.records[owner] {
		record := record
		result[id] = &record
	}
	return result, nil
}

func (s *memoryStore) Close() error {
	return nil
}
