package economy

import (
	"context"
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/pkg/errors"
)

const (
	walletLockStripes = 256
	// Saves rejected because another node wrote the wallet first are retried from a fresh load.
	walletSaveAttempts = 3
)

// NakamaWalletSystem implements the WalletSystem interface on top of a BalanceStore, which is
// Nakama storage unless the config picks another driver.
type NakamaWalletSystem struct {
	config   *WalletsConfig
	registry *Registry
	store    BalanceStore
	journal  Journal
	now      func() time.Time

	// Calls for the same owner and currency are serialised through one of the stripes.
	stripes [walletLockStripes]sync.Mutex

	publishersMu sync.RWMutex
	publishers   []Publisher
}

var _ WalletSystem = (*NakamaWalletSystem)(nil)

// NewNakamaWalletSystem creates a wallet system from its config. Code currencies passed with
// WithCurrencies are registered before the configured ones.
func NewNakamaWalletSystem(ctx context.Context, nk runtime.NakamaModule, config *WalletsConfig, opts ...WalletSystemOption) (*NakamaWalletSystem, error) {
	if config == nil {
		config = &WalletsConfig{}
	}
	options := &walletSystemOptions{now: time.Now}
	for _, opt := range opts {
		opt(options)
	}

	registry, err := NewRegistry(options.currencies...)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(config.Currencies))
	for id := range config.Currencies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		currency, err := NewConfigCurrency(id, config.Currencies[id])
		if err != nil {
			return nil, err
		}
		if err := registry.Register(currency); err != nil {
			return nil, errors.Wrapf(err, "currency %q", id)
		}
	}

	store := options.store
	if store == nil {
		if store, err = newConfiguredStore(ctx, nk, config.Store); err != nil {
			return nil, err
		}
	}

	journal := options.journal
	if journal == nil {
		journal = nopJournal{}
		if config.Journal != nil && config.Journal.Enabled {
			if journal, err = NewWALJournal(config.Journal.Dir); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
	}

	return &NakamaWalletSystem{
		config:   config,
		registry: registry,
		store:    store,
		journal:  journal,
		now:      options.now,
	}, nil
}

func newConfiguredStore(ctx context.Context, nk runtime.NakamaModule, config *StoreConfig) (BalanceStore, error) {
	if config == nil {
		return NewNakamaStore(nk, ""), nil
	}
	switch config.Driver {
	case "", "nakama":
		return NewNakamaStore(nk, config.Namespace), nil
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		client, err := NewRedisClient(ctx, os.ExpandEnv(config.URL))
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, config.Namespace), nil
	case "postgres":
		return NewPostgresStore(ctx, os.ExpandEnv(config.URL))
	default:
		return nil, errors.Wrapf(ErrConfigInvalid, "unknown store driver %q", config.Driver)
	}
}

func (s *NakamaWalletSystem) GetType() SystemType {
	return SystemTypeWallets
}

func (s *NakamaWalletSystem) GetConfig() any {
	return s.config
}

func (s *NakamaWalletSystem) Registry() *Registry {
	return s.registry
}

func (s *NakamaWalletSystem) AddPublisher(publisher Publisher) {
	s.publishersMu.Lock()
	defer s.publishersMu.Unlock()
	s.publishers = append(s.publishers, publisher)
}

func (s *NakamaWalletSystem) Close() error {
	journalErr := s.journal.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return journalErr
}

func (s *NakamaWalletSystem) Get(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (map[string]int64, error) {
	if userID == "" {
		return nil, ErrNoSessionUser
	}
	records, err := s.store.List(ctx, userID)
	if err != nil {
		logger.Error("Failed to list wallets for user %s: %v", userID, err)
		return nil, ErrInternal
	}

	now := s.now()
	wallet := make(map[string]int64)
	for _, currency := range s.registry.List() {
		record := records[currency.ID()]
		if record == nil {
			record = s.newRecord(currency, now)
		}
		// Resets are only shown here; the next mutation persists them.
		applyReset(currency, record, now)
		wallet[currency.ID()] = record.Balance
	}
	return wallet, nil
}

func (s *NakamaWalletSystem) Has(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, currencyID string, amount int64) (bool, error) {
	if userID == "" {
		return false, ErrNoSessionUser
	}
	currency, found := s.registry.Get(currencyID)
	if !found {
		return false, ErrCurrencyNotFound
	}
	record, _, err := s.loadRecord(ctx, userID, currency)
	if err != nil {
		logger.Error("Failed to load wallet %s for user %s: %v", currencyID, userID, err)
		return false, ErrInternal
	}
	return record.Balance >= amount, nil
}

func (s *NakamaWalletSystem) Add(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, currencyID string, amount int64, flags ModifyFlags, source ActionSource) (Result[int64], int64, error) {
	if userID == "" {
		return Result[int64]{}, 0, ErrNoSessionUser
	}
	return s.modify(ctx, logger, nk, userID, currencyID, JournalOperationAdd, amount, flags, source)
}

func (s *NakamaWalletSystem) Take(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, currencyID string, amount int64, flags ModifyFlags, source ActionSource) (Result[int64], int64, error) {
	if userID == "" {
		return Result[int64]{}, 0, ErrNoSessionUser
	}
	return s.modify(ctx, logger, nk, userID, currencyID, JournalOperationTake, amount, flags, source)
}

func (s *NakamaWalletSystem) GlobalGet(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule) (map[string]int64, error) {
	return s.Get(ctx, logger, nk, GlobalOwnerID)
}

func (s *NakamaWalletSystem) GlobalAdd(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, currencyID string, amount int64, flags ModifyFlags, source ActionSource) (Result[int64], int64, error) {
	return s.modify(ctx, logger, nk, GlobalOwnerID, currencyID, JournalOperationAdd, amount, flags, source)
}

func (s *NakamaWalletSystem) GlobalTake(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, currencyID string, amount int64, flags ModifyFlags, source ActionSource) (Result[int64], int64, error) {
	return s.modify(ctx, logger, nk, GlobalOwnerID, currencyID, JournalOperationTake, amount, flags, source)
}

func (s *NakamaWalletSystem) Transfer(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, fromUserID, toUserID, currencyID string, amount int64, flags ModifyFlags, source ActionSource) (Result[int64], error) {
	if fromUserID == "" || toUserID == "" {
		return Result[int64]{}, ErrNoSessionUser
	}
	if fromUserID == toUserID {
		return Result[int64]{}, ErrBadInput
	}
	currency, found := s.registry.Get(currencyID)
	if !found {
		return Result[int64]{}, ErrCurrencyNotFound
	}

	var hooks []func()
	var events []*publishedEvents
	attempt := func() (Result[int64], error) {
		hooks, events = nil, nil
		unlock := s.lock(walletKey(fromUserID, currencyID), walletKey(toUserID, currencyID))
		defer unlock()

		now := s.now()
		from, err := s.loadWallet(ctx, fromUserID, currency)
		if err != nil {
			logger.Error("Failed to load wallet %s for user %s: %v", currencyID, fromUserID, err)
			return Result[int64]{}, ErrInternal
		}
		to, err := s.loadWallet(ctx, toUserID, currency)
		if err != nil {
			logger.Error("Failed to load wallet %s for user %s: %v", currencyID, toUserID, err)
			return Result[int64]{}, ErrInternal
		}
		fromBefore, toBefore := from.record.Balance, to.record.Balance

		// Both legs run silently; hooks only hear about what was saved.
		taken := from.wallet.TryTake(amount, flags, ActionSourceInternal)
		if !taken.OK() {
			hooks = append(hooks, takeHook(from.wallet, currency, fromBefore, amount, taken, source))
			events = append(events, s.takeEvent(fromUserID, currency, amount, taken, from.wallet.Balance(), source, now))
			s.persistResets(ctx, logger, now, from, to)
			return taken, nil
		}
		moving := amount - taken.Data

		added := to.wallet.TryAdd(moving, flags, ActionSourceInternal)
		if !added.OK() {
			// Nothing was saved yet, so dropping the in-memory take is the rollback.
			from.wallet.reset(fromBefore)
			hooks = append(hooks, addHook(to.wallet, currency, toBefore, moving, added, source))
			events = append(events, s.addEvent(toUserID, currency, moving, added, to.wallet.Balance(), source, now))
			s.persistResets(ctx, logger, now, from, to)
			return WithData(added.OperationResult, amount), nil
		}
		if added.Data > 0 {
			from.wallet.reset(from.wallet.Balance() + added.Data)
		}
		moved := moving - added.Data
		sent := WithData(taken.OperationResult, amount-moved)

		from.record.Balance, from.record.UpdateTimeSec = from.wallet.Balance(), now.Unix()
		to.record.Balance, to.record.UpdateTimeSec = to.wallet.Balance(), now.Unix()
		if err := s.store.Save(ctx, fromUserID, currencyID, from.record); err != nil {
			if errors.Is(err, ErrBalanceConflict) {
				return Result[int64]{}, err
			}
			logger.Error("Failed to save wallet %s for user %s: %v", currencyID, fromUserID, err)
			return Result[int64]{}, ErrInternal
		}
		if err := s.store.Save(ctx, toUserID, currencyID, to.record); err != nil {
			logger.Error("Failed to save wallet %s for user %s: %v", currencyID, toUserID, err)
			// Put the sender back so the currency is not lost.
			from.record.Balance = fromBefore
			if err := s.store.Save(ctx, fromUserID, currencyID, from.record); err != nil {
				logger.Error("Failed to restore wallet %s for user %s after transfer: %v", currencyID, fromUserID, err)
			}
			return Result[int64]{}, ErrInternal
		}
		s.journalResets(logger, now, from, to)
		s.appendJournal(logger, &JournalEntry{Owner: fromUserID, Currency: currencyID, Operation: JournalOperationTake, Requested: amount, Applied: moved, Left: amount - moved, Balance: from.record.Balance, Source: source, Flags: flags, TimeSec: now.Unix()})
		s.appendJournal(logger, &JournalEntry{Owner: toUserID, Currency: currencyID, Operation: JournalOperationAdd, Requested: moving, Applied: moved, Left: added.Data, Balance: to.record.Balance, Source: source, Flags: flags, TimeSec: now.Unix()})

		hooks = append(hooks,
			takeHook(from.wallet, currency, fromBefore, amount, sent, source),
			addHook(to.wallet, currency, toBefore, moving, added, source))
		events = append(events,
			s.takeEvent(fromUserID, currency, amount, sent, from.record.Balance, source, now),
			s.addEvent(toUserID, currency, moving, added, to.record.Balance, source, now))
		return sent, nil
	}
	result, err := attempt()
	for tries := 1; errors.Is(err, ErrBalanceConflict) && tries < walletSaveAttempts; tries++ {
		logger.Debug("Retrying transfer of %s from user %s after a concurrent write", currencyID, fromUserID)
		result, err = attempt()
	}
	if err != nil {
		if errors.Is(err, ErrBalanceConflict) {
			logger.Error("Failed to save wallet %s for user %s: %v", currencyID, fromUserID, err)
			return Result[int64]{}, ErrInternal
		}
		return result, err
	}

	runHooks(hooks...)
	for _, published := range events {
		s.publish(ctx, logger, nk, published)
	}
	return result, nil
}

// modify runs one add or take: lock, load, reset, mutate, save, journal and finally run hooks
// and publish outside the lock.
func (s *NakamaWalletSystem) modify(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, owner, currencyID, operation string, amount int64, flags ModifyFlags, source ActionSource) (Result[int64], int64, error) {
	currency, found := s.registry.Get(currencyID)
	if !found {
		return Result[int64]{}, 0, ErrCurrencyNotFound
	}

	var hook func()
	var event *publishedEvents
	attempt := func() (Result[int64], int64, error) {
		unlock := s.lock(walletKey(owner, currencyID))
		defer unlock()

		now := s.now()
		loaded, err := s.loadWallet(ctx, owner, currency)
		if err != nil {
			logger.Error("Failed to load wallet %s for user %s: %v", currencyID, owner, err)
			return Result[int64]{}, 0, ErrInternal
		}
		wallet, record := loaded.wallet, loaded.record
		previous := record.Balance

		var result Result[int64]
		if operation == JournalOperationAdd {
			result = wallet.TryAdd(amount, flags, ActionSourceInternal)
			hook = addHook(wallet, currency, previous, amount, result, source)
			event = s.addEvent(owner, currency, amount, result, wallet.Balance(), source, now)
		} else {
			result = wallet.TryTake(amount, flags, ActionSourceInternal)
			hook = takeHook(wallet, currency, previous, amount, result, source)
			event = s.takeEvent(owner, currency, amount, result, wallet.Balance(), source, now)
		}

		if !result.OK() {
			s.persistResets(ctx, logger, now, loaded)
			return result, wallet.Balance(), nil
		}

		record.Balance, record.UpdateTimeSec = wallet.Balance(), now.Unix()
		if err := s.store.Save(ctx, owner, currencyID, record); err != nil {
			if errors.Is(err, ErrBalanceConflict) {
				return Result[int64]{}, 0, err
			}
			logger.Error("Failed to save wallet %s for user %s: %v", currencyID, owner, err)
			return Result[int64]{}, 0, ErrInternal
		}
		s.journalResets(logger, now, loaded)
		s.appendJournal(logger, &JournalEntry{
			Owner:     owner,
			Currency:  currencyID,
			Operation: operation,
			Requested: amount,
			Applied:   amount - result.Data,
			Left:      result.Data,
			Balance:   record.Balance,
			Source:    source,
			Flags:     flags,
			TimeSec:   now.Unix(),
		})
		return result, record.Balance, nil
	}
	result, balance, err := attempt()
	for tries := 1; errors.Is(err, ErrBalanceConflict) && tries < walletSaveAttempts; tries++ {
		logger.Debug("Retrying %s of %s for user %s after a concurrent write", operation, currencyID, owner)
		result, balance, err = attempt()
	}
	if err != nil {
		if errors.Is(err, ErrBalanceConflict) {
			logger.Error("Failed to save wallet %s for user %s: %v", currencyID, owner, err)
			return Result[int64]{}, 0, ErrInternal
		}
		return result, balance, err
	}

	runHooks(hook)
	s.publish(ctx, logger, nk, event)
	return result, balance, nil
}

// addHook returns the currency and wallet notification for an add whose outcome is final, or nil
// for internal calls. before is the balance the add started from.
func addHook(wallet *Wallet, currency Currency, before, requested int64, result Result[int64], source ActionSource) func() {
	if source == ActionSourceInternal {
		return nil
	}
	add := AddContext{Currency: currency, Wallet: wallet, Amount: requested, Balance: before}
	if !result.OK() {
		return func() { wallet.notifyAddFailed(add, result.OperationResult) }
	}
	return func() { wallet.notifyAdded(add.WithAmount(requested-result.Data), result.OperationResult, result.Data) }
}

func takeHook(wallet *Wallet, currency Currency, before, requested int64, result Result[int64], source ActionSource) func() {
	if source == ActionSourceInternal {
		return nil
	}
	take := TakeContext{Currency: currency, Wallet: wallet, Amount: requested, Balance: before}
	if !result.OK() {
		return func() { wallet.notifyTakeFailed(take, result.OperationResult) }
	}
	return func() { wallet.notifyTaken(take.WithAmount(requested-result.Data), result.OperationResult, result.Data) }
}

func runHooks(hooks ...func()) {
	for _, hook := range hooks {
		if hook != nil {
			hook()
		}
	}
}

// loadedWallet is a wallet built from its stored record for the length of one call.
type loadedWallet struct {
	wallet       *Wallet
	record       *BalanceRecord
	resetApplied bool
}

// loadWallet returns the wallet for owner with its stored balance and any due reset applied.
// The store is the only copy of a balance, global owners included.
func (s *NakamaWalletSystem) loadWallet(ctx context.Context, owner string, currency Currency) (*loadedWallet, error) {
	record, resetApplied, err := s.loadRecord(ctx, owner, currency)
	if err != nil {
		return nil, err
	}
	return &loadedWallet{
		wallet:       NewWallet(s.registry, owner, currency.ID(), WithBalance(record.Balance)),
		record:       record,
		resetApplied: resetApplied,
	}, nil
}

func (s *NakamaWalletSystem) loadRecord(ctx context.Context, owner string, currency Currency) (*BalanceRecord, bool, error) {
	record, err := s.store.Load(ctx, owner, currency.ID())
	if err != nil {
		return nil, false, err
	}
	now := s.now()
	if record == nil {
		record = s.newRecord(currency, now)
	}
	return record, applyReset(currency, record, now), nil
}

// newRecord starts a wallet at the currency's start balance. A new wallet counts as freshly
// reset so the first scheduled reset is the next one from now.
func (s *NakamaWalletSystem) newRecord(currency Currency, now time.Time) *BalanceRecord {
	return &BalanceRecord{
		Balance:      startBalance(currency),
		ResetTimeSec: now.Unix(),
	}
}

// applyReset sets the balance to the reset balance when the schedule fired since the last reset.
func applyReset(currency Currency, record *BalanceRecord, now time.Time) bool {
	resetter, ok := currency.(Resetter)
	if !ok {
		return false
	}
	next, ok := resetter.NextReset(time.Unix(record.ResetTimeSec, 0))
	if !ok || next.After(now) {
		return false
	}
	record.Balance = resetter.ResetBalance()
	record.ResetTimeSec = now.Unix()
	return true
}

// persistResets saves wallets whose reset was applied while the operation itself failed.
func (s *NakamaWalletSystem) persistResets(ctx context.Context, logger runtime.Logger, now time.Time, wallets ...*loadedWallet) {
	for _, loaded := range wallets {
		if !loaded.resetApplied {
			continue
		}
		owner, currencyID := loaded.wallet.Owner(), loaded.wallet.CurrencyID()
		loaded.record.UpdateTimeSec = now.Unix()
		if err := s.store.Save(ctx, owner, currencyID, loaded.record); err != nil {
			logger.Warn("Failed to save reset of wallet %s for user %s: %v", currencyID, owner, err)
			loaded.resetApplied = false
		}
	}
	s.journalResets(logger, now, wallets...)
}

func (s *NakamaWalletSystem) journalResets(logger runtime.Logger, now time.Time, wallets ...*loadedWallet) {
	for _, loaded := range wallets {
		if !loaded.resetApplied {
			continue
		}
		s.appendJournal(logger, &JournalEntry{
			Owner:     loaded.wallet.Owner(),
			Currency:  loaded.wallet.CurrencyID(),
			Operation: JournalOperationReset,
			Balance:   loaded.record.Balance,
			Source:    ActionSourceInternal,
			TimeSec:   now.Unix(),
		})
	}
}

// The balance is already persisted when the journal is written, so a failure is only logged.
func (s *NakamaWalletSystem) appendJournal(logger runtime.Logger, entry *JournalEntry) {
	if err := s.journal.Append(entry); err != nil {
		logger.Warn("Failed to journal %s of %s for user %s: %v", entry.Operation, entry.Currency, entry.Owner, err)
	}
}

type publishedEvents struct {
	userID string
	events []*PublisherEvent
}

func (s *NakamaWalletSystem) addEvent(owner string, currency Currency, amount int64, result Result[int64], balance int64, source ActionSource, now time.Time) *publishedEvents {
	if source == ActionSourceInternal {
		return nil
	}
	name := EventCurrencyAdded
	if !result.OK() {
		name = EventCurrencyAddFailed
	}
	return &publishedEvents{userID: owner, events: []*PublisherEvent{newCurrencyEvent(name, currency, amount, result, balance, now)}}
}

func (s *NakamaWalletSystem) takeEvent(owner string, currency Currency, amount int64, result Result[int64], balance int64, source ActionSource, now time.Time) *publishedEvents {
	if source == ActionSourceInternal {
		return nil
	}
	name := EventCurrencyTaken
	if !result.OK() {
		name = EventCurrencyTakeFailed
	}
	return &publishedEvents{userID: owner, events: []*PublisherEvent{newCurrencyEvent(name, currency, amount, result, balance, now)}}
}

func newCurrencyEvent(name string, currency Currency, amount int64, result Result[int64], balance int64, now time.Time) *PublisherEvent {
	applied := int64(0)
	if result.OK() {
		applied = amount - result.Data
	}
	return &PublisherEvent{
		Name:      name,
		Id:        currency.ID(),
		Timestamp: now.Unix(),
		Metadata: map[string]string{
			"requested": strconv.FormatInt(amount, 10),
			"left":      strconv.FormatInt(result.Data, 10),
			"balance":   strconv.FormatInt(balance, 10),
			"result":    result.String(),
		},
		Value:    strconv.FormatInt(applied, 10),
		Result:   result.OperationResult,
		SourceId: currency.ID(),
		Source:   currency,
	}
}

func (s *NakamaWalletSystem) publish(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, published *publishedEvents) {
	if published == nil || len(published.events) == 0 {
		return
	}
	s.publishersMu.RLock()
	publishers := s.publishers
	s.publishersMu.RUnlock()

	for _, publisher := range publishers {
		publisher.Send(ctx, logger, nk, published.userID, published.events)
	}
}

func walletKey(owner, currencyID string) string {
	return owner + "/" + currencyID
}

// lock takes the stripes of every key in a fixed order and returns the matching unlock.
func (s *NakamaWalletSystem) lock(keys ...string) func() {
	indexes := make([]int, 0, len(keys))
	for _, key := range keys {
		h := fnv.New32a()
		_, _ = h.Write([]byte(key))
		index := int(h.Sum32() % walletLockStripes)
		duplicate := false
		for _, seen := range indexes {
			if seen == index {
				duplicate = true
				break
			}
		}
		if !duplicate {
			indexes = append(indexes, index)
		}
	}
	sort.Ints(indexes)
	for _, index := range indexes {
		s.stripes[index].Lock()
	}
	return func() {
		for i := len(indexes) - 1; i >= 0; i-- {
			s.stripes[indexes[i]].Unlock()
		}
	}
}
