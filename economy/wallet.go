package economy

import (
	"math"
	"sync"
	"sync/atomic"
)

// Wallet holds the balance of a single currency for one owner.
//
// Every add or take follows the same flow: resolve the currency, build a context, check
// permissions, mutate, then notify. Mutations are serialised per wallet. Permission checks run
// while the wallet is locked and must not add to or take from the same wallet; reading
// Balance is safe. Hooks run after the lock is released.
type Wallet struct {
	owner      string
	currencyID string
	registry   *Registry

	hooks          Notifier
	addConditions  []func(add AddContext) OperationResult
	takeConditions []func(take TakeContext) OperationResult

	mu      sync.Mutex
	balance atomic.Int64
}

type WalletOption func(*Wallet)

// WithBalance sets the starting balance. Negative values start at zero.
func WithBalance(balance int64) WalletOption {
	return func(w *Wallet) {
		w.balance.Store(max(balance, 0))
	}
}

// WithHooks sets wallet level hooks. They run before the currency's hooks.
func WithHooks(hooks Notifier) WalletOption {
	return func(w *Wallet) {
		w.hooks = hooks
	}
}

// WithAddCondition adds a wallet level rule checked before the currency's CanBeAdded.
func WithAddCondition(fn func(add AddContext) OperationResult) WalletOption {
	return func(w *Wallet) {
		w.addConditions = append(w.addConditions, fn)
	}
}

// WithTakeCondition adds a wallet level rule checked before the currency's CanBeTaken.
func WithTakeCondition(fn func(take TakeContext) OperationResult) WalletOption {
	return func(w *Wallet) {
		w.takeConditions = append(w.takeConditions, fn)
	}
}

// NewWallet creates a wallet for currencyID. The currency is resolved through the registry on
// every operation, not here.
func NewWallet(registry *Registry, owner, currencyID string, opts ...WalletOption) *Wallet {
	w := &Wallet{
		owner:      owner,
		currencyID: currencyID,
		registry:   registry,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Wallet) Owner() string {
	return w.owner
}

func (w *Wallet) CurrencyID() string {
	return w.currencyID
}

// Balance returns the current balance.
func (w *Wallet) Balance() int64 {
	return w.balance.Load()
}

// Has reports whether the wallet holds at least amount.
func (w *Wallet) Has(amount int64) bool {
	return w.Balance() >= amount
}

// CanAdd runs the wallet's add conditions and then the currency's CanBeAdded.
func (w *Wallet) CanAdd(add AddContext) OperationResult {
	for _, condition := range w.addConditions {
		if result := condition(add); !result.OK() {
			return result
		}
	}
	return add.Currency.CanBeAdded(add)
}

// CanTake fails with NotEnoughCurrency when the request exceeds the balance, then runs the
// wallet's take conditions and the currency's CanBeTaken.
func (w *Wallet) CanTake(take TakeContext) OperationResult {
	if take.Balance < take.Amount {
		return NotEnoughCurrency()
	}
	for _, condition := range w.takeConditions {
		if result := condition(take); !result.OK() {
			return result
		}
	}
	return take.Currency.CanBeTaken(take)
}

// TryAdd adds amount to the wallet. The result payload is the amount that was not added, which
// is non-zero when the currency caps the balance or the balance would overflow. A rejected add
// leaves the balance untouched and reports the whole amount as left.
func (w *Wallet) TryAdd(amount int64, flags ModifyFlags, source ActionSource) Result[int64] {
	currency := w.registry.MustGet(w.currencyID)

	w.mu.Lock()
	add := AddContext{Currency: currency, Wallet: w, Amount: amount, Balance: w.balance.Load()}

	permission := Permitted()
	if amount < 0 {
		permission = InvalidAmount()
	} else if !flags.Has(FlagIgnoreConditions) {
		permission = w.CanAdd(add)
	}
	if !permission.OK() {
		w.mu.Unlock()
		if source != ActionSourceInternal {
			w.notifyAddFailed(add, permission)
		}
		return WithData(permission, amount)
	}

	added := w.add(currency, add.Balance, amount)
	w.mu.Unlock()

	result := CurrencyAdded()
	left := amount - added
	if source != ActionSourceInternal {
		w.notifyAdded(add.WithAmount(added), result, left)
	}
	return WithData(result, left)
}

// TryTake takes amount from the wallet. Without FlagIgnoreConditions a request larger than the
// balance fails with NotEnoughCurrency. With it, the take is clamped to the balance and the
// shortfall is reported as the amount left. The balance never goes negative.
func (w *Wallet) TryTake(amount int64, flags ModifyFlags, source ActionSource) Result[int64] {
	currency := w.registry.MustGet(w.currencyID)

	w.mu.Lock()
	take := TakeContext{Currency: currency, Wallet: w, Amount: amount, Balance: w.balance.Load()}

	permission := Permitted()
	if amount < 0 {
		permission = InvalidAmount()
	} else if !flags.Has(FlagIgnoreConditions) {
		permission = w.CanTake(take)
	}
	if !permission.OK() {
		w.mu.Unlock()
		if source != ActionSourceInternal {
			w.notifyTakeFailed(take, permission)
		}
		return WithData(permission, amount)
	}

	taken := min(take.Balance, amount)
	w.balance.Store(take.Balance - taken)
	w.mu.Unlock()

	result := CurrencyTaken()
	left := amount - taken
	if source != ActionSourceInternal {
		w.notifyTaken(take.WithAmount(taken), result, left)
	}
	return WithData(result, left)
}

// add applies the currency's limiter and saturates at math.MaxInt64. Called with mu held.
func (w *Wallet) add(currency Currency, balance, amount int64) int64 {
	accepted := amount
	if limiter, ok := currency.(Limiter); ok {
		accepted = min(max(limiter.Accept(balance, amount), 0), amount)
	}
	if accepted > math.MaxInt64-balance {
		accepted = math.MaxInt64 - balance
	}
	w.balance.Store(balance + accepted)
	return accepted
}

// reset overwrites the balance without checks or hooks and returns the previous value.
func (w *Wallet) reset(balance int64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance.Swap(max(balance, 0))
}

func (w *Wallet) notifyAdded(add AddContext, result OperationResult, left int64) {
	if w.hooks != nil {
		w.hooks.OnAdded(add, result, left)
	}
	add.Currency.OnAdded(add, result, left)
}

func (w *Wallet) notifyAddFailed(add AddContext, result OperationResult) {
	if w.hooks != nil {
		w.hooks.OnAddFailed(add, result)
	}
	add.Currency.OnAddFailed(add, result)
}

func (w *Wallet) notifyTaken(take TakeContext, result OperationResult, left int64) {
	if w.hooks != nil {
		w.hooks.OnTaken(take, result, left)
	}
	take.Currency.OnTaken(take, result, left)
}

func (w *Wallet) notifyTakeFailed(take TakeContext, result OperationResult) {
	if w.hooks != nil {
		w.hooks.OnTakeFailed(take, result)
	}
	take.Currency.OnTakeFailed(take, result)
}
