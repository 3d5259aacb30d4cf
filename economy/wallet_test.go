package economy

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hookCurrency records every hook call and can be told to deny adds or takes.
type hookCurrency struct {
	BaseCurrency
	denyAdd  bool
	denyTake bool

	mu    sync.Mutex
	calls []string
}

func newHookCurrency(id string) *hookCurrency {
	return &hookCurrency{BaseCurrency: BaseCurrency{Name: id}}
}

func (c *hookCurrency) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *hookCurrency) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *hookCurrency) CanBeAdded(AddContext) OperationResult {
	if c.denyAdd {
		return CurrencyDenied()
	}
	return Permitted()
}

func (c *hookCurrency) CanBeTaken(TakeContext) OperationResult {
	if c.denyTake {
		return CurrencyDenied()
	}
	return Permitted()
}

func (c *hookCurrency) OnAdded(AddContext, OperationResult, int64)  { c.record("currency:added") }
func (c *hookCurrency) OnAddFailed(AddContext, OperationResult)     { c.record("currency:add_failed") }
func (c *hookCurrency) OnTaken(TakeContext, OperationResult, int64) { c.record("currency:taken") }
func (c *hookCurrency) OnTakeFailed(TakeContext, OperationResult)   { c.record("currency:take_failed") }

// cappedCurrency accepts at most cap in total.
type cappedCurrency struct {
	BaseCurrency
	cap int64
}

func (c *cappedCurrency) Accept(balance, amount int64) int64 {
	return c.cap - balance
}

func newTestWallet(t *testing.T, currency Currency, opts ...WalletOption) *Wallet {
	registry, err := NewRegistry(currency)
	require.NoError(t, err)
	return NewWallet(registry, "user1", currency.ID(), opts...)
}

func TestWallet_AddIncreasesBalance(t *testing.T) {
	wallet := newTestWallet(t, NewBaseCurrency("gold"), WithBalance(5))

	result := wallet.TryAdd(7, FlagsNone, ActionSourceExternal)

	assert.True(t, result.OK())
	assert.Equal(t, int64(0), result.Data)
	assert.Equal(t, int64(12), wallet.Balance())
}

func TestWallet_TakeMoreThanBalanceFails(t *testing.T) {
	wallet := newTestWallet(t, NewBaseCurrency("gold"), WithBalance(10))

	result := wallet.TryTake(15, FlagsNone, ActionSourceExternal)

	assert.False(t, result.OK())
	assert.True(t, result.Is(CodeNotEnoughCurrency))
	assert.Equal(t, int64(15), result.Data)
	assert.Equal(t, int64(10), wallet.Balance())
}

func TestWallet_TakeIgnoringConditionsClampsToBalance(t *testing.T) {
	wallet := newTestWallet(t, NewBaseCurrency("gold"), WithBalance(10))

	result := wallet.TryTake(15, FlagIgnoreConditions, ActionSourceExternal)

	assert.True(t, result.OK())
	assert.Equal(t, int64(5), result.Data)
	assert.Equal(t, int64(0), wallet.Balance())
}

func TestWallet_CanTakeFailsWhenRequestExceedsBalance(t *testing.T) {
	currency := newHookCurrency("gold")
	wallet := newTestWallet(t, currency, WithBalance(3))

	for _, source := range []ActionSource{ActionSourceExternal, ActionSourceInternal} {
		result := wallet.CanTake(TakeContext{Currency: currency, Wallet: wallet, Amount: 4, Balance: wallet.Balance()})
		assert.True(t, result.Is(CodeNotEnoughCurrency))

		taken := wallet.TryTake(4, FlagsNone, source)
		assert.False(t, taken.OK(), "source %s", source)
		assert.Equal(t, int64(3), wallet.Balance())
	}
}

func TestWallet_TakeNeverGoesNegative(t *testing.T) {
	amounts := []int64{0, 1, 9, 10, 11, 1000, math.MaxInt64}
	for _, flags := range []ModifyFlags{FlagsNone, FlagIgnoreConditions} {
		for _, amount := range amounts {
			wallet := newTestWallet(t, NewBaseCurrency("gold"), WithBalance(10))
			result := wallet.TryTake(amount, flags, ActionSourceExternal)

			assert.GreaterOrEqual(t, wallet.Balance(), int64(0))
			if result.OK() {
				assert.Equal(t, max(0, 10-amount), wallet.Balance())
			} else {
				assert.Equal(t, int64(10), wallet.Balance())
			}
		}
	}
}

func TestWallet_RoundTripFromZero(t *testing.T) {
	wallet := newTestWallet(t, NewBaseCurrency("gold"))

	added := wallet.TryAdd(42, FlagsNone, ActionSourceExternal)
	taken := wallet.TryTake(42, FlagsNone, ActionSourceExternal)

	assert.True(t, added.OK())
	assert.True(t, taken.OK())
	assert.Equal(t, int64(0), wallet.Balance())
}

func TestWallet_NegativeAmountsAreInvalid(t *testing.T) {
	wallet := newTestWallet(t, NewBaseCurrency("gold"), WithBalance(10))

	for _, flags := range []ModifyFlags{FlagsNone, FlagIgnoreConditions} {
		added := wallet.TryAdd(-1, flags, ActionSourceExternal)
		taken := wallet.TryTake(-1, flags, ActionSourceExternal)

		assert.True(t, added.Is(CodeInvalidAmount))
		assert.False(t, added.OK())
		assert.True(t, taken.Is(CodeInvalidAmount))
		assert.False(t, taken.OK())
	}
	assert.Equal(t, int64(10), wallet.Balance())
}

func TestWallet_CurrencyDenial(t *testing.T) {
	currency := newHookCurrency("gold")
	currency.denyAdd = true
	currency.denyTake = true
	wallet := newTestWallet(t, currency, WithBalance(10))

	added := wallet.TryAdd(5, FlagsNone, ActionSourceExternal)
	taken := wallet.TryTake(5, FlagsNone, ActionSourceExternal)

	assert.True(t, added.Is(CodeCurrencyDenied))
	assert.True(t, taken.Is(CodeCurrencyDenied))
	assert.Equal(t, int64(10), wallet.Balance())
	assert.Equal(t, []string{"currency:add_failed", "currency:take_failed"}, currency.recorded())
}

func TestWallet_IgnoreConditionsBypassesDenial(t *testing.T) {
	currency := newHookCurrency("gold")
	currency.denyAdd = true
	currency.denyTake = true
	wallet := newTestWallet(t, currency, WithBalance(10))

	assert.True(t, wallet.TryAdd(5, FlagIgnoreConditions, ActionSourceExternal).OK())
	assert.True(t, wallet.TryTake(3, FlagIgnoreConditions, ActionSourceExternal).OK())
	assert.Equal(t, int64(12), wallet.Balance())
}

func TestWallet_InternalSourceIsSilentButChecked(t *testing.T) {
	currency := newHookCurrency("gold")
	wallet := newTestWallet(t, currency, WithBalance(10))

	assert.True(t, wallet.TryAdd(5, FlagsNone, ActionSourceInternal).OK())
	assert.True(t, wallet.TryTake(5, FlagsNone, ActionSourceInternal).OK())
	assert.False(t, wallet.TryTake(100, FlagsNone, ActionSourceInternal).OK())

	currency.denyAdd = true
	assert.True(t, wallet.TryAdd(1, FlagsNone, ActionSourceInternal).Is(CodeCurrencyDenied))

	assert.Empty(t, currency.recorded())
	assert.Equal(t, int64(10), wallet.Balance())
}

func TestWallet_HooksRunWalletFirst(t *testing.T) {
	currency := newHookCurrency("gold")
	var amounts []int64
	hooks := NotifierFuncs{
		Added: func(add AddContext, result OperationResult, amountLeft int64) {
			currency.record("wallet:added")
			amounts = append(amounts, add.Amount, amountLeft)
		},
		Taken: func(take TakeContext, result OperationResult, amountLeft int64) {
			currency.record("wallet:taken")
			amounts = append(amounts, take.Amount, amountLeft)
		},
	}
	wallet := newTestWallet(t, currency, WithHooks(hooks), WithBalance(4))

	wallet.TryAdd(6, FlagsNone, ActionSourceExternal)
	wallet.TryTake(15, FlagIgnoreConditions, ActionSourceExternal)

	assert.Equal(t, []string{"wallet:added", "currency:added", "wallet:taken", "currency:taken"}, currency.recorded())
	assert.Equal(t, []int64{6, 0, 10, 5}, amounts)
}

func TestWallet_HooksMayReadWallet(t *testing.T) {
	currency := NewBaseCurrency("gold")
	var seen int64
	var wallet *Wallet
	wallet = newTestWallet(t, currency, WithHooks(NotifierFuncs{
		Added: func(add AddContext, result OperationResult, amountLeft int64) {
			seen = add.Wallet.Balance()
			// The lock is released before hooks run.
			wallet.TryTake(1, FlagsNone, ActionSourceInternal)
		},
	}))

	wallet.TryAdd(10, FlagsNone, ActionSourceExternal)

	assert.Equal(t, int64(10), seen)
	assert.Equal(t, int64(9), wallet.Balance())
}

func TestWallet_ConditionsRunBeforeCurrency(t *testing.T) {
	currency := newHookCurrency("gold")
	wallet := newTestWallet(t, currency,
		WithBalance(10),
		WithTakeCondition(func(take TakeContext) OperationResult {
			if take.Amount > 2 {
				return Failed(CodeGeneric)
			}
			return Permitted()
		}),
		WithAddCondition(func(add AddContext) OperationResult {
			return BalanceLimit()
		}),
	)

	assert.True(t, wallet.TryTake(3, FlagsNone, ActionSourceExternal).Is(CodeGeneric))
	assert.True(t, wallet.TryTake(2, FlagsNone, ActionSourceExternal).OK())
	assert.True(t, wallet.TryAdd(1, FlagsNone, ActionSourceExternal).Is(CodeBalanceLimit))
	assert.Equal(t, int64(8), wallet.Balance())
}

func TestWallet_LimiterReportsAmountLeft(t *testing.T) {
	wallet := newTestWallet(t, &cappedCurrency{BaseCurrency: BaseCurrency{Name: "gems"}, cap: 100}, WithBalance(90))

	result := wallet.TryAdd(25, FlagsNone, ActionSourceExternal)

	assert.True(t, result.OK())
	assert.Equal(t, int64(15), result.Data)
	assert.Equal(t, int64(100), wallet.Balance())

	full := wallet.TryAdd(5, FlagsNone, ActionSourceExternal)
	assert.True(t, full.OK())
	assert.Equal(t, int64(5), full.Data)
	assert.Equal(t, int64(100), wallet.Balance())
}

func TestWallet_AddSaturatesAtMaxInt64(t *testing.T) {
	wallet := newTestWallet(t, NewBaseCurrency("gold"), WithBalance(math.MaxInt64-3))

	result := wallet.TryAdd(10, FlagIgnoreConditions, ActionSourceExternal)

	assert.True(t, result.OK())
	assert.Equal(t, int64(7), result.Data)
	assert.Equal(t, int64(math.MaxInt64), wallet.Balance())
}

func TestWallet_UnregisteredCurrencyPanics(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)
	wallet := NewWallet(registry, "user1", "missing")

	assert.Panics(t, func() { wallet.TryAdd(1, FlagsNone, ActionSourceExternal) })
	assert.Panics(t, func() { wallet.TryTake(1, FlagsNone, ActionSourceExternal) })
}

func TestWallet_NegativeStartBalanceClamps(t *testing.T) {
	wallet := newTestWallet(t, NewBaseCurrency("gold"), WithBalance(-5))
	assert.Equal(t, int64(0), wallet.Balance())
	assert.True(t, wallet.Has(0))
	assert.False(t, wallet.Has(1))
}

func TestWallet_ConcurrentOperations(t *testing.T) {
	wallet := newTestWallet(t, NewBaseCurrency("gold"), WithBalance(1000))

	var wg sync.WaitGroup
	var mu sync.Mutex
	taken := 0
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			wallet.TryAdd(1, FlagsNone, ActionSourceExternal)
		}()
		go func() {
			defer wg.Done()
			if wallet.TryTake(20, FlagsNone, ActionSourceExternal).OK() {
				mu.Lock()
				taken++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, wallet.Balance(), int64(0))
	assert.Equal(t, int64(1000+100-20*taken), wallet.Balance())
}
