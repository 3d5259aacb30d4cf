package economy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalWallets_EagerAndLazy(t *testing.T) {
	treasury, err := NewConfigCurrency("treasury", &CurrencyConfig{Global: true, StartBalance: 500})
	require.NoError(t, err)
	registry, err := NewRegistry(treasury, NewBaseCurrency("gold"))
	require.NoError(t, err)

	globals := NewGlobalWallets(registry)

	all := globals.All()
	require.Len(t, all, 1)
	assert.Equal(t, int64(500), all["treasury"].Balance())
	assert.Equal(t, GlobalOwnerID, all["treasury"].Owner())

	gold := globals.Instance("gold")
	assert.Equal(t, int64(0), gold.Balance())
	assert.Same(t, gold, globals.Instance("gold"))
	assert.Len(t, globals.All(), 2)
}

func TestGlobalWallets_SharedAcrossGoroutines(t *testing.T) {
	registry, err := NewRegistry(NewBaseCurrency("gold"))
	require.NoError(t, err)
	globals := NewGlobalWallets(registry)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			globals.Instance("gold").TryAdd(2, FlagsNone, ActionSourceInternal)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), globals.Instance("gold").Balance())
}

func TestGlobalWallets_PanicsForUnknownCurrencyAndAfterClose(t *testing.T) {
	registry, err := NewRegistry(NewBaseCurrency("gold"))
	require.NoError(t, err)
	globals := NewGlobalWallets(registry)

	assert.Panics(t, func() { globals.Instance("silver") })

	globals.Close()
	assert.Empty(t, globals.All())
	assert.Panics(t, func() { globals.Instance("gold") })
}

func TestGlobalWallets_OptionsApplyToEveryWallet(t *testing.T) {
	registry, err := NewRegistry(NewBaseCurrency("gold"))
	require.NoError(t, err)
	added := 0
	globals := NewGlobalWallets(registry, WithHooks(NotifierFuncs{
		Added: func(AddContext, OperationResult, int64) { added++ },
	}))

	globals.Instance("gold").TryAdd(1, FlagsNone, ActionSourceExternal)
	assert.Equal(t, 1, added)
}
