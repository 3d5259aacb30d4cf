package economy

import (
	"fmt"
	"sync"
)

// CurrencyDatabaseLabel is the namespace currencies are registered under.
const CurrencyDatabaseLabel = "SimpleEconomy.Currencies"

// Registry resolves currencies by ID. It is filled once at startup and read concurrently
// afterwards.
type Registry struct {
	mu         sync.RWMutex
	currencies map[string]Currency
	order      []string
}

func NewRegistry(currencies ...Currency) (*Registry, error) {
	r := &Registry{
		currencies: make(map[string]Currency, len(currencies)),
		order:      make([]string, 0, len(currencies)),
	}
	for _, currency := range currencies {
		if err := r.Register(currency); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a currency. IDs are unique.
func (r *Registry) Register(currency Currency) error {
	if currency == nil || currency.ID() == "" {
		return ErrBadInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found := r.currencies[currency.ID()]; found {
		return ErrCurrencyExists
	}
	r.currencies[currency.ID()] = currency
	r.order = append(r.order, currency.ID())
	return nil
}

func (r *Registry) Get(id string) (Currency, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	currency, found := r.currencies[id]
	return currency, found
}

// MustGet returns the currency or panics. A wallet bound to an unregistered currency is a setup
// bug, not something to recover from at runtime.
func (r *Registry) MustGet(id string) Currency {
	currency, found := r.Get(id)
	if !found {
		panic(fmt.Sprintf("%s: currency %q was not found in registry", CurrencyDatabaseLabel, id))
	}
	return currency
}

// List returns the currencies in registration order.
func (r *Registry) List() []Currency {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Currency, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.currencies[id])
	}
	return list
}

// GetExact returns the first registered currency of concrete type T.
func GetExact[T Currency](r *Registry) (T, bool) {
	for _, currency := range r.List() {
		if exact, ok := currency.(T); ok {
			return exact, true
		}
	}
	var zero T
	return zero, false
}
