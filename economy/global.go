package economy

import (
	"sync"

	"github.com/google/uuid"
)

// GlobalOwnerID owns the wallets shared by the whole game. It matches the Nakama system user so
// global balances can live in the same storage as player balances.
var GlobalOwnerID = uuid.Nil.String()

// GlobalCurrency may be implemented by a currency to get a global wallet at startup.
type GlobalCurrency interface {
	Global() bool
}

// StartingCurrency may be implemented by a currency to give new wallets a starting balance.
type StartingCurrency interface {
	StartBalance() int64
}

func startBalance(currency Currency) int64 {
	if starting, ok := currency.(StartingCurrency); ok {
		return starting.StartBalance()
	}
	return 0
}

// GlobalWallets is the process wide accessor for shared wallets, one per currency. Wallets for
// currencies flagged global are created when the accessor is built; others are created on first
// use. These wallets live in memory only. Persisted global balances belong to the WalletSystem
// and are reached through its Global methods.
type GlobalWallets struct {
	registry *Registry
	opts     []WalletOption

	mu      sync.Mutex
	wallets map[string]*Wallet
	closed  bool
}

func NewGlobalWallets(registry *Registry, opts ...WalletOption) *GlobalWallets {
	g := &GlobalWallets{
		registry: registry,
		opts:     opts,
		wallets:  make(map[string]*Wallet),
	}
	for _, currency := range registry.List() {
		if global, ok := currency.(GlobalCurrency); ok && global.Global() {
			g.wallets[currency.ID()] = g.newWallet(currency)
		}
	}
	return g
}

// Instance returns the global wallet for currencyID, creating it if needed. It panics for
// unregistered currencies and after Close.
func (g *GlobalWallets) Instance(currencyID string) *Wallet {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		panic("economy: global wallets used after Close")
	}
	if wallet, found := g.wallets[currencyID]; found {
		return wallet
	}
	wallet := g.newWallet(g.registry.MustGet(currencyID))
	g.wallets[currencyID] = wallet
	return wallet
}

// All returns a snapshot of the global wallets created so far.
func (g *GlobalWallets) All() map[string]*Wallet {
	g.mu.Lock()
	defer g.mu.Unlock()
	wallets := make(map[string]*Wallet, len(g.wallets))
	for id, wallet := range g.wallets {
		wallets[id] = wallet
	}
	return wallets
}

// Close drops every global wallet.
func (g *GlobalWallets) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.wallets = nil
	g.closed = true
}

func (g *GlobalWallets) newWallet(currency Currency) *Wallet {
	opts := append([]WalletOption{WithBalance(startBalance(currency))}, g.opts...)
	return NewWallet(g.registry, GlobalOwnerID, currency.ID(), opts...)
}
