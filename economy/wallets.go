package economy

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// WalletsConfig is the data definition for the WalletSystem type.
type WalletsConfig struct {
	Currencies map[string]*CurrencyConfig `json:"currencies,omitempty" yaml:"currencies,omitempty"`
	// AllowClientAdd registers the wallet_add RPC. Leave it off unless clients are trusted.
	AllowClientAdd bool           `json:"allow_client_add,omitempty" yaml:"allow_client_add,omitempty"`
	Store          *StoreConfig   `json:"store,omitempty" yaml:"store,omitempty"`
	Journal        *JournalConfig `json:"journal,omitempty" yaml:"journal,omitempty"`
}

type StoreConfig struct {
	// Driver is one of "nakama" (default), "memory", "redis" or "postgres".
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	// URL of the redis or postgres server. ${VAR} references are expanded from the environment.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Namespace is the storage collection for nakama and the key prefix for redis.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

type JournalConfig struct {
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Dir     string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// The WalletSystem keeps one wallet per user and currency plus one global wallet per currency.
// Balances live in the BalanceStore; global wallets are read and changed only through the
// Global methods.
//
// Permission rejections are returned as failed results, never as errors. Errors mean the
// request could not be served: unknown currency, bad input or a storage failure.
type WalletSystem interface {
	System

	// Registry returns the currencies known to the system.
	Registry() *Registry

	// Get returns the balance of every registered currency for a user.
	Get(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (wallet map[string]int64, err error)

	// Has reports whether the user holds at least amount of the currency.
	Has(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, currencyID string, amount int64) (bool, error)

	// Add adds currency to a user's wallet. The result payload is the amount that was not added.
	Add(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, currencyID string, amount int64, flags ModifyFlags, source ActionSource) (result Result[int64], balance int64, err error)

	// Take takes currency from a user's wallet. The result payload is the amount that was not taken.
	Take(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, currencyID string, amount int64, flags ModifyFlags, source ActionSource) (result Result[int64], balance int64, err error)

	// Transfer moves currency between two owners. Nothing is persisted unless both sides succeed;
	// any part the receiver cannot hold stays with the sender. The payload is the amount not moved.
	Transfer(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, fromUserID, toUserID, currencyID string, amount int64, flags ModifyFlags, source ActionSource) (result Result[int64], err error)

	// GlobalGet returns the balance of every global wallet.
	GlobalGet(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule) (wallet map[string]int64, err error)

	// GlobalAdd adds currency to the global wallet.
	GlobalAdd(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, currencyID string, amount int64, flags ModifyFlags, source ActionSource) (result Result[int64], balance int64, err error)

	// GlobalTake takes currency from the global wallet.
	GlobalTake(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, currencyID string, amount int64, flags ModifyFlags, source ActionSource) (result Result[int64], balance int64, err error)

	// AddPublisher adds a publisher that receives events of external operations.
	AddPublisher(publisher Publisher)

	Close() error
}
