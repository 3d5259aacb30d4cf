package economy

import (
	"time"
)

// Economy provides a type which combines the economy systems.
type Economy interface {
	AddPublisher(publisher Publisher)

	GetWalletSystem() WalletSystem

	// Close releases stores and journals held by the systems.
	Close() error
}

// The SystemType identifies each of the economy systems.
type SystemType uint

const (
	SystemTypeUnknown SystemType = iota
	SystemTypeWallets
)

func (t SystemType) String() string {
	switch t {
	case SystemTypeWallets:
		return "wallets"
	default:
		return "unknown"
	}
}

// A System is a base type for an economy system.
type System interface {
	// GetType provides the runtime type of the system.
	GetType() SystemType

	// GetConfig returns the configuration type of the system.
	GetConfig() any
}

// The SystemConfig describes the configuration that each system must use to configure itself.
type SystemConfig interface {
	// GetType returns the runtime type of the system.
	GetType() SystemType

	// GetConfigFile returns the configuration file used for the data definitions in the system.
	GetConfigFile() string

	// GetRegister returns true if the system's RPCs should be registered with the game server.
	GetRegister() bool

	// GetExtra returns the extra parameter used to configure the system.
	GetExtra() any
}

var _ SystemConfig = &systemConfig{}

type systemConfig struct {
	systemType SystemType
	configFile string
	register   bool

	extra any
}

func (sc *systemConfig) GetType() SystemType {
	return sc.systemType
}
func (sc *systemConfig) GetConfigFile() string {
	return sc.configFile
}
func (sc *systemConfig) GetRegister() bool {
	return sc.register
}
func (sc *systemConfig) GetExtra() any {
	return sc.extra
}

// WithWalletSystem configures a WalletSystem type and optionally registers its RPCs with the
// game server. The config file may be JSON or YAML (by extension).
func WithWalletSystem(configFile string, register bool, opts ...WalletSystemOption) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeWallets,
		configFile: configFile,
		register:   register,

		extra: opts,
	}
}

type walletSystemOptions struct {
	currencies []Currency
	store      BalanceStore
	journal    Journal
	now        func() time.Time
}

type WalletSystemOption func(*walletSystemOptions)

// WithCurrencies registers currencies implemented in code, next to those in the config file.
func WithCurrencies(currencies ...Currency) WalletSystemOption {
	return func(o *walletSystemOptions) {
		o.currencies = append(o.currencies, currencies...)
	}
}

// WithStore overrides the store selected by the config file.
func WithStore(store BalanceStore) WalletSystemOption {
	return func(o *walletSystemOptions) {
		o.store = store
	}
}

// WithJournal overrides the journal selected by the config file.
func WithJournal(journal Journal) WalletSystemOption {
	return func(o *walletSystemOptions) {
		o.journal = journal
	}
}

// WithClock replaces time.Now, mostly for reset schedule tests.
func WithClock(now func() time.Time) WalletSystemOption {
	return func(o *walletSystemOptions) {
		o.now = now
	}
}
