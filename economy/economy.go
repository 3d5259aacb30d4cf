package economy

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Init initializes an Economy type with the configurations provided.
func Init(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, initializer runtime.Initializer, configs ...SystemConfig) (Economy, error) {
	e := &economyImpl{
		systems: make(map[SystemType]System),
	}

	for _, config := range configs {
		if err := e.initSystem(ctx, logger, nk, initializer, config); err != nil {
			_ = e.Close()
			return nil, err
		}
	}

	return e, nil
}

type economyImpl struct {
	mu         sync.RWMutex
	publishers []Publisher
	systems    map[SystemType]System
}

func (e *economyImpl) initSystem(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, initializer runtime.Initializer, config SystemConfig) error {
	logger.Info("Initializing system type: %v, config file: %s", config.GetType(), config.GetConfigFile())

	switch config.GetType() {
	case SystemTypeWallets:
		walletsConfig := &WalletsConfig{}
		if err := readConfigFile(nk, config.GetConfigFile(), walletsConfig); err != nil {
			logger.Error("Failed to load Wallets system config: %v", err)
			return err
		}
		opts, _ := config.GetExtra().([]WalletSystemOption)
		system, err := NewNakamaWalletSystem(ctx, nk, walletsConfig, opts...)
		if err != nil {
			logger.Error("Failed to create Wallets system: %v", err)
			return err
		}
		e.mu.Lock()
		for _, publisher := range e.publishers {
			system.AddPublisher(publisher)
		}
		e.systems[SystemTypeWallets] = system
		e.mu.Unlock()

	default:
		return errors.Wrapf(ErrConfigInvalid, "unknown system type %v", config.GetType())
	}

	if config.GetRegister() {
		if err := e.registerSystemRpcs(initializer, config.GetType()); err != nil {
			return err
		}
	}

	logger.Info("Initialized system type: %v", config.GetType())
	return nil
}

// readConfigFile decodes a JSON or YAML config read through the Nakama runtime. An empty path
// leaves the config at its zero value.
func readConfigFile(nk runtime.NakamaModule, path string, out any) error {
	if path == "" {
		return nil
	}
	file, err := nk.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, out)
	default:
		err = json.Unmarshal(data, out)
	}
	if err != nil {
		return errors.Wrapf(ErrConfigInvalid, "parse config file %s: %v", path, err)
	}
	return nil
}

func (e *economyImpl) registerSystemRpcs(initializer runtime.Initializer, systemType SystemType) error {
	switch systemType {
	case SystemTypeWallets:
		if err := initializer.RegisterRpc(RpcIdWalletGet, rpcWalletGet_Json(e)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdWalletTake, rpcWalletTake_Json(e)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdWalletGlobalGet, rpcWalletGlobalGet_Json(e)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdWalletCurrenciesList, rpcWalletCurrenciesList_Json(e)); err != nil {
			return err
		}
		walletsConfig, _ := e.GetWalletSystem().GetConfig().(*WalletsConfig)
		if walletsConfig != nil && walletsConfig.AllowClientAdd {
			if err := initializer.RegisterRpc(RpcIdWalletAdd, rpcWalletAdd_Json(e)); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddPublisher adds a publisher to every system initialized so far and to those initialized later.
func (e *economyImpl) AddPublisher(publisher Publisher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.publishers = append(e.publishers, publisher)
	if wallets, ok := e.systems[SystemTypeWallets].(WalletSystem); ok {
		wallets.AddPublisher(publisher)
	}
}

func (e *economyImpl) GetWalletSystem() WalletSystem {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if wallets, ok := e.systems[SystemTypeWallets].(WalletSystem); ok {
		return wallets
	}
	return nil
}

func (e *economyImpl) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var first error
	for systemType, system := range e.systems {
		if closer, ok := system.(io.Closer); ok {
			if err := closer.Close(); err != nil && first == nil {
				first = errors.Wrapf(err, "close %v system", systemType)
			}
		}
	}
	e.systems = make(map[SystemType]System)
	return first
}
