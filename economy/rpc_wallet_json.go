package economy

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	RpcIdWalletGet            = "wallet_get"
	RpcIdWalletAdd            = "wallet_add"
	RpcIdWalletTake           = "wallet_take"
	RpcIdWalletGlobalGet      = "wallet_global_get"
	RpcIdWalletCurrenciesList = "wallet_currencies_list"
)

type WalletGetResponse struct {
	Wallet map[string]int64 `json:"wallet"`
}

// WalletModifyRequest is the payload of wallet_add and wallet_take. Clients cannot pass flags or
// a source: every RPC call is external and checked.
type WalletModifyRequest struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

type WalletModifyResponse struct {
	Result     OperationResult `json:"result"`
	AmountLeft int64           `json:"amount_left"`
	Balance    int64           `json:"balance"`
}

type CurrencyInfo struct {
	Id              string            `json:"id"`
	Name            string            `json:"name,omitempty"`
	MaxBalance      int64             `json:"max_balance,omitempty"`
	MaxPerOperation int64             `json:"max_per_operation,omitempty"`
	Global          bool              `json:"global,omitempty"`
	Properties      map[string]string `json:"additional_properties,omitempty"`
}

type CurrencyList struct {
	Currencies []*CurrencyInfo `json:"currencies"`
}

type rpcFn func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

func sessionUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return "", ErrNoSessionUser
	}
	return userID, nil
}

func marshalResponse(logger runtime.Logger, response any) (string, error) {
	data, err := json.Marshal(response)
	if err != nil {
		logger.Error("Failed to marshal response: %v", err)
		return "", ErrPayloadEncode
	}
	return string(data), nil
}

func rpcWalletGet_Json(e *economyImpl) rpcFn {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		wallets := e.GetWalletSystem()
		if wallets == nil {
			return "", ErrSystemNotAvailable
		}
		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}

		wallet, err := wallets.Get(ctx, logger, nk, userID)
		if err != nil {
			return "", err
		}
		return marshalResponse(logger, &WalletGetResponse{Wallet: wallet})
	}
}

func rpcWalletGlobalGet_Json(e *economyImpl) rpcFn {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		wallets := e.GetWalletSystem()
		if wallets == nil {
			return "", ErrSystemNotAvailable
		}
		if _, err := sessionUserID(ctx); err != nil {
			return "", err
		}

		wallet, err := wallets.GlobalGet(ctx, logger, nk)
		if err != nil {
			return "", err
		}
		return marshalResponse(logger, &WalletGetResponse{Wallet: wallet})
	}
}

func rpcWalletTake_Json(e *economyImpl) rpcFn {
	return rpcWalletModify_Json(e, JournalOperationTake)
}

func rpcWalletAdd_Json(e *economyImpl) rpcFn {
	return rpcWalletModify_Json(e, JournalOperationAdd)
}

func rpcWalletModify_Json(e *economyImpl, operation string) rpcFn {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		wallets := e.GetWalletSystem()
		if wallets == nil {
			return "", ErrSystemNotAvailable
		}
		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}

		request := &WalletModifyRequest{}
		if err := json.Unmarshal([]byte(payload), request); err != nil {
			logger.Error("Failed to unmarshal WalletModifyRequest: %v", err)
			return "", ErrPayloadDecode
		}
		if request.Currency == "" || request.Amount < 0 {
			return "", ErrBadInput
		}

		var result Result[int64]
		var balance int64
		if operation == JournalOperationAdd {
			result, balance, err = wallets.Add(ctx, logger, nk, userID, request.Currency, request.Amount, FlagsNone, ActionSourceExternal)
		} else {
			result, balance, err = wallets.Take(ctx, logger, nk, userID, request.Currency, request.Amount, FlagsNone, ActionSourceExternal)
		}
		if err != nil {
			return "", err
		}

		// Rejections are part of the response so clients can show the reason.
		return marshalResponse(logger, &WalletModifyResponse{
			Result:     result.OperationResult,
			AmountLeft: result.Data,
			Balance:    balance,
		})
	}
}

func rpcWalletCurrenciesList_Json(e *economyImpl) rpcFn {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		wallets := e.GetWalletSystem()
		if wallets == nil {
			return "", ErrSystemNotAvailable
		}

		currencies := wallets.Registry().List()
		response := &CurrencyList{Currencies: make([]*CurrencyInfo, 0, len(currencies))}
		for _, currency := range currencies {
			info := &CurrencyInfo{Id: currency.ID()}
			if global, ok := currency.(GlobalCurrency); ok {
				info.Global = global.Global()
			}
			if configured, ok := currency.(*ConfigCurrency); ok {
				config := configured.Config()
				info.Name = configured.DisplayName()
				info.MaxBalance = config.MaxBalance
				info.MaxPerOperation = config.MaxPerOperation
				info.Properties = config.AdditionalProperties
			}
			response.Currencies = append(response.Currencies, info)
		}
		return marshalResponse(logger, response)
	}
}
