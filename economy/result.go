package economy

import (
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"
)

// SystemID namespaces result codes so that codes from different game systems never collide.
type SystemID uint16

// EconomySystemID is the namespace of every result produced by this package.
const EconomySystemID SystemID = 0x4543

// Result codes reported under EconomySystemID.
const (
	CodeGeneric uint16 = iota
	CodeNotEnoughCurrency
	CodeCurrencyDenied
	CodeInvalidAmount
	CodeBalanceLimit
)

var codeNames = map[uint16]string{
	CodeGeneric:           "generic",
	CodeNotEnoughCurrency: "not_enough_currency",
	CodeCurrencyDenied:    "currency_denied",
	CodeInvalidAmount:     "invalid_amount",
	CodeBalanceLimit:      "balance_limit",
}

// OperationResult is the outcome of a permission check or a wallet mutation. Rejections are
// values the caller inspects, not errors.
type OperationResult struct {
	SystemID SystemID `json:"system_id"`
	Code     uint16   `json:"code"`
	Success  bool     `json:"success"`
}

// Result is an OperationResult carrying a typed payload.
type Result[T any] struct {
	OperationResult
	Data T `json:"data"`
}

// Success builds a successful result for the given system and code.
func Success(system SystemID, code uint16) OperationResult {
	return OperationResult{SystemID: system, Code: code, Success: true}
}

// Error builds a failed result for the given system and code.
func Error(system SystemID, code uint16) OperationResult {
	return OperationResult{SystemID: system, Code: code}
}

// Permitted is the generic economy success.
func Permitted() OperationResult {
	return Success(EconomySystemID, CodeGeneric)
}

// Failed is an economy failure with the given code.
func Failed(code uint16) OperationResult {
	return Error(EconomySystemID, code)
}

func NotEnoughCurrency() OperationResult { return Failed(CodeNotEnoughCurrency) }
func CurrencyDenied() OperationResult    { return Failed(CodeCurrencyDenied) }
func InvalidAmount() OperationResult     { return Failed(CodeInvalidAmount) }
func BalanceLimit() OperationResult      { return Failed(CodeBalanceLimit) }
func CurrencyAdded() OperationResult     { return Permitted() }
func CurrencyTaken() OperationResult     { return Permitted() }

// WithData attaches a payload to a result.
func WithData[T any](r OperationResult, data T) Result[T] {
	return Result[T]{OperationResult: r, Data: data}
}

// OK reports whether the operation succeeded.
func (r OperationResult) OK() bool {
	return r.Success
}

// Is reports whether r carries the given economy code, regardless of success.
func (r OperationResult) Is(code uint16) bool {
	return r.SystemID == EconomySystemID && r.Code == code
}

func (r OperationResult) String() string {
	state := "ok"
	if !r.Success {
		state = "failed"
	}
	name, found := codeNames[r.Code]
	if r.SystemID != EconomySystemID || !found {
		name = fmt.Sprintf("%d", r.Code)
	}
	return fmt.Sprintf("%s(%#x:%s)", state, uint16(r.SystemID), name)
}

// AsError converts a failed result into a runtime error suitable for returning from an RPC.
// Successful results return nil.
func (r OperationResult) AsError() error {
	if r.Success {
		return nil
	}
	switch {
	case r.Is(CodeInvalidAmount):
		return runtime.NewError("invalid currency amount", INVALID_ARGUMENT_ERROR_CODE)
	case r.Is(CodeNotEnoughCurrency):
		return runtime.NewError("not enough currency", FAILED_PRECONDITION_ERROR_CODE)
	case r.Is(CodeBalanceLimit):
		return runtime.NewError("wallet balance limit reached", FAILED_PRECONDITION_ERROR_CODE)
	case r.Is(CodeCurrencyDenied):
		return runtime.NewError("currency operation denied", PERMISSION_DENIED_ERROR_CODE)
	default:
		return runtime.NewError("economy operation failed: "+r.String(), FAILED_PRECONDITION_ERROR_CODE)
	}
}
