package economy

import (
	"github.com/heroiclabs/nakama-common/runtime"
)

// gRPC status codes understood by the Nakama runtime when an RPC returns a runtime.Error.
const (
	INVALID_ARGUMENT_ERROR_CODE    = 3
	NOT_FOUND_ERROR_CODE           = 5
	PERMISSION_DENIED_ERROR_CODE   = 7
	FAILED_PRECONDITION_ERROR_CODE = 9
	UNIMPLEMENTED_ERROR_CODE       = 12
	INTERNAL_ERROR_CODE            = 13
)

var (
	ErrInternal           = runtime.NewError("internal error occurred", INTERNAL_ERROR_CODE)
	ErrBadInput           = runtime.NewError("bad input", INVALID_ARGUMENT_ERROR_CODE)
	ErrNoSessionUser      = runtime.NewError("no user ID in session", INVALID_ARGUMENT_ERROR_CODE)
	ErrPayloadDecode      = runtime.NewError("cannot decode json", INTERNAL_ERROR_CODE)
	ErrPayloadEncode      = runtime.NewError("cannot encode json", INTERNAL_ERROR_CODE)
	ErrSystemNotAvailable = runtime.NewError("system not available", UNIMPLEMENTED_ERROR_CODE)
	ErrCurrencyNotFound   = runtime.NewError("currency not found", NOT_FOUND_ERROR_CODE)
	ErrCurrencyExists     = runtime.NewError("currency already registered", INVALID_ARGUMENT_ERROR_CODE)
	ErrConfigInvalid      = runtime.NewError("invalid economy configuration", INVALID_ARGUMENT_ERROR_CODE)
)
