package exchange

import (
	"context"
	stderrors "errors"

	"github.com/adshao/go-binance/v2/common"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
)

// Binance API error codes that are worth a retry.
const (
	apiCodeDisconnected    = -1001
	apiCodeTooManyRequests = -1003
	apiCodeTimeout         = -1007
	apiCodeTooManyOrders   = -1015
	apiCodeServiceBusy     = -1008
	apiCodeBadSymbol       = -1121
)

// classify turns a client error into a coded error. Rate limits and network failures are
// transient, rejected requests keep the given fallback code.
func classify(err error, fallback errors.ErrorCode, message string) error {
	if err == nil {
		return nil
	}

	var apiErr *common.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.Code {
		case apiCodeTooManyRequests, apiCodeTooManyOrders:
			return errors.Wrap(errors.ErrCodeRateLimited, message, err)
		case apiCodeDisconnected, apiCodeTimeout, apiCodeServiceBusy:
			return errors.Wrap(errors.ErrCodeExchangeUnavailable, message, err)
		case apiCodeBadSymbol:
			return errors.Wrap(errors.ErrCodeInvalidParameter, message, err)
		default:
			return errors.Wrap(fallback, message, err)
		}
	}

	if stderrors.Is(err, context.Canceled) {
		return errors.Wrap(fallback, message, err)
	}

	return errors.Wrap(errors.ErrCodeExchangeUnavailable, message, err)
}
