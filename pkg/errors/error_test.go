package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeTradeAlreadyOpen, "trade already open for %s", "BTCUSDT")
	suite.Equal(ErrCodeTradeAlreadyOpen, err.Code)
	suite.Equal("trade already open for BTCUSDT", err.Message)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("timeout")
	err := Wrapf(ErrCodeExchangeUnavailable, cause, "klines for %s", "ETHUSDT")
	suite.Equal("klines for ETHUSDT", err.Message)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestErrorString() {
	suite.Equal("[100] invalid parameter", New(ErrCodeInvalidParameter, "invalid parameter").Error())

	err := Wrap(ErrCodeQueryFailed, "select trades", errors.New("disk full"))
	suite.Equal("[501] select trades: disk full", err.Error())
}

func (suite *ErrorTestSuite) TestGetCodeThroughWrapping() {
	inner := New(ErrCodeSymbolOnCooldown, "cooldown")
	outer := fmt.Errorf("open trade: %w", inner)

	suite.Equal(ErrCodeSymbolOnCooldown, GetCode(outer))
	suite.True(HasCode(outer, ErrCodeSymbolOnCooldown))
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain")))
}

func (suite *ErrorTestSuite) TestCategories() {
	tests := []struct {
		name       string
		err        error
		transient  bool
		validation bool
		benign     bool
	}{
		{"rate limited", New(ErrCodeRateLimited, "429"), true, false, false},
		{"exchange down", New(ErrCodeExchangeUnavailable, "503"), true, false, false},
		{"balance", New(ErrCodeInsufficientBalance, "low"), false, true, false},
		{"order size", New(ErrCodeInvalidOrderSize, "tiny"), false, true, false},
		{"duplicate open", New(ErrCodeTradeAlreadyOpen, "dup"), false, false, true},
		{"missing credentials", New(ErrCodeMissingCredentials, "no key"), false, false, false},
		{"plain", errors.New("plain"), false, false, false},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.Equal(tt.transient, IsTransient(tt.err))
			suite.Equal(tt.validation, IsValidation(tt.err))
			suite.Equal(tt.benign, IsBenignRace(tt.err))
		})
	}
}

func (suite *ErrorTestSuite) TestIsAndAs() {
	inner := New(ErrCodeOrderFailed, "rejected")
	wrapped := Wrap(ErrCodeCloseFailed, "close", inner)

	suite.True(Is(wrapped, inner))

	var target *Error
	suite.True(As(wrapped, &target))
	suite.Equal(ErrCodeCloseFailed, target.Code)
}
