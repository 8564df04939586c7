package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199). Never retried.
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInsufficientBalance  ErrorCode = 102
	ErrCodeInvalidOrderSize     ErrorCode = 103
	ErrCodeInvalidControl       ErrorCode = 104
	ErrCodeInvalidAction        ErrorCode = 105
	ErrCodeMissingParameter     ErrorCode = 106

	// State errors (200-299)
	ErrCodeTradeAlreadyOpen   ErrorCode = 200
	ErrCodeTradeNotFound      ErrorCode = 201
	ErrCodeMaxOpenTrades      ErrorCode = 202
	ErrCodeSymbolOnCooldown   ErrorCode = 203
	ErrCodeCoinNotFound       ErrorCode = 204
	ErrCodeGlobalPauseActive  ErrorCode = 205
	ErrCodeIndicatorNotNumber ErrorCode = 206
	ErrCodeOpenRateLimited    ErrorCode = 207

	// Trading errors (300-399)
	ErrCodeOrderFailed      ErrorCode = 300
	ErrCodePositionNotFound ErrorCode = 301
	ErrCodeCloseFailed      ErrorCode = 302
	ErrCodeLiveDisabled     ErrorCode = 303

	// External errors (400-499). Transient, retried with backoff.
	ErrCodeExchangeUnavailable ErrorCode = 400
	ErrCodeRateLimited         ErrorCode = 401
	ErrCodeMarketDataFailed    ErrorCode = 402
	ErrCodeNotificationFailed  ErrorCode = 403

	// Storage errors (500-599)
	ErrCodeStorageOpenFailed  ErrorCode = 500
	ErrCodeQueryFailed        ErrorCode = 501
	ErrCodeStateFileFailed    ErrorCode = 502
	ErrCodeMigrationFailed    ErrorCode = 503
	ErrCodeStorageWriteFailed ErrorCode = 504

	// Configuration errors (600-699)
	ErrCodeMissingCredentials ErrorCode = 600
	ErrCodeConfigLoadFailed   ErrorCode = 601

	// Indicator errors (700-799)
	ErrCodeInsufficientHistory  ErrorCode = 700
	ErrCodeIndicatorCalculation ErrorCode = 701
)
