package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrderIntent   ErrorCode = 102
	ErrCodeInvalidPeriod        ErrorCode = 103
	ErrCodeInvalidTimeWindow    ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105

	// Data errors (200-299)
	ErrCodeBarsFetchFailed   ErrorCode = 200
	ErrCodeIncompleteWindow  ErrorCode = 201
	ErrCodeListingsFailed    ErrorCode = 202
	ErrCodeIndicatorNotReady ErrorCode = 203

	// Store errors (300-399)
	ErrCodeStoreReadFailed  ErrorCode = 300
	ErrCodeStoreWriteFailed ErrorCode = 301
	ErrCodeStoreCorrupted   ErrorCode = 302

	// Engine errors (400-499)
	ErrCodeGuardTaskFailed  ErrorCode = 400
	ErrCodeEngineInitFailed ErrorCode = 401
	ErrCodeCycleFailed      ErrorCode = 402
	ErrCodeSchedulerStopped ErrorCode = 403
	ErrCodeFeedSubscribe    ErrorCode = 404

	// Order errors (500-599)
	ErrCodeOrderRejected      ErrorCode = 500
	ErrCodePositionQuery      ErrorCode = 501
	ErrCodeAssetQuery         ErrorCode = 502
	ErrCodeInsufficientCash   ErrorCode = 503
	ErrCodePositionNotFound   ErrorCode = 504
	ErrCodeBrokerNotConnected ErrorCode = 505

	// Calendar errors (600-699)
	ErrCodeCalendarQuery ErrorCode = 600
)
