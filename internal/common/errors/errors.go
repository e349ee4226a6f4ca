// Package errors provides standardized error handling for intent execution.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeTokenNotFound    ErrorCode = "TOKEN_NOT_FOUND"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidIntent    ErrorCode = "INVALID_INTENT"
	ErrCodeSchemaValidation ErrorCode = "SCHEMA_VALIDATION_FAILED"

	ErrCodeQuoteFailed  ErrorCode = "QUOTE_FAILED"
	ErrCodeQuoteTimeout ErrorCode = "QUOTE_TIMEOUT"
	ErrCodeNoRoute      ErrorCode = "NO_ROUTE_FOUND"

	ErrCodeApprovalFailed ErrorCode = "APPROVAL_FAILED"
	ErrCodeSwapFailed     ErrorCode = "SWAP_FAILED"
	ErrCodeChainReadFail  ErrorCode = "CHAIN_READ_FAILED"
	ErrCodeTxStillPending ErrorCode = "TX_STILL_PENDING"

	ErrCodeFileMissing     ErrorCode = "FILE_MISSING"
	ErrCodeUploadFailed    ErrorCode = "UPLOAD_FAILED"
	ErrCodeDetectionFailed ErrorCode = "DETECTION_FAILED"
	ErrCodeMintFailed      ErrorCode = "MINT_FAILED"

	ErrCodeAgentNotFound ErrorCode = "AGENT_NOT_FOUND"
	ErrCodeSessionStore  ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeHistoryStore  ErrorCode = "HISTORY_STORE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewTokenNotFoundError creates a non-retryable unknown-token error.
func NewTokenNotFoundError(symbol string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenNotFound,
		Message:   "Token is not registered",
		Details:   fmt.Sprintf("token: %s", symbol),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidAmountError creates a non-retryable amount validation error.
func NewInvalidAmountError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidAmount,
		Message:   "Amount must be a positive number",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidIntentError creates a non-retryable intent validation error.
func NewInvalidIntentError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidIntent,
		Message:   "Intent failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchemaValidationError creates a non-retryable parameter schema error.
func NewSchemaValidationError(agent string, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaValidation,
		Message:   fmt.Sprintf("Parameters rejected by agent '%s' schema", agent),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuoteFailedError creates a retryable aggregator error.
func NewQuoteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuoteFailed,
		Message:   "Quote request to aggregator failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuoteTimeoutError creates a retryable aggregator timeout error.
func NewQuoteTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeQuoteTimeout,
		Message:   "Quote request timed out",
		Details:   "aggregator call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoRouteError creates a non-retryable routing error.
func NewNoRouteError(tokenIn, tokenOut string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoRoute,
		Message:   "Aggregator returned no route for pair",
		Details:   fmt.Sprintf("tokenIn: %s, tokenOut: %s", tokenIn, tokenOut),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApprovalFailedError creates a retryable on-chain approval error.
func NewApprovalFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeApprovalFailed,
		Message:   "Token approval transaction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSwapFailedError creates a retryable on-chain swap error.
func NewSwapFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSwapFailed,
		Message:   "Swap transaction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewChainReadError creates a retryable chain read error.
func NewChainReadError(what string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChainReadFail,
		Message:   "On-chain read failed",
		Details:   fmt.Sprintf("%s: %s", what, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTxStillPendingError reports an unconfirmed transaction. Not a failure:
// the transaction may still land after the polling window closes.
func NewTxStillPendingError(txHash string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTxStillPending,
		Message:   "Transaction not yet confirmed",
		Details:   fmt.Sprintf("txHash: %s", txHash),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFileMissingError creates a non-retryable missing-attachment error.
func NewFileMissingError() *StandardError {
	return &StandardError{
		Code:      ErrCodeFileMissing,
		Message:   "Registration requires an attached file",
		Details:   "no file was attached to the prompt",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUploadFailedError creates a retryable pinning service error.
func NewUploadFailedError(what string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUploadFailed,
		Message:   "IPFS upload failed",
		Details:   fmt.Sprintf("%s: %s", what, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDetectionFailedError creates a retryable AI-detection error.
func NewDetectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDetectionFailed,
		Message:   "AI-content detection failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMintFailedError creates a retryable registration error.
func NewMintFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMintFailed,
		Message:   "Mint and register transaction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentNotFoundError creates a non-retryable programming-contract error.
func NewAgentNotFoundError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAgentNotFound,
		Message:   "No agent registered under that name",
		Details:   fmt.Sprintf("agent: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStoreError creates a retryable session persistence error.
func NewSessionStoreError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStore,
		Message:   "Session store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewHistoryStoreError creates a retryable history persistence error.
func NewHistoryStoreError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHistoryStore,
		Message:   "History store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the ErrorCode from an error chain, or "" when no
// StandardError is present.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeQuoteFailed,
		ErrCodeUploadFailed,
		ErrCodeDetectionFailed,
		ErrCodeChainReadFail,
		ErrCodeSessionStore,
		ErrCodeHistoryStore:
		return 3 // Retryable technical errors

	case ErrCodeQuoteTimeout,
		ErrCodeTxStillPending:
		return 2 // Partial retry for timeouts

	case ErrCodeApprovalFailed,
		ErrCodeSwapFailed,
		ErrCodeMintFailed:
		return 1 // On-chain writes: one resubmission at most

	default:
		return 0 // Validation and contract errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TOKEN") || strings.Contains(codeStr, "AMOUNT") || strings.Contains(codeStr, "INTENT") || strings.Contains(codeStr, "SCHEMA"):
		return "VALIDATION"
	case strings.Contains(codeStr, "QUOTE") || strings.Contains(codeStr, "ROUTE"):
		return "AGGREGATOR"
	case strings.Contains(codeStr, "APPROVAL") || strings.Contains(codeStr, "SWAP") || strings.Contains(codeStr, "CHAIN") || strings.Contains(codeStr, "TX") || strings.Contains(codeStr, "MINT"):
		return "CHAIN"
	case strings.Contains(codeStr, "UPLOAD") || strings.Contains(codeStr, "FILE") || strings.Contains(codeStr, "DETECTION"):
		return "MEDIA"
	case strings.Contains(codeStr, "STORE"):
		return "STORAGE"
	case strings.Contains(codeStr, "AGENT"):
		return "ORCHESTRATION"
	default:
		return "OTHER"
	}
}
