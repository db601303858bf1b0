package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by code, so errors.Is(err, apperror.ErrConflict(nil)) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_001", "Invalid webhook signature", http.StatusBadRequest)
}

func ErrInvalidToken() *AppError {
	return New("SEC_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("SEC_003", "Insufficient role for this operation", http.StatusForbidden)
}

// ---- Webhooks (WHK) ----

func ErrInvalidPayload(reason string) *AppError {
	return New("WHK_001", "Invalid webhook payload: "+reason, http.StatusBadRequest)
}

// ---- Orders (ORD) ----

func ErrAmountMismatch() *AppError {
	return New("ORD_001", "Event amount does not match order amount", http.StatusUnprocessableEntity)
}

func ErrOrderNotPaid() *AppError {
	return New("ORD_002", "Order is not paid", http.StatusConflict)
}

func ErrSelfPurchase() *AppError {
	return New("ORD_003", "Buyer cannot purchase own product", http.StatusBadRequest)
}

// ---- Balances (BAL) ----

func ErrInsufficientBalance() *AppError {
	return New("BAL_001", "Insufficient available balance", http.StatusUnprocessableEntity)
}

// ---- Payouts (PAY) ----

func ErrInvalidTransition(entity, from, to string) *AppError {
	return New("PAY_001", fmt.Sprintf("%s cannot move from %s to %s", entity, from, to), http.StatusConflict)
}

func ErrGatewayTimeout(err error) *AppError {
	return Wrap("PAY_002", "Gateway did not respond in time", http.StatusGatewayTimeout, err)
}

func ErrGatewayPermanentFailure(err error) *AppError {
	return Wrap("PAY_003", "Gateway rejected the request", http.StatusBadGateway, err)
}

func ErrDestinationMismatch() *AppError {
	return New("PAY_004", "Withdrawal destination is no longer the verified primary account", http.StatusConflict)
}

// ---- Bank accounts (BNK) ----

func ErrAccountNotVerified() *AppError {
	return New("BNK_001", "Bank account is not verified or not owned by seller", http.StatusUnprocessableEntity)
}

func ErrAccountInUse() *AppError {
	return New("BNK_002", "Bank account is referenced by an in-flight withdrawal", http.StatusConflict)
}

func ErrPrimaryAccountProtected() *AppError {
	return New("BNK_003", "Primary bank account cannot be deleted", http.StatusConflict)
}

// ---- Disputes (DSP) ----

func ErrDisputeAlreadyOpen() *AppError {
	return New("DSP_001", "Order already has an open dispute", http.StatusConflict)
}

// ---- Generic (GEN) ----

func ErrNotFound(entity string) *AppError {
	return New("GEN_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// Validation returns a GEN_002 validation error.
func Validation(message string) *AppError {
	return New("GEN_002", message, http.StatusBadRequest)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// ErrConflict is surfaced when optimistic concurrency retries are exhausted.
func ErrConflict(err error) *AppError {
	return Wrap("SYS_002", "Concurrent update conflict, retry later", http.StatusConflict, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}
