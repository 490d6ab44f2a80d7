package ledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the ledger service.
var (
	ErrAccountNotFound         = errors.New("unit account not found")
	ErrRecipientNotFound       = errors.New("recipient unit account not found")
	ErrWithdrawalNotFound      = errors.New("withdrawal request not found")
	ErrNoLogEntries            = errors.New("no transaction found")
	ErrWebhookNotFound         = errors.New("webhook record not found")
	ErrNoWithdrawals           = errors.New("no withdrawal request found")
	ErrInsufficientFunds       = errors.New("insufficient units")
	ErrAccountExists           = errors.New("user already has a unit account")
	ErrAccountCodeTaken        = errors.New("account code already taken")
	ErrDuplicateReference      = errors.New("duplicate transaction reference")
	ErrDuplicateProviderRef    = errors.New("provider reference already applied")
	ErrPendingWithdrawalExists = errors.New("pending unit withdrawal request exists")
	ErrWithdrawalBelowMinimum  = errors.New("withdrawal amount below minimum")
	ErrWithdrawalClosed        = errors.New("withdrawal request already closed")
	ErrSelfTransfer            = errors.New("cannot transfer to own account")
	ErrInvalidWebhook          = errors.New("unable to validate transaction")
	ErrInvalidAddress          = errors.New("invalid account address")
	ErrInvalidOwnerID          = errors.New("invalid owner id")
	ErrInvalidAccountCode      = errors.New("invalid account code")
	ErrInvalidReference        = errors.New("invalid reference")
	ErrInvalidRequestID        = errors.New("invalid request id")
	ErrInvalidChannel          = errors.New("invalid channel")
	ErrInvalidActivity         = errors.New("invalid activity")
	ErrInvalidAccountStatus    = errors.New("invalid account status")
	ErrInvalidAmountCents      = errors.New("invalid amount")
	ErrInvalidBankDetails      = errors.New("invalid bank details")
	ErrInvalidWithdrawalStatus = errors.New("invalid withdrawal request status")
	ErrInvalidRole             = errors.New("invalid role")
	ErrInvalidServiceConfig    = errors.New("invalid service config")
	ErrInvalidBalance          = errors.New("invalid balance")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrWebhookSignature        = errors.New("webhook signature mismatch")
)

// Kind classifies errors for transport-level mapping.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindInvalidRequest    Kind = "invalid_request"
	KindDuplicate         Kind = "duplicate"
	KindUnauthorized      Kind = "unauthorized"
	KindUnexpected        Kind = "unexpected"
)

var errorKinds = []struct {
	target error
	kind   Kind
}{
	{ErrAccountNotFound, KindNotFound},
	{ErrRecipientNotFound, KindInvalidRequest},
	{ErrWithdrawalNotFound, KindNotFound},
	{ErrNoLogEntries, KindNotFound},
	{ErrWebhookNotFound, KindNotFound},
	{ErrNoWithdrawals, KindNotFound},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrAccountExists, KindDuplicate},
	{ErrDuplicateReference, KindDuplicate},
	{ErrDuplicateProviderRef, KindDuplicate},
	{ErrPendingWithdrawalExists, KindInvalidRequest},
	{ErrWithdrawalBelowMinimum, KindInvalidRequest},
	{ErrWithdrawalClosed, KindInvalidRequest},
	{ErrSelfTransfer, KindInvalidRequest},
	{ErrInvalidWebhook, KindInvalidRequest},
	{ErrInvalidAddress, KindInvalidRequest},
	{ErrInvalidOwnerID, KindInvalidRequest},
	{ErrInvalidAccountCode, KindInvalidRequest},
	{ErrInvalidReference, KindInvalidRequest},
	{ErrInvalidRequestID, KindInvalidRequest},
	{ErrInvalidChannel, KindInvalidRequest},
	{ErrInvalidActivity, KindInvalidRequest},
	{ErrInvalidAccountStatus, KindInvalidRequest},
	{ErrInvalidAmountCents, KindInvalidRequest},
	{ErrInvalidBankDetails, KindInvalidRequest},
	{ErrInvalidWithdrawalStatus, KindInvalidRequest},
	{ErrInvalidRole, KindUnauthorized},
	{ErrPermissionDenied, KindUnauthorized},
	{ErrWebhookSignature, KindUnauthorized},
}

// KindOf returns the classification of err. Unknown errors are KindUnexpected.
func KindOf(err error) Kind {
	for _, candidate := range errorKinds {
		if errors.Is(err, candidate.target) {
			return candidate.kind
		}
	}
	return KindUnexpected
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
