package ledger

import (
	"fmt"
	"regexp"
	"strings"
)

// AmountCents is an integer amount of units in hundredths.
type AmountCents int64

// NewAmountCents validates an amount and ensures it is strictly positive.
func NewAmountCents(raw int64) (AmountCents, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	return AmountCents(raw), nil
}

// NewBalanceCents validates a balance, which may be zero.
func NewBalanceCents(raw int64) (AmountCents, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidBalance)
	}
	return AmountCents(raw), nil
}

// Int64 exposes the raw cents value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// Address identifies a unit account in every transfer.
type Address struct {
	value string
}

// OwnerID identifies the user that owns an account.
type OwnerID struct {
	value string
}

// AccountCode is the six-digit recipient lookup code.
type AccountCode struct {
	value string
}

// Reference identifies one logical transaction.
type Reference struct {
	value string
}

// RequestID identifies a withdrawal request or webhook record.
type RequestID struct {
	value string
}

var accountCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// NewAddress validates and normalizes an account address.
func NewAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Address{}, fmt.Errorf("%w: empty value", ErrInvalidAddress)
	}
	return Address{value: trimmed}, nil
}

// String returns the normalized address.
func (address Address) String() string {
	return address.value
}

// NewOwnerID validates and normalizes an owner id.
func NewOwnerID(raw string) (OwnerID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return OwnerID{}, fmt.Errorf("%w: empty value", ErrInvalidOwnerID)
	}
	return OwnerID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id OwnerID) String() string {
	return id.value
}

// NewAccountCode validates a six-digit lookup code.
func NewAccountCode(raw string) (AccountCode, error) {
	trimmed := strings.TrimSpace(raw)
	if !accountCodePattern.MatchString(trimmed) {
		return AccountCode{}, fmt.Errorf("%w: expected six digits", ErrInvalidAccountCode)
	}
	return AccountCode{value: trimmed}, nil
}

// String returns the code.
func (code AccountCode) String() string {
	return code.value
}

// NewReference validates and normalizes a transaction reference.
func NewReference(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reference{}, fmt.Errorf("%w: empty value", ErrInvalidReference)
	}
	return Reference{value: trimmed}, nil
}

// String returns the normalized reference.
func (reference Reference) String() string {
	return reference.value
}

// IsZero reports whether the reference was never set.
func (reference Reference) IsZero() bool {
	return reference.value == ""
}

// NewRequestID validates and normalizes a request id.
func NewRequestID(raw string) (RequestID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RequestID{}, fmt.Errorf("%w: empty value", ErrInvalidRequestID)
	}
	return RequestID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id RequestID) String() string {
	return id.value
}

// AccountStatus describes whether an account is usable.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusInactive AccountStatus = "INACTIVE"
)

// ParseAccountStatus validates a stored account status.
func ParseAccountStatus(raw string) (AccountStatus, error) {
	switch AccountStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case AccountStatusActive:
		return AccountStatusActive, nil
	case AccountStatusInactive:
		return AccountStatusInactive, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountStatus, raw)
	}
}

// Holder carries the contact details of an account holder.
type Holder struct {
	Name  string
	Phone string
}

// Account is a unit balance record, one per owner.
type Account struct {
	Address         Address
	OwnerID         OwnerID
	Code            AccountCode
	Holder          Holder
	Balance         AmountCents
	PreviousBalance AmountCents
	Status          AccountStatus
	CreatedUnixUTC  int64
	UpdatedUnixUTC  int64
}

// Activity is the direction of a log entry.
type Activity string

const (
	ActivityCredit Activity = "CREDIT"
	ActivityDebit  Activity = "DEBIT"
)

// ParseActivity validates a stored activity.
func ParseActivity(raw string) (Activity, error) {
	switch Activity(strings.ToUpper(strings.TrimSpace(raw))) {
	case ActivityCredit:
		return ActivityCredit, nil
	case ActivityDebit:
		return ActivityDebit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidActivity, raw)
	}
}

// EntryStatus is the outcome recorded on a log entry.
type EntryStatus string

const (
	EntryStatusPending    EntryStatus = "PENDING"
	EntryStatusSuccessful EntryStatus = "SUCCESSFUL"
	EntryStatusFailed     EntryStatus = "FAILED"
)

// LogEntry is an immutable record of one balance mutation.
type LogEntry struct {
	EntryID        string
	Address        Address
	OwnerID        OwnerID
	Activity       Activity
	Status         EntryStatus
	Sender         string
	Recipient      string
	Amount         AmountCents
	Reference      Reference
	Channel        string
	Narration      string
	CreatedUnixUTC int64
}

// BankDetails is the payout destination of a withdrawal.
type BankDetails struct {
	AccountNumber string
	AccountName   string
	AccountType   string
}

// NewBankDetails validates and normalizes payout details.
func NewBankDetails(accountNumber string, accountName string, accountType string) (BankDetails, error) {
	details := BankDetails{
		AccountNumber: strings.TrimSpace(accountNumber),
		AccountName:   strings.TrimSpace(accountName),
		AccountType:   strings.TrimSpace(accountType),
	}
	if details.AccountNumber == "" {
		return BankDetails{}, fmt.Errorf("%w: account number is required", ErrInvalidBankDetails)
	}
	if details.AccountName == "" {
		return BankDetails{}, fmt.Errorf("%w: account name is required", ErrInvalidBankDetails)
	}
	if details.AccountType == "" {
		return BankDetails{}, fmt.Errorf("%w: account type is required", ErrInvalidBankDetails)
	}
	return details, nil
}

// WithdrawalStatus defines the withdrawal request lifecycle.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "PENDING"
	WithdrawalStatusInProgress WithdrawalStatus = "INPROGRESS"
	WithdrawalStatusSuccessful WithdrawalStatus = "SUCCESSFUL"
	WithdrawalStatusCanceled   WithdrawalStatus = "CANCELED"
)

// ParseWithdrawalStatus validates a withdrawal status string.
func ParseWithdrawalStatus(raw string) (WithdrawalStatus, error) {
	switch WithdrawalStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case WithdrawalStatusPending:
		return WithdrawalStatusPending, nil
	case WithdrawalStatusInProgress:
		return WithdrawalStatusInProgress, nil
	case WithdrawalStatusSuccessful:
		return WithdrawalStatusSuccessful, nil
	case WithdrawalStatusCanceled:
		return WithdrawalStatusCanceled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWithdrawalStatus, raw)
	}
}

// IsTerminal reports whether no further transition is allowed.
func (status WithdrawalStatus) IsTerminal() bool {
	return status == WithdrawalStatusSuccessful || status == WithdrawalStatusCanceled
}

// Withdrawal tracks a pending external payout.
type Withdrawal struct {
	RequestID      RequestID
	OwnerID        OwnerID
	Address        Address
	Amount         AmountCents
	Bank           BankDetails
	Status         WithdrawalStatus
	StatusReason   string
	CreatedUnixUTC int64
	UpdatedUnixUTC int64
}

// WebhookStatus is the processing outcome of an inbound payment event.
type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = "PENDING"
	WebhookStatusSuccessful WebhookStatus = "SUCCESSFUL"
	WebhookStatusFailed     WebhookStatus = "FAILED"
	WebhookStatusDuplicate  WebhookStatus = "DUPLICATE"
)

// WebhookRecord is the raw audit record of an inbound payment event.
type WebhookRecord struct {
	RequestID         RequestID
	Payload           []byte
	Status            WebhookStatus
	ProviderReference string
	CreatedUnixUTC    int64
}

// ParseWebhookStatus validates a stored webhook status.
func ParseWebhookStatus(raw string) (WebhookStatus, error) {
	switch WebhookStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case WebhookStatusPending:
		return WebhookStatusPending, nil
	case WebhookStatusSuccessful:
		return WebhookStatusSuccessful, nil
	case WebhookStatusFailed:
		return WebhookStatusFailed, nil
	case WebhookStatusDuplicate:
		return WebhookStatusDuplicate, nil
	default:
		return "", fmt.Errorf("%w: unknown webhook status %q", ErrInvalidWebhook, raw)
	}
}
