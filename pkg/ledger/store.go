package ledger

import "context"

// Store is the persistence contract used by Service and Reconciler.
// Reads of an account inside WithTx take a row lock where the backend supports it.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	CreateAccount(ctx context.Context, account Account) error
	GetAccountByAddress(ctx context.Context, address Address) (Account, error)
	GetAccountByOwner(ctx context.Context, ownerID OwnerID) (Account, error)
	GetAccountByCode(ctx context.Context, code AccountCode) (Account, error)
	GetAccountByPhone(ctx context.Context, phone string) (Account, error)
	// AdjustBalance adds delta to the balance unless the result would be negative,
	// in which case it returns ErrInsufficientFunds and writes nothing.
	AdjustBalance(ctx context.Context, address Address, delta int64, atUnixUTC int64) (Account, error)
	DeleteAccount(ctx context.Context, address Address) error

	InsertLogEntry(ctx context.Context, entry LogEntry) (LogEntry, error)
	ListLogEntries(ctx context.Context, address Address, limit int, newestFirst bool) ([]LogEntry, error)

	CreateWithdrawal(ctx context.Context, withdrawal Withdrawal) error
	GetWithdrawal(ctx context.Context, requestID RequestID) (Withdrawal, error)
	HasPendingWithdrawal(ctx context.Context, address Address) (bool, error)
	UpdateWithdrawalStatus(ctx context.Context, requestID RequestID, from WithdrawalStatus, to WithdrawalStatus, reason string, atUnixUTC int64) error
	ListWithdrawals(ctx context.Context, address Address) ([]Withdrawal, error)

	CreateWebhook(ctx context.Context, record WebhookRecord) error
	// ResolveWebhook sets the final status. A non-empty providerReference is claimed
	// on the record and fails with ErrDuplicateProviderRef when already claimed.
	ResolveWebhook(ctx context.Context, requestID RequestID, status WebhookStatus, providerReference string) error
}
