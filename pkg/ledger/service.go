package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Service is the ledger engine. Every balance mutation goes through it.
type Service struct {
	store             Store
	nowFn             func() int64
	loggers           []OperationLogger
	notifier          Notifier
	locker            AccountLocker
	minimumWithdrawal AmountCents
	operationsPhone   string
	newID             func() string
	newCode           func() string
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:             store,
		nowFn:             now,
		notifier:          discardNotifier{},
		locker:            NewKeyedLocker(),
		minimumWithdrawal: DefaultMinimumWithdrawal,
		newID:             uuid.NewString,
		newCode:           randomAccountCode,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if service.minimumWithdrawal <= 0 {
		return nil, fmt.Errorf("%w: minimum withdrawal must be positive", ErrInvalidServiceConfig)
	}
	return service, nil
}

// CreditRequest describes a credit to one account.
type CreditRequest struct {
	Address   Address
	Amount    AmountCents
	Reference Reference
	Channel   string
	Narration string
	// Sender defaults to "system".
	Sender string
	Notify bool
}

// DebitRequest describes a debit from one account.
type DebitRequest struct {
	Address   Address
	Amount    AmountCents
	Reference Reference
	Channel   string
	Narration string
	// Recipient defaults to "system".
	Recipient string
	Notify    bool
}

// TransferRequest moves units from Source to the account owning RecipientCode.
type TransferRequest struct {
	Source        Address
	RecipientCode AccountCode
	Amount        AmountCents
	Narration     string
}

// TransferResult carries both updated accounts and the shared log entry.
type TransferResult struct {
	Source    Account
	Recipient Account
	Entry     LogEntry
}

// CreateAccount opens the unit account of owner with an optional starting balance.
// A positive starting balance is logged as a signup credit.
func (service *Service) CreateAccount(ctx context.Context, ownerID OwnerID, holder Holder, startingBalance AmountCents) (Account, error) {
	var created Account
	operationError := func() error {
		if startingBalance < 0 {
			return fmt.Errorf("%w: starting balance must not be negative", ErrInvalidBalance)
		}
		for attempt := 0; attempt < accountCodeAttempts; attempt++ {
			account, err := service.createAccountOnce(ctx, ownerID, holder, startingBalance)
			if errors.Is(err, ErrAccountCodeTaken) {
				continue
			}
			created = account
			return err
		}
		return fmt.Errorf("%w: gave up after %d attempts", ErrAccountCodeTaken, accountCodeAttempts)
	}()
	service.logOperation(ctx, OperationLog{
		Operation:    operationCreateAccount,
		Address:      created.Address,
		Counterparty: ownerID.String(),
		Amount:       startingBalance,
		Channel:      ChannelSignup,
		Error:        operationError,
	})
	if operationError != nil {
		return Account{}, operationError
	}
	return created, nil
}

func (service *Service) createAccountOnce(ctx context.Context, ownerID OwnerID, holder Holder, startingBalance AmountCents) (Account, error) {
	code, err := NewAccountCode(service.newCode())
	if err != nil {
		return Account{}, err
	}
	address, err := NewAddress(service.newID())
	if err != nil {
		return Account{}, err
	}
	nowUnixUTC := service.nowFn()
	account := Account{
		Address: address,
		OwnerID: ownerID,
		Code:    code,
		Holder: Holder{
			Name:  strings.TrimSpace(holder.Name),
			Phone: strings.TrimSpace(holder.Phone),
		},
		Balance:        startingBalance,
		Status:         AccountStatusActive,
		CreatedUnixUTC: nowUnixUTC,
		UpdatedUnixUTC: nowUnixUTC,
	}
	err = service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		_, lookupErr := transactionStore.GetAccountByOwner(ctx, ownerID)
		if lookupErr == nil {
			return ErrAccountExists
		}
		if !errors.Is(lookupErr, ErrAccountNotFound) {
			return lookupErr
		}
		if err := transactionStore.CreateAccount(ctx, account); err != nil {
			return err
		}
		if startingBalance == 0 {
			return nil
		}
		reference, err := service.generateReference()
		if err != nil {
			return err
		}
		_, err = transactionStore.InsertLogEntry(ctx, LogEntry{
			Address:        address,
			OwnerID:        ownerID,
			Activity:       ActivityCredit,
			Status:         EntryStatusSuccessful,
			Sender:         systemCounterparty,
			Recipient:      address.String(),
			Amount:         startingBalance,
			Reference:      reference,
			Channel:        ChannelSignup,
			Narration:      signupNarration,
			CreatedUnixUTC: nowUnixUTC,
		})
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// GetAccountByAddress loads an account by its ledger address.
func (service *Service) GetAccountByAddress(ctx context.Context, address Address) (Account, error) {
	return service.store.GetAccountByAddress(ctx, address)
}

// GetAccountByOwner loads the account owned by ownerID.
func (service *Service) GetAccountByOwner(ctx context.Context, ownerID OwnerID) (Account, error) {
	return service.store.GetAccountByOwner(ctx, ownerID)
}

// GetAccountByCode resolves a recipient lookup code.
func (service *Service) GetAccountByCode(ctx context.Context, code AccountCode) (Account, error) {
	account, err := service.store.GetAccountByCode(ctx, code)
	if errors.Is(err, ErrAccountNotFound) {
		return Account{}, fmt.Errorf("%w: code %s", ErrRecipientNotFound, code.String())
	}
	return account, err
}

// DeleteAccount removes an account together with its withdrawal requests.
// Log entries are kept.
func (service *Service) DeleteAccount(ctx context.Context, address Address) error {
	operationError := service.withAccountLocks(ctx, []Address{address}, func(ctx context.Context) error {
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			if _, err := transactionStore.GetAccountByAddress(ctx, address); err != nil {
				return err
			}
			return transactionStore.DeleteAccount(ctx, address)
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDeleteAccount,
		Address:   address,
		Error:     operationError,
	})
	return operationError
}

// Credit adds units to an account and appends a CREDIT log entry.
func (service *Service) Credit(ctx context.Context, request CreditRequest) (Account, error) {
	var updated Account
	var entry LogEntry
	operationError := service.withAccountLocks(ctx, []Address{request.Address}, func(ctx context.Context) error {
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			var err error
			updated, entry, err = service.creditWithin(ctx, transactionStore, request, service.nowFn())
			return err
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation:    operationCredit,
		Address:      request.Address,
		Counterparty: counterpartyOrSystem(request.Sender),
		Amount:       request.Amount,
		Reference:    entry.Reference,
		Channel:      request.Channel,
		Error:        operationError,
	})
	if operationError != nil {
		return Account{}, operationError
	}
	if request.Notify {
		service.notify(ctx, operationCredit, updated, fmt.Sprintf("Your unit account has been credited with %s units. Balance: %s units", request.Amount.Format(), updated.Balance.Format()))
	}
	return updated, nil
}

// Debit removes units from an account and appends a DEBIT log entry.
// The balance check happens before any write.
func (service *Service) Debit(ctx context.Context, request DebitRequest) (Account, error) {
	var updated Account
	var entry LogEntry
	operationError := service.withAccountLocks(ctx, []Address{request.Address}, func(ctx context.Context) error {
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			var err error
			updated, entry, err = service.debitWithin(ctx, transactionStore, request, service.nowFn())
			return err
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation:    operationDebit,
		Address:      request.Address,
		Counterparty: counterpartyOrSystem(request.Recipient),
		Amount:       request.Amount,
		Reference:    entry.Reference,
		Channel:      request.Channel,
		Error:        operationError,
	})
	if operationError != nil {
		return Account{}, operationError
	}
	if request.Notify {
		service.notify(ctx, operationDebit, updated, fmt.Sprintf("Your unit account has been debited with %s units. Balance: %s units", request.Amount.Format(), updated.Balance.Format()))
	}
	return updated, nil
}

// Transfer debits the source and credits the recipient in one transaction
// and records a single log entry naming both counterparties.
func (service *Service) Transfer(ctx context.Context, request TransferRequest) (TransferResult, error) {
	var result TransferResult
	operationError := func() error {
		if request.Amount <= 0 {
			return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
		}
		recipient, err := service.GetAccountByCode(ctx, request.RecipientCode)
		if err != nil {
			return err
		}
		if recipient.Address == request.Source {
			return ErrSelfTransfer
		}
		return service.withAccountLocks(ctx, []Address{request.Source, recipient.Address}, func(ctx context.Context) error {
			return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
				var err error
				result, err = service.transferWithin(ctx, transactionStore, request, recipient.Address, service.nowFn())
				return err
			})
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:    operationTransfer,
		Address:      request.Source,
		Counterparty: result.Recipient.Address.String(),
		Amount:       request.Amount,
		Reference:    result.Entry.Reference,
		Channel:      ChannelUnitTransfer,
		Error:        operationError,
	})
	if operationError != nil {
		return TransferResult{}, operationError
	}
	service.notify(ctx, operationTransfer, result.Source, fmt.Sprintf("You sent %s units to account %s. Balance: %s units", request.Amount.Format(), result.Recipient.Code.String(), result.Source.Balance.Format()))
	service.notify(ctx, operationTransfer, result.Recipient, fmt.Sprintf("You received %s units from account %s. Balance: %s units", request.Amount.Format(), result.Source.Code.String(), result.Recipient.Balance.Format()))
	return result, nil
}

func (service *Service) transferWithin(ctx context.Context, transactionStore Store, request TransferRequest, recipientAddress Address, nowUnixUTC int64) (TransferResult, error) {
	ordered := sortAddresses(request.Source, recipientAddress)
	accounts := make(map[Address]Account, len(ordered))
	for _, address := range ordered {
		account, err := transactionStore.GetAccountByAddress(ctx, address)
		if errors.Is(err, ErrAccountNotFound) && address == recipientAddress {
			return TransferResult{}, fmt.Errorf("%w: %s", ErrRecipientNotFound, address.String())
		}
		if err != nil {
			return TransferResult{}, err
		}
		accounts[address] = account
	}
	source := accounts[request.Source]
	if source.Balance < request.Amount {
		return TransferResult{}, insufficientFunds(source.Balance, request.Amount)
	}
	reference, err := service.generateReference()
	if err != nil {
		return TransferResult{}, err
	}
	for _, address := range ordered {
		delta := request.Amount.Int64()
		if address == request.Source {
			delta = -delta
		}
		updated, err := transactionStore.AdjustBalance(ctx, address, delta, nowUnixUTC)
		if err != nil {
			return TransferResult{}, err
		}
		accounts[address] = updated
	}
	entry, err := transactionStore.InsertLogEntry(ctx, LogEntry{
		Address:        source.Address,
		OwnerID:        source.OwnerID,
		Activity:       ActivityDebit,
		Status:         EntryStatusSuccessful,
		Sender:         source.Address.String(),
		Recipient:      recipientAddress.String(),
		Amount:         request.Amount,
		Reference:      reference,
		Channel:        ChannelUnitTransfer,
		Narration:      strings.TrimSpace(request.Narration),
		CreatedUnixUTC: nowUnixUTC,
	})
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{
		Source:    accounts[request.Source],
		Recipient: accounts[recipientAddress],
		Entry:     entry,
	}, nil
}

// ListLogs returns log entries where address is the owner, sender or recipient.
func (service *Service) ListLogs(ctx context.Context, address Address, limit int, newestFirst bool) ([]LogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	entries, err := service.store.ListLogEntries(ctx, address, limit, newestFirst)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoLogEntries
	}
	return entries, nil
}

func (service *Service) creditWithin(ctx context.Context, transactionStore Store, request CreditRequest, nowUnixUTC int64) (Account, LogEntry, error) {
	if err := validateMutation(request.Amount, request.Channel); err != nil {
		return Account{}, LogEntry{}, err
	}
	account, err := transactionStore.GetAccountByAddress(ctx, request.Address)
	if err != nil {
		return Account{}, LogEntry{}, err
	}
	reference, err := service.referenceOrGenerate(request.Reference)
	if err != nil {
		return Account{}, LogEntry{}, err
	}
	updated, err := transactionStore.AdjustBalance(ctx, account.Address, request.Amount.Int64(), nowUnixUTC)
	if err != nil {
		return Account{}, LogEntry{}, err
	}
	entry, err := transactionStore.InsertLogEntry(ctx, LogEntry{
		Address:        account.Address,
		OwnerID:        account.OwnerID,
		Activity:       ActivityCredit,
		Status:         EntryStatusSuccessful,
		Sender:         counterpartyOrSystem(request.Sender),
		Recipient:      account.Address.String(),
		Amount:         request.Amount,
		Reference:      reference,
		Channel:        strings.TrimSpace(request.Channel),
		Narration:      strings.TrimSpace(request.Narration),
		CreatedUnixUTC: nowUnixUTC,
	})
	if err != nil {
		return Account{}, LogEntry{}, err
	}
	return updated, entry, nil
}

func (service *Service) debitWithin(ctx context.Context, transactionStore Store, request DebitRequest, nowUnixUTC int64) (Account, LogEntry, error) {
	if err := validateMutation(request.Amount, request.Channel); err != nil {
		return Account{}, LogEntry{}, err
	}
	account, err := transactionStore.GetAccountByAddress(ctx, request.Address)
	if err != nil {
		return Account{}, LogEntry{}, err
	}
	if account.Balance < request.Amount {
		return Account{}, LogEntry{}, insufficientFunds(account.Balance, request.Amount)
	}
	reference, err := service.referenceOrGenerate(request.Reference)
	if err != nil {
		return Account{}, LogEntry{}, err
	}
	updated, err := transactionStore.AdjustBalance(ctx, account.Address, -request.Amount.Int64(), nowUnixUTC)
	if err != nil {
		return Account{}, LogEntry{}, err
	}
	entry, err := transactionStore.InsertLogEntry(ctx, LogEntry{
		Address:        account.Address,
		OwnerID:        account.OwnerID,
		Activity:       ActivityDebit,
		Status:         EntryStatusSuccessful,
		Sender:         account.Address.String(),
		Recipient:      counterpartyOrSystem(request.Recipient),
		Amount:         request.Amount,
		Reference:      reference,
		Channel:        strings.TrimSpace(request.Channel),
		Narration:      strings.TrimSpace(request.Narration),
		CreatedUnixUTC: nowUnixUTC,
	})
	if err != nil {
		return Account{}, LogEntry{}, err
	}
	return updated, entry, nil
}

func (service *Service) withAccountLocks(ctx context.Context, addresses []Address, fn func(ctx context.Context) error) error {
	keys := make([]string, 0, len(addresses))
	for _, address := range addresses {
		keys = append(keys, address.String())
	}
	unlock, err := service.locker.Lock(ctx, keys...)
	if err != nil {
		return WrapError("service", "account_lock", "acquire", err)
	}
	defer unlock()
	return fn(ctx)
}

func (service *Service) notify(ctx context.Context, operation string, account Account, message string) {
	service.send(ctx, Notification{
		Destination: account.Holder.Phone,
		Message:     message,
		Operation:   operation,
		Address:     account.Address,
	})
}

func (service *Service) send(ctx context.Context, notification Notification) {
	if strings.TrimSpace(notification.Destination) == "" {
		return
	}
	service.notifier.Notify(context.WithoutCancel(ctx), notification)
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if len(service.loggers) == 0 {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = OperationStatusError
		} else {
			entry.Status = OperationStatusOK
		}
	}
	for _, logger := range service.loggers {
		logger.LogOperation(ctx, entry)
	}
}

func (service *Service) referenceOrGenerate(reference Reference) (Reference, error) {
	if !reference.IsZero() {
		return reference, nil
	}
	return service.generateReference()
}

func (service *Service) generateReference() (Reference, error) {
	return NewReference(service.uniqueID(referencePrefix))
}

func (service *Service) uniqueID(prefix string) string {
	compact := strings.ToUpper(strings.ReplaceAll(service.newID(), "-", ""))
	if len(compact) > uniqueIDLength {
		compact = compact[:uniqueIDLength]
	}
	return prefix + compact
}

func validateMutation(amount AmountCents, channel string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	if strings.TrimSpace(channel) == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidChannel)
	}
	return nil
}

func insufficientFunds(balance AmountCents, requested AmountCents) error {
	return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds, balance.String(), requested.String())
}

func counterpartyOrSystem(counterparty string) string {
	trimmed := strings.TrimSpace(counterparty)
	if trimmed == "" {
		return systemCounterparty
	}
	return trimmed
}

func sortAddresses(first Address, second Address) []Address {
	if second.String() < first.String() {
		return []Address{second, first}
	}
	return []Address{first, second}
}

func randomAccountCode() string {
	return strconv.Itoa(accountCodeMinimum + rand.IntN(accountCodeSpan))
}
