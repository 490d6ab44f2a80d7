package ledger

import (
	"context"
	"sort"
	"sync"
	"testing"
)

type stubFaults struct {
	getAccountError       error
	adjustBalanceError    error
	insertLogError        error
	listLogsError         error
	createWithdrawalError error
	updateWithdrawalError error
	createWebhookError    error
}

type stubState struct {
	accounts     map[Address]Account
	logs         []LogEntry
	withdrawals  map[RequestID]Withdrawal
	webhooks     map[RequestID]WebhookRecord
	providerRefs map[string]RequestID
}

func newStubState() *stubState {
	return &stubState{
		accounts:     make(map[Address]Account),
		withdrawals:  make(map[RequestID]Withdrawal),
		webhooks:     make(map[RequestID]WebhookRecord),
		providerRefs: make(map[string]RequestID),
	}
}

func (state *stubState) clone() *stubState {
	cloned := newStubState()
	for key, value := range state.accounts {
		cloned.accounts[key] = value
	}
	cloned.logs = append([]LogEntry(nil), state.logs...)
	for key, value := range state.withdrawals {
		cloned.withdrawals[key] = value
	}
	for key, value := range state.webhooks {
		cloned.webhooks[key] = value
	}
	for key, value := range state.providerRefs {
		cloned.providerRefs[key] = value
	}
	return cloned
}

// stubStore is an in-memory Store whose transactions are serialized and
// applied only when fn succeeds.
type stubStore struct {
	test   *testing.T
	mutex  *sync.Mutex
	root   *stubStore
	state  *stubState
	faults *stubFaults
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		test:   test,
		mutex:  &sync.Mutex{},
		state:  newStubState(),
		faults: &stubFaults{},
	}
}

func (store *stubStore) guard() func() {
	if store.root != nil {
		return func() {}
	}
	store.mutex.Lock()
	return store.mutex.Unlock
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	if store.root != nil {
		return fn(ctx, store)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	transaction := &stubStore{test: store.test, mutex: store.mutex, root: store, state: store.state.clone(), faults: store.faults}
	if err := fn(ctx, transaction); err != nil {
		return err
	}
	store.state = transaction.state
	return nil
}

func (store *stubStore) CreateAccount(_ context.Context, account Account) error {
	defer store.guard()()
	for _, existing := range store.state.accounts {
		if existing.OwnerID == account.OwnerID {
			return ErrAccountExists
		}
		if existing.Code == account.Code {
			return ErrAccountCodeTaken
		}
	}
	store.state.accounts[account.Address] = account
	return nil
}

func (store *stubStore) GetAccountByAddress(_ context.Context, address Address) (Account, error) {
	defer store.guard()()
	if store.faults.getAccountError != nil {
		return Account{}, store.faults.getAccountError
	}
	account, ok := store.state.accounts[address]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (store *stubStore) findAccount(match func(Account) bool) (Account, error) {
	defer store.guard()()
	if store.faults.getAccountError != nil {
		return Account{}, store.faults.getAccountError
	}
	for _, account := range store.state.accounts {
		if match(account) {
			return account, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (store *stubStore) GetAccountByOwner(_ context.Context, ownerID OwnerID) (Account, error) {
	return store.findAccount(func(account Account) bool { return account.OwnerID == ownerID })
}

func (store *stubStore) GetAccountByCode(_ context.Context, code AccountCode) (Account, error) {
	return store.findAccount(func(account Account) bool { return account.Code == code })
}

func (store *stubStore) GetAccountByPhone(_ context.Context, phone string) (Account, error) {
	return store.findAccount(func(account Account) bool { return account.Holder.Phone == phone })
}

func (store *stubStore) AdjustBalance(_ context.Context, address Address, delta int64, atUnixUTC int64) (Account, error) {
	defer store.guard()()
	if store.faults.adjustBalanceError != nil {
		return Account{}, store.faults.adjustBalanceError
	}
	account, ok := store.state.accounts[address]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	next := account.Balance.Int64() + delta
	if next < 0 {
		return Account{}, ErrInsufficientFunds
	}
	account.PreviousBalance = account.Balance
	account.Balance = AmountCents(next)
	account.UpdatedUnixUTC = atUnixUTC
	store.state.accounts[address] = account
	return account, nil
}

func (store *stubStore) DeleteAccount(_ context.Context, address Address) error {
	defer store.guard()()
	delete(store.state.accounts, address)
	for requestID, withdrawal := range store.state.withdrawals {
		if withdrawal.Address == address {
			delete(store.state.withdrawals, requestID)
		}
	}
	return nil
}

func (store *stubStore) InsertLogEntry(_ context.Context, entry LogEntry) (LogEntry, error) {
	defer store.guard()()
	if store.faults.insertLogError != nil {
		return LogEntry{}, store.faults.insertLogError
	}
	for _, existing := range store.state.logs {
		if existing.Reference == entry.Reference {
			return LogEntry{}, ErrDuplicateReference
		}
	}
	entry.EntryID = entry.Reference.String()
	store.state.logs = append(store.state.logs, entry)
	return entry, nil
}

func (store *stubStore) ListLogEntries(_ context.Context, address Address, limit int, newestFirst bool) ([]LogEntry, error) {
	defer store.guard()()
	if store.faults.listLogsError != nil {
		return nil, store.faults.listLogsError
	}
	matched := make([]LogEntry, 0)
	for _, entry := range store.state.logs {
		if entry.Address == address || entry.Sender == address.String() || entry.Recipient == address.String() {
			matched = append(matched, entry)
		}
	}
	if newestFirst {
		for left, right := 0, len(matched)-1; left < right; left, right = left+1, right-1 {
			matched[left], matched[right] = matched[right], matched[left]
		}
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (store *stubStore) CreateWithdrawal(_ context.Context, withdrawal Withdrawal) error {
	defer store.guard()()
	if store.faults.createWithdrawalError != nil {
		return store.faults.createWithdrawalError
	}
	store.state.withdrawals[withdrawal.RequestID] = withdrawal
	return nil
}

func (store *stubStore) GetWithdrawal(_ context.Context, requestID RequestID) (Withdrawal, error) {
	defer store.guard()()
	withdrawal, ok := store.state.withdrawals[requestID]
	if !ok {
		return Withdrawal{}, ErrWithdrawalNotFound
	}
	return withdrawal, nil
}

func (store *stubStore) HasPendingWithdrawal(_ context.Context, address Address) (bool, error) {
	defer store.guard()()
	for _, withdrawal := range store.state.withdrawals {
		if withdrawal.Address == address && withdrawal.Status == WithdrawalStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (store *stubStore) UpdateWithdrawalStatus(_ context.Context, requestID RequestID, from WithdrawalStatus, to WithdrawalStatus, reason string, atUnixUTC int64) error {
	defer store.guard()()
	if store.faults.updateWithdrawalError != nil {
		return store.faults.updateWithdrawalError
	}
	withdrawal, ok := store.state.withdrawals[requestID]
	if !ok {
		return ErrWithdrawalNotFound
	}
	if withdrawal.Status != from {
		return ErrWithdrawalClosed
	}
	withdrawal.Status = to
	withdrawal.StatusReason = reason
	withdrawal.UpdatedUnixUTC = atUnixUTC
	store.state.withdrawals[requestID] = withdrawal
	return nil
}

func (store *stubStore) ListWithdrawals(_ context.Context, address Address) ([]Withdrawal, error) {
	defer store.guard()()
	withdrawals := make([]Withdrawal, 0)
	for _, withdrawal := range store.state.withdrawals {
		if withdrawal.Address == address {
			withdrawals = append(withdrawals, withdrawal)
		}
	}
	sort.Slice(withdrawals, func(left, right int) bool {
		return withdrawals[left].CreatedUnixUTC > withdrawals[right].CreatedUnixUTC
	})
	return withdrawals, nil
}

func (store *stubStore) CreateWebhook(_ context.Context, record WebhookRecord) error {
	defer store.guard()()
	if store.faults.createWebhookError != nil {
		return store.faults.createWebhookError
	}
	store.state.webhooks[record.RequestID] = record
	return nil
}

func (store *stubStore) ResolveWebhook(_ context.Context, requestID RequestID, status WebhookStatus, providerReference string) error {
	defer store.guard()()
	record, ok := store.state.webhooks[requestID]
	if !ok {
		return ErrWebhookNotFound
	}
	if providerReference != "" {
		if _, claimed := store.state.providerRefs[providerReference]; claimed {
			return ErrDuplicateProviderRef
		}
		store.state.providerRefs[providerReference] = requestID
		record.ProviderReference = providerReference
	}
	record.Status = status
	store.state.webhooks[requestID] = record
	return nil
}

func (store *stubStore) snapshot() *stubState {
	defer store.guard()()
	return store.state.clone()
}

func (store *stubStore) logsFor(address Address) []LogEntry {
	entries := make([]LogEntry, 0)
	for _, entry := range store.snapshot().logs {
		if entry.Address == address {
			entries = append(entries, entry)
		}
	}
	return entries
}

func (store *stubStore) webhookStatuses() []WebhookStatus {
	statuses := make([]WebhookStatus, 0)
	for _, record := range store.snapshot().webhooks {
		statuses = append(statuses, record.Status)
	}
	sort.Slice(statuses, func(left, right int) bool { return statuses[left] < statuses[right] })
	return statuses
}

type recordingNotifier struct {
	mutex         sync.Mutex
	notifications []Notification
}

func (notifier *recordingNotifier) Notify(_ context.Context, notification Notification) {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	notifier.notifications = append(notifier.notifications, notification)
}

func (notifier *recordingNotifier) destinations() []string {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	destinations := make([]string, 0, len(notifier.notifications))
	for _, notification := range notifier.notifications {
		destinations = append(destinations, notification.Destination)
	}
	return destinations
}

func fixedClock() int64 {
	return 1700000000
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, fixedClock, options...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return service
}

func mustOwnerID(test *testing.T, raw string) OwnerID {
	test.Helper()
	ownerID, err := NewOwnerID(raw)
	if err != nil {
		test.Fatalf("owner id: %v", err)
	}
	return ownerID
}

func mustReference(test *testing.T, raw string) Reference {
	test.Helper()
	reference, err := NewReference(raw)
	if err != nil {
		test.Fatalf("reference: %v", err)
	}
	return reference
}

func mustOpenAccount(test *testing.T, service *Service, owner string, phone string, balance AmountCents) Account {
	test.Helper()
	account, err := service.CreateAccount(context.Background(), mustOwnerID(test, owner), Holder{Name: owner, Phone: phone}, balance)
	if err != nil {
		test.Fatalf("create account %s: %v", owner, err)
	}
	return account
}

func mustBalance(test *testing.T, service *Service, address Address) AmountCents {
	test.Helper()
	account, err := service.GetAccountByAddress(context.Background(), address)
	if err != nil {
		test.Fatalf("get account: %v", err)
	}
	return account.Balance
}
