package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
)

const (
	ownerAlice = "owner-alice"
	ownerBob   = "owner-bob"
	phoneAlice = "+2348000000001"
	phoneBob   = "+2348000000002"
)

func TestNewServiceRejectsMissingDependencies(test *testing.T) {
	test.Parallel()
	if _, err := NewService(nil, fixedClock); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig for nil store, got %v", err)
	}
	if _, err := NewService(newStubStore(test), nil); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig for nil clock, got %v", err)
	}
	if _, err := NewService(newStubStore(test), fixedClock, WithMinimumWithdrawal(0)); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig for zero minimum, got %v", err)
	}
}

func TestCreateAccountWritesSignupCredit(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 10000)

	if account.Balance != 10000 || account.Status != AccountStatusActive {
		test.Fatalf("unexpected account: %+v", account)
	}
	if _, err := NewAccountCode(account.Code.String()); err != nil {
		test.Fatalf("expected six digit code, got %q", account.Code.String())
	}
	entries := store.logsFor(account.Address)
	if len(entries) != 1 {
		test.Fatalf("expected one signup entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Activity != ActivityCredit || entry.Sender != systemCounterparty || entry.Channel != ChannelSignup || entry.Narration != signupNarration || entry.Amount != 10000 {
		test.Fatalf("unexpected signup entry: %+v", entry)
	}

	_, err := service.CreateAccount(context.Background(), mustOwnerID(test, ownerAlice), Holder{}, 0)
	if !errors.Is(err, ErrAccountExists) {
		test.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestCreateAccountWithoutStartingBalanceSkipsLog(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 0)
	if entries := store.logsFor(account.Address); len(entries) != 0 {
		test.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestCreateAccountRetriesCodeCollision(test *testing.T) {
	test.Parallel()
	codes := []string{"111111", "111111", "222222"}
	var mutex sync.Mutex
	generator := func() string {
		mutex.Lock()
		defer mutex.Unlock()
		code := codes[0]
		codes = codes[1:]
		return code
	}
	service := mustNewService(test, newStubStore(test), WithCodeGenerator(generator))
	first := mustOpenAccount(test, service, ownerAlice, phoneAlice, 0)
	second := mustOpenAccount(test, service, ownerBob, phoneBob, 0)
	if first.Code.String() != "111111" || second.Code.String() != "222222" {
		test.Fatalf("unexpected codes %s and %s", first.Code.String(), second.Code.String())
	}
}

func TestDebitScenario(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 100000)

	updated, err := service.Debit(context.Background(), DebitRequest{
		Address:   account.Address,
		Amount:    30000,
		Reference: mustReference(test, "r1"),
		Channel:   "Verification",
	})
	if err != nil {
		test.Fatalf("debit failed: %v", err)
	}
	if updated.Balance != 70000 || updated.PreviousBalance != 100000 {
		test.Fatalf("expected 700.00 with previous 1000.00, got %s / %s", updated.Balance, updated.PreviousBalance)
	}
	var debits []LogEntry
	for _, entry := range store.logsFor(account.Address) {
		if entry.Activity == ActivityDebit {
			debits = append(debits, entry)
		}
	}
	if len(debits) != 1 || debits[0].Amount != 30000 || debits[0].Reference.String() != "r1" {
		test.Fatalf("unexpected debit entries: %+v", debits)
	}
}

func TestDebitRejectsInsufficientFundsBeforeWriting(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 5000)

	_, err := service.Debit(context.Background(), DebitRequest{Address: account.Address, Amount: 5001, Channel: "Verification"})
	if !errors.Is(err, ErrInsufficientFunds) {
		test.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if KindOf(err) != KindInsufficientFunds {
		test.Fatalf("expected insufficient funds kind, got %s", KindOf(err))
	}
	if balance := mustBalance(test, service, account.Address); balance != 5000 {
		test.Fatalf("balance changed to %s", balance)
	}
	if entries := store.logsFor(account.Address); len(entries) != 1 {
		test.Fatalf("expected only the signup entry, got %d", len(entries))
	}
}

func TestCreditDebitRoundTrip(test *testing.T) {
	test.Parallel()
	amounts := []string{"0.01", "0.1", "19.99", "1234.56", "0.07"}
	service := mustNewService(test, newStubStore(test))
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 100000)
	for _, raw := range amounts {
		amount, err := ParseAmount(raw)
		if err != nil {
			test.Fatalf("parse %s: %v", raw, err)
		}
		if _, err := service.Credit(context.Background(), CreditRequest{Address: account.Address, Amount: amount, Channel: ChannelFunding}); err != nil {
			test.Fatalf("credit %s: %v", raw, err)
		}
		if _, err := service.Debit(context.Background(), DebitRequest{Address: account.Address, Amount: amount, Channel: ChannelFunding}); err != nil {
			test.Fatalf("debit %s: %v", raw, err)
		}
		if balance := mustBalance(test, service, account.Address); balance != 100000 {
			test.Fatalf("after %s expected 1000.00, got %s", raw, balance)
		}
	}
}

func TestCreditMissingAccount(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(test))
	address, _ := NewAddress("missing")
	_, err := service.Credit(context.Background(), CreditRequest{Address: address, Amount: 100, Channel: ChannelFunding})
	if !errors.Is(err, ErrAccountNotFound) || KindOf(err) != KindNotFound {
		test.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCreditRejectsDuplicateReference(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(test))
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 0)
	request := CreditRequest{Address: account.Address, Amount: 100, Reference: mustReference(test, "fund-1"), Channel: ChannelFunding}
	if _, err := service.Credit(context.Background(), request); err != nil {
		test.Fatalf("first credit failed: %v", err)
	}
	if _, err := service.Credit(context.Background(), request); !errors.Is(err, ErrDuplicateReference) {
		test.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
	if balance := mustBalance(test, service, account.Address); balance != 100 {
		test.Fatalf("expected a single credit, got %s", balance)
	}
}

func TestCreditNotifiesOnlyWhenAsked(test *testing.T) {
	test.Parallel()
	notifier := &recordingNotifier{}
	service := mustNewService(test, newStubStore(test), WithNotifier(notifier))
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 0)
	if _, err := service.Credit(context.Background(), CreditRequest{Address: account.Address, Amount: 100, Channel: ChannelFunding}); err != nil {
		test.Fatalf("credit failed: %v", err)
	}
	if len(notifier.destinations()) != 0 {
		test.Fatalf("expected no notification")
	}
	if _, err := service.Credit(context.Background(), CreditRequest{Address: account.Address, Amount: 100, Channel: ChannelFunding, Notify: true}); err != nil {
		test.Fatalf("credit failed: %v", err)
	}
	if destinations := notifier.destinations(); len(destinations) != 1 || destinations[0] != phoneAlice {
		test.Fatalf("unexpected notifications: %v", destinations)
	}
}

func TestTransferWithEqualBalance(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	notifier := &recordingNotifier{}
	service := mustNewService(test, store, WithNotifier(notifier))
	source := mustOpenAccount(test, service, ownerAlice, phoneAlice, 100000)
	recipient := mustOpenAccount(test, service, ownerBob, phoneBob, 50000)

	result, err := service.Transfer(context.Background(), TransferRequest{
		Source:        source.Address,
		RecipientCode: recipient.Code,
		Amount:        100000,
		Narration:     "rent",
	})
	if err != nil {
		test.Fatalf("transfer failed: %v", err)
	}
	if result.Source.Balance != 0 || result.Recipient.Balance != 150000 {
		test.Fatalf("expected 0 and 1500.00, got %s and %s", result.Source.Balance, result.Recipient.Balance)
	}
	if result.Entry.Sender != source.Address.String() || result.Entry.Recipient != recipient.Address.String() || result.Entry.Channel != ChannelUnitTransfer {
		test.Fatalf("unexpected transfer entry: %+v", result.Entry)
	}
	recipientLogs, err := service.ListLogs(context.Background(), recipient.Address, 0, true)
	if err != nil {
		test.Fatalf("list logs: %v", err)
	}
	if recipientLogs[0].Reference != result.Entry.Reference {
		test.Fatalf("recipient does not see the shared entry: %+v", recipientLogs)
	}
	if destinations := notifier.destinations(); len(destinations) != 2 {
		test.Fatalf("expected both parties notified, got %v", destinations)
	}
}

func TestTransferFailures(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(test))
	source := mustOpenAccount(test, service, ownerAlice, phoneAlice, 1000)
	recipient := mustOpenAccount(test, service, ownerBob, phoneBob, 0)
	unknownCode, _ := NewAccountCode("000000")
	if unknownCode == recipient.Code || unknownCode == source.Code {
		test.Skip("random code collided with the unknown code")
	}

	testCases := []struct {
		name    string
		request TransferRequest
		wantErr error
	}{
		{name: "unknown recipient", request: TransferRequest{Source: source.Address, RecipientCode: unknownCode, Amount: 100}, wantErr: ErrRecipientNotFound},
		{name: "insufficient", request: TransferRequest{Source: source.Address, RecipientCode: recipient.Code, Amount: 1001}, wantErr: ErrInsufficientFunds},
		{name: "self", request: TransferRequest{Source: source.Address, RecipientCode: source.Code, Amount: 100}, wantErr: ErrSelfTransfer},
		{name: "zero amount", request: TransferRequest{Source: source.Address, RecipientCode: recipient.Code, Amount: 0}, wantErr: ErrInvalidAmountCents},
	}
	for _, testCase := range testCases {
		_, err := service.Transfer(context.Background(), testCase.request)
		if !errors.Is(err, testCase.wantErr) {
			test.Fatalf("%s: expected %v, got %v", testCase.name, testCase.wantErr, err)
		}
	}
	if mustBalance(test, service, source.Address) != 1000 || mustBalance(test, service, recipient.Address) != 0 {
		test.Fatalf("failed transfers changed balances")
	}
}

func TestTransferRollsBackWhenLogInsertFails(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	source := mustOpenAccount(test, service, ownerAlice, phoneAlice, 1000)
	recipient := mustOpenAccount(test, service, ownerBob, phoneBob, 0)
	store.faults.insertLogError = errors.New("disk full")

	_, err := service.Transfer(context.Background(), TransferRequest{Source: source.Address, RecipientCode: recipient.Code, Amount: 500})
	if err == nil {
		test.Fatalf("expected error")
	}
	if KindOf(err) != KindUnexpected {
		test.Fatalf("expected unexpected kind, got %s", KindOf(err))
	}
	store.faults.insertLogError = nil
	if mustBalance(test, service, source.Address) != 1000 || mustBalance(test, service, recipient.Address) != 0 {
		test.Fatalf("balances changed without a log entry")
	}
}

func TestConcurrentDebitsNeverOverdraw(test *testing.T) {
	test.Parallel()
	const (
		startingBalance = AmountCents(1000)
		debitAmount     = AmountCents(300)
		workers         = 10
	)
	store := newStubStore(test)
	service := mustNewService(test, store)
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, startingBalance)

	var waitGroup sync.WaitGroup
	results := make(chan error, workers)
	for index := 0; index < workers; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, err := service.Debit(context.Background(), DebitRequest{Address: account.Address, Amount: debitAmount, Channel: "Verification"})
			results <- err
		}()
	}
	waitGroup.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientFunds):
		default:
			test.Fatalf("unexpected error: %v", err)
		}
	}
	expectedSuccesses := int(startingBalance / debitAmount)
	if succeeded != expectedSuccesses {
		test.Fatalf("expected %d successful debits, got %d", expectedSuccesses, succeeded)
	}
	expectedBalance := startingBalance - AmountCents(succeeded)*debitAmount
	if balance := mustBalance(test, service, account.Address); balance != expectedBalance {
		test.Fatalf("expected balance %s, got %s", expectedBalance, balance)
	}
	debits := 0
	for _, entry := range store.logsFor(account.Address) {
		if entry.Activity == ActivityDebit {
			debits++
		}
	}
	if debits != succeeded {
		test.Fatalf("expected %d debit entries, got %d", succeeded, debits)
	}
}

func TestListLogs(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(test))
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 0)

	if _, err := service.ListLogs(context.Background(), account.Address, 5, true); !errors.Is(err, ErrNoLogEntries) || KindOf(err) != KindNotFound {
		test.Fatalf("expected ErrNoLogEntries, got %v", err)
	}
	for index := 0; index < 12; index++ {
		if _, err := service.Credit(context.Background(), CreditRequest{Address: account.Address, Amount: AmountCents(index + 1), Channel: ChannelFunding}); err != nil {
			test.Fatalf("credit failed: %v", err)
		}
	}
	entries, err := service.ListLogs(context.Background(), account.Address, 0, true)
	if err != nil {
		test.Fatalf("list logs: %v", err)
	}
	if len(entries) != defaultLogLimit {
		test.Fatalf("expected default limit %d, got %d", defaultLogLimit, len(entries))
	}
	if entries[0].Amount != 12 {
		test.Fatalf("expected newest entry first, got %s", entries[0].Amount)
	}
	oldest, err := service.ListLogs(context.Background(), account.Address, 1, false)
	if err != nil || oldest[0].Amount != 1 {
		test.Fatalf("expected oldest entry first, got %+v, %v", oldest, err)
	}
}

func TestDeleteAccount(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 1000)
	if err := service.DeleteAccount(context.Background(), account.Address); err != nil {
		test.Fatalf("delete failed: %v", err)
	}
	if _, err := service.GetAccountByAddress(context.Background(), account.Address); !errors.Is(err, ErrAccountNotFound) {
		test.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if entries := store.logsFor(account.Address); len(entries) != 1 {
		test.Fatalf("expected log entries to survive deletion")
	}
	if err := service.DeleteAccount(context.Background(), account.Address); !errors.Is(err, ErrAccountNotFound) {
		test.Fatalf("expected ErrAccountNotFound on second delete, got %v", err)
	}
}

func TestMutationsReturnStoreErrors(test *testing.T) {
	test.Parallel()
	errStoreFailure := errors.New("store error")
	testCases := []struct {
		name      string
		configure func(faults *stubFaults)
	}{
		{name: "account lookup", configure: func(faults *stubFaults) { faults.getAccountError = errStoreFailure }},
		{name: "adjust balance", configure: func(faults *stubFaults) { faults.adjustBalanceError = errStoreFailure }},
		{name: "insert log", configure: func(faults *stubFaults) { faults.insertLogError = errStoreFailure }},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore(test)
			service := mustNewService(test, store)
			account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 1000)
			testCase.configure(store.faults)

			if _, err := service.Credit(context.Background(), CreditRequest{Address: account.Address, Amount: 1, Channel: ChannelFunding}); !errors.Is(err, errStoreFailure) {
				test.Fatalf("credit: expected store error, got %v", err)
			}
			if _, err := service.Debit(context.Background(), DebitRequest{Address: account.Address, Amount: 1, Channel: ChannelFunding}); !errors.Is(err, errStoreFailure) {
				test.Fatalf("debit: expected store error, got %v", err)
			}
		})
	}
}
