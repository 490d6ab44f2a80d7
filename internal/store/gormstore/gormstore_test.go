package gormstore

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	ownerAlice = "owner-alice"
	ownerBob   = "owner-bob"
	phoneAlice = "+2348000000001"
	phoneBob   = "+2348000000002"
)

func openTestStore(test *testing.T) (*Store, *gorm.DB) {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(test.TempDir()+"/ledger.db"), &gorm.Config{})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		test.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })
	if err := AutoMigrate(db); err != nil {
		test.Fatalf("automigrate failed: %v", err)
	}
	return New(db), db
}

func newTestService(test *testing.T, store ledger.Store, options ...ledger.ServiceOption) *ledger.Service {
	test.Helper()
	var codeSequence atomic.Int64
	nextCode := func() string { return strconv.FormatInt(100000+codeSequence.Add(1), 10) }
	options = append([]ledger.ServiceOption{ledger.WithCodeGenerator(nextCode)}, options...)
	service, err := ledger.NewService(store, func() int64 { return 1700000000 }, options...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return service
}

func mustOpenAccount(test *testing.T, service *ledger.Service, owner string, phone string, balance ledger.AmountCents) ledger.Account {
	test.Helper()
	ownerID, err := ledger.NewOwnerID(owner)
	if err != nil {
		test.Fatalf("owner id: %v", err)
	}
	account, err := service.CreateAccount(context.Background(), ownerID, ledger.Holder{Name: owner, Phone: phone}, balance)
	if err != nil {
		test.Fatalf("create account: %v", err)
	}
	return account
}

func TestAccountLifecycle(test *testing.T) {
	test.Parallel()
	store, db := openTestStore(test)
	service := newTestService(test, store)
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 100000)

	byOwner, err := store.GetAccountByOwner(context.Background(), account.OwnerID)
	if err != nil || byOwner.Address != account.Address {
		test.Fatalf("owner lookup: %+v, %v", byOwner, err)
	}
	byCode, err := store.GetAccountByCode(context.Background(), account.Code)
	if err != nil || byCode.Address != account.Address {
		test.Fatalf("code lookup: %+v, %v", byCode, err)
	}
	byPhone, err := store.GetAccountByPhone(context.Background(), phoneAlice)
	if err != nil || byPhone.Address != account.Address || byPhone.Balance != 100000 {
		test.Fatalf("phone lookup: %+v, %v", byPhone, err)
	}

	_, err = service.CreateAccount(context.Background(), account.OwnerID, ledger.Holder{}, 0)
	if !errors.Is(err, ledger.ErrAccountExists) {
		test.Fatalf("expected ErrAccountExists, got %v", err)
	}
	duplicateOwner := account
	duplicateOwner.Address, _ = ledger.NewAddress("other-address")
	duplicateOwner.Code, _ = ledger.NewAccountCode("999999")
	if err := store.CreateAccount(context.Background(), duplicateOwner); !errors.Is(err, ledger.ErrAccountExists) {
		test.Fatalf("expected unique owner violation, got %v", err)
	}
	duplicateCode := account
	duplicateCode.Address, _ = ledger.NewAddress("third-address")
	duplicateCode.OwnerID, _ = ledger.NewOwnerID("someone-else")
	if err := store.CreateAccount(context.Background(), duplicateCode); !errors.Is(err, ledger.ErrAccountCodeTaken) {
		test.Fatalf("expected unique code violation, got %v", err)
	}

	if err := service.DeleteAccount(context.Background(), account.Address); err != nil {
		test.Fatalf("delete failed: %v", err)
	}
	if _, err := store.GetAccountByAddress(context.Background(), account.Address); !errors.Is(err, ledger.ErrAccountNotFound) {
		test.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	var logCount int64
	if err := db.Model(&UnitLog{}).Where("address = ?", account.Address.String()).Count(&logCount).Error; err != nil || logCount != 1 {
		test.Fatalf("expected signup entry to survive deletion, got %d, %v", logCount, err)
	}
}

func TestAdjustBalanceNeverGoesNegative(test *testing.T) {
	test.Parallel()
	store, _ := openTestStore(test)
	service := newTestService(test, store)
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 1000)

	updated, err := store.AdjustBalance(context.Background(), account.Address, -1000, 1700000001)
	if err != nil {
		test.Fatalf("adjust failed: %v", err)
	}
	if updated.Balance != 0 || updated.PreviousBalance != 1000 {
		test.Fatalf("unexpected balances: %+v", updated)
	}
	if _, err := store.AdjustBalance(context.Background(), account.Address, -1, 1700000002); !errors.Is(err, ledger.ErrInsufficientFunds) {
		test.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	missing, _ := ledger.NewAddress("missing")
	if _, err := store.AdjustBalance(context.Background(), missing, 1, 1700000002); !errors.Is(err, ledger.ErrAccountNotFound) {
		test.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestTransferAndLogs(test *testing.T) {
	test.Parallel()
	store, _ := openTestStore(test)
	service := newTestService(test, store)
	source := mustOpenAccount(test, service, ownerAlice, phoneAlice, 100000)
	recipient := mustOpenAccount(test, service, ownerBob, phoneBob, 50000)

	result, err := service.Transfer(context.Background(), ledger.TransferRequest{Source: source.Address, RecipientCode: recipient.Code, Amount: 100000})
	if err != nil {
		test.Fatalf("transfer failed: %v", err)
	}
	if result.Source.Balance != 0 || result.Recipient.Balance != 150000 {
		test.Fatalf("unexpected balances %s and %s", result.Source.Balance, result.Recipient.Balance)
	}
	entries, err := store.ListLogEntries(context.Background(), recipient.Address, 10, true)
	if err != nil {
		test.Fatalf("list logs: %v", err)
	}
	if len(entries) != 2 || entries[0].Reference != result.Entry.Reference || entries[0].Channel != ledger.ChannelUnitTransfer {
		test.Fatalf("unexpected recipient entries: %+v", entries)
	}
	oldestFirst, err := store.ListLogEntries(context.Background(), recipient.Address, 1, false)
	if err != nil || len(oldestFirst) != 1 || oldestFirst[0].Channel != ledger.ChannelSignup {
		test.Fatalf("expected signup entry first, got %+v, %v", oldestFirst, err)
	}

	_, err = store.InsertLogEntry(context.Background(), ledger.LogEntry{
		Address:   source.Address,
		OwnerID:   source.OwnerID,
		Activity:  ledger.ActivityCredit,
		Status:    ledger.EntryStatusSuccessful,
		Amount:    1,
		Reference: result.Entry.Reference,
		Channel:   ledger.ChannelFunding,
	})
	if !errors.Is(err, ledger.ErrDuplicateReference) {
		test.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
}

func TestConcurrentDebits(test *testing.T) {
	test.Parallel()
	const workers = 8
	store, db := openTestStore(test)
	service := newTestService(test, store)
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 1000)

	var waitGroup sync.WaitGroup
	var mutex sync.Mutex
	succeeded := 0
	for index := 0; index < workers; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, err := service.Debit(context.Background(), ledger.DebitRequest{Address: account.Address, Amount: 300, Channel: "Verification"})
			if err == nil {
				mutex.Lock()
				succeeded++
				mutex.Unlock()
				return
			}
			if !errors.Is(err, ledger.ErrInsufficientFunds) {
				test.Errorf("unexpected error: %v", err)
			}
		}()
	}
	waitGroup.Wait()
	if succeeded != 3 {
		test.Fatalf("expected 3 successful debits, got %d", succeeded)
	}
	stored, err := store.GetAccountByAddress(context.Background(), account.Address)
	if err != nil || stored.Balance != 100 {
		test.Fatalf("expected 1.00 left, got %+v, %v", stored, err)
	}
	var debitCount int64
	if err := db.Model(&UnitLog{}).Where("address = ? AND activity = ?", account.Address.String(), string(ledger.ActivityDebit)).Count(&debitCount).Error; err != nil || debitCount != 3 {
		test.Fatalf("expected 3 debit entries, got %d, %v", debitCount, err)
	}
}

func TestPendingWithdrawalUniqueIndex(test *testing.T) {
	test.Parallel()
	store, _ := openTestStore(test)
	service := newTestService(test, store)
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 2000000)
	bank := ledger.BankDetails{AccountNumber: "0123456789", AccountName: "Alice", AccountType: "savings"}

	withdrawal, err := service.RequestWithdrawal(context.Background(), ledger.WithdrawalRequest{Address: account.Address, Amount: 1000000, Bank: bank})
	if err != nil {
		test.Fatalf("request failed: %v", err)
	}
	second := withdrawal
	second.RequestID, _ = ledger.NewRequestID("req-second")
	if err := store.CreateWithdrawal(context.Background(), second); !errors.Is(err, ledger.ErrPendingWithdrawalExists) {
		test.Fatalf("expected partial unique index violation, got %v", err)
	}

	settled, err := service.SettleWithdrawal(context.Background(), withdrawal.RequestID, ledger.WithdrawalStatusSuccessful, "paid")
	if err != nil {
		test.Fatalf("settle failed: %v", err)
	}
	if settled.Status != ledger.WithdrawalStatusSuccessful {
		test.Fatalf("unexpected status %s", settled.Status)
	}
	stored, err := store.GetWithdrawal(context.Background(), withdrawal.RequestID)
	if err != nil || stored.Status != ledger.WithdrawalStatusSuccessful || stored.StatusReason != "paid" || stored.Bank != bank {
		test.Fatalf("unexpected stored withdrawal %+v, %v", stored, err)
	}
	if err := store.CreateWithdrawal(context.Background(), second); err != nil {
		test.Fatalf("expected a new pending request once settled, got %v", err)
	}
	withdrawals, err := store.ListWithdrawals(context.Background(), account.Address)
	if err != nil || len(withdrawals) != 2 || withdrawals[0].RequestID != second.RequestID {
		test.Fatalf("unexpected withdrawals %+v, %v", withdrawals, err)
	}
	if err := store.UpdateWithdrawalStatus(context.Background(), withdrawal.RequestID, ledger.WithdrawalStatusPending, ledger.WithdrawalStatusCanceled, "", 0); !errors.Is(err, ledger.ErrWithdrawalClosed) {
		test.Fatalf("expected ErrWithdrawalClosed, got %v", err)
	}
}

func TestWebhookReplayIsIgnored(test *testing.T) {
	test.Parallel()
	store, _ := openTestStore(test)
	service := newTestService(test, store)
	account := mustOpenAccount(test, service, ownerAlice, phoneAlice, 0)
	reconciler, err := ledger.NewReconciler(service)
	if err != nil {
		test.Fatalf("reconciler init failed: %v", err)
	}
	payload := []byte(`{"flwRef":"FLW-1","txRef":"tx-1","status":"successful","amount":150.25,"customer":{"phone":"+2348000000001"}}`)

	first, err := reconciler.IngestWebhook(context.Background(), ledger.WebhookDelivery{Payload: payload})
	if err != nil || first.Status != ledger.WebhookStatusSuccessful {
		test.Fatalf("first delivery: %+v, %v", first, err)
	}
	replay, err := reconciler.IngestWebhook(context.Background(), ledger.WebhookDelivery{Payload: payload})
	if err != nil || replay.Status != ledger.WebhookStatusDuplicate {
		test.Fatalf("replay: %+v, %v", replay, err)
	}
	stored, err := store.GetAccountByAddress(context.Background(), account.Address)
	if err != nil || stored.Balance != 15025 {
		test.Fatalf("expected a single credit of 150.25, got %+v, %v", stored, err)
	}
	firstRecord, err := store.GetWebhook(context.Background(), first.RequestID)
	if err != nil || firstRecord.ProviderReference != "FLW-1" || firstRecord.Status != ledger.WebhookStatusSuccessful {
		test.Fatalf("unexpected first record %+v, %v", firstRecord, err)
	}
	replayRecord, err := store.GetWebhook(context.Background(), replay.RequestID)
	if err != nil || replayRecord.ProviderReference != "" || replayRecord.Status != ledger.WebhookStatusDuplicate {
		test.Fatalf("unexpected replay record %+v, %v", replayRecord, err)
	}

	malformed, err := reconciler.IngestWebhook(context.Background(), ledger.WebhookDelivery{Payload: []byte("not json")})
	if !errors.Is(err, ledger.ErrInvalidWebhook) {
		test.Fatalf("expected ErrInvalidWebhook, got %v", err)
	}
	malformedRecord, err := store.GetWebhook(context.Background(), malformed.RequestID)
	if err != nil || malformedRecord.Status != ledger.WebhookStatusFailed || string(malformedRecord.Payload) != `"not json"` {
		test.Fatalf("unexpected malformed record %+v, %v", malformedRecord, err)
	}
}
