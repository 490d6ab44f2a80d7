package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode  = "23505"
	sqliteConstraintCode   = 19
	errorOperationStore    = "store"
	errorSubjectAccount    = "account"
	errorSubjectEntry      = "entry"
	errorSubjectWithdrawal = "withdrawal"
	errorSubjectWebhook    = "webhook"
	errorCodeAdjust        = "adjust_balance"
	errorCodeCreate        = "create"
	errorCodeDelete        = "delete"
	errorCodeDuplicate     = "duplicate"
	errorCodeGet           = "get"
	errorCodeInsert        = "insert"
	errorCodeInvalid       = "invalid"
	errorCodeList          = "list"
	errorCodeLookup        = "lookup"
	errorCodeUpdateStatus  = "update_status"
)

// uniqueTarget names a unique index by its PostgreSQL constraint name and the
// column SQLite reports in its constraint message.
type uniqueTarget struct {
	constraint string
	column     string
}

var (
	uniqueUnitOwner         = uniqueTarget{constraint: "idx_units_owner", column: "units.owner_id"}
	uniqueUnitCode          = uniqueTarget{constraint: "idx_units_code", column: "units.code"}
	uniqueUnitAddress       = uniqueTarget{constraint: "idx_units_address", column: "units.address"}
	uniqueLogReference      = uniqueTarget{constraint: "idx_unit_logs_reference", column: "unit_logs.reference"}
	uniquePendingWithdrawal = uniqueTarget{constraint: "idx_unit_withdrawals_pending", column: "unit_withdrawals.address"}
	uniqueProviderReference = uniqueTarget{constraint: "idx_webhooks_provider_reference", column: "webhooks.provider_reference"}
)

// Store implements ledger.Store using GORM.
type Store struct {
	db   *gorm.DB
	inTx bool
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction. Nested calls reuse the open transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	if store.inTx {
		return fn(ctx, store)
	}
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction, inTx: true})
	})
}

// locking adds FOR UPDATE inside transactions. SQLite ignores the clause.
func (store *Store) locking(ctx context.Context) *gorm.DB {
	db := store.db.WithContext(ctx)
	if store.inTx {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func (store *Store) CreateAccount(ctx context.Context, account ledger.Account) error {
	model := Unit{
		Address:              account.Address.String(),
		OwnerID:              account.OwnerID.String(),
		Code:                 account.Code.String(),
		HolderName:           account.Holder.Name,
		PhoneNumber:          account.Holder.Phone,
		BalanceCents:         account.Balance.Int64(),
		PreviousBalanceCents: account.PreviousBalance.Int64(),
		Status:               string(account.Status),
		CreatedAt:            unixTime(account.CreatedUnixUTC),
		UpdatedAt:            unixTime(account.UpdatedUnixUTC),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err, uniqueUnitOwner):
		return wrapStoreError(errorSubjectAccount, errorCodeDuplicate, ledger.ErrAccountExists)
	case isUniqueViolation(err, uniqueUnitCode), isUniqueViolation(err, uniqueUnitAddress):
		return wrapStoreError(errorSubjectAccount, errorCodeDuplicate, ledger.ErrAccountCodeTaken)
	default:
		return wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
}

func (store *Store) GetAccountByAddress(ctx context.Context, address ledger.Address) (ledger.Account, error) {
	return store.findAccount(store.locking(ctx).Where("address = ?", address.String()))
}

func (store *Store) GetAccountByOwner(ctx context.Context, ownerID ledger.OwnerID) (ledger.Account, error) {
	return store.findAccount(store.db.WithContext(ctx).Where("owner_id = ?", ownerID.String()))
}

func (store *Store) GetAccountByCode(ctx context.Context, code ledger.AccountCode) (ledger.Account, error) {
	return store.findAccount(store.db.WithContext(ctx).Where("code = ?", code.String()))
}

func (store *Store) GetAccountByPhone(ctx context.Context, phone string) (ledger.Account, error) {
	return store.findAccount(store.db.WithContext(ctx).Where("phone_number = ?", strings.TrimSpace(phone)).Order("id"))
}

func (store *Store) findAccount(query *gorm.DB) (ledger.Account, error) {
	var model Unit
	err := query.Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, ledger.ErrAccountNotFound)
	}
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, err)
	}
	account, err := mapUnit(model)
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return account, nil
}

// AdjustBalance applies delta with a conditional update so the balance can
// never drop below zero, whatever the caller checked before.
func (store *Store) AdjustBalance(ctx context.Context, address ledger.Address, delta int64, atUnixUTC int64) (ledger.Account, error) {
	result := store.db.WithContext(ctx).
		Model(&Unit{}).
		Where("address = ? AND balance_cents + ? >= 0", address.String(), delta).
		Updates(map[string]interface{}{
			"previous_balance_cents": gorm.Expr("balance_cents"),
			"balance_cents":          gorm.Expr("balance_cents + ?", delta),
			"updated_at":             unixTime(atUnixUTC),
		})
	if result.Error != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeAdjust, result.Error)
	}
	account, err := store.findAccount(store.db.WithContext(ctx).Where("address = ?", address.String()))
	if err != nil {
		return ledger.Account{}, err
	}
	if result.RowsAffected == 0 {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeAdjust, ledger.ErrInsufficientFunds)
	}
	return account, nil
}

func (store *Store) DeleteAccount(ctx context.Context, address ledger.Address) error {
	db := store.db.WithContext(ctx)
	if err := db.Where("address = ?", address.String()).Delete(&UnitWithdrawal{}).Error; err != nil {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeDelete, err)
	}
	result := db.Where("address = ?", address.String()).Delete(&Unit{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeDelete, ledger.ErrAccountNotFound)
	}
	return nil
}

func (store *Store) InsertLogEntry(ctx context.Context, entry ledger.LogEntry) (ledger.LogEntry, error) {
	model := UnitLog{
		EntryID:     entry.EntryID,
		Address:     entry.Address.String(),
		OwnerID:     entry.OwnerID.String(),
		Activity:    string(entry.Activity),
		Status:      string(entry.Status),
		Sender:      entry.Sender,
		Recipient:   entry.Recipient,
		AmountCents: entry.Amount.Int64(),
		Reference:   entry.Reference.String(),
		Channel:     entry.Channel,
		Narration:   entry.Narration,
		CreatedAt:   unixTime(entry.CreatedUnixUTC),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, uniqueLogReference) {
		return ledger.LogEntry{}, wrapStoreError(errorSubjectEntry, errorCodeDuplicate, ledger.ErrDuplicateReference)
	}
	if err != nil {
		return ledger.LogEntry{}, wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	entry.EntryID = model.EntryID
	return entry, nil
}

func (store *Store) ListLogEntries(ctx context.Context, address ledger.Address, limit int, newestFirst bool) ([]ledger.LogEntry, error) {
	order := "id ASC"
	if newestFirst {
		order = "id DESC"
	}
	var rows []UnitLog
	err := store.db.WithContext(ctx).
		Where("address = ? OR sender = ? OR recipient = ?", address.String(), address.String(), address.String()).
		Order(order).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	entries := make([]ledger.LogEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapUnitLog(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (store *Store) CreateWithdrawal(ctx context.Context, withdrawal ledger.Withdrawal) error {
	model := UnitWithdrawal{
		RequestID:     withdrawal.RequestID.String(),
		OwnerID:       withdrawal.OwnerID.String(),
		Address:       withdrawal.Address.String(),
		AmountCents:   withdrawal.Amount.Int64(),
		AccountNumber: withdrawal.Bank.AccountNumber,
		AccountName:   withdrawal.Bank.AccountName,
		AccountType:   withdrawal.Bank.AccountType,
		Status:        string(withdrawal.Status),
		StatusReason:  withdrawal.StatusReason,
		CreatedAt:     unixTime(withdrawal.CreatedUnixUTC),
		UpdatedAt:     unixTime(withdrawal.UpdatedUnixUTC),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, uniquePendingWithdrawal) {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeDuplicate, ledger.ErrPendingWithdrawalExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetWithdrawal(ctx context.Context, requestID ledger.RequestID) (ledger.Withdrawal, error) {
	var model UnitWithdrawal
	err := store.locking(ctx).Where("request_id = ?", requestID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Withdrawal{}, wrapStoreError(errorSubjectWithdrawal, errorCodeGet, ledger.ErrWithdrawalNotFound)
	}
	if err != nil {
		return ledger.Withdrawal{}, wrapStoreError(errorSubjectWithdrawal, errorCodeGet, err)
	}
	withdrawal, err := mapUnitWithdrawal(model)
	if err != nil {
		return ledger.Withdrawal{}, wrapStoreError(errorSubjectWithdrawal, errorCodeInvalid, err)
	}
	return withdrawal, nil
}

func (store *Store) HasPendingWithdrawal(ctx context.Context, address ledger.Address) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&UnitWithdrawal{}).
		Where("address = ? AND status = ?", address.String(), string(ledger.WithdrawalStatusPending)).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectWithdrawal, errorCodeLookup, err)
	}
	return count > 0, nil
}

func (store *Store) UpdateWithdrawalStatus(ctx context.Context, requestID ledger.RequestID, from ledger.WithdrawalStatus, to ledger.WithdrawalStatus, reason string, atUnixUTC int64) error {
	result := store.db.WithContext(ctx).
		Model(&UnitWithdrawal{}).
		Where("request_id = ? AND status = ?", requestID.String(), string(from)).
		Updates(map[string]interface{}{
			"status":        string(to),
			"status_reason": reason,
			"updated_at":    unixTime(atUnixUTC),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeUpdateStatus, ledger.ErrWithdrawalClosed)
	}
	return nil
}

func (store *Store) ListWithdrawals(ctx context.Context, address ledger.Address) ([]ledger.Withdrawal, error) {
	var rows []UnitWithdrawal
	err := store.db.WithContext(ctx).
		Where("address = ?", address.String()).
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectWithdrawal, errorCodeList, err)
	}
	withdrawals := make([]ledger.Withdrawal, 0, len(rows))
	for _, row := range rows {
		withdrawal, err := mapUnitWithdrawal(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectWithdrawal, errorCodeInvalid, err)
		}
		withdrawals = append(withdrawals, withdrawal)
	}
	return withdrawals, nil
}

func (store *Store) CreateWebhook(ctx context.Context, record ledger.WebhookRecord) error {
	model := Webhook{
		RequestID: record.RequestID.String(),
		Payload:   payloadJSON(record.Payload),
		Status:    string(record.Status),
		CreatedAt: unixTime(record.CreatedUnixUTC),
		UpdatedAt: unixTime(record.CreatedUnixUTC),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectWebhook, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) ResolveWebhook(ctx context.Context, requestID ledger.RequestID, status ledger.WebhookStatus, providerReference string) error {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}
	if providerReference != "" {
		updates["provider_reference"] = providerReference
	}
	result := store.db.WithContext(ctx).
		Model(&Webhook{}).
		Where("request_id = ?", requestID.String()).
		Updates(updates)
	if isUniqueViolation(result.Error, uniqueProviderReference) {
		return wrapStoreError(errorSubjectWebhook, errorCodeDuplicate, ledger.ErrDuplicateProviderRef)
	}
	if result.Error != nil {
		return wrapStoreError(errorSubjectWebhook, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectWebhook, errorCodeUpdateStatus, ledger.ErrWebhookNotFound)
	}
	return nil
}

// GetWebhook loads an audit record by request id.
func (store *Store) GetWebhook(ctx context.Context, requestID ledger.RequestID) (ledger.WebhookRecord, error) {
	var model Webhook
	err := store.db.WithContext(ctx).Where("request_id = ?", requestID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.WebhookRecord{}, wrapStoreError(errorSubjectWebhook, errorCodeGet, ledger.ErrWebhookNotFound)
	}
	if err != nil {
		return ledger.WebhookRecord{}, wrapStoreError(errorSubjectWebhook, errorCodeGet, err)
	}
	status, err := ledger.ParseWebhookStatus(model.Status)
	if err != nil {
		return ledger.WebhookRecord{}, wrapStoreError(errorSubjectWebhook, errorCodeInvalid, err)
	}
	record := ledger.WebhookRecord{
		RequestID:      requestID,
		Payload:        []byte(model.Payload),
		Status:         status,
		CreatedUnixUTC: model.CreatedAt.Unix(),
	}
	if model.ProviderReference != nil {
		record.ProviderReference = *model.ProviderReference
	}
	return record, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func mapUnit(row Unit) (ledger.Account, error) {
	address, err := ledger.NewAddress(row.Address)
	if err != nil {
		return ledger.Account{}, err
	}
	ownerID, err := ledger.NewOwnerID(row.OwnerID)
	if err != nil {
		return ledger.Account{}, err
	}
	code, err := ledger.NewAccountCode(row.Code)
	if err != nil {
		return ledger.Account{}, err
	}
	balance, err := ledger.NewBalanceCents(row.BalanceCents)
	if err != nil {
		return ledger.Account{}, err
	}
	previousBalance, err := ledger.NewBalanceCents(row.PreviousBalanceCents)
	if err != nil {
		return ledger.Account{}, err
	}
	status, err := ledger.ParseAccountStatus(row.Status)
	if err != nil {
		return ledger.Account{}, err
	}
	return ledger.Account{
		Address:         address,
		OwnerID:         ownerID,
		Code:            code,
		Holder:          ledger.Holder{Name: row.HolderName, Phone: row.PhoneNumber},
		Balance:         balance,
		PreviousBalance: previousBalance,
		Status:          status,
		CreatedUnixUTC:  row.CreatedAt.Unix(),
		UpdatedUnixUTC:  row.UpdatedAt.Unix(),
	}, nil
}

func mapUnitLog(row UnitLog) (ledger.LogEntry, error) {
	address, err := ledger.NewAddress(row.Address)
	if err != nil {
		return ledger.LogEntry{}, err
	}
	ownerID, err := ledger.NewOwnerID(row.OwnerID)
	if err != nil {
		return ledger.LogEntry{}, err
	}
	activity, err := ledger.ParseActivity(row.Activity)
	if err != nil {
		return ledger.LogEntry{}, err
	}
	amount, err := ledger.NewAmountCents(row.AmountCents)
	if err != nil {
		return ledger.LogEntry{}, err
	}
	reference, err := ledger.NewReference(row.Reference)
	if err != nil {
		return ledger.LogEntry{}, err
	}
	return ledger.LogEntry{
		EntryID:        row.EntryID,
		Address:        address,
		OwnerID:        ownerID,
		Activity:       activity,
		Status:         ledger.EntryStatus(row.Status),
		Sender:         row.Sender,
		Recipient:      row.Recipient,
		Amount:         amount,
		Reference:      reference,
		Channel:        row.Channel,
		Narration:      row.Narration,
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}, nil
}

func mapUnitWithdrawal(row UnitWithdrawal) (ledger.Withdrawal, error) {
	requestID, err := ledger.NewRequestID(row.RequestID)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	ownerID, err := ledger.NewOwnerID(row.OwnerID)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	address, err := ledger.NewAddress(row.Address)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	amount, err := ledger.NewAmountCents(row.AmountCents)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	status, err := ledger.ParseWithdrawalStatus(row.Status)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	return ledger.Withdrawal{
		RequestID: requestID,
		OwnerID:   ownerID,
		Address:   address,
		Amount:    amount,
		Bank: ledger.BankDetails{
			AccountNumber: row.AccountNumber,
			AccountName:   row.AccountName,
			AccountType:   row.AccountType,
		},
		Status:         status,
		StatusReason:   row.StatusReason,
		CreatedUnixUTC: row.CreatedAt.Unix(),
		UpdatedUnixUTC: row.UpdatedAt.Unix(),
	}, nil
}

func unixTime(unixUTC int64) time.Time {
	if unixUTC == 0 {
		return time.Now().UTC()
	}
	return time.Unix(unixUTC, 0).UTC()
}

// payloadJSON keeps malformed bodies auditable by storing them as a JSON string.
func payloadJSON(raw []byte) datatypes.JSON {
	if len(raw) > 0 && json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	encoded, err := json.Marshal(string(raw))
	if err != nil {
		return datatypes.JSON(`""`)
	}
	return datatypes.JSON(encoded)
}

func isUniqueViolation(err error, target uniqueTarget) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == target.constraint
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode && strings.Contains(sqliteErr.Error(), target.column)
	}
	return false
}
