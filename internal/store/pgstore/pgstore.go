package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintUnitOwner             = "idx_units_owner"
	constraintUnitCode              = "idx_units_code"
	constraintUnitAddress           = "idx_units_address"
	constraintLogReference          = "idx_unit_logs_reference"
	constraintPendingWithdrawal     = "idx_unit_withdrawals_pending"
	constraintWebhookProviderRef    = "idx_webhooks_provider_reference"
	pgUniqueViolationCode           = "23505"
	errorOperationStore             = "store"
	errorSubjectAccount             = "account"
	errorSubjectEntry               = "entry"
	errorSubjectWithdrawal          = "withdrawal"
	errorSubjectWebhook             = "webhook"
	errorSubjectTransaction         = "transaction"
	errorCodeAdjust                 = "adjust_balance"
	errorCodeBegin                  = "begin"
	errorCodeCommit                 = "commit"
	errorCodeCreate                 = "create"
	errorCodeDelete                 = "delete"
	errorCodeDuplicate              = "duplicate"
	errorCodeGet                    = "get"
	errorCodeInsert                 = "insert"
	errorCodeInvalid                = "invalid"
	errorCodeList                   = "list"
	errorCodeLookup                 = "lookup"
	errorCodeUpdateStatus           = "update_status"
	unitColumns                     = `address, owner_id, code, holder_name, phone_number, balance_cents, previous_balance_cents, status, extract(epoch from created_at)::bigint, extract(epoch from updated_at)::bigint`
	unitLogColumns                  = `entry_id::text, address, owner_id, activity, status, sender, recipient, amount_cents, reference, channel, narration, extract(epoch from created_at)::bigint`
	unitWithdrawalColumns           = `request_id, owner_id, address, amount_cents, account_number, account_name, account_type, status, status_reason, extract(epoch from created_at)::bigint, extract(epoch from updated_at)::bigint`
	sqlSelectUnitByAddress          = `select ` + unitColumns + ` from units where address = $1`
	sqlSelectUnitByAddressForUpdate = sqlSelectUnitByAddress + ` for update`
	sqlSelectUnitByOwner            = `select ` + unitColumns + ` from units where owner_id = $1`
	sqlSelectUnitByCode             = `select ` + unitColumns + ` from units where code = $1`
	sqlSelectUnitByPhone            = `select ` + unitColumns + ` from units where phone_number = $1 order by id limit 1`

	sqlInsertUnit = `
		insert into units(address, owner_id, code, holder_name, phone_number, balance_cents, previous_balance_cents, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, to_timestamp($9), to_timestamp($10))
	`

	sqlAdjustBalance = `
		update units
		set previous_balance_cents = balance_cents, balance_cents = balance_cents + $2, updated_at = to_timestamp($3)
		where address = $1 and balance_cents + $2 >= 0
		returning ` + unitColumns

	sqlDeleteUnitWithdrawals = `delete from unit_withdrawals where address = $1`
	sqlDeleteUnit            = `delete from units where address = $1`

	sqlInsertUnitLog = `
		insert into unit_logs(entry_id, address, owner_id, activity, status, sender, recipient, amount_cents, reference, channel, narration, created_at)
		values (coalesce(nullif($1,'')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, to_timestamp($12))
		returning entry_id::text
	`

	sqlListUnitLogsNewest = `
		select ` + unitLogColumns + ` from unit_logs
		where address = $1 or sender = $1 or recipient = $1
		order by id desc
		limit $2
	`

	sqlListUnitLogsOldest = `
		select ` + unitLogColumns + ` from unit_logs
		where address = $1 or sender = $1 or recipient = $1
		order by id asc
		limit $2
	`

	sqlInsertUnitWithdrawal = `
		insert into unit_withdrawals(request_id, owner_id, address, amount_cents, account_number, account_name, account_type, status, status_reason, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, to_timestamp($10), to_timestamp($11))
	`

	sqlSelectUnitWithdrawal          = `select ` + unitWithdrawalColumns + ` from unit_withdrawals where request_id = $1`
	sqlSelectUnitWithdrawalForUpdate = sqlSelectUnitWithdrawal + ` for update`
	sqlHasPendingWithdrawal          = `select exists(select 1 from unit_withdrawals where address = $1 and status = 'PENDING')`
	sqlListUnitWithdrawals           = `select ` + unitWithdrawalColumns + ` from unit_withdrawals where address = $1 order by id desc`

	sqlUpdateWithdrawalStatus = `
		update unit_withdrawals
		set status = $3, status_reason = $4, updated_at = to_timestamp($5)
		where request_id = $1 and status = $2
	`

	sqlInsertWebhook = `
		insert into webhooks(request_id, payload, status, created_at, updated_at)
		values ($1, $2::jsonb, $3, to_timestamp($4), to_timestamp($4))
	`

	sqlResolveWebhook = `
		update webhooks
		set status = $2, provider_reference = coalesce(nullif($3,''), provider_reference), updated_at = now()
		where request_id = $1
	`

	sqlSelectWebhook = `
		select payload::text, status, coalesce(provider_reference,''), extract(epoch from created_at)::bigint
		from webhooks
		where request_id = $1
	`
)

// querier is the subset of pgx shared by the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Store implements ledger.Store using a pgx connection pool (autocommit).
type Store struct {
	pool *pgxpool.Pool
	db   querier
}

// TxStore implements ledger.Store for an active transaction. Account and
// withdrawal reads take row locks.
type TxStore struct {
	Store
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{Store: Store{pool: store.pool, db: tx}}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return fn(ctx, store)
}

func (store *TxStore) GetAccountByAddress(ctx context.Context, address ledger.Address) (ledger.Account, error) {
	return store.queryAccount(ctx, sqlSelectUnitByAddressForUpdate, address.String())
}

func (store *TxStore) GetWithdrawal(ctx context.Context, requestID ledger.RequestID) (ledger.Withdrawal, error) {
	return store.queryWithdrawal(ctx, sqlSelectUnitWithdrawalForUpdate, requestID.String())
}

func (store *Store) CreateAccount(ctx context.Context, account ledger.Account) error {
	_, err := store.db.Exec(ctx, sqlInsertUnit,
		account.Address.String(),
		account.OwnerID.String(),
		account.Code.String(),
		account.Holder.Name,
		account.Holder.Phone,
		account.Balance.Int64(),
		account.PreviousBalance.Int64(),
		string(account.Status),
		account.CreatedUnixUTC,
		account.UpdatedUnixUTC,
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err, constraintUnitOwner):
		return wrapStoreError(errorSubjectAccount, errorCodeDuplicate, ledger.ErrAccountExists)
	case isUniqueViolation(err, constraintUnitCode), isUniqueViolation(err, constraintUnitAddress):
		return wrapStoreError(errorSubjectAccount, errorCodeDuplicate, ledger.ErrAccountCodeTaken)
	default:
		return wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
}

func (store *Store) GetAccountByAddress(ctx context.Context, address ledger.Address) (ledger.Account, error) {
	return store.queryAccount(ctx, sqlSelectUnitByAddress, address.String())
}

func (store *Store) GetAccountByOwner(ctx context.Context, ownerID ledger.OwnerID) (ledger.Account, error) {
	return store.queryAccount(ctx, sqlSelectUnitByOwner, ownerID.String())
}

func (store *Store) GetAccountByCode(ctx context.Context, code ledger.AccountCode) (ledger.Account, error) {
	return store.queryAccount(ctx, sqlSelectUnitByCode, code.String())
}

func (store *Store) GetAccountByPhone(ctx context.Context, phone string) (ledger.Account, error) {
	return store.queryAccount(ctx, sqlSelectUnitByPhone, strings.TrimSpace(phone))
}

func (store *Store) queryAccount(ctx context.Context, query string, argument string) (ledger.Account, error) {
	account, err := scanAccount(store.db.QueryRow(ctx, query, argument))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, ledger.ErrAccountNotFound)
	}
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, err)
	}
	return account, nil
}

// AdjustBalance applies delta only when the result stays non-negative.
func (store *Store) AdjustBalance(ctx context.Context, address ledger.Address, delta int64, atUnixUTC int64) (ledger.Account, error) {
	account, err := scanAccount(store.db.QueryRow(ctx, sqlAdjustBalance, address.String(), delta, atUnixUTC))
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeAdjust, err)
	}
	if _, lookupErr := store.GetAccountByAddress(ctx, address); lookupErr != nil {
		return ledger.Account{}, lookupErr
	}
	return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeAdjust, ledger.ErrInsufficientFunds)
}

func (store *Store) DeleteAccount(ctx context.Context, address ledger.Address) error {
	if _, err := store.db.Exec(ctx, sqlDeleteUnitWithdrawals, address.String()); err != nil {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeDelete, err)
	}
	tag, err := store.db.Exec(ctx, sqlDeleteUnit, address.String())
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeDelete, ledger.ErrAccountNotFound)
	}
	return nil
}

func (store *Store) InsertLogEntry(ctx context.Context, entry ledger.LogEntry) (ledger.LogEntry, error) {
	var entryID string
	err := store.db.QueryRow(ctx, sqlInsertUnitLog,
		entry.EntryID,
		entry.Address.String(),
		entry.OwnerID.String(),
		string(entry.Activity),
		string(entry.Status),
		entry.Sender,
		entry.Recipient,
		entry.Amount.Int64(),
		entry.Reference.String(),
		entry.Channel,
		entry.Narration,
		entry.CreatedUnixUTC,
	).Scan(&entryID)
	if isUniqueViolation(err, constraintLogReference) {
		return ledger.LogEntry{}, wrapStoreError(errorSubjectEntry, errorCodeDuplicate, ledger.ErrDuplicateReference)
	}
	if err != nil {
		return ledger.LogEntry{}, wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	entry.EntryID = entryID
	return entry, nil
}

func (store *Store) ListLogEntries(ctx context.Context, address ledger.Address, limit int, newestFirst bool) ([]ledger.LogEntry, error) {
	query := sqlListUnitLogsOldest
	if newestFirst {
		query = sqlListUnitLogsNewest
	}
	rows, err := store.db.Query(ctx, query, address.String(), limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	defer rows.Close()
	entries := make([]ledger.LogEntry, 0, limit)
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	return entries, nil
}

func (store *Store) CreateWithdrawal(ctx context.Context, withdrawal ledger.Withdrawal) error {
	_, err := store.db.Exec(ctx, sqlInsertUnitWithdrawal,
		withdrawal.RequestID.String(),
		withdrawal.OwnerID.String(),
		withdrawal.Address.String(),
		withdrawal.Amount.Int64(),
		withdrawal.Bank.AccountNumber,
		withdrawal.Bank.AccountName,
		withdrawal.Bank.AccountType,
		string(withdrawal.Status),
		withdrawal.StatusReason,
		withdrawal.CreatedUnixUTC,
		withdrawal.UpdatedUnixUTC,
	)
	if isUniqueViolation(err, constraintPendingWithdrawal) {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeDuplicate, ledger.ErrPendingWithdrawalExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetWithdrawal(ctx context.Context, requestID ledger.RequestID) (ledger.Withdrawal, error) {
	return store.queryWithdrawal(ctx, sqlSelectUnitWithdrawal, requestID.String())
}

func (store *Store) queryWithdrawal(ctx context.Context, query string, requestID string) (ledger.Withdrawal, error) {
	withdrawal, err := scanWithdrawal(store.db.QueryRow(ctx, query, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Withdrawal{}, wrapStoreError(errorSubjectWithdrawal, errorCodeGet, ledger.ErrWithdrawalNotFound)
	}
	if err != nil {
		return ledger.Withdrawal{}, wrapStoreError(errorSubjectWithdrawal, errorCodeGet, err)
	}
	return withdrawal, nil
}

func (store *Store) HasPendingWithdrawal(ctx context.Context, address ledger.Address) (bool, error) {
	var pending bool
	if err := store.db.QueryRow(ctx, sqlHasPendingWithdrawal, address.String()).Scan(&pending); err != nil {
		return false, wrapStoreError(errorSubjectWithdrawal, errorCodeLookup, err)
	}
	return pending, nil
}

func (store *Store) UpdateWithdrawalStatus(ctx context.Context, requestID ledger.RequestID, from ledger.WithdrawalStatus, to ledger.WithdrawalStatus, reason string, atUnixUTC int64) error {
	tag, err := store.db.Exec(ctx, sqlUpdateWithdrawalStatus, requestID.String(), string(from), string(to), reason, atUnixUTC)
	if err != nil {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeUpdateStatus, ledger.ErrWithdrawalClosed)
	}
	return nil
}

func (store *Store) ListWithdrawals(ctx context.Context, address ledger.Address) ([]ledger.Withdrawal, error) {
	rows, err := store.db.Query(ctx, sqlListUnitWithdrawals, address.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectWithdrawal, errorCodeList, err)
	}
	defer rows.Close()
	withdrawals := make([]ledger.Withdrawal, 0, 8)
	for rows.Next() {
		withdrawal, err := scanWithdrawal(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectWithdrawal, errorCodeInvalid, err)
		}
		withdrawals = append(withdrawals, withdrawal)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectWithdrawal, errorCodeList, err)
	}
	return withdrawals, nil
}

func (store *Store) CreateWebhook(ctx context.Context, record ledger.WebhookRecord) error {
	_, err := store.db.Exec(ctx, sqlInsertWebhook,
		record.RequestID.String(),
		payloadJSON(record.Payload),
		string(record.Status),
		record.CreatedUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectWebhook, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) ResolveWebhook(ctx context.Context, requestID ledger.RequestID, status ledger.WebhookStatus, providerReference string) error {
	tag, err := store.db.Exec(ctx, sqlResolveWebhook, requestID.String(), string(status), providerReference)
	if isUniqueViolation(err, constraintWebhookProviderRef) {
		return wrapStoreError(errorSubjectWebhook, errorCodeDuplicate, ledger.ErrDuplicateProviderRef)
	}
	if err != nil {
		return wrapStoreError(errorSubjectWebhook, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectWebhook, errorCodeUpdateStatus, ledger.ErrWebhookNotFound)
	}
	return nil
}

// GetWebhook loads an audit record by request id.
func (store *Store) GetWebhook(ctx context.Context, requestID ledger.RequestID) (ledger.WebhookRecord, error) {
	var (
		payloadValue      string
		statusValue       string
		providerReference string
		createdUnixUTC    int64
	)
	err := store.db.QueryRow(ctx, sqlSelectWebhook, requestID.String()).Scan(&payloadValue, &statusValue, &providerReference, &createdUnixUTC)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.WebhookRecord{}, wrapStoreError(errorSubjectWebhook, errorCodeGet, ledger.ErrWebhookNotFound)
	}
	if err != nil {
		return ledger.WebhookRecord{}, wrapStoreError(errorSubjectWebhook, errorCodeGet, err)
	}
	status, err := ledger.ParseWebhookStatus(statusValue)
	if err != nil {
		return ledger.WebhookRecord{}, wrapStoreError(errorSubjectWebhook, errorCodeInvalid, err)
	}
	return ledger.WebhookRecord{
		RequestID:         requestID,
		Payload:           []byte(payloadValue),
		Status:            status,
		ProviderReference: providerReference,
		CreatedUnixUTC:    createdUnixUTC,
	}, nil
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var (
		addressValue   string
		ownerValue     string
		codeValue      string
		holderName     string
		phoneNumber    string
		balanceValue   int64
		previousValue  int64
		statusValue    string
		createdUnixUTC int64
		updatedUnixUTC int64
	)
	if err := row.Scan(
		&addressValue,
		&ownerValue,
		&codeValue,
		&holderName,
		&phoneNumber,
		&balanceValue,
		&previousValue,
		&statusValue,
		&createdUnixUTC,
		&updatedUnixUTC,
	); err != nil {
		return ledger.Account{}, err
	}
	address, err := ledger.NewAddress(addressValue)
	if err != nil {
		return ledger.Account{}, err
	}
	ownerID, err := ledger.NewOwnerID(ownerValue)
	if err != nil {
		return ledger.Account{}, err
	}
	code, err := ledger.NewAccountCode(codeValue)
	if err != nil {
		return ledger.Account{}, err
	}
	balance, err := ledger.NewBalanceCents(balanceValue)
	if err != nil {
		return ledger.Account{}, err
	}
	previousBalance, err := ledger.NewBalanceCents(previousValue)
	if err != nil {
		return ledger.Account{}, err
	}
	status, err := ledger.ParseAccountStatus(statusValue)
	if err != nil {
		return ledger.Account{}, err
	}
	return ledger.Account{
		Address:         address,
		OwnerID:         ownerID,
		Code:            code,
		Holder:          ledger.Holder{Name: holderName, Phone: phoneNumber},
		Balance:         balance,
		PreviousBalance: previousBalance,
		Status:          status,
		CreatedUnixUTC:  createdUnixUTC,
		UpdatedUnixUTC:  updatedUnixUTC,
	}, nil
}

func scanLogEntry(row rowScanner) (ledger.LogEntry, error) {
	var (
		entryID        string
		addressValue   string
		ownerValue     string
		activityValue  string
		statusValue    string
		sender         string
		recipient      string
		amountValue    int64
		referenceValue string
		channel        string
		narration      string
		createdUnixUTC int64
	)
	if err := row.Scan(
		&entryID,
		&addressValue,
		&ownerValue,
		&activityValue,
		&statusValue,
		&sender,
		&recipient,
		&amountValue,
		&referenceValue,
		&channel,
		&narration,
		&createdUnixUTC,
	); err != nil {
		return ledger.LogEntry{}, err
	}
	address, err := ledger.NewAddress(addressValue)
	if err != nil {
		return ledger.LogEntry{}, err
	}
	ownerID, err := ledger.NewOwnerID(ownerValue)
	if err != nil {
		return ledger.LogEntry{}, err
	}
	activity, err := ledger.ParseActivity(activityValue)
	if err != nil {
		return ledger.LogEntry{}, err
	}
	amount, err := ledger.NewAmountCents(amountValue)
	if err != nil {
		return ledger.LogEntry{}, err
	}
	reference, err := ledger.NewReference(referenceValue)
	if err != nil {
		return ledger.LogEntry{}, err
	}
	return ledger.LogEntry{
		EntryID:        entryID,
		Address:        address,
		OwnerID:        ownerID,
		Activity:       activity,
		Status:         ledger.EntryStatus(statusValue),
		Sender:         sender,
		Recipient:      recipient,
		Amount:         amount,
		Reference:      reference,
		Channel:        channel,
		Narration:      narration,
		CreatedUnixUTC: createdUnixUTC,
	}, nil
}

func scanWithdrawal(row rowScanner) (ledger.Withdrawal, error) {
	var (
		requestValue   string
		ownerValue     string
		addressValue   string
		amountValue    int64
		accountNumber  string
		accountName    string
		accountType    string
		statusValue    string
		statusReason   string
		createdUnixUTC int64
		updatedUnixUTC int64
	)
	if err := row.Scan(
		&requestValue,
		&ownerValue,
		&addressValue,
		&amountValue,
		&accountNumber,
		&accountName,
		&accountType,
		&statusValue,
		&statusReason,
		&createdUnixUTC,
		&updatedUnixUTC,
	); err != nil {
		return ledger.Withdrawal{}, err
	}
	requestID, err := ledger.NewRequestID(requestValue)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	ownerID, err := ledger.NewOwnerID(ownerValue)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	address, err := ledger.NewAddress(addressValue)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	amount, err := ledger.NewAmountCents(amountValue)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	status, err := ledger.ParseWithdrawalStatus(statusValue)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	return ledger.Withdrawal{
		RequestID: requestID,
		OwnerID:   ownerID,
		Address:   address,
		Amount:    amount,
		Bank: ledger.BankDetails{
			AccountNumber: accountNumber,
			AccountName:   accountName,
			AccountType:   accountType,
		},
		Status:         status,
		StatusReason:   statusReason,
		CreatedUnixUTC: createdUnixUTC,
		UpdatedUnixUTC: updatedUnixUTC,
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

// payloadJSON stores malformed bodies as a JSON string so the jsonb column
// still accepts them.
func payloadJSON(raw []byte) string {
	if len(raw) > 0 && json.Valid(raw) {
		return string(raw)
	}
	encoded, err := json.Marshal(string(raw))
	if err != nil {
		return `""`
	}
	return string(encoded)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	return false
}
