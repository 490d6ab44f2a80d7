package grpcserver

import (
	"context"
	"errors"
	"strings"

	"github.com/MarkoPoloResearchLab/unitledger/api/ledger/v1"
	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	errorInsufficientFunds    = "insufficient_funds"
	errorAccountNotFound      = "account_not_found"
	errorRecipientNotFound    = "recipient_not_found"
	errorNoLogEntries         = "no_log_entries"
	errorAccountExists        = "account_exists"
	errorDuplicateReference   = "duplicate_reference"
	errorSelfTransfer         = "self_transfer"
	errorInvalidAddress       = "invalid_address"
	errorInvalidOwnerID       = "invalid_owner_id"
	errorInvalidAccountCode   = "invalid_account_code"
	errorInvalidReference     = "invalid_reference"
	errorInvalidChannel       = "invalid_channel"
	errorInvalidAmount        = "invalid_amount_cents"
	errorInvalidBalance       = "invalid_balance"
	errorInvalidAccountLookup = "invalid_account_lookup"
	errorInternal             = "internal_error"
)

// LedgerServiceServer exposes the unit ledger to internal callers over gRPC.
type LedgerServiceServer struct {
	ledgerv1.UnimplementedLedgerServiceServer
	ledgerService *ledger.Service
	logger        *zap.Logger
}

// NewLedgerServiceServer constructs a gRPC server for the ledger service.
func NewLedgerServiceServer(ledgerService *ledger.Service, logger *zap.Logger) *LedgerServiceServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerServiceServer{ledgerService: ledgerService, logger: logger}
}

// mapError converts err for the wire and logs internal failures with their detail.
func (service *LedgerServiceServer) mapError(err error) error {
	mapped := mapToGRPCError(err)
	if status.Code(mapped) == codes.Internal {
		service.logger.Error("ledger rpc failed", zap.Error(err))
	}
	return mapped
}

func (service *LedgerServiceServer) CreateAccount(ctx context.Context, request *ledgerv1.CreateAccountRequest) (*ledgerv1.Account, error) {
	ownerID, err := ledger.NewOwnerID(request.GetOwnerId())
	if err != nil {
		return nil, service.mapError(err)
	}
	startingBalance, err := ledger.NewBalanceCents(request.StartingBalanceCents)
	if err != nil {
		return nil, service.mapError(err)
	}
	account, operationError := service.ledgerService.CreateAccount(ctx, ownerID, ledger.Holder{
		Name:  strings.TrimSpace(request.HolderName),
		Phone: strings.TrimSpace(request.Phone),
	}, startingBalance)
	if operationError != nil {
		return nil, service.mapError(operationError)
	}
	return toAccount(account), nil
}

func (service *LedgerServiceServer) GetAccount(ctx context.Context, request *ledgerv1.GetAccountRequest) (*ledgerv1.Account, error) {
	account, err := service.lookupAccount(ctx, request)
	if err != nil {
		return nil, service.mapError(err)
	}
	return toAccount(account), nil
}

func (service *LedgerServiceServer) lookupAccount(ctx context.Context, request *ledgerv1.GetAccountRequest) (ledger.Account, error) {
	switch {
	case request.Address != "" && request.OwnerId == "" && request.Code == "":
		address, err := ledger.NewAddress(request.Address)
		if err != nil {
			return ledger.Account{}, err
		}
		return service.ledgerService.GetAccountByAddress(ctx, address)
	case request.OwnerId != "" && request.Address == "" && request.Code == "":
		ownerID, err := ledger.NewOwnerID(request.OwnerId)
		if err != nil {
			return ledger.Account{}, err
		}
		return service.ledgerService.GetAccountByOwner(ctx, ownerID)
	case request.Code != "" && request.Address == "" && request.OwnerId == "":
		code, err := ledger.NewAccountCode(request.Code)
		if err != nil {
			return ledger.Account{}, err
		}
		return service.ledgerService.GetAccountByCode(ctx, code)
	default:
		return ledger.Account{}, errInvalidAccountLookup
	}
}

func (service *LedgerServiceServer) Credit(ctx context.Context, request *ledgerv1.CreditRequest) (*ledgerv1.Account, error) {
	address, err := ledger.NewAddress(request.Address)
	if err != nil {
		return nil, service.mapError(err)
	}
	amount, err := ledger.NewAmountCents(request.AmountCents)
	if err != nil {
		return nil, service.mapError(err)
	}
	reference, err := optionalReference(request.Reference)
	if err != nil {
		return nil, service.mapError(err)
	}
	account, operationError := service.ledgerService.Credit(ctx, ledger.CreditRequest{
		Address:   address,
		Amount:    amount,
		Reference: reference,
		Channel:   request.Channel,
		Narration: request.Narration,
		Sender:    request.Sender,
		Notify:    request.Notify,
	})
	if operationError != nil {
		return nil, service.mapError(operationError)
	}
	return toAccount(account), nil
}

func (service *LedgerServiceServer) Debit(ctx context.Context, request *ledgerv1.DebitRequest) (*ledgerv1.Account, error) {
	address, err := ledger.NewAddress(request.Address)
	if err != nil {
		return nil, service.mapError(err)
	}
	amount, err := ledger.NewAmountCents(request.AmountCents)
	if err != nil {
		return nil, service.mapError(err)
	}
	reference, err := optionalReference(request.Reference)
	if err != nil {
		return nil, service.mapError(err)
	}
	account, operationError := service.ledgerService.Debit(ctx, ledger.DebitRequest{
		Address:   address,
		Amount:    amount,
		Reference: reference,
		Channel:   request.Channel,
		Narration: request.Narration,
		Recipient: request.Recipient,
		Notify:    request.Notify,
	})
	if operationError != nil {
		return nil, service.mapError(operationError)
	}
	return toAccount(account), nil
}

func (service *LedgerServiceServer) Transfer(ctx context.Context, request *ledgerv1.TransferRequest) (*ledgerv1.TransferResponse, error) {
	source, err := ledger.NewAddress(request.SourceAddress)
	if err != nil {
		return nil, service.mapError(err)
	}
	code, err := ledger.NewAccountCode(request.RecipientCode)
	if err != nil {
		return nil, service.mapError(err)
	}
	amount, err := ledger.NewAmountCents(request.AmountCents)
	if err != nil {
		return nil, service.mapError(err)
	}
	result, operationError := service.ledgerService.Transfer(ctx, ledger.TransferRequest{
		Source:        source,
		RecipientCode: code,
		Amount:        amount,
		Narration:     request.Narration,
	})
	if operationError != nil {
		return nil, service.mapError(operationError)
	}
	return &ledgerv1.TransferResponse{
		Source: toAccount(result.Source),
		Entry:  toLogEntry(result.Entry),
	}, nil
}

func (service *LedgerServiceServer) ListLogs(ctx context.Context, request *ledgerv1.ListLogsRequest) (*ledgerv1.ListLogsResponse, error) {
	address, err := ledger.NewAddress(request.Address)
	if err != nil {
		return nil, service.mapError(err)
	}
	entries, operationError := service.ledgerService.ListLogs(ctx, address, int(request.Limit), !request.OldestFirst)
	if operationError != nil {
		return nil, service.mapError(operationError)
	}
	response := &ledgerv1.ListLogsResponse{Entries: make([]*ledgerv1.LogEntry, 0, len(entries))}
	for _, entry := range entries {
		response.Entries = append(response.Entries, toLogEntry(entry))
	}
	return response, nil
}

// VerifyFunds reports whether the account can cover a charge without moving units.
func (service *LedgerServiceServer) VerifyFunds(ctx context.Context, request *ledgerv1.VerifyFundsRequest) (*ledgerv1.VerifyFundsResponse, error) {
	address, err := ledger.NewAddress(request.Address)
	if err != nil {
		return nil, service.mapError(err)
	}
	amount, err := ledger.NewAmountCents(request.AmountCents)
	if err != nil {
		return nil, service.mapError(err)
	}
	account, operationError := service.ledgerService.GetAccountByAddress(ctx, address)
	if operationError != nil {
		return nil, service.mapError(operationError)
	}
	return &ledgerv1.VerifyFundsResponse{
		Sufficient:   account.Balance >= amount,
		BalanceCents: account.Balance.Int64(),
	}, nil
}

var errInvalidAccountLookup = errors.New("exactly one of address, owner_id or code is required")

func optionalReference(raw string) (ledger.Reference, error) {
	if strings.TrimSpace(raw) == "" {
		return ledger.Reference{}, nil
	}
	return ledger.NewReference(raw)
}

func toAccount(account ledger.Account) *ledgerv1.Account {
	return &ledgerv1.Account{
		Address:              account.Address.String(),
		OwnerId:              account.OwnerID.String(),
		Code:                 account.Code.String(),
		HolderName:           account.Holder.Name,
		Phone:                account.Holder.Phone,
		BalanceCents:         account.Balance.Int64(),
		PreviousBalanceCents: account.PreviousBalance.Int64(),
		Status:               string(account.Status),
		CreatedUnixUtc:       account.CreatedUnixUTC,
		UpdatedUnixUtc:       account.UpdatedUnixUTC,
	}
}

func toLogEntry(entry ledger.LogEntry) *ledgerv1.LogEntry {
	return &ledgerv1.LogEntry{
		EntryId:        entry.EntryID,
		Address:        entry.Address.String(),
		Activity:       string(entry.Activity),
		Status:         string(entry.Status),
		Sender:         entry.Sender,
		Recipient:      entry.Recipient,
		AmountCents:    entry.Amount.Int64(),
		Reference:      entry.Reference.String(),
		Channel:        entry.Channel,
		Narration:      entry.Narration,
		CreatedUnixUtc: entry.CreatedUnixUTC,
	}
}

func mapToGRPCError(source error) error {
	if errors.Is(source, errInvalidAccountLookup) {
		return status.Error(codes.InvalidArgument, errorInvalidAccountLookup)
	}
	if errors.Is(source, ledger.ErrInvalidAddress) {
		return status.Error(codes.InvalidArgument, errorInvalidAddress)
	}
	if errors.Is(source, ledger.ErrInvalidOwnerID) {
		return status.Error(codes.InvalidArgument, errorInvalidOwnerID)
	}
	if errors.Is(source, ledger.ErrInvalidAccountCode) {
		return status.Error(codes.InvalidArgument, errorInvalidAccountCode)
	}
	if errors.Is(source, ledger.ErrInvalidReference) {
		return status.Error(codes.InvalidArgument, errorInvalidReference)
	}
	if errors.Is(source, ledger.ErrInvalidChannel) {
		return status.Error(codes.InvalidArgument, errorInvalidChannel)
	}
	if errors.Is(source, ledger.ErrInvalidAmountCents) {
		return status.Error(codes.InvalidArgument, errorInvalidAmount)
	}
	if errors.Is(source, ledger.ErrInvalidBalance) {
		return status.Error(codes.InvalidArgument, errorInvalidBalance)
	}
	if errors.Is(source, ledger.ErrSelfTransfer) {
		return status.Error(codes.InvalidArgument, errorSelfTransfer)
	}
	if errors.Is(source, ledger.ErrInsufficientFunds) {
		return status.Error(codes.FailedPrecondition, errorInsufficientFunds)
	}
	if errors.Is(source, ledger.ErrRecipientNotFound) {
		return status.Error(codes.NotFound, errorRecipientNotFound)
	}
	if errors.Is(source, ledger.ErrAccountNotFound) {
		return status.Error(codes.NotFound, errorAccountNotFound)
	}
	if errors.Is(source, ledger.ErrNoLogEntries) {
		return status.Error(codes.NotFound, errorNoLogEntries)
	}
	if errors.Is(source, ledger.ErrAccountExists) {
		return status.Error(codes.AlreadyExists, errorAccountExists)
	}
	if errors.Is(source, ledger.ErrDuplicateReference) {
		return status.Error(codes.AlreadyExists, errorDuplicateReference)
	}
	return status.Error(codes.Internal, errorInternal)
}
