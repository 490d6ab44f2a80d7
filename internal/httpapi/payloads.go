package httpapi

import (
	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"github.com/shopspring/decimal"
)

type transferRequest struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Narration string          `json:"narration"`
}

type withdrawRequest struct {
	AccountNumber string          `json:"accountNumber"`
	AccountName   string          `json:"accountName"`
	AccountType   string          `json:"accountType"`
	Amount        decimal.Decimal `json:"amount"`
}

type settleRequest struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

type provisionRequest struct {
	OwnerID         string          `json:"ownerId"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone"`
	StartingBalance decimal.Decimal `json:"startingBalance"`
}

// mutationRequest is the body of system credits and debits.
type mutationRequest struct {
	Address      string          `json:"address"`
	Amount       decimal.Decimal `json:"amount"`
	Reference    string          `json:"reference"`
	Channel      string          `json:"channel"`
	Narration    string          `json:"narration"`
	Counterparty string          `json:"counterparty"`
	Notify       bool            `json:"notify"`
}

type accountPayload struct {
	Address              string `json:"address"`
	OwnerID              string `json:"ownerId"`
	Code                 string `json:"code"`
	HolderName           string `json:"holderName"`
	Phone                string `json:"phone"`
	Balance              string `json:"balance"`
	BalanceCents         int64  `json:"balanceCents"`
	PreviousBalanceCents int64  `json:"previousBalanceCents"`
	Status               string `json:"status"`
	CreatedUnixUTC       int64  `json:"createdUnixUtc"`
	UpdatedUnixUTC       int64  `json:"updatedUnixUtc"`
}

func newAccountPayload(account ledger.Account) accountPayload {
	return accountPayload{
		Address:              account.Address.String(),
		OwnerID:              account.OwnerID.String(),
		Code:                 account.Code.String(),
		HolderName:           account.Holder.Name,
		Phone:                account.Holder.Phone,
		Balance:              account.Balance.String(),
		BalanceCents:         account.Balance.Int64(),
		PreviousBalanceCents: account.PreviousBalance.Int64(),
		Status:               string(account.Status),
		CreatedUnixUTC:       account.CreatedUnixUTC,
		UpdatedUnixUTC:       account.UpdatedUnixUTC,
	}
}

type logEntryPayload struct {
	EntryID        string `json:"entryId"`
	Address        string `json:"address"`
	Activity       string `json:"activity"`
	Status         string `json:"status"`
	Sender         string `json:"sender"`
	Recipient      string `json:"recipient"`
	Amount         string `json:"amount"`
	AmountCents    int64  `json:"amountCents"`
	Reference      string `json:"reference"`
	Channel        string `json:"channel"`
	Narration      string `json:"narration"`
	CreatedUnixUTC int64  `json:"createdUnixUtc"`
}

func newLogEntryPayload(entry ledger.LogEntry) logEntryPayload {
	return logEntryPayload{
		EntryID:        entry.EntryID,
		Address:        entry.Address.String(),
		Activity:       string(entry.Activity),
		Status:         string(entry.Status),
		Sender:         entry.Sender,
		Recipient:      entry.Recipient,
		Amount:         entry.Amount.String(),
		AmountCents:    entry.Amount.Int64(),
		Reference:      entry.Reference.String(),
		Channel:        entry.Channel,
		Narration:      entry.Narration,
		CreatedUnixUTC: entry.CreatedUnixUTC,
	}
}

type withdrawalPayload struct {
	RequestID      string `json:"requestId"`
	Address        string `json:"address"`
	Amount         string `json:"amount"`
	AmountCents    int64  `json:"amountCents"`
	AccountNumber  string `json:"accountNumber"`
	AccountName    string `json:"accountName"`
	AccountType    string `json:"accountType"`
	Status         string `json:"status"`
	StatusReason   string `json:"statusReason,omitempty"`
	CreatedUnixUTC int64  `json:"createdUnixUtc"`
	UpdatedUnixUTC int64  `json:"updatedUnixUtc"`
}

func newWithdrawalPayload(withdrawal ledger.Withdrawal) withdrawalPayload {
	return withdrawalPayload{
		RequestID:      withdrawal.RequestID.String(),
		Address:        withdrawal.Address.String(),
		Amount:         withdrawal.Amount.String(),
		AmountCents:    withdrawal.Amount.Int64(),
		AccountNumber:  withdrawal.Bank.AccountNumber,
		AccountName:    withdrawal.Bank.AccountName,
		AccountType:    withdrawal.Bank.AccountType,
		Status:         string(withdrawal.Status),
		StatusReason:   withdrawal.StatusReason,
		CreatedUnixUTC: withdrawal.CreatedUnixUTC,
		UpdatedUnixUTC: withdrawal.UpdatedUnixUTC,
	}
}

type webhookPayload struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
}
