package ledger

import (
	"context"
	"fmt"
	"strings"
)

// WithdrawalRequest asks for a payout of Amount from Address to Bank.
type WithdrawalRequest struct {
	Address Address
	Amount  AmountCents
	Bank    BankDetails
}

// MinimumWithdrawal returns the smallest amount RequestWithdrawal accepts.
func (service *Service) MinimumWithdrawal() AmountCents {
	return service.minimumWithdrawal
}

// RequestWithdrawal records a PENDING payout request. The balance is not
// touched until the request is settled as SUCCESSFUL.
func (service *Service) RequestWithdrawal(ctx context.Context, request WithdrawalRequest) (Withdrawal, error) {
	var created Withdrawal
	var account Account
	operationError := func() error {
		if request.Amount <= 0 {
			return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
		}
		if request.Amount < service.minimumWithdrawal {
			return fmt.Errorf("%w: minimum is %s units", ErrWithdrawalBelowMinimum, service.minimumWithdrawal.Format())
		}
		bank, err := NewBankDetails(request.Bank.AccountNumber, request.Bank.AccountName, request.Bank.AccountType)
		if err != nil {
			return err
		}
		return service.withAccountLocks(ctx, []Address{request.Address}, func(ctx context.Context) error {
			return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
				var err error
				account, err = transactionStore.GetAccountByAddress(ctx, request.Address)
				if err != nil {
					return err
				}
				if account.Balance < request.Amount {
					return insufficientFunds(account.Balance, request.Amount)
				}
				pending, err := transactionStore.HasPendingWithdrawal(ctx, account.Address)
				if err != nil {
					return err
				}
				if pending {
					return ErrPendingWithdrawalExists
				}
				requestID, err := NewRequestID(service.uniqueID(requestIDPrefix))
				if err != nil {
					return err
				}
				nowUnixUTC := service.nowFn()
				created = Withdrawal{
					RequestID:      requestID,
					OwnerID:        account.OwnerID,
					Address:        account.Address,
					Amount:         request.Amount,
					Bank:           bank,
					Status:         WithdrawalStatusPending,
					CreatedUnixUTC: nowUnixUTC,
					UpdatedUnixUTC: nowUnixUTC,
				}
				return transactionStore.CreateWithdrawal(ctx, created)
			})
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:    operationRequestWithdrawal,
		Address:      request.Address,
		Counterparty: request.Bank.AccountNumber,
		Amount:       request.Amount,
		Channel:      ChannelWithdrawal,
		Error:        operationError,
	})
	if operationError != nil {
		return Withdrawal{}, operationError
	}
	service.notify(ctx, operationRequestWithdrawal, account, fmt.Sprintf("Your withdrawal request %s of %s units has been received", created.RequestID.String(), created.Amount.Format()))
	service.send(ctx, Notification{
		Destination: service.operationsPhone,
		Message:     fmt.Sprintf("New withdrawal request %s of %s units from account %s", created.RequestID.String(), created.Amount.Format(), account.Code.String()),
		Operation:   operationRequestWithdrawal,
		Address:     account.Address,
	})
	return created, nil
}

// SettleWithdrawal moves a request to INPROGRESS, CANCELED or SUCCESSFUL.
// SUCCESSFUL debits the source account in the same transaction as the status
// change; when the debit fails the status stays where it was.
func (service *Service) SettleWithdrawal(ctx context.Context, requestID RequestID, status WithdrawalStatus, reason string) (Withdrawal, error) {
	var settled Withdrawal
	var account Account
	operationError := func() error {
		if status == WithdrawalStatusPending {
			return fmt.Errorf("%w: cannot move a request back to %s", ErrInvalidWithdrawalStatus, status)
		}
		if _, err := ParseWithdrawalStatus(string(status)); err != nil {
			return err
		}
		current, err := service.store.GetWithdrawal(ctx, requestID)
		if err != nil {
			return err
		}
		settled = current
		return service.withAccountLocks(ctx, []Address{current.Address}, func(ctx context.Context) error {
			return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
				withdrawal, err := transactionStore.GetWithdrawal(ctx, requestID)
				if err != nil {
					return err
				}
				if withdrawal.Status.IsTerminal() {
					return fmt.Errorf("%w: status is %s", ErrWithdrawalClosed, withdrawal.Status)
				}
				nowUnixUTC := service.nowFn()
				if status == WithdrawalStatusSuccessful {
					reference, err := NewReference(requestID.String())
					if err != nil {
						return err
					}
					account, _, err = service.debitWithin(ctx, transactionStore, DebitRequest{
						Address:   withdrawal.Address,
						Amount:    withdrawal.Amount,
						Reference: reference,
						Channel:   ChannelWithdrawal,
						Narration: withdrawalNarration,
						Recipient: withdrawal.Bank.AccountNumber,
					}, nowUnixUTC)
					if err != nil {
						return err
					}
				} else {
					account, err = transactionStore.GetAccountByAddress(ctx, withdrawal.Address)
					if err != nil {
						return err
					}
				}
				trimmedReason := strings.TrimSpace(reason)
				if err := transactionStore.UpdateWithdrawalStatus(ctx, requestID, withdrawal.Status, status, trimmedReason, nowUnixUTC); err != nil {
					return err
				}
				withdrawal.Status = status
				withdrawal.StatusReason = trimmedReason
				withdrawal.UpdatedUnixUTC = nowUnixUTC
				settled = withdrawal
				return nil
			})
		})
	}()
	reference, _ := NewReference(requestID.String())
	service.logOperation(ctx, OperationLog{
		Operation:    operationSettleWithdrawal,
		Address:      settled.Address,
		Counterparty: string(status),
		Amount:       settled.Amount,
		Reference:    reference,
		Channel:      ChannelWithdrawal,
		Error:        operationError,
	})
	if operationError != nil {
		return Withdrawal{}, operationError
	}
	message := fmt.Sprintf("Your withdrawal request %s of %s units is now %s", settled.RequestID.String(), settled.Amount.Format(), settled.Status)
	if settled.StatusReason != "" {
		message += ": " + settled.StatusReason
	}
	service.notify(ctx, operationSettleWithdrawal, account, message)
	return settled, nil
}

// GetWithdrawal loads a withdrawal request by id.
func (service *Service) GetWithdrawal(ctx context.Context, requestID RequestID) (Withdrawal, error) {
	return service.store.GetWithdrawal(ctx, requestID)
}

// ListWithdrawals returns every request raised against address, newest first.
func (service *Service) ListWithdrawals(ctx context.Context, address Address) ([]Withdrawal, error) {
	withdrawals, err := service.store.ListWithdrawals(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(withdrawals) == 0 {
		return nil, ErrNoWithdrawals
	}
	return withdrawals, nil
}
