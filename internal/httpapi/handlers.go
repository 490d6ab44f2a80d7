package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"github.com/gin-gonic/gin"
)

func (server *Server) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
}

// handleWebhook is unauthenticated; the payment provider proves itself with
// the shared secret header when one is configured.
func (server *Server) handleWebhook(ctx *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		server.respondError(ctx, fmt.Errorf("%w: unreadable body", errMalformedRequest))
		return
	}
	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()

	result, err := server.reconciler.IngestWebhook(requestCtx, ledger.WebhookDelivery{
		Payload:   body,
		Signature: ctx.GetHeader(webhookSignatureHeader),
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	message := "Transaction successful"
	if result.Status == ledger.WebhookStatusDuplicate {
		message = "Transaction already processed"
	}
	respondOK(ctx, message, webhookPayload{
		RequestID: result.RequestID.String(),
		Status:    string(result.Status),
		Reference: result.Entry.Reference.String(),
	})
}

func (server *Server) handleAccount(ctx *gin.Context) {
	principal := getPrincipal(ctx)
	if !principal.HasAccount() {
		server.respondError(ctx, errNoUnitAccount)
		return
	}
	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()

	account, err := server.service.GetAccountByAddress(requestCtx, principal.Address)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	respondOK(ctx, "Unit account", newAccountPayload(account))
}

func (server *Server) handleLogs(ctx *gin.Context) {
	principal := getPrincipal(ctx)
	if !principal.HasAccount() {
		server.respondError(ctx, errNoUnitAccount)
		return
	}
	limit, err := parseLimit(ctx.Query("limit"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	newestFirst := !strings.EqualFold(ctx.Query("order"), "asc")

	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	entries, err := server.service.ListLogs(requestCtx, principal.Address, limit, newestFirst)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	payload := make([]logEntryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, newLogEntryPayload(entry))
	}
	respondOK(ctx, "Unit logs", payload)
}

func (server *Server) handleTransfer(ctx *gin.Context) {
	principal := getPrincipal(ctx)
	if !principal.HasAccount() {
		server.respondError(ctx, errNoUnitAccount)
		return
	}
	var request transferRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		server.respondError(ctx, fmt.Errorf("%w: expected JSON body", errMalformedRequest))
		return
	}
	code, err := ledger.NewAccountCode(request.Recipient)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	amount, err := ledger.AmountFromDecimal(request.Amount)
	if err != nil {
		server.respondError(ctx, err)
		return
	}

	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	result, err := server.service.Transfer(requestCtx, ledger.TransferRequest{
		Source:        principal.Address,
		RecipientCode: code,
		Amount:        amount,
		Narration:     request.Narration,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	respondOK(ctx, "Transfer successful", gin.H{
		"account": newAccountPayload(result.Source),
		"entry":   newLogEntryPayload(result.Entry),
	})
}

func (server *Server) handleWithdraw(ctx *gin.Context) {
	principal := getPrincipal(ctx)
	if err := principal.Authorize(ledger.CapabilityWithdraw); err != nil {
		server.respondError(ctx, err)
		return
	}
	if !principal.HasAccount() {
		server.respondError(ctx, errNoUnitAccount)
		return
	}
	var request withdrawRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		server.respondError(ctx, fmt.Errorf("%w: expected JSON body", errMalformedRequest))
		return
	}
	amount, err := ledger.AmountFromDecimal(request.Amount)
	if err != nil {
		server.respondError(ctx, err)
		return
	}

	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	withdrawal, err := server.service.RequestWithdrawal(requestCtx, ledger.WithdrawalRequest{
		Address: principal.Address,
		Amount:  amount,
		Bank: ledger.BankDetails{
			AccountNumber: request.AccountNumber,
			AccountName:   request.AccountName,
			AccountType:   request.AccountType,
		},
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	respondOK(ctx, "Withdrawal request submitted", newWithdrawalPayload(withdrawal))
}

func (server *Server) handleListWithdrawals(ctx *gin.Context) {
	principal := getPrincipal(ctx)
	if !principal.HasAccount() {
		server.respondError(ctx, errNoUnitAccount)
		return
	}
	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()

	withdrawals, err := server.service.ListWithdrawals(requestCtx, principal.Address)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	payload := make([]withdrawalPayload, 0, len(withdrawals))
	for _, withdrawal := range withdrawals {
		payload = append(payload, newWithdrawalPayload(withdrawal))
	}
	respondOK(ctx, "Withdrawal requests", payload)
}

func (server *Server) handleSettleWithdrawal(ctx *gin.Context) {
	if err := getPrincipal(ctx).Authorize(ledger.CapabilitySettle); err != nil {
		server.respondError(ctx, err)
		return
	}
	var request settleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		server.respondError(ctx, fmt.Errorf("%w: expected JSON body", errMalformedRequest))
		return
	}
	requestID, err := ledger.NewRequestID(request.RequestID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	status, err := ledger.ParseWithdrawalStatus(request.Status)
	if err != nil {
		server.respondError(ctx, err)
		return
	}

	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	withdrawal, err := server.service.SettleWithdrawal(requestCtx, requestID, status, request.Reason)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	respondOK(ctx, "Withdrawal request updated", newWithdrawalPayload(withdrawal))
}

func (server *Server) handleProvisionAccount(ctx *gin.Context) {
	if err := getPrincipal(ctx).Authorize(ledger.CapabilityDebitOthers); err != nil {
		server.respondError(ctx, err)
		return
	}
	var request provisionRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		server.respondError(ctx, fmt.Errorf("%w: expected JSON body", errMalformedRequest))
		return
	}
	ownerID, err := ledger.NewOwnerID(request.OwnerID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	var startingBalance ledger.AmountCents
	if !request.StartingBalance.IsZero() {
		startingBalance, err = ledger.AmountFromDecimal(request.StartingBalance)
		if err != nil {
			server.respondError(ctx, err)
			return
		}
	}

	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	account, err := server.service.CreateAccount(requestCtx, ownerID, ledger.Holder{
		Name:  strings.TrimSpace(request.Name),
		Phone: strings.TrimSpace(request.Phone),
	}, startingBalance)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	respondOK(ctx, "Unit account created", newAccountPayload(account))
}

func (server *Server) handleDeleteAccount(ctx *gin.Context) {
	if err := getPrincipal(ctx).Authorize(ledger.CapabilityDebitOthers); err != nil {
		server.respondError(ctx, err)
		return
	}
	address, err := ledger.NewAddress(ctx.Param("address"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	if err := server.service.DeleteAccount(requestCtx, address); err != nil {
		server.respondError(ctx, err)
		return
	}
	respondOK(ctx, "Unit account deleted", nil)
}

func (server *Server) handleCredit(ctx *gin.Context) {
	request, address, amount, reference, ok := server.bindMutation(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	account, err := server.service.Credit(requestCtx, ledger.CreditRequest{
		Address:   address,
		Amount:    amount,
		Reference: reference,
		Channel:   request.Channel,
		Narration: request.Narration,
		Sender:    request.Counterparty,
		Notify:    request.Notify,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	respondOK(ctx, "Unit account credited", newAccountPayload(account))
}

func (server *Server) handleDebit(ctx *gin.Context) {
	request, address, amount, reference, ok := server.bindMutation(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	account, err := server.service.Debit(requestCtx, ledger.DebitRequest{
		Address:   address,
		Amount:    amount,
		Reference: reference,
		Channel:   request.Channel,
		Narration: request.Narration,
		Recipient: request.Counterparty,
		Notify:    request.Notify,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	respondOK(ctx, "Unit account debited", newAccountPayload(account))
}

// bindMutation authorizes and decodes a system credit or debit. It writes the
// error response itself and reports ok=false when the handler must stop.
func (server *Server) bindMutation(ctx *gin.Context) (mutationRequest, ledger.Address, ledger.AmountCents, ledger.Reference, bool) {
	var request mutationRequest
	if err := getPrincipal(ctx).Authorize(ledger.CapabilityDebitOthers); err != nil {
		server.respondError(ctx, err)
		return request, ledger.Address{}, 0, ledger.Reference{}, false
	}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		server.respondError(ctx, fmt.Errorf("%w: expected JSON body", errMalformedRequest))
		return request, ledger.Address{}, 0, ledger.Reference{}, false
	}
	address, err := ledger.NewAddress(request.Address)
	if err != nil {
		server.respondError(ctx, err)
		return request, ledger.Address{}, 0, ledger.Reference{}, false
	}
	amount, err := ledger.AmountFromDecimal(request.Amount)
	if err != nil {
		server.respondError(ctx, err)
		return request, ledger.Address{}, 0, ledger.Reference{}, false
	}
	var reference ledger.Reference
	if strings.TrimSpace(request.Reference) != "" {
		reference, err = ledger.NewReference(request.Reference)
		if err != nil {
			server.respondError(ctx, err)
			return request, ledger.Address{}, 0, ledger.Reference{}, false
		}
	}
	return request, address, amount, reference, true
}
