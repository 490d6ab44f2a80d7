package ledger

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const fundingStatusSuccessful = "successful"

// FundingEvent is a validated successful payment notification.
type FundingEvent struct {
	Amount            AmountCents
	CustomerPhone     string
	ProviderReference string
	Currency          string
}

type fundingPayload struct {
	Event    string          `json:"event"`
	Data     *fundingPayload `json:"data"`
	Status   string          `json:"status"`
	Amount   json.Number     `json:"amount"`
	Currency string          `json:"currency"`
	FlwRef   string          `json:"flwRef"`
	FlwRefV3 string          `json:"flw_ref"`
	TxRef    string          `json:"txRef"`
	TxRefV3  string          `json:"tx_ref"`
	Customer struct {
		Phone       string `json:"phone"`
		PhoneNumber string `json:"phone_number"`
	} `json:"customer"`
}

// ParseFundingEvent accepts the flat provider payload or the {event, data}
// envelope and rejects anything that is not a complete successful payment.
func ParseFundingEvent(payload []byte) (FundingEvent, error) {
	var parsed fundingPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return FundingEvent{}, fmt.Errorf("%w: malformed payload", ErrInvalidWebhook)
	}
	if parsed.Data != nil {
		parsed = *parsed.Data
	}
	status := strings.ToLower(strings.TrimSpace(parsed.Status))
	if status == "" {
		return FundingEvent{}, fmt.Errorf("%w: missing status", ErrInvalidWebhook)
	}
	if status != fundingStatusSuccessful {
		return FundingEvent{}, fmt.Errorf("%w: status %q", ErrInvalidWebhook, parsed.Status)
	}
	rawAmount, err := decimal.NewFromString(parsed.Amount.String())
	if err != nil {
		return FundingEvent{}, fmt.Errorf("%w: missing amount", ErrInvalidWebhook)
	}
	amount, err := AmountFromDecimal(rawAmount)
	if err != nil {
		return FundingEvent{}, fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}
	phone := firstNonEmpty(parsed.Customer.Phone, parsed.Customer.PhoneNumber)
	if phone == "" {
		return FundingEvent{}, fmt.Errorf("%w: missing customer phone", ErrInvalidWebhook)
	}
	providerReference := firstNonEmpty(parsed.FlwRef, parsed.FlwRefV3, parsed.TxRef, parsed.TxRefV3)
	if providerReference == "" {
		return FundingEvent{}, fmt.Errorf("%w: missing transaction reference", ErrInvalidWebhook)
	}
	return FundingEvent{
		Amount:            amount,
		CustomerPhone:     phone,
		ProviderReference: providerReference,
		Currency:          strings.TrimSpace(parsed.Currency),
	}, nil
}

// WebhookDelivery is one inbound payment-provider request.
type WebhookDelivery struct {
	Payload   []byte
	Signature string
}

// WebhookResult reports how a delivery was recorded.
type WebhookResult struct {
	RequestID RequestID
	Status    WebhookStatus
	Account   Account
	Entry     LogEntry
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithWebhookSecret enables shared-secret verification of deliveries.
func WithWebhookSecret(secret string) ReconcilerOption {
	return func(reconciler *Reconciler) {
		reconciler.secret = strings.TrimSpace(secret)
	}
}

// Reconciler turns payment-provider webhooks into ledger credits, at most once
// per provider reference.
type Reconciler struct {
	service *Service
	secret  string
}

// NewReconciler wires a Reconciler over service.
func NewReconciler(service *Service, options ...ReconcilerOption) (*Reconciler, error) {
	if service == nil {
		return nil, fmt.Errorf("%w: service dependency is nil", ErrInvalidServiceConfig)
	}
	reconciler := &Reconciler{service: service}
	for _, option := range options {
		if option != nil {
			option(reconciler)
		}
	}
	return reconciler, nil
}

// IngestWebhook records the delivery as PENDING before anything else, then
// credits the resolved account. A replayed provider reference is recorded as
// DUPLICATE and reported as success without a second credit.
func (reconciler *Reconciler) IngestWebhook(ctx context.Context, delivery WebhookDelivery) (WebhookResult, error) {
	service := reconciler.service
	requestID, err := NewRequestID(service.uniqueID(requestIDPrefix))
	if err != nil {
		return WebhookResult{}, err
	}
	record := WebhookRecord{
		RequestID:      requestID,
		Payload:        delivery.Payload,
		Status:         WebhookStatusPending,
		CreatedUnixUTC: service.nowFn(),
	}
	if err := service.store.CreateWebhook(ctx, record); err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationIngestWebhook, Channel: ChannelFunding, Error: err})
		return WebhookResult{}, err
	}
	result := WebhookResult{RequestID: requestID, Status: WebhookStatusPending}

	if err := reconciler.verifySignature(delivery.Signature); err != nil {
		return reconciler.fail(ctx, result, FundingEvent{}, err)
	}
	event, err := ParseFundingEvent(delivery.Payload)
	if err != nil {
		return reconciler.fail(ctx, result, event, err)
	}
	account, err := service.store.GetAccountByPhone(ctx, event.CustomerPhone)
	if errors.Is(err, ErrAccountNotFound) {
		return reconciler.fail(ctx, result, event, fmt.Errorf("%w: no unit account for customer", ErrInvalidWebhook))
	}
	if err != nil {
		return reconciler.fail(ctx, result, event, err)
	}
	reference, err := NewReference(fundingReferencePrefix + event.ProviderReference)
	if err != nil {
		return reconciler.fail(ctx, result, event, err)
	}

	var updated Account
	var entry LogEntry
	creditErr := service.withAccountLocks(ctx, []Address{account.Address}, func(ctx context.Context) error {
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			if err := transactionStore.ResolveWebhook(ctx, requestID, WebhookStatusSuccessful, event.ProviderReference); err != nil {
				return err
			}
			var err error
			updated, entry, err = service.creditWithin(ctx, transactionStore, CreditRequest{
				Address:   account.Address,
				Amount:    event.Amount,
				Reference: reference,
				Channel:   ChannelFunding,
			}, service.nowFn())
			return err
		})
	})
	if errors.Is(creditErr, ErrDuplicateProviderRef) || errors.Is(creditErr, ErrDuplicateReference) {
		if err := service.store.ResolveWebhook(ctx, requestID, WebhookStatusDuplicate, ""); err != nil {
			return reconciler.fail(ctx, result, event, err)
		}
		service.logOperation(ctx, OperationLog{
			Operation: operationIngestWebhook,
			Address:   account.Address,
			Amount:    event.Amount,
			Reference: reference,
			Channel:   ChannelFunding,
			Status:    OperationStatusDuplicate,
		})
		result.Status = WebhookStatusDuplicate
		result.Account = account
		return result, nil
	}
	if creditErr != nil {
		return reconciler.fail(ctx, result, event, creditErr)
	}
	service.logOperation(ctx, OperationLog{
		Operation:    operationIngestWebhook,
		Address:      updated.Address,
		Counterparty: event.CustomerPhone,
		Amount:       event.Amount,
		Reference:    reference,
		Channel:      ChannelFunding,
	})
	service.notify(ctx, operationIngestWebhook, updated, fmt.Sprintf("Your unit account has been credited with %s units", event.Amount.Format()))
	result.Status = WebhookStatusSuccessful
	result.Account = updated
	result.Entry = entry
	return result, nil
}

func (reconciler *Reconciler) fail(ctx context.Context, result WebhookResult, event FundingEvent, cause error) (WebhookResult, error) {
	service := reconciler.service
	operationError := cause
	if err := service.store.ResolveWebhook(ctx, result.RequestID, WebhookStatusFailed, ""); err != nil {
		operationError = errors.Join(cause, err)
	}
	service.logOperation(ctx, OperationLog{
		Operation:    operationIngestWebhook,
		Counterparty: event.CustomerPhone,
		Amount:       event.Amount,
		Channel:      ChannelFunding,
		Error:        operationError,
	})
	result.Status = WebhookStatusFailed
	return result, operationError
}

func (reconciler *Reconciler) verifySignature(signature string) error {
	if reconciler.secret == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(signature)), []byte(reconciler.secret)) != 1 {
		return ErrWebhookSignature
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
