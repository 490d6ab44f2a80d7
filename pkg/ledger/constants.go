package ledger

const (
	operationCreateAccount     = "create_account"
	operationDeleteAccount     = "delete_account"
	operationCredit            = "credit"
	operationDebit             = "debit"
	operationTransfer          = "transfer"
	operationRequestWithdrawal = "request_withdrawal"
	operationSettleWithdrawal  = "settle_withdrawal"
	operationIngestWebhook     = "ingest_webhook"

	systemCounterparty     = "system"
	signupNarration        = "Starter bonus"
	withdrawalNarration    = "Withdrawal request"
	referencePrefix        = "ref"
	requestIDPrefix        = "req"
	fundingReferencePrefix = "flw-"

	accountCodeMinimum  = 100000
	accountCodeSpan     = 900000
	accountCodeAttempts = 5
	defaultLogLimit     = 10
	maxLogLimit         = 200
	uniqueIDLength      = 11
)

// Statuses reported in OperationLog.Status.
const (
	OperationStatusOK        = "ok"
	OperationStatusError     = "error"
	OperationStatusDuplicate = "duplicate"
)

// Channels written by the ledger itself.
const (
	ChannelUnitTransfer = "Unit Transfer"
	ChannelWithdrawal   = "Withdrawal"
	ChannelFunding      = "Funding"
	ChannelSignup       = "Transfer"
)

// DefaultMinimumWithdrawal is 5000 units.
const DefaultMinimumWithdrawal AmountCents = 500000
