package ledgerv1

// Account is the wire form of a unit account.
type Account struct {
	Address              string `json:"address"`
	OwnerId              string `json:"owner_id"`
	Code                 string `json:"code"`
	HolderName           string `json:"holder_name"`
	Phone                string `json:"phone"`
	BalanceCents         int64  `json:"balance_cents"`
	PreviousBalanceCents int64  `json:"previous_balance_cents"`
	Status               string `json:"status"`
	CreatedUnixUtc       int64  `json:"created_unix_utc"`
	UpdatedUnixUtc       int64  `json:"updated_unix_utc"`
}

func (x *Account) GetBalanceCents() int64 {
	if x == nil {
		return 0
	}
	return x.BalanceCents
}

func (x *Account) GetCode() string {
	if x == nil {
		return ""
	}
	return x.Code
}

// LogEntry is the wire form of a transaction log entry.
type LogEntry struct {
	EntryId        string `json:"entry_id"`
	Address        string `json:"address"`
	Activity       string `json:"activity"`
	Status         string `json:"status"`
	Sender         string `json:"sender"`
	Recipient      string `json:"recipient"`
	AmountCents    int64  `json:"amount_cents"`
	Reference      string `json:"reference"`
	Channel        string `json:"channel"`
	Narration      string `json:"narration"`
	CreatedUnixUtc int64  `json:"created_unix_utc"`
}

type CreateAccountRequest struct {
	OwnerId              string `json:"owner_id"`
	HolderName           string `json:"holder_name"`
	Phone                string `json:"phone"`
	StartingBalanceCents int64  `json:"starting_balance_cents"`
}

func (x *CreateAccountRequest) GetOwnerId() string {
	if x == nil {
		return ""
	}
	return x.OwnerId
}

// GetAccountRequest selects an account by exactly one of its keys.
type GetAccountRequest struct {
	Address string `json:"address,omitempty"`
	OwnerId string `json:"owner_id,omitempty"`
	Code    string `json:"code,omitempty"`
}

type CreditRequest struct {
	Address     string `json:"address"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference,omitempty"`
	Channel     string `json:"channel"`
	Narration   string `json:"narration,omitempty"`
	Sender      string `json:"sender,omitempty"`
	Notify      bool   `json:"notify,omitempty"`
}

type DebitRequest struct {
	Address     string `json:"address"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference,omitempty"`
	Channel     string `json:"channel"`
	Narration   string `json:"narration,omitempty"`
	Recipient   string `json:"recipient,omitempty"`
	Notify      bool   `json:"notify,omitempty"`
}

type TransferRequest struct {
	SourceAddress string `json:"source_address"`
	RecipientCode string `json:"recipient_code"`
	AmountCents   int64  `json:"amount_cents"`
	Narration     string `json:"narration,omitempty"`
}

type TransferResponse struct {
	Source *Account  `json:"source"`
	Entry  *LogEntry `json:"entry"`
}

type ListLogsRequest struct {
	Address     string `json:"address"`
	Limit       int32  `json:"limit,omitempty"`
	OldestFirst bool   `json:"oldest_first,omitempty"`
}

type ListLogsResponse struct {
	Entries []*LogEntry `json:"entries"`
}

func (x *ListLogsResponse) GetEntries() []*LogEntry {
	if x == nil {
		return nil
	}
	return x.Entries
}

// VerifyFundsRequest asks whether an account can cover a charge.
type VerifyFundsRequest struct {
	Address     string `json:"address"`
	AmountCents int64  `json:"amount_cents"`
}

type VerifyFundsResponse struct {
	Sufficient   bool  `json:"sufficient"`
	BalanceCents int64 `json:"balance_cents"`
}
