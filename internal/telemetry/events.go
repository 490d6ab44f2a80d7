package telemetry

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/unitledger/internal/notify"
	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"go.uber.org/zap"
)

// DefaultEventSubjectPrefix prefixes the operation name in event subjects.
const DefaultEventSubjectPrefix = "unitledger.events"

// Event is the wire form of a committed ledger mutation.
type Event struct {
	Operation    string    `json:"operation"`
	Status       string    `json:"status"`
	Address      string    `json:"address,omitempty"`
	Counterparty string    `json:"counterparty,omitempty"`
	AmountCents  int64     `json:"amount_cents"`
	Reference    string    `json:"reference,omitempty"`
	Channel      string    `json:"channel,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventPublisher publishes successful and duplicate operations to a message bus.
// Failed operations changed nothing and are not published.
type EventPublisher struct {
	publisher notify.Publisher
	prefix    string
	logger    *zap.Logger
	now       func() time.Time
}

var _ ledger.OperationLogger = (*EventPublisher)(nil)

// NewEventPublisher returns an EventPublisher writing to "<prefix>.<operation>".
func NewEventPublisher(publisher notify.Publisher, prefix string, logger *zap.Logger) *EventPublisher {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultEventSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{publisher: publisher, prefix: prefix, logger: logger, now: time.Now}
}

func (eventPublisher *EventPublisher) LogOperation(_ context.Context, entry ledger.OperationLog) {
	if entry.Error != nil || eventPublisher.publisher == nil {
		return
	}
	payload, err := json.Marshal(Event{
		Operation:    entry.Operation,
		Status:       entry.Status,
		Address:      entry.Address.String(),
		Counterparty: entry.Counterparty,
		AmountCents:  entry.Amount.Int64(),
		Reference:    entry.Reference.String(),
		Channel:      entry.Channel,
		OccurredAt:   eventPublisher.now().UTC(),
	})
	if err != nil {
		eventPublisher.logger.Warn("event marshal failed", zap.String("operation", entry.Operation), zap.Error(err))
		return
	}
	subject := eventPublisher.prefix + "." + entry.Operation
	if err := eventPublisher.publisher.Publish(subject, payload); err != nil {
		eventPublisher.logger.Warn("event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}
