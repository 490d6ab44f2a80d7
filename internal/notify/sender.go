package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"go.uber.org/zap"
)

// DefaultSubject is the NATS subject SMS gateways subscribe to.
const DefaultSubject = "unitledger.notifications.sms"

var errNilPublisher = errors.New("notify: publisher is nil")

// Sender delivers one notification synchronously.
type Sender interface {
	Send(ctx context.Context, notification ledger.Notification) error
}

// Publisher is the message bus a NATSSender writes to. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// LogSender writes notifications to the structured log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender returns a LogSender. A nil logger discards everything.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (sender *LogSender) Send(_ context.Context, notification ledger.Notification) error {
	sender.logger.Info("notification",
		zap.String("destination", notification.Destination),
		zap.String("operation", notification.Operation),
		zap.String("address", notification.Address.String()),
		zap.String("message", notification.Message),
	)
	return nil
}

// Message is the wire form published to the SMS gateway.
type Message struct {
	Destination string    `json:"destination"`
	Message     string    `json:"message"`
	Operation   string    `json:"operation"`
	Address     string    `json:"address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NATSSender publishes notifications as JSON for an SMS gateway to deliver.
type NATSSender struct {
	publisher Publisher
	subject   string
	now       func() time.Time
}

// NewNATSSender returns a NATSSender publishing on subject, or DefaultSubject when empty.
func NewNATSSender(publisher Publisher, subject string) (*NATSSender, error) {
	if publisher == nil {
		return nil, errNilPublisher
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSender{publisher: publisher, subject: subject, now: time.Now}, nil
}

func (sender *NATSSender) Send(ctx context.Context, notification ledger.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(Message{
		Destination: notification.Destination,
		Message:     notification.Message,
		Operation:   notification.Operation,
		Address:     notification.Address.String(),
		CreatedAt:   sender.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}
	if err := sender.publisher.Publish(sender.subject, payload); err != nil {
		return fmt.Errorf("notify: publish %s: %w", sender.subject, err)
	}
	return nil
}
