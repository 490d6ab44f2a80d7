package ledger

import "context"

// Notification is a message for an account holder or the operations contact.
type Notification struct {
	Destination string
	Message     string
	Operation   string
	Address     Address
}

// Notifier delivers notifications without blocking the caller.
// Delivery failures are the notifier's concern and never reach ledger callers.
type Notifier interface {
	Notify(ctx context.Context, notification Notification)
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, Notification) {}
