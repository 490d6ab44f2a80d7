package ledger

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation    string
	Address      Address
	Counterparty string
	Amount       AmountCents
	Reference    Reference
	Channel      string
	Status       string
	Error        error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
// Passing several loggers fans each entry out to all of them.
func WithOperationLogger(loggers ...OperationLogger) ServiceOption {
	return func(service *Service) {
		for _, logger := range loggers {
			if logger != nil {
				service.loggers = append(service.loggers, logger)
			}
		}
	}
}

// WithNotifier wires the holder notification sink.
func WithNotifier(notifier Notifier) ServiceOption {
	return func(service *Service) {
		if notifier != nil {
			service.notifier = notifier
		}
	}
}

// WithAccountLocker replaces the in-process account lock.
func WithAccountLocker(locker AccountLocker) ServiceOption {
	return func(service *Service) {
		if locker != nil {
			service.locker = locker
		}
	}
}

// WithMinimumWithdrawal overrides DefaultMinimumWithdrawal.
func WithMinimumWithdrawal(minimum AmountCents) ServiceOption {
	return func(service *Service) {
		service.minimumWithdrawal = minimum
	}
}

// WithOperationsContact sets the phone notified about new withdrawal requests.
func WithOperationsContact(phone string) ServiceOption {
	return func(service *Service) {
		service.operationsPhone = phone
	}
}

// WithIDGenerator replaces the random identifier source used for addresses and references.
func WithIDGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		if generate != nil {
			service.newID = generate
		}
	}
}

// WithCodeGenerator replaces the random six-digit account code source.
func WithCodeGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		if generate != nil {
			service.newCode = generate
		}
	}
}
