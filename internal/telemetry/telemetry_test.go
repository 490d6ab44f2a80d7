package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type capturePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (publisher *capturePublisher) Publish(subject string, data []byte) error {
	if publisher.err != nil {
		return publisher.err
	}
	publisher.subjects = append(publisher.subjects, subject)
	publisher.payloads = append(publisher.payloads, data)
	return nil
}

func mustAddress(test *testing.T, raw string) ledger.Address {
	test.Helper()
	address, err := ledger.NewAddress(raw)
	if err != nil {
		test.Fatalf("address: %v", err)
	}
	return address
}

func TestZapOperationLoggerLevels(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name          string
		entry         ledger.OperationLog
		expectedLevel zapcore.Level
		expectedMsg   string
	}{
		{
			name:          "success",
			entry:         ledger.OperationLog{Operation: "credit", Status: ledger.OperationStatusOK, Amount: 100, Channel: ledger.ChannelFunding},
			expectedLevel: zapcore.InfoLevel,
			expectedMsg:   "ledger operation",
		},
		{
			name:          "rejected",
			entry:         ledger.OperationLog{Operation: "debit", Status: ledger.OperationStatusError, Error: fmt.Errorf("%w: low", ledger.ErrInsufficientFunds)},
			expectedLevel: zapcore.WarnLevel,
			expectedMsg:   "ledger operation rejected",
		},
		{
			name:          "unexpected",
			entry:         ledger.OperationLog{Operation: "debit", Status: ledger.OperationStatusError, Error: errors.New("connection reset")},
			expectedLevel: zapcore.ErrorLevel,
			expectedMsg:   "ledger operation failed",
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			core, logs := observer.New(zapcore.DebugLevel)
			NewZapOperationLogger(zap.New(core)).LogOperation(context.Background(), testCase.entry)
			entries := logs.All()
			if len(entries) != 1 {
				test.Fatalf("expected one entry, got %d", len(entries))
			}
			if entries[0].Level != testCase.expectedLevel || entries[0].Message != testCase.expectedMsg {
				test.Fatalf("unexpected entry %s %q", entries[0].Level, entries[0].Message)
			}
			if entries[0].ContextMap()["operation"] != testCase.entry.Operation {
				test.Fatalf("missing operation field: %v", entries[0].ContextMap())
			}
		})
	}
}

func TestMetricsCountOperations(test *testing.T) {
	test.Parallel()
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.LogOperation(context.Background(), ledger.OperationLog{Operation: "credit", Status: ledger.OperationStatusOK, Amount: 2500, Channel: ledger.ChannelFunding})
	metrics.LogOperation(context.Background(), ledger.OperationLog{Operation: "credit", Status: ledger.OperationStatusOK, Amount: 500, Channel: ledger.ChannelFunding})
	metrics.LogOperation(context.Background(), ledger.OperationLog{Operation: "debit", Status: ledger.OperationStatusError, Amount: 900, Error: ledger.ErrInsufficientFunds})

	if got := testutil.ToFloat64(metrics.operationsTotal.WithLabelValues("credit", ledger.OperationStatusOK, "")); got != 2 {
		test.Fatalf("expected 2 credits, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.operationsTotal.WithLabelValues("debit", ledger.OperationStatusError, string(ledger.KindInsufficientFunds))); got != 1 {
		test.Fatalf("expected 1 failed debit, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.operationAmount.WithLabelValues("credit", ledger.ChannelFunding)); got != 3000 {
		test.Fatalf("expected 3000 cents credited, got %v", got)
	}
	if got := testutil.CollectAndCount(metrics.operationAmount); got != 1 {
		test.Fatalf("failed operations must not add amounts, got %d series", got)
	}

	metrics.ObserveHTTP("POST", "/api/transfers", 200, 30*time.Millisecond)
	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("POST", "/api/transfers", "200")); got != 1 {
		test.Fatalf("expected 1 request, got %v", got)
	}
	if got := testutil.CollectAndCount(metrics.httpRequestDuration); got != 1 {
		test.Fatalf("expected one latency series, got %d", got)
	}
}

func TestEventPublisherPublishesCommittedOperations(test *testing.T) {
	test.Parallel()
	publisher := &capturePublisher{}
	eventPublisher := NewEventPublisher(publisher, "ledger.events.", zap.NewNop())
	eventPublisher.now = func() time.Time { return time.Unix(1700000000, 0) }
	reference, _ := ledger.NewReference("flw-ABC")

	eventPublisher.LogOperation(context.Background(), ledger.OperationLog{
		Operation: "ingest_webhook",
		Status:    ledger.OperationStatusOK,
		Address:   mustAddress(test, "addr-1"),
		Amount:    1000,
		Reference: reference,
		Channel:   ledger.ChannelFunding,
	})
	eventPublisher.LogOperation(context.Background(), ledger.OperationLog{Operation: "debit", Status: ledger.OperationStatusError, Error: ledger.ErrInsufficientFunds})

	if len(publisher.subjects) != 1 || publisher.subjects[0] != "ledger.events.ingest_webhook" {
		test.Fatalf("unexpected subjects %v", publisher.subjects)
	}
	var event Event
	if err := json.Unmarshal(publisher.payloads[0], &event); err != nil {
		test.Fatalf("decode failed: %v", err)
	}
	if event.Reference != "flw-ABC" || event.AmountCents != 1000 || event.Address != "addr-1" || event.OccurredAt.Unix() != 1700000000 {
		test.Fatalf("unexpected event %+v", event)
	}
}

func TestEventPublisherLogsPublishFailures(test *testing.T) {
	test.Parallel()
	core, logs := observer.New(zapcore.WarnLevel)
	eventPublisher := NewEventPublisher(&capturePublisher{err: errors.New("nats down")}, "", zap.New(core))
	eventPublisher.LogOperation(context.Background(), ledger.OperationLog{Operation: "credit", Status: ledger.OperationStatusOK})
	entries := logs.FilterMessage("event publish failed").All()
	if len(entries) != 1 || entries[0].ContextMap()["subject"] != DefaultEventSubjectPrefix+".credit" {
		test.Fatalf("unexpected log entries %+v", entries)
	}
}
