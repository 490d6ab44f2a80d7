package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/MarkoPoloResearchLab/unitledger/api/ledger/v1"
	"github.com/MarkoPoloResearchLab/unitledger/internal/config"
	"github.com/MarkoPoloResearchLab/unitledger/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/unitledger/internal/httpapi"
	"github.com/MarkoPoloResearchLab/unitledger/internal/lock"
	"github.com/MarkoPoloResearchLab/unitledger/internal/notify"
	"github.com/MarkoPoloResearchLab/unitledger/internal/telemetry"
	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func runServer(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)

	operationLoggers := []ledger.OperationLogger{telemetry.NewZapOperationLogger(logger), metrics}
	senders := []notify.Sender{notify.NewLogSender(logger)}
	if cfg.NATSURL != "" {
		natsConn, err := nats.Connect(cfg.NATSURL, nats.Name("unitledgerd"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer func() { _ = natsConn.Drain() }()
		natsSender, err := notify.NewNATSSender(natsConn, cfg.NotificationSubject)
		if err != nil {
			return err
		}
		senders = append(senders, natsSender)
		operationLoggers = append(operationLoggers, telemetry.NewEventPublisher(natsConn, cfg.EventSubjectPrefix, logger))
		logger.Info("nats connected", zap.String("url", natsConn.ConnectedUrl()))
	}
	dispatcher := notify.NewDispatcher(logger, senders,
		notify.WithWorkers(cfg.NotificationWorkers),
		notify.WithQueueSize(cfg.NotificationQueueSize),
	)
	defer dispatcher.Close()

	serviceOptions := []ledger.ServiceOption{
		ledger.WithOperationLogger(operationLoggers...),
		ledger.WithNotifier(dispatcher),
		ledger.WithMinimumWithdrawal(cfg.MinimumWithdrawal()),
		ledger.WithOperationsContact(cfg.OperationsPhone),
	}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = redisClient.Close() }()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		locker, err := lock.NewRedisLocker(redisClient,
			lock.WithTTL(cfg.LockTTL),
			lock.WithWait(cfg.LockWait),
			lock.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		serviceOptions = append(serviceOptions, ledger.WithAccountLocker(locker))
		logger.Info("redis account locks enabled", zap.String("addr", cfg.RedisAddr))
	}

	clock := func() int64 { return time.Now().UTC().Unix() }
	ledgerService, err := ledger.NewService(store, clock, serviceOptions...)
	if err != nil {
		return fmt.Errorf("ledger service init: %w", err)
	}
	reconciler, err := ledger.NewReconciler(ledgerService, ledger.WithWebhookSecret(cfg.WebhookSecret))
	if err != nil {
		return fmt.Errorf("reconciler init: %w", err)
	}

	sessionValidator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return fmt.Errorf("session validator: %w", err)
	}
	httpServer, err := httpapi.NewServer(httpapi.Config{
		ListenAddr:      cfg.HTTPListenAddr,
		AllowedOrigins:  cfg.AllowedOrigins,
		RequestTimeout:  cfg.RequestTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger, ledgerService, reconciler, sessionValidator,
		httpapi.WithMetrics(metrics, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	)
	if err != nil {
		return fmt.Errorf("http server init: %w", err)
	}

	lis, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	grpcServer := grpc.NewServer()
	ledgerv1.RegisterLedgerServiceServer(grpcServer, grpcserver.NewLedgerServiceServer(ledgerService, logger))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return httpServer.Run(groupCtx)
	})
	group.Go(func() error {
		return serveGRPC(groupCtx, grpcServer, lis, logger, cfg.GRPCListenAddr)
	})
	return group.Wait()
}

func serveGRPC(ctx context.Context, grpcServer *grpc.Server, lis net.Listener, logger *zap.Logger, listenAddr string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC server starting", zap.String("listen_addr", listenAddr))
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
		grpcServer.GracefulStop()
		if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return serveErr
		}
		return nil
	case serveErr := <-errCh:
		if errors.Is(serveErr, grpc.ErrServerStopped) {
			return nil
		}
		return serveErr
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build()
}
