package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/unitledger/internal/telemetry"
	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	claimsContextKey    = "auth_claims"
	principalContextKey = "unitledger_principal"

	webhookSignatureHeader = "verif-hash"
	maxWebhookBodyBytes    = 1 << 20

	defaultRequestTimeout  = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Config describes the HTTP listener.
type Config struct {
	ListenAddr      string
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics records request metrics and serves handler at /metrics.
func WithMetrics(metrics *telemetry.Metrics, handler http.Handler) Option {
	return func(server *Server) {
		server.metrics = metrics
		server.metricsHandler = handler
	}
}

// Server is the HTTP surface of the ledger.
type Server struct {
	cfg            Config
	logger         *zap.Logger
	service        *ledger.Service
	reconciler     *ledger.Reconciler
	validator      *sessionvalidator.Validator
	metrics        *telemetry.Metrics
	metricsHandler http.Handler
	router         *gin.Engine
}

// NewServer wires the handlers over service and reconciler. Authenticated
// routes trust the session validated by validator.
func NewServer(cfg Config, logger *zap.Logger, service *ledger.Service, reconciler *ledger.Reconciler, validator *sessionvalidator.Validator, options ...Option) (*Server, error) {
	if service == nil || reconciler == nil {
		return nil, fmt.Errorf("%w: ledger dependencies are required", ledger.ErrInvalidServiceConfig)
	}
	if validator == nil {
		return nil, fmt.Errorf("%w: session validator is required", ledger.ErrInvalidServiceConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	server := &Server{
		cfg:        cfg,
		logger:     logger,
		service:    service,
		reconciler: reconciler,
		validator:  validator,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	server.router = server.setupRouter()
	return server, nil
}

// Handler exposes the router.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              server.cfg.ListenAddr,
		Handler:           server.router,
		ReadHeaderTimeout: server.cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("http api listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.cfg.ShutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (server *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if server.metrics != nil {
		router.Use(server.observeRequests)
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", webhookSignatureHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if server.metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(server.metricsHandler))
	}

	v1 := router.Group("/v1")
	v1.POST("/webhook", server.handleWebhook)
	v1.POST("/unit/webhook", server.handleWebhook)

	unit := v1.Group("/unit")
	unit.Use(server.validator.GinMiddleware(claimsContextKey), server.resolvePrincipal)

	unit.GET("", server.handleAccount)
	unit.GET("/", server.handleAccount)
	unit.GET("/logs", server.handleLogs)
	unit.POST("/transfer", server.handleTransfer)
	unit.POST("/withdraw", server.handleWithdraw)
	unit.GET("/withdrawal/requests", server.handleListWithdrawals)
	unit.PUT("/withdrawal/status", server.handleSettleWithdrawal)
	unit.POST("/accounts", server.handleProvisionAccount)
	unit.DELETE("/accounts/:address", server.handleDeleteAccount)
	unit.POST("/credit", server.handleCredit)
	unit.POST("/debit", server.handleDebit)

	return router
}

func (server *Server) observeRequests(ctx *gin.Context) {
	started := time.Now()
	ctx.Next()
	route := ctx.FullPath()
	if route == "" {
		route = "unmatched"
	}
	server.metrics.ObserveHTTP(ctx.Request.Method, route, ctx.Writer.Status(), time.Since(started))
}

// resolvePrincipal turns session claims into a ledger principal. The first
// recognized role claim wins; sessions without one act as RoleUser.
func (server *Server) resolvePrincipal(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		server.abortWithError(ctx, errUnauthenticated)
		return
	}
	ownerID, err := ledger.NewOwnerID(claims.GetUserID())
	if err != nil {
		server.abortWithError(ctx, fmt.Errorf("%w: %w", errUnauthenticated, err))
		return
	}
	principal := ledger.Principal{OwnerID: ownerID, Role: ledger.RoleUser}
	for _, rawRole := range claims.GetUserRoles() {
		if role, roleErr := ledger.ParseRole(rawRole); roleErr == nil {
			principal.Role = role
			break
		}
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
	defer cancel()
	account, err := server.service.GetAccountByOwner(requestCtx, ownerID)
	switch {
	case err == nil:
		principal.Address = account.Address
	case errors.Is(err, ledger.ErrAccountNotFound):
	default:
		server.abortWithError(ctx, err)
		return
	}
	ctx.Set(principalContextKey, principal)
	ctx.Next()
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

func getPrincipal(ctx *gin.Context) ledger.Principal {
	value, _ := ctx.Get(principalContextKey)
	principal, _ := value.(ledger.Principal)
	return principal
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", errMalformedRequest)
	}
	return limit, nil
}
