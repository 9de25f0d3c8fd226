package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"

	"cookledger/core"
	"cookledger/observability"
	"cookledger/observability/logging"
	"cookledger/services/indexer"
)

const (
	maxRequestBytes = 1 << 20
	headerRequestID = "X-Request-ID"
)

// EventSource answers event history queries.
type EventSource interface {
	Events(ctx context.Context, q indexer.Query) ([]indexer.EventRecord, error)
}

// Config wires the HTTP API.
type Config struct {
	Auth      AuthConfig
	RateLimit RateLimit
	// Events serves GET /events when set.
	Events EventSource
	// Idempotency wraps write routes when set.
	Idempotency func(http.Handler) http.Handler
	// MaxConnections caps concurrently accepted connections. Zero means no
	// cap.
	MaxConnections int
	Logger         *slog.Logger
}

// Server exposes the ledger over HTTP.
type Server struct {
	ledger  *core.Ledger
	auth    *Authenticator
	limiter *RateLimiter
	events  EventSource
	idem    func(http.Handler) http.Handler
	hub      *Hub
	logger   *slog.Logger
	handler  http.Handler
	maxConns int
	srv      *http.Server
}

// NewServer builds the router and subscribes the websocket hub to the
// ledger's committed events.
func NewServer(ledger *core.Ledger, cfg Config) (*Server, error) {
	if ledger == nil {
		return nil, errors.New("rpc: ledger required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "rpc"))
	s := &Server{
		ledger:  ledger,
		auth:    NewAuthenticator(cfg.Auth, logger),
		limiter: NewRateLimiter(cfg.RateLimit),
		events:  cfg.Events,
		idem:    cfg.Idempotency,
		hub:      NewHub(logger),
		logger:   logger,
		maxConns: cfg.MaxConnections,
	}
	ledger.Subscribe(s.hub)
	s.handler = otelhttp.NewHandler(s.routes(), "cookledger.rpc")
	return s, nil
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.limiter.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/tokens", s.handleTokens)
	r.Get("/tokens/{token}/balances/{addr}", s.handleBalance)
	r.Get("/tokens/{token}/allowances/{owner}/{spender}", s.handleAllowance)
	r.Get("/registry", s.handleRegistry)
	r.Get("/pools", s.handlePools)
	r.Get("/pools/{id}", s.handlePool)
	r.Get("/pools/{id}/accounts/{addr}", s.handleAccount)
	r.Get("/pools/{id}/users", s.handlePoolUsers)
	r.Get("/pools/{id}/referrals/{addr}", s.handleReferral)
	r.Get("/pairs/{a}/{b}", s.handlePair)
	r.Get("/events", s.handleEvents)
	r.Get("/ws/events", s.handleEventStream)

	r.Group(func(w chi.Router) {
		w.Use(s.auth.Middleware)
		if s.idem != nil {
			w.Use(s.idem)
		}
		w.Post("/tokens/{token}/approve", s.handleApprove)
		w.Post("/tokens/{token}/transfer", s.handleTransfer)
		w.Post("/pools/{id}/stake", s.handleStake)
		w.Post("/pools/{id}/unstake", s.handleUnstake)
		w.Post("/pools/{id}/exit", s.handleExit)
		w.Post("/pools/{id}/harvest", s.handleHarvest)
		w.Post("/pools/{id}/claim", s.handleClaim)
		w.Post("/pools/{id}/zap", s.handleZap)
		w.Post("/pools/{id}/zap-lp", s.handleZapLP)
		w.Post("/amm/swap", s.handleSwap)
		w.Post("/amm/liquidity", s.handleAddLiquidity)

		w.Route("/admin", func(a chi.Router) {
			a.Post("/pools", s.handleCreatePool)
			a.Post("/pools/{id}/rate", s.handleSetRewardRate)
			a.Post("/pools/{id}/lockup", s.handleSetLockup)
			a.Post("/pools/{id}/vesting", s.handleSetVesting)
			a.Post("/pools/{id}/pool-cap", s.handleSetPoolCap)
			a.Post("/pools/{id}/address-cap", s.handleSetAddressCap)
			a.Post("/pools/{id}/pause", s.handleSetPause)
			a.Post("/pools/{id}/blacklist", s.handleSetBlacklisted)
			a.Post("/pools/{id}/referral", s.handleSetReferral)
			a.Post("/global-rate", s.handleSetGlobalRate)
			a.Post("/weights", s.handleSetWeights)
			a.Post("/pause", s.handleSetModulePause)
			a.Post("/roles", s.handleSetRole)
			a.Post("/reserve/withdraw", s.handleWithdrawReserve)
			a.Post("/mint", s.handleMint)
		})
	})
	return r
}

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled. The listener is closed
// on return.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", slog.String("addr", ln.Addr().String()), slog.Int("max_connections", s.maxConns))
		errCh <- s.srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.hub.Close()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("rpc: shutdown: %w", err)
	}
	return nil
}

// requestID tags every request, records API metrics and logs the outcome.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(headerRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		route := r.URL.Path
		if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		duration := time.Since(start)
		observability.API().Observe(route, r.Method, rec.status, duration)
		level := slog.LevelDebug
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "http request",
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", rec.status),
			logging.MaskField("client", clientID(r)),
			slog.Duration("duration", duration))
	})
}

// RequestID returns the identifier assigned to the request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack is required by the websocket upgrade.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("rpc: response writer cannot hijack")
	}
	return h.Hijack()
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	height, ts := s.ledger.Height()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"height":    height,
		"timestamp": ts,
	})
}
