// Package api serves the operator control surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"go.uber.org/zap"
)

// StateStore is the part of the state store the API reads and administers.
type StateStore interface {
	Snapshot() types.StateSnapshot
	AlertLog(n int) []types.AlertLogEntry
	Stats() types.GlobalStats
	Portfolio() types.Portfolio
	ToggleControl(name types.ControlName, action types.ControlAction) error
	RemoveCooldown(symbol string) bool
	RemoveAllCooldowns() int
	SetBalance(balance float64)
	ResetStats()
}

// Trader is the part of the trading engine behind the manual actions.
type Trader interface {
	ManualOpen(ctx context.Context, symbol string, price float64) (types.ActiveTrade, error)
	ManualClose(symbol string) (types.ClosedTrade, error)
	CloseAll(ctx context.Context) int
	Discard(symbol string) (types.ActiveTrade, error)
	DiscardAll() int
	SetCooldown(symbol string, hours float64) (types.CooldownEntry, error)
	RefreshBalance(ctx context.Context) (float64, error)
}

// SettingsEditor changes the runtime trading parameters.
type SettingsEditor interface {
	Trading() config.TradingConfig
	Apply(u config.SettingsUpdate) error
}

// TradeHistory lists ledger rows, newest first.
type TradeHistory interface {
	Recent(ctx context.Context, n int) ([]types.LedgerTrade, error)
}

// CooldownHistory lists the persisted cooldown table.
type CooldownHistory interface {
	Active(ctx context.Context, now time.Time) ([]types.CooldownEntry, error)
}

// SessionStats reports the session tracker.
type SessionStats interface {
	Snapshot() types.DailySessionStats
}

// ListingRefresher reloads listing times from the exchange.
type ListingRefresher interface {
	RefreshListings(ctx context.Context)
}

// Resetter wipes one persistent table.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Dependencies are the collaborators of the server. History, Cooldowns, Session, Listings and
// Resetters may be left empty; the endpoints backed by them answer 503.
type Dependencies struct {
	State     StateStore
	Trader    Trader
	Settings  SettingsEditor
	History   TradeHistory
	Cooldowns CooldownHistory
	Session   SessionStats
	Listings  ListingRefresher
	Resetters []Resetter
}

// Server is the control API.
type Server struct {
	deps   Dependencies
	router *mux.Router
	logger *logger.Logger
	now    func() time.Time
	// background bounds work started by a request that outlives it.
	background context.Context
}

// NewServer builds the router.
func NewServer(deps Dependencies, log *logger.Logger) *Server {
	s := &Server{
		deps:       deps,
		router:     mux.NewRouter(),
		logger:     log.Named("api"),
		now:        time.Now,
		background: context.Background(),
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.logRequests)

	r.HandleFunc("/data", s.handleData).Methods(http.MethodGet)
	r.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	r.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	r.HandleFunc("/config/schema", s.handleSchema).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/database", s.handleDatabase).Methods(http.MethodGet)
	r.HandleFunc("/cooldown-database", s.handleCooldownDatabase).Methods(http.MethodGet)

	r.HandleFunc("/toggle-control", s.handleToggleControl).Methods(http.MethodPost)
	r.HandleFunc("/manual-trade", s.handleManualTrade).Methods(http.MethodPost)
	r.HandleFunc("/manual-close/{symbol}", s.handleManualClose).Methods(http.MethodPost)
	r.HandleFunc("/discard-trade/{symbol}", s.handleDiscard).Methods(http.MethodPost)
	r.HandleFunc("/set-cooldown", s.handleSetCooldown).Methods(http.MethodPost)
	r.HandleFunc("/remove-cooldown/{symbol}", s.handleRemoveCooldown).Methods(http.MethodPost)
	r.HandleFunc("/settings", s.handleSettings).Methods(http.MethodPost)
	r.HandleFunc("/balance", s.handleBalance).Methods(http.MethodPost)
	r.HandleFunc("/refresh-balance", s.handleRefreshBalance).Methods(http.MethodPost)
	r.HandleFunc("/refresh-coin-list", s.handleRefreshCoinList).Methods(http.MethodPost)
	r.HandleFunc("/master-reset", s.handleMasterReset).Methods(http.MethodPost)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on listen until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, listen string) error {
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to listen on %s", listen)
	}

	s.background = ctx

	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	served := make(chan error, 1)

	go func() {
		served <- server.Serve(listener)
	}()

	s.logger.Info("Control API listening", zap.String("address", listener.Addr().String()))

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-served; err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", s.now().Sub(start)),
		)
	})
}

// response is the envelope of every action endpoint.
type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) ok(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, response{Status: "success", Message: message, Data: data})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}

	writeJSON(w, status, response{Status: "error", Message: err.Error(), Data: nil})
}

// statusFor maps an error code to the HTTP status returned to the operator.
func statusFor(err error) int {
	code := errors.GetCode(err)

	switch {
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case code == errors.ErrCodeTradeNotFound, code == errors.ErrCodeCoinNotFound, code == errors.ErrCodePositionNotFound:
		return http.StatusNotFound
	case code == errors.ErrCodeTradeAlreadyOpen, code == errors.ErrCodeMaxOpenTrades,
		code == errors.ErrCodeSymbolOnCooldown, code == errors.ErrCodeGlobalPauseActive:
		return http.StatusConflict
	case code == errors.ErrCodeLiveDisabled:
		return http.StatusServiceUnavailable
	case errors.IsTransient(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err)
	}

	return nil
}

func (s *Server) unavailable(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusServiceUnavailable, response{Status: "error", Message: what + " is not available", Data: nil})
}
