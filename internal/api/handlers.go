package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultAlertLimit   = 20
	defaultHistoryLimit = 500
)

// Master reset actions.
const (
	ResetCloseAllTrades  = "close_all_trades"
	ResetDiscardTrades   = "discard_trades"
	ResetRemoveCooldowns = "remove_cooldowns"
	ResetGlobalStats     = "reset_global_stats"
	ResetDatabase        = "reset_database"
)

func limitParam(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "invalid limit %q", raw)
	}

	return n, nil
}

func symbolParam(r *http.Request) string {
	return strings.ToUpper(mux.Vars(r)["symbol"])
}

func (s *Server) handleData(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.State.Snapshot())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultAlertLimit)
	if err != nil {
		s.fail(w, err)

		return
	}

	writeJSON(w, http.StatusOK, s.deps.State.AlertLog(limit))
}

type configView struct {
	Trading config.TradingConfig `json:"trading"`
	Balance float64              `json:"portfolio_balance"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, configView{
		Trading: s.deps.Settings.Trading(),
		Balance: s.deps.State.Portfolio().Balance,
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	schema, err := config.Schema()
	if err != nil {
		s.fail(w, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(schema))
}

type statsView struct {
	Global  types.GlobalStats        `json:"global"`
	Session *types.DailySessionStats `json:"session,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	view := statsView{Global: s.deps.State.Stats(), Session: nil}

	if s.deps.Session != nil {
		session := s.deps.Session.Snapshot()
		view.Session = &session
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDatabase(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.unavailable(w, "trade ledger")

		return
	}

	limit, err := limitParam(r, defaultHistoryLimit)
	if err != nil {
		s.fail(w, err)

		return
	}

	rows, err := s.deps.History.Recent(r.Context(), limit)
	if err != nil {
		s.fail(w, err)

		return
	}

	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCooldownDatabase(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cooldowns == nil {
		s.unavailable(w, "cooldown table")

		return
	}

	entries, err := s.deps.Cooldowns.Active(r.Context(), s.now())
	if err != nil {
		s.fail(w, err)

		return
	}

	writeJSON(w, http.StatusOK, entries)
}

type toggleRequest struct {
	Control string `json:"control"`
	Action  string `json:"action"`
}

func (s *Server) handleToggleControl(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)

		return
	}

	action, err := types.ParseControlAction(req.Action)
	if err != nil {
		s.fail(w, err)

		return
	}

	if err := s.deps.State.ToggleControl(types.ControlName(req.Control), action); err != nil {
		s.fail(w, err)

		return
	}

	s.ok(w, fmt.Sprintf("%s action '%s' processed.", req.Control, action), s.deps.State.Snapshot().Controls)
}

type manualTradeRequest struct {
	Symbol     string  `json:"symbol"`
	EntryPrice float64 `json:"entry_price"`
}

func (s *Server) handleManualTrade(w http.ResponseWriter, r *http.Request) {
	var req manualTradeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)

		return
	}

	trade, err := s.deps.Trader.ManualOpen(r.Context(), strings.ToUpper(req.Symbol), req.EntryPrice)
	if err != nil {
		s.fail(w, err)

		return
	}

	s.ok(w, "Manual trade opened.", trade)
}

func (s *Server) handleManualClose(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	closed, err := s.deps.Trader.ManualClose(symbol)
	if err != nil {
		s.fail(w, err)

		return
	}

	message := fmt.Sprintf("Manual close initiated for %s.", symbol)
	if closed.Trade.Source == types.TradeSourceLive {
		message = fmt.Sprintf("Live trade %s marked as closed. Please verify on Binance.", symbol)
	}

	s.ok(w, message, closed)
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	trade, err := s.deps.Trader.Discard(symbol)
	if err != nil {
		s.fail(w, err)

		return
	}

	s.ok(w, fmt.Sprintf("Trade for %s has been discarded.", symbol), trade)
}

type cooldownRequest struct {
	Symbol string  `json:"symbol"`
	Hours  float64 `json:"hours"`
}

func (s *Server) handleSetCooldown(w http.ResponseWriter, r *http.Request) {
	var req cooldownRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)

		return
	}

	entry, err := s.deps.Trader.SetCooldown(strings.ToUpper(req.Symbol), req.Hours)
	if err != nil {
		s.fail(w, err)

		return
	}

	s.ok(w, fmt.Sprintf("%s is on cooldown for %g hours.", entry.Symbol, req.Hours), entry)
}

func (s *Server) handleRemoveCooldown(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	if !s.deps.State.RemoveCooldown(symbol) {
		s.ok(w, fmt.Sprintf("%s was not on cooldown.", symbol), nil)

		return
	}

	s.ok(w, fmt.Sprintf("Cooldown for %s has been removed.", symbol), nil)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var update config.SettingsUpdate
	if err := decode(r, &update); err != nil {
		s.fail(w, err)

		return
	}

	if err := s.deps.Settings.Apply(update); err != nil {
		s.fail(w, err)

		return
	}

	s.ok(w, "Settings updated.", s.deps.Settings.Trading())
}

type balanceRequest struct {
	Balance *float64 `json:"balance"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)

		return
	}

	if req.Balance == nil || *req.Balance < 0 {
		s.fail(w, errors.New(errors.ErrCodeInvalidParameter, "balance must be a non-negative number"))

		return
	}

	s.deps.State.SetBalance(*req.Balance)
	s.ok(w, "Portfolio balance updated.", s.deps.State.Portfolio())
}

func (s *Server) handleRefreshBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.deps.Trader.RefreshBalance(r.Context())
	if err != nil {
		s.fail(w, err)

		return
	}

	s.ok(w, "Balance refreshed from Binance.", balance)
}

func (s *Server) handleRefreshCoinList(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Listings == nil {
		s.unavailable(w, "market feed")

		return
	}

	go s.deps.Listings.RefreshListings(s.background)

	s.ok(w, "Refresh initiated.", nil)
}

type masterResetRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleMasterReset(w http.ResponseWriter, r *http.Request) {
	var req masterResetRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)

		return
	}

	var message string

	switch req.Action {
	case ResetCloseAllTrades:
		message = fmt.Sprintf("Closed %d trades.", s.deps.Trader.CloseAll(r.Context()))
	case ResetDiscardTrades:
		message = fmt.Sprintf("Successfully discarded all %d open trades.", s.deps.Trader.DiscardAll())
	case ResetRemoveCooldowns:
		message = fmt.Sprintf("Successfully removed all %d cooldowns.", s.deps.State.RemoveAllCooldowns())
	case ResetGlobalStats:
		s.deps.State.ResetStats()
		message = "Global stats have been reset to zero."
	case ResetDatabase:
		for _, resetter := range s.deps.Resetters {
			if err := resetter.Reset(r.Context()); err != nil {
				s.fail(w, err)

				return
			}
		}

		s.logger.Warn("Persistent tables reset by operator")

		message = "Database tables have been cleared."
	default:
		s.fail(w, errors.Newf(errors.ErrCodeInvalidAction, "invalid action %q", req.Action))

		return
	}

	s.logger.Info("Master reset", zap.String("action", req.Action))
	s.ok(w, message, nil)
}
