// Package storage persists the bot: the trade ledger, the cooldown table and the state file.
package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"go.uber.org/zap"
)

const (
	tradesTable      = "trades"
	metaTable        = "meta"
	alertCounterKey  = "alert_counter"
	tradeTypeShort   = "SHORT"
	discardedReason  = "Discarded (Master)"
	tradeStatusOpen  = string(types.TradeStatusOpen)
	tradeStatusClose = string(types.TradeStatusClosed)
)

var ledgerColumns = []string{
	"alert_id", "opened_at", "symbol", "type", "status", "reason",
	"entry_price", "exit_price", "pnl_pct", "pnl_usdt", "entry_rsi", "exit_rsi",
	"trade_amount", "leverage", "leveraged_amount", "change_24h", "source",
	"exit_time", "duration_hours", "max_neg_pnl_pct", "max_neg_pnl_usdt", "max_neg_rsi",
}

// TradeLedger is the durable record of every trade, keyed by alert number.
type TradeLedger struct {
	db     *sql.DB
	sq     squirrel.StatementBuilderType
	logger *logger.Logger
	// counterMu serializes NextAlertNumber.
	counterMu sync.Mutex
}

// OpenTradeLedger opens or creates the DuckDB ledger at path and applies the schema.
func OpenTradeLedger(path string, log *logger.Logger) (*TradeLedger, error) {
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorageOpenFailed, "failed to create ledger directory", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageOpenFailed, "failed to open trade ledger", err)
	}

	l := &TradeLedger{
		db:        db,
		sq:        squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		logger:    log,
		counterMu: sync.Mutex{},
	}

	if err := l.migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return l, nil
}

func (l *TradeLedger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			alert_id BIGINT PRIMARY KEY,
			opened_at TIMESTAMP,
			symbol TEXT,
			type TEXT,
			status TEXT,
			reason TEXT,
			entry_price DOUBLE,
			exit_price DOUBLE,
			pnl_pct DOUBLE,
			pnl_usdt DOUBLE,
			entry_rsi DOUBLE,
			exit_rsi DOUBLE,
			trade_amount DOUBLE,
			leverage INTEGER,
			leveraged_amount DOUBLE,
			change_24h DOUBLE,
			source TEXT,
			exit_time TIMESTAMP,
			duration_hours DOUBLE,
			max_neg_pnl_pct DOUBLE,
			max_neg_pnl_usdt DOUBLE,
			max_neg_rsi DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value BIGINT
		)`,
	}

	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return errors.Wrap(errors.ErrCodeMigrationFailed, "failed to create ledger tables", err)
		}
	}

	return nil
}

// Close releases the database.
func (l *TradeLedger) Close() error {
	return l.db.Close()
}

// Reset deletes every trade and restarts the alert counter.
func (l *TradeLedger) Reset(ctx context.Context) error {
	l.counterMu.Lock()
	defer l.counterMu.Unlock()

	for _, table := range []string{tradesTable, metaTable} {
		if _, err := l.sq.Delete(table).RunWith(l.db).ExecContext(ctx); err != nil {
			return errors.Wrapf(errors.ErrCodeStorageWriteFailed, err, "failed to reset %s", table)
		}
	}

	return nil
}

// RecordOpened inserts an OPEN row. A row with the same alert number is left untouched.
func (l *TradeLedger) RecordOpened(ctx context.Context, trade types.ActiveTrade) error {
	values := openValues(trade)

	_, err := l.sq.Insert(tradesTable).
		Columns(ledgerColumns...).
		Values(values...).
		Suffix("ON CONFLICT (alert_id) DO NOTHING").
		RunWith(l.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageWriteFailed, err, "failed to record opened trade %d", trade.AlertNumber)
	}

	return nil
}

// RecordClosed writes the final state of a trade, inserting the row when the open was never recorded.
func (l *TradeLedger) RecordClosed(ctx context.Context, closed types.ClosedTrade) error {
	trade := closed.Trade
	hours := closed.Duration().Hours()

	values := []any{
		trade.AlertNumber, trade.EntryTime.UTC(), trade.Symbol, tradeTypeShort, tradeStatusClose, closed.Reason,
		trade.EntryPrice, closed.ClosePrice, trade.PnLPercent, trade.PnLUSDT, nullFloat(trade.EntryIndicator), nullFloat(closed.ExitIndicator),
		trade.Amount, trade.Leverage, trade.LeveragedAmount(), trade.Change24h, string(trade.Source),
		closed.ExitTime.UTC(), hours, trade.MaxAdversePnLPercent, trade.MaxAdversePnLUSDT, trade.LowestIndicator,
	}

	return l.upsert(ctx, values, trade.AlertNumber, "closed")
}

// RecordDiscarded marks a trade as dropped without realizing pnl.
func (l *TradeLedger) RecordDiscarded(ctx context.Context, trade types.ActiveTrade, at time.Time) error {
	values := openValues(trade)
	values[4] = string(types.TradeStatusDiscarded)
	values[5] = discardedReason
	values[17] = at.UTC()

	return l.upsert(ctx, values, trade.AlertNumber, "discarded")
}

func (l *TradeLedger) upsert(ctx context.Context, values []any, alert int64, what string) error {
	_, err := l.sq.Insert(tradesTable).
		Columns(ledgerColumns...).
		Values(values...).
		Suffix(`ON CONFLICT (alert_id) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			exit_price = excluded.exit_price,
			pnl_pct = excluded.pnl_pct,
			pnl_usdt = excluded.pnl_usdt,
			exit_rsi = excluded.exit_rsi,
			exit_time = excluded.exit_time,
			duration_hours = excluded.duration_hours,
			max_neg_pnl_pct = excluded.max_neg_pnl_pct,
			max_neg_pnl_usdt = excluded.max_neg_pnl_usdt,
			max_neg_rsi = excluded.max_neg_rsi`).
		RunWith(l.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageWriteFailed, err, "failed to record %s trade %d", what, alert)
	}

	return nil
}

func openValues(trade types.ActiveTrade) []any {
	return []any{
		trade.AlertNumber, trade.EntryTime.UTC(), trade.Symbol, tradeTypeShort, tradeStatusOpen, "",
		trade.EntryPrice, nil, 0.0, 0.0, nullFloat(trade.EntryIndicator), nil,
		trade.Amount, trade.Leverage, trade.LeveragedAmount(), trade.Change24h, string(trade.Source),
		nil, nil, trade.MaxAdversePnLPercent, trade.MaxAdversePnLUSDT, trade.LowestIndicator,
	}
}

// OpenTrades returns the OPEN rows keyed by symbol. When a symbol has several, the newest wins.
func (l *TradeLedger) OpenTrades(ctx context.Context) (map[string]types.LedgerTrade, error) {
	rows, err := l.query(ctx, l.sq.Select(ledgerColumns...).
		From(tradesTable).
		Where(squirrel.Eq{"status": tradeStatusOpen}).
		OrderBy("alert_id ASC"))
	if err != nil {
		return nil, err
	}

	out := make(map[string]types.LedgerTrade, len(rows))
	for _, row := range rows {
		out[row.Symbol] = row
	}

	return out, nil
}

// Recent returns the newest n rows, newest first.
func (l *TradeLedger) Recent(ctx context.Context, n int) ([]types.LedgerTrade, error) {
	return l.query(ctx, l.sq.Select(ledgerColumns...).
		From(tradesTable).
		OrderBy("alert_id DESC").
		Limit(uint64(max(n, 0))))
}

// CountLosses counts CLOSED trades with a negative result that were closed at or after since.
func (l *TradeLedger) CountLosses(ctx context.Context, since time.Time) (int, error) {
	var count int

	err := l.sq.Select("COUNT(*)").
		From(tradesTable).
		Where(squirrel.Eq{"status": tradeStatusClose}).
		Where(squirrel.Lt{"pnl_usdt": 0}).
		Where(squirrel.GtOrEq{"exit_time": since.UTC()}).
		RunWith(l.db).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count losing trades", err)
	}

	return count, nil
}

// NextAlertNumber returns one more than the highest number ever handed out or recorded,
// and persists it so numbers are never reused across restarts.
func (l *TradeLedger) NextAlertNumber(ctx context.Context) (int64, error) {
	l.counterMu.Lock()
	defer l.counterMu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to begin alert counter transaction", err)
	}

	var counter, highest sql.NullInt64

	err = l.sq.Select("value").From(metaTable).Where(squirrel.Eq{"key": alertCounterKey}).
		RunWith(tx).QueryRowContext(ctx).Scan(&counter)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		tx.Rollback()

		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read alert counter", err)
	}

	err = l.sq.Select("MAX(alert_id)").From(tradesTable).
		RunWith(tx).QueryRowContext(ctx).Scan(&highest)
	if err != nil {
		tx.Rollback()

		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read highest alert number", err)
	}

	next := max(counter.Int64, highest.Int64) + 1

	_, err = l.sq.Insert(metaTable).
		Columns("key", "value").
		Values(alertCounterKey, next).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value").
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		tx.Rollback()

		return 0, errors.Wrap(errors.ErrCodeStorageWriteFailed, "failed to persist alert counter", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStorageWriteFailed, "failed to commit alert counter", err)
	}

	return next, nil
}

func (l *TradeLedger) query(ctx context.Context, builder squirrel.SelectBuilder) ([]types.LedgerTrade, error) {
	rows, err := builder.RunWith(l.db).QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query trade ledger", err)
	}
	defer rows.Close()

	var out []types.LedgerTrade

	for rows.Next() {
		var (
			row                              types.LedgerTrade
			kind, status, reason, source     sql.NullString
			exitPrice, pnlPct, pnlUSDT       sql.NullFloat64
			entryRSI, exitRSI                sql.NullFloat64
			leveraged, duration              sql.NullFloat64
			maxNegPct, maxNegUSDT, maxNegRSI sql.NullFloat64
			exitTime                         sql.NullTime
		)

		err := rows.Scan(
			&row.AlertNumber, &row.OpenedAt, &row.Symbol, &kind, &status, &reason,
			&row.EntryPrice, &exitPrice, &pnlPct, &pnlUSDT, &entryRSI, &exitRSI,
			&row.Amount, &row.Leverage, &leveraged, &row.Change24h, &source,
			&exitTime, &duration, &maxNegPct, &maxNegUSDT, &maxNegRSI,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan ledger row", err)
		}

		row.Status = types.TradeStatus(status.String)
		row.Reason = reason.String
		row.Source = types.TradeSource(source.String)
		row.ExitPrice = exitPrice.Float64
		row.PnLPercent = pnlPct.Float64
		row.PnLUSDT = pnlUSDT.Float64
		row.EntryRSI = optionalFloat(entryRSI)
		row.ExitRSI = optionalFloat(exitRSI)
		row.ExitTime = optional.None[time.Time]()

		if exitTime.Valid {
			row.ExitTime = optional.Some(exitTime.Time)
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read ledger rows", err)
	}

	l.logger.Debug("Ledger query", zap.Int("rows", len(out)))

	return out, nil
}

func nullFloat(o optional.Option[float64]) any {
	if v, err := o.Take(); err == nil {
		return v
	}

	return nil
}

func optionalFloat(v sql.NullFloat64) optional.Option[float64] {
	if v.Valid {
		return optional.Some(v.Float64)
	}

	return optional.None[float64]()
}
