package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/spikebot/internal/domain"
)

// TradeJournal implements domain.TradeJournal using PostgreSQL.
type TradeJournal struct {
	pool *pgxpool.Pool
}

// NewTradeJournal creates a new TradeJournal backed by the given pool.
func NewTradeJournal(pool *pgxpool.Pool) *TradeJournal {
	return &TradeJournal{pool: pool}
}

const closedSelectCols = `id, asset_id, entry_price, entry_time,
	exit_price, exit_time, exit_reason, pnl_pct, pnl_cash`

func scanClosedRows(rows pgx.Rows) ([]domain.ClosedTrade, error) {
	var trades []domain.ClosedTrade
	for rows.Next() {
		var t domain.ClosedTrade
		var reason string
		if err := rows.Scan(
			&t.ID, &t.Asset, &t.EntryPrice, &t.EntryTime,
			&t.ExitPrice, &t.ExitTime, &reason, &t.PnLPct, &t.PnLCash,
		); err != nil {
			return nil, err
		}
		t.Reason = domain.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// RecordEntry inserts a row for a freshly opened trade. Recording the same
// trade twice is a no-op.
func (j *TradeJournal) RecordEntry(ctx context.Context, t domain.ActiveTrade) error {
	const query = `
		INSERT INTO trades (id, asset_id, entry_price, entry_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	if _, err := j.pool.Exec(ctx, query,
		t.ID, t.Asset, t.EntryPrice, t.EntryTime,
	); err != nil {
		return fmt.Errorf("postgres: record trade entry: %w", err)
	}
	return nil
}

// RecordExit fills in the exit columns for a closed trade. If the entry row
// is missing (the journal was unreachable at entry time) the whole trade is
// inserted so the exit is never lost.
func (j *TradeJournal) RecordExit(ctx context.Context, t domain.ClosedTrade) error {
	const update = `
		UPDATE trades
		SET exit_price = $2, exit_time = $3, exit_reason = $4,
			pnl_pct = $5, pnl_cash = $6
		WHERE id = $1`

	tag, err := j.pool.Exec(ctx, update,
		t.ID, t.ExitPrice, t.ExitTime, string(t.Reason), t.PnLPct, t.PnLCash,
	)
	if err != nil {
		return fmt.Errorf("postgres: record trade exit: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	const insert = `
		INSERT INTO trades (
			id, asset_id, entry_price, entry_time,
			exit_price, exit_time, exit_reason, pnl_pct, pnl_cash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	if _, err := j.pool.Exec(ctx, insert,
		t.ID, t.Asset, t.EntryPrice, t.EntryTime,
		t.ExitPrice, t.ExitTime, string(t.Reason), t.PnLPct, t.PnLCash,
	); err != nil {
		return fmt.Errorf("postgres: insert closed trade: %w", err)
	}
	return nil
}

// ListClosedBefore returns closed trades that exited strictly before the
// cutoff, oldest first. limit <= 0 means no limit.
func (j *TradeJournal) ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ClosedTrade, error) {
	query := `SELECT ` + closedSelectCols + `
		FROM trades
		WHERE exit_time IS NOT NULL AND exit_time < $1
		ORDER BY exit_time ASC`
	args := []any{cutoff}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanClosedRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closed trades: %w", err)
	}
	return trades, nil
}

// DeleteClosedBefore deletes closed trades that exited strictly before the
// cutoff and returns the number deleted. Open trades are never touched.
func (j *TradeJournal) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := j.pool.Exec(ctx,
		`DELETE FROM trades WHERE exit_time IS NOT NULL AND exit_time < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete closed trades: %w", err)
	}
	return tag.RowsAffected(), nil
}
