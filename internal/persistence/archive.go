// Package persistence archives trade outcomes and weight-update reports to
// Postgres for offline analysis. The archive is optional; the optimizer's
// source of truth stays in its JSON state files.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/learner"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/trade"
)

const schema = `
CREATE TABLE IF NOT EXISTS trade_outcomes (
	trade_id    TEXT PRIMARY KEY,
	symbol      TEXT NOT NULL,
	pnl         DOUBLE PRECISION NOT NULL,
	status      TEXT NOT NULL,
	regime      TEXT NOT NULL,
	sector      TEXT NOT NULL,
	components  JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS weight_updates (
	update_id      TEXT PRIMARY KEY,
	total_adjusted INTEGER NOT NULL,
	skipped        BOOLEAN NOT NULL,
	report         JSONB NOT NULL,
	occurred_at    TIMESTAMPTZ NOT NULL,
	archived_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Archive is a Postgres-backed sink for outcomes and update reports.
type Archive struct {
	db *sqlx.DB
}

// Open connects to Postgres, verifies the connection, and ensures the schema.
func Open(ctx context.Context, dsn string) (*Archive, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	log.Info().Msg("trade archive connected")
	return &Archive{db: db}, nil
}

// Close releases the connection pool.
func (a *Archive) Close() error {
	return a.db.Close()
}

// ArchiveTrade upserts a closed trade outcome.
func (a *Archive) ArchiveTrade(ctx context.Context, record *trade.Record) error {
	components, err := json.Marshal(record.Context.Components)
	if err != nil {
		return fmt.Errorf("marshal components: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO trade_outcomes (trade_id, symbol, pnl, status, regime, sector, components, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trade_id) DO UPDATE SET
			pnl = EXCLUDED.pnl, status = EXCLUDED.status, components = EXCLUDED.components`,
		record.TradeID, record.Symbol, record.PnL, record.Status,
		record.Context.MarketRegime, record.Context.Sector, components, record.Timestamp)
	if err != nil {
		return fmt.Errorf("archive trade %s: %w", record.TradeID, err)
	}
	return nil
}

// ArchiveUpdateReport stores a weight-update report, skipped runs included.
func (a *Archive) ArchiveUpdateReport(ctx context.Context, report *learner.UpdateReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO weight_updates (update_id, total_adjusted, skipped, report, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (update_id) DO NOTHING`,
		report.ID, report.TotalAdjusted, report.Skipped, payload, report.Timestamp)
	if err != nil {
		return fmt.Errorf("archive update report %s: %w", report.ID, err)
	}
	return nil
}

// RecentOutcomes returns the most recently archived trades, newest first.
func (a *Archive) RecentOutcomes(ctx context.Context, limit int) ([]ArchivedTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []ArchivedTrade
	err := a.db.SelectContext(ctx, &rows, `
		SELECT trade_id, symbol, pnl, status, regime, sector, occurred_at
		FROM trade_outcomes ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent outcomes: %w", err)
	}
	return rows, nil
}

// ArchivedTrade is a row from the trade_outcomes table.
type ArchivedTrade struct {
	TradeID    string    `db:"trade_id" json:"trade_id"`
	Symbol     string    `db:"symbol" json:"symbol"`
	PnL        float64   `db:"pnl" json:"pnl"`
	Status     string    `db:"status" json:"status"`
	Regime     string    `db:"regime" json:"regime"`
	Sector     string    `db:"sector" json:"sector"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}
