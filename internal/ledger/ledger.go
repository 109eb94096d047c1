// Package ledger implements the optional job/tile lifecycle audit log
// (spec.md §2.11 / §4.4 expansion): every tile status transition is
// appended as a row when a ledger is configured, purely observational and
// never read back to drive pipeline decisions.
//
// Adapted from the tile-service template's database.go — the same
// connection setup (DSN assembly, PingContext, pool tuning) and the same
// chunked-transaction batch-insert shape BatchUpsertRoadGeometries uses,
// repurposed from road geometry rows to tile transition rows.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/mumuon/pixetl-go/internal/config"
	"github.com/mumuon/pixetl-go/internal/tile"
)

// Record is one recorded transition, matching spec.md §4.4's
// (run_id, tile_id, from_status, to_status, reason, timestamp) tuple.
type Record struct {
	RunID    string
	TileID   string
	From, To tile.Status
	Reason   string
	At       time.Time
}

// Ledger is the audit-log sink. A configured run always has a non-nil
// Ledger; when no database is configured it is a Noop that does nothing.
type Ledger interface {
	Record(ctx context.Context, rec Record) error
	BatchRecord(ctx context.Context, recs []Record) (int, error)
	Close() error
}

// Open returns a Postgres-backed Ledger when cfg.Enabled(), or a Noop
// otherwise — callers never need to branch on whether a ledger is
// configured (spec.md §6's "persisted state: none" contract with respect
// to the destination is preserved either way).
func Open(ctx context.Context, cfg config.DatabaseConfig) (Ledger, error) {
	if !cfg.Enabled() {
		return Noop{}, nil
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("job ledger connected")
	return &Postgres{conn: db}, nil
}

// Postgres is the real ledger, backed by a "tile_transition" table.
type Postgres struct {
	conn *sql.DB
}

func (p *Postgres) Close() error { return p.conn.Close() }

// Record appends a single transition row.
func (p *Postgres) Record(ctx context.Context, rec Record) error {
	_, err := p.BatchRecord(ctx, []Record{rec})
	return err
}

const maxBatchSize = 9000 // 65535 param limit / 6 params per row, with margin

// BatchRecord appends recs in chunked transactions, the same
// chunked-transaction shape BatchUpsertRoadGeometries uses: one
// transaction per batch, committed immediately (transition rows are small
// and infrequent relative to road geometries, so no further coalescing
// into multi-batch transactions is needed).
func (p *Postgres) BatchRecord(ctx context.Context, recs []Record) (int, error) {
	inserted := 0
	for i := 0; i < len(recs); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(recs) {
			end = len(recs)
		}
		batch := recs[i:end]

		n, err := p.insertBatch(ctx, batch)
		inserted += n
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

func (p *Postgres) insertBatch(ctx context.Context, batch []Record) (int, error) {
	tx, err := p.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}

	valuesStrings := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*6)
	for idx, rec := range batch {
		base := idx * 6
		valuesStrings = append(valuesStrings,
			fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, rec.RunID, rec.TileID, rec.From.String(), rec.To.String(), rec.Reason, rec.At)
	}

	query := fmt.Sprintf(
		`INSERT INTO tile_transition (run_id, tile_id, from_status, to_status, reason, at) VALUES %s`,
		strings.Join(valuesStrings, ", "))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("insert transition batch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transition batch: %w", err)
	}
	return len(batch), nil
}

// Noop is the ledger used when no database is configured. Every method
// succeeds without doing anything.
type Noop struct{}

func (Noop) Record(ctx context.Context, rec Record) error                { return nil }
func (Noop) BatchRecord(ctx context.Context, recs []Record) (int, error) { return len(recs), nil }
func (Noop) Close() error                                                { return nil }
