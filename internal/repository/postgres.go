package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lavaeater/civ-server-go/internal/game"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id BIGSERIAL PRIMARY KEY,
	game_id TEXT NOT NULL,
	seq BIGINT NOT NULL,
	round INTEGER NOT NULL,
	activity TEXT NOT NULL,
	checksum TEXT NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL,
	body BYTEA NOT NULL,
	UNIQUE (game_id, seq)
)`

// PostgresStore keeps snapshots in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects, pings and migrates.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	stats := pool.Stat()
	logger.Info("postgres snapshot store opened",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("max_conns", stats.MaxConns()),
	)
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Save appends the snapshot to the game's history.
func (s *PostgresStore) Save(ctx context.Context, snap *game.Snapshot) (SnapshotInfo, error) {
	info, err := describe(snap)
	if err != nil {
		return SnapshotInfo{}, err
	}
	body, err := encodeBody(snap)
	if err != nil {
		return SnapshotInfo{}, err
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// serialize concurrent savers of the same game
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", info.GameID); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `INSERT INTO snapshots
			(game_id, seq, round, activity, checksum, saved_at, body)
			SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5, $6 FROM snapshots WHERE game_id = $1
			RETURNING seq`,
			info.GameID, info.Round, info.Activity, info.Checksum, info.SavedAt, body,
		).Scan(&info.Seq)
	})
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("insert snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		zap.String("game_id", info.GameID),
		zap.Int64("seq", info.Seq),
		zap.String("activity", info.Activity),
		zap.Int("bytes", len(body)),
	)
	return info, nil
}

// Load returns one snapshot of a game.
func (s *PostgresStore) Load(ctx context.Context, gameID string, seq int64) (*game.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT checksum, body FROM snapshots WHERE game_id = $1 AND seq = $2", gameID, seq)
	return s.decode(row, gameID)
}

// Latest returns the most recent snapshot of a game.
func (s *PostgresStore) Latest(ctx context.Context, gameID string) (*game.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT checksum, body FROM snapshots WHERE game_id = $1 ORDER BY seq DESC LIMIT 1", gameID)
	return s.decode(row, gameID)
}

func (s *PostgresStore) decode(row pgx.Row, gameID string) (*game.Snapshot, error) {
	var (
		checksum string
		body     []byte
	)
	if err := row.Scan(&checksum, &body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", gameID, ErrNotFound)
		}
		return nil, err
	}
	snap, err := decodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", gameID, err)
	}
	return verify(snap, checksum)
}

// List returns the game's snapshot history, oldest first.
func (s *PostgresStore) List(ctx context.Context, gameID string) ([]SnapshotInfo, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT game_id, seq, round, activity, checksum, saved_at FROM snapshots WHERE game_id = $1 ORDER BY seq",
		gameID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[SnapshotInfo])
}
