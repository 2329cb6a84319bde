package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/lavaeater/civ-server-go/internal/game"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	round INTEGER NOT NULL,
	activity TEXT NOT NULL,
	checksum TEXT NOT NULL,
	saved_at INTEGER NOT NULL,
	body BLOB NOT NULL,
	UNIQUE (game_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_game ON snapshots(game_id, seq);
`

// SQLiteStore keeps snapshots in a single SQLite file.
type SQLiteStore struct {
	conn   *sqlx.DB
	logger *zap.Logger
}

// sqliteRow mirrors the snapshots table; saved_at is unix nanoseconds.
type sqliteRow struct {
	GameID   string `db:"game_id"`
	Seq      int64  `db:"seq"`
	Round    int    `db:"round"`
	Activity string `db:"activity"`
	Checksum string `db:"checksum"`
	SavedAt  int64  `db:"saved_at"`
	Body     []byte `db:"body"`
}

func (r sqliteRow) info() SnapshotInfo {
	return SnapshotInfo{
		GameID:   r.GameID,
		Seq:      r.Seq,
		Round:    r.Round,
		Activity: r.Activity,
		Checksum: r.Checksum,
		SavedAt:  time.Unix(0, r.SavedAt).UTC(),
	}
}

// NewSQLiteStore opens or creates the database at path in WAL mode.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer at a time
	conn.SetMaxOpenConns(1)

	store := &SQLiteStore{conn: conn, logger: logger}
	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("sqlite snapshot store opened", zap.String("path", path))
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.conn.Exec(sqliteSchema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Save appends the snapshot to the game's history.
func (s *SQLiteStore) Save(ctx context.Context, snap *game.Snapshot) (SnapshotInfo, error) {
	info, err := describe(snap)
	if err != nil {
		return SnapshotInfo{}, err
	}
	body, err := encodeBody(snap)
	if err != nil {
		return SnapshotInfo{}, err
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return SnapshotInfo{}, err
	}
	defer tx.Rollback()

	if err := tx.GetContext(ctx, &info.Seq,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots WHERE game_id = ?", info.GameID); err != nil {
		return SnapshotInfo{}, fmt.Errorf("next seq: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO snapshots
		(game_id, seq, round, activity, checksum, saved_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return SnapshotInfo{}, err
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, info.GameID, info.Seq, info.Round, info.Activity,
		info.Checksum, info.SavedAt.UnixNano(), body); err != nil {
		return SnapshotInfo{}, fmt.Errorf("insert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return SnapshotInfo{}, err
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
func (s *SQLiteStore) Load(ctx context.Context, gameID string, seq int64) (*game.Snapshot, error) {
	var row sqliteRow
	err := s.conn.GetContext(ctx, &row,
		"SELECT game_id, seq, round, activity, checksum, saved_at, body FROM snapshots WHERE game_id = ? AND seq = ?",
		gameID, seq)
	return s.decode(row, err, gameID)
}

// Latest returns the most recent snapshot of a game.
func (s *SQLiteStore) Latest(ctx context.Context, gameID string) (*game.Snapshot, error) {
	var row sqliteRow
	err := s.conn.GetContext(ctx, &row,
		"SELECT game_id, seq, round, activity, checksum, saved_at, body FROM snapshots WHERE game_id = ? ORDER BY seq DESC LIMIT 1",
		gameID)
	return s.decode(row, err, gameID)
}

func (s *SQLiteStore) decode(row sqliteRow, err error, gameID string) (*game.Snapshot, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	snap, err := decodeBody(row.Body)
	if err != nil {
		return nil, fmt.Errorf("%s #%d: %w", gameID, row.Seq, err)
	}
	return verify(snap, row.Checksum)
}

// List returns the game's snapshot history, oldest first.
func (s *SQLiteStore) List(ctx context.Context, gameID string) ([]SnapshotInfo, error) {
	var rows []sqliteRow
	if err := s.conn.SelectContext(ctx, &rows,
		"SELECT game_id, seq, round, activity, checksum, saved_at FROM snapshots WHERE game_id = ? ORDER BY seq",
		gameID); err != nil {
		return nil, err
	}
	out := make([]SnapshotInfo, len(rows))
	for i, r := range rows {
		out[i] = r.info()
	}
	return out, nil
}
