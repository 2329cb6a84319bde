// Package repository persists game snapshots. Every store keeps an ordered
// history per game and verifies checksums when loading.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/lavaeater/civ-server-go/internal/config"
	"github.com/lavaeater/civ-server-go/internal/game"
)

var (
	ErrNotFound = errors.New("snapshot not found")
	ErrCorrupt  = errors.New("snapshot checksum mismatch")
)

// SnapshotInfo describes one stored snapshot without its body.
type SnapshotInfo struct {
	GameID   string    `db:"game_id" json:"game_id"`
	Seq      int64     `db:"seq" json:"seq"`
	Round    int       `db:"round" json:"round"`
	Activity string    `db:"activity" json:"activity"`
	Checksum string    `db:"checksum" json:"checksum"`
	SavedAt  time.Time `db:"saved_at" json:"saved_at"`
}

// Store keeps snapshot history. Seq numbers start at 1 per game and increase
// with every Save.
type Store interface {
	Save(ctx context.Context, s *game.Snapshot) (SnapshotInfo, error)
	Load(ctx context.Context, gameID string, seq int64) (*game.Snapshot, error)
	Latest(ctx context.Context, gameID string) (*game.Snapshot, error)
	List(ctx context.Context, gameID string) ([]SnapshotInfo, error)
	Close() error
}

// Open creates the store selected by the storage configuration.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteStore(cfg.DSN, logger)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN, logger)
	case "file":
		return NewFileStore(cfg.SnapshotDir, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func describe(s *game.Snapshot) (SnapshotInfo, error) {
	if s == nil {
		return SnapshotInfo{}, errors.New("nil snapshot")
	}
	if s.GameID == "" {
		return SnapshotInfo{}, errors.New("snapshot without game id")
	}
	sum, err := s.ComputeChecksum()
	if err != nil {
		return SnapshotInfo{}, err
	}
	savedAt := s.Timestamp
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	return SnapshotInfo{
		GameID:   s.GameID,
		Round:    s.Round,
		Activity: s.Activity,
		Checksum: sum.Hash,
		SavedAt:  savedAt,
	}, nil
}

// verify rejects a decoded snapshot whose content no longer matches the
// checksum it was stored with.
func verify(s *game.Snapshot, checksum string) (*game.Snapshot, error) {
	ok, err := s.VerifyChecksum(&game.SerializationChecksum{Hash: checksum})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.GameID, ErrCorrupt)
	}
	return s, nil
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// encodeBody is gob compressed with zstd, the column format of the SQL stores.
func encodeBody(s *game.Snapshot) ([]byte, error) {
	raw, err := s.SerializeToBytes()
	if err != nil {
		return nil, err
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func decodeBody(body []byte) (*game.Snapshot, error) {
	raw, err := decoder.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return game.DeserializeFromBytes(raw)
}
