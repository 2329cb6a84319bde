package repository

import (
	"bufio"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/lavaeater/civ-server-go/internal/game"
)

const fileSuffix = ".snap.zst"

// fileHeader is the JSON line in front of the gob body, readable without
// decoding the snapshot.
type fileHeader struct {
	Version int          `json:"version"`
	Info    SnapshotInfo `json:"info"`
}

// FileStore writes one zstd file per snapshot under <dir>/<game id>/.
type FileStore struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileStore creates the snapshot directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) gameDir(gameID string) string {
	return filepath.Join(s.dir, filepath.Base(gameID))
}

func (s *FileStore) path(gameID string, seq int64) string {
	return filepath.Join(s.gameDir(gameID), fmt.Sprintf("%08d%s", seq, fileSuffix))
}

// seqs lists the stored sequence numbers of a game in ascending order.
func (s *FileStore) seqs(gameID string) ([]int64, error) {
	entries, err := os.ReadDir(s.gameDir(gameID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		seq, err := strconv.ParseInt(strings.TrimSuffix(name, fileSuffix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, seq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Save writes the snapshot as the game's next file.
func (s *FileStore) Save(ctx context.Context, snap *game.Snapshot) (SnapshotInfo, error) {
	if err := ctx.Err(); err != nil {
		return SnapshotInfo{}, err
	}
	info, err := describe(snap)
	if err != nil {
		return SnapshotInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seqs, err := s.seqs(info.GameID)
	if err != nil {
		return SnapshotInfo{}, err
	}
	info.Seq = 1
	if len(seqs) > 0 {
		info.Seq = seqs[len(seqs)-1] + 1
	}
	if err := os.MkdirAll(s.gameDir(info.GameID), 0o755); err != nil {
		return SnapshotInfo{}, err
	}

	path := s.path(info.GameID, info.Seq)
	tmp := path + ".tmp"
	if err := writeSnapshotFile(tmp, fileHeader{Version: snap.Version, Info: info}, snap); err != nil {
		os.Remove(tmp)
		return SnapshotInfo{}, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return SnapshotInfo{}, err
	}

	s.logger.Debug("snapshot saved",
		zap.String("game_id", info.GameID),
		zap.Int64("seq", info.Seq),
		zap.String("path", path),
	)
	return info, nil
}

func writeSnapshotFile(path string, header fileHeader, snap *game.Snapshot) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, err := json.Marshal(header)
	if err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

// readSnapshotFile decodes the header and, when body is set, the snapshot.
func readSnapshotFile(path string, body bool) (fileHeader, *game.Snapshot, error) {
	var header fileHeader
	f, err := os.Open(path)
	if err != nil {
		return header, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return header, nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return header, nil, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &header); err != nil {
		return header, nil, fmt.Errorf("decode header: %w", err)
	}
	if !body {
		return header, nil, nil
	}
	var snap game.Snapshot
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return header, nil, fmt.Errorf("gob decode: %w", err)
	}
	return header, &snap, nil
}

// Load returns one snapshot of a game.
func (s *FileStore) Load(ctx context.Context, gameID string, seq int64) (*game.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	header, snap, err := readSnapshotFile(s.path(gameID, seq), true)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s #%d: %w", gameID, seq, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return verify(snap, header.Info.Checksum)
}

// Latest returns the most recent snapshot of a game.
func (s *FileStore) Latest(ctx context.Context, gameID string) (*game.Snapshot, error) {
	s.mu.Lock()
	seqs, err := s.seqs(gameID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(seqs) == 0 {
		return nil, fmt.Errorf("%s: %w", gameID, ErrNotFound)
	}
	return s.Load(ctx, gameID, seqs[len(seqs)-1])
}

// List reads only the headers of the game's files, oldest first.
func (s *FileStore) List(ctx context.Context, gameID string) ([]SnapshotInfo, error) {
	s.mu.Lock()
	seqs, err := s.seqs(gameID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]SnapshotInfo, 0, len(seqs))
	for _, seq := range seqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		header, _, err := readSnapshotFile(s.path(gameID, seq), false)
		if err != nil {
			return nil, fmt.Errorf("%s #%d: %w", gameID, seq, err)
		}
		out = append(out, header.Info)
	}
	return out, nil
}
