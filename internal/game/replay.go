package game

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// ErrReplayCorrupt is returned when a replay frame no longer matches the
// checksum it was recorded with.
var ErrReplayCorrupt = errors.New("replay frame checksum mismatch")

// Frame is the state of the game right after it entered an activity.
type Frame struct {
	Snapshot *Snapshot
	Checksum string
}

// Replay is the timeline of one game, one frame per activity entered.
type Replay struct {
	GameID string
	Frames []Frame
}

// Len returns the number of frames.
func (r *Replay) Len() int {
	return len(r.Frames)
}

// At returns the snapshot of frame i.
func (r *Replay) At(i int) (*Snapshot, bool) {
	if i < 0 || i >= len(r.Frames) {
		return nil, false
	}
	return r.Frames[i].Snapshot, true
}

// Last returns the most recent snapshot.
func (r *Replay) Last() (*Snapshot, bool) {
	return r.At(len(r.Frames) - 1)
}

// Find returns the index of the first frame entering activity in round.
func (r *Replay) Find(round int, activity string) (int, bool) {
	for i, f := range r.Frames {
		if f.Snapshot.Round == round && f.Snapshot.Activity == activity {
			return i, true
		}
	}
	return 0, false
}

func (r *Replay) append(s *Snapshot) (bool, error) {
	sum, err := s.ComputeChecksum()
	if err != nil {
		return false, err
	}
	if n := len(r.Frames); n > 0 && r.Frames[n-1].Checksum == sum.Hash {
		return false, nil
	}
	r.Frames = append(r.Frames, Frame{Snapshot: s, Checksum: sum.Hash})
	return true, nil
}

type replayHeader struct {
	GameID  string
	Version int
	Frames  int
	Written time.Time
}

// ReplayPath is where the replay of a game lives under dir.
func ReplayPath(dir, gameID string) string {
	return filepath.Join(dir, gameID+".replay")
}

func (r *Replay) encode(w io.Writer) error {
	zw := gzip.NewWriter(w)
	enc := gob.NewEncoder(zw)
	header := replayHeader{
		GameID:  r.GameID,
		Version: SnapshotVersion,
		Frames:  len(r.Frames),
		Written: time.Now().UTC(),
	}
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for i := range r.Frames {
		if err := enc.Encode(&r.Frames[i]); err != nil {
			return fmt.Errorf("encode frame %d: %w", i, err)
		}
	}
	return zw.Close()
}

// decodeReplay reads a replay and checks every frame against its checksum.
func decodeReplay(rd io.Reader) (*Replay, error) {
	zr, err := gzip.NewReader(rd)
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer zr.Close()
	dec := gob.NewDecoder(zr)

	var header replayHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if header.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", header.Version)
	}
	r := &Replay{GameID: header.GameID, Frames: make([]Frame, 0, header.Frames)}
	for i := 0; i < header.Frames; i++ {
		var f Frame
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", i, err)
		}
		ok, err := f.Snapshot.VerifyChecksum(&SerializationChecksum{Hash: f.Checksum})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("frame %d (round %d %s): %w", i, f.Snapshot.Round, f.Snapshot.Activity, ErrReplayCorrupt)
		}
		r.Frames = append(r.Frames, f)
	}
	return r, nil
}

// LoadReplay reads the replay of a game from dir. A missing file yields an
// error matching fs.ErrNotExist.
func LoadReplay(dir, gameID string) (*Replay, error) {
	f, err := os.Open(ReplayPath(dir, gameID))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := decodeReplay(f)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", gameID, err)
	}
	if r.GameID != gameID {
		return nil, fmt.Errorf("replay file of %s holds game %s", gameID, r.GameID)
	}
	return r, nil
}

// ReplayRecorder collects the frames of one game and writes them to disk.
type ReplayRecorder struct {
	logger *zap.Logger
	dir    string

	mu     sync.Mutex
	replay *Replay
}

// NewReplayRecorder records gameID into dir. A replay already saved for the
// game is loaded first, so a resumed game extends its timeline.
func NewReplayRecorder(logger *zap.Logger, dir, gameID string) (*ReplayRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	replay, err := LoadReplay(dir, gameID)
	switch {
	case err == nil:
		logger.Info("continuing replay", zap.String("game_id", gameID), zap.Int("frames", replay.Len()))
	case errors.Is(err, os.ErrNotExist):
		replay = &Replay{GameID: gameID}
	default:
		return nil, err
	}
	return &ReplayRecorder{
		logger: logger.With(zap.String("game_id", gameID)),
		dir:    dir,
		replay: replay,
	}, nil
}

// GameID returns the recorded game.
func (rr *ReplayRecorder) GameID() string {
	return rr.replay.GameID
}

// Record appends a frame. A frame identical to the last one is dropped; a
// restored engine records the state it resumed from.
func (rr *ReplayRecorder) Record(s *Snapshot) {
	if s == nil || s.GameID != rr.replay.GameID {
		return
	}
	rr.mu.Lock()
	defer rr.mu.Unlock()
	added, err := rr.replay.append(s)
	if err != nil {
		rr.logger.Error("replay frame dropped", zap.Error(err))
		return
	}
	if added {
		rr.logger.Debug("replay frame recorded",
			zap.Int("round", s.Round),
			zap.String("activity", s.Activity),
			zap.Int("frames", len(rr.replay.Frames)),
		)
	}
}

// Replay returns the frames recorded so far. Snapshots are shared and must
// not be modified.
func (rr *ReplayRecorder) Replay() *Replay {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return &Replay{
		GameID: rr.replay.GameID,
		Frames: append([]Frame(nil), rr.replay.Frames...),
	}
}

// Save writes the replay to <dir>/<game id>.replay, replacing the previous
// file only once the new one is complete.
func (rr *ReplayRecorder) Save() (err error) {
	replay := rr.Replay()
	if err := os.MkdirAll(rr.dir, 0o755); err != nil {
		return fmt.Errorf("create replay dir: %w", err)
	}
	tmp, err := os.CreateTemp(rr.dir, replay.GameID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create replay file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if err := replay.encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close replay file: %w", err)
	}
	if err := os.Rename(tmp.Name(), ReplayPath(rr.dir, replay.GameID)); err != nil {
		return fmt.Errorf("install replay file: %w", err)
	}
	rr.logger.Info("replay saved", zap.Int("frames", replay.Len()), zap.String("directory", rr.dir))
	return nil
}
