package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lavaeater/civ-server-go/internal/game"
)

type replayFrame struct {
	Index     int       `json:"index"`
	Round     int       `json:"round"`
	Activity  string    `json:"activity"`
	Checksum  string    `json:"checksum"`
	Timestamp time.Time `json:"timestamp"`
}

type replayFrameDetail struct {
	replayFrame
	State *game.Snapshot `json:"state"`
}

func summarizeFrame(i int, f game.Frame) replayFrame {
	return replayFrame{
		Index:     i,
		Round:     f.Snapshot.Round,
		Activity:  f.Snapshot.Activity,
		Checksum:  f.Checksum,
		Timestamp: f.Snapshot.Timestamp,
	}
}

// serveReplay lists the recorded frames of the game. ?frame=N returns one
// frame with its full state; ?round=R&activity=A looks a frame up by the
// activity it entered.
func (g *Gateway) serveReplay(w http.ResponseWriter, r *http.Request) {
	recorder := g.engine.ReplayRecorder()
	if recorder == nil {
		http.Error(w, "replay not recorded", http.StatusNotFound)
		return
	}
	replay := recorder.Replay()
	q := r.URL.Query()

	index := -1
	switch {
	case q.Has("frame"):
		n, err := strconv.Atoi(q.Get("frame"))
		if err != nil {
			http.Error(w, "frame must be an integer", http.StatusBadRequest)
			return
		}
		index = n
	case q.Has("round"):
		round, err := strconv.Atoi(q.Get("round"))
		if err != nil {
			http.Error(w, "round must be an integer", http.StatusBadRequest)
			return
		}
		n, ok := replay.Find(round, q.Get("activity"))
		if !ok {
			http.Error(w, "no such frame", http.StatusNotFound)
			return
		}
		index = n
	}

	var body any
	if index < 0 && !q.Has("frame") {
		frames := make([]replayFrame, 0, replay.Len())
		for i, f := range replay.Frames {
			frames = append(frames, summarizeFrame(i, f))
		}
		body = map[string]any{"game_id": replay.GameID, "frames": frames}
	} else {
		if _, ok := replay.At(index); !ok {
			http.Error(w, "no such frame", http.StatusNotFound)
			return
		}
		f := replay.Frames[index]
		body = replayFrameDetail{replayFrame: summarizeFrame(index, f), State: f.Snapshot}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Debug("replay response not written", zap.Error(err))
	}
}
