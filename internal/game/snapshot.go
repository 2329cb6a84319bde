package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
	"github.com/lavaeater/civ-server-go/internal/game/conflict"
	"github.com/lavaeater/civ-server-go/internal/game/rules"
)

// SnapshotVersion is bumped whenever the Snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is everything needed to resume a game: round, activity, the board
// ledgers, the trade-card piles and the gate. Move catalogs, open trade
// offers and a calamity halfway through its selections are not kept.
type Snapshot struct {
	Version     int
	GameID      string
	Round       int
	Activity    string
	Board       board.State
	Piles       map[int][]cards.TradeCard
	CensusOrder []board.PlayerID
	StillToAct  []board.PlayerID
	Manual      []board.PlayerID
	Support     []conflict.TooManyCities
	OfferSeq    int
	Timestamp   time.Time
}

// Snapshot captures the current game state.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Engine) snapshot() *Snapshot {
	s := &Snapshot{
		Version:     SnapshotVersion,
		GameID:      e.gameID,
		Round:       e.phases.Round(),
		Activity:    e.phases.Current().String(),
		Board:       e.board.State(),
		Piles:       e.piles.Contents(),
		CensusOrder: append([]board.PlayerID(nil), e.info.CensusOrder...),
		StillToAct:  e.info.StillToAct(),
		OfferSeq:    e.offerSeq,
		Timestamp:   time.Now().UTC(),
	}
	for _, p := range e.board.Players() {
		if e.manual[p.ID] {
			s.Manual = append(s.Manual, p.ID)
		}
		if marker := e.support[p.ID]; marker != nil {
			s.Support = append(s.Support, *marker)
		}
	}
	return s
}

// RestoreEngine rebuilds an engine from a snapshot over the same map. The
// restored engine is already started. Trade resumes with an empty market and
// calamity resolution restarts from the calamities still held.
func RestoreEngine(logger *zap.Logger, m *board.Map, cfg Config, s *Snapshot) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d", s.Version)
	}
	activity, err := rules.ParseActivity(s.Activity)
	if err != nil {
		return nil, err
	}
	b, err := board.Restore(m, s.Board)
	if err != nil {
		return nil, err
	}

	cfg.GameID = s.GameID
	cfg.Setup = s.Board.Setup
	e := NewEngine(logger, m, cfg)
	e.board = b
	e.piles = cards.NewPilesFrom(s.Piles)
	e.offerSeq = s.OfferSeq
	if err := e.phases.Restore(activity, s.Round); err != nil {
		return nil, err
	}
	e.info.Round = s.Round
	e.info.SetCensusOrder(s.CensusOrder)
	e.info.SetActive(s.StillToAct)
	for _, id := range s.Manual {
		e.manual[id] = true
	}
	for _, marker := range s.Support {
		marker := marker
		e.support[marker.Player] = &marker
	}
	if activity == rules.ActivityResolveCalamities {
		e.queueCalamities()
		if err := e.runCalamities(); err != nil {
			return nil, fmt.Errorf("resume calamities: %w", err)
		}
	}
	e.started = true
	e.refreshCatalogs()

	e.logger.Info("game restored",
		zap.Int("round", s.Round),
		zap.String("activity", s.Activity),
	)
	return e, nil
}

// SerializationChecksum is a deterministic digest of a snapshot.
type SerializationChecksum struct {
	Hash      string // SHA-256 of the canonical representation
	Timestamp string
	Version   int
}

// ComputeChecksum hashes the canonical form of the snapshot. The timestamp is
// not part of the hash.
func (s *Snapshot) ComputeChecksum() (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.canonical())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SerializationChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: s.Timestamp.Format("2006-01-02T15:04:05.000Z"),
		Version:   s.Version,
	}, nil
}

// canonical renders the snapshot independent of map iteration order.
func (s *Snapshot) canonical() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%d|%s|%d|%d\n", s.GameID, s.Round, s.Activity, s.OfferSeq, s.Board.NextToken)
	fmt.Fprintf(&buf, "SETUP:%d|%d\n", s.Board.Setup.PopulationTokens, s.Board.Setup.CityTokens)

	for _, p := range s.Board.Players {
		fmt.Fprintf(&buf, "PLAYER:%s|%s|%t|%d|%d\n", p.ID, p.Faction, p.Human, p.Order, p.Census)
		fmt.Fprintf(&buf, "  STOCK:%s\n", joinTokens(p.Stock))
		fmt.Fprintf(&buf, "  CITY_STOCK:%s\n", joinTokens(p.CityStock))
		fmt.Fprintf(&buf, "  TREASURY:%s\n", joinTokens(p.Treasury))

		tradeCards := make([]string, 0, len(p.TradeCards))
		for card, n := range p.TradeCards {
			tradeCards = append(tradeCards, fmt.Sprintf("%s=%d", card, n))
		}
		sort.Strings(tradeCards)
		fmt.Fprintf(&buf, "  CARDS:%s\n", strings.Join(tradeCards, ","))

		advances := make([]string, 0, len(p.Advances))
		for _, a := range p.Advances {
			advances = append(advances, string(a))
		}
		sort.Strings(advances)
		fmt.Fprintf(&buf, "  ADVANCES:%s\n", strings.Join(advances, ","))
	}

	// areas are already in map order
	for _, a := range s.Board.Areas {
		players := make([]string, 0, len(a.Tokens))
		for id := range a.Tokens {
			players = append(players, string(id))
		}
		sort.Strings(players)
		for _, id := range players {
			fmt.Fprintf(&buf, "AREA:%s|%s|%s\n", a.Area, id, joinTokens(a.Tokens[board.PlayerID(id)]))
		}
	}
	for _, c := range s.Board.Cities {
		fmt.Fprintf(&buf, "CITY:%s|%s|%d\n", c.Area, c.Player, c.Token)
	}
	fmt.Fprintf(&buf, "MOVED:%s\n", joinTokens(s.Board.Moved))

	for n := 1; n <= cards.MaxPile; n++ {
		pile := make([]string, 0, len(s.Piles[n]))
		for _, card := range s.Piles[n] {
			pile = append(pile, string(card))
		}
		// pile order matters
		fmt.Fprintf(&buf, "PILE:%d|%s\n", n, strings.Join(pile, ","))
	}

	fmt.Fprintf(&buf, "CENSUS_ORDER:%s\n", joinPlayers(s.CensusOrder))
	fmt.Fprintf(&buf, "STILL_TO_ACT:%s\n", joinPlayers(s.StillToAct))
	fmt.Fprintf(&buf, "MANUAL:%s\n", joinPlayers(s.Manual))
	for _, m := range s.Support {
		fmt.Fprintf(&buf, "SUPPORT:%s|%d|%d\n", m.Player, m.SurplusCount, m.NeededTokens)
	}
	return buf.String()
}

func joinTokens(tokens []board.TokenID) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = fmt.Sprint(uint64(t))
	}
	return strings.Join(parts, ",")
}

func joinPlayers(players []board.PlayerID) string {
	parts := make([]string, len(players))
	for i, p := range players {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

// VerifyChecksum reports whether the snapshot still hashes to expected.
func (s *Snapshot) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := s.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes encodes the snapshot with gob.
func (s *Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeFromBytes decodes a snapshot produced by SerializeToBytes.
func DeserializeFromBytes(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

// ValidateSerializationRoundtrip checks that encoding and decoding preserves
// the checksum.
func ValidateSerializationRoundtrip(s *Snapshot) error {
	original, err := s.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}
	data, err := s.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	decoded, err := DeserializeFromBytes(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}
	roundTripped, err := decoded.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute deserialized checksum: %w", err)
	}
	if original.Hash != roundTripped.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s", original.Hash, roundTripped.Hash)
	}
	return nil
}
