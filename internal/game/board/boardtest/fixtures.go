// Package boardtest builds small boards for tests in other packages.
package boardtest

import (
	"testing"

	"github.com/lavaeater/civ-server-go/internal/game/board"
)

// MapYAML is a five-area map:
//
//	x(3, site) - y(3) - w(2, volcano)
//	x          - z(4, flood plain) - w
//	v(5) is reachable from x by sea only.
const MapYAML = `
name: fixture
areas:
  - id: x
    max_population: 3
    city_site: true
    land: [y, z]
    sea: [v]
  - id: y
    max_population: 3
    land: [w]
  - id: z
    max_population: 4
    flood_plain: true
    land: [w]
  - id: w
    max_population: 2
    volcano: true
  - id: v
    max_population: 5
`

// Map parses MapYAML or fails the test.
func Map(t testing.TB) *board.Map {
	t.Helper()
	m, err := board.ParseMap([]byte(MapYAML))
	if err != nil {
		t.Fatalf("fixture map: %v", err)
	}
	return m
}

// Board creates a fixture board with the given players using the default setup.
func Board(t testing.TB, players ...board.PlayerID) *board.Board {
	t.Helper()
	b := board.New(Map(t), board.DefaultSetup())
	for _, id := range players {
		if _, err := b.AddPlayer(id, string(id), true); err != nil {
			t.Fatalf("add player %s: %v", id, err)
		}
	}
	return b
}

// Place puts count stock tokens of player into area or fails the test.
func Place(t testing.TB, b *board.Board, player board.PlayerID, area board.AreaID, count int) {
	t.Helper()
	if err := b.MoveStockToArea(player, area, count); err != nil {
		t.Fatalf("place %d of %s in %s: %v", count, player, area, err)
	}
}

// City builds a city or fails the test.
func City(t testing.TB, b *board.Board, player board.PlayerID, area board.AreaID) {
	t.Helper()
	if err := b.BuildCity(player, area); err != nil {
		t.Fatalf("city for %s in %s: %v", player, area, err)
	}
}

// Counts returns the per-player counts of an area.
func Counts(b *board.Board, area board.AreaID) map[board.PlayerID]int {
	return b.Population(area).Counts()
}
