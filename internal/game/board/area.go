package board

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlayerID identifies a player.
type PlayerID string

// AreaID identifies a map area.
type AreaID string

// TokenID identifies a single population or city token.
type TokenID uint64

// Area is a static map region.
type Area struct {
	ID              AreaID
	Name            string
	MaxPopulation   int
	LandConnections []AreaID
	SeaConnections  []AreaID
	CitySite        bool
	FloodPlain      bool
	Volcano         bool
	StartFor        string
}

// ConnectedByLand reports whether the area has a land connection to target.
func (a *Area) ConnectedByLand(target AreaID) bool {
	for _, id := range a.LandConnections {
		if id == target {
			return true
		}
	}
	return false
}

// Coastal reports whether the area has any sea connection.
func (a *Area) Coastal() bool {
	return len(a.SeaConnections) > 0
}

// AreaDefinition is the on-disk form of an area.
type AreaDefinition struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	MaxPopulation int      `yaml:"max_population"`
	Land          []string `yaml:"land"`
	Sea           []string `yaml:"sea"`
	CitySite      bool     `yaml:"city_site"`
	FloodPlain    bool     `yaml:"flood_plain"`
	Volcano       bool     `yaml:"volcano"`
	StartFor      string   `yaml:"start_for"`
}

// MapDefinition is the on-disk form of the whole map.
type MapDefinition struct {
	Name  string           `yaml:"name"`
	Areas []AreaDefinition `yaml:"areas"`
}

// Map is the resolved area graph.
type Map struct {
	Name  string
	areas map[AreaID]*Area
	order []AreaID
	pos   map[AreaID]int
}

var (
	// ErrUnknownArea is returned when an area id does not exist on the map.
	ErrUnknownArea = errors.New("unknown area")
	// ErrDuplicateArea is returned when a map defines the same area twice.
	ErrDuplicateArea = errors.New("duplicate area")
)

// LoadMap reads a YAML map definition from disk.
func LoadMap(path string) (*Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMap(raw)
}

// ParseMap decodes a YAML map definition.
func ParseMap(raw []byte) (*Map, error) {
	var def MapDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("map definition: %w", err)
	}
	return NewMap(def)
}

// NewMap creates every area first, then resolves connections and mirrors them
// so that a connection listed on one side exists on both.
func NewMap(def MapDefinition) (*Map, error) {
	m := &Map{
		Name:  def.Name,
		areas: make(map[AreaID]*Area, len(def.Areas)),
		order: make([]AreaID, 0, len(def.Areas)),
		pos:   make(map[AreaID]int, len(def.Areas)),
	}
	for _, ad := range def.Areas {
		id := AreaID(ad.ID)
		if id == "" {
			return nil, fmt.Errorf("area without id: %w", ErrUnknownArea)
		}
		if _, exists := m.areas[id]; exists {
			return nil, fmt.Errorf("%s: %w", id, ErrDuplicateArea)
		}
		name := ad.Name
		if name == "" {
			name = ad.ID
		}
		m.areas[id] = &Area{
			ID:            id,
			Name:          name,
			MaxPopulation: ad.MaxPopulation,
			CitySite:      ad.CitySite,
			FloodPlain:    ad.FloodPlain,
			Volcano:       ad.Volcano,
			StartFor:      ad.StartFor,
		}
		m.pos[id] = len(m.order)
		m.order = append(m.order, id)
	}

	for _, ad := range def.Areas {
		from := m.areas[AreaID(ad.ID)]
		for _, to := range ad.Land {
			target, ok := m.areas[AreaID(to)]
			if !ok {
				return nil, fmt.Errorf("%s -> %s: %w", ad.ID, to, ErrUnknownArea)
			}
			from.LandConnections = appendUnique(from.LandConnections, target.ID)
			target.LandConnections = appendUnique(target.LandConnections, from.ID)
		}
		for _, to := range ad.Sea {
			target, ok := m.areas[AreaID(to)]
			if !ok {
				return nil, fmt.Errorf("%s -> %s: %w", ad.ID, to, ErrUnknownArea)
			}
			from.SeaConnections = appendUnique(from.SeaConnections, target.ID)
			target.SeaConnections = appendUnique(target.SeaConnections, from.ID)
		}
	}
	return m, nil
}

func appendUnique(list []AreaID, id AreaID) []AreaID {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}

// Area looks up an area by id.
func (m *Map) Area(id AreaID) (*Area, bool) {
	a, ok := m.areas[id]
	return a, ok
}

// Areas returns every area in definition order.
func (m *Map) Areas() []*Area {
	out := make([]*Area, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.areas[id])
	}
	return out
}

// Len returns the number of areas.
func (m *Map) Len() int {
	return len(m.order)
}

// index returns the definition position of an area, used for stable ordering.
func (m *Map) index(id AreaID) int {
	if i, ok := m.pos[id]; ok {
		return i
	}
	return len(m.order)
}
