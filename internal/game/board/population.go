package board

import "sort"

// Population records which player owns which tokens inside one area.
// A player's entry is removed as soon as its token set becomes empty.
type Population struct {
	Area          AreaID
	MaxPopulation int
	tokens        map[PlayerID]map[TokenID]struct{}
}

// NewPopulation creates an empty ledger with the area's capacity.
func NewPopulation(area AreaID, maxPopulation int) *Population {
	return &Population{
		Area:          area,
		MaxPopulation: maxPopulation,
		tokens:        make(map[PlayerID]map[TokenID]struct{}),
	}
}

func (p *Population) add(player PlayerID, token TokenID) {
	set, ok := p.tokens[player]
	if !ok {
		set = make(map[TokenID]struct{})
		p.tokens[player] = set
	}
	set[token] = struct{}{}
}

func (p *Population) remove(player PlayerID, token TokenID) bool {
	set, ok := p.tokens[player]
	if !ok {
		return false
	}
	if _, ok := set[token]; !ok {
		return false
	}
	delete(set, token)
	if len(set) == 0 {
		delete(p.tokens, player)
	}
	return true
}

// Tokens returns the player's tokens in ascending id order.
func (p *Population) Tokens(player PlayerID) []TokenID {
	set := p.tokens[player]
	out := make([]TokenID, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns how many tokens the player has here.
func (p *Population) Count(player PlayerID) int {
	return len(p.tokens[player])
}

// Total returns the number of tokens of all players.
func (p *Population) Total() int {
	total := 0
	for _, set := range p.tokens {
		total += len(set)
	}
	return total
}

// Players returns the players present, ordered by their lowest token id.
func (p *Population) Players() []PlayerID {
	out := make([]PlayerID, 0, len(p.tokens))
	for player := range p.tokens {
		out = append(out, player)
	}
	sort.Slice(out, func(i, j int) bool {
		mi, mj := p.MinToken(out[i]), p.MinToken(out[j])
		if mi != mj {
			return mi < mj
		}
		return out[i] < out[j]
	})
	return out
}

// MinToken returns the lowest token id the player holds here, or 0.
func (p *Population) MinToken(player PlayerID) TokenID {
	var lowest TokenID
	first := true
	for t := range p.tokens[player] {
		if first || t < lowest {
			lowest = t
			first = false
		}
	}
	return lowest
}

// Has reports whether the player has any tokens here.
func (p *Population) Has(player PlayerID) bool {
	return len(p.tokens[player]) > 0
}

// HasOthers reports whether any player other than the given one is present.
func (p *Population) HasOthers(player PlayerID) bool {
	for other := range p.tokens {
		if other != player {
			return true
		}
	}
	return false
}

// Contains reports the owner of a token if it is in this area.
func (p *Population) Contains(token TokenID) (PlayerID, bool) {
	for player, set := range p.tokens {
		if _, ok := set[token]; ok {
			return player, true
		}
	}
	return "", false
}

// IsEmpty reports whether no tokens are present.
func (p *Population) IsEmpty() bool {
	return len(p.tokens) == 0
}

// IsContested reports whether more than one player is present.
func (p *Population) IsContested() bool {
	return len(p.tokens) > 1
}

// OverCapacity reports whether the area holds more tokens than it may.
func (p *Population) OverCapacity() bool {
	return p.Total() > p.MaxPopulation
}

// HasSurplus reports single-player overpopulation.
func (p *Population) HasSurplus() bool {
	return len(p.tokens) == 1 && p.OverCapacity()
}

// Counts returns token counts keyed by player.
func (p *Population) Counts() map[PlayerID]int {
	out := make(map[PlayerID]int, len(p.tokens))
	for player, set := range p.tokens {
		out[player] = len(set)
	}
	return out
}

func (p *Population) emptyEntries() int {
	n := 0
	for _, set := range p.tokens {
		if len(set) == 0 {
			n++
		}
	}
	return n
}
