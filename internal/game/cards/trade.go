package cards

import (
	"fmt"
	"sort"
)

// TradeCard names a card from the trade-card piles.
type TradeCard string

// Commodities.
const (
	Ochre   TradeCard = "OCHRE"
	Hides   TradeCard = "HIDES"
	Iron    TradeCard = "IRON"
	Papyrus TradeCard = "PAPYRUS"
	Salt    TradeCard = "SALT"
	Timber  TradeCard = "TIMBER"
	Grain   TradeCard = "GRAIN"
	Oil     TradeCard = "OIL"
	Cloth   TradeCard = "CLOTH"
	Wine    TradeCard = "WINE"
	Bronze  TradeCard = "BRONZE"
	Silver  TradeCard = "SILVER"
	Spices  TradeCard = "SPICES"
	Resin   TradeCard = "RESIN"
	Gems    TradeCard = "GEMS"
	Dye     TradeCard = "DYE"
	Gold    TradeCard = "GOLD"
	Ivory   TradeCard = "IVORY"
)

// Calamities.
const (
	VolcanoEarthquake   TradeCard = "VOLCANO_EARTHQUAKE"
	Treachery           TradeCard = "TREACHERY"
	Famine              TradeCard = "FAMINE"
	Superstition        TradeCard = "SUPERSTITION"
	CivilWar            TradeCard = "CIVIL_WAR"
	SlaveRevolt         TradeCard = "SLAVE_REVOLT"
	Flood               TradeCard = "FLOOD"
	BarbarianHordes     TradeCard = "BARBARIAN_HORDES"
	Epidemic            TradeCard = "EPIDEMIC"
	CivilDisorder       TradeCard = "CIVIL_DISORDER"
	IconoclasmAndHeresy TradeCard = "ICONOCLASM_AND_HERESY"
	Piracy              TradeCard = "PIRACY"
)

// Kind separates commodities from calamities.
type Kind int

const (
	KindCommodity Kind = iota
	KindCalamity
)

func (k Kind) String() string {
	switch k {
	case KindCommodity:
		return "COMMODITY"
	case KindCalamity:
		return "CALAMITY"
	default:
		return fmt.Sprintf("KIND_%d", int(k))
	}
}

// CardInfo is the static description of a trade card.
type CardInfo struct {
	Card     TradeCard
	Kind     Kind
	Value    int // face value, also the pile the card lives in
	Tradable bool
	Copies   int
}

// MaxPile is the highest trade-card pile number.
const MaxPile = 9

var tradeCards = map[TradeCard]CardInfo{
	Ochre:   {Ochre, KindCommodity, 1, true, 7},
	Hides:   {Hides, KindCommodity, 1, true, 7},
	Iron:    {Iron, KindCommodity, 2, true, 8},
	Papyrus: {Papyrus, KindCommodity, 2, true, 7},
	Salt:    {Salt, KindCommodity, 3, true, 9},
	Timber:  {Timber, KindCommodity, 3, true, 8},
	Grain:   {Grain, KindCommodity, 4, true, 8},
	Oil:     {Oil, KindCommodity, 4, true, 7},
	Cloth:   {Cloth, KindCommodity, 5, true, 7},
	Wine:    {Wine, KindCommodity, 5, true, 6},
	Bronze:  {Bronze, KindCommodity, 6, true, 6},
	Silver:  {Silver, KindCommodity, 6, true, 5},
	Spices:  {Spices, KindCommodity, 7, true, 6},
	Resin:   {Resin, KindCommodity, 7, true, 5},
	Gems:    {Gems, KindCommodity, 8, true, 5},
	Dye:     {Dye, KindCommodity, 8, true, 4},
	Gold:    {Gold, KindCommodity, 9, true, 5},
	Ivory:   {Ivory, KindCommodity, 9, true, 4},

	VolcanoEarthquake:   {VolcanoEarthquake, KindCalamity, 2, false, 1},
	Treachery:           {Treachery, KindCalamity, 2, true, 1},
	Famine:              {Famine, KindCalamity, 3, false, 1},
	Superstition:        {Superstition, KindCalamity, 3, true, 1},
	CivilWar:            {CivilWar, KindCalamity, 4, false, 1},
	SlaveRevolt:         {SlaveRevolt, KindCalamity, 4, true, 1},
	Flood:               {Flood, KindCalamity, 5, false, 1},
	BarbarianHordes:     {BarbarianHordes, KindCalamity, 5, true, 1},
	Epidemic:            {Epidemic, KindCalamity, 6, false, 1},
	CivilDisorder:       {CivilDisorder, KindCalamity, 6, true, 1},
	IconoclasmAndHeresy: {IconoclasmAndHeresy, KindCalamity, 7, false, 1},
	Piracy:              {Piracy, KindCalamity, 8, true, 1},
}

// Info returns the static description of a card.
func Info(card TradeCard) (CardInfo, bool) {
	info, ok := tradeCards[card]
	return info, ok
}

// IsCalamity reports whether the card is a calamity.
func (c TradeCard) IsCalamity() bool {
	return tradeCards[c].Kind == KindCalamity
}

// IsTradable reports whether the card may change hands in a trade.
func (c TradeCard) IsTradable() bool {
	return tradeCards[c].Tradable
}

// Value returns the face value of the card.
func (c TradeCard) Value() int {
	return tradeCards[c].Value
}

// AllTradeCards returns every known card ordered by value then name.
func AllTradeCards() []TradeCard {
	out := make([]TradeCard, 0, len(tradeCards))
	for card := range tradeCards {
		out = append(out, card)
	}
	sortCards(out)
	return out
}

// Calamities returns the calamity cards ordered by value then name.
func Calamities() []TradeCard {
	out := make([]TradeCard, 0, 12)
	for card, info := range tradeCards {
		if info.Kind == KindCalamity {
			out = append(out, card)
		}
	}
	sortCards(out)
	return out
}

func sortCards(list []TradeCard) {
	sort.Slice(list, func(i, j int) bool {
		vi, vj := list[i].Value(), list[j].Value()
		if vi != vj {
			return vi < vj
		}
		return list[i] < list[j]
	})
}
