package cards

// Hand counts the trade cards a player holds.
type Hand struct {
	counts map[TradeCard]int
}

// NewHand creates an empty hand.
func NewHand() *Hand {
	return &Hand{counts: make(map[TradeCard]int)}
}

// Add puts copies of a card into the hand.
func (h *Hand) Add(card TradeCard, amount int) {
	if amount <= 0 {
		return
	}
	h.counts[card] += amount
}

// Remove takes one copy of the card out of the hand.
// Returns false if the card was not held.
func (h *Hand) Remove(card TradeCard) bool {
	if h.counts[card] == 0 {
		return false
	}
	h.counts[card]--
	if h.counts[card] == 0 {
		delete(h.counts, card)
	}
	return true
}

// RemoveAll drops every copy of the card and returns how many were held.
func (h *Hand) RemoveAll(card TradeCard) int {
	n := h.counts[card]
	delete(h.counts, card)
	return n
}

// Count returns the number of copies held.
func (h *Hand) Count(card TradeCard) int {
	return h.counts[card]
}

// Total returns the number of cards held.
func (h *Hand) Total() int {
	total := 0
	for _, n := range h.counts {
		total += n
	}
	return total
}

// Has reports whether at least one copy is held.
func (h *Hand) Has(card TradeCard) bool {
	return h.counts[card] > 0
}

// Kinds returns the distinct cards held, ordered by value then name.
func (h *Hand) Kinds() []TradeCard {
	out := make([]TradeCard, 0, len(h.counts))
	for card := range h.counts {
		out = append(out, card)
	}
	sortCards(out)
	return out
}

// Commodities returns the distinct commodities held.
func (h *Hand) Commodities() []TradeCard {
	out := make([]TradeCard, 0, len(h.counts))
	for _, card := range h.Kinds() {
		if !card.IsCalamity() {
			out = append(out, card)
		}
	}
	return out
}

// Calamities returns the calamities held, lowest value first.
func (h *Hand) Calamities() []TradeCard {
	out := make([]TradeCard, 0, 2)
	for _, card := range h.Kinds() {
		if card.IsCalamity() {
			out = append(out, card)
		}
	}
	return out
}

// SetValue is count squared times face value for a commodity.
func (h *Hand) SetValue(card TradeCard) int {
	if card.IsCalamity() {
		return 0
	}
	n := h.counts[card]
	return n * n * card.Value()
}

// TotalValue sums the set values of every commodity held.
func (h *Hand) TotalValue() int {
	total := 0
	for card := range h.counts {
		total += h.SetValue(card)
	}
	return total
}

// Copy creates a deep copy of the hand.
func (h *Hand) Copy() *Hand {
	c := NewHand()
	for card, n := range h.counts {
		c.counts[card] = n
	}
	return c
}

// Snapshot returns the card counts keyed by card name.
func (h *Hand) Snapshot() map[TradeCard]int {
	out := make(map[TradeCard]int, len(h.counts))
	for card, n := range h.counts {
		out[card] = n
	}
	return out
}
