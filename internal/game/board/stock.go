package board

import "sort"

// Stock is a fixed-capacity pool of tokens that are not on the board.
// Tokens are always handed out lowest id first.
type Stock struct {
	capacity int
	tokens   []TokenID
}

// NewStock creates a full stock holding ids first..first+capacity-1.
func NewStock(capacity int, first TokenID) *Stock {
	s := &Stock{capacity: capacity, tokens: make([]TokenID, 0, capacity)}
	for i := 0; i < capacity; i++ {
		s.tokens = append(s.tokens, first+TokenID(i))
	}
	return s
}

// NewEmptyStock creates a pool with a capacity but no tokens, used for treasuries.
func NewEmptyStock(capacity int) *Stock {
	return &Stock{capacity: capacity, tokens: make([]TokenID, 0, capacity)}
}

// Capacity returns the total number of tokens the pool was created for.
func (s *Stock) Capacity() int {
	return s.capacity
}

// Available returns the number of tokens in the pool.
func (s *Stock) Available() int {
	return len(s.tokens)
}

// Take removes exactly n tokens, or nothing if fewer are available.
func (s *Stock) Take(n int) ([]TokenID, bool) {
	if n <= 0 || n > len(s.tokens) {
		return nil, false
	}
	out := append([]TokenID(nil), s.tokens[:n]...)
	s.tokens = s.tokens[n:]
	return out, true
}

// TakeUpTo removes at most n tokens.
func (s *Stock) TakeUpTo(n int) []TokenID {
	if n > len(s.tokens) {
		n = len(s.tokens)
	}
	out, _ := s.Take(n)
	return out
}

// Return puts tokens back in the pool.
func (s *Stock) Return(tokens ...TokenID) {
	if len(tokens) == 0 {
		return
	}
	s.tokens = append(s.tokens, tokens...)
	sort.Slice(s.tokens, func(i, j int) bool { return s.tokens[i] < s.tokens[j] })
}

// Tokens returns a copy of the pooled ids.
func (s *Stock) Tokens() []TokenID {
	return append([]TokenID(nil), s.tokens...)
}

// Contains reports whether the token is pooled here.
func (s *Stock) Contains(token TokenID) bool {
	i := sort.Search(len(s.tokens), func(i int) bool { return s.tokens[i] >= token })
	return i < len(s.tokens) && s.tokens[i] == token
}
