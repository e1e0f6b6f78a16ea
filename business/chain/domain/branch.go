package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Branch is a path of headers that diverges from the canonical chain.
// Ancestor is the canonical header the path forks from; nil marks an orphan
// whose parent has not been seen.
type Branch struct {
	Root     common.Hash
	Ancestor *Ref
	Headers  []Header
	seq      uint64
}

// IsOrphan reports whether the branch has no known canonical ancestor.
func (b *Branch) IsOrphan() bool {
	return b.Ancestor == nil
}

// Tip returns the last header on the branch.
func (b *Branch) Tip() Header {
	return b.Headers[len(b.Headers)-1]
}

// First returns the header closest to the fork point.
func (b *Branch) First() Header {
	return b.Headers[0]
}

func (b *Branch) indexOf(hash common.Hash) int {
	for i := range b.Headers {
		if b.Headers[i].Hash == hash {
			return i
		}
	}
	return -1
}

// Weight orders competing paths: longer wins, then heavier.
type Weight struct {
	Length     int
	Difficulty uint256.Int
}

// WeightOf sums a path.
func WeightOf(headers []Header) Weight {
	w := Weight{Length: len(headers)}
	for i := range headers {
		w.Difficulty.Add(&w.Difficulty, &headers[i].Difficulty)
	}
	return w
}

// Exceeds reports whether w is strictly heavier than other. Equal weights
// return false so the incumbent chain stays put.
func (w Weight) Exceeds(other Weight) bool {
	if w.Length != other.Length {
		return w.Length > other.Length
	}
	return w.Difficulty.Gt(&other.Difficulty)
}
