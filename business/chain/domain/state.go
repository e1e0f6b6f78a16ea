package domain

import (
	"cmp"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

// Location says where a hash lives in the chain state.
type Location struct {
	Canonical bool
	Index     int     // position in the canonical window or in Branch.Headers
	Branch    *Branch // nil for canonical
}

// ChainState is the canonical window plus the branches competing with it.
// It is not safe for concurrent use; the fork detector serialises access.
type ChainState struct {
	window      int
	maxBranches int
	canonical   []Header
	branches    map[common.Hash]*Branch
	seq         uint64
}

// NewChainState creates an empty state retaining window canonical headers and
// at most maxBranches branches.
func NewChainState(window, maxBranches int) *ChainState {
	return &ChainState{
		window:      window,
		maxBranches: maxBranches,
		canonical:   make([]Header, 0, window),
		branches:    make(map[common.Hash]*Branch),
	}
}

// Len returns the number of canonical headers retained.
func (s *ChainState) Len() int {
	return len(s.canonical)
}

// Tip returns the canonical head.
func (s *ChainState) Tip() (Header, bool) {
	if len(s.canonical) == 0 {
		return Header{}, false
	}
	return s.canonical[len(s.canonical)-1], true
}

// Oldest returns the earliest retained canonical header.
func (s *ChainState) Oldest() (Header, bool) {
	if len(s.canonical) == 0 {
		return Header{}, false
	}
	return s.canonical[0], true
}

// Canonical returns a copy of the canonical window, oldest first.
func (s *ChainState) Canonical() []Header {
	return slices.Clone(s.canonical)
}

// BranchCount returns the number of tracked branches, orphans included.
func (s *ChainState) BranchCount() int {
	return len(s.branches)
}

// Branches returns copies of all branches in first-seen order.
func (s *ChainState) Branches() []Branch {
	out := make([]Branch, 0, len(s.branches))
	for _, b := range s.branches {
		c := *b
		c.Headers = slices.Clone(b.Headers)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Branch) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// Branch returns the branch registered under root.
func (s *ChainState) Branch(root common.Hash) (*Branch, bool) {
	b, ok := s.branches[root]
	return b, ok
}

// Locate finds hash in the canonical window first, then in the branches.
func (s *ChainState) Locate(hash common.Hash) (Location, bool) {
	if i := s.canonicalIndex(hash); i >= 0 {
		return Location{Canonical: true, Index: i}, true
	}
	for _, b := range s.branches {
		if i := b.indexOf(hash); i >= 0 {
			return Location{Index: i, Branch: b}, true
		}
	}
	return Location{}, false
}

// Lookup returns the header stored for hash anywhere in the state.
func (s *ChainState) Lookup(hash common.Hash) (Header, bool) {
	loc, ok := s.Locate(hash)
	if !ok {
		return Header{}, false
	}
	if loc.Canonical {
		return s.canonical[loc.Index], true
	}
	return loc.Branch.Headers[loc.Index], true
}

// Contains reports whether hash has been seen.
func (s *ChainState) Contains(hash common.Hash) bool {
	_, ok := s.Locate(hash)
	return ok
}

// Append extends the canonical chain. The caller guarantees h links to the tip.
func (s *ChainState) Append(h Header) {
	s.canonical = append(s.canonical, h)
	s.evict()
	s.prune()
}

// Restart replaces the canonical chain with path, which must be linked, and
// drops every branch.
func (s *ChainState) Restart(path []Header) {
	s.canonical = append(make([]Header, 0, s.window), path...)
	clear(s.branches)
	s.evict()
}

// StartBranch registers a single-header branch forking from a canonical
// header.
func (s *ChainState) StartBranch(h Header, ancestor Ref) *Branch {
	b := s.addBranch(&Branch{
		Root:     h.Hash,
		Ancestor: &ancestor,
		Headers:  []Header{h},
	})
	s.prune()
	return b
}

// AddOrphan keeps h until its parent shows up.
func (s *ChainState) AddOrphan(h Header) *Branch {
	b := s.addBranch(&Branch{Root: h.Hash, Headers: []Header{h}})
	s.prune()
	return b
}

// ExtendBranch adds h on top of the header at loc. Extending the tip grows
// the branch in place; extending an interior header copies the prefix into a
// new branch rooted at h.
func (s *ChainState) ExtendBranch(loc Location, h Header) *Branch {
	b := loc.Branch
	if loc.Index == len(b.Headers)-1 {
		b.Headers = append(b.Headers, h)
		return b
	}

	headers := make([]Header, 0, loc.Index+2)
	headers = append(headers, b.Headers[:loc.Index+1]...)
	headers = append(headers, h)

	nb := &Branch{Root: h.Hash, Headers: headers}
	if b.Ancestor != nil {
		anc := *b.Ancestor
		nb.Ancestor = &anc
	}
	s.addBranch(nb)
	s.prune()
	return nb
}

// TakeOrphansOf removes and returns the orphans whose first header's parent
// is hash, longest first.
func (s *ChainState) TakeOrphansOf(hash common.Hash) []*Branch {
	var out []*Branch
	for root, b := range s.branches {
		if b.IsOrphan() && b.First().ParentHash == hash {
			out = append(out, b)
			delete(s.branches, root)
		}
	}
	slices.SortFunc(out, func(a, b *Branch) int { return len(b.Headers) - len(a.Headers) })
	return out
}

// SuffixAfter returns a copy of the canonical headers after ancestor.
func (s *ChainState) SuffixAfter(ancestor common.Hash) ([]Header, bool) {
	i := s.canonicalIndex(ancestor)
	if i < 0 {
		return nil, false
	}
	return slices.Clone(s.canonical[i+1:]), true
}

// Reorganize makes the branch registered under root canonical. The replaced
// canonical suffix is kept as a branch so it can win back later, and every
// other branch is rebased onto the new canonical chain.
func (s *ChainState) Reorganize(root common.Hash) (replaced []Header, ok bool) {
	b, found := s.branches[root]
	if !found || b.IsOrphan() {
		return nil, false
	}
	ai := s.canonicalIndex(b.Ancestor.Hash)
	if ai < 0 {
		return nil, false
	}
	ancestor := *b.Ancestor

	replaced = slices.Clone(s.canonical[ai+1:])
	delete(s.branches, root)

	canonical := make([]Header, 0, max(s.window, ai+1+len(b.Headers)))
	canonical = append(canonical, s.canonical[:ai+1]...)
	canonical = append(canonical, b.Headers...)
	s.canonical = canonical

	if len(replaced) > 0 {
		s.addBranch(&Branch{
			Root:     replaced[0].Hash,
			Ancestor: &ancestor,
			Headers:  slices.Clone(replaced),
		})
	}

	s.rebase(ancestor, replaced)
	s.evict()
	s.prune()
	return replaced, true
}

// rebase re-anchors branches after a reorg. Branches forking from the
// demoted suffix get that suffix prepended; branches whose leading headers
// are now canonical have them trimmed.
func (s *ChainState) rebase(ancestor Ref, demoted []Header) {
	for root, b := range s.branches {
		if b.IsOrphan() {
			continue
		}

		if s.canonicalIndex(b.Ancestor.Hash) < 0 {
			j := -1
			for i := range demoted {
				if demoted[i].Hash == b.Ancestor.Hash {
					j = i
					break
				}
			}
			if j < 0 {
				delete(s.branches, root)
				continue
			}
			headers := make([]Header, 0, j+1+len(b.Headers))
			headers = append(headers, demoted[:j+1]...)
			headers = append(headers, b.Headers...)
			anc := ancestor
			b.Headers = headers
			b.Ancestor = &anc
		}

		ai := s.canonicalIndex(b.Ancestor.Hash)
		trim := 0
		for trim < len(b.Headers) && ai+1+trim < len(s.canonical) &&
			b.Headers[trim].Hash == s.canonical[ai+1+trim].Hash {
			trim++
		}
		if trim == len(b.Headers) {
			delete(s.branches, root)
			continue
		}
		if trim > 0 {
			ref := s.canonical[ai+trim].Ref()
			b.Ancestor = &ref
			b.Headers = slices.Clone(b.Headers[trim:])
		}
	}
}

func (s *ChainState) addBranch(b *Branch) *Branch {
	s.seq++
	b.seq = s.seq
	s.branches[b.Root] = b
	return b
}

func (s *ChainState) evict() {
	if over := len(s.canonical) - s.window; over > 0 {
		s.canonical = slices.Delete(s.canonical, 0, over)
	}
}

// prune drops branches that can no longer matter: forks whose ancestor left
// the window, orphans older than the window, and the oldest branches beyond
// the cap.
func (s *ChainState) prune() {
	if len(s.canonical) > 0 {
		oldest := s.canonical[0].Number
		tip := s.canonical[len(s.canonical)-1].Number
		for root, b := range s.branches {
			switch {
			case b.IsOrphan():
				if b.Tip().Number+uint64(s.window) < tip {
					delete(s.branches, root)
				}
			case b.Ancestor.Number < oldest || s.canonicalIndex(b.Ancestor.Hash) < 0:
				delete(s.branches, root)
			}
		}
	}

	for len(s.branches) > s.maxBranches {
		var oldestRoot common.Hash
		var oldestSeq uint64
		first := true
		for root, b := range s.branches {
			if first || b.seq < oldestSeq {
				oldestRoot, oldestSeq, first = root, b.seq, false
			}
		}
		delete(s.branches, oldestRoot)
	}
}

func (s *ChainState) canonicalIndex(hash common.Hash) int {
	for i := len(s.canonical) - 1; i >= 0; i-- {
		if s.canonical[i].Hash == hash {
			return i
		}
	}
	return -1
}
