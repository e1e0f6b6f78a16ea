package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// hdr builds a header whose hash encodes a tag so forks at the same height differ.
func hdr(number uint64, tag byte, parent common.Hash, difficulty uint64) Header {
	var h common.Hash
	h[0] = tag
	h[31] = byte(number)
	h[30] = byte(number >> 8)
	return Header{
		Number:     number,
		Hash:       h,
		ParentHash: parent,
		Timestamp:  1_700_000_000 + number*13,
		Difficulty: *uint256.NewInt(difficulty),
		GasLimit:   8_000_000,
	}
}

func linear(s *ChainState, from, to uint64, tag byte) []Header {
	var out []Header
	parent := common.Hash{0xff}
	if tip, ok := s.Tip(); ok {
		parent = tip.Hash
	}
	for n := from; n <= to; n++ {
		h := hdr(n, tag, parent, 100)
		s.Append(h)
		out = append(out, h)
		parent = h.Hash
	}
	return out
}

func TestChainState_EvictsOverWindow(t *testing.T) {
	s := NewChainState(4, 8)
	linear(s, 1, 6, 'a')

	if s.Len() != 4 {
		t.Fatalf("Len = %d, want 4", s.Len())
	}
	oldest, _ := s.Oldest()
	if oldest.Number != 3 {
		t.Errorf("oldest = %d, want 3", oldest.Number)
	}
	tip, _ := s.Tip()
	if tip.Number != 6 {
		t.Errorf("tip = %d, want 6", tip.Number)
	}
}

func TestChainState_PrunesBranchWhenAncestorEvicted(t *testing.T) {
	s := NewChainState(4, 8)
	chain := linear(s, 1, 3, 'a')
	s.StartBranch(hdr(3, 'b', chain[1].Hash, 100), chain[1].Ref())

	if s.BranchCount() != 1 {
		t.Fatalf("BranchCount = %d, want 1", s.BranchCount())
	}

	linear(s, 4, 6, 'a')
	if s.BranchCount() != 0 {
		t.Errorf("branch with evicted ancestor should be dropped, count = %d", s.BranchCount())
	}
}

func TestChainState_CapsBranches(t *testing.T) {
	s := NewChainState(16, 2)
	chain := linear(s, 1, 4, 'a')

	first := s.StartBranch(hdr(2, 'b', chain[0].Hash, 1), chain[0].Ref())
	s.StartBranch(hdr(3, 'c', chain[1].Hash, 1), chain[1].Ref())
	s.StartBranch(hdr(4, 'd', chain[2].Hash, 1), chain[2].Ref())

	if s.BranchCount() != 2 {
		t.Fatalf("BranchCount = %d, want 2", s.BranchCount())
	}
	if _, ok := s.Branch(first.Root); ok {
		t.Error("oldest branch should be dropped first")
	}
}

func TestChainState_ExtendBranchInteriorCopiesPrefix(t *testing.T) {
	s := NewChainState(16, 8)
	chain := linear(s, 1, 3, 'a')

	b1 := hdr(2, 'b', chain[0].Hash, 1)
	br := s.StartBranch(b1, chain[0].Ref())
	b2 := hdr(3, 'b', b1.Hash, 1)
	s.ExtendBranch(Location{Index: 0, Branch: br}, b2)

	if len(br.Headers) != 2 {
		t.Fatalf("tip extension should grow in place, len = %d", len(br.Headers))
	}

	c2 := hdr(3, 'c', b1.Hash, 1)
	nb := s.ExtendBranch(Location{Index: 0, Branch: br}, c2)

	if nb.Root != c2.Hash {
		t.Errorf("copied branch should be rooted at the new header")
	}
	if len(nb.Headers) != 2 || nb.Headers[0].Hash != b1.Hash {
		t.Errorf("copied branch headers = %v", nb.Headers)
	}
	if nb.Ancestor == nil || nb.Ancestor.Hash != chain[0].Hash {
		t.Errorf("copied branch should keep the ancestor")
	}
	if s.BranchCount() != 2 {
		t.Errorf("BranchCount = %d, want 2", s.BranchCount())
	}
}

func TestChainState_ReorganizeDemotesAndRebases(t *testing.T) {
	s := NewChainState(16, 8)
	chain := linear(s, 1, 4, 'a') // 1..4, tip 4

	// A branch forking from canonical #3, which the reorg below replaces.
	side := hdr(4, 's', chain[2].Hash, 1)
	s.StartBranch(side, chain[2].Ref())

	// Winning branch from #2.
	w3 := hdr(3, 'w', chain[1].Hash, 500)
	br := s.StartBranch(w3, chain[1].Ref())
	w4 := hdr(4, 'w', w3.Hash, 500)
	s.ExtendBranch(Location{Index: 0, Branch: br}, w4)

	replaced, ok := s.Reorganize(w3.Hash)
	if !ok {
		t.Fatal("Reorganize failed")
	}
	if len(replaced) != 2 || replaced[0].Hash != chain[2].Hash {
		t.Fatalf("replaced = %v", replaced)
	}

	tip, _ := s.Tip()
	if tip.Hash != w4.Hash {
		t.Errorf("tip = %s, want w4", tip.Hash)
	}

	demoted, ok := s.Branch(chain[2].Hash)
	if !ok {
		t.Fatal("replaced suffix should be kept as a branch")
	}
	if demoted.Ancestor.Hash != chain[1].Hash || len(demoted.Headers) != 2 {
		t.Errorf("demoted branch = %+v", demoted)
	}

	rebased, ok := s.Branch(side.Hash)
	if !ok {
		t.Fatal("side branch should survive the reorg")
	}
	if rebased.Ancestor.Hash != chain[1].Hash {
		t.Errorf("side branch ancestor = %s, want #2", rebased.Ancestor)
	}
	if len(rebased.Headers) != 2 || rebased.Headers[0].Hash != chain[2].Hash {
		t.Errorf("side branch should carry the demoted prefix, got %d headers", len(rebased.Headers))
	}

	for _, b := range s.Branches() {
		if b.Tip().Hash == tip.Hash {
			t.Error("no branch may share its tip with canonical")
		}
	}
}

func TestChainState_TakeOrphansOf(t *testing.T) {
	s := NewChainState(16, 8)
	chain := linear(s, 1, 2, 'a')

	missing := common.Hash{0xee}
	o1 := s.AddOrphan(hdr(5, 'o', missing, 1))
	s.ExtendBranch(Location{Index: 0, Branch: o1}, hdr(6, 'o', o1.Root, 1))
	s.AddOrphan(hdr(5, 'p', missing, 1))
	s.AddOrphan(hdr(9, 'q', chain[1].Hash, 1))

	got := s.TakeOrphansOf(missing)
	if len(got) != 2 {
		t.Fatalf("took %d orphans, want 2", len(got))
	}
	if len(got[0].Headers) != 2 {
		t.Error("longest orphan should come first")
	}
	if s.BranchCount() != 1 {
		t.Errorf("BranchCount = %d, want 1", s.BranchCount())
	}
}

func TestChainState_Restart(t *testing.T) {
	s := NewChainState(3, 8)
	linear(s, 1, 3, 'a')
	s.AddOrphan(hdr(50, 'o', common.Hash{0xee}, 1))

	var path []Header
	parent := common.Hash{0xdd}
	for n := uint64(90); n <= 94; n++ {
		h := hdr(n, 'r', parent, 1)
		path = append(path, h)
		parent = h.Hash
	}
	s.Restart(path)

	if s.Len() != 3 || s.BranchCount() != 0 {
		t.Fatalf("Len = %d BranchCount = %d, want 3 and 0", s.Len(), s.BranchCount())
	}
	oldest, _ := s.Oldest()
	tip, _ := s.Tip()
	if oldest.Number != 92 || tip.Number != 94 {
		t.Errorf("window = %d..%d, want 92..94", oldest.Number, tip.Number)
	}
}

func TestWeight_Exceeds(t *testing.T) {
	mk := func(n int, d uint64) Weight {
		return Weight{Length: n, Difficulty: *uint256.NewInt(d)}
	}
	tests := []struct {
		name        string
		branch, can Weight
		want        bool
	}{
		{"longer wins", mk(3, 1), mk(2, 1000), true},
		{"shorter loses", mk(1, 1000), mk(2, 1), false},
		{"heavier at equal length", mk(2, 201), mk(2, 200), true},
		{"exact tie keeps canonical", mk(2, 200), mk(2, 200), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.branch.Exceeds(tt.can); got != tt.want {
				t.Errorf("Exceeds = %v, want %v", got, tt.want)
			}
		})
	}
}
