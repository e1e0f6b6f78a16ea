package app

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/fd1az/mordor-monitor/business/chain/domain"
	"github.com/fd1az/mordor-monitor/internal/apperror"
)

func hash(tag string, n uint64) common.Hash {
	return common.BytesToHash([]byte(fmt.Sprintf("%s-%d", tag, n)))
}

func header(tag string, n uint64, parent common.Hash, difficulty uint64) domain.Header {
	return domain.Header{
		Number:     n,
		Hash:       hash(tag, n),
		ParentHash: parent,
		Timestamp:  1_700_000_000 + n*14,
		Difficulty: *uint256.NewInt(difficulty),
		GasUsed:    21_000,
		GasLimit:   8_000_000,
		TxCount:    1,
	}
}

// chain builds tag-n headers from..to linked to parent.
func chain(tag string, from, to uint64, parent common.Hash, difficulty uint64) []domain.Header {
	var out []domain.Header
	for n := from; n <= to; n++ {
		h := header(tag, n, parent, difficulty)
		out = append(out, h)
		parent = h.Hash
	}
	return out
}

func newDetector() *ForkDetector {
	d := NewForkDetector(DefaultDetectorConfig())
	d.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	seq := 0
	d.ids = func() string {
		seq++
		return fmt.Sprintf("fork-%d", seq)
	}
	return d
}

func mustIngest(t *testing.T, d *ForkDetector, h domain.Header) []domain.Outcome {
	t.Helper()
	out, err := d.Ingest(h)
	if err != nil {
		t.Fatalf("Ingest(#%d) error = %v", h.Number, err)
	}
	return out
}

func kinds(outs []domain.Outcome) []domain.OutcomeKind {
	k := make([]domain.OutcomeKind, len(outs))
	for i, o := range outs {
		k[i] = o.Kind
	}
	return k
}

func TestIngest_LinkedSequenceAlwaysExtends(t *testing.T) {
	d := newDetector()

	for i, h := range chain("a", 1, 40, common.Hash{0x01}, 100) {
		out := mustIngest(t, d, h)
		if len(out) != 1 || out[0].Kind != domain.OutcomeExtended {
			t.Fatalf("header %d: outcomes = %v", i, out)
		}
		snap := d.Snapshot()
		if snap.Tip.Number != h.Number || snap.Tip.Hash != h.Hash {
			t.Fatalf("tip = %d, want %d", snap.Tip.Number, h.Number)
		}
		if i > 0 && out[0].BlockTime != 14 {
			t.Errorf("BlockTime = %d, want 14", out[0].BlockTime)
		}
	}
}

func TestIngest_ReorgFromHeavierBranch(t *testing.T) {
	d := newDetector()

	canon := chain("a", 1, 3, common.Hash{0x01}, 100) // A=1, B=2, C=3
	for _, h := range canon {
		mustIngest(t, d, h)
	}
	a, c := canon[0], canon[2]

	dPrime := header("b", 2, a.Hash, 150)
	dPrime.Timestamp++
	out := mustIngest(t, d, dPrime)
	if !reflect.DeepEqual(kinds(out), []domain.OutcomeKind{domain.OutcomeNewBranch}) {
		t.Fatalf("D' outcomes = %v", out)
	}

	ePrime := header("b", 3, dPrime.Hash, 150)
	out = mustIngest(t, d, ePrime)
	if len(out) != 1 || out[0].Kind != domain.OutcomeReorg {
		t.Fatalf("E' outcomes = %v", out)
	}

	ev := out[0].Fork
	if ev.Depth != 2 {
		t.Errorf("Depth = %d, want 2", ev.Depth)
	}
	if ev.CommonAncestorNumber != a.Number {
		t.Errorf("CommonAncestorNumber = %d, want %d", ev.CommonAncestorNumber, a.Number)
	}
	if ev.CompetingHash != ePrime.Hash || ev.ReplacedHash != c.Hash {
		t.Errorf("hashes = %s / %s", ev.CompetingHash, ev.ReplacedHash)
	}
	if ev.ID != "fork-1" {
		t.Errorf("ID = %s", ev.ID)
	}

	snap := d.Snapshot()
	if snap.Tip.Hash != ePrime.Hash {
		t.Errorf("tip = %s, want E'", snap.Tip.Hash)
	}
	if snap.ForkCount != 1 || snap.LastFork == nil || snap.LastFork.ID != ev.ID {
		t.Errorf("snapshot fork stats = %+v", snap)
	}
	if snap.ActiveForks != 1 {
		t.Errorf("replaced suffix should remain as one branch, ActiveForks = %d", snap.ActiveForks)
	}
}

func TestIngest_EqualWeightKeepsCanonical(t *testing.T) {
	d := newDetector()

	canon := chain("a", 1, 3, common.Hash{0x01}, 100)
	for _, h := range canon {
		mustIngest(t, d, h)
	}

	side := chain("b", 2, 3, canon[0].Hash, 100)
	side[0].Timestamp++
	for _, h := range side {
		out := mustIngest(t, d, h)
		if len(out) != 1 || out[0].Kind != domain.OutcomeNewBranch {
			t.Fatalf("#%d outcomes = %v, want NewBranch", h.Number, out)
		}
	}

	if tip := d.Snapshot().Tip; tip.Hash != canon[2].Hash {
		t.Errorf("tie must keep canonical tip, got %s", tip.Hash)
	}
}

func TestIngest_LongerBranchWinsThenHeavierWinsBack(t *testing.T) {
	d := newDetector()

	canon := chain("a", 1, 3, common.Hash{0x01}, 100)
	for _, h := range canon {
		mustIngest(t, d, h)
	}

	side := chain("b", 2, 4, canon[0].Hash, 1)
	side[0].Timestamp++
	var last []domain.Outcome
	for _, h := range side {
		last = mustIngest(t, d, h)
	}
	if len(last) != 1 || last[0].Kind != domain.OutcomeReorg || last[0].Fork.Depth != 2 {
		t.Fatalf("longer branch should reorg with depth 2, got %v", last)
	}

	// The demoted chain grows to equal length with more work and wins back.
	back := header("a", 4, canon[2].Hash, 100)
	out := mustIngest(t, d, back)
	if len(out) != 1 || out[0].Kind != domain.OutcomeReorg {
		t.Fatalf("outcomes = %v, want Reorg", out)
	}
	if out[0].Fork.Depth != 3 {
		t.Errorf("Depth = %d, want 3", out[0].Fork.Depth)
	}
	if tip := d.Snapshot().Tip; tip.Hash != back.Hash {
		t.Errorf("tip = %s, want a-4", tip.Hash)
	}
	if got := len(d.History()); got != 2 {
		t.Errorf("History len = %d, want 2", got)
	}
}

func TestIngest_DuplicateIsStale(t *testing.T) {
	d := newDetector()
	h := header("a", 1, common.Hash{0x01}, 100)

	out := mustIngest(t, d, h)
	if out[0].Kind != domain.OutcomeExtended {
		t.Fatalf("first ingest = %v", out)
	}
	before := d.Snapshot()
	canonBefore := d.Canonical()

	out = mustIngest(t, d, h)
	if len(out) != 1 || out[0].Kind != domain.OutcomeStale {
		t.Fatalf("second ingest = %v, want Stale", out)
	}
	if !reflect.DeepEqual(before, d.Snapshot()) || !reflect.DeepEqual(canonBefore, d.Canonical()) {
		t.Error("state changed on duplicate")
	}
}

func TestIngest_MissedBlocks(t *testing.T) {
	d := newDetector()
	tip := header("a", 100, common.Hash{0x01}, 100)
	mustIngest(t, d, tip)

	far := header("a", 105, hash("a", 104), 100)
	out := mustIngest(t, d, far)

	want := []domain.OutcomeKind{domain.OutcomeMissedBlocks, domain.OutcomeNewBranch}
	if !reflect.DeepEqual(kinds(out), want) {
		t.Fatalf("outcomes = %v", out)
	}
	if out[0].Missed != 4 {
		t.Errorf("Missed = %d, want 4", out[0].Missed)
	}

	snap := d.Snapshot()
	if snap.MissedBlocks != 4 {
		t.Errorf("missed counter = %d, want 4", snap.MissedBlocks)
	}
	if snap.Tip.Number != 100 {
		t.Errorf("tip = %d, want 100", snap.Tip.Number)
	}
}

func TestIngest_BackfillAdoptsOrphan(t *testing.T) {
	d := newDetector()
	full := chain("a", 100, 103, common.Hash{0x01}, 100)
	mustIngest(t, d, full[0])

	out := mustIngest(t, d, full[3])
	if out[0].Kind != domain.OutcomeMissedBlocks || out[0].Missed != 2 {
		t.Fatalf("outcomes = %v", out)
	}

	mustIngest(t, d, full[1])
	out = mustIngest(t, d, full[2])
	if len(out) != 1 || out[0].Kind != domain.OutcomeExtended || out[0].Adopted != 1 {
		t.Fatalf("outcomes = %v, want Extended with 1 adopted", out)
	}

	snap := d.Snapshot()
	if snap.Tip.Number != 103 || snap.ActiveForks != 0 {
		t.Errorf("tip = %d, forks = %d", snap.Tip.Number, snap.ActiveForks)
	}

	// The head shows up again once backfill is done.
	out = mustIngest(t, d, full[3])
	if out[0].Kind != domain.OutcomeStale {
		t.Errorf("re-ingest = %v, want Stale", out)
	}
}

func TestIngest_OrphanParentsJoinOnePath(t *testing.T) {
	d := newDetector()
	full := chain("a", 100, 105, common.Hash{0x01}, 100)
	mustIngest(t, d, full[0])

	out := mustIngest(t, d, full[5])
	if out[0].Kind != domain.OutcomeMissedBlocks || out[0].Missed != 4 {
		t.Fatalf("outcomes = %v", out)
	}

	// Parents arriving newest first are below the highest height seen, so
	// they are not counted as missed again.
	for _, h := range []domain.Header{full[4], full[3], full[2]} {
		out = mustIngest(t, d, h)
		if !reflect.DeepEqual(kinds(out), []domain.OutcomeKind{domain.OutcomeNewBranch}) {
			t.Fatalf("Ingest(#%d) = %v, want NewBranch only", h.Number, out)
		}
	}

	snap := d.Snapshot()
	if snap.ActiveForks != 1 || snap.MissedBlocks != 4 {
		t.Fatalf("forks = %d missed = %d, want one orphan path and 4", snap.ActiveForks, snap.MissedBlocks)
	}
	root, ok := d.OrphanRoot(full[5].Hash)
	if !ok || root.Hash != full[2].Hash {
		t.Fatalf("OrphanRoot() = #%d, %v, want #102", root.Number, ok)
	}
	if !d.Known(full[3].Hash) || d.Known(full[1].Hash) {
		t.Error("Known() disagrees with the ingested set")
	}

	out = mustIngest(t, d, full[1])
	if len(out) != 1 || out[0].Kind != domain.OutcomeExtended || out[0].Adopted != 4 {
		t.Fatalf("outcomes = %v, want Extended with 4 adopted", out)
	}
	if tip := d.Snapshot().Tip.Number; tip != 105 {
		t.Errorf("tip = %d, want 105", tip)
	}
	if _, ok := d.OrphanRoot(full[5].Hash); ok {
		t.Error("OrphanRoot() found a canonical header")
	}
}

func TestReanchor(t *testing.T) {
	d := newDetector()
	canon := chain("a", 1, 5, common.Hash{0x01}, 100)
	for _, h := range canon {
		mustIngest(t, d, h)
	}
	ahead := chain("a", 400, 402, hash("a", 399), 100)
	for _, h := range ahead {
		mustIngest(t, d, h)
	}

	if d.Reanchor(canon[4].Hash) {
		t.Error("Reanchor() accepted a canonical header")
	}
	if !d.Reanchor(ahead[1].Hash) {
		t.Fatal("Reanchor() = false for an orphan header")
	}

	snap := d.Snapshot()
	if snap.Tip.Hash != ahead[1].Hash || snap.CanonicalLength != 2 || snap.ActiveForks != 0 {
		t.Fatalf("tip = #%d len = %d forks = %d, want #401, 2, 0", snap.Tip.Number, snap.CanonicalLength, snap.ActiveForks)
	}
	if snap.MissedBlocks != 394 {
		t.Errorf("missed = %d, want 394 kept across restart", snap.MissedBlocks)
	}

	out := mustIngest(t, d, ahead[2])
	if len(out) != 1 || out[0].Kind != domain.OutcomeExtended {
		t.Errorf("outcomes = %v, want Extended", out)
	}
}

func TestIngest_ValidationLeavesStateUnchanged(t *testing.T) {
	d := newDetector()
	parent := header("a", 10, common.Hash{0x01}, 100)
	mustIngest(t, d, parent)
	before := d.Snapshot()

	badNumber := header("a", 12, parent.Hash, 100)
	badTime := header("a", 11, parent.Hash, 100)
	badTime.Timestamp = parent.Timestamp
	noHash := header("a", 11, parent.Hash, 100)
	noHash.Hash = common.Hash{}
	noParent := header("a", 11, common.Hash{}, 100)

	for name, h := range map[string]domain.Header{
		"number gap to known parent": badNumber,
		"timestamp not increasing":   badTime,
		"empty hash":                 noHash,
		"empty parent hash":          noParent,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := d.Ingest(h)
			if !apperror.IsCode(err, apperror.CodeInvalidBlockHeader) {
				t.Fatalf("err = %v, want INVALID_BLOCK_HEADER", err)
			}
			if !reflect.DeepEqual(before, d.Snapshot()) {
				t.Error("state changed after validation error")
			}
		})
	}
}

func TestIngest_ForkResolvesAfterDepth(t *testing.T) {
	d := NewForkDetector(DetectorConfig{RetentionWindow: 64, MaxBranches: 4, HistorySize: 8, ResolveDepth: 3})

	canon := chain("a", 1, 3, common.Hash{0x01}, 100)
	for _, h := range canon {
		mustIngest(t, d, h)
	}
	side := chain("b", 2, 4, canon[0].Hash, 100)
	side[0].Timestamp++
	for _, h := range side {
		mustIngest(t, d, h)
	}
	if d.History()[0].Resolved {
		t.Fatal("fresh fork should not be resolved")
	}

	more := chain("b", 5, 7, side[2].Hash, 100)
	for i, h := range more {
		mustIngest(t, d, h)
		resolved := d.History()[0].Resolved
		if want := i == 2; resolved != want {
			t.Errorf("after #%d resolved = %v, want %v", h.Number, resolved, want)
		}
	}
}

func TestIngest_HistoryBounded(t *testing.T) {
	d := NewForkDetector(DetectorConfig{RetentionWindow: 256, MaxBranches: 16, HistorySize: 2, ResolveDepth: 12})

	parent := common.Hash{0x01}
	base := header("a", 1, parent, 100)
	mustIngest(t, d, base)
	tip := base

	// Each round: canonical grows by one, then a two-header branch from the
	// previous tip outruns it.
	for round := 0; round < 4; round++ {
		tag := fmt.Sprintf("r%d", round)
		next := header(tag+"c", tip.Number+1, tip.Hash, 100)
		mustIngest(t, d, next)
		alt := chain(tag+"x", tip.Number+1, tip.Number+2, tip.Hash, 100)
		alt[0].Timestamp++
		var out []domain.Outcome
		for _, h := range alt {
			out = mustIngest(t, d, h)
		}
		if out[0].Kind != domain.OutcomeReorg {
			t.Fatalf("round %d: outcomes = %v", round, out)
		}
		tip = alt[1]
	}

	if got := len(d.History()); got != 2 {
		t.Errorf("History len = %d, want 2", got)
	}
	if snap := d.Snapshot(); snap.ForkCount != 4 {
		t.Errorf("ForkCount = %d, want 4", snap.ForkCount)
	}
}
