// Package app contains the fork detector service.
package app

import (
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/fd1az/mordor-monitor/business/chain/domain"
)

// DetectorConfig bounds the detector's memory.
type DetectorConfig struct {
	RetentionWindow int
	MaxBranches     int
	HistorySize     int
	ResolveDepth    uint64
}

// DefaultDetectorConfig returns the production defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		RetentionWindow: 256,
		MaxBranches:     16,
		HistorySize:     64,
		ResolveDepth:    12,
	}
}

// ForkDetector classifies incoming headers against the canonical chain and
// its competing branches. All methods are safe for concurrent use; Ingest is
// expected to be called from a single poll loop.
type ForkDetector struct {
	cfg DetectorConfig
	now func() time.Time
	ids func() string

	mu        sync.RWMutex
	state     *domain.ChainState
	history   []domain.ForkEvent
	forkCount uint64
	missed    uint64
	highest   uint64 // highest number ingested, any branch
}

// NewForkDetector creates a detector with empty state.
func NewForkDetector(cfg DetectorConfig) *ForkDetector {
	return &ForkDetector{
		cfg:   cfg,
		now:   time.Now,
		ids:   func() string { return uuid.NewString() },
		state: domain.NewChainState(cfg.RetentionWindow, cfg.MaxBranches),
	}
}

// Ingest classifies h and updates the chain state. It may report several
// outcomes; MissedBlocks always precedes the classification. A validation
// error leaves the state untouched.
func (d *ForkDetector) Ingest(h domain.Header) ([]domain.Outcome, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tip, ok := d.state.Tip()
	if !ok {
		d.state.Append(h.Clone())
		d.highest = h.Number
		return []domain.Outcome{domain.Extended(0, 0)}, nil
	}

	if d.state.Contains(h.Hash) {
		return []domain.Outcome{domain.Stale()}, nil
	}

	parentLoc, parentKnown := d.state.Locate(h.ParentHash)
	var parent domain.Header
	if parentKnown {
		parent, _ = d.state.Lookup(h.ParentHash)
		if err := h.ValidateChild(parent); err != nil {
			return nil, err
		}
	}

	h = h.Clone()
	var outcomes []domain.Outcome

	// Heights at or below one already seen were counted when first skipped.
	seen := max(tip.Number, d.highest)
	if !parentKnown && h.Number > seen+1 {
		gap := h.Number - seen - 1
		d.missed += gap
		outcomes = append(outcomes, domain.MissedBlocks(gap))
	}
	d.highest = max(d.highest, h.Number)

	switch {
	case parentKnown && parentLoc.Canonical && parentLoc.Index == d.state.Len()-1:
		d.state.Append(h)
		adopted := d.adoptOrphans()
		outcomes = append(outcomes, domain.Extended(h.Timestamp-tip.Timestamp, adopted))
		if adopted > 0 {
			outcomes = append(outcomes, d.evaluateAll()...)
		}
		d.resolveForks()

	case parentKnown && parentLoc.Canonical:
		b := d.state.StartBranch(h, parent.Ref())
		d.extendWithOrphans(b)
		outcomes = append(outcomes, d.evaluate(b, tip))

	case parentKnown:
		b := d.state.ExtendBranch(parentLoc, h)
		d.extendWithOrphans(b)
		if b.IsOrphan() {
			outcomes = append(outcomes, domain.NewBranch())
		} else {
			outcomes = append(outcomes, d.evaluate(b, tip))
		}

	default:
		b := d.state.AddOrphan(h)
		d.extendWithOrphans(b)
		outcomes = append(outcomes, domain.NewBranch())
	}

	return outcomes, nil
}

// OrphanRoot returns the first header of the orphan path holding hash, the
// header whose parent is still unknown.
func (d *ForkDetector) OrphanRoot(hash common.Hash) (domain.Header, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	loc, ok := d.state.Locate(hash)
	if !ok || loc.Canonical || !loc.Branch.IsOrphan() {
		return domain.Header{}, false
	}
	return loc.Branch.First().Clone(), true
}

// Known reports whether hash is held anywhere in the chain state.
func (d *ForkDetector) Known(hash common.Hash) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Contains(hash)
}

// Reanchor discards the canonical chain and every branch, and restarts the
// canonical chain from the orphan path ending at hash. It reports false when
// hash is not on an orphan path. Fork history and counters are kept.
func (d *ForkDetector) Reanchor(hash common.Hash) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	loc, ok := d.state.Locate(hash)
	if !ok || loc.Canonical || !loc.Branch.IsOrphan() {
		return false
	}
	d.state.Restart(loc.Branch.Headers[:loc.Index+1])
	d.resolveForks()
	return true
}

// adoptOrphans pulls orphan paths that now hang off the tip onto the
// canonical chain. Siblings of the adopted path stay as forks from the old
// tip and are weighed by evaluateAll.
func (d *ForkDetector) adoptOrphans() int {
	adopted := 0
	for {
		tip, _ := d.state.Tip()
		orphans := d.state.TakeOrphansOf(tip.Hash)
		if len(orphans) == 0 {
			return adopted
		}

		linked := false
		for _, o := range orphans {
			if !linked && validPath(tip, o.Headers) {
				for _, h := range o.Headers {
					d.state.Append(h)
				}
				adopted += len(o.Headers)
				linked = true
				continue
			}
			if validPath(tip, o.Headers) {
				b := d.state.StartBranch(o.Headers[0], tip.Ref())
				for _, h := range o.Headers[1:] {
					b.Headers = append(b.Headers, h)
				}
			}
		}
		if !linked {
			return adopted
		}
	}
}

// extendWithOrphans grows b with the longest valid orphan path hanging off
// its tip.
func (d *ForkDetector) extendWithOrphans(b *domain.Branch) {
	for {
		tip := b.Tip()
		orphans := d.state.TakeOrphansOf(tip.Hash)
		grown := false
		for _, o := range orphans {
			if validPath(tip, o.Headers) {
				b.Headers = append(b.Headers, o.Headers...)
				grown = true
				break
			}
		}
		if !grown {
			return
		}
	}
}

func validPath(parent domain.Header, headers []domain.Header) bool {
	for _, h := range headers {
		if h.ParentHash != parent.Hash || h.ValidateChild(parent) != nil {
			return false
		}
		parent = h
	}
	return true
}

// evaluate weighs b against the canonical suffix after its ancestor and
// reorganizes when b is strictly heavier.
func (d *ForkDetector) evaluate(b *domain.Branch, oldTip domain.Header) domain.Outcome {
	suffix, ok := d.state.SuffixAfter(b.Ancestor.Hash)
	if !ok {
		return domain.NewBranch()
	}
	if !domain.WeightOf(b.Headers).Exceeds(domain.WeightOf(suffix)) {
		return domain.NewBranch()
	}

	ancestor := *b.Ancestor
	if _, ok := d.state.Reorganize(b.Root); !ok {
		return domain.NewBranch()
	}
	d.adoptOrphans()

	newTip, _ := d.state.Tip()
	ev := domain.ForkEvent{
		ID:                   d.ids(),
		DetectedAt:           d.now(),
		DetectedAtHeight:     newTip.Number,
		CommonAncestorNumber: ancestor.Number,
		Depth:                uint32(oldTip.Number - ancestor.Number),
		CompetingHash:        newTip.Hash,
		ReplacedHash:         oldTip.Hash,
	}
	d.recordFork(ev)
	d.resolveForks()

	return domain.Reorg(ev)
}

// evaluateAll re-weighs every fork after the canonical chain grew through
// orphan adoption; adoption can leave sibling paths that outweigh it.
func (d *ForkDetector) evaluateAll() []domain.Outcome {
	var out []domain.Outcome
	for _, b := range d.state.Branches() {
		if b.IsOrphan() {
			continue
		}
		live, ok := d.state.Branch(b.Root)
		if !ok {
			continue
		}
		tip, _ := d.state.Tip()
		if o := d.evaluate(live, tip); o.Kind == domain.OutcomeReorg {
			out = append(out, o)
		}
	}
	return out
}

func (d *ForkDetector) recordFork(ev domain.ForkEvent) {
	d.forkCount++
	d.history = append(d.history, ev)
	if over := len(d.history) - d.cfg.HistorySize; over > 0 {
		d.history = slices.Delete(d.history, 0, over)
	}
}

func (d *ForkDetector) resolveForks() {
	tip, ok := d.state.Tip()
	if !ok {
		return
	}
	for i := range d.history {
		ev := &d.history[i]
		if !ev.Resolved && tip.Number >= ev.DetectedAtHeight+d.cfg.ResolveDepth {
			ev.Resolved = true
		}
	}
}

// Snapshot returns a copy of the detector's current view.
func (d *ForkDetector) Snapshot() domain.ChainSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap := domain.ChainSnapshot{
		CanonicalLength: d.state.Len(),
		ActiveForks:     d.state.BranchCount(),
		ForkCount:       d.forkCount,
		MissedBlocks:    d.missed,
	}
	if tip, ok := d.state.Tip(); ok {
		snap.Tip = tip.Clone()
		snap.HasTip = true
	}
	if n := len(d.history); n > 0 {
		last := d.history[n-1]
		snap.LastFork = &last
	}
	return snap
}

// History returns recorded fork events, oldest first.
func (d *ForkDetector) History() []domain.ForkEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.history)
}

// Canonical returns a copy of the canonical window.
func (d *ForkDetector) Canonical() []domain.Header {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Canonical()
}

// Branches returns copies of the tracked branches.
func (d *ForkDetector) Branches() []domain.Branch {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Branches()
}
