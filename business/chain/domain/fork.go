package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ForkEvent records one reorganization of the canonical chain.
type ForkEvent struct {
	ID                   string
	DetectedAt           time.Time
	DetectedAtHeight     uint64 // canonical tip number right after the reorg
	CommonAncestorNumber uint64
	Depth                uint32 // canonical headers replaced
	CompetingHash        common.Hash
	ReplacedHash         common.Hash
	Resolved             bool
}

func (e ForkEvent) String() string {
	return fmt.Sprintf("fork %s: depth %d at ancestor #%d, %s replaced by %s",
		e.ID, e.Depth, e.CommonAncestorNumber,
		e.ReplacedHash.TerminalString(), e.CompetingHash.TerminalString())
}

// OutcomeKind classifies what ingesting a header did.
type OutcomeKind int

const (
	OutcomeExtended OutcomeKind = iota + 1
	OutcomeNewBranch
	OutcomeReorg
	OutcomeStale
	OutcomeMissedBlocks
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeExtended:
		return "extended"
	case OutcomeNewBranch:
		return "new_branch"
	case OutcomeReorg:
		return "reorg"
	case OutcomeStale:
		return "stale"
	case OutcomeMissedBlocks:
		return "missed_blocks"
	default:
		return "unknown"
	}
}

// Outcome is one classification result. Only the fields relevant to Kind
// are set.
type Outcome struct {
	Kind OutcomeKind

	// Extended: seconds since the previous tip (0 for the first header) and
	// orphan headers pulled onto the chain behind this one.
	BlockTime uint64
	Adopted   int

	// MissedBlocks: heights skipped between the tip and this header.
	Missed uint64

	// Reorg
	Fork *ForkEvent
}

// Extended reports a header appended to the canonical tip.
func Extended(blockTime uint64, adopted int) Outcome {
	return Outcome{Kind: OutcomeExtended, BlockTime: blockTime, Adopted: adopted}
}

// NewBranch reports a header kept off the canonical chain.
func NewBranch() Outcome {
	return Outcome{Kind: OutcomeNewBranch}
}

// Reorg reports that a branch replaced the canonical suffix.
func Reorg(ev ForkEvent) Outcome {
	return Outcome{Kind: OutcomeReorg, Fork: &ev}
}

// Stale reports a header that was already known.
func Stale() Outcome {
	return Outcome{Kind: OutcomeStale}
}

// MissedBlocks reports n heights skipped before this header.
func MissedBlocks(n uint64) Outcome {
	return Outcome{Kind: OutcomeMissedBlocks, Missed: n}
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeMissedBlocks:
		return fmt.Sprintf("missed_blocks(%d)", o.Missed)
	case OutcomeReorg:
		return fmt.Sprintf("reorg(depth=%d)", o.Fork.Depth)
	default:
		return o.Kind.String()
	}
}

// ChainSnapshot is a point-in-time copy of detector state for readers.
type ChainSnapshot struct {
	Tip             Header
	HasTip          bool
	CanonicalLength int
	ActiveForks     int
	ForkCount       uint64
	MissedBlocks    uint64
	LastFork        *ForkEvent
}
