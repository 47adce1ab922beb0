// Package merge implements the merge-conflict negotiation session (spec
// §3, §4.G). No gomind analog carries this concern; built directly from
// spec §4.G/§8 scenario 6, using plain slices rather than linked lists
// per the spec's own redesign guidance (§9).
package merge

import (
	"time"

	"github.com/ckoons/argo-sub001/rterrors"
)

// Conflict is one unresolved region between two branches (spec §6's
// merge-conflict JSON shape).
type Conflict struct {
	File      string `json:"file"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	ContentA  string `json:"content_a"`
	ContentB  string `json:"content_b"`

	proposals  []*Proposal
	resolution *Proposal
}

// Resolved reports whether this conflict has an accepted resolution.
func (c *Conflict) Resolved() bool {
	return c.resolution != nil
}

// ConflictJSON is spec §6's pinned merge-conflict review shape, rendered
// without the negotiation-internal proposal/resolution bookkeeping.
type ConflictJSON struct {
	File      string `json:"file"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	ContentA  string `json:"content_a"`
	ContentB  string `json:"content_b"`
}

// ToJSON renders the conflict's review shape for a caller deciding between
// content_a and content_b.
func (c *Conflict) ToJSON() ConflictJSON {
	return ConflictJSON{
		File:      c.File,
		LineStart: c.LineStart,
		LineEnd:   c.LineEnd,
		ContentA:  c.ContentA,
		ContentB:  c.ContentB,
	}
}

// Proposal is one CI's suggested resolution for a conflict.
type Proposal struct {
	CIName     string
	Content    string
	Confidence int
	Timestamp  time.Time
}

// clampConfidence enforces spec §4.G's [0,100] range, coercing any value
// outside it to the documented default of 50. Zero is inside the range
// and is kept as 0.
func clampConfidence(v int) int {
	if v < 0 || v > 100 {
		return 50
	}
	return v
}

// Negotiation is one merge session keyed by (branchA, branchB).
type Negotiation struct {
	SessionID   string
	BranchA     string
	BranchB     string
	Conflicts   []*Conflict
	Proposals   []*Proposal
	StartedAt   time.Time
	CompletedAt time.Time
}

// New creates a Negotiation for sessionID between branchA and branchB.
func New(sessionID, branchA, branchB string) *Negotiation {
	return &Negotiation{
		SessionID: sessionID,
		BranchA:   branchA,
		BranchB:   branchB,
		StartedAt: time.Now(),
	}
}

// AddConflict registers a new unresolved conflict region.
func (n *Negotiation) AddConflict(file string, lineStart, lineEnd int, contentA, contentB string) *Conflict {
	c := &Conflict{File: file, LineStart: lineStart, LineEnd: lineEnd, ContentA: contentA, ContentB: contentB}
	n.Conflicts = append(n.Conflicts, c)
	return c
}

// ProposeResolution records a proposal from ciName for conflict, clamping
// its confidence per spec §4.G.
func (n *Negotiation) ProposeResolution(conflict *Conflict, ciName, content string, confidence int) *Proposal {
	p := &Proposal{
		CIName:     ciName,
		Content:    content,
		Confidence: clampConfidence(confidence),
		Timestamp:  time.Now(),
	}
	n.Proposals = append(n.Proposals, p)
	conflict.proposals = append(conflict.proposals, p)
	return p
}

// SelectBestProposal returns conflict's highest-confidence proposal,
// ties broken by first-submitted (spec §9: the source's "first proposal"
// shortcut is explicitly NOT ported; every proposal is scanned).
func SelectBestProposal(conflict *Conflict) (*Proposal, error) {
	if len(conflict.proposals) == 0 {
		return nil, rterrors.New("merge.SelectBestProposal", rterrors.KindInvalidValue, "no proposals for conflict")
	}
	best := conflict.proposals[0]
	for _, p := range conflict.proposals[1:] {
		if p.Confidence > best.Confidence {
			best = p
		}
	}
	return best, nil
}

// AcceptResolution marks conflict resolved by the given proposal.
func (n *Negotiation) AcceptResolution(conflict *Conflict, p *Proposal) {
	conflict.resolution = p
}

// ResolveBest selects and accepts conflict's best proposal in one step.
func (n *Negotiation) ResolveBest(conflict *Conflict) (*Proposal, error) {
	best, err := SelectBestProposal(conflict)
	if err != nil {
		return nil, err
	}
	n.AcceptResolution(conflict, best)
	return best, nil
}

// IsComplete reports whether every registered conflict has a resolution.
func (n *Negotiation) IsComplete() bool {
	if len(n.Conflicts) == 0 {
		return false
	}
	for _, c := range n.Conflicts {
		if !c.Resolved() {
			return false
		}
	}
	return true
}

// ResolvedCount returns how many conflicts currently carry a resolution.
func (n *Negotiation) ResolvedCount() int {
	count := 0
	for _, c := range n.Conflicts {
		if c.Resolved() {
			count++
		}
	}
	return count
}

// Finalize marks the negotiation complete, failing if any conflict is
// still unresolved (spec §4.H's finalize_merge invariant).
func (n *Negotiation) Finalize() error {
	if !n.IsComplete() {
		return rterrors.Wrap("merge.Finalize", rterrors.KindInvalid, rterrors.ErrNegotiationOpen).WithID(n.SessionID)
	}
	n.CompletedAt = time.Now()
	return nil
}

// JSON is the negotiation summary shape exposed by orchestrator status
// reporting.
type JSON struct {
	SessionID     string `json:"session_id"`
	BranchA       string `json:"branch_a"`
	BranchB       string `json:"branch_b"`
	ConflictCount int    `json:"conflict_count"`
	ResolvedCount int    `json:"resolved_count"`
	IsComplete    bool   `json:"is_complete"`
}

// ToJSON renders the negotiation summary (spec §8 scenario 6's
// resolved_count observation point).
func (n *Negotiation) ToJSON() JSON {
	return JSON{
		SessionID:     n.SessionID,
		BranchA:       n.BranchA,
		BranchB:       n.BranchB,
		ConflictCount: len(n.Conflicts),
		ResolvedCount: n.ResolvedCount(),
		IsComplete:    n.IsComplete(),
	}
}
