// Package memory implements the bounded, typed memory digest attached to
// a CI session (spec §3, §4.B): a hard cap of half the model's context
// window, sunset/sunrise handoff notes, relevance-scored items, and a
// breadcrumb trail. It generalizes core.MemoryStore's mutex-guarded,
// TTL-aware map into a capped, typed item list.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ckoons/argo-sub001/rterrors"
)

// ItemType classifies a MemoryItem per spec §3.
type ItemType string

const (
	ItemFact         ItemType = "fact"
	ItemDecision     ItemType = "decision"
	ItemApproach     ItemType = "approach"
	ItemError        ItemType = "error"
	ItemSuccess      ItemType = "success"
	ItemBreadcrumb   ItemType = "breadcrumb"
	ItemRelationship ItemType = "relationship"
)

const (
	maxItems       = 100
	maxBreadcrumbs = 20
)

// Relevance tracks how important and how recently accessed an item is.
type Relevance struct {
	Score             float64
	LastAccessed      time.Time
	AccessCount       int
	CIMarkedImportant bool
}

// Item is one unit of bounded memory.
type Item struct {
	ID        int64
	Type      ItemType
	Content   []byte
	Creator   string
	CreatedAt time.Time
	Relevance Relevance
}

// Digest is the per-session bounded memory store. All mutation methods
// are atomic: on failure the digest is left exactly as it was before the
// call (spec §8's boundary-behavior invariant).
type Digest struct {
	mu sync.RWMutex

	sessionID   string
	ciName      string
	contextLim  int
	maxAllowed  int
	items       []*Item
	breadcrumbs []string
	sunsetNotes string
	sunriseBrief string
	createdAt   time.Time

	nextItemID int64

	// importedItemCount carries item_count across a ToJSON/FromJSON round
	// trip: FromJSON does not reconstruct item bodies (they aren't part of
	// the stable shape), so ToJSON adds this back in rather than reporting
	// len(items) == 0 for a restored digest.
	importedItemCount int
}

// New creates a Digest for ciName in session sessionID with a context
// window of contextLimit tokens; max_allowed is half of that, per spec §3.
func New(sessionID, ciName string, contextLimit int) *Digest {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Digest{
		sessionID:  sessionID,
		ciName:     ciName,
		contextLim: contextLimit,
		maxAllowed: contextLimit / 2,
		createdAt:  time.Now(),
	}
}

// SessionID returns the digest's session identifier.
func (d *Digest) SessionID() string { return d.sessionID }

// MaxAllowed returns the hard size cap (half the configured context limit).
func (d *Digest) MaxAllowed() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.maxAllowed
}

// size computes the current occupied size; caller must hold at least a
// read lock.
func (d *Digest) size() int {
	total := len(d.sunsetNotes) + len(d.sunriseBrief)
	for _, it := range d.items {
		total += len(it.Content)
	}
	return total
}

// Size returns the digest's current occupied size.
func (d *Digest) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.size()
}

// AddItem appends a new MemoryItem if doing so would not exceed the size
// or item-count cap; otherwise the digest is left unchanged and a
// protocol.size or protocol.queue_full error is returned.
func (d *Digest) AddItem(itemType ItemType, content []byte, creator string) (*Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.items) >= maxItems {
		return nil, rterrors.New("memory.AddItem", rterrors.KindQueueFull, "item count at cap").WithID(d.sessionID)
	}
	if d.size()+len(content) > d.maxAllowed {
		return nil, rterrors.New("memory.AddItem", rterrors.KindSize, "would exceed max_allowed").WithID(d.sessionID)
	}

	d.nextItemID++
	item := &Item{
		ID:        d.nextItemID,
		Type:      itemType,
		Content:   append([]byte(nil), content...),
		Creator:   creator,
		CreatedAt: time.Now(),
		Relevance: Relevance{Score: 1.0, LastAccessed: time.Now()},
	}
	d.items = append(d.items, item)
	return item, nil
}

// AddBreadcrumb appends a short progress note, rejecting the 21st.
func (d *Digest) AddBreadcrumb(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.breadcrumbs) >= maxBreadcrumbs {
		return rterrors.New("memory.AddBreadcrumb", rterrors.KindQueueFull, "breadcrumb count at cap").WithID(d.sessionID)
	}
	d.breadcrumbs = append(d.breadcrumbs, text)
	return nil
}

// SelectItem marks an item as accessed, bumping its access metadata, and
// returns it.
func (d *Digest) SelectItem(id int64) (*Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, it := range d.items {
		if it.ID == id {
			it.Relevance.LastAccessed = time.Now()
			it.Relevance.AccessCount++
			return it, nil
		}
	}
	return nil, rterrors.New("memory.SelectItem", rterrors.KindInvalidValue, "no such item").WithID(d.sessionID)
}

// SuggestByType returns up to max items of the given type, most recent
// first, without mutating access metadata.
func (d *Digest) SuggestByType(itemType ItemType, max int) []*Item {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Item
	for i := len(d.items) - 1; i >= 0 && len(out) < max; i-- {
		if d.items[i].Type == itemType {
			out = append(out, d.items[i])
		}
	}
	return out
}

// RelevantItems returns up to max items ordered by relevance score
// descending (ties broken by most recent), for context-augmentation
// callers that want "the most important things to remember" rather than
// a specific type (spec §4.A's "Relevant Context" prompt section).
func (d *Digest) RelevantItems(max int) []*Item {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ranked := append([]*Item(nil), d.items...)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Relevance.Score != ranked[j].Relevance.Score {
			return ranked[i].Relevance.Score > ranked[j].Relevance.Score
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	if len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}

// SetSunsetNotes replaces the handoff notes written at session end,
// rejecting the change if it would exceed the size cap.
func (d *Digest) SetSunsetNotes(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delta := len(text) - len(d.sunsetNotes)
	if d.size()+delta > d.maxAllowed {
		return rterrors.New("memory.SetSunsetNotes", rterrors.KindSize, "would exceed max_allowed").WithID(d.sessionID)
	}
	d.sunsetNotes = text
	return nil
}

// SetSunriseBrief replaces the handoff brief read at session start,
// rejecting the change if it would exceed the size cap.
func (d *Digest) SetSunriseBrief(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delta := len(text) - len(d.sunriseBrief)
	if d.size()+delta > d.maxAllowed {
		return rterrors.New("memory.SetSunriseBrief", rterrors.KindSize, "would exceed max_allowed").WithID(d.sessionID)
	}
	d.sunriseBrief = text
	return nil
}

// SunsetNotes returns the current handoff notes.
func (d *Digest) SunsetNotes() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sunsetNotes
}

// SunriseBrief returns the current handoff brief.
func (d *Digest) SunriseBrief() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sunriseBrief
}

// Breadcrumbs returns a copy of the breadcrumb trail.
func (d *Digest) Breadcrumbs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.breadcrumbs))
	copy(out, d.breadcrumbs)
	return out
}

// ItemCount returns the number of items currently held.
func (d *Digest) ItemCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.items)
}

// Update rejects an out-of-range relevance score; otherwise sets it.
func (r *Relevance) Update(score float64) error {
	if score < 0.0 || score > 1.0 {
		return rterrors.New("memory.Relevance.Update", rterrors.KindOutOfRange, "score out of [0,1]")
	}
	r.Score = score
	return nil
}

// Decay multiplies every item's relevance score by factor. The caller is
// responsible for 0 <= factor <= 1, matching spec §4.B.
func (d *Digest) Decay(factor float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, it := range d.items {
		it.Relevance.Score *= factor
	}
}

// Validate checks the size and count invariants without mutating state.
func (d *Digest) Validate() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.size() > d.maxAllowed {
		return rterrors.New("memory.Validate", rterrors.KindSize, "digest exceeds max_allowed").WithID(d.sessionID)
	}
	if len(d.items) > maxItems {
		return rterrors.New("memory.Validate", rterrors.KindSize, "item count exceeds cap").WithID(d.sessionID)
	}
	if len(d.breadcrumbs) > maxBreadcrumbs {
		return rterrors.New("memory.Validate", rterrors.KindQueueFull, "breadcrumb count exceeds cap").WithID(d.sessionID)
	}
	return nil
}

// JSON is the stable, round-trippable shape spec §6 pins.
type JSON struct {
	SessionID   string   `json:"session_id"`
	CIName      string   `json:"ci_name"`
	Created     int64    `json:"created"`
	ItemCount   int      `json:"item_count"`
	Breadcrumbs []string `json:"breadcrumbs"`
}

// ToJSON renders the digest's stable, observable shape.
func (d *Digest) ToJSON() JSON {
	d.mu.RLock()
	defer d.mu.RUnlock()
	breadcrumbs := make([]string, len(d.breadcrumbs))
	copy(breadcrumbs, d.breadcrumbs)
	return JSON{
		SessionID:   d.sessionID,
		CIName:      d.ciName,
		Created:     d.createdAt.Unix(),
		ItemCount:   len(d.items) + d.importedItemCount,
		Breadcrumbs: breadcrumbs,
	}
}

// FromJSON reconstructs the observable fields of a Digest from its JSON
// shape; the returned digest has no item bodies (they aren't part of the
// stable shape) but round-trips session_id/ci_name/created/item_count/
// breadcrumbs, satisfying spec §8's round-trip property.
func FromJSON(j JSON, contextLimit int) *Digest {
	d := New(j.SessionID, j.CIName, contextLimit)
	d.createdAt = time.Unix(j.Created, 0)
	d.breadcrumbs = append([]string(nil), j.Breadcrumbs...)
	d.nextItemID = int64(j.ItemCount)
	d.importedItemCount = j.ItemCount
	return d
}
