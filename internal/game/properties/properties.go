package properties

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Layer corresponds to the resolution-order categories for card and player
// properties. Effects in an earlier layer always apply before effects in a
// later layer, regardless of when they were created.
type Layer int

const (
	LayerCardDefinition Layer = 1 + iota
	LayerControl
	LayerAllegiance
	LayerPowerHealth
	LayerOther
)

var layerOrder = []Layer{
	LayerCardDefinition,
	LayerControl,
	LayerAllegiance,
	LayerPowerHealth,
	LayerOther,
}

var layerNames = map[Layer]string{
	LayerCardDefinition: "CARD_DEFINITION",
	LayerControl:        "CONTROL",
	LayerAllegiance:     "ALLEGIANCE",
	LayerPowerHealth:    "POWER_HEALTH",
	LayerOther:          "OTHER",
}

func (l Layer) String() string {
	if name, ok := layerNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// OpKind is the closed set of transformations a property may apply to the
// running value. Properties are data, not callbacks, so a property set can be
// snapshotted and replayed deterministically.
type OpKind string

const (
	// OpSet replaces the running numeric value.
	OpSet OpKind = "SET"
	// OpAdd adds to the running numeric value.
	OpAdd OpKind = "ADD"
	// OpSub subtracts from the running numeric value.
	OpSub OpKind = "SUB"
	// OpSetText replaces the running text value (controller, allegiance).
	OpSetText OpKind = "SET_TEXT"
)

// Value is the result of resolving a property key: either numeric or textual
// depending on the key.
type Value struct {
	Int  int
	Text string
}

// Duration describes when a property expires without being explicitly removed.
type Duration string

const (
	// DurationPermanent lasts until the property is removed or its source
	// leaves play.
	DurationPermanent Duration = "PERMANENT"
	// DurationEndOfTurn expires during the Cleanup phase of the current turn.
	DurationEndOfTurn Duration = "END_OF_TURN"
)

// Property is one active modification of a (target, key) pair. Properties are
// immutable after creation; they are superseded only by newer properties or
// removed on expiry.
type Property struct {
	ID        string
	TargetID  string
	Key       string
	Layer     Layer
	Op        OpKind
	Amount    int
	Text      string
	Timestamp uint64
	Duration  Duration
	SourceID  string
}

// apply folds the property into the running value.
func (p Property) apply(v Value) Value {
	switch p.Op {
	case OpSet:
		v.Int = p.Amount
	case OpAdd:
		v.Int += p.Amount
	case OpSub:
		v.Int -= p.Amount
	case OpSetText:
		v.Text = p.Text
	}
	return v
}

// Resolver stores live properties and computes effective values. Timestamps
// are allocated by the resolver so no two properties ever share one.
type Resolver struct {
	mu         sync.RWMutex
	properties map[string]Property
	nextStamp  uint64
}

// NewResolver constructs an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		properties: make(map[string]Property),
		nextStamp:  1,
	}
}

// NextTimestamp allocates a fresh, monotonically increasing timestamp.
func (r *Resolver) NextTimestamp() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := r.nextStamp
	r.nextStamp++
	return ts
}

// Add registers a property, assigning it a unique ID and timestamp, and
// returns the stored copy.
func (r *Resolver) Add(p Property) Property {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Layer == 0 {
		p.Layer = LayerOther
	}
	p.Timestamp = r.NextTimestamp()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties[p.ID] = p
	return p
}

// Remove deletes a property by ID. Removing an unknown ID is a no-op.
func (r *Resolver) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.properties, id)
}

// RemoveBySource deletes every property created by the given source and
// returns how many were removed. Used when a card leaves play.
func (r *Resolver) RemoveBySource(sourceID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, p := range r.properties {
		if p.SourceID == sourceID {
			delete(r.properties, id)
			removed++
		}
	}
	return removed
}

// ExpireEndOfTurn removes every property with end-of-turn duration and
// returns the removed properties. Called during Cleanup.
func (r *Resolver) ExpireEndOfTurn() []Property {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []Property
	for id, p := range r.properties {
		if p.Duration == DurationEndOfTurn {
			expired = append(expired, p)
			delete(r.properties, id)
		}
	}
	return expired
}

// collect returns all live properties matching (target, key) ordered with
// layer as the primary key and timestamp as the tie-break within a layer.
func (r *Resolver) collect(targetID, key string) []Property {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []Property
	for _, p := range r.properties {
		if p.TargetID == targetID && p.Key == key {
			matched = append(matched, p)
		}
	}
	ordered := make([]Property, 0, len(matched))
	for _, layer := range layerOrder {
		var inLayer []Property
		for _, p := range matched {
			if p.Layer == layer {
				inLayer = append(inLayer, p)
			}
		}
		// Insertion sort by timestamp; property counts per key are tiny.
		for i := 1; i < len(inLayer); i++ {
			for j := i; j > 0 && inLayer[j].Timestamp < inLayer[j-1].Timestamp; j-- {
				inLayer[j], inLayer[j-1] = inLayer[j-1], inLayer[j]
			}
		}
		ordered = append(ordered, inLayer...)
	}
	return ordered
}

// Effective computes the effective value of (target, key) by folding every
// live matching property over the zero value in layer-then-timestamp order.
func (r *Resolver) Effective(targetID, key string) Value {
	var v Value
	for _, p := range r.collect(targetID, key) {
		v = p.apply(v)
	}
	return v
}

// EffectiveInt is a convenience accessor for numeric keys.
func (r *Resolver) EffectiveInt(targetID, key string) int {
	return r.Effective(targetID, key).Int
}

// EffectiveText is a convenience accessor for textual keys.
func (r *Resolver) EffectiveText(targetID, key string) string {
	return r.Effective(targetID, key).Text
}

// EffectiveIntFrom folds matching properties over a printed base value.
// Callers use it when the base lives outside the property system, such as a
// card definition's printed power.
func (r *Resolver) EffectiveIntFrom(targetID, key string, base int) int {
	v := Value{Int: base}
	for _, p := range r.collect(targetID, key) {
		v = p.apply(v)
	}
	return v.Int
}

// EffectiveTextFrom folds matching properties over a base textual value.
func (r *Resolver) EffectiveTextFrom(targetID, key, base string) string {
	v := Value{Text: base}
	for _, p := range r.collect(targetID, key) {
		v = p.apply(v)
	}
	if v.Text == "" {
		return base
	}
	return v.Text
}

// Has reports whether any live property matches (target, key).
func (r *Resolver) Has(targetID, key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.properties {
		if p.TargetID == targetID && p.Key == key {
			return true
		}
	}
	return false
}

// Count returns the number of live properties.
func (r *Resolver) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.properties)
}

// ForTarget returns all live properties for a target in layer/timestamp
// order across all keys, for state views and snapshots.
func (r *Resolver) ForTarget(targetID string) []Property {
	r.mu.RLock()
	seen := make(map[string]struct{})
	var keys []string
	for _, p := range r.properties {
		if p.TargetID != targetID {
			continue
		}
		if _, ok := seen[p.Key]; !ok {
			seen[p.Key] = struct{}{}
			keys = append(keys, p.Key)
		}
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	var out []Property
	for _, key := range keys {
		out = append(out, r.collect(targetID, key)...)
	}
	return out
}
