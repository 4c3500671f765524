package rules

import (
	"sync"
)

// Watcher observes events and tracks a condition across a turn. Watchers are
// reset at turn end; they never mutate game state themselves.
type Watcher interface {
	Watch(event Event)
	Reset()
	GetKey() string
}

// WatcherRegistry manages watchers for a game.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
}

// NewWatcherRegistry creates a new watcher registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{
		watchers: make(map[string]Watcher),
	}
}

// AddWatcher adds a watcher to the registry, replacing any watcher with the
// same key.
func (wr *WatcherRegistry) AddWatcher(watcher Watcher) {
	if watcher == nil {
		return
	}
	wr.mu.Lock()
	defer wr.mu.Unlock()
	wr.watchers[watcher.GetKey()] = watcher
}

// RemoveWatcher removes a watcher from the registry.
func (wr *WatcherRegistry) RemoveWatcher(key string) {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	delete(wr.watchers, key)
}

// GetWatcher retrieves a watcher by key.
func (wr *WatcherRegistry) GetWatcher(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return wr.watchers[key]
}

// ResetWatchers resets all watchers, called at turn end.
func (wr *WatcherRegistry) ResetWatchers() {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, watcher := range wr.watchers {
		watcher.Reset()
	}
}

// NotifyWatchers delivers an event to every registered watcher.
func (wr *WatcherRegistry) NotifyWatchers(event Event) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, watcher := range wr.watchers {
		watcher.Watch(event)
	}
}

// BuildingsPlayedWatcher counts buildings played per player this turn. The
// timing check consults it to enforce the one-building limit.
type BuildingsPlayedWatcher struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewBuildingsPlayedWatcher creates the watcher with zero counts.
func NewBuildingsPlayedWatcher() *BuildingsPlayedWatcher {
	return &BuildingsPlayedWatcher{counts: make(map[string]int)}
}

func (w *BuildingsPlayedWatcher) GetKey() string { return "BuildingsPlayedWatcher" }

func (w *BuildingsPlayedWatcher) Watch(event Event) {
	if event.Type != EventCardPlayed {
		return
	}
	if event.Metadata["kind"] != KindBuilding {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts[event.PlayerID]++
}

func (w *BuildingsPlayedWatcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts = make(map[string]int)
}

// Count returns the number of buildings a player has played this turn.
func (w *BuildingsPlayedWatcher) Count(playerID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[playerID]
}

// CardsDrawnWatcher counts cards drawn per player this turn.
type CardsDrawnWatcher struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewCardsDrawnWatcher creates the watcher with zero counts.
func NewCardsDrawnWatcher() *CardsDrawnWatcher {
	return &CardsDrawnWatcher{counts: make(map[string]int)}
}

func (w *CardsDrawnWatcher) GetKey() string { return "CardsDrawnWatcher" }

func (w *CardsDrawnWatcher) Watch(event Event) {
	if event.Type != EventDrawCard {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts[event.PlayerID]++
}

func (w *CardsDrawnWatcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts = make(map[string]int)
}

// Count returns the number of cards a player has drawn this turn.
func (w *CardsDrawnWatcher) Count(playerID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[playerID]
}
