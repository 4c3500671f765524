package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a rules event. The set is closed: new
// card behavior extends EventCustom with a Data discriminator instead of
// adding types.
type EventType string

const (
	EventGameSetup      EventType = "GAME_SETUP"
	EventGameEnded      EventType = "GAME_ENDED"
	EventTurnStart      EventType = "TURN_START"
	EventTurnEnd        EventType = "TURN_END"
	EventPhaseStart     EventType = "PHASE_START"
	EventPhaseEnd       EventType = "PHASE_END"
	EventZoneChange     EventType = "ZONE_CHANGE"
	EventPropertyChange EventType = "PROPERTY_CHANGE"
	EventDrawCard       EventType = "DRAW_CARD"
	EventDiscardCard    EventType = "DISCARD_CARD"
	EventCardPlayed     EventType = "CARD_PLAYED"
	EventStackResolved  EventType = "STACK_RESOLVED"
	EventStackRemoved   EventType = "STACK_REMOVED"
	EventDamageDealt    EventType = "DAMAGE_DEALT"
	EventHealthChange   EventType = "HEALTH_CHANGE"
	EventScripAdded     EventType = "SCRIP_ADDED"
	EventScripPaid      EventType = "SCRIP_PAID"
	EventAgentDied      EventType = "AGENT_DIED"
	EventKeepDecision   EventType = "KEEP_DECISION"
	EventShuffle        EventType = "SHUFFLE"
	EventStateCheck     EventType = "STATE_CHECK"
	EventCustom         EventType = "CUSTOM"
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type       EventType
	ID         string
	TargetID   string
	SourceID   string
	Controller string
	PlayerID   string
	Amount     int
	Data       string
	Targets    []string
	Timestamp  time.Time
	Metadata   map[string]string
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type
// filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	listener := TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	}
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], listener)
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}

	if typedListeners, ok := bus.typedListeners[event.Type]; ok {
		for _, listener := range typedListeners {
			listener.Callback(event)
		}
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, targetID, sourceID, controllerID string) Event {
	return Event{
		Type:       eventType,
		TargetID:   targetID,
		SourceID:   sourceID,
		Controller: controllerID,
		PlayerID:   controllerID,
		Timestamp:  time.Now(),
		Metadata:   make(map[string]string),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, targetID, sourceID, controllerID string, amount int) Event {
	evt := NewEvent(eventType, targetID, sourceID, controllerID)
	evt.Amount = amount
	return evt
}
