package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a notable occurrence during compilation or watching.
type Event struct {
	ID          string                 `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	Type        string                 `json:"type"`
	Source      string                 `json:"source"`
	RunID       string                 `json:"run_id,omitempty"`
	ComponentID string                 `json:"component_id,omitempty"`
	Message     string                 `json:"message"`
	Level       string                 `json:"level"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeCompileStarted    = "compile.started"
	EventTypeCompileCompleted  = "compile.completed"
	EventTypeComponentEmitted  = "component.emitted"
	EventTypeComponentFailed   = "component.failed"
	EventTypePolicyViolation   = "policy.violation"
	EventTypeDocumentReloaded  = "document.reloaded"
	EventTypePoliciesReloaded  = "policies.reloaded"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers. Subscribers are called
// in publish order, from the publishing goroutine unless async delivery
// is enabled. A nil or disabled publisher drops everything.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closeOnce   sync.Once
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ep := &EventPublisher{config: cfg}

	if cfg.EnableAsync {
		if cfg.BufferSize <= 0 {
			return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
		}
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.buffer != nil {
		select {
		case ep.buffer <- event:
			return nil
		default:
			return fmt.Errorf("event buffer full, event %s dropped", event.Type)
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishCompileStarted publishes a compile started event.
func (ep *EventPublisher) PublishCompileStarted(runID, source string, components int) error {
	return ep.Publish(Event{
		Type:    EventTypeCompileStarted,
		Source:  "compiler",
		RunID:   runID,
		Message: fmt.Sprintf("Compiling %d components from %s", components, source),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"source":     source,
			"components": components,
		},
	})
}

// PublishCompileCompleted publishes a compile completed event.
func (ep *EventPublisher) PublishCompileCompleted(runID, status string, emitted, failed int, duration time.Duration) error {
	level := EventLevelInfo
	if failed > 0 {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:    EventTypeCompileCompleted,
		Source:  "compiler",
		RunID:   runID,
		Message: fmt.Sprintf("Compile %s: %d emitted, %d failed", status, emitted, failed),
		Level:   level,
		Data: map[string]interface{}{
			"status":   status,
			"emitted":  emitted,
			"failed":   failed,
			"duration": duration.Seconds(),
		},
	})
}

// PublishComponentEmitted publishes a component emitted event.
func (ep *EventPublisher) PublishComponentEmitted(runID, componentID, planID string) error {
	return ep.Publish(Event{
		Type:        EventTypeComponentEmitted,
		Source:      "compiler",
		RunID:       runID,
		ComponentID: componentID,
		Message:     fmt.Sprintf("Component %s emitted plan %s", componentID, planID),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"plan_id": planID,
		},
	})
}

// PublishComponentFailed publishes a component failed event.
func (ep *EventPublisher) PublishComponentFailed(runID, componentID, kind, reason string) error {
	return ep.Publish(Event{
		Type:        EventTypeComponentFailed,
		Source:      "compiler",
		RunID:       runID,
		ComponentID: componentID,
		Message:     fmt.Sprintf("Component %s failed: %s", componentID, reason),
		Level:       EventLevelError,
		Data: map[string]interface{}{
			"kind":   kind,
			"reason": reason,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(runID, componentID, policyName, severity, message string) error {
	level := EventLevelWarning
	if severity == "error" {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:        EventTypePolicyViolation,
		Source:      "policy_engine",
		RunID:       runID,
		ComponentID: componentID,
		Message:     fmt.Sprintf("Policy %s on %s: %s", policyName, componentID, message),
		Level:       level,
		Data: map[string]interface{}{
			"policy":   policyName,
			"severity": severity,
		},
	})
}

// PublishDocumentReloaded publishes a configuration reload event.
func (ep *EventPublisher) PublishDocumentReloaded(path string, err error) error {
	event := Event{
		Type:    EventTypeDocumentReloaded,
		Source:  "watcher",
		Message: fmt.Sprintf("Configuration %s reloaded", path),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"path": path,
		},
	}
	if err != nil {
		event.Message = fmt.Sprintf("Configuration %s failed to reload: %v", path, err)
		event.Level = EventLevelError
	}
	return ep.Publish(event)
}

// PublishPoliciesReloaded publishes a policy reload event.
func (ep *EventPublisher) PublishPoliciesReloaded(count int) error {
	return ep.Publish(Event{
		Type:    EventTypePoliciesReloaded,
		Source:  "policy_engine",
		Message: fmt.Sprintf("%d policies reloaded", count),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"count": count,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	if ep == nil {
		return
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	if ep == nil {
		return
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for event := range ep.buffer {
		ep.deliverEvent(event)
	}
}

func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown drains buffered events and stops async delivery.
// Publishing after Shutdown is not allowed in async mode.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep == nil || ep.buffer == nil {
		return nil
	}

	ep.closeOnce.Do(func() { close(ep.buffer) })

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByComponent creates a filter that only allows events for one component.
func FilterByComponent(componentID string) EventFilter {
	return func(event Event) bool {
		return event.ComponentID == componentID
	}
}
