package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/google/uuid"
)

// Envelope is the wire form of a domain event. Routing fields are lifted out
// of the payload so consumers can filter and dedupe without decoding it.
type Envelope struct {
	EventID        uuid.UUID       `json:"event_id"`
	EventType      string          `json:"event_type"`
	AggregateID    uuid.UUID       `json:"aggregate_id"`
	AggregateType  string          `json:"aggregate_type"`
	OccurredAt     time.Time       `json:"occurred_at"`
	OrderID        string          `json:"order_id,omitempty"`
	ReceptionID    string          `json:"reception_id,omitempty"`
	SequenceNumber string          `json:"sequence_number,omitempty"`
	DedupKey       string          `json:"dedup_key"`
	Payload        json.RawMessage `json:"payload"`
}

type routingFields struct {
	OrderID        string `json:"order_id"`
	ReceptionID    string `json:"reception_id"`
	SequenceNumber string `json:"sequence_number"`
}

// EventSerializer converts events to envelopes and back. Decoding needs the
// concrete type registered under its event type.
type EventSerializer struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewEventSerializer creates a serializer with no registered types
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{types: make(map[string]reflect.Type)}
}

// NewReceptionEventSerializer knows every reception event type
func NewReceptionEventSerializer() *EventSerializer {
	s := NewEventSerializer()
	s.Register(receiving.EventTypeReceptionCreated, &receiving.ReceptionCreatedEvent{})
	s.Register(receiving.EventTypeReceptionApproved, &receiving.ReceptionApprovedEvent{})
	return s
}

// Register maps eventType to the concrete type of prototype
func (s *EventSerializer) Register(eventType string, prototype shared.DomainEvent) {
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s.mu.Lock()
	s.types[eventType] = t
	s.mu.Unlock()
}

// IsRegistered reports whether eventType can be decoded
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.types[eventType]
	return ok
}

// Encode wraps e in an Envelope and marshals it
func (s *EventSerializer) Encode(e shared.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.EventType(), err)
	}
	var routing routingFields
	if err := json.Unmarshal(payload, &routing); err != nil {
		return nil, fmt.Errorf("read %s routing fields: %w", e.EventType(), err)
	}
	return json.Marshal(Envelope{
		EventID:        e.EventID(),
		EventType:      e.EventType(),
		AggregateID:    e.AggregateID(),
		AggregateType:  e.AggregateType(),
		OccurredAt:     e.OccurredAt(),
		OrderID:        routing.OrderID,
		ReceptionID:    routing.ReceptionID,
		SequenceNumber: routing.SequenceNumber,
		DedupKey:       e.DedupKey(),
		Payload:        payload,
	})
}

// Decode parses an envelope and rebuilds the typed event it carries
func (s *EventSerializer) Decode(data []byte) (shared.DomainEvent, *Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	s.mu.RLock()
	t, ok := s.types[env.EventType]
	s.mu.RUnlock()
	if !ok {
		return nil, &env, fmt.Errorf("unknown event type %q", env.EventType)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(env.Payload, ptr); err != nil {
		return nil, &env, fmt.Errorf("unmarshal %s payload: %w", env.EventType, err)
	}
	e, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, &env, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	return e, &env, nil
}
