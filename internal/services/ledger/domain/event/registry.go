package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/eventledger/internal/platform/errors"
)

// PayloadValidator validates a canonical payload JSON document.
type PayloadValidator func(json.RawMessage) error

// Definition registers metadata for an event type.
type Definition struct {
	Type Type
	// Owner names the domain that emits the type, e.g. "business".
	Owner           string
	ValidatePayload PayloadValidator
}

// Registry stores event definitions and validates events before persistence.
type Registry struct {
	mu          sync.RWMutex
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new event type definition to the registry.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return ErrTypeRequired
	}
	def.Owner = strings.TrimSpace(def.Owner)
	if def.Owner == "" {
		return fmt.Errorf("owner is required for %s", def.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.definitions == nil {
		r.definitions = make(map[Type]Definition)
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("event type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// MustRegister registers every definition and panics on the first error.
// Intended for package-level wiring of static definitions.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// Definition returns the definition for t.
func (r *Registry) Definition(t Type) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[t]
	return def, ok
}

// Types lists registered types in lexical order.
func (r *Registry) Types() []Type {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]Type, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ValidateForAppend checks a prepared event against its registered definition.
func (r *Registry) ValidateForAppend(evt Event) (Event, error) {
	evt.StreamID = strings.TrimSpace(evt.StreamID)
	if evt.StreamID == "" {
		return Event{}, ErrStreamIDRequired
	}
	evt.Type = Type(strings.TrimSpace(string(evt.Type)))
	if evt.Type == "" {
		return Event{}, ErrTypeRequired
	}
	def, ok := r.Definition(evt.Type)
	if !ok {
		return Event{}, apperrors.WithMetadata(
			apperrors.CodeEventTypeUnknown,
			fmt.Sprintf("event type is not registered: %s", evt.Type),
			map[string]string{apperrors.MetaStreamID: evt.StreamID, apperrors.MetaEventType: string(evt.Type)},
		)
	}
	if !json.Valid(evt.PayloadJSON) {
		return Event{}, apperrors.WithMetadata(
			apperrors.CodeEventPayloadInvalid,
			"payload json must be valid",
			map[string]string{apperrors.MetaStreamID: evt.StreamID, apperrors.MetaEventType: string(evt.Type)},
		)
	}
	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(json.RawMessage(evt.PayloadJSON)); err != nil {
			return Event{}, apperrors.WrapWithMetadata(
				apperrors.CodeEventPayloadInvalid,
				fmt.Sprintf("%s payload rejected", evt.Type),
				map[string]string{apperrors.MetaStreamID: evt.StreamID, apperrors.MetaEventType: string(evt.Type), apperrors.MetaReason: err.Error()},
				err,
			)
		}
	}
	return evt, nil
}
