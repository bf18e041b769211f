// Package business is a small demo aggregate used by the ledger scenarios
// and the maintenance CLI's projection report.
package business

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/replay"
)

// Owner is the registry owner for business events.
const Owner = "business"

const (
	TypeCreated event.Type = "business.created"
	TypeUpdated event.Type = "business.updated"
	TypeDeleted event.Type = "business.deleted"
)

var (
	// ErrNameRequired indicates a missing business name.
	ErrNameRequired = errors.New("business name is required")
	// ErrAlreadyExists indicates a create on a stream that already has a business.
	ErrAlreadyExists = errors.New("business already exists")
	// ErrNotFound indicates a change to a business that was never created.
	ErrNotFound = errors.New("business not found")
	// ErrDeleted indicates a change to a deleted business.
	ErrDeleted = errors.New("business is deleted")
)

// Created records a new business.
type Created struct {
	Name string `json:"name"`
}

func (Created) EventType() event.Type { return TypeCreated }

// Updated renames a business.
type Updated struct {
	Name string `json:"name"`
}

func (Updated) EventType() event.Type { return TypeUpdated }

// Deleted marks a business as removed; the stream is kept.
type Deleted struct {
	Reason string `json:"reason,omitempty"`
}

func (Deleted) EventType() event.Type { return TypeDeleted }

// State is the projected business.
type State struct {
	Name    string `json:"name"`
	Created bool   `json:"created"`
	Deleted bool   `json:"deleted"`
	Renames int    `json:"renames"`
}

// Handlers folds business events.
var Handlers = replay.Handlers[State]{
	TypeCreated: replay.On(func(s State, p Created) State {
		s.Name = p.Name
		s.Created = true
		return s
	}),
	TypeUpdated: replay.On(func(s State, p Updated) State {
		s.Name = p.Name
		s.Renames++
		return s
	}),
	TypeDeleted: replay.On(func(s State, _ Deleted) State {
		s.Deleted = true
		return s
	}),
}

// Types lists every business event type.
func Types() []event.Type {
	return []event.Type{TypeCreated, TypeUpdated, TypeDeleted}
}

// Register adds the business event definitions to registry.
func Register(registry *event.Registry) error {
	if registry == nil {
		return errors.New("registry is required")
	}
	defs := []event.Definition{
		{Type: TypeCreated, Owner: Owner, ValidatePayload: requireName},
		{Type: TypeUpdated, Owner: Owner, ValidatePayload: requireName},
		{Type: TypeDeleted, Owner: Owner},
	}
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("register %s: %w", def.Type, err)
		}
	}
	return nil
}

func requireName(raw json.RawMessage) error {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	return nil
}

// Create decides the event for creating a business on an empty stream.
func Create(s State, name string) (event.Payload, error) {
	if s.Created {
		return nil, ErrAlreadyExists
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	return Created{Name: name}, nil
}

// Rename decides the event for renaming an existing business.
func Rename(s State, name string) (event.Payload, error) {
	if err := requireLive(s); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	return Updated{Name: name}, nil
}

// Delete decides the event for deleting an existing business.
func Delete(s State, reason string) (event.Payload, error) {
	if err := requireLive(s); err != nil {
		return nil, err
	}
	return Deleted{Reason: strings.TrimSpace(reason)}, nil
}

func requireLive(s State) error {
	if !s.Created {
		return ErrNotFound
	}
	if s.Deleted {
		return ErrDeleted
	}
	return nil
}
