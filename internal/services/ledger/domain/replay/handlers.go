package replay

import (
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
)

// Handler folds one event into state. It must not consult wall-clock time,
// randomness, or I/O.
type Handler[S any] func(S, event.Event) (S, error)

// Handlers maps event types to their folds.
type Handlers[S any] map[event.Type]Handler[S]

// On adapts a typed fold by decoding the event payload into P.
func On[S, P any](fold func(S, P) S) Handler[S] {
	return func(state S, evt event.Event) (S, error) {
		payload, err := event.Decode[P](evt)
		if err != nil {
			return state, err
		}
		return fold(state, payload), nil
	}
}

// OnE is On for folds that can reject an event.
func OnE[S, P any](fold func(S, P) (S, error)) Handler[S] {
	return func(state S, evt event.Event) (S, error) {
		payload, err := event.Decode[P](evt)
		if err != nil {
			return state, err
		}
		return fold(state, payload)
	}
}

// Validate reports every type in types that has no handler.
func (h Handlers[S]) Validate(types ...event.Type) error {
	var missing []string
	for _, t := range types {
		if fn, ok := h[t]; !ok || fn == nil {
			missing = append(missing, string(t))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrUnhandledEventType, strings.Join(missing, ", "))
}
