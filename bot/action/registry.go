// Package action holds the named handlers the dialogue engine may invoke
// during a turn, and the registry they are dispatched through.
package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	contractx "github.com/witbridge/nestbot/bot/contract"
	statex "github.com/witbridge/nestbot/bot/state"
)

// Request carries everything an action may consume: the session it runs for,
// the context to mutate, the entities the engine extracted from the
// utterance, and (for send) the engine-produced reply text.
type Request struct {
	SessionID string
	Context   *statex.Context
	Entities  map[string]any
	Message   string
}

// Handler executes one action against the conversation context and returns
// the context the engine continues with.
type Handler func(ctx context.Context, req Request) (*statex.Context, error)

// Registry is the immutable name->handler table built once at startup.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler, 8)}
}

func (r *Registry) Register(name string, h Handler) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("action name is empty")
	}
	if h == nil {
		return fmt.Errorf("action %q has nil handler", name)
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("action %q registered twice", name)
	}
	r.handlers[name] = h
	return nil
}

func (r *Registry) Resolve(name string) (Handler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownAction, name)
	}
	return h, nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
