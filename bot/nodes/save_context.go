package turnnode

import (
	"context"
	"fmt"

	contractx "github.com/witbridge/nestbot/bot/contract"
	statex "github.com/witbridge/nestbot/bot/state"
)

// SaveContext replaces the session's stored context wholesale with the one
// the engine returned. Nothing is merged.
func SaveContext(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
) (*GraphState, error) {
	if in == nil || in.Context == nil {
		return nil, fmt.Errorf("%w: graph context is nil", contractx.ErrValidation)
	}

	if err := store.Put(ctx, in.SessionID, in.Context); err != nil {
		return nil, err
	}
	return in, nil
}
