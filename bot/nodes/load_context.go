package turnnode

import (
	"context"
	"fmt"

	contractx "github.com/witbridge/nestbot/bot/contract"
	statex "github.com/witbridge/nestbot/bot/state"
)

func LoadContext(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	sess, err := store.Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	in.Context = sess.Context
	return in, nil
}
