package turnnode

import (
	"context"
	"fmt"

	contractx "github.com/witbridge/nestbot/bot/contract"
)

func RunEngine(
	ctx context.Context,
	in *GraphState,
	engine contractx.Engine,
) (*GraphState, error) {
	if in == nil || in.Context == nil {
		return nil, fmt.Errorf("%w: graph context is nil", contractx.ErrValidation)
	}

	updated, err := engine.RunActions(ctx, in.SessionID, in.Text, in.Context)
	if err != nil {
		return nil, err
	}
	in.Context = updated
	return in, nil
}
