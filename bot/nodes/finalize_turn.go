package turnnode

import (
	"fmt"

	contractx "github.com/witbridge/nestbot/bot/contract"
)

func FinalizeTurn(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Context == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph context is nil", contractx.ErrValidation)
	}
	return GraphOutput{Context: in.Context}, nil
}
