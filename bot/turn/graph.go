package turn

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	turnnodex "github.com/witbridge/nestbot/bot/nodes"
)

func (s *Service) compileHandleMessageGraph(
	ctx context.Context,
) (compose.Runnable[turnnodex.GraphInput, turnnodex.GraphOutput], error) {
	graph := compose.NewGraph[turnnodex.GraphInput, turnnodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in turnnodex.GraphInput) (*turnnodex.GraphState, error) {
			return turnnodex.ValidateRequest(in, s.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_context",
		compose.InvokableLambda(func(ctx context.Context, in *turnnodex.GraphState) (*turnnodex.GraphState, error) {
			return turnnodex.LoadContext(ctx, in, s.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_context: %w", err)
	}

	if err := graph.AddLambdaNode("run_engine",
		compose.InvokableLambda(func(ctx context.Context, in *turnnodex.GraphState) (*turnnodex.GraphState, error) {
			return turnnodex.RunEngine(ctx, in, s.engine)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_engine: %w", err)
	}

	if err := graph.AddLambdaNode("save_context",
		compose.InvokableLambda(func(ctx context.Context, in *turnnodex.GraphState) (*turnnodex.GraphState, error) {
			return turnnodex.SaveContext(ctx, in, s.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node save_context: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_turn",
		compose.InvokableLambda(func(ctx context.Context, in *turnnodex.GraphState) (turnnodex.GraphOutput, error) {
			return turnnodex.FinalizeTurn(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_turn: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_context"},
		{"load_context", "run_engine"},
		{"run_engine", "save_context"},
		{"save_context", "finalize_turn"},
		{"finalize_turn", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("turn.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
