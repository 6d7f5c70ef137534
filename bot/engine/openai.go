package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	actionx "github.com/witbridge/nestbot/bot/action"
	contractx "github.com/witbridge/nestbot/bot/contract"
	statex "github.com/witbridge/nestbot/bot/state"
)

type OpenAIConfig struct {
	APIKey   string `envconfig:"API_KEY" split_words:"true" required:"true"`
	BaseURL  string `envconfig:"BASE_URL" split_words:"true"`
	Model    string `envconfig:"MODEL" split_words:"true" default:"gpt-4o-mini"`
	MaxSteps int    `envconfig:"MAX_STEPS" split_words:"true" default:"5"`
}

const openAISystemPrompt = "You are a small assistant bot. Use the provided tools to look up " +
	"weather and news when the user asks for them, then answer with a single short text reply. " +
	"The conversation context is provided as JSON; tool results update it."

// OpenAI is an alternate dialogue engine on tool calling: the model picks the
// next action, the registry executes it, and the final assistant message is
// delivered through the send action. It honors the same Engine contract as
// Wit.
type OpenAI struct {
	client   *openaisdk.Client
	model    string
	maxSteps int
	registry *actionx.Registry
}

func NewOpenAI(cfg OpenAIConfig, registry *actionx.Registry) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if registry == nil {
		return nil, errors.New("action registry is required")
	}
	for _, name := range []string{
		actionx.NameSend,
		actionx.NameGetForecast,
		actionx.NameGetNextTopNews,
		actionx.NameGetNextTopNewsHN,
	} {
		if !registry.Has(name) {
			return nil, fmt.Errorf("%w: engine references %q", contractx.ErrUnknownAction, name)
		}
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	client := openaisdk.NewClient(opts...)

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 5
	}

	return &OpenAI{
		client:   &client,
		model:    strings.TrimSpace(cfg.Model),
		maxSteps: maxSteps,
		registry: registry,
	}, nil
}

func (o *OpenAI) tools() []openaisdk.ChatCompletionToolParam {
	return []openaisdk.ChatCompletionToolParam{
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        actionx.NameGetForecast,
				Description: openaisdk.String("Look up the current weather for a location."),
				Parameters: openaisdk.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"location": map[string]any{
							"type":        "string",
							"description": "City name, e.g. Chicago",
						},
					},
				},
			},
		},
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        actionx.NameGetNextTopNews,
				Description: openaisdk.String("Fetch the next top news story from a rotating set of sources."),
				Parameters: openaisdk.FunctionParameters{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
		},
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        actionx.NameGetNextTopNewsHN,
				Description: openaisdk.String("Fetch the next top Hacker News story."),
				Parameters: openaisdk.FunctionParameters{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
		},
	}
}

func (o *OpenAI) RunActions(ctx context.Context, sessionID, message string, sc *statex.Context) (*statex.Context, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, statex.ErrInvalidSession
	}
	if sc == nil {
		sc = statex.NewContext()
	}

	contextJSON, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}

	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(o.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(openAISystemPrompt + "\nContext: " + string(contextJSON)),
			openaisdk.UserMessage(message),
		},
		Tools: o.tools(),
	}

	for step := 0; step < o.maxSteps; step++ {
		completion, err := o.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrEngineInvoke, err)
		}
		if len(completion.Choices) == 0 {
			return nil, fmt.Errorf("%w: completion carries no choices", contractx.ErrEngineInvoke)
		}

		msg := completion.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			handler, err := o.registry.Resolve(actionx.NameSend)
			if err != nil {
				return nil, err
			}
			return handler(ctx, actionx.Request{
				SessionID: sessionID,
				Context:   sc,
				Message:   strings.TrimSpace(msg.Content),
			})
		}

		params.Messages = append(params.Messages, msg.ToParam())
		for _, call := range msg.ToolCalls {
			handler, err := o.registry.Resolve(call.Function.Name)
			if err != nil {
				return nil, err
			}

			sc, err = handler(ctx, actionx.Request{
				SessionID: sessionID,
				Context:   sc,
				Entities:  entitiesFromArguments(call.Function.Arguments),
			})
			if err != nil {
				return nil, err
			}

			updated, err := json.Marshal(sc)
			if err != nil {
				return nil, fmt.Errorf("marshal context: %w", err)
			}
			params.Messages = append(params.Messages, openaisdk.ToolMessage(string(updated), call.ID))
		}
	}

	return nil, ErrTooManySteps
}

// entitiesFromArguments reshapes tool-call arguments into the slot layout the
// actions expect: name -> [{"value": ...}].
func entitiesFromArguments(raw string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || len(args) == 0 {
		return nil
	}

	entities := make(map[string]any, len(args))
	for name, val := range args {
		entities[name] = []any{map[string]any{"value": val}}
	}
	return entities
}
