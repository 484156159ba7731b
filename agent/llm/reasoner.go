package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
	promptx "github.com/noeguerin/bistro-concierge/agent/prompt"
)

// Reasoner is the chat-completion implementation of contract.Reasoner:
// it sends the handler prompt, the bounded transcript and the intent's
// tool definitions, and maps the response to a reply or a tool call.
type Reasoner struct {
	client  *openaisdk.Client
	cfg     Config
	prompts promptx.Set
}

func NewReasoner(client *openaisdk.Client, cfg Config, prompts promptx.Set) (*Reasoner, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openrouter client is required", contractx.ErrValidation)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Reasoner{client: client, cfg: cfg, prompts: prompts}, nil
}

func (r *Reasoner) Decide(ctx context.Context, intent contractx.Intent, transcript []contractx.Turn, tools []contractx.ToolSpec) (contractx.Decision, error) {
	modelCfg := r.cfg.ReasonerConfigFor(intent)

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(transcript)+1)
	messages = append(messages, openaisdk.SystemMessage(r.prompts.For(intent)))
	for _, turn := range transcript {
		switch turn.Role {
		case contractx.RoleAssistant:
			messages = append(messages, openaisdk.AssistantMessage(turn.Content))
		case contractx.RoleObservation:
			// Observations ride as user-role messages so the handler works
			// with models that reject dangling tool messages.
			messages = append(messages, openaisdk.UserMessage("[tool result] "+turn.Content))
		default:
			messages = append(messages, openaisdk.UserMessage(turn.Content))
		}
	}

	resp, err := r.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:               openaisdk.ChatModel(modelCfg.Model),
		Messages:            messages,
		Tools:               toolParams(tools),
		Temperature:         openaisdk.Float(modelCfg.Temperature),
		MaxCompletionTokens: openaisdk.Int(int64(modelCfg.MaxCompletionToken)),
	})
	if err != nil {
		return contractx.Decision{}, fmt.Errorf("%w: decide: %v", contractx.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return contractx.Decision{}, fmt.Errorf("%w: decide: empty completion", contractx.ErrUpstream)
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0]
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			return contractx.Decision{}, fmt.Errorf("%w: decide: tool call without a name", contractx.ErrUpstream)
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return contractx.Decision{}, fmt.Errorf("%w: decide: invalid args for %s: %v", contractx.ErrUpstream, name, err)
			}
		}
		return contractx.Decision{ToolCall: &contractx.ToolCall{Name: name, Args: args}}, nil
	}

	reply := strings.TrimSpace(msg.Content)
	if reply == "" {
		return contractx.Decision{}, fmt.Errorf("%w: decide: completion had neither reply nor tool call", contractx.ErrUpstream)
	}
	return contractx.Decision{Reply: reply}, nil
}

func toolParams(tools []contractx.ToolSpec) []openaisdk.ChatCompletionToolParam {
	out := make([]openaisdk.ChatCompletionToolParam, 0, len(tools))
	for _, spec := range tools {
		props := make(map[string]any, len(spec.Params))
		required := make([]string, 0, len(spec.Params))
		for _, p := range spec.Params {
			props[p.Name] = map[string]any{
				"type":        string(p.Type),
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}

		out = append(out, openaisdk.ChatCompletionToolParam{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openaisdk.String(spec.Description),
				Parameters: openaisdk.FunctionParameters{
					"type":       "object",
					"properties": props,
					"required":   required,
				},
			},
		})
	}
	return out
}
