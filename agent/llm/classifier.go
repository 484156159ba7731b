package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
	openrouterx "github.com/noeguerin/bistro-concierge/pkg/openrouter"
)

// Classifier labels one utterance with an intent and a confidence using a
// single chat completion. It implements contract.Classifier.
type Classifier struct {
	client       *openaisdk.Client
	model        string
	temperature  float64
	maxTokens    int
	systemPrompt string
}

func NewClassifier(client *openaisdk.Client, cfg openrouterx.Config, systemPrompt string) (*Classifier, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openrouter client is required", contractx.ErrValidation)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		client:       client,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxCompletionToken,
		systemPrompt: systemPrompt,
	}, nil
}

type classifierOutput struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func (c *Classifier) Classify(ctx context.Context, utterance string) (contractx.Classification, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return contractx.Classification{}, fmt.Errorf("%w: utterance is empty", contractx.ErrValidation)
	}

	resp, err := c.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(c.systemPrompt),
			openaisdk.UserMessage(utterance),
		},
		Temperature:         openaisdk.Float(c.temperature),
		MaxCompletionTokens: openaisdk.Int(int64(c.maxTokens)),
	})
	if err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: classify: %v", contractx.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return contractx.Classification{}, fmt.Errorf("%w: classify: empty completion", contractx.ErrUpstream)
	}

	var out classifierOutput
	raw := extractJSONObject(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: classify: malformed label %q", contractx.ErrUpstream, raw)
	}

	intent := strings.ToLower(strings.TrimSpace(out.Intent))
	if !contractx.KnownIntent(intent) {
		return contractx.Classification{}, fmt.Errorf("%w: classify: unknown intent %q", contractx.ErrUpstream, out.Intent)
	}

	return contractx.Classification{
		Intent:     contractx.Intent(intent),
		Confidence: clamp01(out.Confidence),
	}, nil
}

// extractJSONObject pulls the first {...} block out of a completion; some
// models wrap the object in code fences or prose.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
