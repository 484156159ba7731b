package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
)

const ToolSearchKnowledgeBase = "search_knowledge_base"

// SearchKnowledgeBaseTool answers general questions about the restaurant
// from whatever Retriever backs it.
type SearchKnowledgeBaseTool struct {
	retriever contractx.Retriever
	topK      int
}

func NewSearchKnowledgeBaseTool(retriever contractx.Retriever) *SearchKnowledgeBaseTool {
	return &SearchKnowledgeBaseTool{retriever: retriever, topK: 3}
}

func (t *SearchKnowledgeBaseTool) Spec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolSearchKnowledgeBase,
		Description: "Look up restaurant information: hours, location, offers, dietary options, payments.",
		Params: []contractx.ToolParam{
			{Name: "query", Type: contractx.ParamString, Required: true, Description: "What the customer wants to know"},
		},
	}
}

func (t *SearchKnowledgeBaseTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	query, err := stringArg(args, "query", true)
	if err != nil {
		return contractx.ToolOutcome{}, err
	}

	passages, err := t.retriever.Search(ctx, query, t.topK)
	if err != nil {
		return contractx.ToolOutcome{}, fmt.Errorf("%w: knowledge base: %v", contractx.ErrUpstream, err)
	}
	if len(passages) == 0 {
		return contractx.ToolOutcome{
			Text: "Nothing relevant found in the knowledge base for that question.",
		}, nil
	}

	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", p.Title, p.Content)
	}
	return contractx.ToolOutcome{Text: b.String(), Success: true}, nil
}
