package inquiry

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
)

//go:embed knowledge.json
var knowledgeRaw []byte

type entry struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords"`
}

// KeywordRetriever is the built-in implementation of contract.Retriever:
// deterministic keyword scoring over an embedded knowledge base. A vector
// store can replace it behind the same interface without touching the
// orchestration layer.
type KeywordRetriever struct {
	entries []entry
}

func NewKeywordRetriever() (*KeywordRetriever, error) {
	var entries []entry
	if err := json.Unmarshal(knowledgeRaw, &entries); err != nil {
		return nil, fmt.Errorf("decode knowledge base: %w", err)
	}
	return &KeywordRetriever{entries: entries}, nil
}

// Search scores each entry by keyword and content-token overlap with the
// query and returns the top k passages, best first. Ordering is stable for
// equal scores.
func (r *KeywordRetriever) Search(ctx context.Context, query string, k int) ([]contractx.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 3
	}

	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	passages := make([]contractx.Passage, 0, len(r.entries))
	for _, e := range r.entries {
		score := score(tokens, e)
		if score <= 0 {
			continue
		}
		passages = append(passages, contractx.Passage{
			Title:   e.Title,
			Content: e.Content,
			Score:   score,
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}

func score(tokens []string, e entry) float64 {
	keywords := make(map[string]struct{}, len(e.Keywords))
	for _, kw := range e.Keywords {
		keywords[strings.ToLower(kw)] = struct{}{}
	}
	content := strings.ToLower(e.Title + " " + e.Content)

	var s float64
	for _, tok := range tokens {
		if _, ok := keywords[tok]; ok {
			s += 2
		} else if strings.Contains(content, tok) {
			s++
		}
	}
	return s
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
