package contract

import "context"

// Classifier maps an utterance to an intent with a confidence score.
// Implementations may call an external model; the orchestrator treats any
// error or low-confidence result as a signal to take its fallback path.
type Classifier interface {
	Classify(ctx context.Context, utterance string) (Classification, error)
}

// Reasoner is the external reasoning step of the executor loop. Given the
// transcript so far and the bound toolset's schema, it proposes either a
// final reply or a tool invocation. This is the loop's single suspension
// point and must honor ctx deadlines.
type Reasoner interface {
	Decide(ctx context.Context, intent Intent, transcript []Turn, tools []ToolSpec) (Decision, error)
}

// Tool is a single named, schema-typed operation a handler may invoke.
type Tool interface {
	Spec() ToolSpec
	Invoke(ctx context.Context, args map[string]any) (ToolOutcome, error)
}

// Registry hands out the toolset bound to a handler intent.
type Registry interface {
	Toolset(intent Intent) []Tool
}

// Retriever backs general-inquiry answers: query text in, ranked passages
// out. Indexing internals are outside this core.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}
