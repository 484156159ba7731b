package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
	"github.com/noeguerin/bistro-concierge/agent/executor"
	"github.com/noeguerin/bistro-concierge/agent/orchestrator"
	"github.com/noeguerin/bistro-concierge/agent/session"
)

type classifyStep struct {
	cls contractx.Classification
	err error
}

type scriptClassifier struct {
	steps []classifyStep
	calls int
}

func (c *scriptClassifier) Classify(ctx context.Context, _ string) (contractx.Classification, error) {
	if c.calls >= len(c.steps) {
		return contractx.Classification{}, errors.New("classifier script exhausted")
	}
	step := c.steps[c.calls]
	c.calls++
	return step.cls, step.err
}

type scriptReasoner struct {
	steps []contractx.Decision
	calls int
}

func (r *scriptReasoner) Decide(ctx context.Context, _ contractx.Intent, _ []contractx.Turn, _ []contractx.ToolSpec) (contractx.Decision, error) {
	if r.calls >= len(r.steps) {
		return contractx.Decision{}, errors.New("reasoner script exhausted")
	}
	step := r.steps[r.calls]
	r.calls++
	return step, nil
}

type emptyRegistry struct{}

func (emptyRegistry) Toolset(contractx.Intent) []contractx.Tool { return nil }

func newOrchestrator(t *testing.T, classifier contractx.Classifier, reasoner contractx.Reasoner, store session.Store) *orchestrator.Orchestrator {
	t.Helper()
	orch, err := orchestrator.New(
		classifier,
		emptyRegistry{},
		executor.New(reasoner, executor.Config{MaxIterations: 2}),
		store,
		nil,
		orchestrator.Config{},
	)
	if err != nil {
		t.Fatalf("build orchestrator: %v", err)
	}
	return orch
}

func TestRouteTurnRecordsTranscriptAndRouting(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	orch := newOrchestrator(t,
		&scriptClassifier{steps: []classifyStep{
			{cls: contractx.Classification{Intent: contractx.IntentOrder, Confidence: 0.92}},
		}},
		&scriptReasoner{steps: []contractx.Decision{
			{Reply: "What would you like to order?"},
		}},
		store,
	)

	result, err := orch.RouteTurn(context.Background(), "call-1", "I want some food")
	if err != nil {
		t.Fatalf("route turn: %v", err)
	}
	if result.Intent != contractx.IntentOrder {
		t.Fatalf("intent = %s, want order", result.Intent)
	}
	if result.Fallback {
		t.Fatal("fallback = true on a confident label")
	}
	if result.Reply != "What would you like to order?" {
		t.Fatalf("reply = %q", result.Reply)
	}

	sess, err := store.Load(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if len(sess.Turns) != 2 {
		t.Fatalf("got %d turns, want user and assistant", len(sess.Turns))
	}
	if sess.Turns[0].Role != contractx.RoleUser || sess.Turns[1].Role != contractx.RoleAssistant {
		t.Fatalf("turn roles = %s,%s", sess.Turns[0].Role, sess.Turns[1].Role)
	}
	if len(sess.Routing) != 1 || sess.Routing[0].Confidence != 0.92 {
		t.Fatalf("routing audit = %+v", sess.Routing)
	}
	if sess.ActiveIntent != contractx.IntentOrder {
		t.Fatalf("active intent = %s, want order", sess.ActiveIntent)
	}
}

func TestLowConfidenceFallsBackToPreviousHandler(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	orch := newOrchestrator(t,
		&scriptClassifier{steps: []classifyStep{
			{cls: contractx.Classification{Intent: contractx.IntentOrder, Confidence: 0.95}},
			{cls: contractx.Classification{Intent: contractx.IntentGeneralInquiry, Confidence: 0.31}},
		}},
		&scriptReasoner{steps: []contractx.Decision{
			{Reply: "A margherita, noted."},
			{Reply: "Anything else for your order?"},
		}},
		store,
	)

	ctx := context.Background()
	if _, err := orch.RouteTurn(ctx, "call-2", "one margherita please"); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	// An ambiguous follow-up ("make it two") stays with the order handler.
	result, err := orch.RouteTurn(ctx, "call-2", "make it two")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if result.Intent != contractx.IntentOrder {
		t.Fatalf("intent = %s, want the previous handler", result.Intent)
	}
	if !result.Fallback {
		t.Fatal("fallback flag not set on a low-confidence route")
	}

	sess, err := store.Load(ctx, "call-2")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if len(sess.Routing) != 2 {
		t.Fatalf("got %d routing entries, want 2", len(sess.Routing))
	}
	if sess.Routing[1].Reason != "low_confidence" || !sess.Routing[1].Fallback {
		t.Fatalf("second routing entry = %+v", sess.Routing[1])
	}
}

func TestClassifierErrorFallsBackToGeneralInquiry(t *testing.T) {
	t.Parallel()

	orch := newOrchestrator(t,
		&scriptClassifier{steps: []classifyStep{
			{err: errors.New("model unavailable")},
		}},
		&scriptReasoner{steps: []contractx.Decision{
			{Reply: "How can I help?"},
		}},
		session.NewMemoryStore(),
	)

	result, err := orch.RouteTurn(context.Background(), "call-3", "err hello?")
	if err != nil {
		t.Fatalf("route turn: %v", err)
	}
	if result.Intent != contractx.IntentGeneralInquiry {
		t.Fatalf("intent = %s, want general_inquiry on a fresh session", result.Intent)
	}
	if !result.Fallback {
		t.Fatal("fallback flag not set on a classifier error")
	}
}

func TestRouteTurnValidation(t *testing.T) {
	t.Parallel()

	orch := newOrchestrator(t, &scriptClassifier{}, &scriptReasoner{}, session.NewMemoryStore())
	ctx := context.Background()

	if _, err := orch.RouteTurn(ctx, "call-4", "   "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("empty utterance err = %v, want validation error", err)
	}
	if _, err := orch.RouteTurn(ctx, "", "hello"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("empty session id err = %v, want validation error", err)
	}
}

func TestExhaustedHandlerStillSpeaks(t *testing.T) {
	t.Parallel()

	// The reasoner keeps calling a tool that does not exist; the budget of 2
	// runs out and the caller still gets a usable line.
	store := session.NewMemoryStore()
	orch := newOrchestrator(t,
		&scriptClassifier{steps: []classifyStep{
			{cls: contractx.Classification{Intent: contractx.IntentReservation, Confidence: 0.9}},
		}},
		&scriptReasoner{steps: []contractx.Decision{
			{ToolCall: &contractx.ToolCall{Name: "no_such_tool"}},
			{ToolCall: &contractx.ToolCall{Name: "no_such_tool"}},
		}},
		store,
	)

	result, err := orch.RouteTurn(context.Background(), "call-5", "book me a table")
	if err != nil {
		t.Fatalf("route turn: %v", err)
	}
	if result.Reply == "" {
		t.Fatal("reply is empty, want the fallback line")
	}

	sess, err := store.Load(context.Background(), "call-5")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess.Turns[len(sess.Turns)-1].Content != result.Reply {
		t.Fatal("fallback reply missing from the transcript")
	}
}

func TestEndSessionDeletesState(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	orch := newOrchestrator(t,
		&scriptClassifier{steps: []classifyStep{
			{cls: contractx.Classification{Intent: contractx.IntentGeneralInquiry, Confidence: 0.8}},
		}},
		&scriptReasoner{steps: []contractx.Decision{{Reply: "Hello!"}}},
		store,
	)

	ctx := context.Background()
	if _, err := orch.RouteTurn(ctx, "call-6", "hi"); err != nil {
		t.Fatalf("route turn: %v", err)
	}
	if err := orch.EndSession(ctx, "call-6"); err != nil {
		t.Fatalf("end session: %v", err)
	}
	if _, err := store.Load(ctx, "call-6"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("load after end err = %v, want ErrNotFound", err)
	}
}
