package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
)

type scriptReasoner struct {
	steps []func(transcript []contractx.Turn) (contractx.Decision, error)
	calls int
}

func (r *scriptReasoner) Decide(ctx context.Context, _ contractx.Intent, transcript []contractx.Turn, _ []contractx.ToolSpec) (contractx.Decision, error) {
	if r.calls >= len(r.steps) {
		return contractx.Decision{}, errors.New("script exhausted")
	}
	step := r.steps[r.calls]
	r.calls++
	return step(transcript)
}

type blockingReasoner struct{}

func (blockingReasoner) Decide(ctx context.Context, _ contractx.Intent, _ []contractx.Turn, _ []contractx.ToolSpec) (contractx.Decision, error) {
	<-ctx.Done()
	return contractx.Decision{}, ctx.Err()
}

type fakeTool struct {
	spec   contractx.ToolSpec
	invoke func(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error)
}

func (t *fakeTool) Spec() contractx.ToolSpec { return t.spec }

func (t *fakeTool) Invoke(ctx context.Context, args map[string]any) (contractx.ToolOutcome, error) {
	return t.invoke(ctx, args)
}

func callTool(name string) func([]contractx.Turn) (contractx.Decision, error) {
	return func([]contractx.Turn) (contractx.Decision, error) {
		return contractx.Decision{ToolCall: &contractx.ToolCall{Name: name, Args: map[string]any{}}}, nil
	}
}

func reply(text string) func([]contractx.Turn) (contractx.Decision, error) {
	return func([]contractx.Turn) (contractx.Decision, error) {
		return contractx.Decision{Reply: text}, nil
	}
}

func userTurns(contents ...string) []contractx.Turn {
	turns := make([]contractx.Turn, 0, len(contents))
	for _, c := range contents {
		turns = append(turns, contractx.Turn{Role: contractx.RoleUser, Content: c, At: time.Now()})
	}
	return turns
}

func TestProseReplyEndsLoop(t *testing.T) {
	t.Parallel()

	exec := New(&scriptReasoner{steps: []func([]contractx.Turn) (contractx.Decision, error){
		reply("We open at noon."),
	}}, Config{})

	result, err := exec.Run(context.Background(), contractx.IntentGeneralInquiry, userTurns("when do you open?"), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Reply != "We open at noon." {
		t.Fatalf("reply = %q", result.Reply)
	}
	if len(result.Traces) != 0 {
		t.Fatalf("traces = %+v, want none", result.Traces)
	}
}

func TestTerminalToolSuccessEndsLoop(t *testing.T) {
	t.Parallel()

	book := &fakeTool{
		spec: contractx.ToolSpec{Name: "make_reservation", Terminal: true},
		invoke: func(context.Context, map[string]any) (contractx.ToolOutcome, error) {
			return contractx.ToolOutcome{Text: "Reservation #1 confirmed.", Success: true}, nil
		},
	}
	exec := New(&scriptReasoner{steps: []func([]contractx.Turn) (contractx.Decision, error){
		callTool("make_reservation"),
	}}, Config{})

	result, err := exec.Run(context.Background(), contractx.IntentReservation, userTurns("book it"), []contractx.Tool{book})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Reply != "Reservation #1 confirmed." {
		t.Fatalf("reply = %q, want the terminal observation", result.Reply)
	}
	if len(result.Traces) != 1 || !result.Traces[0].Terminal {
		t.Fatalf("traces = %+v, want one terminal trace", result.Traces)
	}
}

func TestRecoverableFailureFeedsBackAsObservation(t *testing.T) {
	t.Parallel()

	check := &fakeTool{
		spec: contractx.ToolSpec{Name: "check_availability"},
		invoke: func(context.Context, map[string]any) (contractx.ToolOutcome, error) {
			return contractx.ToolOutcome{}, fmt.Errorf("%w: date must be YYYY-MM-DD", contractx.ErrValidation)
		},
	}
	exec := New(&scriptReasoner{steps: []func([]contractx.Turn) (contractx.Decision, error){
		callTool("check_availability"),
		func(transcript []contractx.Turn) (contractx.Decision, error) {
			last := transcript[len(transcript)-1]
			if last.Role != contractx.RoleObservation {
				return contractx.Decision{}, fmt.Errorf("last turn role = %s, want observation", last.Role)
			}
			return contractx.Decision{Reply: "Which date did you mean?"}, nil
		},
	}}, Config{})

	result, err := exec.Run(context.Background(), contractx.IntentReservation, userTurns("any table tomorrow?"), []contractx.Tool{check})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Reply != "Which date did you mean?" {
		t.Fatalf("reply = %q", result.Reply)
	}
	if len(result.Traces) != 1 || !result.Traces[0].Failed {
		t.Fatalf("traces = %+v, want one failed trace", result.Traces)
	}
}

func TestUnknownToolBecomesObservation(t *testing.T) {
	t.Parallel()

	exec := New(&scriptReasoner{steps: []func([]contractx.Turn) (contractx.Decision, error){
		callTool("teleport_pizza"),
		reply("Let me try that differently."),
	}}, Config{})

	result, err := exec.Run(context.Background(), contractx.IntentOrder, userTurns("pizza please"), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Traces) != 1 || !result.Traces[0].Failed {
		t.Fatalf("traces = %+v, want one failed trace for the unknown tool", result.Traces)
	}
}

func TestIterationBudgetExhaustion(t *testing.T) {
	t.Parallel()

	view := &fakeTool{
		spec: contractx.ToolSpec{Name: "view_order"},
		invoke: func(context.Context, map[string]any) (contractx.ToolOutcome, error) {
			return contractx.ToolOutcome{Text: "Order #1: (empty)", Success: true}, nil
		},
	}
	loop := &scriptReasoner{steps: []func([]contractx.Turn) (contractx.Decision, error){
		callTool("view_order"),
		callTool("view_order"),
		callTool("view_order"),
	}}
	exec := New(loop, Config{MaxIterations: 2})

	result, err := exec.Run(context.Background(), contractx.IntentOrder, userTurns("what's in my order?"), []contractx.Tool{view})
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("err = %v, want ErrBudgetExhausted", err)
	}
	if !errors.Is(err, contractx.ErrExhausted) {
		t.Fatalf("ErrBudgetExhausted should wrap the exhausted class, got %v", err)
	}
	if result.Reply != exhaustedReply {
		t.Fatalf("reply = %q, want the fallback line", result.Reply)
	}
	if len(result.Traces) != 2 {
		t.Fatalf("got %d traces, want the budget's worth", len(result.Traces))
	}
}

func TestThinkTimeoutYieldsFallback(t *testing.T) {
	t.Parallel()

	exec := New(blockingReasoner{}, Config{ThinkTimeout: 10 * time.Millisecond})

	result, err := exec.Run(context.Background(), contractx.IntentReservation, userTurns("hello"), nil)
	if !errors.Is(err, ErrThinkTimeout) {
		t.Fatalf("err = %v, want ErrThinkTimeout", err)
	}
	if !errors.Is(err, contractx.ErrTimeout) {
		t.Fatalf("ErrThinkTimeout should wrap the timeout class, got %v", err)
	}
	if result.Reply != timeoutReply {
		t.Fatalf("reply = %q, want the timeout fallback line", result.Reply)
	}
}

func TestCallerCancellationReturnsPartialResult(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := New(blockingReasoner{}, Config{})
	result, err := exec.Run(ctx, contractx.IntentOrder, userTurns("hello"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result == nil {
		t.Fatal("result = nil, want a partial result")
	}
}

func TestInfrastructureToolErrorPropagates(t *testing.T) {
	t.Parallel()

	broken := &fakeTool{
		spec: contractx.ToolSpec{Name: "view_order"},
		invoke: func(context.Context, map[string]any) (contractx.ToolOutcome, error) {
			return contractx.ToolOutcome{}, fmt.Errorf("%w: connection refused", contractx.ErrUpstream)
		},
	}
	exec := New(&scriptReasoner{steps: []func([]contractx.Turn) (contractx.Decision, error){
		callTool("view_order"),
	}}, Config{})

	_, err := exec.Run(context.Background(), contractx.IntentOrder, userTurns("status?"), []contractx.Tool{broken})
	if !errors.Is(err, contractx.ErrUpstream) {
		t.Fatalf("err = %v, want the upstream error surfaced", err)
	}
}
