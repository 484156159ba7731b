package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
)

const (
	defaultMaxIterations = 6
	defaultThinkTimeout  = 30 * time.Second

	// Spoken to the caller when the loop cannot finish cleanly. The wrapped
	// error still reaches the orchestrator for logging and audit.
	exhaustedReply = "I'm sorry, I wasn't able to complete that just now. Could you rephrase, or would you like me to connect you with a member of staff?"
	timeoutReply   = "I'm sorry, that is taking longer than expected. Could you repeat your request?"
)

var (
	ErrBudgetExhausted = fmt.Errorf("%w: iteration budget exhausted", contractx.ErrExhausted)
	ErrThinkTimeout    = fmt.Errorf("%w: reasoning step timed out", contractx.ErrTimeout)
)

type Config struct {
	MaxIterations int           `envconfig:"MAX_ITERATIONS" split_words:"true" default:"6"`
	ThinkTimeout  time.Duration `envconfig:"THINK_TIMEOUT" split_words:"true" default:"30s"`
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaultMaxIterations
	}
	if c.ThinkTimeout <= 0 {
		c.ThinkTimeout = defaultThinkTimeout
	}
	return c
}

// Result is what one handler turn produced: the reply to speak and the
// trace of every tool invocation, in order. On timeout or an exhausted
// budget the Result carries a fallback reply and the error says why.
type Result struct {
	Reply  string
	Traces []contractx.ToolTrace
}

// Executor runs the bounded think/act loop for one utterance: ask the
// reasoner for a decision, invoke the chosen tool, feed the observation
// back, repeat. A terminal tool succeeding or the reasoner replying in
// prose ends the loop; the iteration budget caps it.
type Executor struct {
	reasoner contractx.Reasoner
	cfg      Config
}

func New(reasoner contractx.Reasoner, cfg Config) *Executor {
	return &Executor{reasoner: reasoner, cfg: cfg.withDefaults()}
}

func (e *Executor) Run(ctx context.Context, intent contractx.Intent, transcript []contractx.Turn, tools []contractx.Tool) (*Result, error) {
	byName := make(map[string]contractx.Tool, len(tools))
	specs := make([]contractx.ToolSpec, 0, len(tools))
	for _, t := range tools {
		spec := t.Spec()
		byName[spec.Name] = t
		specs = append(specs, spec)
	}

	// Observations are appended to a private copy; the session transcript
	// only ever records user and assistant turns.
	working := make([]contractx.Turn, len(transcript))
	copy(working, transcript)

	result := &Result{}
	for i := 0; i < e.cfg.MaxIterations; i++ {
		decision, err := e.decide(ctx, intent, working, specs)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return result, ctx.Err()
			}
			if errors.Is(err, ErrThinkTimeout) {
				result.Reply = timeoutReply
				return result, ErrThinkTimeout
			}
			return result, err
		}

		if decision.ToolCall == nil {
			result.Reply = decision.Reply
			return result, nil
		}

		call := decision.ToolCall
		tool, ok := byName[call.Name]
		if !ok {
			// The model named a tool outside its set; tell it and let it
			// try again within the budget.
			obs := fmt.Sprintf("tool %q does not exist; available tools: %s", call.Name, toolNames(specs))
			result.Traces = append(result.Traces, contractx.ToolTrace{
				Tool:        call.Name,
				Args:        call.Args,
				Observation: obs,
				Failed:      true,
			})
			working = appendObservation(working, obs)
			continue
		}

		spec := tool.Spec()
		outcome, err := tool.Invoke(ctx, call.Args)
		switch {
		case err != nil && contractx.Recoverable(err):
			obs := err.Error()
			result.Traces = append(result.Traces, contractx.ToolTrace{
				Tool:        spec.Name,
				Args:        call.Args,
				Observation: obs,
				Failed:      true,
			})
			working = appendObservation(working, obs)
			log.Debug().
				Str("intent", string(intent)).
				Str("tool", spec.Name).
				Int("iteration", i+1).
				Str("observation", obs).
				Msg("tool failed recoverably")
			continue
		case err != nil:
			return result, fmt.Errorf("tool %s: %w", spec.Name, err)
		}

		result.Traces = append(result.Traces, contractx.ToolTrace{
			Tool:        spec.Name,
			Args:        call.Args,
			Observation: outcome.Text,
			Terminal:    spec.Terminal && outcome.Success,
		})
		if spec.Terminal && outcome.Success {
			result.Reply = outcome.Text
			return result, nil
		}
		working = appendObservation(working, outcome.Text)
	}

	log.Warn().
		Str("intent", string(intent)).
		Int("budget", e.cfg.MaxIterations).
		Msg("handler loop exhausted its iteration budget")
	result.Reply = exhaustedReply
	return result, ErrBudgetExhausted
}

// decide runs one reasoning step under its own timeout so a stalled
// upstream call cannot hold the whole turn.
func (e *Executor) decide(ctx context.Context, intent contractx.Intent, transcript []contractx.Turn, specs []contractx.ToolSpec) (contractx.Decision, error) {
	thinkCtx, cancel := context.WithTimeout(ctx, e.cfg.ThinkTimeout)
	defer cancel()

	decision, err := e.reasoner.Decide(thinkCtx, intent, transcript, specs)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return contractx.Decision{}, ErrThinkTimeout
		}
		if ctx.Err() != nil {
			return contractx.Decision{}, context.Canceled
		}
		return contractx.Decision{}, fmt.Errorf("%w: reasoner: %v", contractx.ErrUpstream, err)
	}
	return decision, nil
}

func appendObservation(transcript []contractx.Turn, text string) []contractx.Turn {
	return append(transcript, contractx.Turn{
		Role:    contractx.RoleObservation,
		Content: text,
		At:      time.Now().UTC(),
	})
}

func toolNames(specs []contractx.ToolSpec) string {
	names := ""
	for i, s := range specs {
		if i > 0 {
			names += ", "
		}
		names += s.Name
	}
	return names
}
