package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
	"github.com/noeguerin/bistro-concierge/agent/executor"
	"github.com/noeguerin/bistro-concierge/agent/session"
	"github.com/noeguerin/bistro-concierge/pkg/translate"
)

const (
	defaultConfidenceThreshold = 0.6
	defaultClassifyTimeout     = 10 * time.Second
	defaultTranscriptWindow    = 6

	reasonLowConfidence   = "low_confidence"
	reasonClassifierError = "classifier_error"
)

type Config struct {
	ConfidenceThreshold float64       `envconfig:"CONFIDENCE_THRESHOLD" split_words:"true" default:"0.6"`
	ClassifyTimeout     time.Duration `envconfig:"CLASSIFY_TIMEOUT" split_words:"true" default:"10s"`
	TranscriptWindow    int           `envconfig:"TRANSCRIPT_WINDOW" split_words:"true" default:"6"`
}

func (c Config) withDefaults() Config {
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = defaultClassifyTimeout
	}
	if c.TranscriptWindow <= 0 {
		c.TranscriptWindow = defaultTranscriptWindow
	}
	return c
}

// TurnResult is what one routed utterance produced.
type TurnResult struct {
	Reply    string                `json:"reply"`
	Intent   contractx.Intent      `json:"intent"`
	Fallback bool                  `json:"fallback,omitempty"`
	Traces   []contractx.ToolTrace `json:"traces,omitempty"`
}

// Orchestrator is the conversation entry point: it classifies each
// utterance, routes it to the matching handler's toolset, runs the
// handler loop and keeps the session transcript. Turns within one
// session are serialized; sessions are independent.
type Orchestrator struct {
	classifier contractx.Classifier
	registry   contractx.Registry
	exec       *executor.Executor
	store      session.Store
	translator translate.Translator
	cfg        Config
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(
	classifier contractx.Classifier,
	registry contractx.Registry,
	exec *executor.Executor,
	store session.Store,
	translator translate.Translator,
	cfg Config,
) (*Orchestrator, error) {
	if classifier == nil || registry == nil || exec == nil || store == nil {
		return nil, errors.New("classifier, registry, executor and store are required")
	}
	if translator == nil {
		translator = translate.Passthrough{}
	}
	return &Orchestrator{
		classifier: classifier,
		registry:   registry,
		exec:       exec,
		store:      store,
		translator: translator,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// RouteTurn handles one caller utterance end to end. The reply is always
// usable speech; on an exhausted budget or timeout it is the handler's
// fallback line and the error says what happened.
func (o *Orchestrator) RouteTurn(ctx context.Context, sessionID, utterance string) (*TurnResult, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, fmt.Errorf("%w: utterance is empty", contractx.ErrValidation)
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := o.store.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		sess = session.New(sessionID, o.now())
	} else if err != nil {
		return nil, fmt.Errorf("%w: load session: %v", contractx.ErrUpstream, err)
	}

	utterance, err = o.inbound(ctx, sess, utterance)
	if err != nil {
		return nil, err
	}

	decision := o.classify(ctx, sess, utterance)
	sess.AppendRouting(decision)
	sess.AppendTurn(contractx.RoleUser, utterance, o.now())

	result := &TurnResult{Intent: decision.Intent, Fallback: decision.Fallback}
	run, runErr := o.exec.Run(ctx, decision.Intent, sess.Window(o.cfg.TranscriptWindow), o.registry.Toolset(decision.Intent))
	if run != nil {
		result.Reply = run.Reply
		result.Traces = run.Traces
	}
	if runErr != nil && result.Reply == "" {
		// Infrastructure failure with nothing to say; the session keeps the
		// user turn so a retry has context.
		if saveErr := o.store.Save(ctx, sess); saveErr != nil {
			log.Error().Err(saveErr).Str("session_id", sessionID).Msg("save session after handler failure")
		}
		return nil, runErr
	}
	if runErr != nil {
		log.Warn().Err(runErr).
			Str("session_id", sessionID).
			Str("intent", string(decision.Intent)).
			Msg("handler finished with fallback reply")
	}

	sess.AppendTurn(contractx.RoleAssistant, result.Reply, o.now())
	if err := o.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: save session: %v", contractx.ErrUpstream, err)
	}

	result.Reply, err = o.translator.FromEnglish(ctx, result.Reply, sess.Language)
	if err != nil {
		return nil, fmt.Errorf("%w: translate reply: %v", contractx.ErrUpstream, err)
	}
	return result, nil
}

// EndSession discards the conversation state and its lock entry.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := o.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	o.releaseSessionLock(sessionID, lock)
	return nil
}

// classify labels the utterance and applies the fallback policy: on a
// classifier error or a label under the confidence threshold the turn
// goes to the previous handler, or to general inquiry when the session
// has none yet.
func (o *Orchestrator) classify(ctx context.Context, sess *session.Session, utterance string) session.RoutingDecision {
	classifyCtx, cancel := context.WithTimeout(ctx, o.cfg.ClassifyTimeout)
	defer cancel()

	decision := session.RoutingDecision{At: o.now()}
	cls, err := o.classifier.Classify(classifyCtx, utterance)
	switch {
	case err != nil:
		decision.Intent = o.fallbackIntent(sess)
		decision.Fallback = true
		decision.Reason = reasonClassifierError
		log.Warn().Err(err).
			Str("session_id", sess.SessionID).
			Str("intent", string(decision.Intent)).
			Msg("classifier failed, routing to fallback handler")
	case cls.Confidence < o.cfg.ConfidenceThreshold:
		decision.Intent = o.fallbackIntent(sess)
		decision.Confidence = cls.Confidence
		decision.Fallback = true
		decision.Reason = reasonLowConfidence
		log.Debug().
			Str("session_id", sess.SessionID).
			Str("classified", string(cls.Intent)).
			Float64("confidence", cls.Confidence).
			Str("intent", string(decision.Intent)).
			Msg("low-confidence label, routing to fallback handler")
	default:
		decision.Intent = cls.Intent
		decision.Confidence = cls.Confidence
	}
	return decision
}

func (o *Orchestrator) fallbackIntent(sess *session.Session) contractx.Intent {
	if sess.ActiveIntent != "" {
		return sess.ActiveIntent
	}
	return contractx.IntentGeneralInquiry
}

// inbound detects the caller's language on the first turn and normalizes
// the utterance to English.
func (o *Orchestrator) inbound(ctx context.Context, sess *session.Session, utterance string) (string, error) {
	if sess.Language == "" {
		lang, err := o.translator.Detect(ctx, utterance)
		if err != nil {
			return "", fmt.Errorf("%w: detect language: %v", contractx.ErrUpstream, err)
		}
		sess.Language = lang
	}

	english, err := o.translator.ToEnglish(ctx, utterance, sess.Language)
	if err != nil {
		return "", fmt.Errorf("%w: translate utterance: %v", contractx.ErrUpstream, err)
	}
	return english, nil
}

func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[sessionID]
	if !ok {
		l = new(sync.Mutex)
		o.locks[sessionID] = l
	}
	return l
}

// releaseSessionLock drops the map entry only while it still points at the
// lock we hold; a turn that re-created the session keeps its own entry.
func (o *Orchestrator) releaseSessionLock(sessionID string, lock *sync.Mutex) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.locks[sessionID] == lock {
		delete(o.locks, sessionID)
	}
}
