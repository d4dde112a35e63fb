package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/hupe1980/studycoach/agent"
	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/logging"
	"github.com/hupe1980/studycoach/session"
)

// ErrRunNotFound is returned by Cancel for unknown or finished runs.
var ErrRunNotFound = errors.New("run not found")

// ErrTooManyRuns is returned by Run when MaxConcurrentRuns is reached.
var ErrTooManyRuns = errors.New("too many concurrent runs")

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits in-flight turns (0 = unlimited).
	MaxConcurrentRuns int
	// HistoryLimit is the number of past exchanges replayed as prior history
	// (0 = all).
	HistoryLimit int
	// Session management services.
	SessionStore core.SessionStore
	// Logging services.
	Logger logging.Logger
}

// Runner coordinates turn execution for sessions. Public methods are safe
// for concurrent use.
type Runner struct {
	orch *agent.Orchestrator

	maxConcurrentRuns int
	historyLimit      int

	sessionStore core.SessionStore
	logger       logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(orch *agent.Orchestrator, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 10,
		HistoryLimit:      20,
		SessionStore:      session.NewInMemoryStore(),
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		orch:              orch,
		maxConcurrentRuns: opts.MaxConcurrentRuns,
		historyLimit:      opts.HistoryLimit,
		sessionStore:      opts.SessionStore,
		logger:            opts.Logger,
		activeRuns:        make(map[string]context.CancelFunc),
	}
}

// Sessions returns the session store.
func (r *Runner) Sessions() core.SessionStore { return r.sessionStore }

// Run starts a turn for the session and returns its run id and snapshot
// sequence. The turn executes while the sequence is iterated; callers must
// iterate it (or Cancel the run) to release the run slot. The exchange is
// recorded when the final snapshot reports success.
func (r *Runner) Run(ctx context.Context, sessionID, input string) (string, iter.Seq[agent.Snapshot], error) {
	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get session: %w", err)
	}
	prior := sess.History(r.historyLimit)

	runID := core.NewID()
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.maxConcurrentRuns > 0 && len(r.activeRuns) >= r.maxConcurrentRuns {
		r.mu.Unlock()
		cancel()
		return "", nil, fmt.Errorf("%w (limit %d)", ErrTooManyRuns, r.maxConcurrentRuns)
	}
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	r.logger.Debug("runner.run.start", "run_id", runID, "session_id", sessionID, "prior_messages", len(prior))

	turn := r.orch.RunTurn(ctx, prior, input)
	seq := func(yield func(agent.Snapshot) bool) {
		defer r.release(runID)
		for snap := range turn {
			if snap.Final && snap.Outcome == agent.OutcomeSuccess {
				ex := core.Exchange{Input: input, Answer: snap.Answer}
				if err := r.sessionStore.AppendExchange(sessionID, ex); err != nil {
					r.logger.Error("runner.session.append_failed", "run_id", runID, "session_id", sessionID, "error", err.Error())
				}
			}
			if !yield(snap) {
				return
			}
		}
	}
	return runID, seq, nil
}

// RunSync runs a turn to completion and returns its drained result.
func (r *Runner) RunSync(ctx context.Context, sessionID, input string) (*agent.TurnResult, error) {
	_, seq, err := r.Run(ctx, sessionID, input)
	if err != nil {
		return nil, err
	}
	var last agent.Snapshot
	for snap := range seq {
		last = snap
	}
	return &agent.TurnResult{
		Answer:     last.Answer,
		History:    last.History,
		Reflection: last.Reflection,
		Cycles:     last.Cycles,
		Outcome:    last.Outcome,
	}, last.Err
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}

	cancel()
	r.logger.Info("runner.run.cancelled", "run_id", runID)

	return nil
}

// Active returns the number of in-flight runs.
func (r *Runner) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeRuns)
}

func (r *Runner) release(runID string) {
	r.mu.Lock()
	cancel, ok := r.activeRuns[runID]
	delete(r.activeRuns, runID)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}
