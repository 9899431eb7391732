// Package orchestrator drives the decision state machine: it turns a
// normalized simulation result into an action plan, executes automated
// actions, and processes approval events for the rest.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scenariq/scenariq/internal/actions"
	"github.com/scenariq/scenariq/internal/core"
	"github.com/scenariq/scenariq/internal/discovery"
	"github.com/scenariq/scenariq/internal/learning"
	"github.com/scenariq/scenariq/internal/logging"
	"github.com/scenariq/scenariq/internal/storage"
)

// Runner invokes an executor against an action and returns its result text.
// Executors are treated as having side effects once invoked: a dispatched
// execution always completes and is recorded, even if the caller has gone.
type Runner interface {
	Execute(ctx context.Context, e *core.Executor, action core.RecommendedAction) (string, error)
}

// EventSink receives lifecycle events. May be nil.
type EventSink interface {
	Publish(event string, payload interface{})
}

// Lifecycle event names
const (
	EventDecisionCreated   = "decision.created"
	EventDecisionApproved  = "decision.approved"
	EventDecisionRejected  = "decision.rejected"
	EventExecutionComplete = "execution.completed"
	EventExecutionFailed   = "execution.failed"
)

// Orchestrator wires extraction, discovery, execution, and learning together
type Orchestrator struct {
	decisions   *storage.DecisionStore
	simulations *storage.SimulationStore
	registry    *discovery.Registry
	scorer      *discovery.Scorer
	learning    *learning.Store
	extractor   *actions.Extractor
	runner      Runner
	events      EventSink
	log         *logging.Logger

	// recent keeps the selection audit trail for recently executed
	// decisions so callers can inspect why an executor was chosen
	recent *learning.WorkingContext
}

// New creates an orchestrator. events may be nil.
func New(
	decisions *storage.DecisionStore,
	simulations *storage.SimulationStore,
	registry *discovery.Registry,
	scorer *discovery.Scorer,
	learningStore *learning.Store,
	extractor *actions.Extractor,
	runner Runner,
	events EventSink,
	log *logging.Logger,
) *Orchestrator {
	if log == nil {
		log = logging.New(logging.INFO, nil)
	}
	return &Orchestrator{
		decisions:   decisions,
		simulations: simulations,
		registry:    registry,
		scorer:      scorer,
		learning:    learningStore,
		extractor:   extractor,
		runner:      runner,
		events:      events,
		log:         log,
		recent:      learning.NewWorkingContext(),
	}
}

// Selection returns the audit trail for a recently executed decision.
// Entries expire after the working context TTL.
func (o *Orchestrator) Selection(decisionID string) (*discovery.Selection, bool) {
	v, ok := o.recent.Get(decisionID)
	if !ok {
		return nil, false
	}
	return v.(*discovery.Selection), true
}

// PlanOutcome is what one ProcessResult pass produced
type PlanOutcome struct {
	Plan      *core.ActionPlan `json:"plan"`
	Decisions []*core.Decision `json:"decisions"`
	// Executed counts automated actions that ran during this pass,
	// successful or not
	Executed int `json:"executed"`
}

// ProcessResult extracts actions from a normalized simulation result,
// executes the automated ones concurrently, and creates pending decisions
// for the rest. threshold <= 0 uses the default extraction cut-off.
func (o *Orchestrator) ProcessResult(ctx context.Context, result *core.SimulationResult, threshold float64, templateID string) (*PlanOutcome, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: simulation result", core.ErrMissingRequired)
	}

	extracted := o.extractor.Extract(result, threshold)
	classified := o.extractor.Classify(extracted)
	plan := actions.BuildPlan(result.ID, templateID, extracted, nil)

	outcome := &PlanOutcome{Plan: plan}

	// Automated actions are independent; each writes only its own decision.
	// They collect into their own slice so the pending loop below never
	// touches memory the goroutines write.
	var wg sync.WaitGroup
	var mu sync.Mutex
	var automated []*core.Decision
	for _, action := range classified.Automated {
		done, err := o.decisions.Executed(ctx, action.ActionID, result.ID)
		if err != nil {
			o.log.Error("at-most-once check failed for %s, not dispatching: %v", action.ActionID, err)
			continue
		}
		if done {
			o.log.Info("action %s in simulation %s already completed, skipping", action.ActionID, result.ID)
			continue
		}

		wg.Add(1)
		go func(a core.RecommendedAction) {
			defer wg.Done()
			d := o.executeAutomated(ctx, a, result)
			mu.Lock()
			automated = append(automated, d)
			mu.Unlock()
		}(action)
	}

	for _, action := range classified.NeedsApproval {
		d, err := o.createPending(ctx, action, result)
		if err != nil {
			o.log.Error("failed to create pending decision for %s: %v", action.ActionID, err)
			continue
		}
		outcome.Decisions = append(outcome.Decisions, d)
	}

	wg.Wait()
	outcome.Decisions = append(outcome.Decisions, automated...)
	outcome.Executed = len(automated)
	return outcome, nil
}

// executeAutomated runs one automated action and records its decision
// directly in a terminal state for the audit trail. Recording uses a
// detached context: once dispatched, an execution is never left
// half-recorded because the caller went away.
func (o *Orchestrator) executeAutomated(ctx context.Context, action core.RecommendedAction, result *core.SimulationResult) *core.Decision {
	sel := o.scorer.SelectExecutor(ctx, action, result.Type)
	output, execErr := o.runner.Execute(ctx, sel.Executor, action)

	status := core.DecisionCompleted
	if execErr != nil {
		status = core.DecisionFailed
		output = execErr.Error()
	}

	record := context.WithoutCancel(ctx)
	now := time.Now()
	d := &core.Decision{
		ID:              uuid.New().String(),
		ActionID:        action.ActionID,
		SimulationID:    result.ID,
		ActionName:      action.Name,
		Status:          status,
		Automated:       true,
		Attempt:         1,
		ExecutedBy:      sel.Executor.ID,
		ExecutionResult: output,
		ExecutedAt:      &now,
	}
	if err := o.decisions.Create(record, d); err != nil {
		o.log.Error("failed to record automated decision for %s: %v", action.ActionID, err)
	}

	o.afterExecution(record, d, action, result.Type, sel, execErr)
	return d
}

// createPending creates an approval-required decision with no executor bound
func (o *Orchestrator) createPending(ctx context.Context, action core.RecommendedAction, result *core.SimulationResult) (*core.Decision, error) {
	d := &core.Decision{
		ID:           uuid.New().String(),
		ActionID:     action.ActionID,
		SimulationID: result.ID,
		ActionName:   action.Name,
		Status:       core.DecisionPending,
		Attempt:      1,
	}
	if err := o.decisions.Create(ctx, d); err != nil {
		return nil, err
	}

	o.publish(EventDecisionCreated, d)
	return d, nil
}

// Approve moves a pending decision to APPROVED and executes it. The status
// transition is a compare-and-set, so of two concurrent approvals exactly
// one proceeds to execution.
func (o *Orchestrator) Approve(ctx context.Context, decisionID string) (*core.Decision, error) {
	d, err := o.decisions.Get(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, fmt.Errorf("%w: decision %s is %s", core.ErrDecisionTerminal, decisionID, d.Status)
	}
	if d.Status != core.DecisionPending {
		return nil, fmt.Errorf("%w: decision %s is %s", core.ErrNotApprovable, decisionID, d.Status)
	}

	done, err := o.decisions.Executed(ctx, d.ActionID, d.SimulationID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, fmt.Errorf("%w: action %s in simulation %s", core.ErrAlreadyExecuted, d.ActionID, d.SimulationID)
	}

	won, err := o.decisions.CompareAndSetStatus(ctx, decisionID, core.DecisionPending, core.DecisionApproved)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: decision %s changed state concurrently", core.ErrNotApprovable, decisionID)
	}

	o.publish(EventDecisionApproved, d)
	return o.executeApproved(ctx, d)
}

// executeApproved binds an executor to a freshly approved decision and runs
// it to a terminal state
func (o *Orchestrator) executeApproved(ctx context.Context, d *core.Decision) (*core.Decision, error) {
	action, simType, err := o.lookupAction(ctx, d)
	if err != nil {
		// The simulation record is gone; fail the decision rather than
		// leave it stuck in APPROVED
		recordErr := o.decisions.RecordExecution(ctx, d.ID, core.DecisionFailed, "", err.Error())
		if recordErr != nil {
			o.log.Error("failed to record lookup failure for %s: %v", d.ID, recordErr)
		}
		return o.decisions.Get(ctx, d.ID)
	}

	sel := o.scorer.SelectExecutor(ctx, action, simType)
	output, execErr := o.runner.Execute(ctx, sel.Executor, action)

	record := context.WithoutCancel(ctx)
	status := core.DecisionCompleted
	if execErr != nil {
		status = core.DecisionFailed
		output = execErr.Error()
	}
	if err := o.decisions.RecordExecution(record, d.ID, status, sel.Executor.ID, output); err != nil {
		// Push the decision to FAILED rather than leaving it in APPROVED
		// with no way forward; an explicit Retry creates the next attempt.
		if _, casErr := o.decisions.CompareAndSetStatus(record, d.ID, core.DecisionApproved, core.DecisionFailed); casErr != nil {
			o.log.Error("decision %s stuck in APPROVED, recording failed twice: %v", d.ID, casErr)
		}
		return nil, fmt.Errorf("record execution: %w", err)
	}

	o.afterExecution(record, d, action, simType, sel, execErr)
	return o.decisions.Get(record, d.ID)
}

// Reject moves a pending decision to REJECTED. Terminal decisions stay put.
func (o *Orchestrator) Reject(ctx context.Context, decisionID string) (*core.Decision, error) {
	d, err := o.decisions.Get(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, fmt.Errorf("%w: decision %s is %s", core.ErrDecisionTerminal, decisionID, d.Status)
	}
	if d.Status != core.DecisionPending {
		return nil, fmt.Errorf("%w: decision %s is %s", core.ErrNotApprovable, decisionID, d.Status)
	}

	won, err := o.decisions.CompareAndSetStatus(ctx, decisionID, core.DecisionPending, core.DecisionRejected)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: decision %s changed state concurrently", core.ErrNotApprovable, decisionID)
	}

	d, err = o.decisions.Get(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	o.publish(EventDecisionRejected, d)
	return d, nil
}

// Retry creates a fresh PENDING decision with the next attempt number for a
// failed decision, or for one stranded in APPROVED because its execution
// record could not be written. Retries are always an explicit caller action,
// never an implicit loop.
func (o *Orchestrator) Retry(ctx context.Context, decisionID string) (*core.Decision, error) {
	d, err := o.decisions.Get(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if d.Status != core.DecisionFailed && d.Status != core.DecisionApproved {
		return nil, fmt.Errorf("%w: only failed or stranded decisions can be retried, %s is %s", core.ErrInvalidInput, decisionID, d.Status)
	}

	latest, err := o.decisions.LatestAttempt(ctx, d.ActionID, d.SimulationID)
	if err != nil {
		return nil, err
	}

	retry := &core.Decision{
		ID:           uuid.New().String(),
		ActionID:     d.ActionID,
		SimulationID: d.SimulationID,
		ActionName:   d.ActionName,
		Status:       core.DecisionPending,
		Attempt:      latest + 1,
	}
	if err := o.decisions.Create(ctx, retry); err != nil {
		return nil, err
	}

	o.publish(EventDecisionCreated, retry)
	return retry, nil
}

// lookupAction resolves a decision's action from its stored simulation result
func (o *Orchestrator) lookupAction(ctx context.Context, d *core.Decision) (core.RecommendedAction, core.SimulationType, error) {
	result, err := o.simulations.Get(ctx, d.SimulationID)
	if err != nil {
		return core.RecommendedAction{}, "", fmt.Errorf("simulation %s: %w", d.SimulationID, err)
	}
	for _, a := range result.Metrics.RecommendedActions {
		if a.ActionID == d.ActionID {
			return a, result.Type, nil
		}
	}
	return core.RecommendedAction{}, "", fmt.Errorf("%w: action %s in simulation %s", core.ErrRecordNotFound, d.ActionID, d.SimulationID)
}

// afterExecution feeds the learning store and reliability counters and
// publishes the terminal event. Failures here are logged, never propagated;
// the decision record is already terminal.
func (o *Orchestrator) afterExecution(ctx context.Context, d *core.Decision, action core.RecommendedAction, simType core.SimulationType, sel *discovery.Selection, execErr error) {
	success := execErr == nil
	o.recent.Set(d.ID, sel, 0)

	if err := o.learning.Append(ctx, &core.LearningRecord{
		ActionName:         action.Name,
		SimulationType:     simType,
		ExecutorID:         sel.Executor.ID,
		Success:            success,
		SuccessProbability: action.SuccessProbability,
		ConfidenceScore:    action.ConfidenceScore,
	}); err != nil {
		o.log.Warn("failed to append learning record for %s: %v", action.ActionID, err)
	}

	if _, ok := o.registry.Get(sel.Executor.ID); ok {
		if err := o.registry.RecordCall(ctx, sel.Executor.ID, success); err != nil {
			o.log.Warn("failed to update reliability counters for %s: %v", sel.Executor.ID, err)
		}
	}

	if success {
		o.publish(EventExecutionComplete, d)
	} else {
		o.publish(EventExecutionFailed, d)
	}
}

func (o *Orchestrator) publish(event string, payload interface{}) {
	if o.events != nil {
		o.events.Publish(event, payload)
	}
}
