package coordinator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/engine"
	"github.com/prime30/synapse-sub013/internal/filestore"
	"github.com/prime30/synapse-sub013/internal/patch"
	"github.com/prime30/synapse-sub013/internal/stuck"
)

const coordinatorName = "coordinator"

// envelope carries a worker event to the owner goroutine. The owner answers
// on ack before the worker may continue.
type envelope struct {
	taskID string
	ev     agent.Event
	ack    chan error
}

type completion struct {
	taskID string
	result agent.Result
	err    error
}

type retryMsg struct {
	task      agent.Task
	lineage   string
	cancelled bool
}

type halt struct {
	detection stuck.Detection
	escalate  bool
}

// taskRun is the coordinator's bookkeeping for one dispatched task. lineage
// is shared by a task, its retries and its escalation.
type taskRun struct {
	task     agent.Task
	lineage  string
	detector *stuck.Detector
	cancel   context.CancelFunc
	halt     *halt
	dropped  int
}

// Execution is one request moving through the state machine.
type Execution struct {
	id  string
	c   *Coordinator
	log *zap.Logger
	req Request

	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   context.CancelFunc

	events  chan envelope
	results chan completion
	retries chan retryMsg
	done    chan struct{}

	sem   *semaphore.Weighted
	files *tracker

	mu        sync.Mutex
	state     ExecutionState
	runs      map[string]*taskRun
	pending   int
	escalated map[string]bool
	closing   bool
}

func newExecution(parent context.Context, c *Coordinator, req Request) *Execution {
	id := uuid.NewString()
	base, cancel := context.WithCancelCause(parent)
	ctx, stopTimeout := base, context.CancelFunc(func() {})
	if c.cfg.ExecutionTimeout > 0 {
		ctx, stopTimeout = context.WithTimeoutCause(base, c.cfg.ExecutionTimeout, ErrTimeout)
	}
	return &Execution{
		id:      id,
		c:       c,
		log:     c.log.With(zap.String("execution_id", id)),
		req:     req,
		ctx:     ctx,
		cancel:  cancel,
		stop:    func() { stopTimeout(); cancel(nil) },
		events:  make(chan envelope),
		results: make(chan completion),
		retries: make(chan retryMsg),
		done:    make(chan struct{}),
		sem:     c.newSemaphore(),
		files:   newTracker(c.store),
		state: ExecutionState{
			ID:              id,
			ProjectID:       req.ProjectID,
			UserID:          req.UserID,
			Instruction:     req.Instruction,
			Status:          StatusPending,
			ProposedChanges: make(map[agent.Role][]agent.CodeChange),
			StartedAt:       c.now(),
		},
		runs:      make(map[string]*taskRun),
		escalated: make(map[string]bool),
	}
}

// ID returns the execution id.
func (e *Execution) ID() string { return e.id }

// Done is closed once the execution reached a terminal status and all of its
// goroutines have returned.
func (e *Execution) Done() <-chan struct{} { return e.done }

// Cancel aborts the execution.
func (e *Execution) Cancel() { e.cancel(ErrCancelled) }

// Snapshot returns a copy of the current state.
func (e *Execution) Snapshot() ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Wait blocks until the execution finishes or ctx is done. A failed
// execution returns its failure cause.
func (e *Execution) Wait(ctx context.Context) (ExecutionState, error) {
	select {
	case <-e.done:
	case <-ctx.Done():
		return e.Snapshot(), ctx.Err()
	}
	st := e.Snapshot()
	return st, st.Err
}

// run is the owner loop. It returns once no task is active and no retry is
// pending, then finalizes.
func (e *Execution) run(first agent.Task) {
	defer close(e.done)
	defer e.stop()

	if err := e.Dispatch(first); err != nil {
		e.fail(err)
	}
	ctxDone := e.ctx.Done()
	for !e.idle() {
		select {
		case env := <-e.events:
			env.ack <- e.handleEvent(env)
		case c := <-e.results:
			e.complete(c)
		case r := <-e.retries:
			e.retried(r)
		case <-ctxDone:
			ctxDone = nil
			e.fail(e.cause())
		}
	}

	st, err := e.Finalize(e.ctx)
	if err != nil {
		e.log.Error("finalize failed", zap.Error(err))
	}
	e.c.finished(st)
}

func (e *Execution) idle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.runs) == 0 && e.pending == 0 {
		e.closing = true
	}
	return e.closing
}

func (e *Execution) cause() error {
	c := context.Cause(e.ctx)
	switch {
	case errors.Is(c, ErrCancelled), errors.Is(c, ErrTimeout):
		return c
	case errors.Is(c, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return fmt.Errorf("%w: %v", ErrCancelled, c)
	}
}

// Dispatch sends task to the worker registered for its role and marks the
// execution in progress.
func (e *Execution) Dispatch(task agent.Task) error {
	return e.dispatch(task, "")
}

func (e *Execution) dispatch(task agent.Task, lineage string) error {
	if err := e.c.dispatchable(task.Role); err != nil {
		return err
	}
	w := e.c.workers[task.Role]

	e.mu.Lock()
	if e.closing || e.state.Status.IsTerminal() {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTerminal, e.id)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.ExecutionID = e.id
	if lineage == "" {
		lineage = task.ID
	}
	tctx, cancel := context.WithCancel(e.ctx)
	e.runs[task.ID] = &taskRun{
		task:     task,
		lineage:  lineage,
		detector: stuck.New(stuck.WithWindow(e.c.cfg.StuckWindow)),
		cancel:   cancel,
	}
	e.state.Status = StatusInProgress
	e.state.ActiveWorkers = append(e.state.ActiveWorkers, refFor(task))
	e.state.Messages = append(e.state.Messages, agent.Message{
		From:    coordinatorName,
		To:      task.Role.String(),
		Content: task.Instruction,
		At:      e.c.now(),
	})
	e.mu.Unlock()

	e.log.Info("task dispatched",
		zap.String("task_id", task.ID),
		zap.String("role", task.Role.String()),
		zap.String("parent_id", task.ParentID),
		zap.Int("attempt", task.Attempt),
		zap.Bool("escalated", task.Escalated),
		zap.Int("files", len(task.Context.Files)))
	go e.work(tctx, w, task)
	return nil
}

func refFor(t agent.Task) WorkerRef {
	return WorkerRef{TaskID: t.ID, ParentID: t.ParentID, Role: t.Role, Attempt: t.Attempt, Escalated: t.Escalated}
}

func (e *Execution) work(ctx context.Context, w Worker, task agent.Task) {
	c := completion{taskID: task.ID}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		c.err = err
	} else {
		c.result, c.err = w.Run(ctx, task, e.sink(task.ID))
		e.sem.Release(1)
	}
	e.results <- c
}

// sink forwards events to the owner and waits for its verdict.
func (e *Execution) sink(taskID string) agent.EventSink {
	return agent.SinkFunc(func(ctx context.Context, ev agent.Event) error {
		ev.TaskID = taskID
		ack := make(chan error, 1)
		select {
		case e.events <- envelope{taskID: taskID, ev: ev, ack: ack}:
		case <-ctx.Done():
			return agent.ErrHalted
		}
		return <-ack
	})
}

func (e *Execution) handleEvent(env envelope) error {
	e.mu.Lock()
	run, ok := e.runs[env.taskID]
	if !ok {
		e.mu.Unlock()
		return agent.ErrHalted
	}
	if run.halt != nil || e.state.Status == StatusFailed {
		run.dropped++
		e.mu.Unlock()
		return agent.ErrHalted
	}
	ev := env.ev
	switch ev.Kind {
	case agent.EventToolCall:
		run.detector.RecordToolCall(ev.Tool, ev.Input, ev.Output, ev.IsError, ev.IsEdit)
	case agent.EventAssistantMessage:
		run.detector.RecordAssistantMessage(ev.Text)
	case agent.EventCompaction:
		run.detector.RecordCompaction(ev.EditsSinceCompaction)
	default:
		e.mu.Unlock()
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	e.mu.Unlock()

	if d := e.CheckLiveness(env.taskID); d.Stuck {
		return agent.ErrHalted
	}
	return nil
}

// CheckLiveness queries the loop detector of an active task. When the task is
// stuck its budget is cancelled and, depending on the pattern, it is either
// marked for one escalation or the execution fails.
func (e *Execution) CheckLiveness(taskID string) stuck.Detection {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.runs[taskID]
	if !ok {
		return stuck.Detection{}
	}
	if run.halt != nil {
		return run.halt.detection
	}
	d := run.detector.Detect()
	if !d.Stuck {
		return d
	}

	run.cancel()
	escalate := !d.Pattern.Fatal() && !run.task.Escalated && !e.escalated[run.lineage]
	action := "failed"
	if escalate {
		action = "escalated"
		e.escalated[run.lineage] = true
	}
	run.halt = &halt{detection: d, escalate: escalate}
	e.state.Loops = append(e.state.Loops, LoopRecord{
		TaskID:  taskID,
		Role:    run.task.Role,
		Pattern: d.Pattern,
		Reason:  d.Reason,
		Action:  action,
	})
	e.log.Warn("worker loop detected",
		zap.String("task_id", taskID),
		zap.String("role", run.task.Role.String()),
		zap.Stringer("pattern", d.Pattern),
		zap.String("reason", d.Reason),
		zap.String("action", action))
	if !escalate {
		e.failLocked(fmt.Errorf("%w: %s: %s", ErrStuckLoop, d.Pattern, d.Reason))
	}
	return d
}

func (e *Execution) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failLocked(err)
}

// failLocked moves the execution to failed and stops every active task.
// The first failure wins.
func (e *Execution) failLocked(err error) {
	if e.state.Status.IsTerminal() {
		return
	}
	e.state.Status = StatusFailed
	e.state.Err = err
	e.state.FailureReason = err.Error()
	for _, run := range e.runs {
		run.cancel()
	}
	e.log.Error("execution failed", zap.Error(err), zap.Int("active", len(e.runs)))
}

func (e *Execution) diagnose(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.diagnoseLocked(format, args...)
}

func (e *Execution) diagnoseLocked(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.state.Diagnostics = append(e.state.Diagnostics, msg)
	e.log.Warn(msg)
}

func (e *Execution) complete(c completion) {
	e.mu.Lock()
	run, ok := e.runs[c.taskID]
	e.mu.Unlock()
	if !ok {
		e.log.Error("result for unknown task", zap.String("task_id", c.taskID))
		return
	}
	// A result racing the execution's own cancellation must not be applied.
	if e.ctx.Err() != nil {
		e.fail(e.cause())
	}
	res := c.result
	res.TaskID = c.taskID
	if c.err != nil {
		res.Success = false
		res.Error = workerError(c.err)
	}
	if err := e.RecordResult(e.ctx, run.task.Role, res); err != nil {
		e.log.Error("record result", zap.String("task_id", c.taskID), zap.Error(err))
	}
}

// workerError converts a worker's Go error into an agent.Error. Errors the
// engine would retry are recoverable.
func workerError(err error) *agent.Error {
	var ae *agent.Error
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, agent.ErrHalted), errors.Is(err, context.Canceled):
		return &agent.Error{Code: "halted", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &agent.Error{Code: "timeout", Message: err.Error()}
	}
	return &agent.Error{
		Code:        "worker_error",
		Message:     err.Error(),
		Recoverable: engine.ClassifyLLMError(err) != engine.RetryClassNonRetryable,
	}
}

// RecordResult moves a task from active to completed and acts on its
// result: successful changes are applied to the tracked content, delegations
// fan out into child tasks and failures are retried or fail the execution.
// Results of halted tasks and of a failed execution are discarded.
func (e *Execution) RecordResult(ctx context.Context, role agent.Role, res agent.Result) error {
	e.mu.Lock()
	run, ok := e.runs[res.TaskID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("no active task %q", res.TaskID)
	}
	if run.task.Role != role {
		e.mu.Unlock()
		return fmt.Errorf("task %s was dispatched to %s, not %s", res.TaskID, run.task.Role, role)
	}
	delete(e.runs, res.TaskID)
	run.cancel()
	e.state.ActiveWorkers = slices.DeleteFunc(e.state.ActiveWorkers, func(w WorkerRef) bool { return w.TaskID == res.TaskID })
	e.state.CompletedWorkers = append(e.state.CompletedWorkers, refFor(run.task))
	if res.Summary != "" {
		e.state.Messages = append(e.state.Messages, agent.Message{
			From:    role.String(),
			To:      coordinatorName,
			Content: res.Summary,
			At:      e.c.now(),
		})
	}
	failed := e.state.Status == StatusFailed
	if run.dropped > 0 {
		e.diagnoseLocked("task %s: %d event(s) after halt were ignored", res.TaskID, run.dropped)
	}
	e.mu.Unlock()

	e.log.Info("task finished",
		zap.String("task_id", res.TaskID),
		zap.String("role", role.String()),
		zap.Bool("success", res.Success),
		zap.Int("changes", len(res.Changes)),
		zap.Int("delegations", len(res.Delegations)))

	switch {
	case failed:
		e.discard(res, "execution failed")
		return nil
	case run.halt != nil:
		e.discard(res, "worker halted: "+run.halt.detection.Pattern.String())
		if run.halt.escalate {
			return e.escalate(ctx, run)
		}
		return nil
	case !res.Success:
		return e.retryOrFail(ctx, run, res.Error)
	}

	for _, ch := range res.Changes {
		e.apply(ctx, run, ch)
	}
	for _, d := range res.Delegations {
		if err := e.delegate(ctx, run, d); err != nil {
			e.diagnose("task %s: delegation to %s rejected: %v", res.TaskID, d.Role, err)
		}
	}
	return nil
}

func (e *Execution) discard(res agent.Result, why string) {
	if len(res.Changes) == 0 && len(res.Delegations) == 0 {
		return
	}
	e.diagnose("task %s: discarded %d change(s) and %d delegation(s): %s",
		res.TaskID, len(res.Changes), len(res.Delegations), why)
}

// apply merges one change into the tracked content of its file. Failures
// are recorded per file and do not affect the rest of the execution.
func (e *Execution) apply(ctx context.Context, run *taskRun, ch agent.CodeChange) {
	id := ch.FileID
	if id == "" {
		id = ch.FileName
	}
	var (
		merged agent.CodeChange
		note   string
	)
	err := e.files.with(ctx, id, func(f *trackedFile) error {
		proposed, n, err := reconcile(id, f.current, ch)
		if err != nil {
			return err
		}
		if err := patch.ValidateChange(id, f.current, proposed, e.c.cfg.Budget); err != nil {
			return err
		}
		merged = ch
		merged.FileID = id
		if merged.FileName == "" {
			merged.FileName = id
		}
		merged.OriginalContent = f.current
		merged.ProposedContent = proposed
		f.current = proposed
		f.touched = true
		note = n
		return nil
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if note != "" {
		e.diagnoseLocked("task %s: %s", run.task.ID, note)
	}
	if err != nil {
		kind, idx := classifyApplyError(err)
		fe := FileError{
			FileID:     id,
			TaskID:     run.task.ID,
			Role:       run.task.Role,
			Kind:       kind,
			Message:    err.Error(),
			PatchIndex: idx,
		}
		e.state.FileErrors = append(e.state.FileErrors, fe)
		e.log.Warn("change rejected",
			zap.String("task_id", run.task.ID),
			zap.String("role", run.task.Role.String()),
			zap.String("file", id),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return
	}
	e.state.ProposedChanges[run.task.Role] = append(e.state.ProposedChanges[run.task.Role], merged)
}

// reconcile computes the new content of a file from its current content and
// a change. Patches are the source of truth: they are replayed against the
// current content, even when the worker saw an older version. A change
// without patches can only be applied to the content it was computed from.
func reconcile(id, current string, ch agent.CodeChange) (string, string, error) {
	stale := ch.OriginalContent != current
	if len(ch.Patches) == 0 {
		if stale {
			return "", "", fmt.Errorf("%w: %s changed since the worker read it", filestore.ErrVersionConflict, id)
		}
		return ch.ProposedContent, "", nil
	}

	proposed, _, err := patch.ApplyPatches(current, ch.Patches, ch.Lines)
	if err != nil {
		if stale {
			return "", "", fmt.Errorf("%w: %s changed since the worker read it and its patches no longer apply: %v",
				filestore.ErrVersionConflict, id, err)
		}
		return "", "", err
	}
	switch {
	case stale:
		return proposed, fmt.Sprintf("%s: %d patch(es) rebased onto newer content", id, len(ch.Patches)), nil
	case ch.ProposedContent != "" && ch.ProposedContent != proposed:
		return proposed, fmt.Sprintf("%s: proposed content differs from the patched result, using the patched result", id), nil
	}
	return proposed, "", nil
}

// delegate turns a delegation into a child task carrying the current
// tracked content of its files.
func (e *Execution) delegate(ctx context.Context, parent *taskRun, d agent.Delegation) error {
	if !d.Role.Specialist() {
		return fmt.Errorf("%w: %s does not edit files", ErrUnknownRole, d.Role)
	}
	if err := e.c.dispatchable(d.Role); err != nil {
		return err
	}
	files, err := e.files.snapshot(ctx, d.FileIDs)
	if err != nil {
		return err
	}
	return e.dispatch(agent.Task{
		ID:          uuid.NewString(),
		ParentID:    parent.task.ID,
		Role:        d.Role,
		Instruction: delegationInstruction(d),
		Context: agent.Context{
			Files:        files,
			Conversation: e.req.Conversation,
			Design:       e.req.Design,
			Memory:       e.req.Memory,
		},
		Delegations: []agent.Delegation{d},
	}, "")
}

func delegationInstruction(d agent.Delegation) string {
	if len(d.Preferences) == 0 {
		return d.Description
	}
	var sb strings.Builder
	sb.WriteString(d.Description)
	sb.WriteString("\n\nPreferences:\n")
	for _, k := range slices.Sorted(maps.Keys(d.Preferences)) {
		fmt.Fprintf(&sb, "- %s: %s\n", k, d.Preferences[k])
	}
	return sb.String()
}

// refresh returns t with its file snapshots replaced by current content.
func (e *Execution) refresh(ctx context.Context, t agent.Task) agent.Task {
	ids := make([]string, len(t.Context.Files))
	for i, f := range t.Context.Files {
		ids[i] = f.ID
	}
	files, err := e.files.snapshot(ctx, ids)
	if err != nil {
		e.diagnose("task %s: keeping previous file snapshots: %v", t.ID, err)
		return t
	}
	t.Context.Files = files
	return t
}

// retryOrFail retries a recoverable failure with backoff and the same
// instruction, or fails the execution.
func (e *Execution) retryOrFail(ctx context.Context, run *taskRun, aerr *agent.Error) error {
	if aerr == nil {
		aerr = &agent.Error{Code: "worker_error", Message: "worker reported failure without an error"}
	}
	retry := aerr.Recoverable && run.task.Attempt < e.c.cfg.MaxRetries

	e.mu.Lock()
	e.state.WorkerErrors = append(e.state.WorkerErrors, TaskError{
		TaskID:      run.task.ID,
		Role:        run.task.Role,
		Attempt:     run.task.Attempt,
		Code:        aerr.Code,
		Message:     aerr.Message,
		Recoverable: aerr.Recoverable,
		Retried:     retry,
	})
	if !retry {
		cause := ErrWorkerFailed
		if aerr.Recoverable {
			cause = ErrRetriesExhausted
		}
		e.failLocked(fmt.Errorf("%w: %s: %v", cause, run.task.Role, aerr))
		e.mu.Unlock()
		return nil
	}
	e.pending++
	e.mu.Unlock()

	next := e.refresh(ctx, run.task)
	next.ID = uuid.NewString()
	next.Attempt++
	delay := engine.BackoffDelay(e.c.cfg.Retry, run.task.Attempt, aerr)
	e.log.Info("retrying task",
		zap.String("task_id", run.task.ID),
		zap.String("role", run.task.Role.String()),
		zap.Int("attempt", next.Attempt),
		zap.Duration("delay", delay),
		zap.String("error", aerr.Error()))
	go e.scheduleRetry(delay, retryMsg{task: next, lineage: run.lineage})
	return nil
}

func (e *Execution) scheduleRetry(delay time.Duration, r retryMsg) {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-e.ctx.Done():
		r.cancelled = true
	}
	e.retries <- r
}

func (e *Execution) retried(r retryMsg) {
	e.mu.Lock()
	e.pending--
	e.mu.Unlock()
	if r.cancelled {
		return
	}
	if err := e.dispatch(r.task, r.lineage); err != nil && !errors.Is(err, ErrTerminal) {
		e.fail(err)
	}
}

// escalate re-dispatches a halted task once with an instruction that tells
// the worker to stop repeating itself and wrap up.
func (e *Execution) escalate(ctx context.Context, run *taskRun) error {
	next := e.refresh(ctx, run.task)
	next.ID = uuid.NewString()
	next.Escalated = true
	next.Instruction = escalationInstruction(run.task.Instruction, run.halt.detection)
	return e.dispatch(next, run.lineage)
}

func escalationInstruction(original string, d stuck.Detection) string {
	return fmt.Sprintf(`%s

Your previous attempt at this task was stopped because it was going in circles (%s: %s).
Do not repeat the same tool calls. Summarize what you already know, make only the edits you are sure of, then call respond. If the task cannot be finished, say why in the summary and give a low confidence.`,
		original, d.Pattern, d.Reason)
}

// Finalize decides the terminal status once no task is active. Failed
// executions stay failed. Otherwise the review runs when required, and any
// change below the approval threshold or a rejected review with blocking
// findings leads to awaiting_approval.
func (e *Execution) Finalize(ctx context.Context) (ExecutionState, error) {
	e.mu.Lock()
	if len(e.runs) > 0 || e.pending > 0 {
		e.mu.Unlock()
		return e.Snapshot(), fmt.Errorf("%w: %d active, %d pending", ErrBusy, len(e.runs), e.pending)
	}
	if !e.state.EndedAt.IsZero() {
		st := e.state.clone()
		e.mu.Unlock()
		return st, nil
	}
	e.closing = true
	status := e.state.Status
	changes := e.state.Changes()
	e.mu.Unlock()

	files := e.files.results()
	if status == StatusFailed {
		return e.end(status, nil, files, nil), nil
	}

	var (
		review      *agent.ReviewResult
		needsReview bool
	)
	if e.c.cfg.ReviewRequired && len(changes) > 0 {
		switch rv, err := e.review(ctx, changes); {
		case err != nil:
			e.diagnose("review failed: %v", err)
			needsReview = true
		default:
			review = &rv
			// A rejection always waits for a person, whatever the severities.
			// An approval carrying a critical or major finding waits too.
			needsReview = !rv.Approved || blocking(rv.Findings)
		}
	}

	final := StatusCompleted
	if lowConfidence(changes, e.c.cfg.ApprovalThreshold) || needsReview {
		final = StatusAwaitingApproval
	}
	var ferrs []FileError
	if final == StatusCompleted && e.c.cfg.WriteOnComplete && len(files) > 0 {
		files, ferrs = writeFiles(ctx, e.c.store, files)
	}
	return e.end(final, review, files, ferrs), nil
}

func (e *Execution) review(ctx context.Context, changes []agent.CodeChange) (agent.ReviewResult, error) {
	if e.c.reviewer == nil {
		return agent.ReviewResult{}, errors.New("review required but no reviewer configured")
	}
	rv, err := e.c.reviewer.Review(ctx, changes)
	if err != nil {
		return agent.ReviewResult{}, err
	}
	e.log.Info("review finished",
		zap.String("role", agent.RoleReview.String()),
		zap.Bool("approved", rv.Approved),
		zap.Int("findings", len(rv.Findings)))
	return rv, nil
}

func (e *Execution) end(status Status, review *agent.ReviewResult, files []FileResult, ferrs []FileError) ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Status = status
	e.state.Review = review
	e.state.Files = files
	e.state.FileErrors = append(e.state.FileErrors, ferrs...)
	e.state.EndedAt = e.c.now()
	return e.state.clone()
}

func blocking(findings []agent.ReviewFinding) bool {
	return slices.ContainsFunc(findings, func(f agent.ReviewFinding) bool { return f.Severity.Blocking() })
}

func lowConfidence(changes []agent.CodeChange, threshold float64) bool {
	return slices.ContainsFunc(changes, func(c agent.CodeChange) bool { return c.Confidence < threshold })
}

// approve writes the files of an execution awaiting approval.
func (e *Execution) approve(ctx context.Context) (ExecutionState, error) {
	st := e.Snapshot()
	if st.Status != StatusAwaitingApproval {
		return st, fmt.Errorf("execution %s is %s, not awaiting approval", e.id, st.Status)
	}
	written, err := ApplyApproved(ctx, e.c.store, st)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Files = written.Files
	e.state.FileErrors = written.FileErrors
	e.state.Status = written.Status
	e.log.Info("execution approved", zap.String("status", string(written.Status)), zap.Error(err))
	return e.state.clone(), err
}
