// Package coordinator runs executions: it dispatches tasks to role-scoped
// workers, watches their tool activity for loops, applies their changes to
// tracked file content and decides the final status.
//
// Each execution is owned by a single goroutine. Workers talk to it through
// two channels, one carrying tool events and one carrying results. The only
// lock shared between goroutines of one execution is the per-file lock used
// while a change is applied.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/filestore"
)

// Worker runs one task. It reports tool activity through sink and must stop
// issuing tool calls once Emit returns agent.ErrHalted.
type Worker interface {
	Run(ctx context.Context, task agent.Task, sink agent.EventSink) (agent.Result, error)
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context, task agent.Task, sink agent.EventSink) (agent.Result, error)

func (f WorkerFunc) Run(ctx context.Context, task agent.Task, sink agent.EventSink) (agent.Result, error) {
	return f(ctx, task, sink)
}

// Reviewer judges the aggregate changes of an execution.
type Reviewer interface {
	Review(ctx context.Context, changes []agent.CodeChange) (agent.ReviewResult, error)
}

// Request is a user request submitted for execution.
type Request struct {
	ProjectID   string
	UserID      string
	Instruction string
	// FileIDs scopes the request. Empty means every file in the store.
	FileIDs []string
	// Role forces the first worker. Zero routes automatically.
	Role         agent.Role
	Conversation []agent.Message
	Design       string
	Memory       string
}

// Coordinator is a registry of independent executions.
type Coordinator struct {
	store    filestore.Store
	workers  map[agent.Role]Worker
	reviewer Reviewer
	cfg      Config
	log      *zap.Logger
	onFinish func(ExecutionState)

	mu         sync.Mutex
	executions map[string]*Execution
}

// New creates a Coordinator dispatching to workers by role.
func New(store filestore.Store, workers map[agent.Role]Worker, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:      store,
		workers:    workers,
		cfg:        DefaultConfig(),
		log:        zap.NewNop(),
		executions: make(map[string]*Execution),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// dispatchable reports whether tasks for r can be sent to a worker.
func (c *Coordinator) dispatchable(r agent.Role) error {
	switch r {
	case agent.RoleProjectManager, agent.RoleLiquid, agent.RoleCSS, agent.RoleJavaScript, agent.RoleJSON, agent.RoleGeneral:
	case agent.RoleReview:
		return fmt.Errorf("%w: %s runs after all workers finish", ErrUnknownRole, r)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownRole, r)
	}
	if _, ok := c.workers[r]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, r)
	}
	return nil
}

// route picks the first worker for a request: the explicit role, else the
// project manager, else the specialist shared by all files, else general.
func (c *Coordinator) route(req Request) (agent.Role, error) {
	if req.Role != 0 {
		return req.Role, c.dispatchable(req.Role)
	}
	if _, ok := c.workers[agent.RoleProjectManager]; ok {
		return agent.RoleProjectManager, nil
	}
	role := agent.RoleGeneral
	for i, id := range req.FileIDs {
		r := agent.RoleForFile(id)
		if i > 0 && r != role {
			role = agent.RoleGeneral
			break
		}
		role = r
	}
	if _, ok := c.workers[role]; !ok {
		role = agent.RoleGeneral
	}
	return role, c.dispatchable(role)
}

// Submit starts an execution for req and returns immediately. ctx bounds the
// whole execution; detach it with context.WithoutCancel to outlive the caller.
func (c *Coordinator) Submit(ctx context.Context, req Request) (*Execution, error) {
	if strings.TrimSpace(req.Instruction) == "" {
		return nil, errors.New("instruction cannot be empty")
	}
	role, err := c.route(req)
	if err != nil {
		return nil, err
	}
	if len(req.FileIDs) == 0 {
		ids, err := c.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		req.FileIDs = ids
	}

	e := newExecution(ctx, c, req)
	files, err := e.files.snapshot(ctx, req.FileIDs)
	if err != nil {
		e.stop()
		return nil, fmt.Errorf("read request files: %w", err)
	}

	c.mu.Lock()
	c.executions[e.id] = e
	c.mu.Unlock()

	first := agent.Task{
		ID:          uuid.NewString(),
		Role:        role,
		Instruction: req.Instruction,
		Context: agent.Context{
			Files:        files,
			Conversation: req.Conversation,
			Design:       req.Design,
			Memory:       req.Memory,
		},
	}
	c.log.Info("execution submitted",
		zap.String("execution_id", e.id),
		zap.String("project_id", req.ProjectID),
		zap.String("role", role.String()),
		zap.Int("files", len(files)))
	go e.run(first)
	return e, nil
}

// Get returns the execution with the given id.
func (c *Coordinator) Get(id string) (*Execution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.executions[id]
	return e, ok
}

// Cancel aborts a running execution. Active workers are told to stop and
// none of their changes are applied.
func (c *Coordinator) Cancel(id string) error {
	e, ok := c.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.Snapshot().Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, id)
	}
	e.Cancel()
	return nil
}

// Approve writes the changes of an execution awaiting approval and marks it
// completed.
func (c *Coordinator) Approve(ctx context.Context, id string) (ExecutionState, error) {
	e, ok := c.Get(id)
	if !ok {
		return ExecutionState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.approve(ctx)
}

// Remove forgets a finished execution.
func (c *Coordinator) Remove(id string) error {
	e, ok := c.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	select {
	case <-e.done:
	default:
		return fmt.Errorf("%w: %s", ErrBusy, id)
	}
	c.mu.Lock()
	delete(c.executions, id)
	c.mu.Unlock()
	return nil
}

// List returns snapshots of all known executions, oldest first.
func (c *Coordinator) List() []ExecutionState {
	c.mu.Lock()
	execs := make([]*Execution, 0, len(c.executions))
	for _, e := range c.executions {
		execs = append(execs, e)
	}
	c.mu.Unlock()

	out := make([]ExecutionState, 0, len(execs))
	for _, e := range execs {
		out = append(out, e.Snapshot())
	}
	slices.SortFunc(out, func(a, b ExecutionState) int { return a.StartedAt.Compare(b.StartedAt) })
	return out
}

func (c *Coordinator) finished(st ExecutionState) {
	c.log.Info("execution finished",
		zap.String("execution_id", st.ID),
		zap.String("status", string(st.Status)),
		zap.Int("changes", len(st.Changes())),
		zap.Int("file_errors", len(st.FileErrors)),
		zap.Duration("duration", st.Duration()),
		zap.String("reason", st.FailureReason))
	if c.onFinish != nil {
		c.onFinish(st)
	}
}

func (c *Coordinator) newSemaphore() *semaphore.Weighted {
	return semaphore.NewWeighted(int64(max(c.cfg.MaxConcurrent, 1)))
}

func (c *Coordinator) now() time.Time { return time.Now() }
