package engine

import (
	"context"
	"fmt"
)

// Run executes the tool-use loop until the model finishes, max steps are
// reached, a soft cap trips, or an error occurs.
//
// Steps increment only on successful completion; retries are tracked
// separately in st.Retries.
func Run(ctx context.Context, llm LLMClient, reg ToolRegistry, st *State, hooks Hooks, cfg EngineConfig) error {
	st.Step = 0
	if st.MaxSteps <= 0 {
		st.MaxSteps = cfg.MaxSteps
	}
	if st.Model == "" {
		st.Model = cfg.Model
	}
	if st.FailureCounts == nil {
		st.FailureCounts = make(map[string]int)
	}

	for st.Step < st.MaxSteps && !st.Done {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("execution cancelled: %w", err)
		}
		if err := checkSoftCaps(st); err != nil {
			hooks.OnSoftCapReached(ctx, st, err)
			return err
		}
		if err := stepOnce(ctx, llm, reg, st, hooks, cfg); err != nil {
			return err
		}
		st.Step++
	}
	if !st.Done {
		return &SoftCapError{
			Type:    "step_limit",
			Message: fmt.Sprintf("stopped after %d steps without calling %s", st.MaxSteps, RespondTool),
		}
	}
	hooks.OnDone(ctx, st)
	return nil
}
