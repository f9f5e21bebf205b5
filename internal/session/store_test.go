package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/coordinator"
	"github.com/prime30/synapse-sub013/internal/stuck"
)

func finished(id, instruction string, status coordinator.Status) coordinator.ExecutionState {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return coordinator.ExecutionState{
		ID:          id,
		Instruction: instruction,
		Status:      status,
		CompletedWorkers: []coordinator.WorkerRef{
			{TaskID: "t1", Role: agent.RoleProjectManager},
			{TaskID: "t2", Role: agent.RoleCSS},
			{TaskID: "t3", Role: agent.RoleCSS, Attempt: 1},
		},
		ProposedChanges: map[agent.Role][]agent.CodeChange{
			agent.RoleCSS: {{FileID: "assets/base.css", FileName: "assets/base.css", ProposedContent: "a", Confidence: 0.9}},
		},
		Files:     []coordinator.FileResult{{ID: "assets/base.css", Content: "a", Version: "2"}},
		StartedAt: start,
		EndedAt:   start.Add(time.Minute),
	}
}

func newTestStore(t *testing.T) *Store {
	s := NewStore(t.TempDir())
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestStore(t *testing.T) {
	store := newTestStore(t)
	projectPath := "/path/to/theme"

	st := finished("exec-1", "Make the header sticky", coordinator.StatusCompleted)
	rec, err := store.Save(projectPath, st)
	require.NoError(t, err)

	expectedPath := filepath.Join(store.basePath, ProjectHash(projectPath), "exec-1.json")
	_, err = os.Stat(expectedPath)
	require.NoError(t, err)

	loaded, err := store.Load("exec-1", projectPath)
	require.NoError(t, err)
	assert.Equal(t, rec.Summary, loaded.Summary)
	assert.Equal(t, st.ID, loaded.State.ID)
	assert.Equal(t, coordinator.StatusCompleted, loaded.State.Status)
	require.Len(t, loaded.State.ProposedChanges[agent.RoleCSS], 1)
	assert.True(t, loaded.State.StartedAt.Equal(st.StartedAt))

	_, err = store.Load("exec-2", projectPath)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Load("exec-1", "/some/other/theme")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	projectPath := "/path/to/theme"

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Save(projectPath, finished(id, "Task "+id, coordinator.StatusCompleted))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(store.basePath, ProjectHash(projectPath), "junk.json"), []byte("{"), 0o644))

	list, err := store.List(projectPath)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "a", list[2].ID)

	empty, err := store.List("/nowhere")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemory(t *testing.T) {
	store := newTestStore(t)
	projectPath := "/path/to/theme"
	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Save(projectPath, finished(id, "Task "+id, coordinator.StatusCompleted))
		require.NoError(t, err)
	}

	mem, err := store.Memory(projectPath, 2)
	require.NoError(t, err)
	lines := splitLines(mem)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"Task b"`)
	assert.Contains(t, lines[1], `"Task c"`)
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := range len(s) {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func TestSaveRejectsUnsafeIDs(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"", "../escape", "a/b", ".hidden"} {
		_, err := store.Save("/p", finished(id, "x", coordinator.StatusFailed))
		assert.Error(t, err, id)
	}
}

func TestSummarize(t *testing.T) {
	st := finished("e", "Make the header sticky on scroll for every template in the theme", coordinator.StatusAwaitingApproval)
	st.Loops = []coordinator.LoopRecord{{TaskID: "t2", Role: agent.RoleCSS, Pattern: stuck.PatternMonologue}}
	st.Review = &agent.ReviewResult{Approved: false, Findings: []agent.ReviewFinding{{Severity: agent.SeverityMajor}}}

	got := Summarize(st)
	assert.Equal(t,
		`"Make the header sticky on scroll for every…" ended awaiting_approval. Changed 1 file(s): assets/base.css. Workers: project_manager, css. 1 loop(s) detected, first monologue. Review not approved with 1 finding(s).`,
		got)
	assert.Equal(t, got, Summarize(st))

	failed := coordinator.ExecutionState{Instruction: "Fix cart", Status: coordinator.StatusFailed, FailureReason: "worker failed"}
	assert.Equal(t, `"Fix cart" ended failed (worker failed). No files changed.`, Summarize(failed))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Untitled", Title("   "))
	assert.Equal(t, "Fix cart drawer", Title("Fix  cart\ndrawer"))
}
