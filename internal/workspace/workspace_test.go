package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/patch"
)

func newTestWorkspace() *Workspace {
	return New([]agent.FileSnapshot{
		{ID: "f1", Name: "sections/header.liquid", Content: "<header>\n  <h1>{{ shop.name }}</h1>\n</header>\n"},
		{ID: "f2", Name: "assets/base.css", Content: "a { color: red; }\nb { color: red; }\n"},
	})
}

func TestReadByNameAndID(t *testing.T) {
	w := newTestWorkspace()

	byName, err := w.Read("sections/header.liquid")
	require.NoError(t, err)
	byID, err := w.Read("f1")
	require.NoError(t, err)
	assert.Equal(t, byName, byID)

	_, err = w.Read("missing.liquid")
	assert.ErrorIs(t, err, ErrUnknownFile)
}

func TestReplaceRecordsReplayablePatches(t *testing.T) {
	w := newTestWorkspace()

	_, err := w.Replace("f1", "<h1>{{ shop.name }}</h1>", "<h1 class=\"title\">{{ shop.name }}</h1>", false)
	require.NoError(t, err)
	res, err := w.Replace("sections/header.liquid", "<header>", "<header class=\"site\">", false)
	require.NoError(t, err)
	assert.Equal(t, patch.StrategyExact, res.Strategy)

	changes := w.Changes("add classes", 0.9)
	require.Len(t, changes, 1)
	c := changes[0]
	assert.Equal(t, "f1", c.FileID)
	assert.Equal(t, 0.9, c.Confidence)
	require.Len(t, c.Patches, 2)

	replayed, _, err := patch.ApplyPatches(c.OriginalContent, c.Patches, nil)
	require.NoError(t, err)
	assert.Equal(t, c.ProposedContent, replayed)
}

func TestReplaceFailureLeavesContent(t *testing.T) {
	w := newTestWorkspace()

	_, err := w.Replace("f2", "color: red;", "color: blue;", false)
	assert.True(t, patch.IsAmbiguous(err))
	assert.Empty(t, w.Changed())
}

func TestReplaceAllDropsPatches(t *testing.T) {
	w := newTestWorkspace()

	res, err := w.Replace("f2", "color: red;", "color: blue;", true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.MatchCount)

	changes := w.Changes("", 1)
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].Patches)
	assert.Equal(t, "a { color: blue; }\nb { color: blue; }\n", changes[0].ProposedContent)
}

func TestWrite(t *testing.T) {
	w := newTestWorkspace()

	created, err := w.Write("snippets/new.liquid", "hello\n")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = w.Write("assets/base.css", "a{}\n")
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, []string{"assets/base.css", "snippets/new.liquid"}, w.Changed())

	changes := w.Changes("", 1)
	require.Len(t, changes, 2)
	for _, c := range changes {
		assert.Nil(t, c.Patches)
	}
	assert.Equal(t, "", changes[1].OriginalContent)
}

func TestAllIteratesInOrder(t *testing.T) {
	w := newTestWorkspace()
	var names []string
	for name := range w.All() {
		names = append(names, name)
	}
	assert.Equal(t, []string{"assets/base.css", "sections/header.liquid"}, names)
}
