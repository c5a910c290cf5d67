package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderAndParseFrontmatterRoundTrip(t *testing.T) {
	meta := Meta{
		ID:          "sess-1",
		Title:       "fix the parser",
		ProjectHash: "abcdef012345",
		ProjectPath: "/home/dev/project",
		AgentID:     "agent-1",
		ModelID:     "model-1",
		CreatedAt:   1000,
		UpdatedAt:   1000,
		Tags:        []string{"bug", "parser"},
	}
	doc, err := RenderFrontmatter(meta)
	require.NoError(t, err)

	parsed, turns, err := Parse(doc)
	require.NoError(t, err)
	require.Empty(t, turns)
	require.Equal(t, meta.ID, parsed.ID)
	require.Equal(t, meta.Tags, parsed.Tags)
}

func TestRenderAndParseTurnsRoundTrip(t *testing.T) {
	meta := Meta{ID: "sess-2", ProjectHash: "abc", ProjectPath: "/p", AgentID: "a", ModelID: "m", CreatedAt: 1, UpdatedAt: 1}
	doc, err := RenderFrontmatter(meta)
	require.NoError(t, err)

	doc += RenderTurn(Turn{TurnNumber: 1, Role: RoleUser, Content: "please run the tests", CreatedAt: 10})
	doc += RenderTurn(Turn{
		TurnNumber: 2, Role: RoleAssistant, Content: "running tests now", CreatedAt: 20,
		ToolCalls: []ToolCall{{Name: "shell-exec", Args: `{"cmd":"go test ./..."}`, Result: `{"exit":0}`}},
	})

	_, turns, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, 1, turns[0].TurnNumber)
	require.Equal(t, "please run the tests", turns[0].Content)
	require.Equal(t, 2, turns[1].TurnNumber)
	require.Len(t, turns[1].ToolCalls, 1)
	require.Equal(t, "shell-exec", turns[1].ToolCalls[0].Name)
	require.False(t, turns[1].ToolCalls[0].Error)
}

func TestParseRejectsMissingFrontmatter(t *testing.T) {
	_, _, err := Parse("no frontmatter here")
	require.Error(t, err)
}
