package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompileString_NoHTMLEscaping(t *testing.T) {
	got := CompileString("val={{j}}", map[string]any{"j": `{"k":1}`})
	assert.Equal(t, `val={"k":1}`, got)
}

func TestCompile_TextPrompt(t *testing.T) {
	p := Prompt{Type: TypeText, Text: "hello {{x}}"}
	got := p.Compile(map[string]any{"x": "world"}, nil)
	assert.Equal(t, "hello world", got)
}

func TestCompile_ChatPrompt_RendersEachMessage(t *testing.T) {
	p := Prompt{
		Type: TypeChat,
		Chat: []ChatItem{
			{Type: ChatItemMessage, Role: "system", Content: "you are {{persona}}"},
			{Type: ChatItemMessage, Role: "user", Content: "hi"},
		},
	}
	got := p.Compile(map[string]any{"persona": "helpful"}, nil).([]ChatItem)
	assert.Equal(t, "you are helpful", got[0].Content)
	assert.Equal(t, "hi", got[1].Content)
}

func TestCompile_ChatPrompt_ExpandsPlaceholder(t *testing.T) {
	p := Prompt{
		Type: TypeChat,
		Chat: []ChatItem{
			{Type: ChatItemMessage, Role: "system", Content: "start"},
			{Type: ChatItemPlaceholder, Name: "history"},
			{Type: ChatItemMessage, Role: "user", Content: "end"},
		},
	}
	placeholders := map[string][]ChatItem{
		"history": {
			{Type: ChatItemMessage, Role: "user", Content: "q1"},
			{Type: ChatItemMessage, Role: "assistant", Content: "a1"},
		},
	}
	got := p.Compile(nil, placeholders).([]ChatItem)
	assert.Len(t, got, 4)
	assert.Equal(t, "q1", got[1].Content)
	assert.Equal(t, "a1", got[2].Content)
}

func TestCompile_ChatPrompt_UnresolvedPlaceholderPreserved(t *testing.T) {
	p := Prompt{
		Type: TypeChat,
		Chat: []ChatItem{
			{Type: ChatItemPlaceholder, Name: "missing"},
		},
	}
	got := p.Compile(nil, nil).([]ChatItem)
	assert.Equal(t, []ChatItem{{Type: ChatItemPlaceholder, Name: "missing"}}, got)
}
