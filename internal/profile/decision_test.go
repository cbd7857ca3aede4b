package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/swipekit/swipekit/internal/wire"
)

func TestNeedsBioUpdate(t *testing.T) {
	t.Run("empty bio with a target is replaced", func(t *testing.T) {
		assert.True(t, NeedsBioUpdate("", "Hello"))
	})

	t.Run("unresolved placeholder forces an update", func(t *testing.T) {
		assert.True(t, NeedsBioUpdate("Hey, I'm %username%!", "Hey, I'm Alex!"))
	})

	t.Run("identical bios need no update", func(t *testing.T) {
		assert.False(t, NeedsBioUpdate("Hello world this is me", "Hello world this is me"))
	})

	t.Run("comparison ignores case and surrounding whitespace", func(t *testing.T) {
		assert.False(t, NeedsBioUpdate("  Hello World  ", "hello world"))
	})

	t.Run("short bios are always replaced", func(t *testing.T) {
		assert.True(t, NeedsBioUpdate("hi", "Hello world this is me"))
	})

	t.Run("long differing bios are replaced", func(t *testing.T) {
		assert.True(t, NeedsBioUpdate("A completely different story", "Hello world this is me"))
	})

	t.Run("both empty needs nothing", func(t *testing.T) {
		assert.False(t, NeedsBioUpdate("", ""))
	})
}

func TestNeedsPromptUpdate(t *testing.T) {
	prompts := []wire.Prompt{
		{ID: "pro_1", Text: "Ask me about my travels"},
		{ID: "pro_2", Text: ""},
	}

	t.Run("matching prompt with equal text needs no update", func(t *testing.T) {
		assert.False(t, NeedsPromptUpdate(prompts, "pro_1", "ask me about my travels"))
	})

	t.Run("matching prompt with different text is updated", func(t *testing.T) {
		assert.True(t, NeedsPromptUpdate(prompts, "pro_1", "Something else entirely"))
	})

	t.Run("empty prompt text is updated", func(t *testing.T) {
		assert.True(t, NeedsPromptUpdate(prompts, "pro_2", "Anything"))
	})

	t.Run("missing prompt id is updated", func(t *testing.T) {
		assert.True(t, NeedsPromptUpdate(prompts, "pro_9", "Anything"))
	})

	t.Run("placeholder in prompt text is updated", func(t *testing.T) {
		withPlaceholder := []wire.Prompt{{ID: "pro_3", Text: "Adventures with %username%"}}
		assert.True(t, NeedsPromptUpdate(withPlaceholder, "pro_3", "Adventures with Alex"))
	})
}

func TestResolvePlaceholders(t *testing.T) {
	assert.Equal(t, "Hey, I'm Alex!", ResolvePlaceholders("Hey, I'm %username%!", "Alex"))
	assert.Equal(t, "no change", ResolvePlaceholders("no change", "Alex"))
}
