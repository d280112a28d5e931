package core

import "testing"

import "github.com/stretchr/testify/assert"

func TestTerminalDetector_FinishAndUsageTogether(t *testing.T) {
	var d TerminalDetector
	assert.True(t, d.Observe(true, true))
	assert.Equal(t, StateTerminated, d.State())
}

func TestTerminalDetector_FinishThenUsage(t *testing.T) {
	var d TerminalDetector
	assert.False(t, d.Observe(true, false))
	assert.Equal(t, StateFinishSeen, d.State())
	assert.True(t, d.Observe(false, true))
	assert.Equal(t, StateTerminated, d.State())
}

func TestTerminalDetector_UsageWithoutFinishNeverTerminal(t *testing.T) {
	var d TerminalDetector
	assert.False(t, d.Observe(false, true))
	assert.Equal(t, StateNoFinish, d.State())
}

func TestTerminalDetector_StaysTerminated(t *testing.T) {
	var d TerminalDetector
	d.Observe(true, true)
	assert.False(t, d.Observe(true, true))
}

func TestContent_TextOf(t *testing.T) {
	assert.Equal(t, "hello", TextOf(TextContent("hello")))

	parts := PartsContent{
		{Type: "text", Text: "foo"},
		{Type: "image_url", ImageURL: &ImageURL{URL: "http://x"}},
		{Type: "text", Text: "bar"},
	}
	assert.Equal(t, "foobar", TextOf(parts))
}

func TestContent_HasCacheControl(t *testing.T) {
	assert.False(t, HasCacheControl(TextContent("hi")))

	withCache := PartsContent{{Type: "text", Text: "x", CacheControl: &CacheControl{Type: "ephemeral"}}}
	assert.True(t, HasCacheControl(withCache))

	withoutCache := PartsContent{{Type: "text", Text: "x"}}
	assert.False(t, HasCacheControl(withoutCache))
}
