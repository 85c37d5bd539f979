package browser

import (
	"context"
	"testing"

	"github.com/lumenforge/aria/internal/logutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate_FullSequenceOrder(t *testing.T) {
	translator := NewUITranslator("https://site.example/create", logutil.NewTestLogger(t))
	actions := translator.Translate(context.Background(), GenerationIntent{
		Model:  "v4.5",
		Lyrics: "verse one",
		Style:  "lo-fi",
		Title:  "Coding Chill",
	})

	require.True(t, len(actions) >= 7)
	assert.Equal(t, ActionNavigate, actions[0].Action)
	assert.Equal(t, "https://site.example/create", actions[0].URL)
	assert.Equal(t, ActionClick, actions[len(actions)-1].Action)
	assert.Equal(t, "create_button", actions[len(actions)-1].Target)

	var sawLyrics, sawStyle, sawTitle bool
	for _, a := range actions {
		if a.Action == ActionInput && a.Target == "lyrics_input" {
			sawLyrics = true
		}
		if a.Action == ActionInput && a.Target == "style_input" {
			sawStyle = true
		}
		if a.Action == ActionInput && a.Target == "song_title_input" {
			sawTitle = true
		}
	}
	assert.True(t, sawLyrics)
	assert.True(t, sawStyle)
	assert.True(t, sawTitle)
}

func TestTranslate_UnknownModelFallsBackToDefault(t *testing.T) {
	translator := NewUITranslator("https://site.example/create", logutil.NewTestLogger(t))
	actions := translator.Translate(context.Background(), GenerationIntent{Model: "not-a-real-model"})

	found := false
	for _, a := range actions {
		if a.Action == ActionClick && a.Target == "model_option_"+DefaultModel {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTranslate_NoLyricsSkipsLyricsInput(t *testing.T) {
	translator := NewUITranslator("https://site.example/create", logutil.NewTestLogger(t))
	actions := translator.Translate(context.Background(), GenerationIntent{})
	for _, a := range actions {
		assert.NotEqual(t, "lyrics_input", a.Target)
	}
}

func TestTranslate_ByLineModeUsesByLineToggle(t *testing.T) {
	translator := NewUITranslator("https://site.example/create", logutil.NewTestLogger(t))
	actions := translator.Translate(context.Background(), GenerationIntent{LyricsMode: "by_line"})
	found := false
	for _, a := range actions {
		if a.Target == "by_line_toggle" {
			found = true
		}
	}
	assert.True(t, found)
}
