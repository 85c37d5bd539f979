package browser

import (
	"context"

	"github.com/lumenforge/aria/internal/logutil"
)

// DefaultModel is used whenever GenerationIntent names a model the
// translator doesn't recognize.
const DefaultModel = "v4.5"

var knownModels = map[string]bool{
	"v4.5":    true,
	"remi":    true,
	"classic": true,
}

// UITranslator converts a GenerationIntent into the deterministic
// Action sequence the site's creation form expects.
type UITranslator struct {
	baseURL string
	logger  logutil.LoggerInterface
}

// NewUITranslator constructs a UITranslator that navigates to baseURL
// before every translated sequence.
func NewUITranslator(baseURL string, logger logutil.LoggerInterface) *UITranslator {
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[browser] ")
	}
	return &UITranslator{baseURL: baseURL, logger: logger}
}

// Translate implements the fixed sequence: navigate, model select
// (falling back to DefaultModel with a warning on an unrecognized
// model), lyrics-mode toggle, lyrics input (if present), style input,
// title input, create click.
func (t *UITranslator) Translate(ctx context.Context, intent GenerationIntent) []Action {
	actions := []Action{
		{Action: ActionNavigate, URL: t.baseURL},
	}

	model := intent.Model
	if model == "" || !knownModels[model] {
		if model != "" {
			t.logger.WarnContext(ctx, "unknown model requested, falling back to default: requested=%s default=%s", model, DefaultModel)
		}
		model = DefaultModel
	}
	actions = append(actions,
		Action{Action: ActionClick, Target: "model_dropdown"},
		Action{Action: ActionClick, Target: "model_option_" + model},
	)

	lyricsMode := intent.LyricsMode
	if lyricsMode == "" {
		lyricsMode = "full_song"
	}
	if lyricsMode == "by_line" {
		actions = append(actions, Action{Action: ActionClick, Target: "by_line_toggle"})
	} else {
		actions = append(actions, Action{Action: ActionClick, Target: "full_song_toggle"})
	}

	if intent.Lyrics != "" {
		actions = append(actions, Action{Action: ActionInput, Target: "lyrics_input", Value: intent.Lyrics})
	}
	if intent.Style != "" {
		actions = append(actions, Action{Action: ActionInput, Target: "style_input", Value: intent.Style})
	}
	if intent.Title != "" {
		actions = append(actions, Action{Action: ActionInput, Target: "song_title_input", Value: intent.Title})
	}

	actions = append(actions, Action{Action: ActionClick, Target: "create_button"})
	return actions
}
