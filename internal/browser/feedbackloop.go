package browser

import (
	"context"
	"fmt"
	"regexp"

	"github.com/lumenforge/aria/internal/logutil"
)

// songURLPattern matches the canonical generated-song-URL shape: a
// "/song/<id>" path segment, with the id captured for extraction.
var songURLPattern = regexp.MustCompile(`^https?://[^/\s]+/song/([A-Za-z0-9_-]+)/?$`)

// MaxFixRounds bounds how many suggested-fix retries a single failed
// step may absorb before the step is a permanent failure.
const MaxFixRounds = 3

// FeedbackLoop runs a translated Action sequence against driver,
// validating every action-level success with validator before
// proceeding to the next action.
type FeedbackLoop struct {
	table        SelectorTable
	screenshotAt func(index int) string
	logger       logutil.LoggerInterface
}

// NewFeedbackLoop constructs a FeedbackLoop. screenshotAt builds the
// filename used for the validation screenshot of action index; callers
// typically close over a run ID and a screenshot directory.
func NewFeedbackLoop(table SelectorTable, screenshotAt func(index int) string, logger logutil.LoggerInterface) *FeedbackLoop {
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[browser] ")
	}
	return &FeedbackLoop{table: table, screenshotAt: screenshotAt, logger: logger}
}

// Run executes actions in order against driver. Action-level failures
// skip validation and fail the step immediately. A validation rejection
// carrying a structurally valid SuggestedFix is retried up to
// MaxFixRounds times; exceeding the cap is a permanent failure returned
// as *ErrStepFailed.
func (l *FeedbackLoop) Run(ctx context.Context, driver BrowserDriver, validator Validator, actions []Action) (StepOutcome, error) {
	outcome := StepOutcome{}

	for i := 0; i < len(actions); i++ {
		action := actions[i]
		result, err := Execute(ctx, driver, l.table, action)
		if err != nil || !result.Success {
			reason := result.Error
			if reason == "" && err != nil {
				reason = err.Error()
			}
			return outcome, &ErrStepFailed{Reason: fmt.Sprintf("action %s/%s failed: %s", action.Action, action.Target, reason), Rounds: 0}
		}

		screenshotPath, shotErr := l.screenshot(ctx, driver, i)
		if shotErr != nil {
			return outcome, &ErrStepFailed{Reason: fmt.Sprintf("capturing validation screenshot: %v", shotErr), Rounds: 0}
		}
		outcome.Screenshots = append(outcome.Screenshots, screenshotPath)

		expected := ExpectedState{ActionPerformed: action, ActionSucceeded: true, ExpectedText: action.Value}

		rounds := 0
		for {
			resp, valErr := validator.ValidateUIState(ctx, screenshotPath, expected)
			if valErr != nil {
				return outcome, &ErrStepFailed{Reason: fmt.Sprintf("validator error: %v", valErr), Rounds: rounds}
			}
			resp = resp.sanitize()

			if resp.Approved {
				outcome.Approved = true
				outcome.Feedback = resp.Feedback
				outcome.Rounds += rounds
				break
			}

			if rounds >= MaxFixRounds || len(resp.SuggestedFix) == 0 {
				outcome.Approved = false
				outcome.Feedback = resp.Feedback
				return outcome, &ErrStepFailed{Reason: resp.Feedback, Rounds: rounds}
			}

			l.logger.WarnContext(ctx, "validation rejected, applying suggested fix: round=%d feedback=%s", rounds+1, resp.Feedback)
			for _, fix := range resp.SuggestedFix {
				fixResult, fixErr := Execute(ctx, driver, l.table, fix)
				if fixErr != nil || !fixResult.Success {
					return outcome, &ErrStepFailed{Reason: fmt.Sprintf("suggested fix %s/%s failed", fix.Action, fix.Target), Rounds: rounds + 1}
				}
			}
			rounds++

			var retryErr error
			screenshotPath, retryErr = l.screenshot(ctx, driver, i)
			if retryErr != nil {
				return outcome, &ErrStepFailed{Reason: fmt.Sprintf("capturing retry screenshot: %v", retryErr), Rounds: rounds}
			}
			outcome.Screenshots = append(outcome.Screenshots, screenshotPath)
		}
	}

	outcome.Approved = true
	l.extractFinalOutput(ctx, driver, &outcome)
	return outcome, nil
}

// extractFinalOutput runs the result-extraction step: after the final
// approved action, get_text(generated_song_link) and parse it against
// the canonical song-URL shape. A missing selector, a driver failure, or
// text that doesn't match the shape all yield ExtractionFailed rather
// than an error -- extraction failure doesn't invalidate the approved
// step itself.
func (l *FeedbackLoop) extractFinalOutput(ctx context.Context, driver BrowserDriver, outcome *StepOutcome) {
	result, err := Execute(ctx, driver, l.table, Action{Action: ActionGetText, Target: "generated_song_link"})
	if err != nil || !result.Success {
		reason := result.Error
		if reason == "" && err != nil {
			reason = err.Error()
		}
		outcome.ExtractionStatus = ExtractionFailed
		outcome.ExtractionError = fmt.Sprintf("reading generated song link: %s", reason)
		return
	}

	match := songURLPattern.FindStringSubmatch(result.Text)
	if match == nil {
		outcome.ExtractionStatus = ExtractionFailed
		outcome.ExtractionError = "failed to find or parse generated song URL"
		return
	}

	outcome.ExtractionStatus = ExtractionCompleted
	outcome.SongURL = result.Text
	outcome.SongID = match[1]
}

func (l *FeedbackLoop) screenshot(ctx context.Context, driver BrowserDriver, index int) (string, error) {
	filename := l.screenshotAt(index)
	result, err := driver.TakeScreenshot(ctx, filename)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("screenshot action reported failure: %s", result.Error)
	}
	return filename, nil
}
