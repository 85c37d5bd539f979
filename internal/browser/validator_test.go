package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMultimodalClient struct {
	response string
	err      error
}

func (f *fakeMultimodalClient) GenerateMultimodal(ctx context.Context, prompt string, imageBytes []byte, mimeType string) (string, error) {
	return f.response, f.err
}

func writeTestScreenshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("fake-png-bytes"), 0o644))
	return path
}

func TestValidateUIState_ApprovedResponseParses(t *testing.T) {
	client := &fakeMultimodalClient{response: `{"approved": true, "feedback": "looks right", "suggested_fix": null}`}
	validator := NewGeminiValidator(client)

	resp, err := validator.ValidateUIState(context.Background(), writeTestScreenshot(t), ExpectedState{})
	require.NoError(t, err)
	assert.True(t, resp.Approved)
	assert.Equal(t, "looks right", resp.Feedback)
	assert.Nil(t, resp.SuggestedFix)
}

func TestValidateUIState_RejectionWithSuggestedFixParses(t *testing.T) {
	client := &fakeMultimodalClient{response: `{"approved": false, "feedback": "style empty", "suggested_fix": [{"action": "input", "target": "style_input", "value": "acoustic pop"}]}`}
	validator := NewGeminiValidator(client)

	resp, err := validator.ValidateUIState(context.Background(), writeTestScreenshot(t), ExpectedState{})
	require.NoError(t, err)
	assert.False(t, resp.Approved)
	require.Len(t, resp.SuggestedFix, 1)
	assert.Equal(t, ActionInput, resp.SuggestedFix[0].Action)
	assert.Equal(t, "acoustic pop", resp.SuggestedFix[0].Value)
}

func TestValidateUIState_MalformedJSONBecomesSafeRejection(t *testing.T) {
	client := &fakeMultimodalClient{response: "not json at all"}
	validator := NewGeminiValidator(client)

	resp, err := validator.ValidateUIState(context.Background(), writeTestScreenshot(t), ExpectedState{})
	require.NoError(t, err)
	assert.False(t, resp.Approved)
	assert.Contains(t, resp.Feedback, "validator response invalid")
}

func TestValidateUIState_ToleratesSurroundingProseAroundJSON(t *testing.T) {
	client := &fakeMultimodalClient{response: "Here is my answer:\n{\"approved\": true, \"feedback\": \"ok\"}\nThanks."}
	validator := NewGeminiValidator(client)

	resp, err := validator.ValidateUIState(context.Background(), writeTestScreenshot(t), ExpectedState{})
	require.NoError(t, err)
	assert.True(t, resp.Approved)
}

func TestValidateUIState_MissingScreenshotErrors(t *testing.T) {
	client := &fakeMultimodalClient{response: `{"approved": true, "feedback": "ok"}`}
	validator := NewGeminiValidator(client)

	_, err := validator.ValidateUIState(context.Background(), filepath.Join(t.TempDir(), "missing.png"), ExpectedState{})
	assert.Error(t, err)
}
