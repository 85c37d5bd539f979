package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Validator judges whether the UI reached expected after the action it
// describes, by inspecting a screenshot.
type Validator interface {
	ValidateUIState(ctx context.Context, screenshotPath string, expected ExpectedState) (ValidatorResponse, error)
}

// MultimodalClient is the subset of provider.Client's vision-capable
// adapters the gemini Validator depends on; satisfied by
// *gemini.Client's GenerateMultimodal.
type MultimodalClient interface {
	GenerateMultimodal(ctx context.Context, prompt string, imageBytes []byte, mimeType string) (string, error)
}

// GeminiValidator is the reference Validator, backed by a multimodal
// Gemini call. Gemini is the pack's only vision-capable SDK, so it
// doubles as both the 4.A provider adapter and this Validator.
type GeminiValidator struct {
	client MultimodalClient
}

// NewGeminiValidator constructs a GeminiValidator around client.
func NewGeminiValidator(client MultimodalClient) *GeminiValidator {
	return &GeminiValidator{client: client}
}

type rawValidatorResponse struct {
	Approved     bool     `json:"approved"`
	Feedback     string   `json:"feedback"`
	SuggestedFix []rawFix `json:"suggested_fix"`
}

type rawFix struct {
	Action ActionKind `json:"action"`
	Target string     `json:"target"`
	Value  string     `json:"value"`
}

// ValidateUIState reads screenshotPath, asks the model whether the UI
// matches expected, and parses its strict JSON reply. A malformed
// model reply is converted to a safe rejection rather than propagated
// as an error, matching the feedback loop's "never trust an unparsed
// validator reply" contract.
func (v *GeminiValidator) ValidateUIState(ctx context.Context, screenshotPath string, expected ExpectedState) (ValidatorResponse, error) {
	imageBytes, err := os.ReadFile(screenshotPath)
	if err != nil {
		return ValidatorResponse{}, fmt.Errorf("reading validation screenshot %s: %w", screenshotPath, err)
	}

	prompt := buildValidationPrompt(expected)
	text, err := v.client.GenerateMultimodal(ctx, prompt, imageBytes, "image/png")
	if err != nil {
		return ValidatorResponse{}, fmt.Errorf("requesting ui validation: %w", err)
	}

	resp, parseErr := parseValidatorResponse(text)
	if parseErr != nil {
		return ValidatorResponse{
			Approved: false,
			Feedback: fmt.Sprintf("validator response invalid: %v", parseErr),
		}, nil
	}
	return resp.sanitize(), nil
}

func buildValidationPrompt(expected ExpectedState) string {
	var b strings.Builder
	b.WriteString("You are validating a browser automation step against a screenshot.\n")
	fmt.Fprintf(&b, "Action performed: %s on target %q with value %q.\n",
		expected.ActionPerformed.Action, expected.ActionPerformed.Target, expected.ActionPerformed.Value)
	fmt.Fprintf(&b, "Action execution reported success=%v.\n", expected.ActionSucceeded)
	if expected.ExpectedText != "" {
		fmt.Fprintf(&b, "Expected text to be present: %q.\n", expected.ExpectedText)
	}
	if expected.ExpectedOutcome != "" {
		fmt.Fprintf(&b, "Expected outcome: %s.\n", expected.ExpectedOutcome)
	}
	b.WriteString("Respond with exactly one JSON object, no surrounding text, matching: ")
	b.WriteString(`{"approved": bool, "feedback": string, "suggested_fix": [{"action": string, "target": string, "value": string}] or null}`)
	return b.String()
}

func parseValidatorResponse(text string) (ValidatorResponse, error) {
	text = extractJSONObject(text)
	var raw rawValidatorResponse
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return ValidatorResponse{}, fmt.Errorf("parsing validator JSON: %w", err)
	}

	resp := ValidatorResponse{Approved: raw.Approved, Feedback: raw.Feedback}
	if raw.SuggestedFix != nil {
		fixes := make([]Action, 0, len(raw.SuggestedFix))
		for _, f := range raw.SuggestedFix {
			fixes = append(fixes, Action{Action: f.Action, Target: f.Target, Value: f.Value})
		}
		resp.SuggestedFix = fixes
	}
	return resp, nil
}

// extractJSONObject trims any leading/trailing prose a model adds
// around the requested JSON object despite instructions not to.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
