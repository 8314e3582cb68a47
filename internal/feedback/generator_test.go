package feedback

import (
	"strings"
	"testing"
)

func TestBuildPromptEmbedsTranscript(t *testing.T) {
	transcript := "Today I want to talk about habits."
	prompt := BuildPrompt(transcript)

	if !strings.Contains(prompt, "```\n"+transcript+"\n```") {
		t.Errorf("prompt does not enclose transcript in backticks:\n%s", prompt)
	}
	for _, section := range []string{"Strengths", "Areas for Improvement", "Overall Encouragement"} {
		if !strings.Contains(prompt, section) {
			t.Errorf("prompt missing %q section", section)
		}
	}
}
