package feedback

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"speech-coach-go/internal/config"
)

const promptTemplate = `You are an expert public speaking coach. Your goal is to provide constructive, actionable, and encouraging feedback on the following public speaking transcript.
The feedback should be suitable for audio delivery, so keep sentences clear and concise.

Focus on these three main sections:
1. **Strengths:** Identify 2-3 specific positive aspects of the speaker's delivery based on the transcript.
2. **Areas for Improvement:** Identify 2-3 specific, actionable suggestions, such as reducing filler words, varying vocal pace, or strengthening the conclusion.
3. **Overall Encouragement:** End with a brief, positive, and motivating statement.

The transcript of the speech is enclosed in triple backticks:
` + "```\n%s\n```" + `
Please provide your feedback in a natural, conversational, and supportive tone.`

// Generator produces coaching feedback from a transcript via a chat
// completion.
type Generator struct {
	api   *openai.Client
	model string
}

func New(cfg config.OpenAIConfig) *Generator {
	return &Generator{
		api:   openai.NewClient(cfg.APIKey),
		model: cfg.ChatModel,
	}
}

func (g *Generator) GenerateFeedback(ctx context.Context, transcript string) (string, error) {
	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(transcript)},
		},
		Temperature: 0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", fmt.Errorf("feedback request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("feedback response contained no choices")
	}

	feedback := strings.TrimSpace(resp.Choices[0].Message.Content)
	if feedback == "" {
		return "", fmt.Errorf("feedback response was empty")
	}
	return feedback, nil
}

// BuildPrompt renders the coaching prompt for one transcript.
func BuildPrompt(transcript string) string {
	return fmt.Sprintf(promptTemplate, transcript)
}
