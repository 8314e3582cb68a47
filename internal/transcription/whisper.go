package transcription

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"speech-coach-go/internal/coach"
	"speech-coach-go/internal/config"
)

// Client transcribes stored audio through the Whisper API.
type Client struct {
	api   *openai.Client
	store coach.ObjectStore
}

func New(cfg config.OpenAIConfig, store coach.ObjectStore) *Client {
	return &Client{
		api:   openai.NewClient(cfg.APIKey),
		store: store,
	}
}

func (c *Client) Transcribe(ctx context.Context, audioRef string) (string, error) {
	rc, err := c.store.Get(ctx, audioRef)
	if err != nil {
		return "", fmt.Errorf("fetch audio: %w", err)
	}
	defer rc.Close()

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   rc,
		FilePath: filepath.Base(audioRef),
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	transcript := strings.TrimSpace(resp.Text)
	if transcript == "" {
		return "", fmt.Errorf("transcription returned empty text for %s", audioRef)
	}
	return transcript, nil
}
