package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"speech-coach-go/internal/coach"
	"speech-coach-go/internal/config"
)

// Synthesizer turns feedback text into spoken MP3 audio and stores it.
type Synthesizer struct {
	api   *openai.Client
	store coach.ObjectStore
	voice openai.SpeechVoice
	speed float64
}

func New(cfg config.OpenAIConfig, store coach.ObjectStore) *Synthesizer {
	return &Synthesizer{
		api:   openai.NewClient(cfg.APIKey),
		store: store,
		voice: openai.SpeechVoice(cfg.TTSVoice),
		speed: cfg.TTSSpeed,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, feedbackText string) (string, error) {
	resp, err := s.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          StripMarkdownBold(feedbackText),
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          s.speed,
	})
	if err != nil {
		return "", fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return "", fmt.Errorf("read synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("synthesis returned no audio")
	}

	key := "feedback_audio/" + uuid.New().String() + ".mp3"
	return s.store.Put(ctx, key, bytes.NewReader(audio), int64(len(audio)), "audio/mpeg")
}

// StripMarkdownBold removes ** markers so they are not read aloud.
func StripMarkdownBold(text string) string {
	return strings.ReplaceAll(text, "**", "")
}
