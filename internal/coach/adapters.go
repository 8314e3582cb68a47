package coach

import (
	"context"
	"io"
)

// Adapter contracts for the four processing stages. Every adapter performs
// exactly one remote or local operation, holds no state across invocations,
// never retries internally, and must be safe for concurrent use from
// unrelated runs.

// AudioExtractor converts an uploaded video into a standalone audio track.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoRef string) (audioRef string, err error)
}

// Transcriber converts an audio resource into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioRef string) (transcript string, err error)
}

// FeedbackGenerator converts a transcript into coaching feedback text.
type FeedbackGenerator interface {
	GenerateFeedback(ctx context.Context, transcript string) (feedbackText string, err error)
}

// SpeechSynthesizer converts feedback text into an audio resource.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, feedbackText string) (audioRef string, err error)
}

// ObjectStore is the temporary blob store holding every intermediate
// artifact, keyed by opaque references. Stat backs the runner's input
// validation; Delete backs best-effort cleanup by the caller.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ref string, err error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	Stat(ctx context.Context, ref string) (size int64, err error)
	Delete(ctx context.Context, ref string) error
}
