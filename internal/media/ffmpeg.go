package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"speech-coach-go/internal/coach"
	"speech-coach-go/internal/config"
)

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return errBuf.String(), err
}

// Extractor converts a stored video into a 16kHz mono WAV suitable for
// speech-to-text, via a local ffmpeg invocation.
type Extractor struct {
	store   coach.ObjectStore
	runner  commandRunner
	binary  string
	tempDir string
}

func NewExtractor(cfg config.MediaConfig, store coach.ObjectStore) *Extractor {
	return &Extractor{
		store:   store,
		runner:  execRunner{},
		binary:  cfg.FFmpegBinary,
		tempDir: cfg.TempDir,
	}
}

func (e *Extractor) ExtractAudio(ctx context.Context, videoRef string) (string, error) {
	id := uuid.New().String()
	videoPath := filepath.Join(e.tempDir, id+"_input"+refExt(videoRef))
	audioPath := filepath.Join(e.tempDir, id+"_audio.wav")
	defer os.Remove(videoPath)
	defer os.Remove(audioPath)

	if err := e.download(ctx, videoRef, videoPath); err != nil {
		return "", err
	}

	args := []string{
		"-y", "-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		audioPath,
	}
	stderr, err := e.runner.Run(ctx, e.binary, args...)
	if err != nil {
		return "", fmt.Errorf("ffmpeg: %v: %s", err, lastLine(stderr))
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open extracted audio: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat extracted audio: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("video %s contains no audio", videoRef)
	}

	key := "extracted_audio/" + id + ".wav"
	return e.store.Put(ctx, key, f, info.Size(), "audio/wav")
}

func (e *Extractor) download(ctx context.Context, ref, dst string) error {
	rc, err := e.store.Get(ctx, ref)
	if err != nil {
		return fmt.Errorf("download video: %w", err)
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create temp video: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("write temp video: %w", err)
	}
	return nil
}

func refExt(ref string) string {
	if ext := filepath.Ext(ref); ext != "" {
		return ext
	}
	return ".mp4"
}

// lastLine trims ffmpeg's banner noise down to the line that usually carries
// the actual failure reason.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
