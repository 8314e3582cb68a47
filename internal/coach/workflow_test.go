package coach

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"speech-coach-go/internal/logger"
)

type mockExtractor struct {
	calls int
	fn    func(ctx context.Context, videoRef string) (string, error)
}

func (m *mockExtractor) ExtractAudio(ctx context.Context, videoRef string) (string, error) {
	m.calls++
	return m.fn(ctx, videoRef)
}

type mockTranscriber struct {
	calls int
	fn    func(ctx context.Context, audioRef string) (string, error)
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audioRef string) (string, error) {
	m.calls++
	return m.fn(ctx, audioRef)
}

type mockGenerator struct {
	calls int
	fn    func(ctx context.Context, transcript string) (string, error)
}

func (m *mockGenerator) GenerateFeedback(ctx context.Context, transcript string) (string, error) {
	m.calls++
	return m.fn(ctx, transcript)
}

type mockSynthesizer struct {
	calls int
	fn    func(ctx context.Context, feedbackText string) (string, error)
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, feedbackText string) (string, error) {
	m.calls++
	return m.fn(ctx, feedbackText)
}

type mockStore struct {
	statCalls int
	statFn    func(ctx context.Context, ref string) (int64, error)
}

func (m *mockStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	return key, nil
}

func (m *mockStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (m *mockStore) Stat(ctx context.Context, ref string) (int64, error) {
	m.statCalls++
	if m.statFn == nil {
		return 1024, nil
	}
	return m.statFn(ctx, ref)
}

func (m *mockStore) Delete(ctx context.Context, ref string) error { return nil }

type fixture struct {
	extractor   *mockExtractor
	transcriber *mockTranscriber
	generator   *mockGenerator
	synthesizer *mockSynthesizer
	store       *mockStore
	runner      *Runner
}

// newFixture wires deterministic adapters matching the reference scenario:
// vid-001 -> aud-001 -> transcript -> feedback -> fb-aud-001.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		extractor: &mockExtractor{fn: func(ctx context.Context, videoRef string) (string, error) {
			if videoRef != "vid-001" {
				return "", fmt.Errorf("unexpected video ref %q", videoRef)
			}
			return "aud-001", nil
		}},
		transcriber: &mockTranscriber{fn: func(ctx context.Context, audioRef string) (string, error) {
			if audioRef != "aud-001" {
				return "", fmt.Errorf("unexpected audio ref %q", audioRef)
			}
			return "Thank you for listening.", nil
		}},
		generator: &mockGenerator{fn: func(ctx context.Context, transcript string) (string, error) {
			if transcript != "Thank you for listening." {
				return "", fmt.Errorf("unexpected transcript %q", transcript)
			}
			return "Good pacing; reduce filler words.", nil
		}},
		synthesizer: &mockSynthesizer{fn: func(ctx context.Context, feedbackText string) (string, error) {
			if feedbackText != "Good pacing; reduce filler words." {
				return "", fmt.Errorf("unexpected feedback %q", feedbackText)
			}
			return "fb-aud-001", nil
		}},
		store: &mockStore{},
	}
	f.runner = NewRunner(f.extractor, f.transcriber, f.generator, f.synthesizer, f.store, time.Minute, logger.New())
	return f
}

func TestRunHappyPath(t *testing.T) {
	f := newFixture(t)

	st := f.runner.Run(context.Background(), "vid-001")

	if st.Phase != PhaseCompleted {
		t.Fatalf("phase = %q, want %q (err: %v)", st.Phase, PhaseCompleted, st.Err)
	}
	if st.Err != nil {
		t.Fatalf("unexpected error: %v", st.Err)
	}
	if st.VideoRef != "vid-001" || st.AudioRef != "aud-001" ||
		st.Transcript != "Thank you for listening." ||
		st.FeedbackText != "Good pacing; reduce filler words." ||
		st.FeedbackAudioRef != "fb-aud-001" {
		t.Fatalf("populated fields = %+v", st)
	}
	if len(st.StageLog) != 4 {
		t.Fatalf("stage log length = %d, want 4", len(st.StageLog))
	}
	wantOrder := []string{StageExtract, StageTranscribe, StageFeedback, StageSynthesize}
	for i, entry := range st.StageLog {
		if entry.Stage != wantOrder[i] {
			t.Errorf("stage log[%d] = %q, want %q", i, entry.Stage, wantOrder[i])
		}
		if entry.Outcome != OutcomeSuccess {
			t.Errorf("stage log[%d] outcome = %q, want success", i, entry.Outcome)
		}
	}
	if st.RunID == "" {
		t.Error("run ID not assigned")
	}
}

func TestRunTranscriptionFailureRetainsEarlierFields(t *testing.T) {
	f := newFixture(t)
	f.transcriber.fn = func(ctx context.Context, audioRef string) (string, error) {
		return "", errors.New("quota exceeded")
	}

	st := f.runner.Run(context.Background(), "vid-001")

	if st.Phase != PhaseFailed {
		t.Fatalf("phase = %q, want failed", st.Phase)
	}
	if st.AudioRef != "aud-001" {
		t.Errorf("audio ref = %q, want aud-001 retained", st.AudioRef)
	}
	if st.Transcript != "" || st.FeedbackText != "" || st.FeedbackAudioRef != "" {
		t.Errorf("later fields populated after failure: %+v", st)
	}
	if st.Err == nil || st.Err.Kind != KindAdapter || st.Err.Stage != StageTranscribe {
		t.Fatalf("error = %+v, want adapter error at %s", st.Err, StageTranscribe)
	}
	if want := "quota exceeded"; st.Err.Message != want {
		t.Errorf("error message = %q, want %q", st.Err.Message, want)
	}
	if f.generator.calls != 0 || f.synthesizer.calls != 0 {
		t.Errorf("later stages invoked after failure: generator=%d synthesizer=%d",
			f.generator.calls, f.synthesizer.calls)
	}
	failures := 0
	for _, entry := range st.StageLog {
		if entry.Outcome == OutcomeFailure {
			failures++
			if entry.Stage != StageTranscribe {
				t.Errorf("failure recorded for stage %q, want %s", entry.Stage, StageTranscribe)
			}
		}
	}
	if failures != 1 {
		t.Errorf("failure entries = %d, want exactly 1", failures)
	}
}

func TestRunFailureAtEachStage(t *testing.T) {
	cases := []struct {
		stage  string
		induce func(f *fixture)
		later  func(st *PipelineState) bool
	}{
		{
			stage: StageExtract,
			induce: func(f *fixture) {
				f.extractor.fn = func(ctx context.Context, _ string) (string, error) {
					return "", errors.New("ffmpeg exploded")
				}
			},
			later: func(st *PipelineState) bool {
				return st.AudioRef == "" && st.Transcript == "" && st.FeedbackText == "" && st.FeedbackAudioRef == ""
			},
		},
		{
			stage: StageTranscribe,
			induce: func(f *fixture) {
				f.transcriber.fn = func(ctx context.Context, _ string) (string, error) {
					return "", errors.New("speech service down")
				}
			},
			later: func(st *PipelineState) bool {
				return st.Transcript == "" && st.FeedbackText == "" && st.FeedbackAudioRef == ""
			},
		},
		{
			stage: StageFeedback,
			induce: func(f *fixture) {
				f.generator.fn = func(ctx context.Context, _ string) (string, error) {
					return "", errors.New("model overloaded")
				}
			},
			later: func(st *PipelineState) bool {
				return st.FeedbackText == "" && st.FeedbackAudioRef == ""
			},
		},
		{
			stage: StageSynthesize,
			induce: func(f *fixture) {
				f.synthesizer.fn = func(ctx context.Context, _ string) (string, error) {
					return "", errors.New("voice unavailable")
				}
			},
			later: func(st *PipelineState) bool {
				return st.FeedbackAudioRef == ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.stage, func(t *testing.T) {
			f := newFixture(t)
			tc.induce(f)

			st := f.runner.Run(context.Background(), "vid-001")

			if st.Phase != PhaseFailed {
				t.Fatalf("phase = %q, want failed", st.Phase)
			}
			if st.Err == nil || st.Err.Stage != tc.stage || st.Err.Kind != KindAdapter {
				t.Fatalf("error = %+v, want adapter error at %s", st.Err, tc.stage)
			}
			if !tc.later(st) {
				t.Errorf("fields from later stages populated: %+v", st)
			}
			failures := 0
			for _, entry := range st.StageLog {
				if entry.Outcome == OutcomeFailure {
					failures++
				}
			}
			if failures != 1 {
				t.Errorf("failure entries = %d, want exactly 1", failures)
			}
		})
	}
}

func TestRunEmptyVideoRefFailsValidation(t *testing.T) {
	f := newFixture(t)

	st := f.runner.Run(context.Background(), "")

	if st.Phase != PhaseFailed {
		t.Fatalf("phase = %q, want failed", st.Phase)
	}
	if st.Err == nil || st.Err.Kind != KindValidation {
		t.Fatalf("error = %+v, want validation error", st.Err)
	}
	if f.extractor.calls+f.transcriber.calls+f.generator.calls+f.synthesizer.calls != 0 {
		t.Error("adapters invoked despite validation failure")
	}
	if f.store.statCalls != 0 {
		t.Error("store consulted for an empty reference")
	}
}

func TestRunZeroLengthVideoFailsValidation(t *testing.T) {
	f := newFixture(t)
	f.store.statFn = func(ctx context.Context, ref string) (int64, error) { return 0, nil }

	st := f.runner.Run(context.Background(), "vid-001")

	if st.Err == nil || st.Err.Kind != KindValidation {
		t.Fatalf("error = %+v, want validation error", st.Err)
	}
	if f.extractor.calls != 0 {
		t.Error("extractor invoked despite zero-length video")
	}
}

func TestRunEmptyTranscriptIsAdapterFailure(t *testing.T) {
	f := newFixture(t)
	f.transcriber.fn = func(ctx context.Context, _ string) (string, error) {
		return "   ", nil
	}

	st := f.runner.Run(context.Background(), "vid-001")

	if st.Phase != PhaseFailed {
		t.Fatalf("phase = %q, want failed", st.Phase)
	}
	if st.Err == nil || st.Err.Kind != KindAdapter || st.Err.Stage != StageTranscribe {
		t.Fatalf("error = %+v, want adapter error at %s", st.Err, StageTranscribe)
	}
	if f.generator.calls != 0 {
		t.Error("feedback generation invoked on an empty transcript")
	}
}

func TestRunStageTimeoutIsAdapterFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.stageTimeout = 10 * time.Millisecond
	f.extractor.fn = func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	st := f.runner.Run(context.Background(), "vid-001")

	if st.Err == nil || st.Err.Kind != KindAdapter || st.Err.Stage != StageExtract {
		t.Fatalf("error = %+v, want adapter error at %s", st.Err, StageExtract)
	}
	if !errors.Is(st.Err, context.DeadlineExceeded) {
		t.Errorf("error does not wrap deadline exceeded: %v", st.Err)
	}
}

func TestRunsAreIndependent(t *testing.T) {
	f := newFixture(t)

	const n = 8
	var wg sync.WaitGroup
	states := make([]*PipelineState, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = f.runner.Run(context.Background(), "vid-001")
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, st := range states {
		if st.Phase != PhaseCompleted {
			t.Fatalf("run %d phase = %q (err: %v)", i, st.Phase, st.Err)
		}
		if st.Transcript != "Thank you for listening." ||
			st.FeedbackText != "Good pacing; reduce filler words." {
			t.Errorf("run %d content diverged: %+v", i, st)
		}
		if seen[st.RunID] {
			t.Errorf("run ID %q reused", st.RunID)
		}
		seen[st.RunID] = true
	}
}

func TestHasKind(t *testing.T) {
	cause := errors.New("boom")
	err := adapterError(StageExtract, cause)

	if !HasKind(err, KindAdapter) {
		t.Error("HasKind(adapter) = false")
	}
	if HasKind(err, KindValidation) {
		t.Error("HasKind(validation) = true for adapter error")
	}
	if !errors.Is(err, cause) {
		t.Error("adapter error does not wrap its cause")
	}
	wrapped := fmt.Errorf("handler: %w", err)
	if !HasKind(wrapped, KindAdapter) {
		t.Error("HasKind does not see through wrapping")
	}
}
