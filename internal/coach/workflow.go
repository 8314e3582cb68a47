package coach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"speech-coach-go/internal/logger"
)

// Stage names, in pipeline order. They double as stage log keys.
const (
	StageExtract    = "extract_audio"
	StageTranscribe = "transcribe_audio"
	StageFeedback   = "coach_feedback"
	StageSynthesize = "synthesize_audio_feedback"
)

// Runner executes the four stages in fixed order, short-circuiting on the
// first failure. One Runner serves many concurrent runs; all per-run data
// lives on the PipelineState it returns.
type Runner struct {
	extractor    AudioExtractor
	transcriber  Transcriber
	generator    FeedbackGenerator
	synthesizer  SpeechSynthesizer
	store        ObjectStore
	stageTimeout time.Duration
	log          *logger.Logger
}

func NewRunner(
	extractor AudioExtractor,
	transcriber Transcriber,
	generator FeedbackGenerator,
	synthesizer SpeechSynthesizer,
	store ObjectStore,
	stageTimeout time.Duration,
	log *logger.Logger,
) *Runner {
	if stageTimeout <= 0 {
		stageTimeout = 5 * time.Minute
	}
	return &Runner{
		extractor:    extractor,
		transcriber:  transcriber,
		generator:    generator,
		synthesizer:  synthesizer,
		store:        store,
		stageTimeout: stageTimeout,
		log:          log,
	}
}

type stage struct {
	name  string
	phase Phase
	run   func(ctx context.Context, st *PipelineState) error
}

// Run is the single blocking entry point. It always returns a terminal
// PipelineState: Completed with all five output fields populated, or Failed
// with Err set and whichever fields were produced before the failure.
func (r *Runner) Run(ctx context.Context, videoRef string) *PipelineState {
	st := &PipelineState{
		RunID:     uuid.New().String(),
		VideoRef:  videoRef,
		Phase:     PhaseCreated,
		StartedAt: time.Now().UTC(),
	}
	log := r.log.WithRun(st.RunID)

	if err := r.validate(ctx, videoRef); err != nil {
		log.WithError(err).Warn("input validation failed")
		st.logFailure("validate_input", err)
		st.fail(err)
		return st
	}

	stages := []stage{
		{StageExtract, PhaseExtractingAudio, r.runExtract},
		{StageTranscribe, PhaseTranscribing, r.runTranscribe},
		{StageFeedback, PhaseGeneratingFeedback, r.runFeedback},
		{StageSynthesize, PhaseSynthesizingAudio, r.runSynthesize},
	}

	for _, s := range stages {
		st.Phase = s.phase
		stageLog := log.WithField("stage", s.name)
		stageLog.Info("stage started")
		start := time.Now()

		stageCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
		err := s.run(stageCtx, st)
		cancel()

		if err != nil {
			we := asWorkflowError(s.name, err)
			stageLog.WithError(we).WithField("duration_ms", time.Since(start).Milliseconds()).Warn("stage failed")
			st.logFailure(s.name, we)
			st.fail(we)
			return st
		}
		stageLog.WithField("duration_ms", time.Since(start).Milliseconds()).Info("stage completed")
		st.logSuccess(s.name)
	}

	st.Phase = PhaseCompleted
	st.FinishedAt = time.Now().UTC()
	log.Info("workflow completed")
	return st
}

// validate rejects a run before any stage adapter is invoked. The video
// reference must be non-empty and point at a non-zero-length object.
func (r *Runner) validate(ctx context.Context, videoRef string) *WorkflowError {
	if strings.TrimSpace(videoRef) == "" {
		return validationError("no video provided")
	}
	size, err := r.store.Stat(ctx, videoRef)
	if err != nil {
		return validationError("video %s not readable: %v", videoRef, err)
	}
	if size == 0 {
		return validationError("video %s is empty", videoRef)
	}
	return nil
}

func (r *Runner) runExtract(ctx context.Context, st *PipelineState) error {
	if st.VideoRef == "" {
		return consistencyError(StageExtract, "video_reference")
	}
	audioRef, err := r.extractor.ExtractAudio(ctx, st.VideoRef)
	if err != nil {
		return err
	}
	if audioRef == "" {
		return fmt.Errorf("extractor returned empty audio reference")
	}
	st.AudioRef = audioRef
	return nil
}

func (r *Runner) runTranscribe(ctx context.Context, st *PipelineState) error {
	if st.AudioRef == "" {
		return consistencyError(StageTranscribe, "audio_reference")
	}
	transcript, err := r.transcriber.Transcribe(ctx, st.AudioRef)
	if err != nil {
		return err
	}
	// An empty transcript is an adapter failure: there is nothing to coach.
	if strings.TrimSpace(transcript) == "" {
		return fmt.Errorf("transcription returned empty text")
	}
	st.Transcript = transcript
	return nil
}

func (r *Runner) runFeedback(ctx context.Context, st *PipelineState) error {
	if st.Transcript == "" {
		return consistencyError(StageFeedback, "transcript")
	}
	feedback, err := r.generator.GenerateFeedback(ctx, st.Transcript)
	if err != nil {
		return err
	}
	if strings.TrimSpace(feedback) == "" {
		return fmt.Errorf("feedback generation returned empty text")
	}
	st.FeedbackText = feedback
	return nil
}

func (r *Runner) runSynthesize(ctx context.Context, st *PipelineState) error {
	if st.FeedbackText == "" {
		return consistencyError(StageSynthesize, "feedback_text")
	}
	audioRef, err := r.synthesizer.Synthesize(ctx, st.FeedbackText)
	if err != nil {
		return err
	}
	if audioRef == "" {
		return fmt.Errorf("synthesizer returned empty audio reference")
	}
	st.FeedbackAudioRef = audioRef
	return nil
}

// asWorkflowError keeps consistency guard errors as-is and wraps everything
// else an adapter can report as an adapter failure.
func asWorkflowError(stage string, err error) *WorkflowError {
	if we, ok := err.(*WorkflowError); ok {
		return we
	}
	return adapterError(stage, err)
}
