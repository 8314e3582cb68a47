package coach

import "time"

// Phase is the orchestrator position within one workflow run.
type Phase string

const (
	PhaseCreated            Phase = "created"
	PhaseExtractingAudio    Phase = "extracting_audio"
	PhaseTranscribing       Phase = "transcribing"
	PhaseGeneratingFeedback Phase = "generating_feedback"
	PhaseSynthesizingAudio  Phase = "synthesizing_audio"
	PhaseCompleted          Phase = "completed"
	PhaseFailed             Phase = "failed"
)

// Terminal reports whether the workflow is finished, successfully or not.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// StageStatus is one diagnostics entry in the per-run stage log.
type StageStatus struct {
	Stage     string    `json:"stage"`
	Outcome   Outcome   `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// PipelineState is the per-run record threaded through every stage.
// It is exclusively owned by one workflow run and must never be shared
// across concurrent submissions.
type PipelineState struct {
	RunID            string         `json:"run_id"`
	VideoRef         string         `json:"video_reference"`
	AudioRef         string         `json:"audio_reference,omitempty"`
	Transcript       string         `json:"transcript,omitempty"`
	FeedbackText     string         `json:"feedback_text,omitempty"`
	FeedbackAudioRef string         `json:"feedback_audio_reference,omitempty"`
	Err              *WorkflowError `json:"error,omitempty"`
	StageLog         []StageStatus  `json:"stage_status"`
	Phase            Phase          `json:"phase"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
}

func (s *PipelineState) logSuccess(stage string) {
	s.StageLog = append(s.StageLog, StageStatus{
		Stage:     stage,
		Outcome:   OutcomeSuccess,
		Timestamp: time.Now().UTC(),
	})
}

func (s *PipelineState) logFailure(stage string, err error) {
	s.StageLog = append(s.StageLog, StageStatus{
		Stage:     stage,
		Outcome:   OutcomeFailure,
		Timestamp: time.Now().UTC(),
		Detail:    err.Error(),
	})
}

// fail marks the state terminal. Once Err is set no later stage runs and no
// artifact field is mutated again.
func (s *PipelineState) fail(err *WorkflowError) {
	s.Err = err
	s.Phase = PhaseFailed
	s.FinishedAt = time.Now().UTC()
}
