package runlog

import (
	"io"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"speech-coach-go/internal/coach"
)

// Entry is one terminal workflow run, trimmed for diagnostics. Artifact
// contents stay in the object store; this log only records what happened.
type Entry struct {
	RunID      string              `json:"run_id"`
	VideoRef   string              `json:"video_reference"`
	Phase      coach.Phase         `json:"phase"`
	Error      string              `json:"error,omitempty"`
	StageLog   []coach.StageStatus `json:"stage_status"`
	StartedAt  time.Time           `json:"started_at"`
	DurationMs int64               `json:"duration_ms"`
}

// Summary aggregates recent outcomes for a quick operational read.
type Summary struct {
	Total           int            `json:"total"`
	Completed       int            `json:"completed"`
	Failed          int            `json:"failed"`
	FailuresByStage map[string]int `json:"failures_by_stage,omitempty"`
}

// Log is a bounded, newest-first ring of recent terminal states. Safe for
// concurrent use.
type Log struct {
	mu      sync.Mutex
	max     int
	entries []Entry
}

func New(max int) *Log {
	if max <= 0 {
		max = 100
	}
	return &Log{max: max}
}

// Record appends the terminal state of one run, evicting the oldest entry
// once the ring is full.
func (l *Log) Record(st *coach.PipelineState) {
	e := Entry{
		RunID:      st.RunID,
		VideoRef:   st.VideoRef,
		Phase:      st.Phase,
		StageLog:   append([]coach.StageStatus(nil), st.StageLog...),
		StartedAt:  st.StartedAt,
		DurationMs: st.FinishedAt.Sub(st.StartedAt).Milliseconds(),
	}
	if st.Err != nil {
		e.Error = st.Err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// Recent returns a newest-first copy of the log.
func (l *Log) Recent() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[len(l.entries)-1-i] = e
	}
	return out
}

// Summarize counts terminal outcomes and failure stages across the ring.
func (l *Log) Summarize() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{Total: len(l.entries)}
	for _, e := range l.entries {
		switch e.Phase {
		case coach.PhaseCompleted:
			s.Completed++
		case coach.PhaseFailed:
			s.Failed++
			for _, st := range e.StageLog {
				if st.Outcome == coach.OutcomeFailure {
					if s.FailuresByStage == nil {
						s.FailuresByStage = map[string]int{}
					}
					s.FailuresByStage[st.Stage]++
				}
			}
		}
	}
	return s
}

// ExportXLSX writes the run history as a spreadsheet, one row per stage
// log entry.
func (l *Log) ExportXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []interface{}{"run_id", "video_reference", "phase", "error", "stage", "outcome", "timestamp", "detail"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	row := 2
	for _, e := range l.Recent() {
		for _, st := range e.StageLog {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := []interface{}{
				e.RunID, e.VideoRef, string(e.Phase), e.Error,
				st.Stage, string(st.Outcome), st.Timestamp.Format(time.RFC3339), st.Detail,
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return err
			}
			row++
		}
	}
	return f.Write(w)
}
