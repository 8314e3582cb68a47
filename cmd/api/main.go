package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"speech-coach-go/internal/coach"
	"speech-coach-go/internal/config"
	"speech-coach-go/internal/feedback"
	"speech-coach-go/internal/logger"
	"speech-coach-go/internal/media"
	"speech-coach-go/internal/runlog"
	"speech-coach-go/internal/speech"
	"speech-coach-go/internal/store"
	"speech-coach-go/internal/transcription"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "speech-coach-go").Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	// The object store may come up after us; wait for it at boot. Stage
	// adapters never retry, so this is the only backoff in the process.
	var blobs *store.Client
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	err = backoff.Retry(func() error {
		var err error
		blobs, err = store.New(context.Background(), cfg.Store)
		return err
	}, bo)
	if err != nil {
		log.WithError(err).Fatal("object store unreachable")
	}
	log.WithField("bucket", cfg.Store.Bucket).Info("object store ready")

	runner := coach.NewRunner(
		media.NewExtractor(cfg.Media, blobs),
		transcription.New(cfg.OpenAI, blobs),
		feedback.New(cfg.OpenAI),
		speech.New(cfg.OpenAI, blobs),
		blobs,
		cfg.StageTimeout,
		log,
	)
	runs := runlog.New(cfg.RunLogSize)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("/coach", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "coach")
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		videoRef := r.URL.Query().Get("video_ref")
		reqLog.WithField("video_ref", videoRef).Info("coach request received")
		runWorkflow(w, r, runner, runs, blobs, videoRef)
	})

	mux.HandleFunc("/coach/upload", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "coach_upload")
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		file, header, err := r.FormFile("video")
		if err != nil {
			reqLog.WithError(err).Warn("missing video upload")
			http.Error(w, "missing video upload", http.StatusBadRequest)
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "video/mp4"
		}
		key := "uploads/" + uuid.New().String() + uploadExt(header.Filename)
		videoRef, err := blobs.Put(r.Context(), key, file, header.Size, contentType)
		if err != nil {
			reqLog.WithError(err).Error("upload failed")
			http.Error(w, "upload failed", http.StatusBadGateway)
			return
		}
		reqLog.WithField("video_ref", videoRef).Info("video stored")
		runWorkflow(w, r, runner, runs, blobs, videoRef)
	})

	mux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"summary": runs.Summarize(),
			"runs":    runs.Recent(),
		})
	})

	mux.HandleFunc("/runs/export", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "runs_export")
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="runs.xlsx"`)
		if err := runs.ExportXLSX(w); err != nil {
			reqLog.WithError(err).Error("export failed")
		}
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

// runWorkflow executes one run and renders its terminal state. Cleanup of the
// intermediate extracted audio is a caller concern, opted in per request.
func runWorkflow(w http.ResponseWriter, r *http.Request, runner *coach.Runner, runs *runlog.Log, blobs *store.Client, videoRef string) {
	reqLog := logger.New().WithRequest(r).WithField("video_ref", videoRef)

	start := time.Now()
	st := runner.Run(r.Context(), videoRef)
	runs.Record(st)
	reqLog.WithField("run_id", st.RunID).
		WithField("phase", string(st.Phase)).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("workflow finished")

	if st.Phase == coach.PhaseCompleted && r.URL.Query().Get("keep_artifacts") == "false" {
		if err := blobs.Delete(r.Context(), st.AudioRef); err != nil {
			reqLog.WithError(err).Warn("could not delete intermediate audio")
		}
	}

	status := http.StatusOK
	if st.Phase == coach.PhaseFailed {
		if st.Err != nil && st.Err.Kind == coach.KindValidation {
			status = http.StatusUnprocessableEntity
		} else {
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, st)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.New().WithError(err).Error("failed to write response")
	}
}

func uploadExt(filename string) string {
	if ext := filepath.Ext(filename); ext != "" {
		return ext
	}
	return ".mp4"
}
