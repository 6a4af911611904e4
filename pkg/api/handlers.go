package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/mtsoor/pkg/index"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// runEntry is the JSON shape of one indexed run.
type runEntry struct {
	RunID        string    `json:"run_id"`
	PlanFile     string    `json:"plan_file"`
	Status       string    `json:"status"`
	Timestamp    int64     `json:"timestamp"`
	TimestampEnd int64     `json:"timestamp_end"`
	ExitCode     int       `json:"exit_code"`
	Tests        runTests  `json:"tests"`
	IndexedAt    time.Time `json:"indexed_at"`
}

// runTests carries the denormalized report counters of a run.
type runTests struct {
	Total      int     `json:"total"`
	Passed     int     `json:"passed"`
	Failed     int     `json:"failed"`
	Skipped    int     `json:"skipped"`
	Unknown    int     `json:"unknown"`
	Percentage float64 `json:"percentage"`
}

func newRunEntry(run *index.Run) *runEntry {
	return &runEntry{
		RunID:        run.RunID,
		PlanFile:     run.PlanFile,
		Status:       run.Status,
		Timestamp:    run.Timestamp,
		TimestampEnd: run.TimestampEnd,
		ExitCode:     run.ExitCode,
		Tests: runTests{
			Total:      run.TestsTotal,
			Passed:     run.TestsPassed,
			Failed:     run.TestsFailed,
			Skipped:    run.TestsSkipped,
			Unknown:    run.TestsUnknown,
			Percentage: run.Percentage,
		},
		IndexedAt: run.IndexedAt,
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListRuns returns every indexed run, newest first.
func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing runs: " + err.Error()})

		return
	}

	entries := make([]*runEntry, 0, len(runs))
	for i := range runs {
		entries = append(entries, newRunEntry(&runs[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"generated": time.Now().Unix(),
		"runs":      entries,
	})
}

// handleGetRun returns a single indexed run by its run ID.
func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if runID == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"run_id is required"})

		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, index.ErrRunNotFound) {
			writeJSON(w, http.StatusNotFound,
				errorResponse{"run not found"})

			return
		}

		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"getting run: " + err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, newRunEntry(run))
}

// handleFileRequest serves run files from the local results directory
// or answers with a presigned S3 URL, depending on which backend is
// configured.
func (s *server) handleFileRequest(w http.ResponseWriter, r *http.Request) {
	filePath := chi.URLParam(r, "*")
	if filePath == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"file path is required"})

		return
	}

	// Local file serving takes priority.
	if s.fileServer != nil {
		if err := s.fileServer.ServeFile(w, r, filePath); err != nil {
			writeJSON(w, http.StatusNotFound,
				errorResponse{"file not found"})
		}

		return
	}

	if s.presigner != nil {
		// HEAD requests: return object metadata directly so callers can
		// read Content-Length without presigned URL indirection.
		if r.Method == http.MethodHead {
			s.handleS3Head(w, r, filePath)

			return
		}

		url, err := s.presigner.GeneratePresignedURL(r.Context(), filePath)
		if err != nil {
			s.log.WithError(err).
				WithField("path", filePath).
				Warn("Failed to generate presigned URL")

			writeJSON(w, http.StatusForbidden,
				errorResponse{"path not allowed or presign failed"})

			return
		}

		// When redirect=true, issue a 302 redirect to the presigned URL
		// so curl -L can download files without parsing JSON.
		if r.URL.Query().Get("redirect") == "true" {
			http.Redirect(w, r, url, http.StatusFound)

			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"url": url})

		return
	}

	writeJSON(w, http.StatusNotFound,
		errorResponse{"file serving not configured"})
}

// handleS3Head retrieves object metadata from S3 and writes the
// Content-Length and Content-Type headers so callers can determine
// file sizes without downloading the object.
func (s *server) handleS3Head(
	w http.ResponseWriter,
	r *http.Request,
	filePath string,
) {
	result, err := s.presigner.HeadObject(r.Context(), filePath)
	if err != nil {
		s.log.WithError(err).
			WithField("path", filePath).
			Debug("S3 HeadObject failed")

		w.WriteHeader(http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set(
		"Content-Length", strconv.FormatInt(result.ContentLength, 10),
	)
	w.WriteHeader(http.StatusOK)
}
