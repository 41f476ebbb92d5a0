package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "species-checker/internal/common/errors"
	"species-checker/internal/common/validation"
	"species-checker/internal/history"
	"species-checker/internal/reconcile"
	"species-checker/internal/runs"
)

const (
	sourceWeb = "web"
	sourceAPI = "api"

	refreshSeconds = 2
)

type pageData struct {
	Refresh     int
	Text        string
	Run         *runs.Run
	ShowTable   bool
	PreviewSize int
	Threshold   float64
	Header      []string
	Records     [][]string
	Message     string
	Details     string
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Failed to render template", map[string]interface{}{
			"template": name,
			"error":    err,
		})
	}
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	data := pageData{Message: "En uventet feil oppstod."}
	status := http.StatusInternalServerError
	if stdErr, ok := apperrors.AsStandardError(err); ok {
		status = statusFor(stdErr.Code)
		data.Message = pageMessage(stdErr.Code)
		data.Details = stdErr.Details
	}
	s.render(w, status, "error.html", data)
}

func pageMessage(code apperrors.ErrorCode) string {
	switch code {
	case apperrors.ErrCodeEmptyInput:
		return "Ingen artsnavn funnet. Lim inn minst ett artsnavn."
	case apperrors.ErrCodeInputTooLarge:
		return "For mange artsnavn."
	case apperrors.ErrCodeRunNotFound:
		return "Fant ikke kontrollen. Den kan ha utløpt."
	default:
		return "En uventet feil oppstod."
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", pageData{})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxInputBytes)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, inputError(err))
		return
	}

	run, err := s.runs.Start(r.Context(), sourceWeb, r.PostForm.Get("species"))
	if err != nil {
		s.renderError(w, err)
		return
	}
	http.Redirect(w, r, "/runs/"+run.ID, http.StatusSeeOther)
}

func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.renderError(w, err)
		return
	}

	data := pageData{
		Run:         run,
		PreviewSize: s.pipeline.PreviewSize,
		Threshold:   s.pipeline.ScoreThreshold,
	}
	if !run.Done() {
		data.Refresh = refreshSeconds
	}
	if run.Status == runs.StatusCompleted && run.Presentation != nil && run.Presentation.Mode == reconcile.ModeInline {
		data.ShowTable = true
		data.Header = reconcile.Header()
		data.Records = make([][]string, len(run.Rows))
		for i, row := range run.Rows {
			data.Records[i] = row.Record()
		}
	}
	s.render(w, http.StatusOK, "run.html", data)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if run.Status != runs.StatusCompleted {
		writeJSON(w, http.StatusConflict, fail("RUN_NOT_COMPLETED", "Run has no result to download", "status: "+string(run.Status)))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+reconcile.DownloadFilename+`"`)
	if err := reconcile.WriteCSV(w, run.Table()); err != nil {
		s.logger.Error("Failed to write CSV", map[string]interface{}{
			"runId": run.ID,
			"error": err,
		})
	}
}

type createRunRequest struct {
	Text string `json:"text"`
}

type createRunResponse struct {
	ID       string      `json:"id"`
	Status   runs.Status `json:"status"`
	Total    int         `json:"total"`
	URL      string      `json:"url"`
	Download string      `json:"download"`
}

func (s *Server) handleAPICreateRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxInputBytes))
	if err != nil {
		writeError(w, inputError(err))
		return
	}

	result := validation.RunRequest.ValidateBytes(body)
	if !result.Valid {
		writeError(w, apperrors.NewInvalidInputError(result.Summary(3)))
		return
	}

	var req createRunRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	run, err := s.runs.Start(r.Context(), sourceAPI, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/api/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, success(createRunResponse{
		ID:       run.ID,
		Status:   run.Status,
		Total:    run.Total,
		URL:      "/api/runs/" + run.ID,
		Download: "/runs/" + run.ID + "/" + reconcile.DownloadFilename,
	}))
}

func (s *Server) handleAPIGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if run.Presentation != nil && run.Presentation.Mode == reconcile.ModeDownload {
		run.Rows = nil
	}
	writeJSON(w, http.StatusOK, success(run))
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, fail("HISTORY_DISABLED", "Run history is not configured", ""))
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, apperrors.NewInvalidInputError("limit must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list run history", map[string]interface{}{"error": err})
		writeError(w, err)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, success(records))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, success(map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		details, _ := json.Marshal(failed)
		writeJSON(w, http.StatusServiceUnavailable, fail("NOT_READY", "Dependencies unavailable", string(details)))
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	}))
}

// inputError classifies a body read failure.
func inputError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.NewInvalidInputError("request body exceeds " + strconv.FormatInt(maxErr.Limit, 10) + " bytes")
	}
	return apperrors.NewInvalidInputError(err.Error())
}
