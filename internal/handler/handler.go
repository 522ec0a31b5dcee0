package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examgen/internal/exam"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/store"
)

const maxRequestBytes = 1 << 20

// Generator runs generation requests.
type Generator interface {
	Generate(ctx context.Context, req model.GenerationRequest) (*exam.Result, error)
	Regenerate(ctx context.Context, configID int64, n int) (*exam.Result, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store *store.Store
	gen   Generator
}

// New creates a new Handler.
func New(s *store.Store, gen Generator) *Handler {
	return &Handler{store: s, gen: gen}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/exams/generate", h.handleGenerate)
		r.Route("/exam-configs/{configID}", func(r chi.Router) {
			r.Get("/", h.handleGetConfig)
			r.Delete("/", h.handleDeleteConfig)
			r.Post("/generate", h.handleRegenerate)
			r.Get("/exams", h.handleListExams)
		})
		r.Get("/subjects/{subjectID}/topics", h.handleListTopics)
		r.Post("/question-banks", h.handleUploadBank)
	})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := h.gen.Generate(r.Context(), req)
	if err != nil {
		h.generationError(w, err)
		return
	}
	writeArchive(w, res)
}

func (h *Handler) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	configID, ok := pathID(w, r, "configID")
	if !ok {
		return
	}
	n := 1
	if v := r.URL.Query().Get("variations"); v != "" {
		var err error
		n, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid variations")
			return
		}
	}

	res, err := h.gen.Regenerate(r.Context(), configID, n)
	if err != nil {
		h.generationError(w, err)
		return
	}
	writeArchive(w, res)
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configID, ok := pathID(w, r, "configID")
	if !ok {
		return
	}
	view, err := h.store.ConfigView(r.Context(), configID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	configID, ok := pathID(w, r, "configID")
	if !ok {
		return
	}
	if err := h.store.DeleteExamConfig(r.Context(), configID); err != nil {
		storeError(w, err)
		return
	}
	slog.Info("deleted exam config", "config_id", configID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	configID, ok := pathID(w, r, "configID")
	if !ok {
		return
	}
	if _, err := h.store.GetExamConfig(r.Context(), configID); err != nil {
		storeError(w, err)
		return
	}
	exams, err := h.store.ListExams(r.Context(), configID)
	if err != nil {
		storeError(w, err)
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) handleListTopics(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := pathID(w, r, "subjectID")
	if !ok {
		return
	}
	if _, err := h.store.SubjectName(r.Context(), subjectID); err != nil {
		storeError(w, err)
		return
	}
	topics, err := h.store.ListTopics(r.Context(), subjectID)
	if err != nil {
		storeError(w, err)
		return
	}
	type topicView struct {
		model.Topic
		Questions int `json:"questions"`
	}
	out := make([]topicView, 0, len(topics))
	for _, t := range topics {
		n, err := h.store.CountQuestions(r.Context(), t.ID)
		if err != nil {
			storeError(w, err)
			return
		}
		out = append(out, topicView{Topic: t, Questions: n})
	}
	writeJSON(w, http.StatusOK, out)
}

// generationError maps generator error kinds onto status codes.
func (h *Handler) generationError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch exam.KindOf(err) {
	case exam.KindConfiguration:
		status = http.StatusBadRequest
	case exam.KindNotFound:
		status = http.StatusNotFound
	case exam.KindPipeline:
		status = http.StatusBadGateway
	case exam.KindCanceled:
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		slog.Error("generation failed", "error", err)
	} else {
		slog.Warn("generation rejected", "error", err)
	}
	writeError(w, status, err.Error())
}

func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	slog.Error("store error", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func writeArchive(w http.ResponseWriter, res *exam.Result) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="exams_config_%d.zip"`, res.ConfigID))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Archive)))
	w.Header().Set("X-Exam-Config-ID", strconv.FormatInt(res.ConfigID, 10))
	w.Header().Set("X-Run-ID", res.RunID)
	w.Header().Set("X-Variations-Produced", joinInts(res.Produced))
	if len(res.Failed) > 0 {
		w.Header().Set("X-Variations-Failed", joinInts(res.Failed))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Archive); err != nil {
		slog.Error("write archive", "config_id", res.ConfigID, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
