package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pavelanni/examgen/internal/model"
)

const maxUploadBytes = 10 << 20

func (h *Handler) handleUploadBank(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("questions_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])

	storedHash, err := h.store.GetImportedFileHash(r.Context(), header.Filename)
	if err != nil {
		storeError(w, err)
		return
	}
	if storedHash == hash {
		slog.Info("question bank unchanged, skipping import", "filename", header.Filename)
		writeJSON(w, http.StatusOK, map[string]any{"imported": 0, "duplicate": true})
		return
	}
	// Reimporting a changed file would duplicate every unchanged question.
	if storedHash != "" {
		slog.Warn("question bank changed since last import, skipping", "filename", header.Filename)
		writeError(w, http.StatusConflict,
			"a different version of "+header.Filename+" was already imported; upload it under a new name")
		return
	}

	var bank model.BankImport
	if err := json.Unmarshal(data, &bank); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	count, err := h.store.ImportBank(r.Context(), bank)
	if err != nil {
		slog.Error("failed to import question bank", "filename", header.Filename, "error", err)
		writeError(w, http.StatusBadRequest, "import failed: "+err.Error())
		return
	}

	if err := h.store.SetImportedFileHash(r.Context(), header.Filename, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}

	slog.Info("uploaded question bank", "filename", header.Filename, "subject", bank.Subject, "count", count)
	writeJSON(w, http.StatusCreated, map[string]any{"imported": count, "duplicate": false})
}
