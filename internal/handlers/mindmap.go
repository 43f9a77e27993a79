package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"omex-backend/internal/services"
)

const maxUploadBytes = 16 * 1024 * 1024 // 16MB

type MindmapHandler struct {
	mindmaps    *services.MindmapService
	extract     *services.ExtractService
	storagePath string
}

func NewMindmapHandler(mindmaps *services.MindmapService, extract *services.ExtractService, storagePath string) *MindmapHandler {
	return &MindmapHandler{
		mindmaps:    mindmaps,
		extract:     extract,
		storagePath: storagePath,
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// Upload accepts a PDF, stores it under a timestamp-prefixed name, and
// returns the generated mindmaps. The PDF is kept on disk so a following
// plan-initialize request can pair with it; it is removed on any failure.
func (h *MindmapHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 16MB limit", r))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file part in the request", r))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No selected file", r))
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "Invalid file type. Please upload a PDF file.", r))
		return
	}

	start := time.Now()

	uniqueName := fmt.Sprintf("%d_%s", time.Now().Unix(), sanitizeFilename(header.Filename))
	pdfPath := filepath.Join(h.storagePath, uniqueName)

	dst, err := os.Create(pdfPath)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store uploaded file", r))
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(pdfPath)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store uploaded file", r))
		return
	}
	dst.Close()
	log.Printf("file saved to %s", pdfPath)

	text, err := h.extract.ExtractText(pdfPath)
	if err != nil {
		h.removeUpload(pdfPath, "text extraction error")
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Error processing file: "+err.Error(), r))
		return
	}
	cleaned := services.CleanText(text)

	mindmaps, err := h.mindmaps.Generate(r.Context(), cleaned)
	if err != nil {
		h.removeUpload(pdfPath, "mindmap generation failure")
		handleServiceError(w, r, err)
		return
	}
	log.Printf("processed %d mindmaps for %s", len(mindmaps), uniqueName)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mindmaps":        mindmaps,
		"processing_time": time.Since(start).Round(10 * time.Millisecond).Seconds(),
	})
}

func (h *MindmapHandler) removeUpload(path, reason string) {
	if err := os.Remove(path); err == nil {
		log.Printf("removed temporary file %s after %s", path, reason)
	}
}
