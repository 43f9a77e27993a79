package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"omex-backend/internal/middleware"
	"omex-backend/internal/models"
	"omex-backend/internal/repository"
	"omex-backend/internal/services"
	"omex-backend/internal/session"
)

type PlanHandler struct {
	planner     *services.Planner
	grader      *services.Grader
	extract     *services.ExtractService
	planRepo    *repository.PlanRepo
	tokenRepo   *repository.TokenRepo
	progress    *session.ProgressStore
	storagePath string
}

func NewPlanHandler(
	planner *services.Planner,
	grader *services.Grader,
	extract *services.ExtractService,
	planRepo *repository.PlanRepo,
	tokenRepo *repository.TokenRepo,
	progress *session.ProgressStore,
	storagePath string,
) *PlanHandler {
	return &PlanHandler{
		planner:     planner,
		grader:      grader,
		extract:     extract,
		planRepo:    planRepo,
		tokenRepo:   tokenRepo,
		progress:    progress,
		storagePath: storagePath,
	}
}

// decodeMindmapList accepts either {"mindmaps": [...]} or a bare array,
// skipping items without a title or content.
func decodeMindmapList(r *http.Request) ([]models.MindmapEntry, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, &services.InputError{Message: "Invalid JSON data received in request body."}
	}

	var list []models.MindmapEntry
	var wrapper models.InitializePlanRequest
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Mindmaps != nil {
		list = wrapper.Mindmaps
	} else if err := json.Unmarshal(raw, &list); err != nil {
		return nil, &services.InputError{Message: `Invalid JSON structure. Expected {"mindmaps": [...]}.`}
	}

	valid := list[:0]
	for _, item := range list {
		if item.Title == "" && item.Outline == "" {
			continue
		}
		valid = append(valid, item)
	}
	if len(valid) == 0 {
		return nil, &services.InputError{Message: "No mindmap data provided or list is empty."}
	}
	return valid, nil
}

// latestPDF returns the most recently modified PDF in the storage folder.
// The newest upload is assumed to be the document the mindmaps came from.
func (h *PlanHandler) latestPDF() (string, string, error) {
	entries, err := os.ReadDir(h.storagePath)
	if err != nil {
		return "", "", err
	}

	newest := ""
	var newestMod int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = entry.Name()
			newestMod = mod
		}
	}

	if newest == "" {
		return "", "", &services.NotFoundError{
			Message: "No PDF file found on the server to generate study plan text from. Please upload a PDF first.",
		}
	}
	return newest, filepath.Join(h.storagePath, newest), nil
}

// Initialize generates, validates, and persists a study plan for the
// posted mindmap list, pairing it with the newest uploaded PDF. The PDF
// is removed once the plan is stored (and on connectivity or persistence
// failures).
func (h *PlanHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	mindmapList, err := decodeMindmapList(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	filename, pdfPath, err := h.latestPDF()
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	text, err := h.extract.ExtractText(pdfPath)
	if err != nil {
		h.removePDF(pdfPath, "text extraction error")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Error extracting text from PDF for study plan.", r))
		return
	}
	cleaned := services.CleanText(text)
	log.Printf("extracted and cleaned text from %s for study plan generation (length: %d)", filename, len(cleaned))

	plan, err := h.planner.GeneratePlan(r.Context(), mindmapList, cleaned)
	if err != nil {
		var connErr *services.ConnectivityError
		if errors.As(err, &connErr) {
			h.removePDF(pdfPath, "generation endpoint failure")
		}
		handleServiceError(w, r, err)
		return
	}

	mindmapJSON, _ := json.Marshal(mindmapList)
	planJSON, _ := json.Marshal(plan)

	userID := middleware.GetUserID(r.Context())
	record := &models.PlanRecord{
		UserID:        userID,
		Filename:      filename,
		MindmapData:   mindmapJSON,
		StudyPlanData: planJSON,
	}
	if err := h.planRepo.Create(r.Context(), record); err != nil {
		log.Printf("database error during study plan storage: %v", err)
		h.removePDF(pdfPath, "database error")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Database error occurred while saving study plan.", r))
		return
	}
	log.Printf("stored study plan %s for filename %s", record.ID, filename)

	tokens, err := h.tokenRepo.Get(r.Context(), userID)
	if err != nil {
		log.Printf("failed to read token balance for user %d: %v", userID, err)
		tokens = 0
	}

	h.removePDF(pdfPath, "successful plan storage")

	writeJSON(w, http.StatusOK, models.StudyPlanResponse{
		Topics:      plan.Topics,
		Tokens:      tokens,
		StudyPlanID: record.ID,
	})
}

// Get fetches a stored plan with the user's current token balance.
func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid plan ID", r))
		return
	}

	record, err := h.planRepo.GetByID(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Study plan not found", r))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Database error retrieving study plan.", r))
		return
	}

	var plan models.StudyPlan
	if err := json.Unmarshal(record.StudyPlanData, &plan); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Stored study plan is unreadable.", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	tokens, err := h.tokenRepo.Get(r.Context(), userID)
	if err != nil {
		tokens = 0
	}

	writeJSON(w, http.StatusOK, models.StudyPlanResponse{
		Topics:      plan.Topics,
		Tokens:      tokens,
		StudyPlanID: record.ID,
	})
}

// SubmitQuiz grades a submission against the stored plan at the given
// topic/subtopic coordinate.
func (h *PlanHandler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid plan ID", r))
		return
	}
	topicIndex, err := strconv.Atoi(chi.URLParam(r, "topicIndex"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid topic index", r))
		return
	}
	subtopicIndex, err := strconv.Atoi(chi.URLParam(r, "subtopicIndex"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid subtopic index", r))
		return
	}

	var req models.SubmitQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answers == nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", `Invalid submission format. Expected {"answers": { ... }}.`, r))
		return
	}

	record, err := h.planRepo.GetByID(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Study plan not found", r))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Database error processing quiz submission.", r))
		return
	}

	var plan models.StudyPlan
	if err := json.Unmarshal(record.StudyPlanData, &plan); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Stored study plan is unreadable.", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	sessionID := middleware.GetSessionID(r.Context())

	result, err := h.grader.Grade(r.Context(), plan, topicIndex, subtopicIndex, req.Answers, userID, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Quiz submitted successfully!",
		"score":         result.Score,
		"total":         result.Total,
		"percentage":    result.Percentage,
		"passed":        result.Passed,
		"tokens_earned": result.TokensEarned,
		"topic_name":    result.TopicName,
		"subtopic_name": result.SubtopicName,
		"results":       result.Results,
	})
}

// Progress returns the session's per-quiz progress map.
func (h *PlanHandler) Progress(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	progress, err := h.progress.All(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch quiz progress", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"quiz_progress": progress})
}

func (h *PlanHandler) removePDF(path, reason string) {
	if err := os.Remove(path); err != nil {
		log.Printf("error removing temporary file %s: %v", path, err)
		return
	}
	log.Printf("removed temporary file %s after %s", path, reason)
}
