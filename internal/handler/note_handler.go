package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/notelog/internal/middleware"
	"github.com/hitoshi/notelog/internal/model"
)

// NoteServiceInterface はノートハンドラーが必要とするサービスインターフェース。
type NoteServiceInterface interface {
	Create(ctx context.Context, userID, title, content string) (*model.Note, error)
	Get(ctx context.Context, userID, noteID string) (*model.Note, error)
	List(ctx context.Context, userID string) ([]*model.Note, error)
	Update(ctx context.Context, userID, noteID, title, content string) (*model.Note, error)
	Delete(ctx context.Context, userID, noteID string) error
}

// NoteHandler はノート管理のHTTPハンドラー。
type NoteHandler struct {
	service NoteServiceInterface
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(service NoteServiceInterface) *NoteHandler {
	return &NoteHandler{
		service: service,
	}
}

// noteRequest はノート作成・更新リクエストのボディ。
type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// noteResponse はノート情報のAPIレスポンス。
type noteResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListNotes はユーザーのノート一覧を新しい順で返す。
// GET /api/notes
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError("missing bearer token"))
		return
	}

	notes, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]noteResponse, 0, len(notes))
	for _, n := range notes {
		responses = append(responses, toNoteResponse(n))
	}
	writeJSON(w, http.StatusOK, responses)
}

// CreateNote はノートを作成する。
// POST /api/notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError("missing bearer token"))
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidBodyError())
		return
	}

	note, err := h.service.Create(r.Context(), userID, req.Title, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toNoteResponse(note))
}

// GetNote はノート詳細を取得する。
// GET /api/notes/{id}
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError("missing bearer token"))
		return
	}

	note, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNoteResponse(note))
}

// UpdateNote はノートのタイトルと本文を更新する。
// PUT /api/notes/{id}
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError("missing bearer token"))
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidBodyError())
		return
	}

	note, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.Title, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNoteResponse(note))
}

// DeleteNote はノートを削除する。
// DELETE /api/notes/{id}
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError("missing bearer token"))
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toNoteResponse はmodel.NoteからAPIレスポンスに変換する。
func toNoteResponse(note *model.Note) noteResponse {
	return noteResponse{
		ID:        note.ID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}
}
