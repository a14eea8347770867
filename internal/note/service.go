// Package note はノートのCRUDに関するビジネスロジックを提供する。
package note

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/notelog/internal/model"
	"github.com/hitoshi/notelog/internal/repository"
	"github.com/hitoshi/notelog/internal/security"
)

// タイトルの最大文字数。
const maxTitleLength = 255

// Service はノートに関するビジネスロジックを提供する。
// 本文は保存前にサニタイズされ、scriptタグ等は永続化されない。
type Service struct {
	noteRepo  repository.NoteRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(noteRepo repository.NoteRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		noteRepo:  noteRepo,
		sanitizer: sanitizer,
	}
}

// Create はノートを作成する。
func (s *Service) Create(ctx context.Context, userID, title, content string) (*model.Note, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	now := time.Now()
	note := &model.Note{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     strings.TrimSpace(title),
		Content:   s.sanitizer.Sanitize(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	slog.Info("note created",
		slog.String("note_id", note.ID),
		slog.String("user_id", userID),
	)
	return note, nil
}

// Get は指定IDのノートを取得する。
// 他ユーザーのノートは存在の有無を漏らさないためNOTE_NOT_FOUNDとして扱う。
func (s *Service) Get(ctx context.Context, userID, noteID string) (*model.Note, error) {
	note, err := s.noteRepo.FindByID(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	if note == nil || note.UserID != userID {
		return nil, model.NewNoteNotFoundError(noteID)
	}
	return note, nil
}

// List はユーザーのノート一覧を新しい順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Note, error) {
	notes, err := s.noteRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// Update はノートのタイトルと本文を更新する。
func (s *Service) Update(ctx context.Context, userID, noteID, title, content string) (*model.Note, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	note, err := s.Get(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}

	note.Title = strings.TrimSpace(title)
	note.Content = s.sanitizer.Sanitize(content)
	note.UpdatedAt = time.Now()

	if err := s.noteRepo.Update(ctx, note); err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return nil, model.NewNoteNotFoundError(noteID)
		}
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	slog.Info("note updated",
		slog.String("note_id", note.ID),
		slog.String("user_id", userID),
	)
	return note, nil
}

// Delete はノートを削除する。
func (s *Service) Delete(ctx context.Context, userID, noteID string) error {
	// 所有確認のため先に取得する
	if _, err := s.Get(ctx, userID, noteID); err != nil {
		return err
	}

	if err := s.noteRepo.Delete(ctx, noteID); err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return model.NewNoteNotFoundError(noteID)
		}
		return fmt.Errorf("failed to delete note: %w", err)
	}

	slog.Info("note deleted",
		slog.String("note_id", noteID),
		slog.String("user_id", userID),
	)
	return nil
}

// validateTitle はタイトルの必須と長さを検証する。
func validateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return model.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(trimmed) > maxTitleLength {
		return model.NewValidationError(fmt.Sprintf("Title must be at most %d characters", maxTitleLength))
	}
	return nil
}
