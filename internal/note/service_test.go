package note

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/notelog/internal/model"
	"github.com/hitoshi/notelog/internal/repository"
	"github.com/hitoshi/notelog/internal/security"
)

// --- モック定義 ---

type mockNoteRepo struct {
	findByIDFn     func(ctx context.Context, id string) (*model.Note, error)
	listByUserIDFn func(ctx context.Context, userID string) ([]*model.Note, error)
	createFn       func(ctx context.Context, note *model.Note) error
	updateFn       func(ctx context.Context, note *model.Note) error
	deleteFn       func(ctx context.Context, id string) error
}

func (m *mockNoteRepo) FindByID(ctx context.Context, id string) (*model.Note, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockNoteRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Note, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockNoteRepo) Create(ctx context.Context, note *model.Note) error {
	if m.createFn != nil {
		return m.createFn(ctx, note)
	}
	return nil
}

func (m *mockNoteRepo) Update(ctx context.Context, note *model.Note) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, note)
	}
	return nil
}

func (m *mockNoteRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

var _ repository.NoteRepository = (*mockNoteRepo)(nil)

func newTestService(repo repository.NoteRepository) *Service {
	return NewService(repo, security.NewContentSanitizer())
}

// --- テスト ---

// ノート作成時に本文がサニタイズされることを検証
func TestCreate_SanitizesContent(t *testing.T) {
	var savedNote *model.Note
	repo := &mockNoteRepo{
		createFn: func(ctx context.Context, note *model.Note) error {
			savedNote = note
			return nil
		},
	}
	svc := newTestService(repo)

	note, err := svc.Create(context.Background(), "user-1", "Shopping", `<p>milk</p><script>alert("xss")</script>`)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if note.UserID != "user-1" {
		t.Errorf("userID = %q, want %q", note.UserID, "user-1")
	}
	if strings.Contains(savedNote.Content, "<script") {
		t.Errorf("content should be sanitized before storage, got %q", savedNote.Content)
	}
	if !strings.Contains(savedNote.Content, "<p>milk</p>") {
		t.Errorf("allowed markup should survive, got %q", savedNote.Content)
	}
}

// タイトルのバリデーションを検証
func TestCreate_TitleValidation(t *testing.T) {
	svc := newTestService(&mockNoteRepo{})

	tests := []struct {
		name  string
		title string
	}{
		{"empty title", ""},
		{"whitespace title", "   "},
		{"too long title", strings.Repeat("あ", 256)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "user-1", tt.title, "content")
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != model.ErrCodeValidationError {
				t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeValidationError)
			}
		})
	}
}

// 255文字ちょうどのタイトルが許可されることを検証
func TestCreate_TitleAtMaxLength_Allowed(t *testing.T) {
	svc := newTestService(&mockNoteRepo{})

	if _, err := svc.Create(context.Background(), "user-1", strings.Repeat("あ", 255), ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

// 他ユーザーのノート取得がNOTE_NOT_FOUNDになることを検証
func TestGet_OtherUsersNote_NotFound(t *testing.T) {
	repo := &mockNoteRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Note, error) {
			return &model.Note{ID: id, UserID: "owner", Title: "secret"}, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Get(context.Background(), "intruder", "note-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeNoteNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeNoteNotFound)
	}
}

// 存在しないノートの取得がNOTE_NOT_FOUNDになることを検証
func TestGet_MissingNote_NotFound(t *testing.T) {
	svc := newTestService(&mockNoteRepo{})

	_, err := svc.Get(context.Background(), "user-1", "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNoteNotFound {
		t.Errorf("expected NOTE_NOT_FOUND, got %v", err)
	}
}

// 所有者は自分のノートを取得できることを検証
func TestGet_OwnNote_Succeeds(t *testing.T) {
	repo := &mockNoteRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Note, error) {
			return &model.Note{ID: id, UserID: "user-1", Title: "mine"}, nil
		},
	}
	svc := newTestService(repo)

	note, err := svc.Get(context.Background(), "user-1", "note-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if note.Title != "mine" {
		t.Errorf("title = %q, want %q", note.Title, "mine")
	}
}

// 更新時に所有確認とサニタイズが行われることを検証
func TestUpdate_SanitizesAndChecksOwnership(t *testing.T) {
	var updatedNote *model.Note
	repo := &mockNoteRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Note, error) {
			return &model.Note{ID: id, UserID: "user-1", Title: "old", Content: "old"}, nil
		},
		updateFn: func(ctx context.Context, note *model.Note) error {
			updatedNote = note
			return nil
		},
	}
	svc := newTestService(repo)

	note, err := svc.Update(context.Background(), "user-1", "note-1", "new title", `<em>ok</em><iframe src="https://evil.example.com"></iframe>`)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if note.Title != "new title" {
		t.Errorf("title = %q, want %q", note.Title, "new title")
	}
	if strings.Contains(updatedNote.Content, "<iframe") {
		t.Errorf("content should be sanitized, got %q", updatedNote.Content)
	}

	// 他ユーザーによる更新は拒否される
	_, err = svc.Update(context.Background(), "intruder", "note-1", "hacked", "")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNoteNotFound {
		t.Errorf("expected NOTE_NOT_FOUND for other user's note, got %v", err)
	}
}

// 削除時の所有確認を検証
func TestDelete_ChecksOwnership(t *testing.T) {
	deleteCalled := false
	repo := &mockNoteRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Note, error) {
			return &model.Note{ID: id, UserID: "owner"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deleteCalled = true
			return nil
		},
	}
	svc := newTestService(repo)

	err := svc.Delete(context.Background(), "intruder", "note-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNoteNotFound {
		t.Errorf("expected NOTE_NOT_FOUND, got %v", err)
	}
	if deleteCalled {
		t.Error("Delete should not reach the repository for another user's note")
	}

	if err := svc.Delete(context.Background(), "owner", "note-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleteCalled {
		t.Error("Delete should reach the repository for the owner")
	}
}

// 一覧取得がリポジトリの結果をそのまま返すことを検証
func TestList_ReturnsNotes(t *testing.T) {
	repo := &mockNoteRepo{
		listByUserIDFn: func(ctx context.Context, userID string) ([]*model.Note, error) {
			return []*model.Note{
				{ID: "n2", UserID: userID, Title: "newer"},
				{ID: "n1", UserID: userID, Title: "older"},
			}, nil
		},
	}
	svc := newTestService(repo)

	notes, err := svc.List(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("len(notes) = %d, want 2", len(notes))
	}
	if notes[0].Title != "newer" {
		t.Errorf("notes[0].Title = %q, want %q", notes[0].Title, "newer")
	}
}
