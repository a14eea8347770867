package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/notelog/internal/model"
)

// PostgresNoteRepo はPostgreSQLを使用したノートリポジトリ。
type PostgresNoteRepo struct {
	db *sql.DB
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db *sql.DB) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

// FindByID は指定IDのノートを取得する。見つからない場合はnilを返す。
func (r *PostgresNoteRepo) FindByID(ctx context.Context, id string) (*model.Note, error) {
	note := &model.Note{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, content, created_at, updated_at FROM notes WHERE id = $1`,
		id,
	).Scan(&note.ID, &note.UserID, &note.Title, &note.Content, &note.CreatedAt, &note.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}

	return note, nil
}

// ListByUserID はユーザーのノート一覧をcreated_at降順で返す。
func (r *PostgresNoteRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, content, created_at, updated_at
		 FROM notes
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []*model.Note{}
	for rows.Next() {
		note := &model.Note{}
		if err := rows.Scan(&note.ID, &note.UserID, &note.Title, &note.Content, &note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}

	return notes, nil
}

// Create はノートを作成する。
func (r *PostgresNoteRepo) Create(ctx context.Context, note *model.Note) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, title, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		note.ID, note.UserID, note.Title, note.Content, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// Update はノートを上書き更新する。
func (r *PostgresNoteRepo) Update(ctx context.Context, note *model.Note) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notes SET title = $1, content = $2, updated_at = $3 WHERE id = $4`,
		note.Title, note.Content, note.UpdatedAt, note.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// Delete は指定IDのノートを削除する。
func (r *PostgresNoteRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// compile-time interface check
var _ NoteRepository = (*PostgresNoteRepo)(nil)
