package model

import "time"

// Note はユーザーが作成するノートを表す。
// Contentは保存前にサニタイズ済みのHTML。
type Note struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
