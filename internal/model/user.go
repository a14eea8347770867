// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// emailがアカウントの一意な識別子であり、登録方法（パスワード/OAuth）に依存しない。
// PasswordHashはOAuthのみで作成されたアカウントでは空。
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// (provider, provider_user_id) の組につき高々1ユーザー。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}
