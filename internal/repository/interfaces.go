// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/notelog/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定emailのユーザーを取得する。見つからない場合はnilを返す。
	// emailは登録方法に依存しないアカウントの結合キー。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// emailのユニーク制約違反時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// emailのユニーク制約違反時はErrDuplicateEmailを返す（identityは作成されない）。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateName は表示名を更新する。OAuthプロフィールからのバックフィル用。
	UpdateName(ctx context.Context, id, name string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Create はidentityを作成する。既存ユーザーへのIdP紐付け追加用。
	Create(ctx context.Context, identity *model.Identity) error
}

// TokenRepository はリフレッシュトークンのデナイリスト永続化インターフェース。
type TokenRepository interface {
	// Revoke はjtiをデナイリストに登録する。
	// 新規に登録できた場合はtrue、同一jtiが登録済みの場合はfalseを返す。
	// 登録と重複判定は単一のINSERTで行われるため、並行呼び出しでも
	// trueを受け取るのは1回だけ。
	Revoke(ctx context.Context, token *model.RevokedToken) (bool, error)

	// IsRevoked はjtiがデナイリストに登録済みかを返す。
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpired は有効期限切れの失効記録を削除し、削除件数を返す。
	// 期限切れトークンはJWTの検証自体で拒否されるため、記録を保持する必要がない。
	DeleteExpired(ctx context.Context) (int, error)
}

// NoteRepository はノートデータの永続化インターフェース。
type NoteRepository interface {
	// FindByID は指定IDのノートを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Note, error)

	// ListByUserID はユーザーのノート一覧をcreated_at降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Note, error)

	// Create はノートを作成する。
	Create(ctx context.Context, note *model.Note) error

	// Update はノートを上書き更新する。
	Update(ctx context.Context, note *model.Note) error

	// Delete は指定IDのノートを削除する。対象が存在しない場合はErrNoteNotFoundを返す。
	Delete(ctx context.Context, id string) error
}
