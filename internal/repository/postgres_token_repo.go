package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/notelog/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用したリフレッシュトークンデナイリスト。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Revoke はjtiをデナイリストに登録する。
// 新規に登録できた場合のみtrueを返す。ON CONFLICT DO NOTHINGは衝突時に
// 行を挿入しないため、RowsAffectedで既登録との区別がつく。
// 単一INSERTで登録と重複判定を行うため、同一jtiの並行登録でも
// trueを受け取るのは1回だけ。
func (r *PostgresTokenRepo) Revoke(ctx context.Context, token *model.RevokedToken) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, user_id, expires_at, revoked_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (jti) DO NOTHING`,
		token.JTI, token.UserID, token.ExpiresAt, token.RevokedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// IsRevoked はjtiがデナイリストに登録済みかを返す。
func (r *PostgresTokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`,
		jti,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return exists, nil
}

// DeleteExpired は有効期限切れの失効記録を削除し、削除件数を返す。
func (r *PostgresTokenRepo) DeleteExpired(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
