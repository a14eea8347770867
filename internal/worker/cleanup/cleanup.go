// Package cleanup は期限切れ失効トークンの自動削除ジョブを提供する。
// ローテーション時にデナイリストへ登録されたリフレッシュトークンのjtiは、
// トークン自体の有効期限が切れれば照合する必要がなくなるため、
// 日次バッチで削除してテーブルの肥大化を防ぐ。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredTokenDeleter は期限切れ失効記録の削除を抽象化するインターフェース。
type ExpiredTokenDeleter interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// PurgeRecorder は削除件数のメトリクス記録を抽象化するインターフェース。
type PurgeRecorder interface {
	RecordRevokedTokensPurged(count int)
}

// CleanupJob は期限切れ失効トークンの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	tokens    ExpiredTokenDeleter
	collector PurgeRecorder
	logger    *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
// collectorはnil可（メトリクスを記録しない）。
func NewCleanupJob(tokens ExpiredTokenDeleter, collector PurgeRecorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		tokens:    tokens,
		collector: collector,
		logger:    logger,
	}
}

// Run は有効期限を過ぎた失効記録を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.tokens.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("revoked token cleanup failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to purge expired revoked tokens: %w", err)
	}

	if j.collector != nil {
		j.collector.RecordRevokedTokensPurged(deleted)
	}

	duration := time.Since(start)
	j.logger.Info("revoked token cleanup completed",
		slog.Int("deleted_count", deleted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回Runを実行し、以降intervalごとに繰り返す。
// ctxのキャンセルで停止する。ブロッキング呼び出し。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
