// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// serveコマンド内のティッカーと、単発実行のworkerコマンドの両方から使う。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionExpirer は期限切れセッションを削除するストア。
// repository.PostgresSessionRepo と repository.MemorySessionRepo が実装する。
type SessionExpirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Recorder は削除件数をメトリクスに記録する。
type Recorder interface {
	RecordSessionsCleaned(count int64)
}

// SessionCleanupJob は期限切れセッションの削除ジョブ。
// 削除は冪等で、対象が無い場合もエラーにならない。
type SessionCleanupJob struct {
	store    SessionExpirer
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。recorderはnilでもよい。
func NewSessionCleanupJob(store SessionExpirer, logger *slog.Logger, recorder Recorder) *SessionCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCleanupJob{
		store:    store,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Run は現在時刻より前に期限切れとなったセッションを削除し、削除件数を返す。
func (j *SessionCleanupJob) Run(ctx context.Context) (int64, error) {
	start := j.now()

	deleted, err := j.store.DeleteExpired(ctx, start)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordSessionsCleaned(deleted)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deleted, nil
}

// Start はintervalごとにRunを実行する。ctxがキャンセルされるまでブロックする。
// 個々の実行エラーはログに記録して次の周期で再試行する。
func (j *SessionCleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		j.logger.Warn("セッションクリーンアップは無効です", slog.Duration("interval", interval))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.Run(ctx)
		}
	}
}
