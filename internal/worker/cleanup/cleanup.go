// Package cleanup は失効済みトークン署名の定期削除ジョブを提供する。
// 有効期限を過ぎた署名はExistsで既に無効として扱われるため、
// このジョブはテーブルの肥大化を防ぐためだけに実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/jwtpizza/internal/metrics"
)

// DefaultInterval はStartに0以下の間隔が渡された場合に使う実行間隔。
const DefaultInterval = time.Hour

// TokenPurger は失効済みトークン署名の削除を抽象化するインターフェース。
// repository.AuthTokenRepositoryが満たす。
type TokenPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は失効済みトークン署名の削除ジョブ。
// 冪等な削除処理のため、複数のワーカーから実行しても問題ない。
type CleanupJob struct {
	tokens    TokenPurger
	logger    *slog.Logger
	collector metrics.MetricsCollector
	now       func() time.Time

	// Grace は有効期限からこの時間を過ぎた署名のみ削除する（デフォルト: 0）
	Grace time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。collectorはnilでもよい。
func NewCleanupJob(tokens TokenPurger, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	return &CleanupJob{
		tokens:    tokens,
		logger:    logger,
		collector: collector,
		now:       time.Now,
	}
}

// Run は有効期限を過ぎたトークン署名を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()
	before := start.Add(-j.Grace)

	deleted, err := j.tokens.DeleteExpired(ctx, before)
	if err != nil {
		j.logger.Error("トークンクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("トークンクリーンアップの実行に失敗: %w", err)
	}

	if j.collector != nil {
		j.collector.RecordTokensPurged(deleted)
	}

	j.logger.Info("トークンクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Time("expired_before", before),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return nil
}

// Start は指定間隔でRunを繰り返す。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。intervalが0以下の場合はDefaultIntervalを使う。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("トークンクリーンアップを開始しました",
		slog.Duration("interval", interval),
	)

	// 失敗はRun内でログ出力済みのため、次の周期で再試行する
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("トークンクリーンアップを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
