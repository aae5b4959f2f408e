// Package reconcile は記事のお気に入り数を定期的に再計算するバックグラウンドジョブを提供する。
// 他プロセスの並行書き込みで生じたfavorites_countのずれを全記事について修復する。
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/conduit/internal/metrics"
	"github.com/hitoshi/conduit/internal/model"
)

// ArticleLister は再計算対象の記事IDを列挙するインターフェース。
type ArticleLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Recomputer は1記事のお気に入り数を再計算するインターフェース。
// social.Manager が実装する。
type Recomputer interface {
	RecomputeFavoritesCount(ctx context.Context, articleID string) (*model.Article, error)
}

// Job はお気に入り数の再計算ジョブ。
type Job struct {
	lister         ArticleLister
	recomputer     Recomputer
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
}

// NewJob はJobを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewJob(
	lister ArticleLister,
	recomputer Recomputer,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Job {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		lister:         lister,
		recomputer:     recomputer,
		metrics:        mc,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は起動直後に1回、以後interval間隔で再計算を実行する。
// コンテキストがキャンセルされるまでブロックする。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("お気に入り数の再計算ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", j.maxConcurrency),
	)

	j.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("お気に入り数の再計算ジョブを停止しました")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *Job) runLogged(ctx context.Context) {
	if _, err := j.RunOnce(ctx); err != nil {
		j.logger.Error("再計算サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は全記事のお気に入り数を再計算し、再計算できた記事数を返す。
// 個々の記事の失敗はログに記録して続行する。削除済みの記事は数えない。
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()

	ids, err := j.lister.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list article ids: %w", err)
	}

	var (
		reconciled atomic.Int64
		wg         sync.WaitGroup
	)
	sem := make(chan struct{}, j.maxConcurrency)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(articleID string) {
			defer wg.Done()
			defer func() { <-sem }()

			article, err := j.recomputer.RecomputeFavoritesCount(ctx, articleID)
			if err != nil {
				if model.IsNotFound(err) {
					return
				}
				j.logger.Error("お気に入り数の再計算に失敗しました",
					slog.String("article_id", articleID),
					slog.String("error", err.Error()),
				)
				return
			}
			if article != nil {
				reconciled.Add(1)
			}
		}(id)
	}

	wg.Wait()

	count := int(reconciled.Load())
	j.metrics.RecordArticlesReconciled(count)

	j.logger.Info("再計算サイクルが完了しました",
		slog.Int("article_count", len(ids)),
		slog.Int("reconciled_count", count),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return count, ctx.Err()
}
