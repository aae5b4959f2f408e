// Package social はお気に入りとフォローのソーシャルグラフを管理する。
//
// お気に入り数は記事をお気に入りに含むユーザー数から毎回再計算する。
// 同一プロセス内では記事単位のロックで書き込みと再計算を直列化し、
// プロセス間の競合で生じたずれは reconcile ワーカーが同じ再計算で修復する。
package social

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/conduit/internal/events"
	"github.com/hitoshi/conduit/internal/metrics"
	"github.com/hitoshi/conduit/internal/model"
	"github.com/hitoshi/conduit/internal/repository"
)

// IsFavorite はユーザーが記事をお気に入りにしているかを返す。userがnilの場合はfalse。
func IsFavorite(user *model.User, articleID string) bool {
	if user == nil {
		return false
	}
	return user.Favorites.Contains(articleID)
}

// IsFollowing はユーザーが対象をフォローしているかを返す。userがnilの場合はfalse。
func IsFollowing(user *model.User, targetID string) bool {
	if user == nil {
		return false
	}
	return user.Following.Contains(targetID)
}

// Manager はソーシャルグラフの更新を行う。
type Manager struct {
	userRepo    repository.UserRepository
	articleRepo repository.ArticleRepository
	notifier    *events.Notifier
	metrics     metrics.MetricsCollector
	locks       *keyedMutex
}

// NewManager はManagerを生成する。notifier、mcはnilでもよい。
func NewManager(
	userRepo repository.UserRepository,
	articleRepo repository.ArticleRepository,
	notifier *events.Notifier,
	mc metrics.MetricsCollector,
) *Manager {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Manager{
		userRepo:    userRepo,
		articleRepo: articleRepo,
		notifier:    notifier,
		metrics:     mc,
		locks:       newKeyedMutex(),
	}
}

// Favorite は記事をユーザーのお気に入りに追加し、お気に入り数を再計算した記事を返す。
// 既に追加済みでも再計算は行う。
func (m *Manager) Favorite(ctx context.Context, user *model.User, articleID string) (*model.Article, error) {
	unlock := m.locks.Lock(articleID)
	defer unlock()

	if err := m.userRepo.AddFavorite(ctx, user.ID, articleID); err != nil {
		return nil, fmt.Errorf("failed to add favorite: %w", err)
	}
	if user.Favorites == nil {
		user.Favorites = model.NewIDSet()
	}
	added := user.Favorites.Add(articleID)

	article, err := m.recompute(ctx, articleID)
	if err != nil {
		return nil, err
	}

	if added {
		m.metrics.RecordFavorite(metrics.ActionAdd)
		m.notifier.Notify(ctx, events.Event{
			Type:        events.TypeArticleFavorited,
			ArticleID:   article.ID,
			ArticleSlug: article.Slug,
			UserID:      user.ID,
		})
	}
	return article, nil
}

// Unfavorite は記事をユーザーのお気に入りから除き、お気に入り数を再計算した記事を返す。
func (m *Manager) Unfavorite(ctx context.Context, user *model.User, articleID string) (*model.Article, error) {
	unlock := m.locks.Lock(articleID)
	defer unlock()

	if err := m.userRepo.RemoveFavorite(ctx, user.ID, articleID); err != nil {
		return nil, fmt.Errorf("failed to remove favorite: %w", err)
	}
	removed := user.Favorites.Remove(articleID)

	article, err := m.recompute(ctx, articleID)
	if err != nil {
		return nil, err
	}

	if removed {
		m.metrics.RecordFavorite(metrics.ActionRemove)
		m.notifier.Notify(ctx, events.Event{
			Type:        events.TypeArticleUnfavorited,
			ArticleID:   article.ID,
			ArticleSlug: article.Slug,
			UserID:      user.ID,
		})
	}
	return article, nil
}

// Follow はユーザーのフォロー集合に対象を追加する。既にフォロー済みなら何もしない。
func (m *Manager) Follow(ctx context.Context, user *model.User, targetID string) error {
	if err := m.userRepo.AddFollowing(ctx, user.ID, targetID); err != nil {
		return fmt.Errorf("failed to add following: %w", err)
	}
	if user.Following == nil {
		user.Following = model.NewIDSet()
	}
	if user.Following.Add(targetID) {
		m.metrics.RecordFollow(metrics.ActionAdd)
		m.notifier.Notify(ctx, events.Event{
			Type:     events.TypeUserFollowed,
			UserID:   user.ID,
			TargetID: targetID,
		})
	}
	return nil
}

// Unfollow はユーザーのフォロー集合から対象を除く。フォローしていなければ何もしない。
func (m *Manager) Unfollow(ctx context.Context, user *model.User, targetID string) error {
	if err := m.userRepo.RemoveFollowing(ctx, user.ID, targetID); err != nil {
		return fmt.Errorf("failed to remove following: %w", err)
	}
	if user.Following.Remove(targetID) {
		m.metrics.RecordFollow(metrics.ActionRemove)
		m.notifier.Notify(ctx, events.Event{
			Type:     events.TypeUserUnfollowed,
			UserID:   user.ID,
			TargetID: targetID,
		})
	}
	return nil
}

// RecomputeFavoritesCount はお気に入り数をユーザーの集合から数え直して記事に書き込む。
// 記事が存在しない場合はNotFoundエラーを返す。
func (m *Manager) RecomputeFavoritesCount(ctx context.Context, articleID string) (*model.Article, error) {
	unlock := m.locks.Lock(articleID)
	defer unlock()

	return m.recompute(ctx, articleID)
}

// recompute はロック取得済みの状態で再計算する。
func (m *Manager) recompute(ctx context.Context, articleID string) (*model.Article, error) {
	count, err := m.userRepo.CountFavoriters(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to count favoriters: %w", err)
	}

	article, err := m.articleRepo.UpdateFavoritesCount(ctx, articleID, count)
	if err != nil {
		return nil, fmt.Errorf("failed to update favorites count: %w", err)
	}
	if article == nil {
		return nil, model.NewNotFoundError("article", articleID)
	}

	slog.Debug("favorites count recomputed",
		slog.String("article_id", articleID),
		slog.Int("favorites_count", count),
	)
	return article, nil
}
