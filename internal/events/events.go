// Package events は記事・ユーザー操作のドメインイベントを外部へ通知する。
// 通知はベストエフォートで、失敗してもAPIリクエストは失敗させない。
package events

//go:generate mockgen -source=events.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"
)

// イベント種別。RabbitMQのルーティングキーとしても使う。
const (
	TypeArticleCreated     = "article.created"
	TypeArticleUpdated     = "article.updated"
	TypeArticleDeleted     = "article.deleted"
	TypeArticleFavorited   = "article.favorited"
	TypeArticleUnfavorited = "article.unfavorited"
	TypeCommentAdded       = "comment.added"
	TypeCommentDeleted     = "comment.deleted"
	TypeUserFollowed       = "user.followed"
	TypeUserUnfollowed     = "user.unfollowed"
)

// Event はドメインイベント。該当しないフィールドは空のまま送る。
type Event struct {
	Type        string    `json:"type"`
	ArticleID   string    `json:"articleId,omitempty"`
	ArticleSlug string    `json:"articleSlug,omitempty"`
	CommentID   string    `json:"commentId,omitempty"`
	UserID      string    `json:"userId"`
	TargetID    string    `json:"targetId,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Publisher はイベントの送信先。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher はイベントを破棄するPublisher。AMQP_URL未設定時に使う。
type NopPublisher struct{}

// Publish は何もしない。
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close は何もしない。
func (NopPublisher) Close() error { return nil }

var _ Publisher = NopPublisher{}
