// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/conduit/internal/model"
)

// UserRepository はユーザーとソーシャルグラフ（お気に入り・フォロー）の永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	// Favorites と Following の集合も読み込む。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名（小文字正規化済み）でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail はメールアドレス（小文字正規化済み）でユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByIDs は複数IDのユーザーをまとめて取得する。存在しないIDは結果に含まれない。
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)

	// Create はユーザーを作成する。
	// username/email の重複は *model.ValidationError として返す。
	Create(ctx context.Context, user *model.User) error

	// Update はプロフィールと認証情報を更新する。
	Update(ctx context.Context, user *model.User) error

	// AddFavorite はお気に入り集合に記事を追加する。既に含まれていれば何もしない。
	AddFavorite(ctx context.Context, userID, articleID string) error

	// RemoveFavorite はお気に入り集合から記事を除く。含まれていなければ何もしない。
	RemoveFavorite(ctx context.Context, userID, articleID string) error

	// CountFavoriters は記事をお気に入りに含むユーザー数を数える。
	CountFavoriters(ctx context.Context, articleID string) (int, error)

	// AddFollowing はフォロー集合にユーザーを追加する。既に含まれていれば何もしない。
	AddFollowing(ctx context.Context, userID, targetID string) error

	// RemoveFollowing はフォロー集合からユーザーを除く。含まれていなければ何もしない。
	RemoveFollowing(ctx context.Context, userID, targetID string) error
}

// ArticleQuery は記事一覧の絞り込み条件を表す。
// 空文字のフィールドは条件に含めない。
type ArticleQuery struct {
	Tag               string // tag_list に含まれるタグ
	AuthorID          string // 著者
	FavoritedByUserID string // このユーザーのお気に入り集合に含まれる記事
	FollowerID        string // このユーザーがフォローしている著者の記事
	Limit             int
	Offset            int
}

// ArticleRepository は記事データの永続化インターフェース。
type ArticleRepository interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Article, error)

	// FindBySlug はslugで記事を取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Article, error)

	// Create は記事を作成する。slugの重複は *model.ValidationError として返す。
	Create(ctx context.Context, article *model.Article) error

	// Update は記事のtitle、description、body、tag_listを更新する。slugと著者は変更しない。
	Update(ctx context.Context, article *model.Article) error

	// Delete は記事を削除する。コメントとお気に入りはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// UpdateFavoritesCount はお気に入り数を書き込み、更新後の記事を返す。
	// 記事が存在しない場合はnilを返す。
	UpdateFavoritesCount(ctx context.Context, id string, count int) (*model.Article, error)

	// List は条件に一致する記事を作成日時の降順で返す。
	List(ctx context.Context, q ArticleQuery) ([]*model.Article, error)

	// Count はページングを適用する前の一致件数を返す。
	Count(ctx context.Context, q ArticleQuery) (int, error)

	// ListIDs は全記事のIDを返す。
	ListIDs(ctx context.Context) ([]string, error)

	// DistinctTags は記事に付与されたタグを重複なしで返す。
	DistinctTags(ctx context.Context) ([]string, error)
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// ListByArticle は記事のコメントを作成日時の降順で返す。
	ListByArticle(ctx context.Context, articleID string) ([]*model.Comment, error)

	// Delete は指定IDのコメントを削除する。
	Delete(ctx context.Context, id string) error
}
