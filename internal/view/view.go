// Package view は永続化されたエンティティを閲覧者から見たレスポンス表現に変換する。
// 閲覧者（viewer）はnilでもよく、その場合 favorited/following は常にfalseになる。
package view

import (
	"time"

	"github.com/hitoshi/conduit/internal/model"
	"github.com/hitoshi/conduit/internal/social"
)

// ProfileView は公開プロフィール。
type ProfileView struct {
	Username  string `json:"username"`
	Bio       string `json:"bio"`
	Image     string `json:"image"`
	Following bool   `json:"following"`
}

// ArticleView は記事のレスポンス表現。
type ArticleView struct {
	Slug           string      `json:"slug"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Body           string      `json:"body"`
	TagList        []string    `json:"tagList"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	Favorited      bool        `json:"favorited"`
	FavoritesCount int         `json:"favoritesCount"`
	Author         ProfileView `json:"author"`
}

// CommentView はコメントのレスポンス表現。
type CommentView struct {
	ID        string      `json:"id"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Author    ProfileView `json:"author"`
}

// AuthView は認証済みユーザー本人向けの表現。トークンを含む。
type AuthView struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Token    string  `json:"token"`
	Bio      string  `json:"bio"`
	Image    *string `json:"image"`
}

// ProjectProfile はユーザーをプロフィール表現に変換する。
// 画像が未設定の場合はデフォルト画像を使う。userがnilの場合は空のプロフィールを返す。
func ProjectProfile(user, viewer *model.User) ProfileView {
	if user == nil {
		return ProfileView{Image: model.DefaultProfileImage}
	}
	image := user.Image
	if image == "" {
		image = model.DefaultProfileImage
	}
	return ProfileView{
		Username:  user.Username,
		Bio:       user.Bio,
		Image:     image,
		Following: social.IsFollowing(viewer, user.ID),
	}
}

// ProjectArticle は記事をレスポンス表現に変換する。
func ProjectArticle(article *model.Article, author, viewer *model.User) ArticleView {
	tags := article.TagList
	if tags == nil {
		tags = []string{}
	}
	return ArticleView{
		Slug:           article.Slug,
		Title:          article.Title,
		Description:    article.Description,
		Body:           article.Body,
		TagList:        tags,
		CreatedAt:      article.CreatedAt,
		UpdatedAt:      article.UpdatedAt,
		Favorited:      social.IsFavorite(viewer, article.ID),
		FavoritesCount: article.FavoritesCount,
		Author:         ProjectProfile(author, viewer),
	}
}

// ProjectArticles は記事の一覧を変換する。authorsは著者IDからユーザーへの対応。
func ProjectArticles(articles []*model.Article, authors map[string]*model.User, viewer *model.User) []ArticleView {
	out := make([]ArticleView, len(articles))
	for i, a := range articles {
		out[i] = ProjectArticle(a, authors[a.AuthorID], viewer)
	}
	return out
}

// ProjectComment はコメントをレスポンス表現に変換する。
func ProjectComment(comment *model.Comment, author, viewer *model.User) CommentView {
	return CommentView{
		ID:        comment.ID,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
		Author:    ProjectProfile(author, viewer),
	}
}

// ProjectComments はコメントの一覧を変換する。
func ProjectComments(comments []*model.Comment, authors map[string]*model.User, viewer *model.User) []CommentView {
	out := make([]CommentView, len(comments))
	for i, c := range comments {
		out[i] = ProjectComment(c, authors[c.AuthorID], viewer)
	}
	return out
}

// ProjectAuthSession は本人向けのユーザー表現に変換する。
// 画像が未設定の場合はnullを返す。
func ProjectAuthSession(user *model.User, token string) AuthView {
	v := AuthView{
		Username: user.Username,
		Email:    user.Email,
		Token:    token,
		Bio:      user.Bio,
	}
	if user.Image != "" {
		image := user.Image
		v.Image = &image
	}
	return v
}
