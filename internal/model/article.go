package model

import "time"

// Article はユーザーが投稿した記事を表す。
// FavoritesCount は派生値であり、直接増減せず常に再計算で書き込む。
type Article struct {
	ID             string
	Slug           string // 作成時に1回だけ生成し、以後変更しない
	Title          string
	Description    string
	Body           string
	TagList        []string // 入力順を保持し、重複も保持する
	AuthorID       string
	FavoritesCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Comment は記事に対するコメントを表す。
// 記事のコメント列はcommentsテーブルの作成順で表現する。
type Comment struct {
	ID        string
	Body      string
	AuthorID  string
	ArticleID string
	CreatedAt time.Time
	UpdatedAt time.Time
}
