// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultProfileImage はプロフィール画像が未設定の場合に表示する画像URL。
const DefaultProfileImage = "https://static.productionready.io/images/smiley-cyrus.jpg"

// User はサービス利用ユーザーを表す。
// Favorites と Following は集合として扱い、social パッケージ経由でのみ変更する。
type User struct {
	ID             string
	Username       string // 小文字で保存する
	Email          string // 小文字で保存する
	Bio            string
	Image          string
	PasswordSalt   string
	PasswordDigest string
	Favorites      IDSet // お気に入り登録した記事IDの集合
	Following      IDSet // フォロー中のユーザーIDの集合
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
