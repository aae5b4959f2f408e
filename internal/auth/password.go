package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2のパラメータ。既存データとの互換のため変更しないこと。
const (
	pbkdf2Iterations = 10000
	pbkdf2KeyLength  = 512
	saltLength       = 16
)

// Hasher はパスワードのソルト生成とダイジェスト計算を行う。
// ダイジェストはPBKDF2-SHA512の16進文字列。
type Hasher struct{}

// NewSalt はランダムなソルトを16進文字列で返す。
func (Hasher) NewSalt() (string, error) {
	b := make([]byte, saltLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash はパスワードとソルトからダイジェストを計算する。
func (Hasher) Hash(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLength, sha512.New)
	return hex.EncodeToString(key)
}

// Verify はパスワードがダイジェストと一致するかを定数時間で比較する。
func (h Hasher) Verify(password, salt, digest string) bool {
	if salt == "" || digest == "" {
		return false
	}
	computed := h.Hash(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
