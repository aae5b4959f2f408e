package model

import (
	"regexp"
	"strings"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	emailPattern    = regexp.MustCompile(`\S+@\S+\.\S+`)
)

// NormalizeUsername はユーザー名を保存形式（前後空白除去・小文字）に変換する。
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail はメールアドレスを保存形式（前後空白除去・小文字）に変換する。
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateUsername はユーザー名の形式を検証し、違反があればveに追加する。
func ValidateUsername(ve *ValidationError, username string) {
	switch {
	case username == "":
		ve.Add("username", MsgBlank)
	case !usernamePattern.MatchString(username):
		ve.Add("username", MsgInvalid)
	}
}

// ValidateEmail はメールアドレスの形式を検証し、違反があればveに追加する。
func ValidateEmail(ve *ValidationError, email string) {
	switch {
	case email == "":
		ve.Add("email", MsgBlank)
	case !emailPattern.MatchString(email):
		ve.Add("email", MsgInvalid)
	}
}
