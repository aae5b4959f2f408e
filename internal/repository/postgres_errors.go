package repository

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/conduit/internal/model"
)

// pgUniqueViolation はPostgreSQLの一意制約違反コード。
const pgUniqueViolation = "23505"

// uniqueConstraintFields は一意制約名とAPI上のフィールド名の対応。
var uniqueConstraintFields = map[string]string{
	"users_username_key": "username",
	"users_email_key":    "email",
	"articles_slug_key":  "slug",
}

// translateUniqueViolation は一意制約違反を *model.ValidationError に変換する。
// 一意制約違反でなければ元のエラーをそのまま返す。
func translateUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pgUniqueViolation {
		return err
	}
	if field, ok := uniqueConstraintFields[pqErr.Constraint]; ok {
		return model.NewValidationError(field, model.MsgTaken)
	}
	return err
}

// isUUID はIDカラムに渡せる形式かを返す。
// パスパラメータ由来の不正なIDでクエリが型エラーにならないよう、検索前に確認する。
func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// isNoRows はsql.ErrNoRowsかを返す。
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
