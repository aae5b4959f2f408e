// Package authz は作成者本人だけが変更できるリソースの権限判定を行う。
package authz

import "fmt"

// CanModify は操作ユーザーがリソースの作成者であるかを判定する。
// 両辺を文字列に正規化して厳密比較する。操作ユーザーが空またはnilの場合は常にfalse。
func CanModify(actingUserID, resourceAuthorID any) bool {
	if actingUserID == nil || resourceAuthorID == nil {
		return false
	}
	acting := fmt.Sprint(actingUserID)
	if acting == "" {
		return false
	}
	return acting == fmt.Sprint(resourceAuthorID)
}
